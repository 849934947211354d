package cli

import (
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/consistency"
	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	"github.com/spf13/cobra"
)

type consistencyOptions struct {
	iterations int
	strategies []string
}

func NewConsistencyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &consistencyOptions{}

	cmd := &cobra.Command{
		Use:   "consistency",
		Short: "Compare propagation strategies for shipments.current_status",
		Long: `Runs the sync transaction, db trigger and async queue strategies against the
same random workload and reports, for each, the average write latency and how
many reads right after the write missed it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsistency(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "Trials per strategy (overrides the config file)")
	cmd.Flags().StringSliceVar(&opts.strategies, "strategy", nil, "Strategies to run (sync|trigger|async), all by default")

	return cmd
}

func runConsistency(cmd *cobra.Command, rootOpts *RootOptions, opts *consistencyOptions) error {
	ctx := cmd.Context()
	args, err := buildArgs(rootOpts.ConfigFile)
	if err != nil {
		return err
	}
	cfg, err := consistency.ParseConfig(args.FileData)
	if err != nil {
		return err
	}
	if opts.iterations > 0 {
		cfg.Iterations = opts.iterations
	}
	if len(opts.strategies) > 0 {
		cfg.Strategies = opts.strategies
	}

	d, err := args.dialect()
	if err != nil {
		return err
	}
	db, err := args.open(ctx, d)
	if err != nil {
		return err
	}
	defer db.Close()
	// the async worker gets its own pool
	workerDB, err := args.open(ctx, d)
	if err != nil {
		return err
	}
	defer workerDB.Close()

	if err := dbutils.CreateSchema(ctx, db, d); err != nil {
		return err
	}

	h, err := consistency.New(ctx, d, db, workerDB, cfg)
	if err != nil {
		return err
	}
	defer h.Close()
	h.SetOutput(cmd.OutOrStdout())

	_, err = h.Run(ctx)
	return err
}
