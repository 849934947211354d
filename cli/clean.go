package cli

import (
	"fmt"

	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/generator"
	"github.com/spf13/cobra"
)

func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	var startID int64

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove generated shipments and reference rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			args, err := buildArgs(rootOpts.ConfigFile)
			if err != nil {
				return err
			}
			cfg, err := generator.ParseCleanConfig(args.FileData)
			if err != nil {
				return err
			}
			if startID > 0 {
				cfg.StartShipmentID = startID
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

			counts, err := generator.Clean(ctx, d, db, cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Generated data removed:")
			fmt.Fprintf(out, "- shipments: %d\n- updates: %d\n- items: %d\n- reference rows: %d\n",
				counts.Shipments, counts.Updates, counts.Items, counts.Reference())
			return nil
		},
	}

	cmd.Flags().Int64Var(&startID, "start-id", 0, "First generated shipment id (overrides the config file)")

	return cmd
}
