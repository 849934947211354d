package cli

import (
	"fmt"

	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/generator"
	"github.com/spf13/cobra"
)

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var shipments int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with synthetic shipments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			args, err := buildArgs(rootOpts.ConfigFile)
			if err != nil {
				return err
			}
			cfg, err := generator.ParseConfig(args.FileData)
			if err != nil {
				return err
			}
			if shipments > 0 {
				cfg.Shipments = shipments
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

			if err := dbutils.CreateSchema(ctx, db, d); err != nil {
				return err
			}
			counts, err := generator.Seed(ctx, d, db, cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Seed %s complete:\n", counts.SeedID)
			fmt.Fprintf(out, "- companies: %d\n- warehouses: %d\n- products: %d\n",
				counts.Companies, counts.Warehouses, counts.Products)
			fmt.Fprintf(out, "- shipments: %d\n- items: %d\n- updates: %d\n",
				counts.Shipments, counts.Items, counts.Updates)
			return nil
		},
	}

	cmd.Flags().IntVar(&shipments, "shipments", 0, "Shipments to create (overrides the config file)")

	return cmd
}
