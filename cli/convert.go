package cli

import (
	"fmt"

	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/convert"
	"github.com/spf13/cobra"
)

func NewConvertCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <mysql-dump> <postgres-dump>",
		Short: "Rewrite a mysqldump file for psql",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := convert.ConvertFile(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}
