package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Flags shared by every command
type RootOptions struct {
	DisableLog bool
	Level      string
	ConfigFile string
}

// Prepare zerolog
func setupLogging(disableLog bool, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var zlevel zerolog.Level
	if disableLog {
		zlevel = zerolog.Disabled
	} else if level == "info" {
		zlevel = zerolog.InfoLevel
	} else {
		zlevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(zlevel)
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "logisflow",
		Short: "Benchmarks for the LogisFlow shipment schema",
		Long: `Benchmarks and data tools for the LogisFlow shipment schema: normalized vs.
denormalized status reads, consistency strategies for the denormalized
status column, synthetic data seeding and MySQL to PostgreSQL dump conversion.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.DisableLog, opts.Level)
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.DisableLog, "no-log", false, "Disables the log")
	cmd.PersistentFlags().StringVar(&opts.Level, "level", "debug", "Log level (info|debug)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "conf", "", "Benchmark config file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewConsistencyCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewCleanCommand(opts))
	cmd.AddCommand(NewConvertCommand(opts))

	return cmd
}
