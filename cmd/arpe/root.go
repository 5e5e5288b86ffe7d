package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "arpe",
	Short: "ARPE - resonator parameter extraction from Touchstone files",
	Long: `ARPE fits resonance circles to two-port S-parameter sweeps and reports
resonant frequency, loaded and unloaded Q and the coupling coefficient.

Example:
  arpe extract --dir ./sweeps
  arpe extract --dir ./sweeps --format json --plot > batch.json
  arpe extract --prefix run1/ --format csv`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.InfoLevel
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(newExtractCmd())
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}
