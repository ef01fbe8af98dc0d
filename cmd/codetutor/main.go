package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "codetutor",
	Short: "codetutor - Python tutorial back end",
	Long: `codetutor serves Python tutorials, runs learner code and judges it
against reference snippets.

Run without a subcommand it is the worker a desktop host spawns: one JSON
request per stdin line, one or more JSON envelopes per stdout line.`,
	SilenceUsage: true,
	RunE:         runWorker,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./codetutor.yaml or ~/.codetutor/codetutor.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
