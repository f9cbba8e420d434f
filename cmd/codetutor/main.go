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
	Short: "codetutor - run and study code snippets in many languages",
	Long: `codetutor executes short programs in Python, JavaScript, Java, C++, C, Go,
Rust, PHP and Ruby with a time limit and an output cap.

It can run files from the command line, drive an interactive editor, keep a
library of snippets, and serve the same features over HTTP and WebSocket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./codetutor.yaml or ~/.codetutor/codetutor.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
