// Package main provides the signalscope CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalscope/signalscope/pkg/logging"
)

var version = "dev"

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	configPath string
	logLevel   string
}

func (g *globalOpts) logger() *zap.Logger {
	log, err := logging.New(g.logLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; logging disabled\n", err)
		return zap.NewNop()
	}
	return log
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}

	rootCmd := &cobra.Command{
		Use:   "signalscope",
		Short: "Composite buying-signal scoring for sales prioritization",
		Long: `SignalScope turns observed buying signals and account reference data into
per-dimension scores, a confidence-weighted composite, an engagement priority
and a ranked list of recommended actions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to scoring config YAML (default: discover .signalscope/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newScoreCmd(g),
		newNormalizeCmd(g),
		newConfigCmd(g),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
