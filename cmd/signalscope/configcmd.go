package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/signalscope/signalscope/pkg/config"
	"github.com/signalscope/signalscope/pkg/scoring"
)

func newConfigCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective scoring configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(g, cmd.OutOrStdout())
		},
	}
}

func runConfig(g *globalOpts, out io.Writer) error {
	source := g.configPath
	if source == "" {
		if wd, err := os.Getwd(); err == nil {
			source = config.FindConfigFile(wd)
		}
	}

	wc, err := config.LoadWeightConfig(source)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if _, err := scoring.NewEngine(wc); err != nil {
		return err
	}

	fmt.Fprintf(out, "# source: %s\n", firstNonEmpty(source, "built-in defaults"))
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(config.Config{Scoring: config.FromWeightConfig(wc)}); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
