package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalscope/signalscope/pkg/config"
	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

type normalizeOpts struct {
	signalsPath string
	asOf        string
	outputFmt   string
}

type normalizeOutput struct {
	AsOf       time.Time                 `json:"as_of"`
	Normalized []signal.NormalizedSignal `json:"normalized"`
	Rejected   []scoring.SkippedSignal   `json:"rejected"`
}

func newNormalizeCmd(g *globalOpts) *cobra.Command {
	var opts normalizeOpts

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Show how signals are banded and decayed",
		Long: `Normalizes raw signals without scoring them, printing each signal's strength
band, age, decay factor and weight. Invalid signals are listed, not fatal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(g, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.signalsPath, "signals", "", "Signals JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "Evaluation time, RFC 3339 or YYYY-MM-DD (default: now)")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("signals")

	return cmd
}

func runNormalize(g *globalOpts, opts normalizeOpts, out io.Writer) error {
	if opts.outputFmt != "text" && opts.outputFmt != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", opts.outputFmt)
	}

	wc, err := config.LoadWeightConfig(g.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := wc.Validate(scoring.AllDimensions()); err != nil {
		return err
	}

	signals, err := loadSignals(opts.signalsPath)
	if err != nil {
		return err
	}
	asOf, err := parseAsOf(opts.asOf)
	if err != nil {
		return err
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	normalized, rejected := wc.Normalizer().NormalizeEach(signals, asOf)
	result := normalizeOutput{
		AsOf:       asOf,
		Normalized: normalized,
		Rejected:   make([]scoring.SkippedSignal, 0, len(rejected)),
	}
	for _, r := range rejected {
		result.Rejected = append(result.Rejected, scoring.SkippedSignal{ID: r.Signal.ID, Type: r.Signal.Type, Reason: r.Err.Reason})
	}

	if opts.outputFmt == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTRENGTH\tAGE (d)\tDECAY\tWEIGHT")
	for _, ns := range result.Normalized {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.3f\t%.3f\n", ns.ID, ns.Type, ns.Strength, ns.AgeDays, ns.DecayFactor, ns.Weight)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if dropped := len(signals) - len(normalized) - len(rejected); dropped > 0 {
		fmt.Fprintf(out, "\n%d signal(s) past the retention horizon dropped\n", dropped)
	}
	if len(result.Rejected) > 0 {
		fmt.Fprintln(out, "\nRejected:")
		for _, r := range result.Rejected {
			fmt.Fprintf(out, "  %s (%s): %s\n", r.ID, r.Type, r.Reason)
		}
	}
	return nil
}
