package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalscope/signalscope/internal/ingestion"
	"github.com/signalscope/signalscope/pkg/config"
	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/surface"
)

type scoreOpts struct {
	signalsPath string
	contextPath string
	entity      string
	asOf        string
	outputFmt   string
	save        bool
	saveDir     string
}

func newScoreCmd(g *globalOpts) *cobra.Command {
	var opts scoreOpts

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one entity from a signals file",
		Long: `Normalizes the entity's signals, runs every dimension scorer, aggregates the
composite, classifies priority and renders the record with recommended actions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), g, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.signalsPath, "signals", "", "Signals JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.contextPath, "context", "", "Reference context JSON file")
	cmd.Flags().StringVar(&opts.entity, "entity", "", "Entity to score (default: the entity named in the signals)")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "Evaluation time, RFC 3339 or YYYY-MM-DD (default: now)")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text, json or markdown")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Archive the record to the local record directory")
	cmd.Flags().StringVar(&opts.saveDir, "save-dir", "", "Record directory for --save (default: ~/.cache/signalscope/records)")
	_ = cmd.MarkFlagRequired("signals")

	return cmd
}

func runScore(ctx context.Context, g *globalOpts, opts scoreOpts, out io.Writer) error {
	log := g.logger()
	defer log.Sync() //nolint:errcheck

	renderer, err := surface.ForFormat(opts.outputFmt)
	if err != nil {
		return err
	}

	wc, err := config.LoadWeightConfig(g.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	engine, err := scoring.NewEngine(wc)
	if err != nil {
		return err
	}

	signals, err := loadSignals(opts.signalsPath)
	if err != nil {
		return err
	}
	ref, err := loadContext(opts.contextPath)
	if err != nil {
		return err
	}
	asOf, err := parseAsOf(opts.asOf)
	if err != nil {
		return err
	}
	entity, signals, err := selectEntity(opts.entity, signals)
	if err != nil {
		return err
	}

	log.Info("scoring entity",
		zap.String("entity_id", entity),
		zap.Int("signals", len(signals)),
		zap.String("policy", string(wc.InvalidSignalPolicy)))

	rec, err := engine.Score(ctx, scoring.Request{
		EntityID:  entity,
		Signals:   signals,
		Reference: ref,
		AsOf:      asOf,
	})
	if err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	for _, s := range rec.SkippedSignals {
		log.Warn("signal skipped", zap.String("signal_id", s.ID), zap.String("reason", s.Reason))
	}

	if opts.save {
		dir := firstNonEmpty(opts.saveDir, config.RecordDir())
		if err := saveRecord(ctx, ingestion.NewLocalStorage(dir), rec); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Record saved: %s\n", rec.ArchiveRef)
	}

	if err := renderer.Render(out, rec); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	return nil
}

// saveRecord assigns the record an ID and archives it.
func saveRecord(ctx context.Context, storage ingestion.StorageClient, rec *scoring.CompositeScoreRecord) error {
	rec.ID = uuid.NewString()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	ref, err := storage.PutRecord(ctx, rec.EntityID, rec.ID, data)
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	rec.ArchiveRef = ref
	return nil
}
