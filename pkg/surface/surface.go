// Package surface defines output rendering for SignalScope score records.
// Implementations handle different output targets: terminal, Markdown, JSON.
package surface

import (
	"fmt"
	"io"

	"github.com/signalscope/signalscope/pkg/scoring"
)

// Renderer produces formatted output from a CompositeScoreRecord.
type Renderer interface {
	// Render writes the formatted record to the writer.
	Render(w io.Writer, rec *scoring.CompositeScoreRecord) error
}

// ForFormat returns the renderer for an output format name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or markdown)", format)
	}
}

// compositeText formats a possibly-absent composite score.
func compositeText(rec *scoring.CompositeScoreRecord) string {
	if rec.CompositeScore == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *rec.CompositeScore)
}
