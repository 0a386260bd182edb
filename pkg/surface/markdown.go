package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/signalscope/signalscope/pkg/scoring"
)

// MarkdownRenderer renders a record as a Markdown account brief, suitable
// for pasting into a CRM note or chat message.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, rec *scoring.CompositeScoreRecord) error {
	_, err := io.WriteString(w, BuildMarkdownSummary(rec))
	return err
}

// BuildMarkdownSummary formats the record as Markdown.
func BuildMarkdownSummary(rec *scoring.CompositeScoreRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s: %s priority (composite %s)\n\n",
		rec.EntityID, priorityLabel(rec.Priority), compositeText(rec))
	if rec.InsufficientData {
		sb.WriteString("> Insufficient data: no dimension has evidence yet.\n\n")
	}

	sb.WriteString("| Dimension | Score | Confidence | Band |\n|-----------|-------|------------|------|\n")
	for _, ds := range rec.DimensionScores {
		band := scoring.BandOf(ds)
		if band == scoring.BandUnknown {
			fmt.Fprintf(&sb, "| %s | - | - | %s unknown |\n", ds.Dimension, bandIcon(band))
			continue
		}
		fmt.Fprintf(&sb, "| %s | %.1f | %.2f | %s %s |\n", ds.Dimension, ds.Value, ds.Confidence, bandIcon(band), band)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "**Confidence:** %s · **Qualification:** %s · **Trend:** %.2f/day (%+.2f)\n\n",
		rec.ConfidenceLevel, strings.ReplaceAll(string(rec.Qualification), "_", " "),
		rec.Trend.Velocity, rec.Trend.Acceleration)

	if len(rec.TalkingPoints) > 0 {
		sb.WriteString("### Talking points\n\n")
		for _, tp := range rec.TalkingPoints {
			fmt.Fprintf(&sb, "- %s\n", tp)
		}
		sb.WriteString("\n")
	}

	if len(rec.RecommendedActions) > 0 {
		sb.WriteString("### Next steps\n\n")
		for i, a := range rec.RecommendedActions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, a)
		}
		sb.WriteString("\n")
	}

	if n := len(rec.SkippedSignals); n > 0 {
		fmt.Fprintf(&sb, "_%d invalid signal(s) skipped_\n", n)
	}

	return sb.String()
}

func priorityLabel(p scoring.Priority) string {
	switch p {
	case scoring.PriorityImmediate:
		return ":red_circle: Immediate"
	case scoring.PriorityHigh:
		return ":orange_circle: High"
	case scoring.PriorityMedium:
		return ":yellow_circle: Medium"
	default:
		return ":white_circle: Low"
	}
}

func bandIcon(b scoring.Band) string {
	switch b {
	case scoring.BandHigh:
		return ":green_circle:"
	case scoring.BandMedium:
		return ":yellow_circle:"
	case scoring.BandLow:
		return ":red_circle:"
	default:
		return ":white_circle:"
	}
}
