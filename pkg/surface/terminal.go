package surface

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/signalscope/signalscope/pkg/scoring"
)

// TerminalRenderer renders CompositeScoreRecord as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

const wrapWidth = 100

func priorityColor(p scoring.Priority) string {
	if noColor() {
		return ""
	}
	switch p {
	case scoring.PriorityImmediate:
		return colorRed
	case scoring.PriorityHigh:
		return colorYellow
	case scoring.PriorityMedium:
		return colorBlue
	default:
		return ""
	}
}

func bandColor(b scoring.Band) string {
	switch b {
	case scoring.BandHigh:
		return colorGreen
	case scoring.BandMedium:
		return colorYellow
	case scoring.BandLow:
		return colorRed
	default:
		return colorDim
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, rec *scoring.CompositeScoreRecord) error {
	pc := priorityColor(rec.Priority)

	// Header
	fmt.Fprintf(w, "%s\n\n",
		bold(fmt.Sprintf("SignalScope: %s | Priority %s | Composite %s",
			rec.EntityID, colored(strings.ToUpper(string(rec.Priority)), pc), compositeText(rec))))

	if rec.InsufficientData {
		fmt.Fprintf(w, "%s\n\n", colored("Insufficient data: no dimension has evidence yet.", colorYellow))
	}

	// Summary
	signals := fmt.Sprintf("%d", rec.SignalCount)
	if n := len(rec.SkippedSignals); n > 0 {
		signals += fmt.Sprintf(" (%d skipped)", n)
	}
	fmt.Fprintf(w, "Confidence: %s / Qualification: %s / Signals: %s\n",
		rec.ConfidenceLevel, strings.ReplaceAll(string(rec.Qualification), "_", " "), signals)
	fmt.Fprintf(w, "Trend: %.2f signals/day, acceleration %+.2f (%dd window)\n",
		rec.Trend.Velocity, rec.Trend.Acceleration, rec.Trend.WindowDays)
	fmt.Fprintf(w, "%s\n\n", dim("As of "+rec.AsOf.Format("2006-01-02 15:04 MST")))

	// Dimensions
	fmt.Fprintln(w, "Dimensions:")
	for _, ds := range rec.DimensionScores {
		band := scoring.BandOf(ds)
		if band == scoring.BandUnknown {
			fmt.Fprintf(w, "  %-10s %s\n", ds.Dimension, dim("no data"))
			continue
		}
		fmt.Fprintf(w, "  %-10s %5.1f  %s  %s\n",
			ds.Dimension, ds.Value,
			colored(fmt.Sprintf("%-6s", band), bandColor(band)),
			dim(fmt.Sprintf("confidence %.2f", ds.Confidence)))
	}
	fmt.Fprintln(w)

	// Talking points
	if len(rec.TalkingPoints) > 0 {
		fmt.Fprintln(w, "Talking points:")
		for _, tp := range rec.TalkingPoints {
			writeBullet(w, tp)
		}
		fmt.Fprintln(w)
	}

	// Actions
	if len(rec.RecommendedActions) > 0 {
		fmt.Fprintln(w, "Recommended actions:")
		for i, a := range rec.RecommendedActions {
			lines := wrapText(a, wrapWidth)
			fmt.Fprintf(w, "  %d. %s\n", i+1, lines[0])
			for _, line := range lines[1:] {
				fmt.Fprintf(w, "     %s\n", line)
			}
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "No recommended actions.")
		fmt.Fprintln(w)
	}

	// Skipped
	if len(rec.SkippedSignals) > 0 {
		fmt.Fprintln(w, "Skipped signals:")
		for _, s := range rec.SkippedSignals {
			fmt.Fprintf(w, "  %s %s %s\n", colored("●", colorRed), bold(s.ID), dim(string(s.Type)+": "+s.Reason))
		}
		fmt.Fprintln(w)
	}

	return nil
}

func writeBullet(w io.Writer, s string) {
	lines := wrapText(s, wrapWidth)
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "  • %s\n", lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
