package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// parseSignals accepts either a JSON array of signals or an object with a
// "signals" array, the shape the API ingests.
func parseSignals(data []byte) ([]signal.RawSignal, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var signals []signal.RawSignal
		if err := json.Unmarshal(trimmed, &signals); err != nil {
			return nil, fmt.Errorf("parsing signals: %w", err)
		}
		return signals, nil
	}
	var wrapped struct {
		Signals []signal.RawSignal `json:"signals"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing signals: %w", err)
	}
	return wrapped.Signals, nil
}

func loadSignals(path string) ([]signal.RawSignal, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, fmt.Errorf("reading signals: %w", err)
	}
	return parseSignals(data)
}

func loadContext(path string) (scoring.ReferenceContext, error) {
	var ref scoring.ReferenceContext
	if path == "" {
		return ref, nil
	}
	data, err := readInput(path)
	if err != nil {
		return ref, fmt.Errorf("reading context: %w", err)
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return ref, fmt.Errorf("parsing context: %w", err)
	}
	return ref, nil
}

// parseAsOf parses an RFC 3339 timestamp or a bare date; empty means now.
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// selectEntity resolves which entity to score. With an explicit entity,
// signals for other entities are dropped and signals without one are
// attributed to it. Otherwise all signals must name the same entity.
func selectEntity(entity string, signals []signal.RawSignal) (string, []signal.RawSignal, error) {
	if entity != "" {
		out := make([]signal.RawSignal, 0, len(signals))
		for _, s := range signals {
			switch s.EntityID {
			case "":
				s.EntityID = entity
			case entity:
			default:
				continue
			}
			out = append(out, s)
		}
		return entity, out, nil
	}

	for _, s := range signals {
		switch {
		case s.EntityID == "":
		case entity == "":
			entity = s.EntityID
		case s.EntityID != entity:
			return "", nil, fmt.Errorf("signals span multiple entities (%s, %s); pass --entity", entity, s.EntityID)
		}
	}
	if entity == "" {
		return "", nil, fmt.Errorf("no entity_id in signals; pass --entity")
	}
	return entity, signals, nil
}

// firstNonEmpty returns the first non-empty string from the arguments.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
