// Package webhook handles signed signal intake from upstream providers.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

// Event type header values.
const (
	EventSignalsBatch   = "signals.batch"
	EventContextUpdated = "context.updated"
	EventEntityRescore  = "entity.rescore"
)

// VerifySignature validates the X-Signal-Signature-256 header against the payload.
func VerifySignature(payload []byte, signature string, secret []byte) error {
	if !strings.HasPrefix(signature, "sha256=") {
		return fmt.Errorf("invalid signature format")
	}
	sig, err := hex.DecodeString(signature[7:])
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(sig, expected) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// SignalsBatchEvent delivers raw signals. When Rescore is set, every entity
// in the batch is rescored after the signals are stored.
type SignalsBatchEvent struct {
	Source  string             `json:"source,omitempty"`
	Signals []signal.RawSignal `json:"signals"`
	Rescore bool               `json:"rescore,omitempty"`
}

// ContextUpdatedEvent replaces an entity's reference context.
type ContextUpdatedEvent struct {
	EntityID string                   `json:"entity_id"`
	Context  scoring.ReferenceContext `json:"context"`
}

// EntityRescoreEvent asks for an entity to be recalculated.
type EntityRescoreEvent struct {
	EntityID string     `json:"entity_id"`
	AsOf     *time.Time `json:"as_of,omitempty"`
}

// ParseEvent parses a webhook payload based on the event type.
func ParseEvent(eventType string, payload []byte) (any, error) {
	switch eventType {
	case EventSignalsBatch:
		var e SignalsBatchEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse %s event: %w", eventType, err)
		}
		if len(e.Signals) == 0 {
			return nil, fmt.Errorf("parse %s event: signals is required", eventType)
		}
		if e.Source != "" {
			for i := range e.Signals {
				if e.Signals[i].Source == "" {
					e.Signals[i].Source = e.Source
				}
			}
		}
		return &e, nil
	case EventContextUpdated:
		var e ContextUpdatedEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse %s event: %w", eventType, err)
		}
		if e.EntityID == "" {
			return nil, fmt.Errorf("parse %s event: entity_id is required", eventType)
		}
		return &e, nil
	case EventEntityRescore:
		var e EntityRescoreEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse %s event: %w", eventType, err)
		}
		if e.EntityID == "" {
			return nil, fmt.Errorf("parse %s event: entity_id is required", eventType)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
}
