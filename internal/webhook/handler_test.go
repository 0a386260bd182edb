package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

func computeHMAC(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("webhook-secret-123")
	payload := []byte(`{"entity_id":"acme"}`)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    []byte
		wantErr   bool
	}{
		{
			name:      "valid signature",
			payload:   payload,
			signature: computeHMAC(payload, secret),
			secret:    secret,
			wantErr:   false,
		},
		{
			name:      "wrong secret",
			payload:   payload,
			signature: computeHMAC(payload, []byte("wrong-secret")),
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "tampered payload",
			payload:   []byte(`{"entity_id":"globex"}`),
			signature: computeHMAC(payload, secret),
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "missing sha256= prefix",
			payload:   payload,
			signature: "not-a-valid-sig",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid hex after prefix",
			payload:   payload,
			signature: "sha256=zzzz",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "empty signature",
			payload:   payload,
			signature: "",
			secret:    secret,
			wantErr:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(tc.payload, tc.signature, tc.secret)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseEvent_SignalsBatch(t *testing.T) {
	payload := `{"source":"crm","signals":[
		{"id":"s1","entity_id":"acme","type":"funding_round","occurred_at":"2026-02-01T00:00:00Z","magnitude":5000000},
		{"id":"s2","entity_id":"acme","type":"job_posting","occurred_at":"2026-02-02T00:00:00Z","source":"jobs-feed"}
	],"rescore":true}`

	event, err := ParseEvent(EventSignalsBatch, []byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	batch, ok := event.(*SignalsBatchEvent)
	if !ok {
		t.Fatalf("expected *SignalsBatchEvent, got %T", event)
	}
	if len(batch.Signals) != 2 {
		t.Fatalf("signals = %d, want 2", len(batch.Signals))
	}
	if !batch.Rescore {
		t.Error("rescore = false, want true")
	}
	if batch.Signals[0].Source != "crm" {
		t.Errorf("signals[0].source = %q, want batch source %q", batch.Signals[0].Source, "crm")
	}
	if batch.Signals[1].Source != "jobs-feed" {
		t.Errorf("signals[1].source = %q, want its own source", batch.Signals[1].Source)
	}
	if batch.Signals[0].Magnitude == nil || *batch.Signals[0].Magnitude != 5_000_000 {
		t.Errorf("signals[0].magnitude = %v, want 5000000", batch.Signals[0].Magnitude)
	}
}

func TestParseEvent_ContextUpdated(t *testing.T) {
	payload := `{"entity_id":"acme","context":{"budget":{"status":"allocated"},"timeline":{"target_date":"2026-04-01T00:00:00Z"}}}`

	event, err := ParseEvent(EventContextUpdated, []byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	cu, ok := event.(*ContextUpdatedEvent)
	if !ok {
		t.Fatalf("expected *ContextUpdatedEvent, got %T", event)
	}
	if cu.EntityID != "acme" {
		t.Errorf("entity = %q, want acme", cu.EntityID)
	}
	if cu.Context.Budget == nil || cu.Context.Budget.Status != scoring.BudgetAllocated {
		t.Errorf("budget = %+v, want allocated", cu.Context.Budget)
	}
}

func TestParseEvent_EntityRescore(t *testing.T) {
	event, err := ParseEvent(EventEntityRescore, []byte(`{"entity_id":"acme","as_of":"2026-03-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	rs, ok := event.(*EntityRescoreEvent)
	if !ok {
		t.Fatalf("expected *EntityRescoreEvent, got %T", event)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if rs.AsOf == nil || !rs.AsOf.Equal(want) {
		t.Errorf("as_of = %v, want %v", rs.AsOf, want)
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   string
	}{
		{"unsupported type", "push", `{}`},
		{"empty batch", EventSignalsBatch, `{"signals":[]}`},
		{"context without entity", EventContextUpdated, `{"context":{}}`},
		{"rescore without entity", EventEntityRescore, `{}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseEvent(tc.eventType, []byte(tc.payload)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseEvent_InvalidJSON(t *testing.T) {
	types := []string{EventSignalsBatch, EventContextUpdated, EventEntityRescore}
	for _, eventType := range types {
		t.Run(eventType, func(t *testing.T) {
			_, err := ParseEvent(eventType, []byte(`{invalid json`))
			if err == nil {
				t.Errorf("expected error parsing invalid JSON for %s, got nil", eventType)
			}
		})
	}
}

type fakeStore struct {
	signals []signal.RawSignal
	refs    map[string]scoring.ReferenceContext
	err     error
}

func (f *fakeStore) InsertSignals(_ context.Context, signals []signal.RawSignal) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.signals = append(f.signals, signals...)
	return len(signals), nil
}

func (f *fakeStore) PutReferenceContext(_ context.Context, entityID string, ref scoring.ReferenceContext) error {
	if f.refs == nil {
		f.refs = map[string]scoring.ReferenceContext{}
	}
	f.refs[entityID] = ref
	return nil
}

type fakeScorer struct {
	scored []string
	err    error
}

func (f *fakeScorer) ScoreEntity(_ context.Context, entityID string, _ time.Time) (*scoring.CompositeScoreRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.scored = append(f.scored, entityID)
	return &scoring.CompositeScoreRecord{EntityID: entityID, Priority: scoring.PriorityMedium}, nil
}

var testSecret = []byte("s3cret")

func post(h http.Handler, eventType, body, signature string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/v1/webhooks/signals", strings.NewReader(body))
	if eventType != "" {
		r.Header.Set("X-Signal-Event", eventType)
	}
	r.Header.Set("X-Signal-Signature-256", signature)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandler_SignalsBatch(t *testing.T) {
	st := &fakeStore{}
	sc := &fakeScorer{}
	h := NewHandler(testSecret, st, sc, nil, nil)
	var changed []string
	h.OnChange = func(ids ...string) { changed = append(changed, ids...) }

	body := `{"signals":[
		{"id":"s1","entity_id":"acme","type":"funding_round","occurred_at":"2026-02-01T00:00:00Z"},
		{"id":"s2","entity_id":"globex","type":"job_posting","occurred_at":"2026-02-02T00:00:00Z"},
		{"id":"s3","entity_id":"acme","type":"expansion","occurred_at":"2026-02-03T00:00:00Z"}
	],"rescore":true}`
	w := post(h, EventSignalsBatch, body, computeHMAC([]byte(body), testSecret))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusAccepted, w.Body.String())
	}
	if len(st.signals) != 3 {
		t.Errorf("stored %d signals, want 3", len(st.signals))
	}
	if strings.Join(sc.scored, ",") != "acme,globex" {
		t.Errorf("rescored %v, want [acme globex]", sc.scored)
	}
	if len(changed) < 2 {
		t.Errorf("OnChange saw %v, want both entities", changed)
	}
}

func TestHandler_InvalidSignalRejected(t *testing.T) {
	st := &fakeStore{}
	h := NewHandler(testSecret, st, &fakeScorer{}, nil, nil)

	body := `{"signals":[{"id":"s1","entity_id":"acme","type":"rumor","occurred_at":"2026-02-01T00:00:00Z"}]}`
	w := post(h, EventSignalsBatch, body, computeHMAC([]byte(body), testSecret))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if len(st.signals) != 0 {
		t.Errorf("stored %d signals, want 0", len(st.signals))
	}
}

func TestHandler_ContextUpdated(t *testing.T) {
	st := &fakeStore{}
	h := NewHandler(testSecret, st, &fakeScorer{}, nil, nil)

	body := `{"entity_id":"acme","context":{"needs":[{"description":"audit logging","severity":"high","acknowledged":true}]}}`
	w := post(h, EventContextUpdated, body, computeHMAC([]byte(body), testSecret))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusAccepted, w.Body.String())
	}
	if len(st.refs["acme"].Needs) != 1 {
		t.Errorf("needs = %+v, want one", st.refs["acme"].Needs)
	}
}

func TestHandler_EntityRescore(t *testing.T) {
	sc := &fakeScorer{}
	h := NewHandler(testSecret, &fakeStore{}, sc, nil, nil)

	body := `{"entity_id":"acme"}`
	w := post(h, EventEntityRescore, body, computeHMAC([]byte(body), testSecret))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if len(sc.scored) != 1 || sc.scored[0] != "acme" {
		t.Errorf("scored = %v, want [acme]", sc.scored)
	}

	sc.err = &signal.InvalidSignalError{Reason: "bad"}
	w = post(h, EventEntityRescore, body, computeHMAC([]byte(body), testSecret))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid signal status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	sc.err = errors.New("db down")
	w = post(h, EventEntityRescore, body, computeHMAC([]byte(body), testSecret))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("store failure status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestHandler_RequestErrors(t *testing.T) {
	h := NewHandler(testSecret, &fakeStore{}, &fakeScorer{}, nil, nil)
	body := `{"entity_id":"acme"}`
	good := computeHMAC([]byte(body), testSecret)

	tests := []struct {
		name      string
		eventType string
		signature string
		want      int
	}{
		{"bad signature", EventEntityRescore, computeHMAC([]byte(body), []byte("other")), http.StatusUnauthorized},
		{"missing event header", "", good, http.StatusBadRequest},
		{"unsupported event", "ping", good, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := post(h, tc.eventType, body, tc.signature)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/webhooks/signals", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandler_SignalsBatchNotifiesAfterRescore(t *testing.T) {
	sc := &fakeScorer{}
	h := NewHandler(testSecret, &fakeStore{}, sc, nil, nil)

	// Record how many entities had been rescored at each notification.
	var scoredAtNotify []int
	h.OnChange = func(ids ...string) { scoredAtNotify = append(scoredAtNotify, len(sc.scored)) }

	body := `{"signals":[
		{"id":"s1","entity_id":"acme","type":"funding_round","occurred_at":"2026-02-01T00:00:00Z"},
		{"id":"s2","entity_id":"globex","type":"job_posting","occurred_at":"2026-02-02T00:00:00Z"}
	],"rescore":true}`
	w := post(h, EventSignalsBatch, body, computeHMAC([]byte(body), testSecret))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	if len(scoredAtNotify) == 0 {
		t.Fatal("OnChange was never called")
	}
	if last := scoredAtNotify[len(scoredAtNotify)-1]; last != 2 {
		t.Errorf("last OnChange ran after %d rescores, want 2", last)
	}
}

func TestHandler_SignalsBatchWithoutRescoreNotifiesOnce(t *testing.T) {
	h := NewHandler(testSecret, &fakeStore{}, &fakeScorer{}, nil, nil)
	calls := 0
	h.OnChange = func(ids ...string) { calls++ }

	body := `{"signals":[{"id":"s1","entity_id":"acme","type":"funding_round","occurred_at":"2026-02-01T00:00:00Z"}]}`
	w := post(h, EventSignalsBatch, body, computeHMAC([]byte(body), testSecret))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if calls != 1 {
		t.Errorf("OnChange called %d times, want 1", calls)
	}
}
