// Package store persists signals, reference contexts, score records and
// batch scoring runs in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a concurrent write won the live-record slot.
var ErrConflict = errors.New("conflicting concurrent write")

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Run statuses.
const (
	StatusQueued    = "QUEUED"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Run is a batch rescoring run.
type Run struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	EntityCount  int       `json:"entity_count"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store provides SignalScope persistence backed by Postgres.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// InsertSignals stores raw signals in one transaction. Signals are immutable
// once ingested: a repeated (entity_id, id) is ignored. Signals without an
// ID are assigned one. It returns how many rows were new.
func (s *Store) InsertSignals(ctx context.Context, signals []signal.RawSignal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert signals: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO signals (id, entity_id, type, occurred_at, magnitude, metadata, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (entity_id, id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert signals: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range signals {
		sig := &signals[i]
		if sig.ID == "" {
			sig.ID = uuid.NewString()
		}
		meta, err := marshalMetadata(sig.Metadata)
		if err != nil {
			return 0, fmt.Errorf("signal %s: %w", sig.ID, err)
		}
		res, err := stmt.ExecContext(ctx,
			sig.ID, sig.EntityID, string(sig.Type), sig.OccurredAt.UTC(), sig.Magnitude, meta, sig.Source)
		if err != nil {
			return 0, fmt.Errorf("insert signal %s: %w", sig.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert signals: %w", err)
	}
	return inserted, nil
}

const signalColumns = `id, entity_id, type, occurred_at, magnitude, metadata, source`

// ListSignals returns an entity's signals, newest first.
func (s *Store) ListSignals(ctx context.Context, entityID string) ([]signal.RawSignal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE entity_id = $1 ORDER BY occurred_at DESC, id`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list signals for %s: %w", entityID, err)
	}
	defer rows.Close()

	var out []signal.RawSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// ListSignalsForEntities loads signals for many entities in one query.
func (s *Store) ListSignalsForEntities(ctx context.Context, entityIDs []string) (map[string][]signal.RawSignal, error) {
	out := make(map[string][]signal.RawSignal, len(entityIDs))
	if len(entityIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE entity_id = ANY($1) ORDER BY entity_id, occurred_at DESC, id`,
		pq.Array(entityIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("list signals for %d entities: %w", len(entityIDs), err)
	}
	defer rows.Close()

	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out[sig.EntityID] = append(out[sig.EntityID], sig)
	}
	return out, rows.Err()
}

// ListEntityIDs returns every entity with signals or a reference context.
func (s *Store) ListEntityIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id FROM signals
		 UNION
		 SELECT entity_id FROM reference_contexts
		 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list entity ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetReferenceContext returns an entity's reference context or ErrNotFound.
func (s *Store) GetReferenceContext(ctx context.Context, entityID string) (scoring.ReferenceContext, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT context FROM reference_contexts WHERE entity_id = $1`,
		entityID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.ReferenceContext{}, ErrNotFound
	}
	if err != nil {
		return scoring.ReferenceContext{}, fmt.Errorf("get reference context %s: %w", entityID, err)
	}

	var ref scoring.ReferenceContext
	if err := json.Unmarshal(raw, &ref); err != nil {
		return scoring.ReferenceContext{}, fmt.Errorf("decode reference context %s: %w", entityID, err)
	}
	return ref, nil
}

// PutReferenceContext creates or replaces an entity's reference context.
func (s *Store) PutReferenceContext(ctx context.Context, entityID string, ref scoring.ReferenceContext) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encode reference context: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reference_contexts (entity_id, context)
		 VALUES ($1, $2)
		 ON CONFLICT (entity_id) DO UPDATE
		   SET context = EXCLUDED.context, updated_at = now()`,
		entityID, data,
	)
	if err != nil {
		return fmt.Errorf("put reference context %s: %w", entityID, err)
	}
	return nil
}

// SaveRecord persists rec as the entity's live record, superseding the
// previous live record in the same transaction. rec.ID is assigned if empty.
func (s *Store) SaveRecord(ctx context.Context, rec *scoring.CompositeScoreRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save record: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var previous sql.NullString
	err = tx.QueryRowContext(ctx,
		`UPDATE score_records SET superseded_at = $2
		 WHERE entity_id = $1 AND superseded_at IS NULL
		 RETURNING id`,
		rec.EntityID, s.now().UTC(),
	).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("supersede live record for %s: %w", rec.EntityID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO score_records
		   (id, entity_id, composite_score, priority, insufficient_data, confidence_level,
		    qualification, record, archive_ref, as_of, computed_at, supersedes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.EntityID, rec.CompositeScore, string(rec.Priority), rec.InsufficientData,
		string(rec.ConfidenceLevel), string(rec.Qualification), data, rec.ArchiveRef,
		rec.AsOf, rec.ComputedAt, previous,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save record for %s: %w", rec.EntityID, ErrConflict)
		}
		return fmt.Errorf("insert record for %s: %w", rec.EntityID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save record: %w", err)
	}
	return nil
}

// GetLiveRecord returns the entity's current record or ErrNotFound.
func (s *Store) GetLiveRecord(ctx context.Context, entityID string) (*scoring.CompositeScoreRecord, error) {
	var (
		id  string
		raw []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, record FROM score_records WHERE entity_id = $1 AND superseded_at IS NULL`,
		entityID,
	).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get live record %s: %w", entityID, err)
	}
	return decodeRecord(id, raw)
}

// ListRecordHistory returns up to limit records for the entity, newest first.
// The first element is the live record when one exists.
func (s *Store) ListRecordHistory(ctx context.Context, entityID string, limit int) ([]scoring.CompositeScoreRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record FROM score_records
		 WHERE entity_id = $1
		 ORDER BY computed_at DESC, id
		 LIMIT $2`,
		entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list record history %s: %w", entityID, err)
	}
	defer rows.Close()

	var out []scoring.CompositeScoreRecord
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRecord(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// CreateRun records a new queued batch run.
func (s *Store) CreateRun(ctx context.Context, entityCount int) (*Run, error) {
	r := &Run{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO scoring_runs (id, status, entity_count)
		 VALUES ($1, $2, $3)
		 RETURNING id, status, entity_count, succeeded, failed, error_message, created_at, updated_at`,
		uuid.NewString(), StatusQueued, entityCount,
	).Scan(&r.ID, &r.Status, &r.EntityCount, &r.Succeeded, &r.Failed, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

// UpdateRun sets a run's status, counters and optional error message.
func (s *Store) UpdateRun(ctx context.Context, id, status string, succeeded, failed int, errMsg *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scoring_runs
		 SET status = $1, succeeded = $2, failed = $3, error_message = $4, updated_at = now()
		 WHERE id = $5`,
		status, succeeded, failed, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun returns a batch run or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r := &Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, entity_count, succeeded, failed, error_message, created_at, updated_at
		 FROM scoring_runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Status, &r.EntityCount, &r.Succeeded, &r.Failed, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (signal.RawSignal, error) {
	var (
		sig       signal.RawSignal
		typ       string
		magnitude sql.NullFloat64
		meta      []byte
	)
	if err := row.Scan(&sig.ID, &sig.EntityID, &typ, &sig.OccurredAt, &magnitude, &meta, &sig.Source); err != nil {
		return signal.RawSignal{}, fmt.Errorf("scan signal: %w", err)
	}
	sig.Type = signal.Type(typ)
	if magnitude.Valid {
		v := magnitude.Float64
		sig.Magnitude = &v
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &sig.Metadata); err != nil {
			return signal.RawSignal{}, fmt.Errorf("decode metadata for signal %s: %w", sig.ID, err)
		}
	}
	return sig, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

func decodeRecord(id string, raw []byte) (*scoring.CompositeScoreRecord, error) {
	var rec scoring.CompositeScoreRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	rec.ID = id
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}
