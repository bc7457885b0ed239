// Package audit records who did what to which user record.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Action string

const (
	ActionLoginSucceeded Action = "login_succeeded"
	ActionLoginFailed    Action = "login_failed"
	ActionUserCreated    Action = "user_created"
	ActionUserUpdated    Action = "user_updated"
	ActionUserDeleted    Action = "user_deleted"
)

// ErrSchemaMissing is returned when the audit table has not been created.
var ErrSchemaMissing = errors.New("audit: audit_events table missing")

type Event struct {
	ID         string
	Action     Action
	ActorID    string
	SubjectID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

func (e Event) withDefaults() Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return e
}

type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// PostgresRecorder appends events to the audit_events table.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

const insertEventSQL = `INSERT INTO audit_events (id, action, actor_id, subject_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`

func (r *PostgresRecorder) Record(ctx context.Context, event Event) error {
	event = event.withDefaults()

	_, err := r.pool.Exec(ctx, insertEventSQL,
		event.ID,
		string(event.Action),
		event.ActorID,
		event.SubjectID,
		event.Metadata,
		event.OccurredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
			return ErrSchemaMissing
		}
		return fmt.Errorf("audit: insert event: %w", err)
	}

	return nil
}

const recentEventsSQL = `SELECT id::text, action, actor_id, subject_id, metadata, occurred_at
FROM audit_events
WHERE $1 = '' OR subject_id = $1
ORDER BY occurred_at DESC
LIMIT $2`

// Recent returns the newest events, optionally only those about subjectID.
func (r *PostgresRecorder) Recent(ctx context.Context, subjectID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, recentEventsSQL, subjectID, limit)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
			return nil, ErrSchemaMissing
		}
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			e      Event
			action string
		)
		if err := rows.Scan(&e.ID, &action, &e.ActorID, &e.SubjectID, &e.Metadata, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Action = Action(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: read events: %w", err)
	}

	return events, nil
}

// LogRecorder writes events to the structured log. It is used when no audit
// database is configured.
type LogRecorder struct {
	logger *zap.Logger
}

func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRecorder{logger: logger.Named("audit")}
}

func (r *LogRecorder) Record(_ context.Context, event Event) error {
	event = event.withDefaults()

	r.logger.Info("audit event",
		zap.String("event_id", event.ID),
		zap.String("action", string(event.Action)),
		zap.String("actor_id", event.ActorID),
		zap.String("subject_id", event.SubjectID),
		zap.Any("metadata", event.Metadata),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
