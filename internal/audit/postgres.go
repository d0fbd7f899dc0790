package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/landingzone/internal/database"
)

const upsertActivityType = `
INSERT INTO activity_type (activity_type, instance_type)
VALUES ($1, $2)
ON CONFLICT (activity_type, instance_type) DO UPDATE SET activity_type = EXCLUDED.activity_type
RETURNING activity_id`

const insertRunStart = `
INSERT INTO activity_run_log
    (activity_id, invocation_id, instance_type, source_name, source_type, source_file_name, zip_file_name, run_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING activity_run_id`

const updateRunEnd = `
UPDATE activity_run_log
SET run_end_datetime = now(), run_status = $2, activity_ref_details = $3, target_file_name = $4
WHERE activity_run_id = $1`

const insertRunError = `
INSERT INTO activity_error_log (activity_run_id, error_code, error_log)
VALUES ($1, $2, $3)`

// PostgresRecorder writes activity runs to the activity_* tables.
type PostgresRecorder struct {
	db           database.DBTX
	instanceType string

	mu  sync.Mutex
	ids map[ActivityType]int32
}

// NewPostgresRecorder creates a recorder. instanceType distinguishes
// deployments sharing the audit tables.
func NewPostgresRecorder(db database.DBTX, instanceType string) *PostgresRecorder {
	return &PostgresRecorder{db: db, instanceType: instanceType, ids: make(map[ActivityType]int32)}
}

func (r *PostgresRecorder) activityID(ctx context.Context, activity ActivityType) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[activity]; ok {
		return id, nil
	}
	var id int32
	if err := r.db.QueryRow(ctx, upsertActivityType, string(activity), r.instanceType).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve activity id for %s: %w", activity, err)
	}
	r.ids[activity] = id
	return id, nil
}

// Start implements Recorder.
func (r *PostgresRecorder) Start(ctx context.Context, s Start) (int64, error) {
	activityID, err := r.activityID(ctx, s.Activity)
	if err != nil {
		return 0, err
	}

	var runID int64
	err = r.db.QueryRow(ctx, insertRunStart,
		activityID,
		toPgUUID(s.InvocationID),
		r.instanceType,
		toPgText(s.SourceName),
		toPgText(s.SourceType),
		toPgText(s.SourceFileName),
		toPgText(s.ZipFileName),
		string(StatusStarted),
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("log activity start: %w", err)
	}
	return runID, nil
}

// End implements Recorder.
func (r *PostgresRecorder) End(ctx context.Context, runID int64, e End) error {
	var details []byte
	if len(e.Details) > 0 {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			details = nil
		}
	}
	if _, err := r.db.Exec(ctx, updateRunEnd, runID, string(e.Status), details, toPgText(e.TargetFile)); err != nil {
		return fmt.Errorf("log activity end: %w", err)
	}
	return nil
}

// Error implements Recorder.
func (r *PostgresRecorder) Error(ctx context.Context, runID int64, code, text string) error {
	if _, err := r.db.Exec(ctx, insertRunError, runID, code, text); err != nil {
		return fmt.Errorf("log activity error: %w", err)
	}
	return nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}
