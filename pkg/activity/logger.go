// Package activity wraps the append-only research_activity_log write
// path with the LoggingError swallowing
// semantics: logging failures are never allowed to fail the
// pipeline.
package activity

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/store"
)

// Logger records pipeline activity. Every method swallows its own
// underlying error after logging it at warn, following the "failed to
// publish/update, logged and ignored" idiom used throughout the queue and
// events packages.
type Logger struct {
	store store.Store
}

// New constructs a Logger over the given Store.
func New(s store.Store) *Logger {
	return &Logger{store: s}
}

// Record writes one activity-log entry. details is marshalled to JSON
// best-effort; a marshal failure degrades to an empty object rather than
// aborting the log write.
func (l *Logger) Record(ctx context.Context, operationType, operationName, status, triggeredBy string, details map[string]interface{}, gitCommit, experimentID *string) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		slog.Warn("activity: failed to marshal log details, logging without them", "operation", operationName, "error", err)
		detailsJSON = []byte("{}")
	}

	entry := store.ActivityLog{
		OperationType: operationType,
		OperationName: operationName,
		Status:        status,
		TriggeredBy:   triggeredBy,
		DetailsJSON:   string(detailsJSON),
		GitCommit:     gitCommit,
		ExperimentID:  experimentID,
	}
	if err := l.store.InsertActivityLog(ctx, entry); err != nil {
		slog.Warn("activity: failed to insert activity log, continuing", "operation", operationName, "error", err)
	}
}

// RecordStageCompleted and RecordStageFailed are the two call sites the
// orchestrator uses at the end of a run.
func (l *Logger) RecordStageCompleted(ctx context.Context, experimentID *string, durationMs float64) {
	l.Record(ctx, "pipeline", "run", "completed", "orchestrator",
		map[string]interface{}{"duration_ms": durationMs}, nil, experimentID)
}

func (l *Logger) RecordStageFailed(ctx context.Context, experimentID *string, reason string, durationMs float64) {
	l.Record(ctx, "pipeline", "run", "failed", "orchestrator",
		map[string]interface{}{"duration_ms": durationMs, "reason": reason}, nil, experimentID)
}
