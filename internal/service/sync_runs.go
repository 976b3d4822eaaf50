package service

import (
	"context"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
	"strings"
	"time"

	"github.com/google/uuid"
)

type triggerKey struct{}

// WithTrigger tags ctx with what started a sync (admin, webhook, cli).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFrom returns the trigger set by WithTrigger, defaulting to admin.
func TriggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return data.TriggerAdmin
}

// SyncRecorder writes one sync run row per sync operation. A nil recorder
// or one without a store records nothing.
type SyncRecorder struct {
	store SyncRunStore
	log   logger.Logger
	now   func() time.Time
}

// NewSyncRecorder creates a SyncRecorder.
func NewSyncRecorder(store SyncRunStore, log logger.Logger) *SyncRecorder {
	if log == nil {
		log = logger.Nop()
	}
	return &SyncRecorder{store: store, log: log, now: time.Now}
}

// Start records a started run. Recording failures are logged, never returned.
func (r *SyncRecorder) Start(ctx context.Context, kind string) *data.SyncRun {
	if r == nil || r.store == nil {
		return nil
	}
	run := &data.SyncRun{
		ID:          uuid.NewString(),
		Kind:        kind,
		TriggeredBy: TriggerFrom(ctx),
		StartedAt:   r.now().UTC(),
	}
	if err := r.store.Create(ctx, run); err != nil {
		r.log.Error(err, "Failed to record sync run start")
		return nil
	}
	return run
}

// SyncOutcome summarizes a finished sync.
type SyncOutcome struct {
	Items   int
	Courses int
	Errors  []string
	Message string
}

// Finish records the outcome of run. A non-nil err marks the run failed and
// replaces the message.
func (r *SyncRecorder) Finish(ctx context.Context, run *data.SyncRun, out SyncOutcome, err error) {
	if r == nil || r.store == nil || run == nil {
		return
	}
	finished := r.now().UTC()
	run.FinishedAt = &finished
	run.Items = out.Items
	run.Courses = out.Courses
	run.Success = err == nil
	run.Errors = strings.Join(out.Errors, "\n")
	run.Message = out.Message
	if err != nil {
		run.Message = err.Error()
	}
	// The run outcome is written even when the request context is done.
	if ferr := r.store.Finish(context.WithoutCancel(ctx), run); ferr != nil {
		r.log.Error(ferr, "Failed to record sync run outcome")
	}
}

// Latest returns the most recent runs.
func (r *SyncRecorder) Latest(ctx context.Context, limit int) ([]*data.SyncRun, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	return r.store.Latest(ctx, limit)
}
