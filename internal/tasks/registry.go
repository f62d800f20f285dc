// Package tasks tracks long-running background operations (uploads, table
// moves, bulk analyses) so HTTP clients can poll their progress.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/portside-dev/craneops/internal/model"
)

// Registry holds the in-flight and recently finished operations. Finished
// operations stay visible for the retention period so a client polling
// after completion still sees the terminal state.
type Registry struct {
	mu        sync.RWMutex
	ops       map[string]*model.Operation
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewRegistry creates a registry that keeps finished operations for the
// given retention.
func NewRegistry(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Registry{
		ops:       make(map[string]*model.Operation),
		retention: retention,
		interval:  time.Minute,
		now:       time.Now,
	}
}

// Start registers a new pending operation and returns its ID.
func (r *Registry) Start(kind string) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[id] = &model.Operation{
		ID:        id,
		Kind:      kind,
		Status:    model.OpPending,
		StartedAt: r.now().Unix(),
	}
	return id
}

// Progress moves an operation to running and records its current stage.
func (r *Registry) Progress(id, stage string, percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[id]
	if !ok || terminal(op.Status) {
		return
	}
	op.Status = model.OpRunning
	op.Stage = stage
	op.Percent = percent
	op.Message = message
}

// Done marks an operation finished.
func (r *Registry) Done(id, message string) {
	r.finish(id, model.OpDone, message, "")
}

// Fail marks an operation failed with its error text.
func (r *Registry) Fail(id string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.finish(id, model.OpError, "", msg)
}

func (r *Registry) finish(id, status, message, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[id]
	if !ok || terminal(op.Status) {
		return
	}
	op.Status = status
	op.Message = message
	op.Error = errText
	op.EndedAt = r.now().Unix()
	if status == model.OpDone {
		op.Percent = 100
	}
}

// Get returns a snapshot of one operation.
func (r *Registry) Get(id string) (model.Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[id]
	if !ok {
		return model.Operation{}, false
	}
	return *op, true
}

// Snapshot returns copies of all tracked operations.
func (r *Registry) Snapshot() []model.Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, *op)
	}
	return out
}

// Go runs fn in a goroutine under a fresh operation. fn reports progress
// through the returned callback; the operation is finished automatically
// from fn's error.
func (r *Registry) Go(kind string, fn func(progress func(stage string, percent int, message string)) error) string {
	id := r.Start(kind)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.Fail(id, fmt.Errorf("panic: %v", rec))
				slog.Error("background operation panicked", "id", id, "kind", kind, "panic", rec)
			}
		}()
		err := fn(func(stage string, percent int, message string) {
			r.Progress(id, stage, percent, message)
		})
		if err != nil {
			r.Fail(id, err)
			return
		}
		r.Done(id, "completed")
	}()
	return id
}

// Run starts the prune loop. It blocks until the context is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	slog.Info("operation pruner started", "interval", r.interval, "retention", r.retention)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("operation pruner stopped")
			return ctx.Err()
		case <-ticker.C:
			r.prune()
		}
	}
}

func (r *Registry) prune() {
	cutoff := r.now().Add(-r.retention).Unix()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, op := range r.ops {
		if terminal(op.Status) && op.EndedAt > 0 && op.EndedAt < cutoff {
			delete(r.ops, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("pruned finished operations", "removed", removed)
	}
}

func terminal(status string) bool {
	return status == model.OpDone || status == model.OpError
}
