// Package registry implements the in-memory task store. It owns every
// Task record; after creation, task content changes only through Update.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fairyhunter13/price-hunter/internal/model"
	"github.com/fairyhunter13/price-hunter/internal/obs"
	"github.com/google/uuid"
)

// ErrTaskNotFound is returned for lookups of unknown or evicted task ids.
var ErrTaskNotFound = errors.New("task not found")

// Registry maps task ids to tasks and garbage-collects terminal tasks
// after a retention window.
type Registry struct {
	mu        sync.Mutex
	tasks     map[string]*model.Task
	retention time.Duration

	created uint64
	evicted uint64
}

// New creates a Registry that retains completed tasks for the given window.
func New(retention time.Duration) *Registry {
	return &Registry{
		tasks:     make(map[string]*model.Task),
		retention: retention,
	}
}

// Create inserts a fresh pending task and returns its generated id.
func (r *Registry) Create(kind model.TaskKind, query string) string {
	t := &model.Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Query:     query,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
		Results:   make(map[string]model.ProbeResult),
	}
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.created++
	r.mu.Unlock()
	return t.ID
}

// Get returns a copy of the task, or ErrTaskNotFound.
func (r *Registry) Get(id string) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Update applies a mutation to the task atomically. This is the only way
// task content changes after creation; concurrent callers are serialized,
// so read-modify-write inside the mutator cannot lose updates.
func (r *Registry) Update(id string, mutate func(*model.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	mutate(t)
	if t.Status.Terminal() && t.CompletedAt == nil {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	return nil
}

// Sweep removes terminal tasks whose completion is older than the
// retention window and returns how many were evicted.
func (r *Registry) Sweep() int {
	cutoff := time.Now().UTC().Add(-r.retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, t := range r.tasks {
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(r.tasks, id)
			n++
		}
	}
	r.evicted += uint64(n)
	return n
}

// StartSweeper runs Sweep on a ticker until the context is canceled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					obs.Logger.Info("tasks_swept", "evicted", n)
				}
			}
		}
	}()
}

// Len returns the number of tasks currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Metrics returns lifetime created/evicted counters and the current size.
func (r *Registry) Metrics() (created, evicted uint64, active int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, r.evicted, len(r.tasks)
}
