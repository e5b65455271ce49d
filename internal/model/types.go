// Package model defines domain types used by the service.
package model

import "time"

// TaskKind distinguishes search tasks from order tasks.
type TaskKind string

const (
	KindSearch TaskKind = "search"
	KindOrder  TaskKind = "order"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is a final one.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProbeResult is the settled outcome of one storefront's price lookup.
// Immutable once recorded against a task.
type ProbeResult struct {
	App   string   `json:"app"`
	Found bool     `json:"found"`
	Price *float64 `json:"price,omitempty"`
	Label string   `json:"label,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Offer is the winning storefront and price selected for a search task.
type Offer struct {
	App   string  `json:"app"`
	Price float64 `json:"price"`
}

// Task is a tracked unit of work, either a search or an order.
// Owned by the registry; mutated only through registry.Update.
type Task struct {
	ID          string                 `json:"task_id"`
	Kind        TaskKind               `json:"kind"`
	Query       string                 `json:"product"`
	Status      TaskStatus             `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Dispatched  int                    `json:"dispatched,omitempty"`
	Settled     int                    `json:"settled,omitempty"`
	Results     map[string]ProbeResult `json:"results,omitempty"`
	Best        *Offer                 `json:"best,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Clone returns a copy safe to hand out while the original keeps mutating.
func (t *Task) Clone() Task {
	cp := *t
	if t.Results != nil {
		cp.Results = make(map[string]ProbeResult, len(t.Results))
		for k, v := range t.Results {
			cp.Results[k] = v
		}
	}
	if t.Best != nil {
		b := *t.Best
		cp.Best = &b
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return cp
}

// Update is one push notification about a task's progress. Field presence
// follows the wire contract: a probe start carries current_app, a settled
// probe carries app_complete plus its result, and terminal updates carry
// status with an optional best offer or error.
type Update struct {
	Seq         uint64       `json:"seq"`
	Status      string       `json:"status,omitempty"`
	CurrentApp  string       `json:"current_app,omitempty"`
	AppComplete string       `json:"app_complete,omitempty"`
	Result      *ProbeResult `json:"result,omitempty"`
	Best        *Offer       `json:"best,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Terminal reports whether this update ends the task's event stream.
func (u Update) Terminal() bool {
	return u.Status == string(StatusCompleted) || u.Status == "error"
}
