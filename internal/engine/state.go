package engine

import (
	"sync"
	"time"
)

// Status is the pipeline lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusFailed
}

// RunState is a point-in-time snapshot of the current or most recent run.
// Progress is monotonic and never exceeds Total; Total is zero until
// discovery across all selected sources has finished.
type RunState struct {
	Status        Status     `json:"status"`
	Provider      string     `json:"provider,omitempty"`
	Model         string     `json:"model,omitempty"`
	Sources       []string   `json:"sources,omitempty"`
	Total         int        `json:"total"`
	Progress      int        `json:"progress"`
	CurrentTask   string     `json:"current_task,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	StopRequested bool       `json:"stop_requested"`
}

// tracker is the shared run state. The run goroutine is the only writer;
// any goroutine may snapshot it.
type tracker struct {
	mu    sync.RWMutex
	state RunState
}

func newTracker() *tracker {
	return &tracker{state: RunState{Status: StatusIdle}}
}

// begin resets the tracker for a new run.
func (t *tracker) begin(provider, model string, srcNames []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.state = RunState{
		Status:    StatusRunning,
		Provider:  provider,
		Model:     model,
		Sources:   append([]string(nil), srcNames...),
		StartedAt: &now,
	}
}

func (t *tracker) setTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Total = n
}

func (t *tracker) setTask(task string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.CurrentTask = task
}

func (t *tracker) incProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Progress < t.state.Total {
		t.state.Progress++
	}
}

func (t *tracker) requestStop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.StopRequested = true
}

// finish records the terminal status. errMsg is empty unless failed.
func (t *tracker) finish(status Status, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.state.Status = status
	t.state.CurrentTask = ""
	t.state.FinishedAt = &now
	t.state.Error = errMsg
}

// snapshot returns a copy; callers never hold the lock.
func (t *tracker) snapshot() RunState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.state
	s.Sources = append([]string(nil), t.state.Sources...)
	return s
}
