package server

import (
	"context"
	"sync"
	"time"

	"reelforge/internal/history"
	"reelforge/internal/pipeline"
	"reelforge/internal/services"
)

// RunStatus is the lifecycle state of a tracked run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// RunView is the JSON shape returned for a run.
type RunView struct {
	ID        string            `json:"run_id"`
	Status    RunStatus         `json:"status"`
	Progress  pipeline.Progress `json:"progress"`
	Result    *pipeline.Result  `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	StartedAt time.Time         `json:"started_at"`
}

type trackedRun struct {
	view   RunView
	record *history.Record
	cancel context.CancelFunc
}

// registry tracks runs started by this server. Finished runs beyond
// maxFinished are evicted oldest first.
type registry struct {
	mu          sync.Mutex
	runs        map[string]*trackedRun
	order       []string
	maxFinished int
}

func newRegistry(maxFinished int) *registry {
	if maxFinished <= 0 {
		maxFinished = history.MaxRecords
	}
	return &registry{runs: make(map[string]*trackedRun), maxFinished: maxFinished}
}

func (r *registry) start(id string, cancel context.CancelFunc, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[id] = &trackedRun{
		view: RunView{
			ID:        id,
			Status:    RunRunning,
			Progress:  pipeline.Progress{RunID: id},
			StartedAt: now,
		},
		cancel: cancel,
	}
	r.order = append(r.order, id)
}

func (r *registry) progress(id string, p pipeline.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		p.RunID = id
		run.view.Progress = p
	}
}

func (r *registry) succeed(id string, rec history.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	run.view.Status = RunSucceeded
	run.view.Progress.Stage = pipeline.StageReady
	result := rec.Result
	run.view.Result = &result
	run.record = &rec
	run.cancel = nil
	r.evict()
}

func (r *registry) fail(id string, err error, canceled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	run.view.Status = RunFailed
	if canceled {
		run.view.Status = RunCanceled
	}
	run.view.Error = err.Error()
	run.view.ErrorKind = services.Kind(err)
	run.cancel = nil
	r.evict()
}

func (r *registry) update(rec history.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[rec.ID]; ok && run.view.Status == RunSucceeded {
		result := rec.Result
		run.view.Result = &result
		run.record = &rec
	}
}

func (r *registry) get(id string) (RunView, *history.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return RunView{}, nil, false
	}
	return run.view, run.record, true
}

// cancelRun stops a running run. It reports false when id is unknown or
// already finished.
func (r *registry) cancelRun(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.cancel == nil {
		return false
	}
	run.cancel()
	return true
}

func (r *registry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.cancel != nil {
			run.cancel()
		}
	}
}

func (r *registry) evict() {
	finished := 0
	for _, id := range r.order {
		if r.runs[id].view.Status != RunRunning {
			finished++
		}
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if finished > r.maxFinished && r.runs[id].view.Status != RunRunning {
			delete(r.runs, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}
