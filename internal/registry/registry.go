// Package registry tracks in-flight jobs for observability.
package registry

import (
	"sync"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// Registry is an append/remove-only view of running jobs. One entry is
// written at job start and removed at job end; nothing in the pipeline
// reads entries back.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]pipeline.Job
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]pipeline.Job)}
}

// Add records a job at start. Adding an existing ID overwrites it; IDs
// are UUIDs so collisions indicate a caller bug, not a runtime condition.
func (r *Registry) Add(job pipeline.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// SetStage updates the stage label of a running job.
func (r *Registry) SetStage(jobID, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	job.Stage = stage
	job.Status = pipeline.JobStatusRunning
	r.jobs[jobID] = job
}

// Remove drops a job at end.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// Len reports the number of in-flight jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Snapshot returns a copy of the in-flight jobs.
func (r *Registry) Snapshot() []pipeline.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]pipeline.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out
}
