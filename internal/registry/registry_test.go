package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	r := New()
	require.Zero(t, r.Len())

	job := pipeline.Job{
		ID:        "job-1",
		URL:       "https://example.com/v",
		Kind:      pipeline.KindTranscribe,
		Status:    pipeline.JobStatusRunning,
		Submitted: time.Now().UTC(),
	}
	r.Add(job)
	require.Equal(t, 1, r.Len())

	r.SetStage("job-1", "download")
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "download", snap[0].Stage)
	require.Equal(t, pipeline.JobStatusRunning, snap[0].Status)

	// Stage updates for unknown jobs are ignored.
	r.SetStage("missing", "download")
	require.Equal(t, 1, r.Len())

	r.Remove("job-1")
	require.Zero(t, r.Len())
	require.Empty(t, r.Snapshot())
}

// TestSnapshotIsCopy ensures callers cannot mutate registry state through
// the returned slice.
func TestSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	r := New()
	r.Add(pipeline.Job{ID: "job-1", Stage: "download"})

	snap := r.Snapshot()
	snap[0].Stage = "mutated"

	require.Equal(t, "download", r.Snapshot()[0].Stage)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			r.Add(pipeline.Job{ID: "a"})
			r.SetStage("a", "download")
			r.Remove("a")
		}
	}()
	for i := 0; i < 100; i++ {
		r.Snapshot()
		r.Len()
	}
	<-done
}
