// Package stage provides shared helpers for the pipeline stage adapters.
package stage

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes an external tool and returns its stdout/stderr. The
// stage adapters depend on this interface so tests can substitute the
// yt-dlp/whisper/ffprobe binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands via os/exec, honoring ctx cancellation.
type ExecRunner struct{}

// Run executes name with args and captures both output streams.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	return out.String(), errOut.String(), err
}
