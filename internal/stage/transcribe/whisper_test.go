package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// scriptedRunner distinguishes ffprobe calls from whisper calls by binary
// name and replays the configured outcome for each.
type scriptedRunner struct {
	probeOut string
	probeErr error

	whisperErr    error
	whisperStderr string
	onWhisper     func()

	whisperCalls [][]string
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	if strings.Contains(name, "ffprobe") {
		return r.probeOut, "", r.probeErr
	}
	r.whisperCalls = append(r.whisperCalls, append([]string{name}, args...))
	if r.onWhisper != nil {
		r.onWhisper()
	}
	return "", r.whisperStderr, r.whisperErr
}

func newTranscriber(runner *scriptedRunner) *Transcriber {
	return New(Config{
		WhisperPath:           "whisper",
		Model:                 "base",
		FFProbePath:           "ffprobe",
		BaseTimeout:           2 * time.Minute,
		SecondsPerMediaSecond: 1.5,
	}, runner, nil)
}

// TestBudgetScalesWithDuration checks the proportional budget:
// base + ceil(duration × factor) seconds.
func TestBudgetScalesWithDuration(t *testing.T) {
	t.Parallel()

	tr := newTranscriber(&scriptedRunner{})

	require.Equal(t, 2*time.Minute, tr.budget(0))
	require.Equal(t, 2*time.Minute+90*time.Second, tr.budget(time.Minute))
	// 10.5s of media at 1.5x rounds up to 16s.
	require.Equal(t, 2*time.Minute+16*time.Second, tr.budget(10500*time.Millisecond))
}

// TestDeadlineFallsBackWhenProbeFails checks the bounded fallback of
// 10 × base when ffprobe cannot report a duration.
func TestDeadlineFallsBackWhenProbeFails(t *testing.T) {
	t.Parallel()

	tr := newTranscriber(&scriptedRunner{probeOut: "not-a-number"})
	require.Equal(t, 20*time.Minute, tr.deadlineFor(context.Background(), "/tmp/audio.mp3"))
}

func TestTranscribeParsesWhisperOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	media := filepath.Join(dir, "audio.mp3")
	runner := &scriptedRunner{
		probeOut: "12.7\n",
		onWhisper: func() {
			payload := `{"text":"  hello world  ","language":"en","segments":[]}`
			require.NoError(t, os.WriteFile(filepath.Join(dir, "audio.json"), []byte(payload), 0o600))
		},
	}
	tr := newTranscriber(runner)

	strategies := tr.Strategies(media, dir)
	require.Len(t, strategies, 1)
	require.Equal(t, "whisper", strategies[0].Name)

	res, err := strategies[0].Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello world", res.Text)
	require.Equal(t, "en", res.Language)

	require.Len(t, runner.whisperCalls, 1)
	call := runner.whisperCalls[0]
	require.Equal(t, media, call[1])
	require.Contains(t, call, "--output_format")
	require.Contains(t, call, "json")
	require.Contains(t, call, "--output_dir")
	require.Contains(t, call, dir)
}

// TestTranscribeEmptyTextIsFatal ensures silence does not succeed with an
// empty transcript.
func TestTranscribeEmptyTextIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &scriptedRunner{
		probeOut: "3.0",
		onWhisper: func() {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "audio.json"), []byte(`{"text":"  "}`), 0o600))
		},
	}
	tr := newTranscriber(runner)

	_, err := tr.Strategies(filepath.Join(dir, "audio.mp3"), dir)[0].Run(context.Background())
	require.Error(t, err)
	require.Equal(t, pipeline.ClassFatal, pipeline.Classify(err))
}

func TestTranscribeMissingOutputIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tr := newTranscriber(&scriptedRunner{probeOut: "3.0"})

	_, err := tr.Strategies(filepath.Join(dir, "audio.mp3"), dir)[0].Run(context.Background())
	require.Error(t, err)
	require.Equal(t, pipeline.ClassFatal, pipeline.Classify(err))
}
