package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// State tracks a recording's progress through the pipeline. Transitions are
// one-way; Failed is terminal and carries an error kind.
type State int

const (
	StatePending State = iota
	StateConverting
	StateTranscribing
	StateTranslating
	StateTranscriptReady
	StateOrchestrating
	StateResponding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConverting:
		return "converting"
	case StateTranscribing:
		return "transcribing"
	case StateTranslating:
		return "translating"
	case StateTranscriptReady:
		return "transcript_ready"
	case StateOrchestrating:
		return "orchestrating"
	case StateResponding:
		return "responding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Kind classifies a stage failure.
type Kind int

const (
	KindNotReady Kind = iota
	KindConversionFailed
	KindTranscriptionFailed
	KindTranslationFailed
	KindAgentFailed
	KindAllAgentsFailed
	KindSynthesisFailed
	KindTTSFailed
	KindTimeout
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "not_ready"
	case KindConversionFailed:
		return "conversion_failed"
	case KindTranscriptionFailed:
		return "transcription_failed"
	case KindTranslationFailed:
		return "translation_failed"
	case KindAgentFailed:
		return "agent_failed"
	case KindAllAgentsFailed:
		return "all_agents_failed"
	case KindSynthesisFailed:
		return "synthesis_failed"
	case KindTTSFailed:
		return "tts_failed"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// StageError wraps a stage failure with its kind so callers can classify
// with errors.As without string matching.
type StageError struct {
	Kind Kind
	Err  error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Errf builds a StageError with a formatted message.
func Errf(kind Kind, format string, args ...any) *StageError {
	return &StageError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Task is one unit of work: a single recording dropped into the monitor
// directory. The id is derived from the source filename and is stable
// across restarts.
type Task struct {
	ID         string
	SourcePath string
	DetectedAt time.Time

	state State
}

// NewTask derives a task from an audio file path. The id is the base name
// without extension; directory separators never appear in ids.
func NewTask(sourcePath string) Task {
	base := filepath.Base(sourcePath)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	return Task{
		ID:         id,
		SourcePath: sourcePath,
		DetectedAt: time.Now().UTC(),
		state:      StatePending,
	}
}

// State returns the task's current state.
func (t *Task) State() State { return t.state }

// Advance moves the task forward. Backward or repeated transitions are
// rejected so stage ordering bugs surface immediately.
func (t *Task) Advance(next State) error {
	if t.state == StateFailed || t.state == StateDone {
		return fmt.Errorf("task %s is terminal (%s)", t.ID, t.state)
	}
	if next != StateFailed && next <= t.state {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.ID, t.state, next)
	}
	t.state = next
	return nil
}

// AudioExts lists the recording suffixes the watcher accepts.
var AudioExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".gsm":  true,
	".ulaw": true,
	".alaw": true,
	".sln":  true,
	".g722": true,
	".au":   true,
}

// IsAudioPath reports whether the path carries a recognised audio suffix.
func IsAudioPath(path string) bool {
	return AudioExts[strings.ToLower(filepath.Ext(path))]
}
