// Package artifact defines the JSON records the pipeline persists and the
// atomic write discipline they share. Files are written to a temp name and
// renamed into place so the watcher never sees a partial file.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Transcription is the speech-to-text half of a transcript record.
type Transcription struct {
	Transcript string           `json:"transcript"`
	Language   string           `json:"language"`
	Confidence float64          `json:"confidence"`
	Duration   float64          `json:"duration"`
	Speakers   []SpeakerSegment `json:"speakers,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// SpeakerSegment is one diarized span of the recording.
type SpeakerSegment struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Translation is the pivot-language half of a transcript record.
type Translation struct {
	TranslatedText string `json:"translated_text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Service        string `json:"service"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// Transcript is the artifact written once per recording. A partial-success
// record is still written: Success is false when transcription or both
// translation paths failed.
type Transcript struct {
	FilePath      string        `json:"file_path"`
	Timestamp     time.Time     `json:"timestamp"`
	Transcription Transcription `json:"transcription"`
	Translation   Translation   `json:"translation"`
	Success       bool          `json:"success"`

	// TaskID is carried in memory for the orchestrator handoff; it is
	// recoverable from FilePath so it is not persisted separately.
	TaskID string `json:"-"`
}

// Response is the terminal artifact written next to the playback audio.
type Response struct {
	Timestamp              time.Time         `json:"timestamp"`
	OriginalTranscriptFile string            `json:"original_transcript_file"`
	FarmerInput            string            `json:"farmer_input"`
	FarmerPhone            string            `json:"farmer_phone"`
	OrchestratorResponse   json.RawMessage   `json:"orchestrator_response"`
	Metadata               map[string]string `json:"metadata"`
}

// WriteJSON marshals v and renames it into place at path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// TranscriptPath returns the deterministic transcript filename for a task id.
func TranscriptPath(dir, taskID string) string {
	return filepath.Join(dir, taskID+"_transcript.json")
}

// ResponsePath returns the deterministic response filename for a task id.
func ResponsePath(dir, taskID string) string {
	return filepath.Join(dir, taskID+"_response.json")
}
