package respond

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/artifact"
	"github.com/snarg/agrivoice/internal/orchestrate"
	"github.com/snarg/agrivoice/internal/pipeline"
	"github.com/snarg/agrivoice/internal/translate"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	langs []string
	err   error
}

func (f *fakeSynth) Name() string { return "fake_tts" }

func (f *fakeSynth) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.langs = append(f.langs, language)
	f.mu.Unlock()
	return []byte("mp3:" + text[:min(8, len(text))]), nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func newTestResponder(t *testing.T, synth *fakeSynth) *Responder {
	t.Helper()
	root := t.TempDir()
	dirs := Dirs{
		GeneratedAudio: root + "/generated",
		Playback:       root + "/playback",
		Responses:      root + "/responses",
	}
	for _, d := range []string{dirs.GeneratedAudio, dirs.Playback, dirs.Responses} {
		os.MkdirAll(d, 0o755)
	}
	chain := translate.NewChain(nil, zerolog.Nop())
	return New(chain, synth, "en", "hi", dirs, zerolog.Nop())
}

func englishCall(taskID string) (*orchestrate.Advisory, *artifact.Transcript) {
	adv := &orchestrate.Advisory{
		TaskID:   taskID,
		Query:    "will it rain",
		Response: "Rain is expected on Wednesday. Hold irrigation until then.",
		Phone:    "9876543210",
	}
	tr := &artifact.Transcript{
		FilePath: "/data/recordings/transcripts/" + taskID + "_transcript.json",
		Transcription: artifact.Transcription{
			Transcript: "will it rain this week",
			Language:   "en-IN",
		},
	}
	return adv, tr
}

func TestRespondWritesRecordAndPlayback(t *testing.T) {
	synth := &fakeSynth{}
	r := newTestResponder(t, synth)
	adv, tr := englishCall("call42")

	res, err := r.Respond(context.Background(), adv, tr)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	data, err := os.ReadFile(res.ResponseJSON)
	if err != nil {
		t.Fatalf("response record missing: %v", err)
	}
	var record artifact.Response
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.FarmerPhone != "9876543210" || record.FarmerInput != "will it rain" {
		t.Errorf("record = %+v", record)
	}
	if record.Metadata["language"] != "en" {
		t.Errorf("language = %q, want en (same as pivot, no translation)", record.Metadata["language"])
	}

	if _, err := os.Stat(res.PlaybackMP3); err != nil {
		t.Fatalf("playback audio missing: %v", err)
	}
	if !strings.HasSuffix(res.PlaybackMP3, "call42_response.mp3") {
		t.Errorf("playback path = %s", res.PlaybackMP3)
	}
	if len(synth.calls) != 1 {
		t.Errorf("short response should synthesise in one chunk, got %d", len(synth.calls))
	}
	if synth.langs[0] != "en" {
		t.Errorf("synthesised in %q, want en", synth.langs[0])
	}
}

func TestRespondMultiChunkConcat(t *testing.T) {
	synth := &fakeSynth{}
	r := newTestResponder(t, synth)

	var concatCalls int
	r.concat = func(ctx context.Context, segments []string, out string) error {
		concatCalls++
		if len(segments) < 2 {
			t.Errorf("concat with %d segments", len(segments))
		}
		return os.WriteFile(out, []byte("joined"), 0o644)
	}

	adv, tr := englishCall("longcall")
	adv.Response = strings.Repeat("This sentence pads the advisory well past one chunk. ", 200)

	res, err := r.Respond(context.Background(), adv, tr)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(synth.calls) < 2 {
		t.Errorf("got %d chunks, want several for a ~10KB response", len(synth.calls))
	}
	if concatCalls != 1 {
		t.Errorf("concat called %d times, want 1", concatCalls)
	}
	if _, err := os.Stat(res.PlaybackMP3); err != nil {
		t.Errorf("playback audio missing: %v", err)
	}
}

func TestRespondTTSFailureKeepsRecord(t *testing.T) {
	synth := &fakeSynth{err: errors.New("quota exceeded")}
	r := newTestResponder(t, synth)
	adv, tr := englishCall("failing")

	res, err := r.Respond(context.Background(), adv, tr)
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Kind != pipeline.KindTTSFailed {
		t.Errorf("err = %v, want TTSFailed stage error", err)
	}
	if res == nil || res.PlaybackMP3 != "" {
		t.Fatalf("result = %+v, want record path with no playback", res)
	}
	if _, statErr := os.Stat(res.ResponseJSON); statErr != nil {
		t.Error("response record must be written before synthesis")
	}
}

func TestRespondUntranslatableFallsBackToPivot(t *testing.T) {
	synth := &fakeSynth{}
	r := newTestResponder(t, synth)

	adv, tr := englishCall("hindi1")
	tr.Transcription.Language = "hi-IN" // wants Hindi back, chain has no providers

	res, err := r.Respond(context.Background(), adv, tr)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Language != "en" {
		t.Errorf("language = %q, want pivot fallback en", res.Language)
	}
	if res.SpokenText != adv.Response {
		t.Errorf("spoken text should be the untranslated advisory")
	}
}
