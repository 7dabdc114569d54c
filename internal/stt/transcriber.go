package stt

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// syncLimit is the longest recording sent through synchronous
	// recognition.
	syncLimit = 60 * time.Second

	// Chunked-mode window geometry. Overlap keeps words that straddle a
	// boundary from being lost.
	chunkWindow  = 50 * time.Second
	chunkOverlap = 5 * time.Second
)

// Transcriber picks the recognition path for a recording: synchronous for
// short audio, long-running for the rest, chunked windows as a fallback
// when the long-running job fails.
type Transcriber struct {
	rec            Recognizer
	longRunTimeout time.Duration
	log            zerolog.Logger
}

// NewTranscriber wires a transcriber over the given backend.
func NewTranscriber(rec Recognizer, longRunTimeout time.Duration, log zerolog.Logger) *Transcriber {
	if longRunTimeout <= 0 {
		longRunTimeout = 10 * time.Minute
	}
	return &Transcriber{
		rec:            rec,
		longRunTimeout: longRunTimeout,
		log:            log.With().Str("component", "transcriber").Logger(),
	}
}

// Transcribe recognises the WAV at wavPath. The returned result always has
// Duration filled from the file header.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath string, opts Opts) (*Result, error) {
	info, err := ReadWavInfo(wavPath)
	if err != nil {
		return nil, fmt.Errorf("inspect wav: %w", err)
	}
	duration := info.Duration()
	if opts.SampleRate <= 0 {
		opts.SampleRate = info.SampleRate
	}

	if duration <= syncLimit.Seconds() {
		res, err := t.rec.Recognize(ctx, wavPath, opts)
		if err != nil {
			return nil, err
		}
		res.Duration = duration
		return res, nil
	}

	lrCtx, cancel := context.WithTimeout(ctx, t.longRunTimeout)
	res, err := t.rec.RecognizeLongRunning(lrCtx, wavPath, opts)
	cancel()
	if err == nil {
		res.Duration = duration
		return res, nil
	}

	t.log.Warn().Err(err).Str("path", wavPath).
		Float64("duration_s", duration).
		Msg("long-running recognition failed, falling back to chunked mode")

	res, err = t.transcribeChunked(ctx, wavPath, info, opts)
	if err != nil {
		return nil, err
	}
	res.Duration = duration
	return res, nil
}

// transcribeChunked slices the recording into overlapping windows,
// recognises each synchronously, and merges: transcripts concatenated in
// order, confidences averaged over the chunks that produced text.
func (t *Transcriber) transcribeChunked(ctx context.Context, wavPath string, info WavInfo, opts Opts) (*Result, error) {
	duration := info.Duration()
	step := (chunkWindow - chunkOverlap).Seconds()

	var parts []string
	var confSum float64
	var confN int
	lang := ""

	for start := 0.0; start < duration; start += step {
		wav, err := SliceWav(wavPath, info, start, chunkWindow.Seconds())
		if err != nil {
			return nil, fmt.Errorf("slice chunk at %.0fs: %w", start, err)
		}

		tmp, err := os.CreateTemp("", "agrivoice-chunk-*.wav")
		if err != nil {
			return nil, err
		}
		if _, err := tmp.Write(wav); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return nil, err
		}
		tmp.Close()

		res, err := t.rec.Recognize(ctx, tmp.Name(), opts)
		os.Remove(tmp.Name())
		if err != nil {
			t.log.Warn().Err(err).Float64("offset_s", start).Msg("chunk recognition failed, skipping window")
			continue
		}

		if txt := strings.TrimSpace(res.Transcript); txt != "" {
			parts = append(parts, txt)
			confSum += res.Confidence
			confN++
		}
		if res.Language != "" {
			lang = res.Language
		}
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("all %d chunks failed or returned empty transcripts", int(duration/step)+1)
	}

	res := &Result{
		Transcript: strings.Join(parts, " "),
		Language:   lang,
	}
	if confN > 0 {
		res.Confidence = confSum / float64(confN)
	}
	return res, nil
}
