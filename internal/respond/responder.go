// Package respond closes the loop: it translates the advisory back to the
// caller's language, synthesises speech, and stages the playback artifact
// the IVR picks up.
package respond

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/snarg/agrivoice/internal/artifact"
	"github.com/snarg/agrivoice/internal/audioconv"
	"github.com/snarg/agrivoice/internal/orchestrate"
	"github.com/snarg/agrivoice/internal/pipeline"
	"github.com/snarg/agrivoice/internal/stt"
	"github.com/snarg/agrivoice/internal/translate"
	"github.com/snarg/agrivoice/internal/tts"
)

// ttsChunkBytes is the per-request text ceiling of the speech API.
const ttsChunkBytes = 4500

// Result reports where the responder left its artifacts.
type Result struct {
	ResponseJSON string
	PlaybackMP3  string // empty when synthesis failed
	SpokenText   string
	Language     string
}

// Responder renders one advisory into its terminal artifacts.
type Responder struct {
	chain         *translate.Chain
	synth         tts.Synthesizer
	pivot         string
	defaultTarget string
	genDir        string
	playbackDir   string
	responsesDir  string
	concat        func(ctx context.Context, segments []string, out string) error
	log           zerolog.Logger
}

type Dirs struct {
	GeneratedAudio string
	Playback       string
	Responses      string
}

func New(chain *translate.Chain, synth tts.Synthesizer, pivot, defaultTarget string, dirs Dirs, log zerolog.Logger) *Responder {
	return &Responder{
		chain:         chain,
		synth:         synth,
		pivot:         pivot,
		defaultTarget: defaultTarget,
		genDir:        dirs.GeneratedAudio,
		playbackDir:   dirs.Playback,
		responsesDir:  dirs.Responses,
		concat:        audioconv.Concat,
		log:           log.With().Str("component", "responder").Logger(),
	}
}

// Respond translates the advisory into the farmer's language, writes the
// response record, and synthesises the playback audio. The JSON record is
// written before synthesis so a TTS outage never loses the advisory text.
func (r *Responder) Respond(ctx context.Context, adv *orchestrate.Advisory, tr *artifact.Transcript) (*Result, error) {
	target := stt.NormalizeLanguage(tr.Transcription.Language)
	if target == "" {
		target = r.defaultTarget
	}

	spoken := adv.Response
	trans := r.chain.Translate(ctx, adv.Response, r.pivot, target)
	if trans.Success {
		spoken = trans.Text
	} else {
		r.log.Warn().Err(trans.Err).Str("target", target).
			Msg("translation back failed, speaking pivot-language response")
		target = r.pivot
	}

	res := &Result{
		ResponseJSON: artifact.ResponsePath(r.responsesDir, adv.TaskID),
		SpokenText:   spoken,
		Language:     target,
	}

	record := artifact.Response{
		Timestamp:              time.Now().UTC(),
		OriginalTranscriptFile: tr.FilePath,
		FarmerInput:            adv.Query,
		FarmerPhone:            adv.Phone,
		OrchestratorResponse:   adv.FindingsJSON(),
		Metadata: map[string]string{
			"language":            target,
			"translation_service": trans.Service,
			"spoken_text":         spoken,
		},
	}
	if err := artifact.WriteJSON(res.ResponseJSON, &record); err != nil {
		return nil, fmt.Errorf("write response record: %w", err)
	}

	playback, err := r.synthesizeAudio(ctx, adv.TaskID, spoken, target)
	if err != nil {
		return res, err
	}
	res.PlaybackMP3 = playback
	return res, nil
}

// synthesizeAudio renders the spoken text chunk by chunk and stages the
// joined MP3 in the playback directory.
func (r *Responder) synthesizeAudio(ctx context.Context, taskID, text, language string) (string, error) {
	chunks := translate.Chunk(text, ttsChunkBytes)
	if len(chunks) == 0 {
		return "", pipeline.Errf(pipeline.KindTTSFailed, "nothing to synthesise for task %s", taskID)
	}

	final := filepath.Join(r.genDir, taskID+"_response.mp3")

	if len(chunks) == 1 {
		audio, err := r.synth.Synthesize(ctx, chunks[0], language)
		if err != nil {
			return "", pipeline.Errf(pipeline.KindTTSFailed, "via %s: %v", r.synth.Name(), err)
		}
		if err := os.WriteFile(final, audio, 0o644); err != nil {
			return "", pipeline.Errf(pipeline.KindTTSFailed, "write audio: %v", err)
		}
	} else {
		segments := make([]string, len(chunks))
		defer func() {
			for _, seg := range segments {
				if seg != "" {
					os.Remove(seg)
				}
			}
		}()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(3)
		for i, chunk := range chunks {
			i, chunk := i, chunk
			g.Go(func() error {
				audio, err := r.synth.Synthesize(gctx, chunk, language)
				if err != nil {
					return pipeline.Errf(pipeline.KindTTSFailed,
						"chunk %d/%d via %s: %v", i+1, len(chunks), r.synth.Name(), err)
				}
				seg := filepath.Join(r.genDir, fmt.Sprintf("%s_seg_%02d.mp3", taskID, i))
				if err := os.WriteFile(seg, audio, 0o644); err != nil {
					return pipeline.Errf(pipeline.KindTTSFailed, "write segment: %v", err)
				}
				segments[i] = seg
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		if err := r.concat(ctx, segments, final); err != nil {
			return "", pipeline.Errf(pipeline.KindTTSFailed, "join %d segments: %v", len(segments), err)
		}
	}

	playback := filepath.Join(r.playbackDir, taskID+"_response.mp3")
	if err := copyFile(final, playback); err != nil {
		return "", pipeline.Errf(pipeline.KindTTSFailed, "stage playback: %v", err)
	}

	r.log.Info().
		Str("task_id", taskID).
		Str("language", language).
		Int("chunks", len(chunks)).
		Str("playback", playback).
		Msg("playback audio staged")
	return playback, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
