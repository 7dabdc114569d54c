// Package worker drives tasks through the pipeline: convert, transcribe,
// translate to the pivot language, orchestrate the advisory, and render
// the response. A fixed pool of goroutines consumes the watcher's queue.
package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/artifact"
	"github.com/snarg/agrivoice/internal/bus"
	"github.com/snarg/agrivoice/internal/metrics"
	"github.com/snarg/agrivoice/internal/notify"
	"github.com/snarg/agrivoice/internal/orchestrate"
	"github.com/snarg/agrivoice/internal/pipeline"
	"github.com/snarg/agrivoice/internal/respond"
	"github.com/snarg/agrivoice/internal/stt"
	"github.com/snarg/agrivoice/internal/translate"
)

// Converter transcodes a recording to canonical WAV.
type Converter interface {
	Convert(ctx context.Context, src string) (string, error)
}

// Transcriber recognises speech from a WAV file.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string, opts stt.Opts) (*stt.Result, error)
}

// Translator moves text between languages.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) translate.Result
}

// Advisor produces the advisory for one transcript.
type Advisor interface {
	Process(ctx context.Context, in orchestrate.Input) (*orchestrate.Advisory, error)
}

// Responder renders the advisory's terminal artifacts.
type Responder interface {
	Respond(ctx context.Context, adv *orchestrate.Advisory, tr *artifact.Transcript) (*respond.Result, error)
}

// Notifier announces a staged playback to the IVR.
type Notifier interface {
	Publish(n notify.Notice) error
}

// Archiver copies terminal artifacts to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, taskID string, paths ...string)
}

// Stages bundles the pipeline's stage implementations. Notifier and
// Archiver are optional; nil skips the step.
type Stages struct {
	Converter   Converter
	Transcriber Transcriber
	Translator  Translator
	Advisor     Advisor
	Responder   Responder
	Notifier    Notifier
	Archiver    Archiver
}

// Options tunes the pool.
type Options struct {
	Workers         int
	QueueSize       int
	PrimaryLanguage string // BCP-47, e.g. hi-IN
	AltLanguages    []string
	AutoDetect      bool
	SpeechModel     string
	SampleRate      int
	Enhanced        bool
	Diarization     bool
	PhraseHints     []string // empty means stt.DefaultPhraseHints
	PivotLanguage   string   // base code the orchestrator reasons in
	TranscriptsDir  string
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.PivotLanguage == "" {
		o.PivotLanguage = "en"
	}
	if len(o.PhraseHints) == 0 {
		o.PhraseHints = stt.DefaultPhraseHints
	}
}

// Pool runs tasks through the stages with a fixed worker count.
type Pool struct {
	opts   Options
	stages Stages
	tasks  chan pipeline.Task
	bus    *bus.Bus
	log    zerolog.Logger

	wg        sync.WaitGroup
	processed atomic.Int64
	failed    atomic.Int64
}

// NewPool builds a pool; Start launches the workers.
func NewPool(opts Options, stages Stages, b *bus.Bus, log zerolog.Logger) *Pool {
	opts.defaults()
	return &Pool{
		opts:   opts,
		stages: stages,
		tasks:  make(chan pipeline.Task, opts.QueueSize),
		bus:    b,
		log:    log.With().Str("component", "worker").Logger(),
	}
}

// Tasks is the sink the watcher feeds.
func (p *Pool) Tasks() chan<- pipeline.Task { return p.tasks }

// Start launches the workers. They exit when the queue is closed via Stop
// or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					metrics.QueueDepth.Set(float64(len(p.tasks)))
					metrics.ActiveWorkers.Inc()
					p.run(ctx, &task)
					metrics.ActiveWorkers.Dec()
				}
			}
		}(i)
	}
	p.log.Info().Int("workers", p.opts.Workers).Msg("worker pool started")
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
	p.log.Info().
		Int64("processed", p.processed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("worker pool stopped")
}

// Stats reports lifetime counts.
func (p *Pool) Stats() (processed, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

func (p *Pool) run(ctx context.Context, task *pipeline.Task) {
	log := p.log.With().Str("task_id", task.ID).Logger()
	started := time.Now()

	tr, err := p.transcribeStage(ctx, task, log)
	if err != nil {
		p.fail(task, err, log)
		return
	}

	p.advance(task, pipeline.StateOrchestrating)
	t0 := time.Now()
	adv, err := p.stages.Advisor.Process(ctx, orchestrate.Input{
		TaskID:     task.ID,
		Transcript: orchestratorText(tr),
		CallerID:   CallerIDFromFilename(task.SourcePath),
	})
	metrics.StageDuration.WithLabelValues("orchestrate").Observe(time.Since(t0).Seconds())
	if err != nil {
		p.fail(task, err, log)
		return
	}

	p.advance(task, pipeline.StateResponding)
	t0 = time.Now()
	res, err := p.stages.Responder.Respond(ctx, adv, tr)
	metrics.StageDuration.WithLabelValues("respond").Observe(time.Since(t0).Seconds())
	if err != nil {
		p.fail(task, err, log)
		return
	}

	if p.stages.Archiver != nil {
		p.stages.Archiver.Archive(ctx, task.ID, res.ResponseJSON, res.PlaybackMP3)
	}
	if p.stages.Notifier != nil && res.PlaybackMP3 != "" {
		if err := p.stages.Notifier.Publish(notify.Notice{
			TaskID:      task.ID,
			Phone:       adv.Phone,
			PlaybackMP3: res.PlaybackMP3,
			Language:    res.Language,
			CompletedAt: time.Now().UTC(),
		}); err != nil {
			log.Warn().Err(err).Msg("playback notice failed")
		}
	}

	p.advance(task, pipeline.StateDone)
	p.processed.Add(1)
	metrics.TasksTotal.WithLabelValues("done").Inc()
	log.Info().
		Str("playback", res.PlaybackMP3).
		Str("language", res.Language).
		Dur("elapsed", time.Since(started)).
		Msg("task complete")
}

// transcribeStage covers conversion, recognition, and pivot translation,
// and persists the transcript artifact. A failed recognition still writes
// the record so operators can see what happened.
func (p *Pool) transcribeStage(ctx context.Context, task *pipeline.Task, log zerolog.Logger) (*artifact.Transcript, error) {
	p.advance(task, pipeline.StateConverting)
	t0 := time.Now()
	wav, err := p.stages.Converter.Convert(ctx, task.SourcePath)
	metrics.StageDuration.WithLabelValues("convert").Observe(time.Since(t0).Seconds())
	if err != nil {
		return nil, err
	}

	p.advance(task, pipeline.StateTranscribing)
	record := &artifact.Transcript{
		FilePath:  wav,
		Timestamp: time.Now().UTC(),
		TaskID:    task.ID,
	}

	opts := stt.Opts{
		LanguageCode: p.opts.PrimaryLanguage,
		Model:        p.opts.SpeechModel,
		SampleRate:   p.opts.SampleRate,
		Enhanced:     p.opts.Enhanced,
		Punctuation:  true,
		Diarization:  p.opts.Diarization,
		PhraseHints:  p.opts.PhraseHints,
	}
	if p.opts.AutoDetect {
		opts.AltLanguages = p.opts.AltLanguages
	}

	t0 = time.Now()
	res, err := p.stages.Transcriber.Transcribe(ctx, wav, opts)
	metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(t0).Seconds())
	if err != nil {
		record.Transcription.Error = err.Error()
		p.writeTranscript(record, log)
		return nil, pipeline.Errf(pipeline.KindTranscriptionFailed, "recognise %s: %v", task.ID, err)
	}

	record.Transcription = artifact.Transcription{
		Transcript: res.Transcript,
		Language:   res.Language,
		Confidence: res.Confidence,
		Duration:   res.Duration,
	}
	for _, sp := range res.Speakers {
		record.Transcription.Speakers = append(record.Transcription.Speakers, artifact.SpeakerSegment{
			Speaker:    sp.Speaker,
			Text:       sp.Text,
			Confidence: sp.Confidence,
		})
	}

	p.advance(task, pipeline.StateTranslating)
	source := res.Language
	if source == "" {
		source = p.opts.PrimaryLanguage
	}
	t0 = time.Now()
	trans := p.stages.Translator.Translate(ctx, res.Transcript, source, p.opts.PivotLanguage)
	metrics.StageDuration.WithLabelValues("translate").Observe(time.Since(t0).Seconds())
	metrics.TranslationRequestsTotal.WithLabelValues(trans.Service, translationResult(trans)).Inc()

	record.Translation = artifact.Translation{
		TranslatedText: trans.Text,
		SourceLanguage: stt.NormalizeLanguage(source),
		TargetLanguage: p.opts.PivotLanguage,
		Service:        trans.Service,
		Success:        trans.Success,
	}
	if trans.Err != nil {
		record.Translation.Error = trans.Err.Error()
	}
	// Recognition succeeded to get here, so the record stands or falls
	// with the translation chain.
	record.Success = trans.Success

	p.writeTranscript(record, log)
	p.advance(task, pipeline.StateTranscriptReady)
	return record, nil
}

func (p *Pool) writeTranscript(record *artifact.Transcript, log zerolog.Logger) {
	path := artifact.TranscriptPath(p.opts.TranscriptsDir, record.TaskID)
	if err := artifact.WriteJSON(path, record); err != nil {
		log.Error().Err(err).Str("path", path).Msg("transcript persist failed")
	}
}

func (p *Pool) advance(task *pipeline.Task, next pipeline.State) {
	if err := task.Advance(next); err != nil {
		p.log.Error().Err(err).Msg("state machine violation")
		return
	}
	p.bus.Publish(task.ID, next.String(), "")
}

func (p *Pool) fail(task *pipeline.Task, err error, log zerolog.Logger) {
	kind := pipeline.KindAgentFailed
	var se *pipeline.StageError
	if errors.As(err, &se) {
		kind = se.Kind
	}
	if errors.Is(err, context.Canceled) {
		kind = pipeline.KindCancelled
	}

	task.Advance(pipeline.StateFailed)
	p.failed.Add(1)
	metrics.TasksTotal.WithLabelValues("failed").Inc()
	metrics.StageFailures.WithLabelValues(kind.String()).Inc()
	p.bus.Publish(task.ID, pipeline.StateFailed.String(), err.Error())
	log.Error().Err(err).Str("kind", kind.String()).Msg("task failed")
}

// orchestratorText prefers the pivot translation, falling back to the raw
// transcript when translation failed.
func orchestratorText(tr *artifact.Transcript) string {
	if tr.Translation.Success && strings.TrimSpace(tr.Translation.TranslatedText) != "" {
		return tr.Translation.TranslatedText
	}
	return tr.Transcription.Transcript
}

// CallerIDFromFilename recovers the caller's number from IVR naming like
// 9876543210_20260825T101530.wav. Returns empty when the leading token is
// not a plausible phone number.
func CallerIDFromFilename(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	token := base
	if i := strings.IndexByte(base, '_'); i >= 0 {
		token = base[:i]
	}
	if len(token) < 10 {
		return ""
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return token
}

func translationResult(r translate.Result) string {
	if r.Success {
		return "ok"
	}
	return "failed"
}
