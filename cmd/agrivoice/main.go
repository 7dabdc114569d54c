package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/agents"
	"github.com/snarg/agrivoice/internal/api"
	"github.com/snarg/agrivoice/internal/archive"
	"github.com/snarg/agrivoice/internal/audioconv"
	"github.com/snarg/agrivoice/internal/bus"
	"github.com/snarg/agrivoice/internal/config"
	"github.com/snarg/agrivoice/internal/llm"
	"github.com/snarg/agrivoice/internal/metrics"
	"github.com/snarg/agrivoice/internal/notify"
	"github.com/snarg/agrivoice/internal/orchestrate"
	"github.com/snarg/agrivoice/internal/respond"
	"github.com/snarg/agrivoice/internal/store"
	"github.com/snarg/agrivoice/internal/stt"
	"github.com/snarg/agrivoice/internal/translate"
	"github.com/snarg/agrivoice/internal/tts"
	"github.com/snarg/agrivoice/internal/watch"
	"github.com/snarg/agrivoice/internal/weather"
	"github.com/snarg/agrivoice/internal/worker"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file")
	flag.StringVar(&overrides.DataRoot, "data", "", "data root directory")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace..error)")
	flag.StringVar(&overrides.DatabaseURL, "db", "", "postgres connection url")
	flag.IntVar(&overrides.Workers, "workers", 0, "pipeline worker count")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Error().Err(err).Msg("failed to load config")
		os.Exit(2)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("agrivoice starting")

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Str("data_root", cfg.DataRoot).Msg("failed to create data layout")
	}
	if !audioconv.CheckFFmpeg() {
		log.Warn().Msg("ffmpeg not found on PATH, audio conversion will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Knowledge stores: postgres when configured, seeded memory otherwise.
	var (
		stores store.Stores
		pg     *store.PG
	)
	if cfg.DatabaseURL != "" {
		pg, err = store.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "store").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("database migration failed")
		}
		stores = pg.Stores()
	} else {
		log.Info().Msg("no DATABASE_URL, using in-memory knowledge stores")
		stores = store.NewMemory().Stores()
	}

	// Shared clients.
	model := llm.New(llm.Options{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	}, log)

	forecaster := weather.New(cfg.WeatherAPIURL, cfg.GeocodeAPIURL, cfg.GeocodeUserAgent, log)

	chain := translate.NewChain(translate.BuildProviders(cfg.TranslationChain(), translate.ProviderConfig{
		GoogleAPIKey:      cfg.TranslateAPIKey,
		LibreTranslateURL: cfg.LibreTranslateURL,
		MyMemoryEmail:     cfg.MyMemoryEmail,
	}, log), log)

	// Domain specialists.
	registry := agents.Registry{}
	registry.Add(agents.NewWeatherAgent(model, forecaster, log))
	registry.Add(agents.NewSoilAgent(model, stores.Soil, log))
	registry.Add(agents.NewPestAgent(model, stores.Pests, log))
	registry.Add(agents.NewSchemeAgent(model, stores.Schemes, cfg.SchemeHorizon, log))

	orchestrator := orchestrate.New(model, stores.Profiles, registry, cfg.AgentTimeout, log)

	synth := tts.NewGoogle(cfg.TTSAPIBaseURL, cfg.TTSAPIKey, cfg.TTSVoiceQuality, log)
	responder := respond.New(chain, synth, cfg.PivotLanguage, cfg.DefaultTargetLang, respond.Dirs{
		GeneratedAudio: cfg.GeneratedAudioDir(),
		Playback:       cfg.PlaybackDir(),
		Responses:      cfg.ResponsesDir(),
	}, log)

	// Optional surfaces.
	var notifier *notify.Publisher
	if cfg.MQTTBrokerURL != "" {
		notifier, err = notify.Connect(notify.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer notifier.Close()
	}

	var archiver *archive.Archiver
	if cfg.S3Bucket != "" {
		archiver, err = archive.New(ctx, archive.Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("artifact archive unavailable")
		}
	}

	// Pipeline.
	eventBus := bus.New(256, log)
	tracker := api.NewTracker()
	go tracker.Run(ctx, eventBus)

	var pgPool *pgxpool.Pool
	if pg != nil {
		pgPool = pg.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(pgPool, eventBus))

	stages := worker.Stages{
		Converter: &audioconv.Converter{
			OutDir:     cfg.ConvertedDir(),
			SampleRate: cfg.AudioSampleRate,
			Timeout:    cfg.ConvertTimeout,
		},
		Transcriber: stt.NewTranscriber(
			stt.NewCloudClient(cfg.SpeechAPIBaseURL, cfg.SpeechAPIKey, cfg.SpeechAPITimeout),
			cfg.LongRunTimeout, log),
		Translator: chain,
		Advisor:    orchestrator,
		Responder:  responder,
	}
	if notifier != nil {
		stages.Notifier = notifier
	}
	if archiver != nil {
		stages.Archiver = archiver
	}

	pool := worker.NewPool(worker.Options{
		Workers:         cfg.PipelineWorkers,
		PrimaryLanguage: cfg.PrimaryLanguage,
		AltLanguages:    cfg.AltLanguages(),
		AutoDetect:      cfg.LanguageAuto,
		SpeechModel:     cfg.SpeechModel,
		SampleRate:      cfg.AudioSampleRate,
		Enhanced:        cfg.SpeechEnhanced,
		Diarization:     cfg.SpeechDiarize,
		PhraseHints:     cfg.PhraseHints(),
		PivotLanguage:   cfg.PivotLanguage,
		TranscriptsDir:  cfg.TranscriptsDir(),
	}, stages, eventBus, log)
	pool.Start(ctx)

	processed, err := watch.LoadProcessedSet(cfg.ProcessedFile())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load processed-file ledger")
	}
	watcher := watch.New(cfg.MonitorDir(), pool.Tasks(), processed, watch.Options{
		StabilityWindow: cfg.StabilityWindow,
		MaxWait:         cfg.MaxWait,
	}, log)
	if err := watcher.Start(ctx); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.MonitorDir()).Msg("failed to start file watcher")
	}

	// HTTP server.
	deps := api.Deps{
		Watcher: watcher,
		Pool:    pool,
		Bus:     eventBus,
		Tracker: tracker,
	}
	if pg != nil {
		deps.DB = pg
	}
	if notifier != nil {
		deps.MQTT = notifier
	}
	srv := api.NewServer(cfg, deps, version, startTime, log.With().Str("component", "http").Logger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Stop intake first, then drain in-flight tasks, then the API.
	watcher.Stop()
	pool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("agrivoice stopped")
}
