package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// DataRoot anchors all persistent state: monitor/, recordings/.
	DataRoot string `env:"DATA_ROOT" envDefault:"./data"`

	PipelineWorkers int `env:"PIPELINE_WORKERS" envDefault:"4"`

	// Speech-to-text
	PrimaryLanguage  string        `env:"PRIMARY_LANGUAGE" envDefault:"hi-IN"`
	AltLanguagesCSV  string        `env:"ALT_LANGUAGES" envDefault:"en-IN,mr-IN,te-IN,ta-IN,bn-IN"`
	SpeechModel      string        `env:"SPEECH_TO_TEXT_MODEL" envDefault:"latest_long"`
	SpeechEnhanced   bool          `env:"STT_ENHANCED" envDefault:"true"`
	SpeechDiarize    bool          `env:"STT_DIARIZATION" envDefault:"true"`
	PhraseHintsCSV   string        `env:"STT_PHRASE_HINTS"`
	LanguageAuto     bool          `env:"LANGUAGE_AUTO_DETECT" envDefault:"true"`
	AudioSampleRate  int           `env:"AUDIO_SAMPLE_RATE" envDefault:"16000"`
	SpeechAPIBaseURL string        `env:"STT_API_URL" envDefault:"https://speech.googleapis.com/v1"`
	SpeechAPIKey     string        `env:"STT_API_KEY"`
	SpeechAPITimeout time.Duration `env:"STT_REQUEST_TIMEOUT" envDefault:"60s"`

	// Translation
	TranslationServices string `env:"TRANSLATION_SERVICES" envDefault:"google_cloud,free_google,mymemory,libretranslate"`
	PivotLanguage       string `env:"PIVOT_LANGUAGE" envDefault:"en"`
	DefaultTargetLang   string `env:"DEFAULT_TARGET_LANGUAGE" envDefault:"hi"`
	TranslateAPIKey     string `env:"TRANSLATE_API_KEY"`
	LibreTranslateURL   string `env:"LIBRETRANSLATE_URL" envDefault:"https://libretranslate.com"`
	MyMemoryEmail       string `env:"MYMEMORY_EMAIL"`

	// Text-to-speech
	TTSAPIBaseURL   string `env:"TTS_API_URL" envDefault:"https://texttospeech.googleapis.com/v1"`
	TTSAPIKey       string `env:"TTS_API_KEY"`
	TTSVoiceQuality string `env:"TTS_VOICE_QUALITY" envDefault:"standard"`

	// LLM backend (OpenAI-compatible chat completions)
	LLMAPIKey  string        `env:"LLM_API_KEY"`
	LLMBaseURL string        `env:"LLM_BASE_URL"`
	LLMModel   string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	// Weather + geocoding
	WeatherAPIURL    string `env:"WEATHER_API_URL" envDefault:"https://api.open-meteo.com/v1/forecast"`
	GeocodeAPIURL    string `env:"GEOCODE_API_URL" envDefault:"https://nominatim.openstreetmap.org/search"`
	GeocodeUserAgent string `env:"GEOCODE_USER_AGENT" envDefault:"agrivoice"`

	// Knowledge stores; memory-backed fixtures are used when unset.
	DatabaseURL string `env:"DATABASE_URL"`

	// Timeouts and gates
	ConvertTimeout  time.Duration `env:"CONVERT_TIMEOUT" envDefault:"5m"`
	LongRunTimeout  time.Duration `env:"STT_LONGRUN_TIMEOUT" envDefault:"10m"`
	AgentTimeout    time.Duration `env:"AGENT_TIMEOUT" envDefault:"30s"`
	StabilityWindow time.Duration `env:"STABILITY_WINDOW" envDefault:"5s"`
	MaxWait         time.Duration `env:"MAX_WAIT" envDefault:"120s"`
	SchemeHorizon   time.Duration `env:"SCHEME_DEADLINE_HORIZON" envDefault:"720h"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// Optional IVR notification bridge
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopic     string `env:"MQTT_TOPIC" envDefault:"agrivoice/responses"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"agrivoice"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	// Optional S3 archive of response artifacts
	S3Bucket    string `env:"S3_BUCKET"`
	S3Prefix    string `env:"S3_PREFIX" envDefault:"responses"`
	S3Region    string `env:"S3_REGION" envDefault:"ap-south-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	DataRoot    string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	Workers     int
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.DataRoot != "" {
		cfg.DataRoot = overrides.DataRoot
	}
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.Workers > 0 {
		cfg.PipelineWorkers = overrides.Workers
	}

	return cfg, nil
}

// Directory layout under DataRoot.

func (c *Config) MonitorDir() string        { return filepath.Join(c.DataRoot, "monitor") }
func (c *Config) ConvertedDir() string      { return filepath.Join(c.DataRoot, "recordings", "converted") }
func (c *Config) TranscriptsDir() string    { return filepath.Join(c.DataRoot, "recordings", "transcripts") }
func (c *Config) ResponsesDir() string      { return filepath.Join(c.DataRoot, "recordings", "responses") }
func (c *Config) GeneratedAudioDir() string { return filepath.Join(c.DataRoot, "recordings", "generated_audio") }
func (c *Config) PlaybackDir() string       { return filepath.Join(c.DataRoot, "playback") }
func (c *Config) ProcessedFile() string {
	return filepath.Join(c.DataRoot, "recordings", "processed_files.json")
}

// EnsureDirs creates the persistent state layout.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.MonitorDir(), c.ConvertedDir(), c.TranscriptsDir(),
		c.ResponsesDir(), c.GeneratedAudioDir(), c.PlaybackDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// TranslationChain returns the configured provider preference list.
func (c *Config) TranslationChain() []string {
	return splitCSV(c.TranslationServices)
}

// AltLanguages returns the recognition candidates used when auto-detection
// is enabled.
func (c *Config) AltLanguages() []string {
	return splitCSV(c.AltLanguagesCSV)
}

// PhraseHints returns extra recognition vocabulary; empty means the
// built-in agronomy list.
func (c *Config) PhraseHints() []string {
	return splitCSV(c.PhraseHintsCSV)
}

func splitCSV(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
