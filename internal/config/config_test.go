package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"PRIMARY_LANGUAGE": "te-IN",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.PipelineWorkers != 4 {
			t.Errorf("PipelineWorkers = %d, want 4", cfg.PipelineWorkers)
		}
		if cfg.AudioSampleRate != 16000 {
			t.Errorf("AudioSampleRate = %d, want 16000", cfg.AudioSampleRate)
		}
		if cfg.PivotLanguage != "en" {
			t.Errorf("PivotLanguage = %q, want en", cfg.PivotLanguage)
		}
		if cfg.AgentTimeout.Seconds() != 30 {
			t.Errorf("AgentTimeout = %v, want 30s", cfg.AgentTimeout)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.PrimaryLanguage != "te-IN" {
			t.Errorf("PrimaryLanguage = %q, want te-IN", cfg.PrimaryLanguage)
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:  "nonexistent.env",
			HTTPAddr: ":9090",
			LogLevel: "debug",
			DataRoot: "/tmp/agrivoice",
			Workers:  8,
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.DataRoot != "/tmp/agrivoice" {
			t.Errorf("DataRoot = %q, want /tmp/agrivoice", cfg.DataRoot)
		}
		if cfg.PipelineWorkers != 8 {
			t.Errorf("PipelineWorkers = %d, want 8", cfg.PipelineWorkers)
		}
	})
}

func TestDirectoryLayout(t *testing.T) {
	cfg := &Config{DataRoot: "/srv/ivr"}

	if got := cfg.MonitorDir(); got != filepath.Join("/srv/ivr", "monitor") {
		t.Errorf("MonitorDir = %q", got)
	}
	if got := cfg.TranscriptsDir(); got != filepath.Join("/srv/ivr", "recordings", "transcripts") {
		t.Errorf("TranscriptsDir = %q", got)
	}
	if got := cfg.ProcessedFile(); got != filepath.Join("/srv/ivr", "recordings", "processed_files.json") {
		t.Errorf("ProcessedFile = %q", got)
	}
}

func TestTranslationChain(t *testing.T) {
	cfg := &Config{TranslationServices: "google_cloud, free_google ,mymemory,"}
	got := cfg.TranslationChain()
	want := []string{"google_cloud", "free_google", "mymemory"}
	if len(got) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
