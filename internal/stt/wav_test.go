package stt

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestWav(t *testing.T, sampleRate, seconds int) string {
	t.Helper()
	info := WavInfo{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16}
	data := make([]byte, sampleRate*2*seconds)
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, buildWav(info, data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadWavInfo(t *testing.T) {
	path := writeTestWav(t, 16000, 3)

	info, err := ReadWavInfo(path)
	if err != nil {
		t.Fatalf("ReadWavInfo: %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Channels = %d, want 1", info.Channels)
	}
	if info.BitsPerSample != 16 {
		t.Errorf("BitsPerSample = %d, want 16", info.BitsPerSample)
	}
	if got := info.Duration(); got != 3.0 {
		t.Errorf("Duration = %v, want 3.0", got)
	}
}

func TestReadWavInfoRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("this is not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWavInfo(path); err == nil {
		t.Error("ReadWavInfo accepted non-WAV data")
	}
}

func TestSliceWav(t *testing.T) {
	path := writeTestWav(t, 8000, 10)
	info, err := ReadWavInfo(path)
	if err != nil {
		t.Fatal(err)
	}

	// Middle slice has the full requested length.
	out, err := SliceWav(path, info, 2, 4)
	if err != nil {
		t.Fatalf("SliceWav: %v", err)
	}
	sliced, err := parseBytes(t, out)
	if err != nil {
		t.Fatalf("slice is not valid WAV: %v", err)
	}
	if got := sliced.Duration(); got != 4.0 {
		t.Errorf("slice duration = %v, want 4.0", got)
	}

	// A slice past the end is clamped.
	out, err = SliceWav(path, info, 8, 4)
	if err != nil {
		t.Fatalf("SliceWav clamped: %v", err)
	}
	sliced, err = parseBytes(t, out)
	if err != nil {
		t.Fatalf("clamped slice is not valid WAV: %v", err)
	}
	if got := sliced.Duration(); got != 2.0 {
		t.Errorf("clamped slice duration = %v, want 2.0", got)
	}

	// A slice entirely beyond the audio is an error.
	if _, err := SliceWav(path, info, 11, 4); err == nil {
		t.Error("SliceWav beyond end succeeded, want error")
	}
}

func parseBytes(t *testing.T, wav []byte) (WavInfo, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slice.wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatal(err)
	}
	return ReadWavInfo(path)
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct{ in, want string }{
		{"hi-IN", "hi"},
		{"en-US", "en"},
		{"te_IN", "te"},
		{"mr", "mr"},
		{"PA-IN", "pa"},
	}
	for _, tt := range tests {
		if got := NormalizeLanguage(tt.in); got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
