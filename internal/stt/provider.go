package stt

import (
	"context"
	"strings"
)

// Recognizer is the interface for speech-to-text backends.
type Recognizer interface {
	// Recognize runs synchronous recognition, suitable for short audio.
	Recognize(ctx context.Context, wavPath string, opts Opts) (*Result, error)
	// RecognizeLongRunning starts an asynchronous job and polls it to
	// completion. Suitable for recordings over a minute.
	RecognizeLongRunning(ctx context.Context, wavPath string, opts Opts) (*Result, error)
	Name() string
}

// Opts are per-request recognition options.
type Opts struct {
	LanguageCode string   // primary language, e.g. "hi-IN"
	AltLanguages []string // enabled when auto-detection is on
	Model        string
	SampleRate   int
	Enhanced     bool
	Punctuation  bool
	Diarization  bool     // 1-2 speakers (farmer + IVR prompt bleed)
	PhraseHints  []string // domain vocabulary boost
}

// DefaultPhraseHints boosts recognition of agronomy vocabulary that
// telephony audio tends to mangle. Hindi terms cover the common IVR
// code-switching.
var DefaultPhraseHints = []string{
	"kharif", "rabi", "zaid", "fasal", "mitti", "khad", "keeda", "jhulsa",
	"yojana", "bima", "pincode", "irrigation", "fertilizer", "pesticide",
	"PM-Kisan", "PMFBY", "Kisan Credit Card", "soil health card",
	"urea", "DAP", "neem", "quintal", "hectare", "bigha",
}

// Result is the common recognition result from any backend.
type Result struct {
	Transcript string
	Language   string // normalised base code
	Confidence float64
	Duration   float64 // seconds
	Speakers   []Speaker
}

// Speaker is one diarized span.
type Speaker struct {
	Speaker    string
	Text       string
	Confidence float64
}

// NormalizeLanguage strips the region suffix: "hi-IN" -> "hi".
func NormalizeLanguage(code string) string {
	if base, _, ok := strings.Cut(code, "-"); ok {
		return strings.ToLower(base)
	}
	if base, _, ok := strings.Cut(code, "_"); ok {
		return strings.ToLower(base)
	}
	return strings.ToLower(code)
}
