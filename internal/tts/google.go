// Package tts synthesises the advisory back to speech through a Google
// Cloud style text-to-speech REST API.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Synthesizer turns one chunk of text into MP3 bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
	Name() string
}

// Voice locales per base language, Indian variants preferred.
var voiceLocales = map[string]string{
	"hi": "hi-IN", "en": "en-IN", "ta": "ta-IN", "te": "te-IN",
	"kn": "kn-IN", "ml": "ml-IN", "mr": "mr-IN", "gu": "gu-IN",
	"bn": "bn-IN", "pa": "pa-IN",
}

// Google calls the texttospeech REST endpoint with API-key auth.
type Google struct {
	baseURL string
	apiKey  string
	quality string // standard or wavenet
	client  *http.Client
	log     zerolog.Logger
}

func NewGoogle(baseURL, apiKey, quality string, log zerolog.Logger) *Google {
	if quality != "wavenet" {
		quality = "standard"
	}
	return &Google{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		quality: quality,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("component", "tts").Logger(),
	}
}

func (g *Google) Name() string { return "google_tts" }

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
	} `json:"audioConfig"`
}

// Synthesize renders one chunk. language is a base code like "hi"; the
// voice locale and name are derived from it.
func (g *Google) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	locale, ok := voiceLocales[strings.ToLower(language)]
	if !ok {
		locale = "en-IN"
	}

	var req synthesizeRequest
	req.Input.Text = text
	req.Voice.LanguageCode = locale
	req.Voice.Name = voiceName(locale, g.quality)
	req.AudioConfig.AudioEncoding = "MP3"
	req.AudioConfig.SpeakingRate = 0.95 // slightly slow for phone playback

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/text:synthesize?key=%s", g.baseURL, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode tts response: %w", err)
	}
	if out.AudioContent == "" {
		return nil, fmt.Errorf("tts API returned no audio")
	}
	return base64.StdEncoding.DecodeString(out.AudioContent)
}

func voiceName(locale, quality string) string {
	suffix := "Standard-A"
	if quality == "wavenet" {
		suffix = "Wavenet-A"
	}
	return locale + "-" + suffix
}
