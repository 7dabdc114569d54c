package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// CloudClient calls a Google-style speech REST API: synchronous recognize
// plus long-running operations with polling.
type CloudClient struct {
	baseURL string
	apiKey  string
	client  *http.Client

	// PollInterval between operation status checks. Default 5s.
	PollInterval time.Duration
}

// NewCloudClient creates a speech client against baseURL (e.g.
// "https://speech.googleapis.com/v1").
func NewCloudClient(baseURL, apiKey string, timeout time.Duration) *CloudClient {
	return &CloudClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *CloudClient) Name() string { return "cloud_speech" }

type recognitionConfig struct {
	Encoding             string          `json:"encoding"`
	SampleRateHertz      int             `json:"sampleRateHertz"`
	LanguageCode         string          `json:"languageCode"`
	AlternativeLanguages []string        `json:"alternativeLanguageCodes,omitempty"`
	Model                string          `json:"model,omitempty"`
	UseEnhanced          bool            `json:"useEnhanced,omitempty"`
	EnableAutomaticPunct bool            `json:"enableAutomaticPunctuation,omitempty"`
	DiarizationConfig    *diarization    `json:"diarizationConfig,omitempty"`
	SpeechContexts       []speechContext `json:"speechContexts,omitempty"`
}

type diarization struct {
	EnableSpeakerDiarization bool `json:"enableSpeakerDiarization"`
	MinSpeakerCount          int  `json:"minSpeakerCount"`
	MaxSpeakerCount          int  `json:"maxSpeakerCount"`
}

type speechContext struct {
	Phrases []string `json:"phrases"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string `json:"word"`
				SpeakerTag int    `json:"speakerTag"`
			} `json:"words"`
		} `json:"alternatives"`
		LanguageCode string `json:"languageCode"`
	} `json:"results"`
}

type operationResponse struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Response *recognizeResponse `json:"response"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *CloudClient) buildRequest(wavPath string, opts Opts) (*recognizeRequest, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	rate := opts.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	req := &recognizeRequest{
		Config: recognitionConfig{
			Encoding:             "LINEAR16",
			SampleRateHertz:      rate,
			LanguageCode:         opts.LanguageCode,
			AlternativeLanguages: opts.AltLanguages,
			Model:                opts.Model,
			UseEnhanced:          opts.Enhanced,
			EnableAutomaticPunct: opts.Punctuation,
		},
	}
	if opts.Diarization {
		req.Config.DiarizationConfig = &diarization{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          1,
			MaxSpeakerCount:          2,
		}
	}
	if len(opts.PhraseHints) > 0 {
		req.Config.SpeechContexts = []speechContext{{Phrases: opts.PhraseHints}}
	}
	req.Audio.Content = base64.StdEncoding.EncodeToString(audio)
	return req, nil
}

func (c *CloudClient) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + path
	if c.apiKey != "" {
		url += "?key=" + c.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return json.Unmarshal(respBody, out)
}

// Recognize runs one synchronous recognition request.
func (c *CloudClient) Recognize(ctx context.Context, wavPath string, opts Opts) (*Result, error) {
	req, err := c.buildRequest(wavPath, opts)
	if err != nil {
		return nil, err
	}

	var resp recognizeResponse
	if err := c.post(ctx, "/speech:recognize", req, &resp); err != nil {
		return nil, err
	}
	return c.toResult(&resp, opts)
}

// RecognizeLongRunning starts an asynchronous job and polls until done or
// the context expires.
func (c *CloudClient) RecognizeLongRunning(ctx context.Context, wavPath string, opts Opts) (*Result, error) {
	req, err := c.buildRequest(wavPath, opts)
	if err != nil {
		return nil, err
	}

	var op operationResponse
	if err := c.post(ctx, "/speech:longrunningrecognize", req, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, fmt.Errorf("long-running recognize returned no operation name")
	}

	interval := c.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("long-running operation %s: %w", op.Name, ctx.Err())
		case <-time.After(interval):
		}
		if err := c.getOperation(ctx, op.Name, &op); err != nil {
			return nil, err
		}
	}
	if op.Error != nil {
		return nil, fmt.Errorf("long-running operation failed: %s", op.Error.Message)
	}
	if op.Response == nil {
		return nil, fmt.Errorf("long-running operation %s completed without response", op.Name)
	}
	return c.toResult(op.Response, opts)
}

func (c *CloudClient) getOperation(ctx context.Context, name string, out *operationResponse) error {
	url := c.baseURL + "/operations/" + name
	if c.apiKey != "" {
		url += "?key=" + c.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("poll operation: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("operation poll error (status %d): %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

// toResult flattens the API response: transcripts concatenated in order,
// confidence averaged, diarized words grouped into speaker segments.
func (c *CloudClient) toResult(resp *recognizeResponse, opts Opts) (*Result, error) {
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no recognition results")
	}

	var parts []string
	var confSum float64
	var confN int
	lang := opts.LanguageCode

	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		best := r.Alternatives[0]
		if t := strings.TrimSpace(best.Transcript); t != "" {
			parts = append(parts, t)
		}
		if best.Confidence > 0 {
			confSum += best.Confidence
			confN++
		}
		if r.LanguageCode != "" {
			lang = r.LanguageCode
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("recognition returned empty transcript")
	}

	res := &Result{
		Transcript: strings.Join(parts, " "),
		Language:   NormalizeLanguage(lang),
	}
	if confN > 0 {
		res.Confidence = confSum / float64(confN)
	}

	// Diarized words, when present, ride on the final result.
	last := resp.Results[len(resp.Results)-1]
	if len(last.Alternatives) > 0 && len(last.Alternatives[0].Words) > 0 {
		res.Speakers = groupSpeakers(last.Alternatives[0].Words, res.Confidence)
	}
	return res, nil
}

func groupSpeakers(words []struct {
	Word       string `json:"word"`
	SpeakerTag int    `json:"speakerTag"`
}, conf float64) []Speaker {
	var out []Speaker
	curTag := -1
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, Speaker{
				Speaker:    fmt.Sprintf("speaker_%d", curTag),
				Text:       strings.Join(cur, " "),
				Confidence: conf,
			})
			cur = nil
		}
	}
	for _, w := range words {
		if w.SpeakerTag != curTag {
			flush()
			curTag = w.SpeakerTag
		}
		cur = append(cur, w.Word)
	}
	flush()
	return out
}
