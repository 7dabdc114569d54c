package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 15 * time.Second

// ProviderConfig carries the credentials and endpoints the factory needs.
type ProviderConfig struct {
	GoogleAPIKey      string
	LibreTranslateURL string
	MyMemoryEmail     string
}

// BuildProviders compiles the configured service-name preference list into
// provider values. Unknown names are skipped with a warning.
func BuildProviders(names []string, cfg ProviderConfig, log zerolog.Logger) []Provider {
	var out []Provider
	for _, name := range names {
		switch name {
		case "google_cloud":
			if cfg.GoogleAPIKey == "" {
				log.Warn().Msg("google_cloud translation requested but TRANSLATE_API_KEY is unset, skipping")
				continue
			}
			out = append(out, &googleCloud{apiKey: cfg.GoogleAPIKey, client: &http.Client{Timeout: defaultTimeout}})
		case "free_google":
			out = append(out, &freeGoogle{client: &http.Client{Timeout: defaultTimeout}})
		case "mymemory":
			out = append(out, &myMemory{email: cfg.MyMemoryEmail, client: &http.Client{Timeout: defaultTimeout}})
		case "libretranslate":
			base := cfg.LibreTranslateURL
			if base == "" {
				base = "https://libretranslate.com"
			}
			out = append(out, &libreTranslate{baseURL: strings.TrimRight(base, "/"), client: &http.Client{Timeout: defaultTimeout}})
		case "pons":
			out = append(out, &pons{client: &http.Client{Timeout: defaultTimeout}})
		default:
			log.Warn().Str("service", name).Msg("unknown translation service in preference list, skipping")
		}
	}
	return out
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// googleCloud calls the paid Translation v2 REST API.
type googleCloud struct {
	apiKey string
	client *http.Client
}

func (g *googleCloud) Name() string       { return "google_cloud" }
func (g *googleCloud) MaxChunkBytes() int { return 4500 }

func (g *googleCloud) Translate(ctx context.Context, text, source, target string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"q":      text,
		"source": source,
		"target": target,
		"format": "text",
	})
	u := "https://translation.googleapis.com/language/translate/v2?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	var out struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if len(out.Data.Translations) == 0 {
		return "", fmt.Errorf("empty translations array")
	}
	return out.Data.Translations[0].TranslatedText, nil
}

// freeGoogle uses the unofficial web endpoint. No key, tight quota; lives
// behind google_cloud in the default chain.
type freeGoogle struct {
	client *http.Client
}

func (f *freeGoogle) Name() string       { return "free_google" }
func (f *freeGoogle) MaxChunkBytes() int { return 2000 }

func (f *freeGoogle) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)
	u := "https://translate.googleapis.com/translate_a/single?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	// Response is a nested array: [[["translated","original",...],...],...]
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return "", fmt.Errorf("unexpected response shape")
	}
	var segments [][]json.RawMessage
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected segment shape")
	}
	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(seg[0], &piece); err == nil {
			sb.WriteString(piece)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty translation")
	}
	return sb.String(), nil
}

// myMemory calls the MyMemory public API. An email raises the daily quota.
type myMemory struct {
	email  string
	client *http.Client
}

func (m *myMemory) Name() string       { return "mymemory" }
func (m *myMemory) MaxChunkBytes() int { return 500 }

func (m *myMemory) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", source+"|"+target)
	if m.email != "" {
		q.Set("de", m.email)
	}
	u := "https://api.mymemory.translated.net/get?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
		ResponseStatus any `json:"responseStatus"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.ResponseData.TranslatedText == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out.ResponseData.TranslatedText, nil
}

// libreTranslate calls a LibreTranslate instance (self-hosted or public).
type libreTranslate struct {
	baseURL string
	client  *http.Client
}

func (l *libreTranslate) Name() string       { return "libretranslate" }
func (l *libreTranslate) MaxChunkBytes() int { return 2000 }

func (l *libreTranslate) Translate(ctx context.Context, text, source, target string) (string, error) {
	payload, _ := json.Marshal(map[string]string{
		"q":      text,
		"source": source,
		"target": target,
		"format": "text",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out.TranslatedText, nil
}

// pons queries the PONS dictionary API. Word-level only, so it sits last in
// any sensible preference order.
type pons struct {
	client *http.Client
}

func (p *pons) Name() string       { return "pons" }
func (p *pons) MaxChunkBytes() int { return 200 }

func (p *pons) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("l", source+target)
	u := "https://api.pons.com/text-translation-web/v4/translate?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.Text == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out.Text, nil
}
