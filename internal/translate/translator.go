// Package translate routes text through an ordered chain of translation
// providers. Quotas, 429s, and outages are expected; the chain tries each
// provider for the whole text before moving on.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Provider is one translation backend.
type Provider interface {
	// Translate converts one chunk from source to target language
	// (base codes, e.g. "hi" -> "en").
	Translate(ctx context.Context, text, source, target string) (string, error)
	Name() string
	// MaxChunkBytes is the provider's per-request UTF-8 byte budget.
	MaxChunkBytes() int
}

// Result reports the outcome of a chain translation.
type Result struct {
	Text    string
	Service string
	Success bool
	Err     error
}

// Chain tries providers in configured preference order. A provider must
// succeed for every chunk of the text to win; a single chunk failure moves
// the whole text to the next provider.
type Chain struct {
	providers []Provider
	log       zerolog.Logger
}

// NewChain builds a chain from the configured service names. Unknown names
// are skipped with a warning.
func NewChain(providers []Provider, log zerolog.Logger) *Chain {
	return &Chain{
		providers: providers,
		log:       log.With().Str("component", "translate").Logger(),
	}
}

// Providers returns the chain's providers in order.
func (c *Chain) Providers() []Provider { return c.providers }

// Translate runs text through the chain. Identity when source equals
// target. On total failure the offline phrase table is consulted; if it
// does not cover the text, the original text comes back with Success=false.
func (c *Chain) Translate(ctx context.Context, text, source, target string) Result {
	source = baseCode(source)
	target = baseCode(target)

	if text == "" || source == target {
		return Result{Text: text, Service: "identity", Success: true}
	}

	var lastErr error
	for _, p := range c.providers {
		out, err := c.translateWith(ctx, p, text, source, target)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Str("service", p.Name()).Msg("translation provider failed, trying next")
			continue
		}
		return Result{Text: out, Service: p.Name(), Success: true}
	}

	if phrase, ok := LookupPhrase(text, source, target); ok {
		return Result{Text: phrase, Service: "offline_phrases", Success: true}
	}

	res := Result{Text: text, Service: "none", Success: false}
	if lastErr != nil {
		res.Err = lastErr
	} else {
		res.Err = errors.New("no translation providers configured")
	}
	return res
}

func (c *Chain) translateWith(ctx context.Context, p Provider, text, source, target string) (string, error) {
	chunks := Chunk(text, p.MaxChunkBytes())
	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		translated, err := p.Translate(ctx, chunk, source, target)
		if err != nil {
			return "", fmt.Errorf("%s chunk %d/%d: %w", p.Name(), i+1, len(chunks), err)
		}
		if t := strings.TrimSpace(translated); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%s returned no text", p.Name())
	}
	return strings.Join(out, " "), nil
}

func baseCode(code string) string {
	if base, _, ok := strings.Cut(code, "-"); ok {
		return strings.ToLower(base)
	}
	return strings.ToLower(code)
}
