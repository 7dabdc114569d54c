package translate

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeProvider struct {
	name     string
	maxBytes int
	err      error
	prefix   string
	calls    int
}

func (f *fakeProvider) Name() string       { return f.name }
func (f *fakeProvider) MaxChunkBytes() int { return f.maxBytes }

func (f *fakeProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.prefix + text, nil
}

func TestChainIdentity(t *testing.T) {
	p := &fakeProvider{name: "p1", maxBytes: 100}
	c := NewChain([]Provider{p}, zerolog.Nop())

	res := c.Translate(context.Background(), "same language text", "en-US", "en")
	if !res.Success {
		t.Error("identity translation reported failure")
	}
	if res.Text != "same language text" {
		t.Errorf("Text = %q, want unchanged", res.Text)
	}
	if res.Service != "identity" {
		t.Errorf("Service = %q, want identity", res.Service)
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times for identity translation", p.calls)
	}
}

func TestChainFirstProviderWins(t *testing.T) {
	p1 := &fakeProvider{name: "p1", maxBytes: 4500, prefix: "T1:"}
	p2 := &fakeProvider{name: "p2", maxBytes: 4500, prefix: "T2:"}
	c := NewChain([]Provider{p1, p2}, zerolog.Nop())

	res := c.Translate(context.Background(), "नमस्ते किसान", "hi", "en")
	if !res.Success {
		t.Fatalf("Translate failed: %s", res.Err)
	}
	if res.Service != "p1" {
		t.Errorf("Service = %q, want p1", res.Service)
	}
	if p2.calls != 0 {
		t.Errorf("second provider called %d times", p2.calls)
	}
}

func TestChainFallsToNextProvider(t *testing.T) {
	p1 := &fakeProvider{name: "p1", maxBytes: 4500, err: errors.New("quota exceeded (429)")}
	p2 := &fakeProvider{name: "p2", maxBytes: 4500, prefix: "ok:"}
	c := NewChain([]Provider{p1, p2}, zerolog.Nop())

	res := c.Translate(context.Background(), "text", "hi", "en")
	if !res.Success {
		t.Fatalf("Translate failed: %s", res.Err)
	}
	if res.Service != "p2" {
		t.Errorf("Service = %q, want p2", res.Service)
	}
	if res.Text != "ok:text" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestChainChunksAndRejoins(t *testing.T) {
	p := &fakeProvider{name: "p1", maxBytes: 20}
	c := NewChain([]Provider{p}, zerolog.Nop())

	res := c.Translate(context.Background(), "First one. Second one. Third one.", "hi", "en")
	if !res.Success {
		t.Fatalf("Translate failed: %s", res.Err)
	}
	if p.calls < 2 {
		t.Errorf("provider called %d times, want chunked calls", p.calls)
	}
	if res.Text != "First one. Second one. Third one." {
		t.Errorf("rejoined text = %q", res.Text)
	}
}

func TestChainOfflinePhraseFallback(t *testing.T) {
	p := &fakeProvider{name: "p1", maxBytes: 4500, err: errors.New("unreachable")}
	c := NewChain([]Provider{p}, zerolog.Nop())

	res := c.Translate(context.Background(), "नमस्ते", "hi", "en")
	if !res.Success {
		t.Fatalf("phrase table fallback failed: %s", res.Err)
	}
	if res.Service != "offline_phrases" {
		t.Errorf("Service = %q, want offline_phrases", res.Service)
	}
	if res.Text != "hello" {
		t.Errorf("Text = %q, want hello", res.Text)
	}
}

func TestChainTotalFailureReturnsOriginal(t *testing.T) {
	p := &fakeProvider{name: "p1", maxBytes: 4500, err: errors.New("unreachable")}
	c := NewChain([]Provider{p}, zerolog.Nop())

	original := "यह वाक्य तालिका में नहीं है और अनुवाद नहीं होगा"
	res := c.Translate(context.Background(), original, "hi", "en")
	if res.Success {
		t.Error("Success = true with every provider down")
	}
	if res.Text != original {
		t.Errorf("Text = %q, want original preserved", res.Text)
	}
	if res.Err == nil {
		t.Error("Err is nil on total failure")
	}
}

func TestBuildProvidersSkipsUnknown(t *testing.T) {
	providers := BuildProviders(
		[]string{"free_google", "bogus_service", "mymemory"},
		ProviderConfig{},
		zerolog.Nop(),
	)
	if len(providers) != 2 {
		t.Fatalf("got %d providers, want 2", len(providers))
	}
	if providers[0].Name() != "free_google" || providers[1].Name() != "mymemory" {
		t.Errorf("provider order = %s, %s", providers[0].Name(), providers[1].Name())
	}
}
