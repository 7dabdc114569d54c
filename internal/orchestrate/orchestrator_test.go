package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/agents"
	"github.com/snarg/agrivoice/internal/pipeline"
	"github.com/snarg/agrivoice/internal/store"
)

// scriptedLLM answers by matching a fragment of the system prompt, so one
// fake serves every extraction step.
type scriptedLLM struct {
	json map[string]string // system fragment -> JSON reply
	text string
	err  error
}

func (s *scriptedLLM) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *scriptedLLM) CompleteJSON(ctx context.Context, system, user string, out any) error {
	if s.err != nil {
		return s.err
	}
	for frag, reply := range s.json {
		if strings.Contains(system, frag) {
			return json.Unmarshal([]byte(reply), out)
		}
	}
	return errors.New("no scripted reply")
}

type stubSpecialist struct {
	tag     agents.Tag
	prose   string
	err     error
	delay   time.Duration
	gotMode agents.Mode
}

func (s *stubSpecialist) Tag() agents.Tag { return s.tag }

func (s *stubSpecialist) Process(ctx context.Context, req agents.Request) (agents.Finding, error) {
	s.gotMode = req.Mode
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return agents.Failed(s.tag, ctx.Err()), ctx.Err()
		}
	}
	if s.err != nil {
		return agents.Failed(s.tag, s.err), s.err
	}
	return agents.Finding{Agent: s.tag, Status: agents.StatusOk, Prose: s.prose}, nil
}

func registryOf(specs ...*stubSpecialist) agents.Registry {
	r := agents.Registry{}
	for _, s := range specs {
		r.Add(s)
	}
	return r
}

func newTestOrchestrator(llm agents.LLM, reg agents.Registry, timeout time.Duration) (*Orchestrator, store.Stores) {
	stores := store.NewMemory().Stores()
	return New(llm, stores.Profiles, reg, timeout, zerolog.Nop()), stores
}

func TestFallbackClassify(t *testing.T) {
	tests := []struct {
		query    string
		want     []agents.Tag
		wantMode agents.Mode
	}{
		{"will it rain tomorrow", []agents.Tag{agents.TagWeather}, agents.ModeSpecific},
		{"which fertilizer for my soil", []agents.Tag{agents.TagSoil}, agents.ModeSpecific},
		{"insects are eating my cotton", []agents.Tag{agents.TagPest}, agents.ModeSpecific},
		{"how to apply for crop insurance subsidy", []agents.Tag{agents.TagScheme}, agents.ModeSpecific},
		{"rain damaged crop, is there insurance", []agents.Tag{agents.TagWeather, agents.TagScheme}, agents.ModeSpecific},
		{"help me farm better", allTags, agents.ModeGeneric},
	}
	for _, tt := range tests {
		got, mode := FallbackClassify(tt.query)
		if mode != tt.wantMode {
			t.Errorf("FallbackClassify(%q) mode = %s, want %s", tt.query, mode, tt.wantMode)
		}
		if len(got) != len(tt.want) {
			t.Errorf("FallbackClassify(%q) = %v, want %v", tt.query, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("FallbackClassify(%q) = %v, want %v", tt.query, got, tt.want)
				break
			}
		}
	}
}

func TestProcessPartialFailure(t *testing.T) {
	llm := &scriptedLLM{
		json: map[string]string{
			"extract farmer details": `{"phone":"9876543210","crops":["cotton"]}`,
			"distil":                 `{"query":"will it rain and is there insurance"}`,
			"route":                  `{"categories":["weather","scheme"]}`,
		},
		text: "Rain is expected midweek; PMFBY covers your cotton.",
	}
	reg := registryOf(
		&stubSpecialist{tag: agents.TagWeather, prose: "rain midweek"},
		&stubSpecialist{tag: agents.TagScheme, err: errors.New("catalogue down")},
	)
	o, _ := newTestOrchestrator(llm, reg, time.Second)

	adv, err := o.Process(context.Background(), Input{
		TaskID:     "call1",
		Transcript: "namaste, my cotton field...",
		CallerID:   "+91-98765-43210",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(adv.Findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(adv.Findings))
	}
	if adv.Findings[0].Status != agents.StatusOk {
		t.Errorf("weather finding = %s, want ok", adv.Findings[0].Status)
	}
	if adv.Findings[1].Status != agents.StatusFailed {
		t.Errorf("scheme finding = %s, want failed", adv.Findings[1].Status)
	}
	if adv.Response == "" {
		t.Error("partial failure should still produce a response")
	}
	if adv.Phone != "919876543210" {
		t.Errorf("phone = %q, want digits only from caller ID", adv.Phone)
	}
}

func TestProcessSpecialistTimeout(t *testing.T) {
	llm := &scriptedLLM{
		json: map[string]string{
			"route": `{"categories":["weather","soil"]}`,
		},
		text: "answer",
	}
	reg := registryOf(
		&stubSpecialist{tag: agents.TagWeather, delay: 500 * time.Millisecond, prose: "late"},
		&stubSpecialist{tag: agents.TagSoil, prose: "fast soil advice"},
	)
	o, _ := newTestOrchestrator(llm, reg, 50*time.Millisecond)

	adv, err := o.Process(context.Background(), Input{TaskID: "t", Transcript: "soil and weather please"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if adv.Findings[0].Status != agents.StatusFailed {
		t.Errorf("slow specialist = %s, want failed by timeout", adv.Findings[0].Status)
	}
	if adv.Findings[1].Status != agents.StatusOk {
		t.Errorf("fast specialist = %s, want ok", adv.Findings[1].Status)
	}
}

func TestProcessAllAgentsFailed(t *testing.T) {
	llm := &scriptedLLM{
		json: map[string]string{"route": `{"categories":["weather"]}`},
		text: "x",
	}
	reg := registryOf(&stubSpecialist{tag: agents.TagWeather, err: errors.New("down")})
	o, _ := newTestOrchestrator(llm, reg, time.Second)

	_, err := o.Process(context.Background(), Input{TaskID: "t", Transcript: "weather"})
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Kind != pipeline.KindAllAgentsFailed {
		t.Errorf("err = %v, want AllAgentsFailed stage error", err)
	}
}

func TestExtractQueryFallback(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	o, _ := newTestOrchestrator(llm, agents.Registry{}, time.Second)

	long := strings.Repeat("namaste ", 50) // well past the cutoff
	got := o.extractQuery(context.Background(), long)
	if want := queryFallbackChars; len([]rune(got)) != want {
		t.Errorf("fallback query length = %d runes, want %d", len([]rune(got)), want)
	}

	short := "short transcript"
	if got := o.extractQuery(context.Background(), short); got != short {
		t.Errorf("short fallback = %q, want the transcript itself", got)
	}
}

func TestResolveProfilePersistsAndMerges(t *testing.T) {
	llm := &scriptedLLM{
		json: map[string]string{
			"extract farmer details": `{"name":"Sita Devi","land_ha":1.5,"crops":["wheat"]}`,
		},
	}
	o, stores := newTestOrchestrator(llm, agents.Registry{}, time.Second)
	ctx := context.Background()

	stores.Profiles.Put(ctx, &store.FarmerProfile{
		Phone:   "9876543210",
		Pincode: "400001",
		Crops:   []store.Crop{{Crop: "cotton"}},
	})

	profile, phone := o.resolveProfile(ctx, Input{
		Transcript: "I am Sita Devi with 1.5 hectares of wheat",
		CallerID:   "9876543210",
	})
	if phone != "9876543210" {
		t.Fatalf("phone = %q", phone)
	}
	if profile.Name != "Sita Devi" || profile.Pincode != "400001" {
		t.Errorf("merge lost data: %+v", profile)
	}
	if len(profile.Crops) != 2 {
		t.Errorf("crops = %v, want stored cotton plus new wheat", profile.Crops)
	}

	saved, err := stores.Profiles.Get(ctx, "9876543210")
	if err != nil {
		t.Fatalf("Get after resolve: %v", err)
	}
	if saved.Name != "Sita Devi" || saved.LandHa != 1.5 {
		t.Errorf("persisted profile = %+v", saved)
	}
}

func TestResolveProfileEphemeralWithoutPhone(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	o, stores := newTestOrchestrator(llm, agents.Registry{}, time.Second)

	profile, phone := o.resolveProfile(context.Background(), Input{Transcript: "anonymous question"})
	if phone != "" || profile.Phone != "" {
		t.Errorf("phone = %q, want empty", phone)
	}
	if _, err := stores.Profiles.Get(context.Background(), ""); !errors.Is(err, store.ErrNotFound) {
		t.Error("ephemeral profile must not be persisted")
	}
}

func TestEnsureCalendarCoversTwelveMonths(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	cal := EnsureCalendar(map[string]string{
		"2026-09": "top-dress the kharif crop",
		"2030-01": "stale key",
	}, start)

	if len(cal) != 12 {
		t.Fatalf("calendar has %d entries, want 12", len(cal))
	}
	if cal["2026-09"] != "top-dress the kharif crop" {
		t.Errorf("provided entry overwritten: %q", cal["2026-09"])
	}
	if _, ok := cal["2030-01"]; ok {
		t.Error("out-of-window key should be dropped")
	}
	if v, ok := cal["2026-11"]; !ok || !strings.Contains(v, "rabi") {
		t.Errorf("November default = %q, want rabi sowing guidance", v)
	}
	if _, ok := cal["2027-07"]; !ok {
		t.Error("calendar should run through July 2027")
	}
}

func TestProcessBuildsRoadmapForBroadQueries(t *testing.T) {
	llm := &scriptedLLM{
		json: map[string]string{
			"route":     `{"categories":["weather","soil","pest","scheme"]}`,
			"farm plan": `{"immediate_actions":["check drainage"],"seasonal_calendar":{}}`,
		},
		text: "full advisory",
	}
	reg := registryOf(
		&stubSpecialist{tag: agents.TagWeather, prose: "w"},
		&stubSpecialist{tag: agents.TagSoil, prose: "s"},
		&stubSpecialist{tag: agents.TagPest, prose: "p"},
		&stubSpecialist{tag: agents.TagScheme, prose: "g"},
	)
	o, _ := newTestOrchestrator(llm, reg, time.Second)

	adv, err := o.Process(context.Background(), Input{TaskID: "t", Transcript: "help me improve my farm"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if adv.Mode != agents.ModeSpecific {
		t.Errorf("mode = %s, want specific for an explicitly routed query", adv.Mode)
	}
	if adv.Roadmap == nil {
		t.Fatal("broad query should attach a roadmap")
	}
	if len(adv.Roadmap.SeasonalCalendar) != 12 {
		t.Errorf("calendar entries = %d, want 12", len(adv.Roadmap.SeasonalCalendar))
	}
	if len(adv.Roadmap.ImmediateActions) != 1 {
		t.Errorf("immediate actions = %v", adv.Roadmap.ImmediateActions)
	}
	if adv.Strategy != "" || adv.Hyperlocal != "" {
		t.Error("specific runs should not carry the generic-only artifacts")
	}
}

func TestProcessGenericPipelineArtifacts(t *testing.T) {
	llm := &scriptedLLM{
		json: map[string]string{
			"route":     `{"categories":[],"pipeline":"generic"}`,
			"farm plan": `{"immediate_actions":["soil test before sowing"],"seasonal_calendar":{}}`,
		},
		text: "season-wide guidance for the whole farm",
	}
	weatherStub := &stubSpecialist{tag: agents.TagWeather, prose: "w"}
	reg := registryOf(
		weatherStub,
		&stubSpecialist{tag: agents.TagSoil, prose: "s"},
		&stubSpecialist{tag: agents.TagPest, prose: "p"},
		&stubSpecialist{tag: agents.TagScheme, prose: "g"},
	)
	o, _ := newTestOrchestrator(llm, reg, time.Second)

	adv, err := o.Process(context.Background(), Input{TaskID: "t", Transcript: "guide me through the season"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if adv.Mode != agents.ModeGeneric {
		t.Fatalf("mode = %s, want generic", adv.Mode)
	}
	if len(adv.Findings) != 4 {
		t.Errorf("got %d findings, want all four specialists consulted", len(adv.Findings))
	}
	if weatherStub.gotMode != agents.ModeGeneric {
		t.Errorf("specialist saw mode %q, want generic threaded through dispatch", weatherStub.gotMode)
	}
	if adv.Strategy == "" {
		t.Error("generic run should carry a comprehensive strategy")
	}
	if adv.Roadmap == nil || len(adv.Roadmap.SeasonalCalendar) != 12 {
		t.Error("generic run should carry a full 12-month roadmap")
	}
	if adv.Hyperlocal == "" {
		t.Error("generic run should carry hyperlocal guidance")
	}

	raw := string(adv.FindingsJSON())
	for _, key := range []string{"comprehensive_strategy", "roadmap", "hyperlocal_guidance"} {
		if !strings.Contains(raw, key) {
			t.Errorf("advisory JSON missing %q", key)
		}
	}
}
