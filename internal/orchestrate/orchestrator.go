// Package orchestrate runs the advisory flow: resolve the farmer, distil
// the query, route it to the domain specialists, and synthesise one
// answer from their findings.
package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/agents"
	"github.com/snarg/agrivoice/internal/pipeline"
	"github.com/snarg/agrivoice/internal/store"
)

// queryFallbackChars is how much of the raw transcript stands in for the
// query when distillation fails.
const queryFallbackChars = 200

// Input is one transcribed call ready for advisory.
type Input struct {
	TaskID     string
	Transcript string
	CallerID   string // phone from telephony metadata, may be empty
}

// Advisory is the orchestrator's full output for one call. Generic
// pipeline runs carry three extra artifacts: the comprehensive
// strategy, the roadmap, and the hyperlocal guidance.
type Advisory struct {
	TaskID     string           `json:"task_id"`
	Query      string           `json:"query"`
	Mode       agents.Mode      `json:"mode"`
	Categories []agents.Tag     `json:"categories"`
	Findings   []agents.Finding `json:"findings"`
	Response   string           `json:"response"`
	Strategy   string           `json:"comprehensive_strategy,omitempty"`
	Roadmap    *Roadmap         `json:"roadmap,omitempty"`
	Hyperlocal string           `json:"hyperlocal_guidance,omitempty"`
	Profile    agents.Profile   `json:"profile"`
	Phone      string           `json:"phone,omitempty"`
	Elapsed    time.Duration    `json:"-"`
}

// Orchestrator wires the model, the knowledge stores, and the specialist
// registry together.
type Orchestrator struct {
	llm          agents.LLM
	profiles     store.ProfileStore
	registry     agents.Registry
	agentTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// New builds an orchestrator. agentTimeout bounds each specialist's run.
func New(llm agents.LLM, profiles store.ProfileStore, registry agents.Registry, agentTimeout time.Duration, log zerolog.Logger) *Orchestrator {
	if agentTimeout <= 0 {
		agentTimeout = 30 * time.Second
	}
	return &Orchestrator{
		llm:          llm,
		profiles:     profiles,
		registry:     registry,
		agentTimeout: agentTimeout,
		now:          time.Now,
		log:          log.With().Str("component", "orchestrator").Logger(),
	}
}

// Process runs the full advisory flow for one transcript.
func (o *Orchestrator) Process(ctx context.Context, in Input) (*Advisory, error) {
	started := o.now()
	log := o.log.With().Str("task_id", in.TaskID).Logger()

	profile, phone := o.resolveProfile(ctx, in)
	query := o.extractQuery(ctx, in.Transcript)
	categories, mode := o.classify(ctx, query)

	log.Info().
		Str("phone", maskPhone(phone)).
		Str("mode", string(mode)).
		Interface("categories", categories).
		Msg("dispatching specialists")

	findings := o.dispatch(ctx, categories, agents.Request{Query: query, Profile: profile, Mode: mode})

	okCount := 0
	for _, f := range findings {
		if f.Status == agents.StatusOk {
			okCount++
		}
	}
	if okCount == 0 {
		return nil, pipeline.Errf(pipeline.KindAllAgentsFailed,
			"all %d specialists failed for task %s", len(findings), in.TaskID)
	}

	adv := &Advisory{
		TaskID:     in.TaskID,
		Query:      query,
		Mode:       mode,
		Categories: categories,
		Findings:   findings,
		Profile:    profile,
		Phone:      phone,
	}
	o.synthesize(ctx, adv)
	adv.Elapsed = o.now().Sub(started)

	log.Info().
		Int("specialists", len(findings)).
		Int("ok", okCount).
		Dur("elapsed", adv.Elapsed).
		Msg("advisory complete")
	return adv, nil
}

// dispatch fans the request out to the routed specialists concurrently.
// A specialist that errors or overruns its deadline contributes a failed
// finding instead of sinking the call.
func (o *Orchestrator) dispatch(ctx context.Context, categories []agents.Tag, req agents.Request) []agents.Finding {
	findings := make([]agents.Finding, len(categories))
	var wg sync.WaitGroup
	for i, tag := range categories {
		spec, ok := o.registry[tag]
		if !ok {
			findings[i] = agents.Failed(tag, fmt.Errorf("no specialist registered for %s", tag))
			continue
		}
		wg.Add(1)
		go func(i int, tag agents.Tag, spec agents.Specialist) {
			defer wg.Done()
			actx, cancel := context.WithTimeout(ctx, o.agentTimeout)
			defer cancel()

			done := make(chan agents.Finding, 1)
			go func() {
				f, err := spec.Process(actx, req)
				if err != nil && f.Status != agents.StatusFailed {
					f = agents.Failed(tag, err)
				}
				done <- f
			}()

			select {
			case f := <-done:
				findings[i] = f
			case <-actx.Done():
				err := pipeline.Errf(pipeline.KindTimeout, "%s specialist exceeded %s", tag, o.agentTimeout)
				findings[i] = agents.Failed(tag, err)
				o.log.Warn().Str("agent", string(tag)).Dur("timeout", o.agentTimeout).Msg("specialist timed out")
			}
		}(i, tag, spec)
	}
	wg.Wait()
	return findings
}

const profileExtractPrompt = `You extract farmer details from a transcribed phone call to an Indian
agricultural advisory line. Reply with a JSON object; omit anything the
call does not state:
{"phone": "<digits>", "name": "", "pincode": "", "village": "",
"district": "", "state": "", "land_ha": 0, "age": 0, "soil_type": "",
"budget": "", "crops": ["<crop>", ...]}`

// resolveProfile finds or builds the farmer's profile. Caller ID wins
// over anything the transcript says; a call with no phone at all gets an
// ephemeral profile that is never persisted.
func (o *Orchestrator) resolveProfile(ctx context.Context, in Input) (agents.Profile, string) {
	var extracted struct {
		Phone    string   `json:"phone"`
		Name     string   `json:"name"`
		Pincode  string   `json:"pincode"`
		Village  string   `json:"village"`
		District string   `json:"district"`
		State    string   `json:"state"`
		LandHa   float64  `json:"land_ha"`
		Age      int      `json:"age"`
		SoilType string   `json:"soil_type"`
		Budget   string   `json:"budget"`
		Crops    []string `json:"crops"`
	}
	if err := o.llm.CompleteJSON(ctx, profileExtractPrompt, in.Transcript, &extracted); err != nil {
		o.log.Warn().Err(err).Msg("profile extraction failed, continuing without details")
	}

	phone := digitsOnly(in.CallerID)
	if phone == "" {
		phone = digitsOnly(extracted.Phone)
	}

	stored := &store.FarmerProfile{}
	if phone != "" {
		if p, err := o.profiles.Get(ctx, phone); err == nil {
			stored = p
		} else if err != store.ErrNotFound {
			o.log.Warn().Err(err).Msg("profile lookup failed")
		}
	}

	// Fresh details from this call overwrite stale stored ones.
	merged := *stored
	merged.Phone = phone
	mergeStr(&merged.Name, extracted.Name)
	mergeStr(&merged.Pincode, extracted.Pincode)
	mergeStr(&merged.Village, extracted.Village)
	mergeStr(&merged.District, extracted.District)
	mergeStr(&merged.State, extracted.State)
	mergeStr(&merged.SoilType, extracted.SoilType)
	mergeStr(&merged.Budget, extracted.Budget)
	if extracted.LandHa > 0 {
		merged.LandHa = extracted.LandHa
	}
	if extracted.Age > 0 {
		merged.Age = extracted.Age
	}
	for _, c := range extracted.Crops {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" && !hasCrop(merged.Crops, c) {
			merged.Crops = append(merged.Crops, store.Crop{Crop: c})
		}
	}

	if phone != "" {
		if err := o.profiles.Put(ctx, &merged); err != nil {
			o.log.Warn().Err(err).Str("phone", maskPhone(phone)).Msg("profile persist failed")
		}
	} else {
		merged.Ephemeral = true
	}

	return agents.Profile{
		Phone:    phone,
		Name:     merged.Name,
		Pincode:  merged.Pincode,
		Village:  merged.Village,
		District: merged.District,
		State:    merged.State,
		LandHa:   merged.LandHa,
		Age:      merged.Age,
		SoilType: merged.SoilType,
		Budget:   merged.Budget,
		Crops:    merged.CropNames(),
	}, phone
}

const queryExtractPrompt = `You distil the actual question from a transcribed farmer call. The
transcript may ramble. Reply with a JSON object {"query": "<the farmer's
question in one or two sentences, in English>"}.`

// extractQuery distils the question; on failure the transcript's opening
// stands in.
func (o *Orchestrator) extractQuery(ctx context.Context, transcript string) string {
	var out struct {
		Query string `json:"query"`
	}
	if err := o.llm.CompleteJSON(ctx, queryExtractPrompt, transcript, &out); err == nil {
		if q := strings.TrimSpace(out.Query); q != "" {
			return q
		}
	}
	runes := []rune(strings.TrimSpace(transcript))
	if len(runes) > queryFallbackChars {
		runes = runes[:queryFallbackChars]
	}
	return string(runes)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func mergeStr(dst *string, src string) {
	if s := strings.TrimSpace(src); s != "" {
		*dst = s
	}
}

func hasCrop(crops []store.Crop, name string) bool {
	for _, c := range crops {
		if strings.EqualFold(c.Crop, name) {
			return true
		}
	}
	return false
}

// FindingsJSON renders the findings for persistence in the response
// artifact.
func (a *Advisory) FindingsJSON() json.RawMessage {
	raw, err := json.Marshal(a)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
