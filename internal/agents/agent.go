// Package agents holds the domain specialists: weather, soil, pest, and
// scheme. Each one turns a farmer's query plus their profile into a
// structured finding the synthesiser can merge.
package agents

import (
	"context"
	"encoding/json"
)

// Tag identifies a specialist.
type Tag string

const (
	TagWeather Tag = "weather"
	TagSoil    Tag = "soil"
	TagPest    Tag = "pest"
	TagScheme  Tag = "scheme"
)

// Status reports how a specialist's run went.
type Status string

const (
	StatusOk     Status = "ok"
	StatusEmpty  Status = "empty"  // ran fine, nothing relevant to say
	StatusFailed Status = "failed"
)

// Mode selects the pipeline a specialist runs. Specific queries carry
// their own parameters; generic ones ask for broad guidance, so the
// specialists survey the current season instead of parsing the query.
type Mode string

const (
	ModeSpecific Mode = "specific"
	ModeGeneric  Mode = "generic"
)

// Request is the per-call input every specialist receives. A zero Mode
// is treated as specific.
type Request struct {
	Query   string
	Profile Profile
	Mode    Mode
}

// Profile is the subset of the farmer profile the specialists read.
// A zero value is valid: every field is optional.
type Profile struct {
	Phone    string
	Name     string
	Pincode  string
	Village  string
	District string
	State    string
	LandHa   float64
	Age      int
	SoilType string
	Budget   string
	Crops    []string
}

// Finding is one specialist's contribution to the advisory.
type Finding struct {
	Agent      Tag             `json:"agent"`
	Status     Status          `json:"status"`
	Structured json.RawMessage `json:"structured,omitempty"`
	Prose      string          `json:"prose,omitempty"`
	Insights   []string        `json:"insights,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Failed builds a failure finding for the given specialist.
func Failed(tag Tag, err error) Finding {
	return Finding{Agent: tag, Status: StatusFailed, Error: err.Error()}
}

// Specialist is the contract every domain agent implements.
type Specialist interface {
	Tag() Tag
	Process(ctx context.Context, req Request) (Finding, error)
}

// LLM is the completion surface the specialists need. *llm.Client
// satisfies it; tests substitute fakes.
type LLM interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
	CompleteJSON(ctx context.Context, system, user string, out any) error
}

// Registry maps tags to specialists for dispatch.
type Registry map[Tag]Specialist

// Add registers a specialist under its own tag.
func (r Registry) Add(s Specialist) { r[s.Tag()] = s }

// structured marshals a specialist's payload, tolerating failure by
// returning nil so the prose still flows through.
func structured(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
