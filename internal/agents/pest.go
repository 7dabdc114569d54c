package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/store"
)

// Record limits by pipeline: a specific identification surfaces the top
// matches, a generic survey covers more ground.
const (
	specificPestLimit = 3
	genericPestLimit  = 5
)

// PestAdvice is the pest specialist's structured payload.
type PestAdvice struct {
	Identified []string           `json:"identified,omitempty"`
	Method     string             `json:"method"` // model, keyword, crop, generic
	Records    []store.PestRecord `json:"records"`
	Priority   string             `json:"priority,omitempty"` // worst pest by potential loss
	CostMin    float64            `json:"treatment_cost_min,omitempty"`
	CostMax    float64            `json:"treatment_cost_max,omitempty"`
}

// PestAgent identifies pests and diseases and lays out IPM treatment.
type PestAgent struct {
	llm   LLM
	pests store.PestStore
	log   zerolog.Logger
}

func NewPestAgent(llm LLM, pests store.PestStore, log zerolog.Logger) *PestAgent {
	return &PestAgent{
		llm:   llm,
		pests: pests,
		log:   log.With().Str("component", "pest_agent").Logger(),
	}
}

func (a *PestAgent) Tag() Tag { return TagPest }

const pestIdentifyPrompt = `You identify crop pests and diseases from an Indian farmer's
description. Reply with a JSON object {"pests": ["<common english name>", ...]}
listing the most likely pests in confidence order, or an empty list if the
description does not point to any specific pest.`

func (a *PestAgent) Process(ctx context.Context, req Request) (Finding, error) {
	var (
		names   []string
		method  string
		records []store.PestRecord
		err     error
	)
	// Generic runs skip identification entirely: the farmer asked for
	// broad guidance, so survey the threats to their crops.
	if req.Mode != ModeGeneric {
		names, method = a.identify(ctx, req)
	}
	if len(names) > 0 {
		records, err = a.pests.ByNames(ctx, names, specificPestLimit)
		if err != nil {
			return Failed(TagPest, err), fmt.Errorf("pest lookup: %w", err)
		}
	}
	if len(records) == 0 {
		records, err = a.genericForCrops(ctx, req.Profile.Crops)
		if err != nil {
			return Failed(TagPest, err), fmt.Errorf("pest lookup: %w", err)
		}
		if len(names) == 0 {
			method = "generic"
		} else {
			method = "crop"
		}
	}

	advice := PestAdvice{Identified: names, Method: method, Records: records}
	if len(records) > 0 {
		worst := records[0]
		for _, r := range records[1:] {
			if r.MaxCropLossPct > worst.MaxCropLossPct {
				worst = r
			}
		}
		advice.Priority = worst.Name
		for _, r := range records {
			advice.CostMin += r.TreatmentCostMin
			advice.CostMax += r.TreatmentCostMax
		}
	}

	status := StatusOk
	if len(records) == 0 {
		status = StatusEmpty
	}
	return Finding{
		Agent:      TagPest,
		Status:     status,
		Structured: structured(advice),
		Prose:      describePests(&advice),
		Insights:   pestInsights(&advice),
	}, nil
}

// identify asks the model first, then falls back to keyword matching
// against the knowledge base.
func (a *PestAgent) identify(ctx context.Context, req Request) (names []string, method string) {
	var out struct {
		Pests []string `json:"pests"`
	}
	if err := a.llm.CompleteJSON(ctx, pestIdentifyPrompt, req.Query, &out); err == nil && len(out.Pests) > 0 {
		for _, p := range out.Pests {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				names = append(names, p)
			}
		}
		if len(names) > 0 {
			return names, "model"
		}
	}

	all, err := a.pests.All(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("keyword fallback unavailable")
		return nil, ""
	}
	query := strings.ToLower(req.Query)
	for _, rec := range all {
		for _, kw := range append(rec.Keywords, rec.Name) {
			if kw != "" && strings.Contains(query, strings.ToLower(kw)) {
				names = append(names, rec.Name)
				break
			}
		}
	}
	if len(names) > 0 {
		return names, "keyword"
	}
	return nil, ""
}

// genericForCrops surfaces the worst pests threatening the farmer's crops,
// or the worst overall when no crops are known.
func (a *PestAgent) genericForCrops(ctx context.Context, crops []string) ([]store.PestRecord, error) {
	all, err := a.pests.All(ctx)
	if err != nil {
		return nil, err
	}

	var matched []store.PestRecord
	if len(crops) > 0 {
		want := map[string]bool{}
		for _, c := range crops {
			want[strings.ToLower(c)] = true
		}
		for _, rec := range all {
			for _, c := range rec.Crops {
				if want[strings.ToLower(c)] {
					matched = append(matched, rec)
					break
				}
			}
		}
	}
	if len(matched) == 0 {
		matched = all
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].MaxCropLossPct > matched[j].MaxCropLossPct
	})
	if len(matched) > genericPestLimit {
		matched = matched[:genericPestLimit]
	}
	return matched, nil
}

func describePests(a *PestAdvice) string {
	if len(a.Records) == 0 {
		return "No pest threats identified from the description or crop profile."
	}
	var b strings.Builder
	if len(a.Identified) > 0 {
		fmt.Fprintf(&b, "Likely problem: %s.", strings.Join(a.Identified, " or "))
	} else {
		b.WriteString("Common threats for your crops:")
	}
	for _, r := range a.Records {
		fmt.Fprintf(&b, " %s (%s, up to %.0f%% crop loss)", r.Name, r.Category, r.MaxCropLossPct)
		if len(r.Cultural) > 0 {
			fmt.Fprintf(&b, ". Cultural: %s", r.Cultural[0])
		}
		if len(r.Biological) > 0 {
			fmt.Fprintf(&b, "; biological: %s", r.Biological[0])
		}
		if len(r.Chemical) > 0 {
			fmt.Fprintf(&b, "; chemical: %s", r.Chemical[0])
		}
		b.WriteString(".")
	}
	if a.CostMax > 0 {
		fmt.Fprintf(&b, " Expected treatment cost: ₹%.0f to ₹%.0f per acre.", a.CostMin, a.CostMax)
	}
	return b.String()
}

func pestInsights(a *PestAdvice) []string {
	var out []string
	if a.Priority != "" {
		out = append(out, fmt.Sprintf("priority pest: %s", a.Priority))
	}
	if a.CostMax > 0 {
		out = append(out, fmt.Sprintf("treatment budget ₹%.0f-%.0f/acre", a.CostMin, a.CostMax))
	}
	return out
}
