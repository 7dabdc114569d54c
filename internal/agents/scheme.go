package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/store"
)

// A scheme counts as a match when this share of its applicable
// eligibility criteria is met.
const eligibilityThreshold = 0.6

// Land holding boundaries for farmer segments, in hectares.
const (
	marginalMaxHa = 1.0
	smallMaxHa    = 2.0
)

// SchemeMatch is one scheme scored against the farmer's profile.
type SchemeMatch struct {
	Scheme   store.Scheme `json:"scheme"`
	Score    float64      `json:"score"`
	Eligible bool         `json:"eligible"`
	Missing  []string     `json:"missing,omitempty"` // criteria that failed
	Urgent   bool         `json:"urgent"`            // deadline inside the horizon
}

// SchemeAdvice is the scheme specialist's structured payload.
type SchemeAdvice struct {
	Matches []SchemeMatch `json:"matches"`
	Method  string        `json:"method"` // model, keyword, all
}

// SchemeAgent matches government schemes to the farmer.
type SchemeAgent struct {
	llm     LLM
	schemes store.SchemeStore
	horizon time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

func NewSchemeAgent(llm LLM, schemes store.SchemeStore, deadlineHorizon time.Duration, log zerolog.Logger) *SchemeAgent {
	if deadlineHorizon <= 0 {
		deadlineHorizon = 30 * 24 * time.Hour
	}
	return &SchemeAgent{
		llm:     llm,
		schemes: schemes,
		horizon: deadlineHorizon,
		now:     time.Now,
		log:     log.With().Str("component", "scheme_agent").Logger(),
	}
}

func (a *SchemeAgent) Tag() Tag { return TagScheme }

const schemeExtractPrompt = `You recognise Indian government agricultural schemes mentioned in a
farmer's query. Reply with a JSON object {"schemes": ["<scheme name>", ...]}
listing any schemes the query refers to, or an empty list if none are named.`

func (a *SchemeAgent) Process(ctx context.Context, req Request) (Finding, error) {
	candidates, method, err := a.candidates(ctx, req)
	if err != nil {
		return Failed(TagScheme, err), fmt.Errorf("scheme lookup: %w", err)
	}

	now := a.now()
	var matches []SchemeMatch
	for _, sc := range candidates {
		m := ScoreScheme(sc, req.Profile)
		m.Urgent = sc.Deadline != nil && sc.Deadline.After(now) && sc.Deadline.Before(now.Add(a.horizon))
		if m.Eligible || method == "model" || method == "keyword" {
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Urgent != matches[j].Urgent {
			return matches[i].Urgent
		}
		return matches[i].Score > matches[j].Score
	})

	advice := SchemeAdvice{Matches: matches, Method: method}
	status := StatusOk
	if len(matches) == 0 {
		status = StatusEmpty
	}
	return Finding{
		Agent:      TagScheme,
		Status:     status,
		Structured: structured(advice),
		Prose:      describeSchemes(&advice),
		Insights:   schemeInsights(&advice),
	}, nil
}

func (a *SchemeAgent) candidates(ctx context.Context, req Request) ([]store.Scheme, string, error) {
	var out struct {
		Schemes []string `json:"schemes"`
	}
	if err := a.llm.CompleteJSON(ctx, schemeExtractPrompt, req.Query, &out); err == nil && len(out.Schemes) > 0 {
		schemes, err := a.schemes.ByNames(ctx, out.Schemes)
		if err != nil {
			return nil, "", err
		}
		if len(schemes) > 0 {
			return schemes, "model", nil
		}
	}

	all, err := a.schemes.All(ctx)
	if err != nil {
		return nil, "", err
	}
	query := strings.ToLower(req.Query)
	var matched []store.Scheme
	for _, sc := range all {
		for _, kw := range sc.Keywords {
			if kw != "" && strings.Contains(query, strings.ToLower(kw)) {
				matched = append(matched, sc)
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched, "keyword", nil
	}
	return all, "all", nil
}

// ScoreScheme checks the farmer against each criterion the scheme
// actually declares; unknown profile fields make a criterion
// non-applicable rather than failing it.
func ScoreScheme(sc store.Scheme, p Profile) SchemeMatch {
	el := sc.Eligibility
	applicable, met := 0, 0
	var missing []string

	if len(el.FarmerSegments) > 0 && p.LandHa > 0 {
		applicable++
		if segmentMatches(el.FarmerSegments, p.LandHa) {
			met++
		} else {
			missing = append(missing, "farmer_segment")
		}
	}
	if el.LandMaxHa != nil && p.LandHa > 0 {
		applicable++
		if p.LandHa <= *el.LandMaxHa {
			met++
		} else {
			missing = append(missing, "land_holding")
		}
	}
	if (el.AgeMin != nil || el.AgeMax != nil) && p.Age > 0 {
		applicable++
		ok := true
		if el.AgeMin != nil && p.Age < *el.AgeMin {
			ok = false
		}
		if el.AgeMax != nil && p.Age > *el.AgeMax {
			ok = false
		}
		if ok {
			met++
		} else {
			missing = append(missing, "age")
		}
	}
	if len(el.Crops) > 0 && len(p.Crops) > 0 {
		applicable++
		if cropsIntersect(el.Crops, p.Crops) {
			met++
		} else {
			missing = append(missing, "crops")
		}
	}

	score := 1.0
	if applicable > 0 {
		score = float64(met) / float64(applicable)
	}
	return SchemeMatch{
		Scheme:   sc,
		Score:    score,
		Eligible: score >= eligibilityThreshold,
		Missing:  missing,
	}
}

func segmentMatches(segments []string, landHa float64) bool {
	segment := "large"
	switch {
	case landHa <= marginalMaxHa:
		segment = "marginal"
	case landHa <= smallMaxHa:
		segment = "small"
	}
	for _, s := range segments {
		s = strings.ToLower(s)
		if s == "all" || s == segment {
			return true
		}
	}
	return false
}

func cropsIntersect(a, b []string) bool {
	set := map[string]bool{}
	for _, x := range a {
		set[strings.ToLower(x)] = true
	}
	for _, x := range b {
		if set[strings.ToLower(x)] {
			return true
		}
	}
	return false
}

func describeSchemes(a *SchemeAdvice) string {
	if len(a.Matches) == 0 {
		return "No matching government schemes found for this query."
	}
	var b strings.Builder
	b.WriteString("Schemes you can look into:")
	for _, m := range a.Matches {
		fmt.Fprintf(&b, " %s: %s. Apply via %s", m.Scheme.Name, m.Scheme.Benefit, m.Scheme.ApplicationMode)
		if len(m.Scheme.Documents) > 0 {
			fmt.Fprintf(&b, " with %s", strings.Join(m.Scheme.Documents, ", "))
		}
		if m.Urgent && m.Scheme.Deadline != nil {
			fmt.Fprintf(&b, ", deadline %s", m.Scheme.Deadline.Format("2 January 2006"))
		}
		if !m.Eligible {
			fmt.Fprintf(&b, " (check eligibility: %s)", strings.Join(m.Missing, ", "))
		}
		b.WriteString(".")
	}
	return b.String()
}

func schemeInsights(a *SchemeAdvice) []string {
	var out []string
	for _, m := range a.Matches {
		if m.Urgent {
			out = append(out, fmt.Sprintf("%s deadline approaching", m.Scheme.Name))
		}
	}
	if n := len(a.Matches); n > 0 {
		out = append(out, fmt.Sprintf("%d schemes matched", n))
	}
	return out
}
