package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/snarg/agrivoice/internal/agents"
)

// Roadmap is the 12-month plan attached to broad advisories.
type Roadmap struct {
	ImmediateActions []string          `json:"immediate_actions"`
	ShortTermPlan    []string          `json:"short_term_plan"`
	LongTermStrategy []string          `json:"long_term_strategy"`
	SeasonalCalendar map[string]string `json:"seasonal_calendar"` // "YYYY-MM" -> guidance
}

const synthesisPrompt = `You are an Indian agricultural advisor speaking to a farmer over the
phone. Merge the specialist findings below into one clear, practical
answer to the farmer's question. Use plain spoken language, no markdown,
no bullet symbols. Mention concrete numbers, dates, and scheme names
from the findings. Keep it under 300 words.`

const roadmapPrompt = `From the specialist findings, produce a farm plan as a JSON object:
{"immediate_actions": ["...", ...], "short_term_plan": ["...", ...],
"long_term_strategy": ["...", ...],
"seasonal_calendar": {"YYYY-MM": "<one line of guidance>", ...}}.
The seasonal_calendar must cover the next 12 months starting %s.`

const strategyPrompt = `From the specialist findings, write a comprehensive farming strategy
for this farmer covering crop planning, input and water management, risk
protection, and income improvement over the coming year. Plain spoken
language, no markdown, under 250 words.`

const hyperlocalPrompt = `From the specialist findings and the farmer's profile, write
hyperlocal guidance tied to their village, soil, and the current season:
what to do on their own fields over the next two weeks. Plain spoken
language, no markdown, under 150 words.`

// synthesize fills adv.Response. Generic pipeline runs also get the
// comprehensive strategy, the 12-month roadmap, and the hyperlocal
// guidance; broad specific queries still get the roadmap. A model
// failure never loses the findings: the specialist prose is joined as
// the fallback response.
func (o *Orchestrator) synthesize(ctx context.Context, adv *Advisory) {
	merged := mergeFindings(adv.Findings)
	user := fmt.Sprintf("Farmer's question: %s\n\nProfile: %s\n\nFindings:\n%s",
		adv.Query, describeProfile(adv.Profile), merged)

	if adv.Mode == agents.ModeGeneric {
		adv.Strategy = o.completeProse(ctx, strategyPrompt, user, "strategy")
		adv.Roadmap = o.buildRoadmap(ctx, user)
		adv.Hyperlocal = o.completeProse(ctx, hyperlocalPrompt, user, "hyperlocal guidance")
	} else if len(adv.Categories) >= 3 {
		adv.Roadmap = o.buildRoadmap(ctx, user)
	}

	reply, err := o.llm.Complete(ctx, synthesisPrompt, user, 0.4)
	if err != nil || strings.TrimSpace(reply) == "" {
		o.log.Warn().Err(err).Msg("synthesis failed, joining specialist prose")
		adv.Response = fallbackResponse(adv.Findings)
		return
	}
	adv.Response = strings.TrimSpace(reply)
}

// completeProse runs one prose-generation step, tolerating failure with
// an empty result so the advisory still ships.
func (o *Orchestrator) completeProse(ctx context.Context, system, user, what string) string {
	reply, err := o.llm.Complete(ctx, system, user, 0.4)
	if err != nil {
		o.log.Warn().Err(err).Str("artifact", what).Msg("generation failed, omitting artifact")
		return ""
	}
	return strings.TrimSpace(reply)
}

// buildRoadmap asks the model for the plan and guarantees a complete
// 12-month calendar regardless of what comes back.
func (o *Orchestrator) buildRoadmap(ctx context.Context, user string) *Roadmap {
	start := o.now()
	var rm Roadmap
	system := fmt.Sprintf(roadmapPrompt, start.Format("2006-01"))
	if err := o.llm.CompleteJSON(ctx, system, user, &rm); err != nil {
		o.log.Warn().Err(err).Msg("roadmap generation failed, using seasonal defaults")
		rm = Roadmap{}
	}
	rm.SeasonalCalendar = EnsureCalendar(rm.SeasonalCalendar, start)
	return &rm
}

// EnsureCalendar fills any of the next 12 months missing from the
// calendar with season-stage guidance, and drops keys outside the window.
func EnsureCalendar(cal map[string]string, start time.Time) map[string]string {
	out := make(map[string]string, 12)
	for i := 0; i < 12; i++ {
		m := start.AddDate(0, i, 0)
		key := m.Format("2006-01")
		if v, ok := cal[key]; ok && strings.TrimSpace(v) != "" {
			out[key] = v
			continue
		}
		season, stage := agents.CurrentSeason(m.Month())
		out[key] = defaultMonthGuidance(season, stage)
	}
	return out
}

func defaultMonthGuidance(season, stage string) string {
	switch stage {
	case "sowing":
		return fmt.Sprintf("%s sowing window: prepare fields, arrange certified seed and basal fertiliser", season)
	case "harvest":
		return fmt.Sprintf("%s harvest: plan labour, drying space, and market linkage", season)
	default:
		return fmt.Sprintf("%s crop care: monitor pests weekly, irrigate per soil moisture", season)
	}
}

func mergeFindings(findings []agents.Finding) string {
	var b strings.Builder
	for _, f := range findings {
		if f.Status != agents.StatusOk || f.Prose == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", f.Agent, f.Prose)
		if len(f.Insights) > 0 {
			fmt.Fprintf(&b, "[%s insights] %s\n", f.Agent, strings.Join(f.Insights, "; "))
		}
	}
	return b.String()
}

func fallbackResponse(findings []agents.Finding) string {
	var parts []string
	for _, f := range findings {
		if f.Status == agents.StatusOk && f.Prose != "" {
			parts = append(parts, f.Prose)
		}
	}
	return strings.Join(parts, " ")
}

func describeProfile(p agents.Profile) string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, "name "+p.Name)
	}
	if p.Village != "" || p.District != "" || p.State != "" {
		parts = append(parts, strings.TrimSpace(strings.Join([]string{p.Village, p.District, p.State}, " ")))
	}
	if p.Pincode != "" {
		parts = append(parts, "pincode "+p.Pincode)
	}
	if p.LandHa > 0 {
		parts = append(parts, fmt.Sprintf("%.1f ha", p.LandHa))
	}
	if p.SoilType != "" {
		parts = append(parts, p.SoilType+" soil")
	}
	if len(p.Crops) > 0 {
		parts = append(parts, "grows "+strings.Join(p.Crops, ", "))
	}
	if len(parts) == 0 {
		return "unknown farmer"
	}
	return strings.Join(parts, ", ")
}
