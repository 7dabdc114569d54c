package orchestrate

import (
	"context"
	"strings"

	"github.com/snarg/agrivoice/internal/agents"
)

var keywordCategories = []struct {
	tag      agents.Tag
	keywords []string
}{
	{agents.TagWeather, []string{"weather", "rain", "barish", "irrigation", "pani", "temperature", "forecast", "heat", "wind"}},
	{agents.TagSoil, []string{"soil", "mitti", "fertilizer", "khad", "nutrient", "ph", "compost", "manure"}},
	{agents.TagPest, []string{"pest", "insect", "keeda", "disease", "bimari", "weed", "fungus", "caterpillar", "spray"}},
	{agents.TagScheme, []string{"scheme", "yojana", "subsidy", "loan", "karz", "government", "sarkar", "insurance", "bima", "pm-kisan"}},
}

var allTags = []agents.Tag{agents.TagWeather, agents.TagSoil, agents.TagPest, agents.TagScheme}

const classifyPrompt = `You route an Indian farmer's query to advisory specialists.
Categories: weather, soil, pest, scheme. Decide the pipeline too:
"specific" when the query asks a concrete question, "generic" when the
farmer wants broad end-to-end guidance. Reply with a JSON object
{"categories": ["<category>", ...], "pipeline": "specific" or "generic"}
listing every category the query touches, or an empty list if it is too
general to route.`

// classify picks the specialists to consult and the pipeline to run.
// The model decides first; keyword matching backs it up, and a query
// neither can place runs the generic pipeline with all four
// specialists.
func (o *Orchestrator) classify(ctx context.Context, query string) ([]agents.Tag, agents.Mode) {
	var out struct {
		Categories []string `json:"categories"`
		Pipeline   string   `json:"pipeline"`
	}
	if err := o.llm.CompleteJSON(ctx, classifyPrompt, query, &out); err == nil {
		if strings.EqualFold(strings.TrimSpace(out.Pipeline), string(agents.ModeGeneric)) {
			return append([]agents.Tag(nil), allTags...), agents.ModeGeneric
		}
		if tags := normalizeTags(out.Categories); len(tags) > 0 {
			return tags, agents.ModeSpecific
		}
	} else {
		o.log.Warn().Err(err).Msg("model classification failed, falling back to keywords")
	}
	return FallbackClassify(query)
}

// FallbackClassify routes on keyword hits alone. No hit means the query
// is generic: every specialist weighs in with season-wide guidance.
func FallbackClassify(query string) ([]agents.Tag, agents.Mode) {
	q := strings.ToLower(query)
	var tags []agents.Tag
	for _, c := range keywordCategories {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				tags = append(tags, c.tag)
				break
			}
		}
	}
	if len(tags) == 0 {
		return append([]agents.Tag(nil), allTags...), agents.ModeGeneric
	}
	return tags, agents.ModeSpecific
}

func normalizeTags(names []string) []agents.Tag {
	seen := map[agents.Tag]bool{}
	var tags []agents.Tag
	for _, n := range names {
		t := agents.Tag(strings.ToLower(strings.TrimSpace(n)))
		for _, valid := range allTags {
			if t == valid && !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}
