package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/store"
)

// The closed set of soil classes the knowledge base is keyed on.
var soilClasses = []string{
	"alluvial", "black", "desert", "forest", "laterite",
	"mountain", "peaty", "red", "saline",
}

// Dominant soil class per state, used when neither the profile nor the
// query pins one down.
var stateSoils = map[string]string{
	"punjab":         "alluvial",
	"haryana":        "alluvial",
	"uttar pradesh":  "alluvial",
	"bihar":          "alluvial",
	"west bengal":    "alluvial",
	"maharashtra":    "black",
	"madhya pradesh": "black",
	"gujarat":        "black",
	"telangana":      "black",
	"karnataka":      "red",
	"tamil nadu":     "red",
	"andhra pradesh": "red",
	"odisha":         "red",
	"jharkhand":      "red",
	"kerala":         "laterite",
	"goa":            "laterite",
	"rajasthan":      "desert",
	"himachal pradesh": "mountain",
	"uttarakhand":      "mountain",
}

const defaultSoilClass = "alluvial"

// SoilAdvice is the soil specialist's structured payload.
type SoilAdvice struct {
	SoilType        string            `json:"soil_type"`
	Source          string            `json:"source"` // profile, query, state, default
	Record          *store.SoilRecord `json:"record,omitempty"`
	PHStatus        string            `json:"ph_status"` // acidic, neutral, alkaline
	Amendments      []string          `json:"amendments,omitempty"`
	NutrientActions []string          `json:"nutrient_actions,omitempty"`
}

// SoilAgent answers soil health, fertility, and amendment questions.
type SoilAgent struct {
	llm  LLM
	soil store.SoilStore
	log  zerolog.Logger
}

func NewSoilAgent(llm LLM, soil store.SoilStore, log zerolog.Logger) *SoilAgent {
	return &SoilAgent{
		llm:  llm,
		soil: soil,
		log:  log.With().Str("component", "soil_agent").Logger(),
	}
}

func (a *SoilAgent) Tag() Tag { return TagSoil }

const soilClassifyPrompt = `You classify Indian soils. Given a farmer's query, reply with a JSON
object {"soil_type": "<one of: alluvial, black, desert, forest, laterite,
mountain, peaty, red, saline; or empty if the query does not say>"}.`

func (a *SoilAgent) Process(ctx context.Context, req Request) (Finding, error) {
	soilType, source := a.resolveClass(ctx, req)

	advice := SoilAdvice{SoilType: soilType, Source: source}

	rec, err := a.soil.Get(ctx, soilType)
	if err != nil {
		a.log.Warn().Err(err).Str("soil_type", soilType).Msg("no soil record, giving generic guidance")
		advice.PHStatus = "neutral"
	} else {
		advice.Record = rec
		advice.PHStatus = phStatus(rec.PH)
		advice.Amendments = amendments(advice.PHStatus, rec)
		advice.NutrientActions = nutrientActions(rec)
	}

	return Finding{
		Agent:      TagSoil,
		Status:     StatusOk,
		Structured: structured(advice),
		Prose:      describeSoil(&advice),
		Insights:   soilInsights(&advice),
	}, nil
}

// resolveClass walks the fallback chain: profile, query via the model,
// state default, then alluvial.
func (a *SoilAgent) resolveClass(ctx context.Context, req Request) (soilType, source string) {
	if c := normalizeSoilClass(req.Profile.SoilType); c != "" {
		return c, "profile"
	}

	var out struct {
		SoilType string `json:"soil_type"`
	}
	if err := a.llm.CompleteJSON(ctx, soilClassifyPrompt, req.Query, &out); err == nil {
		if c := normalizeSoilClass(out.SoilType); c != "" {
			return c, "query"
		}
	}

	if c, ok := stateSoils[strings.ToLower(strings.TrimSpace(req.Profile.State))]; ok {
		return c, "state"
	}
	return defaultSoilClass, "default"
}

func normalizeSoilClass(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range soilClasses {
		if s == c {
			return c
		}
	}
	return ""
}

func phStatus(ph store.Range) string {
	mid := (ph.Min + ph.Max) / 2
	switch {
	case mid < 6.5:
		return "acidic"
	case mid > 7.5:
		return "alkaline"
	default:
		return "neutral"
	}
}

func amendments(status string, rec *store.SoilRecord) []string {
	var out []string
	switch status {
	case "acidic":
		out = append(out, "apply agricultural lime to raise pH; retest after one season")
	case "alkaline":
		out = append(out, "apply gypsum and organic matter to bring pH down gradually")
	}
	for _, h := range rec.Hazards {
		switch {
		case strings.Contains(h, "salin"):
			out = append(out, "leach salts with good-quality irrigation water and improve drainage")
		case strings.Contains(h, "erosion"):
			out = append(out, "use contour bunding and cover crops to limit erosion")
		case strings.Contains(h, "waterlog"):
			out = append(out, "open field drains before the rains to avoid waterlogging")
		}
	}
	return out
}

func nutrientActions(rec *store.SoilRecord) []string {
	var out []string
	for _, n := range rec.DeficientNutrients {
		switch strings.ToLower(n) {
		case "nitrogen", "n":
			out = append(out, "split nitrogen doses; top-dress urea at tillering")
		case "phosphorus", "p":
			out = append(out, "apply single super phosphate or DAP at sowing")
		case "potassium", "k":
			out = append(out, "apply muriate of potash before flowering")
		case "zinc", "zn":
			out = append(out, "apply zinc sulphate once every two to three seasons")
		default:
			out = append(out, fmt.Sprintf("correct %s deficiency per local soil test card", n))
		}
	}
	return out
}

func describeSoil(a *SoilAdvice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your soil is %s (%s).", a.SoilType, a.PHStatus)
	if a.Record != nil {
		fmt.Fprintf(&b, " Water holding capacity is %s.", a.Record.WaterHoldingCapacity)
		if len(a.Record.SuitableCrops) > 0 {
			fmt.Fprintf(&b, " Well suited to %s.", strings.Join(a.Record.SuitableCrops, ", "))
		}
	}
	for _, s := range a.Amendments {
		fmt.Fprintf(&b, " %s.", strings.ToUpper(s[:1])+s[1:])
	}
	for _, s := range a.NutrientActions {
		fmt.Fprintf(&b, " %s.", strings.ToUpper(s[:1])+s[1:])
	}
	return b.String()
}

func soilInsights(a *SoilAdvice) []string {
	out := []string{fmt.Sprintf("soil: %s, pH %s", a.SoilType, a.PHStatus)}
	if a.Record != nil && len(a.Record.DeficientNutrients) > 0 {
		out = append(out, fmt.Sprintf("deficient: %s", strings.Join(a.Record.DeficientNutrients, ", ")))
	}
	return out
}
