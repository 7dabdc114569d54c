package store

import (
	"context"
	"strings"
	"sync"
)

// filterSchemesByNames matches case-insensitively on name or id, preserving
// request order.
func filterSchemesByNames(all []Scheme, names []string) []Scheme {
	var out []Scheme
	for _, name := range names {
		needle := strings.ToLower(strings.TrimSpace(name))
		if needle == "" {
			continue
		}
		for _, sc := range all {
			if strings.Contains(strings.ToLower(sc.Name), needle) ||
				strings.EqualFold(sc.ID, needle) {
				out = append(out, sc)
				break
			}
		}
	}
	return out
}

// Memory implements all four stores in process. It backs tests and
// database-less deployments; the seed fixtures cover the common soils,
// pests, and flagship schemes so the pipeline degrades usefully.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]FarmerProfile
	soils    map[string]SoilRecord
	pests    []PestRecord
	schemes  []Scheme
}

// NewMemory returns a memory store preloaded with the seed fixtures.
func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]FarmerProfile),
		soils:    seedSoils(),
		pests:    seedPests(),
		schemes:  seedSchemes(),
	}
}

// Stores returns the interface bundle backed by this instance.
func (m *Memory) Stores() Stores {
	return Stores{
		Profiles: &memProfiles{m},
		Soil:     &memSoil{m},
		Pests:    &memPests{m},
		Schemes:  &memSchemes{m},
	}
}

type memProfiles struct{ m *Memory }

func (s *memProfiles) Get(ctx context.Context, phone string) (*FarmerProfile, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	p, ok := s.m.profiles[phone]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (s *memProfiles) Put(ctx context.Context, p *FarmerProfile) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.profiles[p.Phone] = *p
	return nil
}

type memSoil struct{ m *Memory }

func (s *memSoil) Get(ctx context.Context, soilType string) (*SoilRecord, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	rec, ok := s.m.soils[strings.ToLower(strings.TrimSpace(soilType))]
	if !ok {
		return nil, ErrNotFound
	}
	cp := rec
	return &cp, nil
}

type memPests struct{ m *Memory }

func (s *memPests) ByNames(ctx context.Context, names []string, limit int) ([]PestRecord, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []PestRecord
	for _, name := range names {
		needle := strings.ToLower(strings.TrimSpace(name))
		if needle == "" {
			continue
		}
		for _, rec := range s.m.pests {
			if strings.Contains(strings.ToLower(rec.Name), needle) {
				out = append(out, rec)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memPests) All(ctx context.Context) ([]PestRecord, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return append([]PestRecord(nil), s.m.pests...), nil
}

type memSchemes struct{ m *Memory }

func (s *memSchemes) ByNames(ctx context.Context, names []string) ([]Scheme, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return filterSchemesByNames(s.m.schemes, names), nil
}

func (s *memSchemes) All(ctx context.Context) ([]Scheme, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return append([]Scheme(nil), s.m.schemes...), nil
}

func seedSoils() map[string]SoilRecord {
	return map[string]SoilRecord{
		"alluvial": {
			SoilType:             "alluvial",
			PH:                   Range{Min: 6.5, Max: 7.5},
			OrganicMatterPct:     Range{Min: 0.5, Max: 1.5},
			WaterHoldingCapacity: "medium",
			InfiltrationRateMmHr: 15,
			DeficientNutrients:   []string{"nitrogen", "zinc"},
			SuitableCrops:        []string{"wheat", "rice", "sugarcane", "cotton"},
			ErosionRisk:          "low",
		},
		"black": {
			SoilType:             "black",
			PH:                   Range{Min: 7.2, Max: 8.5},
			OrganicMatterPct:     Range{Min: 0.4, Max: 1.0},
			WaterHoldingCapacity: "high",
			InfiltrationRateMmHr: 5,
			DeficientNutrients:   []string{"nitrogen", "phosphorus", "zinc"},
			Hazards:              []string{"waterlogging", "deep cracking when dry"},
			SuitableCrops:        []string{"cotton", "soybean", "sorghum"},
			ErosionRisk:          "moderate",
		},
		"red": {
			SoilType:             "red",
			PH:                   Range{Min: 5.5, Max: 6.8},
			OrganicMatterPct:     Range{Min: 0.3, Max: 0.8},
			WaterHoldingCapacity: "low",
			InfiltrationRateMmHr: 25,
			DeficientNutrients:   []string{"nitrogen", "phosphorus", "potassium", "humus"},
			Hazards:              []string{"drought stress"},
			SuitableCrops:        []string{"groundnut", "millet", "pulses"},
			ErosionRisk:          "high",
		},
		"laterite": {
			SoilType:             "laterite",
			PH:                   Range{Min: 4.5, Max: 6.0},
			OrganicMatterPct:     Range{Min: 0.2, Max: 0.7},
			WaterHoldingCapacity: "low",
			InfiltrationRateMmHr: 30,
			DeficientNutrients:   []string{"nitrogen", "phosphorus", "potassium", "calcium"},
			Hazards:              []string{"acidity", "aluminium toxicity"},
			SuitableCrops:        []string{"cashew", "tea", "tapioca"},
			ErosionRisk:          "high",
		},
		"desert": {
			SoilType:             "desert",
			PH:                   Range{Min: 7.6, Max: 8.8},
			OrganicMatterPct:     Range{Min: 0.1, Max: 0.4},
			WaterHoldingCapacity: "low",
			InfiltrationRateMmHr: 50,
			DeficientNutrients:   []string{"nitrogen", "organic matter"},
			Hazards:              []string{"salinity", "wind erosion"},
			SuitableCrops:        []string{"bajra", "guar", "moth bean"},
			ErosionRisk:          "high",
		},
		"saline": {
			SoilType:             "saline",
			PH:                   Range{Min: 8.0, Max: 9.5},
			OrganicMatterPct:     Range{Min: 0.2, Max: 0.6},
			WaterHoldingCapacity: "medium",
			InfiltrationRateMmHr: 8,
			DeficientNutrients:   []string{"nitrogen", "calcium"},
			Hazards:              []string{"salt stress", "poor germination"},
			SuitableCrops:        []string{"barley", "sugar beet", "salt-tolerant rice"},
			ErosionRisk:          "moderate",
		},
	}
}

func seedPests() []PestRecord {
	return []PestRecord{
		{
			Name:             "whitefly",
			Category:         "insect",
			Crops:            []string{"cotton", "tomato", "brinjal"},
			Symptoms:         []string{"white insects under leaves", "sticky honeydew", "yellowing leaves"},
			Keywords:         []string{"white insect", "safed makkhi", "whitefly"},
			MaxCropLossPct:   50,
			Cultural:         []string{"yellow sticky traps", "remove infested leaves", "avoid excess nitrogen"},
			Biological:       []string{"release Encarsia formosa", "neem oil spray 5ml/l"},
			Chemical:         []string{"imidacloprid 17.8 SL at 0.3 ml/l as last resort"},
			TreatmentCostMin: 500,
			TreatmentCostMax: 2500,
		},
		{
			Name:             "bollworm",
			Category:         "insect",
			Crops:            []string{"cotton", "chickpea", "tomato"},
			Symptoms:         []string{"holes in bolls", "damaged fruiting bodies", "caterpillars"},
			Keywords:         []string{"bollworm", "sundi", "caterpillar in boll"},
			MaxCropLossPct:   70,
			Cultural:         []string{"pheromone traps 5/ha", "intercrop with marigold"},
			Biological:       []string{"HaNPV spray", "Trichogramma release"},
			Chemical:         []string{"emamectin benzoate 5 SG"},
			TreatmentCostMin: 800,
			TreatmentCostMax: 4000,
		},
		{
			Name:             "aphid",
			Category:         "insect",
			Crops:            []string{"wheat", "mustard", "cotton"},
			Symptoms:         []string{"curled leaves", "clusters of small green or black insects", "sooty mould"},
			Keywords:         []string{"aphid", "chepa", "mahu"},
			MaxCropLossPct:   35,
			Cultural:         []string{"early sowing", "remove weed hosts"},
			Biological:       []string{"conserve ladybird beetles", "neem seed kernel extract"},
			Chemical:         []string{"thiamethoxam 25 WG"},
			TreatmentCostMin: 300,
			TreatmentCostMax: 1500,
		},
		{
			Name:             "stem borer",
			Category:         "insect",
			Crops:            []string{"rice", "sugarcane", "maize"},
			Symptoms:         []string{"dead hearts", "whiteheads", "holes in stem"},
			Keywords:         []string{"stem borer", "tana chhedak"},
			MaxCropLossPct:   60,
			Cultural:         []string{"clip seedling tips before transplanting", "harvest close to ground"},
			Biological:       []string{"Trichogramma japonicum cards"},
			Chemical:         []string{"cartap hydrochloride 4G"},
			TreatmentCostMin: 600,
			TreatmentCostMax: 3000,
		},
		{
			Name:             "leaf blight",
			Category:         "disease",
			Crops:            []string{"wheat", "rice", "maize"},
			Symptoms:         []string{"brown lesions on leaves", "drying from tip", "spots with yellow halo"},
			Keywords:         []string{"blight", "jhulsa", "leaf spot"},
			MaxCropLossPct:   40,
			Cultural:         []string{"certified seed", "field sanitation", "balanced fertilisation"},
			Biological:       []string{"Trichoderma seed treatment"},
			Chemical:         []string{"mancozeb 75 WP at 2 g/l"},
			TreatmentCostMin: 400,
			TreatmentCostMax: 2000,
		},
	}
}

func seedSchemes() []Scheme {
	landTwo := 2.0
	ageMin, ageMax := 18, 70

	return []Scheme{
		{
			ID:              "pm-kisan",
			Name:            "PM-KISAN Income Support",
			Type:            "income_support",
			Benefit:         "Rs 6000 per year in three instalments",
			ApplicationMode: "online via PM-KISAN portal or CSC",
			Contact:         "PM-KISAN helpline 155261",
			Documents:       []string{"aadhaar", "land records", "bank passbook"},
			Keywords:        []string{"income", "kisan", "6000", "instalment"},
			Eligibility: SchemeEligibility{
				FarmerSegments: []string{"small", "marginal"},
				LandMaxHa:      &landTwo,
			},
		},
		{
			ID:              "pmfby",
			Name:            "Pradhan Mantri Fasal Bima Yojana",
			Type:            "insurance",
			Benefit:         "crop insurance at 1.5-2% premium of sum insured",
			ApplicationMode: "through bank, CSC, or crop insurance app at sowing time",
			Contact:         "toll-free 1800-180-1551",
			Documents:       []string{"aadhaar", "land records", "sowing certificate", "bank passbook"},
			Keywords:        []string{"insurance", "bima", "fasal", "crop loss"},
			Eligibility: SchemeEligibility{
				FarmerSegments: []string{"all"},
			},
		},
		{
			ID:              "kcc",
			Name:            "Kisan Credit Card",
			Type:            "credit",
			Benefit:         "crop loans up to Rs 3 lakh at subsidised interest",
			ApplicationMode: "any commercial or cooperative bank branch",
			Contact:         "nearest bank branch",
			Documents:       []string{"aadhaar", "land records", "passport photo"},
			Keywords:        []string{"loan", "credit", "karz", "interest"},
			Eligibility: SchemeEligibility{
				FarmerSegments: []string{"all"},
				AgeMin:         &ageMin,
				AgeMax:         &ageMax,
			},
		},
		{
			ID:              "shc",
			Name:            "Soil Health Card Scheme",
			Type:            "advisory",
			Benefit:         "free soil testing and nutrient recommendations every 2 years",
			ApplicationMode: "through local agriculture extension office",
			Contact:         "district agriculture office",
			Documents:       []string{"land records"},
			Keywords:        []string{"soil", "testing", "mitti", "nutrient"},
			Eligibility: SchemeEligibility{
				FarmerSegments: []string{"all"},
			},
		},
		{
			ID:              "pmksy",
			Name:            "PM Krishi Sinchayee Yojana",
			Type:            "subsidy",
			Benefit:         "up to 55% subsidy on drip and sprinkler irrigation",
			ApplicationMode: "state horticulture/agriculture department portal",
			Contact:         "district horticulture office",
			Documents:       []string{"aadhaar", "land records", "quotation from empanelled vendor"},
			Keywords:        []string{"irrigation", "drip", "sprinkler", "sinchai", "subsidy"},
			Eligibility: SchemeEligibility{
				FarmerSegments: []string{"small", "marginal"},
				LandMaxHa:      &landTwo,
			},
		},
	}
}
