// Package store holds the external knowledge interfaces: farmer profiles,
// soil records, pest records, and the government scheme catalogue. The
// orchestrator and specialists only see these interfaces; Postgres and
// in-memory implementations live alongside.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a keyed lookup has no row.
var ErrNotFound = errors.New("not found")

// Crop is one crop a farmer grows.
type Crop struct {
	Crop   string  `json:"crop"`
	AreaHa float64 `json:"area_ha,omitempty"`
}

// FarmerProfile is keyed by digits-only phone. Every field is optional;
// callers must not assume presence.
type FarmerProfile struct {
	Phone    string  `json:"phone"`
	Name     string  `json:"name,omitempty"`
	Pincode  string  `json:"pincode,omitempty"`
	Village  string  `json:"village,omitempty"`
	District string  `json:"district,omitempty"`
	State    string  `json:"state,omitempty"`
	LandHa   float64 `json:"land_ha,omitempty"`
	Age      int     `json:"age,omitempty"`
	SoilType string  `json:"soil_type,omitempty"`
	Budget   string  `json:"budget,omitempty"`
	Crops    []Crop  `json:"crops,omitempty"`

	// Ephemeral marks a profile synthesised for one call because no phone
	// number could be recovered from the transcript. Never persisted.
	Ephemeral bool `json:"-"`
}

// CropNames flattens the crop list for prompts and lookups.
func (p *FarmerProfile) CropNames() []string {
	out := make([]string, 0, len(p.Crops))
	for _, c := range p.Crops {
		if c.Crop != "" {
			out = append(out, c.Crop)
		}
	}
	return out
}

// Range is a numeric min/max pair.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SoilRecord describes one soil class.
type SoilRecord struct {
	SoilType             string   `json:"soil_type"`
	PH                   Range    `json:"ph"`
	OrganicMatterPct     Range    `json:"organic_matter_pct"`
	WaterHoldingCapacity string   `json:"water_holding_capacity"` // low, medium, high
	InfiltrationRateMmHr float64  `json:"infiltration_rate_mm_hr"`
	DeficientNutrients   []string `json:"deficient_nutrients,omitempty"`
	Hazards              []string `json:"hazards,omitempty"`
	SuitableCrops        []string `json:"suitable_crops,omitempty"`
	ErosionRisk          string   `json:"erosion_risk,omitempty"`
}

// PestRecord describes one pest or disease.
type PestRecord struct {
	Name             string   `json:"name"`
	Category         string   `json:"category"` // insect, disease, weed
	Crops            []string `json:"crops,omitempty"`
	Symptoms         []string `json:"symptoms,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	MaxCropLossPct   float64  `json:"max_crop_loss_pct"`
	Cultural         []string `json:"cultural,omitempty"`
	Biological       []string `json:"biological,omitempty"`
	Chemical         []string `json:"chemical,omitempty"`
	TreatmentCostMin float64  `json:"treatment_cost_min,omitempty"`
	TreatmentCostMax float64  `json:"treatment_cost_max,omitempty"`
}

// SchemeEligibility lists a scheme's applicable criteria. Nil pointers mean
// the criterion does not apply.
type SchemeEligibility struct {
	FarmerSegments []string `json:"farmer_segments,omitempty"` // small, marginal, all, ...
	AgeMin         *int     `json:"age_min,omitempty"`
	AgeMax         *int     `json:"age_max,omitempty"`
	LandMaxHa      *float64 `json:"land_holding_max_ha,omitempty"`
	Crops          []string `json:"crops,omitempty"`
}

// Scheme is one government scheme from the catalogue.
type Scheme struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Type            string            `json:"type"` // insurance, credit, subsidy, income_support, ...
	Benefit         string            `json:"benefit"`
	ApplicationMode string            `json:"application_mode"`
	Contact         string            `json:"contact,omitempty"`
	Documents       []string          `json:"documents,omitempty"`
	Keywords        []string          `json:"keywords,omitempty"`
	Eligibility     SchemeEligibility `json:"eligibility"`
	Deadline        *time.Time        `json:"deadline,omitempty"`
}

// ProfileStore reads and writes farmer profiles.
type ProfileStore interface {
	Get(ctx context.Context, phone string) (*FarmerProfile, error)
	Put(ctx context.Context, p *FarmerProfile) error
}

// SoilStore looks up soil records by class.
type SoilStore interface {
	Get(ctx context.Context, soilType string) (*SoilRecord, error)
}

// PestStore retrieves pest records.
type PestStore interface {
	// ByNames returns records matching the given names, preserving
	// request order, up to limit.
	ByNames(ctx context.Context, names []string, limit int) ([]PestRecord, error)
	All(ctx context.Context) ([]PestRecord, error)
}

// SchemeStore retrieves the scheme catalogue.
type SchemeStore interface {
	ByNames(ctx context.Context, names []string) ([]Scheme, error)
	All(ctx context.Context) ([]Scheme, error)
}

// Stores bundles the four knowledge interfaces for wiring.
type Stores struct {
	Profiles ProfileStore
	Soil     SoilStore
	Pests    PestStore
	Schemes  SchemeStore
}
