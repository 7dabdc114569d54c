package agents

import "time"

// Season is one of the three Indian cropping seasons.
type Season struct {
	Name          string
	Months        []time.Month // months the season is active
	SowMonths     []time.Month
	HarvestMonths []time.Month
}

// Listed in precedence order: where months overlap (April, June) the
// earlier entry wins.
var seasons = []Season{
	{
		Name:          "kharif",
		Months:        []time.Month{time.June, time.July, time.August, time.September, time.October},
		SowMonths:     []time.Month{time.June, time.July},
		HarvestMonths: []time.Month{time.September, time.October},
	},
	{
		Name:          "rabi",
		Months:        []time.Month{time.November, time.December, time.January, time.February, time.March, time.April},
		SowMonths:     []time.Month{time.November, time.December},
		HarvestMonths: []time.Month{time.March, time.April},
	},
	{
		Name:          "zaid",
		Months:        []time.Month{time.April, time.May, time.June},
		SowMonths:     []time.Month{time.April, time.May},
		HarvestMonths: []time.Month{time.June},
	},
}

// CurrentSeason resolves the cropping season and crop stage for a month.
// Stage is one of sowing, growing, harvest.
func CurrentSeason(month time.Month) (season, stage string) {
	for _, s := range seasons {
		if !containsMonth(s.Months, month) {
			continue
		}
		switch {
		case containsMonth(s.SowMonths, month):
			return s.Name, "sowing"
		case containsMonth(s.HarvestMonths, month):
			return s.Name, "harvest"
		default:
			return s.Name, "growing"
		}
	}
	// Every month is covered; unreachable but keep a sane default.
	return "kharif", "growing"
}

// SeasonForMonth returns just the season name.
func SeasonForMonth(month time.Month) string {
	season, _ := CurrentSeason(month)
	return season
}

func containsMonth(ms []time.Month, m time.Month) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}
