package store

import "testing"

func TestMatchPestNamesCaseInsensitive(t *testing.T) {
	byName := map[string]PestRecord{
		"Whitefly":        {Name: "Whitefly"},
		"Cotton Bollworm": {Name: "Cotton Bollworm"},
		"Aphid":           {Name: "Aphid"},
	}

	// Identified names arrive lowercased from the model.
	out := matchPestNames(byName, []string{"whitefly", "bollworm"}, 0)
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].Name != "Whitefly" {
		t.Errorf("out[0] = %s, want Whitefly (request order preserved)", out[0].Name)
	}
	if out[1].Name != "Cotton Bollworm" {
		t.Errorf("out[1] = %s, want Cotton Bollworm via substring", out[1].Name)
	}
}

func TestMatchPestNamesLimit(t *testing.T) {
	byName := map[string]PestRecord{
		"Whitefly": {Name: "Whitefly"},
		"Aphid":    {Name: "Aphid"},
	}
	out := matchPestNames(byName, []string{"whitefly", "aphid"}, 1)
	if len(out) != 1 {
		t.Errorf("got %d records, want limit of 1 honoured", len(out))
	}
}
