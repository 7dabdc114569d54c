package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONPlain(t *testing.T) {
	raw, err := ExtractJSON(`{"pipeline":"specific","confidence":0.9}`)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal extracted: %v", err)
	}
	if out["pipeline"] != "specific" {
		t.Errorf("pipeline = %v", out["pipeline"])
	}
}

func TestExtractJSONSurroundedByProse(t *testing.T) {
	reply := "Sure! Here is the classification you asked for:\n```json\n" +
		`{"agents":["weather","pest"],"nested":{"a":1}}` +
		"\n```\nLet me know if you need anything else."
	raw, err := ExtractJSON(reply)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var out struct {
		Agents []string `json:"agents"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Agents) != 2 || out.Agents[0] != "weather" {
		t.Errorf("agents = %v", out.Agents)
	}
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	reply := `{"note":"use {curly} braces carefully","ok":true}`
	raw, err := ExtractJSON(reply)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var out struct {
		Note string `json:"note"`
		OK   bool   `json:"ok"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Note != "use {curly} braces carefully" || !out.OK {
		t.Errorf("out = %+v", out)
	}
}

func TestExtractJSONEscapedQuote(t *testing.T) {
	reply := `prefix {"msg":"he said \"hi\" {"} suffix`
	raw, err := ExtractJSON(reply)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var out struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Msg != `he said "hi" {` {
		t.Errorf("msg = %q", out.Msg)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	if _, err := ExtractJSON("I could not produce any structured output, sorry."); err == nil {
		t.Error("ExtractJSON succeeded on prose with no JSON")
	}
}

func TestExtractJSONSkipsInvalidCandidate(t *testing.T) {
	reply := `{broken json} then {"valid":1}`
	raw, err := ExtractJSON(reply)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var out struct {
		Valid int `json:"valid"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Valid != 1 {
		t.Errorf("valid = %d", out.Valid)
	}
}
