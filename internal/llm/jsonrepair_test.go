package llm

import "testing"

type extraction struct {
	Processes []string `json:"processes"`
	Material  string   `json:"material"`
	Conf      float64  `json:"confidence"`
}

func TestParseJSON_Clean(t *testing.T) {
	var out extraction
	err := ParseJSON(`{"processes":["MIG"],"material":"aluminum","confidence":0.9}`, &out)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if out.Material != "aluminum" || len(out.Processes) != 1 {
		t.Errorf("ParseJSON() = %+v", out)
	}
}

func TestParseJSON_CodeFence(t *testing.T) {
	var out extraction
	reply := "Here is the extraction:\n```json\n{\"material\": \"stainless_steel\", \"confidence\": 0.8}\n```\nLet me know if you need more."
	if err := ParseJSON(reply, &out); err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if out.Material != "stainless_steel" {
		t.Errorf("Material = %q", out.Material)
	}
}

func TestParseJSON_TrailingCommaAndBareKeys(t *testing.T) {
	var out extraction
	reply := `{processes: ["TIG", "MIG",], material: "aluminum",}`
	if err := ParseJSON(reply, &out); err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if len(out.Processes) != 2 || out.Material != "aluminum" {
		t.Errorf("ParseJSON() = %+v", out)
	}
}

func TestParseJSON_NoObject(t *testing.T) {
	var out extraction
	if err := ParseJSON("I could not extract anything useful.", &out); err == nil {
		t.Fatal("ParseJSON() expected error for reply without JSON")
	}
}

func TestRepair_Idempotent(t *testing.T) {
	in := `{"a": 1, "b": [2, 3]}`
	if got := Repair(in); got != in {
		t.Errorf("Repair(%q) = %q, want unchanged", in, got)
	}
}
