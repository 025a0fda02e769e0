package vocabulary_test

import (
	"strings"
	"testing"

	"github.com/beedev/sparky/internal/vocabulary"
)

func loadTestVocab(t *testing.T) *vocabulary.Vocabulary {
	t.Helper()
	v, err := vocabulary.Load("../../configs/welding_processes.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return v
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := vocabulary.Load("does-not-exist.yaml"); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestEnhance_RepeatsProductNames(t *testing.T) {
	v := loadTestVocab(t)

	enhanced := v.Enhance("I want an Aristo welder")
	// Product names are appended twice on top of the original mention.
	if got := strings.Count(strings.ToLower(enhanced), "aristo"); got < 3 {
		t.Errorf("Enhance() aristo count = %d, want >= 3", got)
	}
}

func TestEnhance_AnnotatesProcesses(t *testing.T) {
	v := loadTestVocab(t)

	enhanced := v.Enhance("TIG welding of thin sheet")
	if !strings.Contains(strings.ToLower(enhanced), "tig welding process") {
		t.Errorf("Enhance() = %q, want process annotation", enhanced)
	}
}

func TestEnhance_NoMatchesUnchanged(t *testing.T) {
	v := loadTestVocab(t)

	in := "completely unrelated text"
	if got := v.Enhance(in); got != in {
		t.Errorf("Enhance() = %q, want unchanged input", got)
	}
}

func TestNormalizeProcess(t *testing.T) {
	v := loadTestVocab(t)

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"gmaw", "MIG", true},
		{"GMAW", "MIG", true},
		{"pulse welding", "MIG", true},
		{"gtaw", "TIG", true},
		{"stick", "MMA", true},
		{"mig", "MIG", true},
		{"TIG", "TIG", true},
		{"underwater basket weaving", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := v.NormalizeProcess(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("NormalizeProcess(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeMaterial(t *testing.T) {
	v := loadTestVocab(t)

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"aluminum", "aluminum", true},
		{"aluminium", "aluminum", true},
		{"acero inoxidable", "stainless_steel", true},
		{"para acero inoxidable en mi taller", "stainless_steel", true},
		{"unobtainium", "", false},
	}
	for _, tt := range tests {
		got, ok := v.NormalizeMaterial(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("NormalizeMaterial(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCategoryWeight(t *testing.T) {
	v := loadTestVocab(t)

	if w := v.CategoryWeight("product_names"); w != 3.0 {
		t.Errorf("CategoryWeight(product_names) = %v, want 3.0", w)
	}
	if w := v.CategoryWeight("nope"); w != 1.0 {
		t.Errorf("CategoryWeight(nope) = %v, want 1.0", w)
	}
}
