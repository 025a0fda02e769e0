package intent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beedev/sparky/internal/llm"
	"github.com/beedev/sparky/internal/vocabulary"
)

// extraction is the JSON shape the LLM is asked to produce.
type extraction struct {
	Processes   []string `json:"processes"`
	Material    string   `json:"material"`
	PowerWatts  float64  `json:"power_watts"`
	CurrentAmps float64  `json:"current_amps"`
	Voltage     float64  `json:"voltage"`
	ThicknessMM float64  `json:"thickness_mm"`
	Environment string   `json:"environment"`
	Application string   `json:"application"`
	Industry    string   `json:"industry"`
	Confidence  float64  `json:"confidence"`
}

const extractSystemPrompt = `You extract structured welding requirements from customer queries.
Reply with a single JSON object and nothing else:
{"processes": ["MIG"|"TIG"|"MMA"|"SAW"|"FCAW"|"GOUGING", ...],
 "material": "", "power_watts": 0, "current_amps": 0, "voltage": 0,
 "thickness_mm": 0, "environment": "", "application": "", "industry": "",
 "confidence": 0.0}
Omit nothing; use zero values for unknown fields. confidence is your own
estimate in [0,1] of how well the query specifies its requirements.`

// extractLLM runs structured extraction with one retry on a parse failure.
// The retry repeats the request with the parse error appended so the model
// can correct its formatting.
func extractLLM(ctx context.Context, client llm.Client, query string) (*extraction, error) {
	messages := []llm.Message{
		{Role: "system", Content: extractSystemPrompt},
		{Role: "user", Content: query},
	}

	reply, err := client.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	var out extraction
	if perr := llm.ParseJSON(reply, &out); perr != nil {
		messages = append(messages,
			llm.Message{Role: "assistant", Content: reply},
			llm.Message{Role: "user", Content: fmt.Sprintf("That was not valid JSON (%v). Reply with only the JSON object.", perr)},
		)
		reply, err = client.Complete(ctx, messages)
		if err != nil {
			return nil, err
		}
		if perr = llm.ParseJSON(reply, &out); perr != nil {
			return nil, perr
		}
	}
	return &out, nil
}

// ── Pattern fallback ─────────────────────────────────────────────

var (
	numericSpecRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:a|amps?|amperes?|v|volts?|w|watts?|kw|mm|millimeters?)\b`)

	ampsRe      = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:a|amps?|amperes?)\b`)
	voltsRe     = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:v|volts?)\b`)
	wattsRe     = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:w|watts?)\b`)
	kilowattsRe = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*kw\b`)
	thicknessRe = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:mm|millimeters?)\b`)
)

// environmentWords is ordered: the first hit wins, so specific sites come
// before generic indoor/outdoor words.
var environmentWords = []struct{ word, env string }{
	{"shipyard", "shipyard"},
	{"offshore", "offshore"},
	{"workshop", "workshop"},
	{"garage", "workshop"},
	{"shop", "workshop"},
	{"outdoors", "outdoor"},
	{"outdoor", "outdoor"},
	{"outside", "outdoor"},
	{"field", "outdoor"},
	{"site", "outdoor"},
	{"indoors", "indoor"},
	{"indoor", "indoor"},
	{"inside", "indoor"},
}

// extractPatterns is the regex fallback used when the LLM is unavailable
// or returns garbage twice. Its confidence is capped low so downstream
// stages know the intent is weakly grounded.
func extractPatterns(query string, vocab *vocabulary.Vocabulary) *extraction {
	q := strings.ToLower(query)
	out := &extraction{}

	for _, p := range vocab.PrimaryProcesses() {
		if containsWord(q, strings.ToLower(p)) {
			out.Processes = append(out.Processes, p)
		}
	}
	// Aliases too: "stick" means MMA even without the acronym present.
	for _, alias := range []string{"stick", "gmaw", "gtaw", "smaw", "flux core", "flux-cored"} {
		if canonical, ok := vocab.NormalizeProcess(alias); ok && strings.Contains(q, alias) && !contains(out.Processes, canonical) {
			out.Processes = append(out.Processes, canonical)
		}
	}

	if m, ok := vocab.NormalizeMaterial(q); ok {
		out.Material = m
	}
	if m := ampsRe.FindStringSubmatch(q); m != nil {
		out.CurrentAmps, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := voltsRe.FindStringSubmatch(q); m != nil {
		out.Voltage, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := kilowattsRe.FindStringSubmatch(q); m != nil {
		kw, _ := strconv.ParseFloat(m[1], 64)
		out.PowerWatts = kw * 1000
	} else if m := wattsRe.FindStringSubmatch(q); m != nil {
		out.PowerWatts, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := thicknessRe.FindStringSubmatch(q); m != nil {
		out.ThicknessMM, _ = strconv.ParseFloat(m[1], 64)
	}
	for _, e := range environmentWords {
		if containsWord(q, e.word) {
			out.Environment = e.env
			break
		}
	}
	for _, ind := range vocab.Industries() {
		if strings.Contains(q, strings.ToLower(ind)) {
			out.Industry = ind
			break
		}
	}
	for _, app := range vocab.Applications() {
		if strings.Contains(q, strings.ToLower(app)) {
			out.Application = app
			break
		}
	}

	// Pattern extraction never claims real confidence.
	out.Confidence = 0.1
	if len(out.Processes) > 0 || out.Material != "" {
		out.Confidence = 0.3
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// normalizeProcesses maps extracted process names onto the canonical set,
// dropping anything unrecognized. unknown returns the dropped names so the
// processor can attempt one LLM remap.
func normalizeProcesses(raw []string, vocab *vocabulary.Vocabulary) (known, unknown []string) {
	seen := map[string]bool{}
	for _, r := range raw {
		if canonical, ok := vocab.NormalizeProcess(r); ok {
			if !seen[canonical] {
				known = append(known, canonical)
				seen[canonical] = true
			}
		} else if strings.TrimSpace(r) != "" {
			unknown = append(unknown, r)
		}
	}
	return known, unknown
}

// environmentFixup keys the environment slot off a small closed set.
func environmentFixup(env string) string {
	e := strings.ToLower(strings.TrimSpace(env))
	for _, w := range environmentWords {
		if w.word == e {
			return w.env
		}
	}
	switch e {
	case "indoor", "outdoor", "workshop", "shipyard", "offshore", "":
		return e
	}
	return "workshop"
}
