package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeFenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe  = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// ParseJSON decodes an LLM reply into out, tolerating the usual formatting
// sloppiness: markdown code fences, prose around the object, trailing
// commas, unquoted keys. It tries the raw text first and the repaired text
// once before giving up.
func ParseJSON(text string, out any) error {
	candidate := extractObject(text)
	if candidate == "" {
		return fmt.Errorf("%w: no JSON object in reply", ErrLLM)
	}

	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	repaired := Repair(candidate)
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("%w: parse reply: %v", ErrLLM, err)
	}
	return nil
}

// Repair applies the textual fixes: trailing commas removed, bare keys
// quoted.
func Repair(s string) string {
	s = trailingComma.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2":`)
	return s
}

// extractObject pulls the JSON object out of a reply, unwrapping a code
// fence if present, otherwise slicing from the first '{' to the last '}'.
func extractObject(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
