package intent

import (
	"sort"
	"strings"
)

// Supported languages. Anything else falls through to English.
var supportedLanguages = []string{"en", "es", "fr", "de", "pt", "it"}

// languageKeywords are compact per-language marker sets scored against the
// lowercased query. The language with the most hits wins; ties and zero
// hits default to English.
var languageKeywords = map[string][]string{
	"en": {"i", "need", "the", "for", "welding", "welder", "machine", "with", "and", "my", "want", "looking"},
	"es": {"necesito", "una", "soldadora", "soldadura", "para", "acero", "taller", "quiero", "con", "máquina", "maquina", "busco", "el", "en", "mi"},
	"fr": {"je", "besoin", "soudure", "soudage", "pour", "acier", "atelier", "machine", "avec", "une", "un", "cherche"},
	"de": {"ich", "brauche", "schweißen", "schweissen", "schweißgerät", "für", "stahl", "werkstatt", "eine", "mit", "und", "suche"},
	"pt": {"preciso", "uma", "soldadora", "soldagem", "para", "aço", "oficina", "quero", "com", "máquina", "em", "minha"},
	"it": {"ho", "bisogno", "saldatura", "saldatrice", "per", "acciaio", "officina", "una", "con", "macchina", "cerco", "di"},
}

// DetectLanguage scores the query against every keyword set and returns the
// winning language with a confidence in [0,1].
func DetectLanguage(query string) (string, float64) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return "en", 0
	}

	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,!?;:")] = true
	}

	best, bestHits := "en", 0
	for _, lang := range supportedLanguages {
		hits := 0
		for _, kw := range languageKeywords[lang] {
			if wordSet[kw] {
				hits++
			}
		}
		// Strict greater keeps ties on English (en is scored first).
		if hits > bestHits {
			best, bestHits = lang, hits
		}
	}

	confidence := float64(bestHits) / float64(len(words))
	if confidence > 1 {
		confidence = 1
	}
	if bestHits == 0 {
		return "en", 0
	}
	return best, confidence
}

// termMaps hold the static domain translations toward English. This is a
// pragmatic bridge for welding vocabulary, not a general translator;
// unknown tokens pass through untouched.
var termMaps = map[string]map[string]string{
	"es": {
		"necesito":          "i need",
		"quiero":            "i want",
		"busco":             "i am looking for",
		"una soldadora":     "a welder",
		"soldadora":         "welder",
		"soldadura":         "welding",
		"acero inoxidable":  "stainless steel",
		"acero":             "steel",
		"aluminio":          "aluminum",
		"taller":            "workshop",
		"alimentador":       "wire feeder",
		"enfriador":         "cooler",
		"antorcha":          "torch",
		"paquete":           "package",
		"principiante":      "beginner",
		"para":              "for",
		"en mi":             "in my",
	},
	"fr": {
		"j'ai besoin":     "i need",
		"je cherche":      "i am looking for",
		"poste à souder":  "welder",
		"soudure":         "welding",
		"soudage":         "welding",
		"acier inoxydable": "stainless steel",
		"acier":           "steel",
		"atelier":         "workshop",
		"dévidoir":        "wire feeder",
		"refroidisseur":   "cooler",
		"torche":          "torch",
		"débutant":        "beginner",
		"pour":            "for",
	},
	"de": {
		"ich brauche":    "i need",
		"ich suche":      "i am looking for",
		"schweißgerät":   "welder",
		"schweißen":      "welding",
		"schweissen":     "welding",
		"edelstahl":      "stainless steel",
		"stahl":          "steel",
		"werkstatt":      "workshop",
		"drahtvorschub":  "wire feeder",
		"kühler":         "cooler",
		"brenner":        "torch",
		"anfänger":       "beginner",
		"für":            "for",
	},
	"pt": {
		"preciso":          "i need",
		"quero":            "i want",
		"soldadora":        "welder",
		"soldagem":         "welding",
		"aço inoxidável":   "stainless steel",
		"aço":              "steel",
		"alumínio":         "aluminum",
		"oficina":          "workshop",
		"alimentador":      "wire feeder",
		"refrigerador":     "cooler",
		"tocha":            "torch",
		"iniciante":        "beginner",
		"para":             "for",
	},
	"it": {
		"ho bisogno":        "i need",
		"cerco":             "i am looking for",
		"saldatrice":        "welder",
		"saldatura":         "welding",
		"acciaio inox":      "stainless steel",
		"acciaio":           "steel",
		"alluminio":         "aluminum",
		"officina":          "workshop",
		"alimentatore":      "wire feeder",
		"raffreddatore":     "cooler",
		"torcia":            "torch",
		"principiante":      "beginner",
		"per":               "for",
	},
}

// reverseTermMaps translate key English domain terms back into the user's
// language for the composed response. Built once at init from termMaps plus
// curated response vocabulary.
var reverseTermMaps = map[string]map[string]string{
	"es": {
		"welding package":  "paquete de soldadura",
		"power source":     "fuente de poder",
		"wire feeder":      "alimentador de alambre",
		"stainless steel":  "acero inoxidable",
		"welder":           "soldadora",
		"welding":          "soldadura",
		"package":          "paquete",
		"cooler":           "enfriador",
		"torch":            "antorcha",
		"aluminum":         "aluminio",
		"recommended":      "recomendado",
		"beginner":         "principiante",
		"safety equipment": "equipo de seguridad",
	},
	"fr": {
		"welding package": "pack de soudage",
		"power source":    "source de courant",
		"wire feeder":     "dévidoir",
		"stainless steel": "acier inoxydable",
		"welder":          "poste à souder",
		"welding":         "soudage",
		"package":         "pack",
		"cooler":          "refroidisseur",
		"torch":           "torche",
		"recommended":     "recommandé",
	},
	"de": {
		"welding package": "Schweißpaket",
		"power source":    "Stromquelle",
		"wire feeder":     "Drahtvorschub",
		"stainless steel": "Edelstahl",
		"welder":          "Schweißgerät",
		"welding":         "Schweißen",
		"package":         "Paket",
		"cooler":          "Kühler",
		"torch":           "Brenner",
		"recommended":     "empfohlen",
	},
	"pt": {
		"welding package": "pacote de soldagem",
		"power source":    "fonte de energia",
		"wire feeder":     "alimentador de arame",
		"stainless steel": "aço inoxidável",
		"welder":          "soldadora",
		"welding":         "soldagem",
		"package":         "pacote",
		"cooler":          "refrigerador",
		"torch":           "tocha",
		"recommended":     "recomendado",
	},
	"it": {
		"welding package": "pacchetto di saldatura",
		"power source":    "generatore",
		"wire feeder":     "alimentatore di filo",
		"stainless steel": "acciaio inox",
		"welder":          "saldatrice",
		"welding":         "saldatura",
		"package":         "pacchetto",
		"cooler":          "raffreddatore",
		"torch":           "torcia",
		"recommended":     "consigliato",
	},
}

// TranslateToEnglish applies the static term map for the language. Matching
// is longest-phrase-first over the lowercased text.
func TranslateToEnglish(lang, text string) string {
	return applyTermMap(termMaps[lang], strings.ToLower(text))
}

// TranslateFromEnglish maps key English domain terms in a user-facing
// string back into the detected language. Structured numeric fields are
// never routed through here.
func TranslateFromEnglish(lang, text string) string {
	return applyTermMap(reverseTermMaps[lang], text)
}

func applyTermMap(terms map[string]string, text string) string {
	if len(terms) == 0 {
		return text
	}
	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		text = replaceFold(text, k, terms[k])
	}
	return text
}

// replaceFold is a case-insensitive strings.ReplaceAll.
func replaceFold(s, old, new string) string {
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)
	var sb strings.Builder
	for {
		i := strings.Index(lower, oldLower)
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		sb.WriteString(s[:i])
		sb.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(oldLower):]
	}
}
