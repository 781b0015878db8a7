package triage

import (
	"sort"
	"strings"
)

// Lexicon is the deterministic fallback classifier. It scores keyword hits
// per department and never fails: when nothing matches it answers with the
// configured default department at zero confidence.
type Lexicon struct {
	// keywords: language tag -> department id -> keyword list
	keywords          map[string]map[string][]string
	defaultDepartment string
}

func NewLexicon(keywords map[string]map[string][]string, defaultDepartment string) *Lexicon {
	return &Lexicon{
		keywords:          keywords,
		defaultDepartment: defaultDepartment,
	}
}

// Match scores the utterance against the lexicon for lang. Patients often
// type in a language other than the one they declared, so a zero score in
// the declared language retries across every language we know. Ties resolve
// to the lexicographically smallest department id so results are
// reproducible.
func (l *Lexicon) Match(utterance, lang string) (departmentID string, confidence float64) {
	text := strings.ToLower(utterance)

	if dept, n := score(text, l.keywords[lang]); n > 0 {
		return dept, fallbackConfidence(n)
	}
	if dept, n := score(text, l.merged()); n > 0 {
		return dept, fallbackConfidence(n)
	}
	return l.defaultDepartment, 0
}

func score(text string, perDept map[string][]string) (string, int) {
	ids := make([]string, 0, len(perDept))
	for id := range perDept {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ""
	bestScore := 0
	for _, id := range ids {
		n := 0
		for _, kw := range perDept[id] {
			if strings.Contains(text, strings.ToLower(kw)) {
				n++
			}
		}
		if n > bestScore {
			best = id
			bestScore = n
		}
	}
	return best, bestScore
}

// Keyword matches are heuristic; cap fallback confidence well below an
// accepted oracle answer.
func fallbackConfidence(score int) float64 {
	conf := 0.3 + 0.1*float64(score)
	if conf > 0.8 {
		conf = 0.8
	}
	return conf
}

// merged folds every language's keyword lists into one per department,
// deduplicating terms shared across languages so a keyword counts at most
// once toward the confidence score.
func (l *Lexicon) merged() map[string][]string {
	seen := make(map[string]map[string]bool)
	merged := make(map[string][]string)
	for _, perDept := range l.keywords {
		for id, kws := range perDept {
			if seen[id] == nil {
				seen[id] = make(map[string]bool)
			}
			for _, kw := range kws {
				k := strings.ToLower(kw)
				if seen[id][k] {
					continue
				}
				seen[id][k] = true
				merged[id] = append(merged[id], kw)
			}
		}
	}
	return merged
}

// DefaultLexicon covers the departments the seed command creates, in the
// languages the service supports out of the box.
func DefaultLexicon(defaultDepartment string) *Lexicon {
	return NewLexicon(map[string]map[string][]string{
		"en": {
			"cardiology":       {"chest pain", "palpitation", "heart", "breathless", "shortness of breath"},
			"dermatology":      {"rash", "itch", "skin", "acne", "eczema", "mole"},
			"gastroenterology": {"stomach", "abdominal", "nausea", "vomit", "diarrhea", "indigestion", "heartburn"},
			"neurology":        {"headache", "migraine", "dizzy", "seizure", "numbness", "tingling"},
			"orthopedics":      {"joint", "knee", "back pain", "fracture", "sprain", "shoulder"},
			"pediatrics":       {"child", "baby", "infant", "toddler", "vaccination"},
		},
		"es": {
			"cardiology":       {"dolor de pecho", "palpitaciones", "corazón", "falta de aire"},
			"dermatology":      {"sarpullido", "picazón", "piel", "acné"},
			"gastroenterology": {"estómago", "abdominal", "náuseas", "vómito", "diarrea"},
			"neurology":        {"dolor de cabeza", "migraña", "mareo", "convulsión"},
			"orthopedics":      {"articulación", "rodilla", "dolor de espalda", "fractura"},
			"pediatrics":       {"niño", "bebé", "vacuna"},
		},
		"hi": {
			"cardiology":       {"सीने में दर्द", "धड़कन", "दिल", "सांस"},
			"dermatology":      {"खुजली", "त्वचा", "दाने"},
			"gastroenterology": {"पेट दर्द", "उल्टी", "दस्त", "पेट"},
			"neurology":        {"सिरदर्द", "चक्कर", "माइग्रेन"},
			"orthopedics":      {"जोड़ों", "घुटने", "कमर दर्द", "हड्डी"},
			"pediatrics":       {"बच्चा", "शिशु", "टीका"},
		},
		"te": {
			"cardiology":       {"గుండె", "ఛాతీ నొప్పి", "ఊపిరి"},
			"dermatology":      {"దురద", "చర్మం", "దద్దుర్లు"},
			"gastroenterology": {"కడుపు నొప్పి", "వాంతులు", "కడుపు", "విరేచనాలు"},
			"neurology":        {"తలనొప్పి", "మైకము"},
			"orthopedics":      {"కీళ్ల", "మోకాలు", "నడుము నొప్పి"},
			"pediatrics":       {"పిల్లల", "శిశువు"},
		},
		"fr": {
			"cardiology":       {"douleur thoracique", "palpitations", "coeur", "essoufflement"},
			"dermatology":      {"éruption", "démangeaison", "peau", "acné"},
			"gastroenterology": {"estomac", "abdominale", "nausée", "vomissement", "diarrhée"},
			"neurology":        {"mal de tête", "migraine", "vertige", "convulsion"},
			"orthopedics":      {"articulation", "genou", "mal de dos", "fracture"},
			"pediatrics":       {"enfant", "bébé", "vaccin"},
		},
	}, defaultDepartment)
}
