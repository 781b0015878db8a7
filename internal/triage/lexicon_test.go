package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicon_Match(t *testing.T) {
	lex := DefaultLexicon("general-medicine")

	tests := []struct {
		name      string
		utterance string
		lang      string
		wantDept  string
	}{
		{"english cardiology", "I have chest pain and palpitations", "en", "cardiology"},
		{"spanish neurology", "dolor de cabeza constante", "es", "neurology"},
		{"hindi gastro", "पेट दर्द और उल्टी हो रही है", "hi", "gastroenterology"},
		{"telugu gastro", "కడుపు నొప్పి", "te", "gastroenterology"},
		{"no match falls to default", "I feel generally unwell", "en", "general-medicine"},
		{"wrong declared language still matches", "stomach pain", "te", "gastroenterology"},
		{"unknown language scores all lexicons", "mal de tête", "pt", "neurology"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dept, conf := lex.Match(tt.utterance, tt.lang)
			assert.Equal(t, tt.wantDept, dept)
			if tt.wantDept == "general-medicine" {
				assert.Zero(t, conf)
			} else {
				assert.Greater(t, conf, 0.0)
				assert.LessOrEqual(t, conf, 0.8)
			}
		})
	}
}

func TestLexicon_TieBreakIsLexicographic(t *testing.T) {
	lex := NewLexicon(map[string]map[string][]string{
		"en": {
			"b-dept": {"ache"},
			"a-dept": {"pain"},
		},
	}, "fallback")

	// One keyword hit each; the smaller department id must win.
	dept, _ := lex.Match("pain and ache everywhere", "en")
	assert.Equal(t, "a-dept", dept)
}

func TestLexicon_CrossLanguageRescoreCountsSharedKeywordOnce(t *testing.T) {
	// "migraine" is spelled the same in English and French; a rescore across
	// all languages must not double-count it into the confidence.
	lex := NewLexicon(map[string]map[string][]string{
		"en": {"a-dept": {"migraine"}},
		"fr": {"a-dept": {"migraine", "vertige"}},
	}, "fallback")

	dept, conf := lex.Match("migraine since yesterday", "pt")
	assert.Equal(t, "a-dept", dept)
	assert.InDelta(t, 0.4, conf, 1e-9, "one distinct keyword hit")
}

func TestLexicon_MoreHitsBeatsTieBreak(t *testing.T) {
	lex := NewLexicon(map[string]map[string][]string{
		"en": {
			"a-dept": {"pain"},
			"z-dept": {"ache", "sore"},
		},
	}, "fallback")

	dept, _ := lex.Match("sore and aching, some pain", "en")
	assert.Equal(t, "z-dept", dept)
}
