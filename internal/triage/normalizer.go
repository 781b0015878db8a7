package triage

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Normalizer validates the declared language tag against the supported set
// and canonicalizes the utterance. Unsupported tags degrade to the default
// language instead of failing: a patient with an odd locale still gets help.
type Normalizer struct {
	supported []string
	matcher   language.Matcher
	fallback  string
}

func NewNormalizer(supported []string, fallback string) (*Normalizer, error) {
	if len(supported) == 0 {
		return nil, fmt.Errorf("at least one supported language required")
	}

	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		tag, err := language.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse supported language %q: %w", s, err)
		}
		tags = append(tags, tag)
	}

	found := false
	for _, s := range supported {
		if s == fallback {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("default language %q is not in the supported set", fallback)
	}

	return &Normalizer{
		supported: supported,
		matcher:   language.NewMatcher(tags),
		fallback:  fallback,
	}, nil
}

// Normalize trims the utterance and resolves the declared language tag.
// An empty utterance is the only rejection; everything else degrades.
func (n *Normalizer) Normalize(utterance, declaredLang string) (NormalizedRequest, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return NormalizedRequest{}, fmt.Errorf("%w: empty symptom description", ErrInvalidInput)
	}

	req := NormalizedRequest{
		Utterance:        utterance,
		DeclaredLanguage: declaredLang,
		ReceivedAt:       time.Now().UTC(),
	}

	req.Language, req.LanguageFallback = n.resolve(declaredLang)
	return req, nil
}

func (n *Normalizer) resolve(declared string) (lang string, fellBack bool) {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return n.fallback, true
	}

	tag, err := language.Parse(declared)
	if err != nil {
		return n.fallback, true
	}

	_, idx, conf := n.matcher.Match(tag)
	if conf < language.High {
		return n.fallback, true
	}
	return n.supported[idx], false
}
