package triage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalizer_OracleTranslationWins(t *testing.T) {
	oracle := &mockOracle{
		translate: func(ctx context.Context, templateID, lang string) (string, error) {
			assert.Equal(t, "guidance/cardiology", templateID)
			assert.Equal(t, "te", lang)
			return "translated guidance", nil
		},
	}
	l := NewLocalizer(oracle, DefaultGuidancePhrases(), "en", time.Second, nil)

	got := l.Localize(context.Background(), "cardiology", "te")
	assert.Equal(t, "translated guidance", got)
}

func TestLocalizer_StoredPhraseOnOracleFailure(t *testing.T) {
	degrade := &captureDegrade{}
	l := NewLocalizer(&mockOracle{}, DefaultGuidancePhrases(), "en", time.Second, degrade)

	got := l.Localize(context.Background(), "cardiology", "es")
	assert.Contains(t, got, "Cardiología")
	assert.NotContains(t, got, TranslationUnavailableMarker)
	assert.Len(t, degrade.calls, 1)
}

func TestLocalizer_DefaultLanguageWithMarker(t *testing.T) {
	l := NewLocalizer(nil, DefaultGuidancePhrases(), "en", time.Second, nil)

	// Neurology has no Telugu phrase stored.
	got := l.Localize(context.Background(), "neurology", "te")
	assert.True(t, strings.HasPrefix(got, TranslationUnavailableMarker))
	assert.Contains(t, got, "Neurology")
}

func TestLocalizer_DefaultLanguageNeverGetsMarker(t *testing.T) {
	l := NewLocalizer(nil, DefaultGuidancePhrases(), "en", time.Second, nil)

	got := l.Localize(context.Background(), "orthopedics", "en")
	assert.False(t, strings.HasPrefix(got, TranslationUnavailableMarker))
	assert.NotEmpty(t, got)
}

func TestLocalizer_UnknownDepartmentGetsGenericGuidance(t *testing.T) {
	l := NewLocalizer(nil, DefaultGuidancePhrases(), "en", time.Second, nil)

	got := l.Localize(context.Background(), "sports-medicine", "en")
	assert.NotEmpty(t, got, "localizer must never come back empty for a routed department")
}
