package triage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOracle struct {
	classify  func(ctx context.Context, text, lang string) (OracleClassification, error)
	translate func(ctx context.Context, templateID, lang string) (string, error)
}

func (m *mockOracle) Classify(ctx context.Context, text, lang string) (OracleClassification, error) {
	if m.classify == nil {
		return OracleClassification{}, ErrOracleUnavailable
	}
	return m.classify(ctx, text, lang)
}

func (m *mockOracle) Translate(ctx context.Context, templateID, lang string) (string, error) {
	if m.translate == nil {
		return "", ErrOracleUnavailable
	}
	return m.translate(ctx, templateID, lang)
}

type recordedFallback struct {
	op     string
	reason string
}

type captureDegrade struct {
	mu    sync.Mutex
	calls []recordedFallback
}

func (c *captureDegrade) RecordOracleFallback(ctx context.Context, op, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, recordedFallback{op: op, reason: reason})
}

var testDepartments = []string{
	"cardiology", "dermatology", "gastroenterology", "general-medicine",
	"neurology", "orthopedics", "pediatrics",
}

func normalized(utterance, lang string) NormalizedRequest {
	return NormalizedRequest{Utterance: utterance, Language: lang, ReceivedAt: time.Now()}
}

func TestClassifier_AcceptsConfidentOracle(t *testing.T) {
	oracle := &mockOracle{
		classify: func(ctx context.Context, text, lang string) (OracleClassification, error) {
			return OracleClassification{Department: "cardiology", Confidence: 0.92}, nil
		},
	}
	c := NewClassifier(oracle, DefaultLexicon("general-medicine"), testDepartments, 0.5, time.Second, nil)

	result := c.Classify(context.Background(), normalized("chest pain", "en"))

	assert.Equal(t, "cardiology", result.DepartmentID)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, SourceOracle, result.Source)
}

func TestClassifier_FallsBack(t *testing.T) {
	tests := []struct {
		name       string
		oracle     *mockOracle
		wantReason string
	}{
		{
			name: "oracle error",
			oracle: &mockOracle{
				classify: func(ctx context.Context, text, lang string) (OracleClassification, error) {
					return OracleClassification{}, errors.New("boom")
				},
			},
			wantReason: "error",
		},
		{
			name: "low confidence",
			oracle: &mockOracle{
				classify: func(ctx context.Context, text, lang string) (OracleClassification, error) {
					return OracleClassification{Department: "cardiology", Confidence: 0.2}, nil
				},
			},
			wantReason: "low_confidence",
		},
		{
			name: "unknown department",
			oracle: &mockOracle{
				classify: func(ctx context.Context, text, lang string) (OracleClassification, error) {
					return OracleClassification{Department: "astrology", Confidence: 0.99}, nil
				},
			},
			wantReason: "unknown_department",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			degrade := &captureDegrade{}
			c := NewClassifier(tt.oracle, DefaultLexicon("general-medicine"), testDepartments, 0.5, time.Second, degrade)

			result := c.Classify(context.Background(), normalized("bad rash on my arm", "en"))

			assert.Equal(t, SourceFallback, result.Source)
			assert.Equal(t, "dermatology", result.DepartmentID, "lexicon should still route the utterance")
			require.Len(t, degrade.calls, 1)
			assert.Equal(t, "classify", degrade.calls[0].op)
			assert.Equal(t, tt.wantReason, degrade.calls[0].reason)
		})
	}
}

func TestClassifier_OracleTimeoutTakesFallback(t *testing.T) {
	oracle := &mockOracle{
		classify: func(ctx context.Context, text, lang string) (OracleClassification, error) {
			select {
			case <-ctx.Done():
				return OracleClassification{}, ctx.Err()
			case <-time.After(5 * time.Second):
				return OracleClassification{Department: "cardiology", Confidence: 1}, nil
			}
		},
	}
	degrade := &captureDegrade{}
	c := NewClassifier(oracle, DefaultLexicon("general-medicine"), testDepartments, 0.5, 20*time.Millisecond, degrade)

	start := time.Now()
	result := c.Classify(context.Background(), normalized("stomach pain", "te"))

	assert.Less(t, time.Since(start), time.Second, "timeout must bound the oracle call")
	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, "gastroenterology", result.DepartmentID)
	require.Len(t, degrade.calls, 1)
	assert.Equal(t, "timeout", degrade.calls[0].reason)
}

func TestClassifier_NilOracleIsTotal(t *testing.T) {
	c := NewClassifier(nil, DefaultLexicon("general-medicine"), testDepartments, 0.5, time.Second, nil)

	// Any non-empty utterance in any language must produce a department.
	utterances := []struct{ text, lang string }{
		{"chest pain", "en"},
		{"दस्त और पेट दर्द", "hi"},
		{"no keywords whatsoever xyzzy", "en"},
		{"gibberish", "unknown-lang"},
	}
	for _, u := range utterances {
		result := c.Classify(context.Background(), normalized(u.text, u.lang))
		assert.NotEmpty(t, result.DepartmentID)
		assert.Equal(t, SourceFallback, result.Source)
	}
}
