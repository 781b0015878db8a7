package triage

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrOracleUnavailable is internal: the classifier and localizer always
	// convert it into fallback behavior, it never reaches a caller.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// Source records which path produced a classification.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourceFallback Source = "fallback"
)

// NormalizedRequest is a validated symptom utterance. Ephemeral; it lives for
// a single classification call and is never persisted.
type NormalizedRequest struct {
	Utterance        string
	Language         string // resolved supported tag
	DeclaredLanguage string // what the caller sent
	LanguageFallback bool   // true when the declared tag was not supported
	ReceivedAt       time.Time
}

type ClassificationResult struct {
	DepartmentID string
	Confidence   float64
	Source       Source
	Guidance     string
	Language     string // language the guidance is rendered in
}
