package triage

import (
	"context"
	"errors"
	"time"
)

// Classifier turns a normalized utterance into a department. The oracle is
// consulted first under a deadline; any failure, unknown department or
// low-confidence answer drops to the lexicon, which always has an answer.
// Classify is total: it never returns an error for a normalized request.
type Classifier struct {
	oracle        Oracle
	lexicon       *Lexicon
	departments   map[string]bool
	minConfidence float64
	oracleTimeout time.Duration
	degrade       DegradeRecorder
}

func NewClassifier(oracle Oracle, lexicon *Lexicon, departmentIDs []string, minConfidence float64, oracleTimeout time.Duration, degrade DegradeRecorder) *Classifier {
	if degrade == nil {
		degrade = NoopDegradeRecorder{}
	}

	valid := make(map[string]bool, len(departmentIDs))
	for _, id := range departmentIDs {
		valid[id] = true
	}

	return &Classifier{
		oracle:        oracle,
		lexicon:       lexicon,
		departments:   valid,
		minConfidence: minConfidence,
		oracleTimeout: oracleTimeout,
		degrade:       degrade,
	}
}

func (c *Classifier) Classify(ctx context.Context, req NormalizedRequest) ClassificationResult {
	if c.oracle == nil {
		return c.fallback(req)
	}

	// Bound the oracle call; a late answer is discarded with the context.
	octx, cancel := context.WithTimeout(ctx, c.oracleTimeout)
	defer cancel()

	oc, err := c.oracle.Classify(octx, req.Utterance, req.Language)
	switch {
	case err != nil:
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(octx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		c.degrade.RecordOracleFallback(ctx, "classify", reason)
		return c.fallback(req)
	case !c.departments[oc.Department]:
		c.degrade.RecordOracleFallback(ctx, "classify", "unknown_department")
		return c.fallback(req)
	case oc.Confidence < c.minConfidence:
		c.degrade.RecordOracleFallback(ctx, "classify", "low_confidence")
		return c.fallback(req)
	}

	return ClassificationResult{
		DepartmentID: oc.Department,
		Confidence:   oc.Confidence,
		Source:       SourceOracle,
		Language:     req.Language,
	}
}

func (c *Classifier) fallback(req NormalizedRequest) ClassificationResult {
	dept, conf := c.lexicon.Match(req.Utterance, req.Language)
	return ClassificationResult{
		DepartmentID: dept,
		Confidence:   conf,
		Source:       SourceFallback,
		Language:     req.Language,
	}
}
