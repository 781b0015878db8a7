package triage

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// DegradeRecorder captures degraded-service signals: every oracle failure,
// timeout or low-confidence answer that pushed a request onto the fallback
// path. Recording is best-effort and never fails the request.
type DegradeRecorder interface {
	RecordOracleFallback(ctx context.Context, op, reason string)
}

type NoopDegradeRecorder struct{}

func (NoopDegradeRecorder) RecordOracleFallback(ctx context.Context, op, reason string) {}

// RedisDegradeRecorder keeps fallback counters in Redis so operators can see
// oracle degradation without the patient ever seeing an error.
type RedisDegradeRecorder struct {
	client *redis.Client
}

func NewRedisDegradeRecorder(client *redis.Client) *RedisDegradeRecorder {
	return &RedisDegradeRecorder{client: client}
}

func (r *RedisDegradeRecorder) RecordOracleFallback(ctx context.Context, op, reason string) {
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, fmt.Sprintf("triage:fallbacks:%s", op))
	pipe.Incr(ctx, fmt.Sprintf("triage:fallbacks:%s:%s", op, reason))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("failed to record oracle fallback op=%s reason=%s: %v", op, reason, err)
	}
}
