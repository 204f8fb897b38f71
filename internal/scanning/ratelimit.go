package scanning

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimited throttles calls to a wrapped model
type rateLimited struct {
	Model
	limiter *rate.Limiter
}

// RateLimited wraps model so that every call first waits on limiter.
// A nil limiter returns model unchanged.
func RateLimited(model Model, limiter *rate.Limiter) Model {
	if limiter == nil {
		return model
	}
	return &rateLimited{Model: model, limiter: limiter}
}

func (r *rateLimited) GenerateContent(ctx context.Context, parts ...Part) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for model rate limit: %w", err)
	}
	return r.Model.GenerateContent(ctx, parts...)
}
