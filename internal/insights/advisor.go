// Package insights turns spending summaries into model prompts and returns the
// model's commentary.
package insights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zombor/receipt-insights/internal/aggregate"
	"github.com/zombor/receipt-insights/internal/receipt"
	"github.com/zombor/receipt-insights/internal/scanning"
)

// ErrEmptyQuestion is returned by Chat when the question is blank
var ErrEmptyQuestion = errors.New("question is empty")

// Advisor asks the model for insights and chat replies about stored receipts
type Advisor struct {
	model    scanning.Model
	cache    *gocache.Cache
	currency string
	location *time.Location
}

// NewAdvisor creates an Advisor that caches insights for ttl. A zero ttl
// disables caching. Expired entries are only evicted while RunJanitor runs.
func NewAdvisor(model scanning.Model, ttl time.Duration, currency string) *Advisor {
	var cache *gocache.Cache
	if ttl > 0 {
		cache = gocache.New(ttl, 0)
	}
	return NewAdvisorWithCache(model, cache, currency)
}

// NewAdvisorWithCache creates an Advisor with a caller supplied cache
func NewAdvisorWithCache(model scanning.Model, cache *gocache.Cache, currency string) *Advisor {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Advisor{model: model, cache: cache, currency: currency, location: time.UTC}
}

// WithLocation sets the time zone used to bucket receipts by month
func (a *Advisor) WithLocation(loc *time.Location) *Advisor {
	if loc != nil {
		a.location = loc
	}
	return a
}

// RunJanitor evicts expired insights every interval until ctx is done.
// It returns at once when caching is disabled.
func (a *Advisor) RunJanitor(ctx context.Context, interval time.Duration) error {
	if a.cache == nil || interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Stopping insights cache janitor")
			return nil
		case <-ticker.C:
			a.cache.DeleteExpired()
		}
	}
}

// fingerprint identifies a summary so identical data reuses cached insights
func fingerprint(summary aggregate.Summary) (string, error) {
	b, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Insights returns commentary on the receipts. With no receipts it returns
// EmptyInsightsMessage without calling the model.
func (a *Advisor) Insights(ctx context.Context, receipts []*receipt.Receipt) (string, error) {
	summary := aggregate.SummarizeIn(receipts, a.location)
	if summary.Empty() {
		return EmptyInsightsMessage, nil
	}

	key, err := fingerprint(summary)
	if err != nil {
		return "", fmt.Errorf("fingerprinting summary: %w", err)
	}
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			slog.Debug("Serving cached insights", "receipts", summary.Count)
			return cached.(string), nil
		}
	}

	text, err := a.model.GenerateContent(ctx, scanning.TextPart(InsightsPrompt(summary, a.currency)))
	if err != nil {
		return "", fmt.Errorf("generating insights: %w", err)
	}
	text = strings.TrimSpace(text)

	if a.cache != nil {
		a.cache.SetDefault(key, text)
	}
	return text, nil
}

// Chat answers a question with the receipts as context. The model is called
// even when there are no receipts.
func (a *Advisor) Chat(ctx context.Context, receipts []*receipt.Receipt, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	summary := aggregate.SummarizeIn(receipts, a.location)
	reply, err := a.model.GenerateContent(ctx, scanning.TextPart(ChatPrompt(summary, a.currency, question)))
	if err != nil {
		return "", fmt.Errorf("generating chat reply: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
