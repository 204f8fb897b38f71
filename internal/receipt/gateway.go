package receipt

import (
	"context"
	"time"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Gateway converts receipts to and from the document store representation
type Gateway struct {
	store      DocumentStore
	timeSource TimeSource
}

// NewGateway creates a Gateway that stamps records with the system clock
func NewGateway(store DocumentStore) *Gateway {
	return NewGatewayWithTimeSource(store, defaultTimeSource{})
}

// NewGatewayWithTimeSource creates a Gateway with a custom clock for testing
func NewGatewayWithTimeSource(store DocumentStore, timeSource TimeSource) *Gateway {
	return &Gateway{store: store, timeSource: timeSource}
}

// Save stamps CreatedAt with the current time, writes the receipt and
// records the store-assigned ID on it.
func (g *Gateway) Save(ctx context.Context, r *Receipt) (string, error) {
	if r.Persisted() {
		return "", ErrAlreadyPersisted
	}

	r.CreatedAt = g.timeSource.Now()
	id, err := g.store.AddDocument(ctx, receiptsCollection, toDocument(r))
	if err != nil {
		return "", &PersistenceError{Op: "save", Err: err}
	}
	r.ID = id
	return id, nil
}

// ListAll returns every receipt, newest first
func (g *Gateway) ListAll(ctx context.Context) ([]*Receipt, error) {
	docs, err := g.store.QueryOrdered(ctx, receiptsCollection, true)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}

	receipts := make([]*Receipt, 0, len(docs))
	for _, doc := range docs {
		receipts = append(receipts, fromDocument(doc))
	}
	return receipts, nil
}
