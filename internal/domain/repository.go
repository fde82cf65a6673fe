package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching raw search payloads
type CacheRepository interface {
	Get(ctx context.Context, key string) (SearchPayload, error)
	Set(ctx context.Context, key string, value SearchPayload, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SearchClient fetches the raw heterogeneous result payload for a query
type SearchClient interface {
	Search(ctx context.Context, query SearchQuery) (SearchPayload, error)
}

// Reconciler maps offer candidates onto the NormalizedOffer schema, computing
// totals for installment offers. Implementations must return an error rather than
// partial data when the upstream answer cannot be parsed.
type Reconciler interface {
	Reconcile(ctx context.Context, candidates []OfferCandidate) ([]NormalizedOffer, error)
}
