package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/offerlens/backend/internal/domain"
	"github.com/offerlens/backend/internal/infrastructure/serpapi"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Package-level compiled regex patterns for cache key normalization
var (
	cacheKeyNoiseRegex  = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// OfferServiceConfig holds configuration for the offer service
type OfferServiceConfig struct {
	CacheTTL          time.Duration
	ExclusionKeywords []string
}

// OfferService runs the offer pipeline: search, assemble, filter, normalize
type OfferService struct {
	cache      domain.CacheRepository
	client     domain.SearchClient
	reconciler domain.Reconciler
	assembler  *serpapi.Assembler
	filter     *OfferFilter
	cacheTTL   time.Duration
	log        zerolog.Logger
}

// NewOfferService creates a new offer service. client and reconciler may be nil,
// which disables live search and reconciliation respectively.
func NewOfferService(
	cache domain.CacheRepository,
	client domain.SearchClient,
	reconciler domain.Reconciler,
	assembler *serpapi.Assembler,
	config OfferServiceConfig,
	log zerolog.Logger,
) *OfferService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 15 * time.Minute
	}

	return &OfferService{
		cache:      cache,
		client:     client,
		reconciler: reconciler,
		assembler:  assembler,
		filter:     NewOfferFilter(config.ExclusionKeywords),
		cacheTTL:   cacheTTL,
		log:        log.With().Str("component", "offer_service").Logger(),
	}
}

// SearchOffers looks up offers for a product.
// Flow: check cache -> search provider -> cache payload -> extract offers
func (s *OfferService) SearchOffers(ctx context.Context, request *domain.SearchRequest) (*domain.OfferResult, error) {
	if request == nil || strings.TrimSpace(request.Product) == "" {
		return nil, domain.ErrInvalidRequest
	}

	query := serpapi.BuildQuery(request.Product, request.Location)
	cacheKey := generateCacheKey(query)

	payload, err := s.getFromCache(ctx, cacheKey)
	if err != nil {
		if s.client == nil {
			return nil, fmt.Errorf("%w: search client not configured", domain.ErrSearchAPIFailure)
		}

		payload, err = s.client.Search(ctx, query)
		if err != nil {
			if errors.Is(err, domain.ErrSearchAPIFailure) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, err)
		}

		s.setInCache(ctx, cacheKey, payload)
	} else {
		s.log.Debug().Str("key", cacheKey).Msg("Payload cache hit")
	}

	return s.ExtractOffers(ctx, payload, request.UseLLM)
}

// ExtractOffers runs the pipeline on an already fetched payload
func (s *OfferService) ExtractOffers(ctx context.Context, payload domain.SearchPayload, useLLM bool) (*domain.OfferResult, error) {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return nil, domain.ErrInvalidPayload
	}
	parsed := gjson.ParseBytes(payload)
	if !parsed.IsObject() {
		return nil, domain.ErrInvalidPayload
	}

	candidates := s.assembler.Assemble(parsed)
	filtered := s.filter.Filter(candidates)

	result, err := Normalize(ctx, filtered, useLLM, s.reconciler)
	if err != nil {
		s.log.Error().Err(err).Int("candidates", len(filtered)).Msg("Normalization failed")
		return nil, err
	}

	s.log.Info().
		Int("assembled", len(candidates)).
		Int("kept", len(filtered)).
		Int("returned", result.Len()).
		Bool("reconciled", result.Reconciled).
		Msg("Offers extracted")
	return result, nil
}

// getFromCache treats every cache failure as a miss
func (s *OfferService) getFromCache(ctx context.Context, key string) (domain.SearchPayload, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
		}
		return nil, domain.ErrCacheMiss
	}
	return payload, nil
}

// setInCache stores a payload; failures are logged and otherwise ignored
func (s *OfferService) setInCache(ctx context.Context, key string, payload domain.SearchPayload) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache payload")
	}
}

// generateCacheKey creates a normalized cache key from a provider query.
// Format: "offers:{normalized_query}:{country}"
func generateCacheKey(query domain.SearchQuery) string {
	return fmt.Sprintf("offers:%s:%s", normalizeForCacheKey(query.Query), strings.ToLower(query.CountryCode))
}

// normalizeForCacheKey lowercases s, drops punctuation and collapses whitespace
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = cacheKeyNoiseRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
