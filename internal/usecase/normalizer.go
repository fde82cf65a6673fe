package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/offerlens/backend/internal/domain"
)

// Normalize returns candidates unchanged when reconciliation is disabled and the
// reconciled offers otherwise. A failed reconciliation is an error; there is no
// fallback to the raw candidates.
func Normalize(
	ctx context.Context,
	candidates []domain.OfferCandidate,
	enabled bool,
	reconciler domain.Reconciler,
) (*domain.OfferResult, error) {
	if !enabled {
		return &domain.OfferResult{Candidates: candidates}, nil
	}

	if reconciler == nil {
		return nil, domain.ErrNormalizerUnavailable
	}

	offers, err := reconciler.Reconcile(ctx, candidates)
	if err != nil {
		if errors.Is(err, domain.ErrNormalizationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNormalizationFailed, err)
	}
	if offers == nil {
		offers = []domain.NormalizedOffer{}
	}

	return &domain.OfferResult{Normalized: offers, Reconciled: true}, nil
}
