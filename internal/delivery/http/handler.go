package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/offerlens/backend/internal/domain"
	"github.com/rs/zerolog"
)

// OfferSearcher runs the offer pipeline for a search request
type OfferSearcher interface {
	SearchOffers(ctx context.Context, request *domain.SearchRequest) (*domain.OfferResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	offers OfferSearcher
	log    zerolog.Logger
}

// NewHandler creates a new HTTP handler. A nil searcher makes the search
// endpoint answer 501.
func NewHandler(offers OfferSearcher, log zerolog.Logger) *Handler {
	return &Handler{
		offers: offers,
		log:    log,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "offerlens-backend",
		"version": "1.0.0",
	})
}

// SearchOffers handles offer search requests. The body may be JSON or a form
// with the fields product, location and use_llm. The response is a bare JSON
// array of offers.
func (h *Handler) SearchOffers(c *gin.Context) {
	if h.offers == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Offer search not configured",
		})
		return
	}

	var request domain.SearchRequest
	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": bindErrorMessage(err),
		})
		return
	}

	result, err := h.offers.SearchOffers(c.Request.Context(), &request)
	if err != nil {
		status, message := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("product", request.Product).Str("request_id", c.GetString(requestIDKey)).Msg("Offer search failed")
		}
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, result)
}

// bindErrorMessage separates a failed field validation from a body that could not be decoded
func bindErrorMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldErr := range validationErrors {
			if fieldErr.Field() == "Product" {
				return "product is required"
			}
		}
	}
	return "Invalid request body"
}

// errorResponse maps domain errors to a status code and client message
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "product is required"
	case errors.Is(err, domain.ErrNormalizerUnavailable):
		return http.StatusServiceUnavailable, "Offer normalization not configured"
	case errors.Is(err, domain.ErrNormalizationFailed):
		return http.StatusBadGateway, "Offer normalization failed"
	case errors.Is(err, domain.ErrSearchAPIFailure), errors.Is(err, domain.ErrInvalidPayload):
		return http.StatusBadGateway, "Search provider temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
