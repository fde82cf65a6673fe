package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/offerlens/backend/config"
	"github.com/offerlens/backend/internal/domain"
	"github.com/offerlens/backend/internal/infrastructure/serpapi"
	"github.com/offerlens/backend/internal/pricing"
	"github.com/offerlens/backend/internal/usecase"
	"github.com/rs/zerolog"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"chrome-extension://*", "http://localhost:3000"},
		},
		SerpAPI: config.SerpAPIConfig{
			APIKey:  "test-api-key",
			BaseURL: "https://serpapi.com",
		},
		Cache: config.CacheConfig{
			Type: "memory",
		},
	}
}

// setupTestRouter creates a test router without an offer service
func setupTestRouter() *gin.Engine {
	handler := NewHandler(nil, zerolog.Nop())
	if handler == nil {
		panic("setupTestRouter: NewHandler returned nil")
	}

	router := SetupRouter(testConfig(), handler, zerolog.Nop())
	if router == nil {
		panic("setupTestRouter: SetupRouter returned nil *gin.Engine")
	}

	return router
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "offerlens-backend" {
			t.Errorf("service = %v, want offerlens-backend", response["service"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			req, _ := http.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestOfferSearchEndpoint tests routing of the offer search endpoint
func TestOfferSearchEndpoint(t *testing.T) {
	t.Run("returns not implemented without a service", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("POST", "/api/v1/offers/search", strings.NewReader(`{"product":"iphone 16"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotImplemented {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotImplemented)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		errorMsg, ok := response["error"].(string)
		if !ok {
			t.Errorf("error field is not a string: %v", response["error"])
		} else if !strings.Contains(errorMsg, "not configured") {
			t.Errorf("error = %q, want to contain 'not configured'", errorMsg)
		}
	})

	t.Run("validates HTTP method", func(t *testing.T) {
		router := setupTestRouter()

		for _, method := range []string{"GET", "PUT", "DELETE", "PATCH"} {
			req, _ := http.NewRequest(method, "/api/v1/offers/search", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})

	t.Run("requires correct path", func(t *testing.T) {
		router := setupTestRouter()

		incorrectPaths := []string{
			"/api/v1/offers",
			"/api/v1/offers/",
			"/api/offers/search",
			"/offers/search",
		}

		for _, path := range incorrectPaths {
			req, _ := http.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Path %s: Status = %d, want %d", path, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	t.Run("health endpoint has CORS for Chrome extension", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "chrome-extension://abcdefghijklmnop")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "chrome-extension://abcdefghijklmnop" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotOrigin, "chrome-extension://abcdefghijklmnop")
		}

		if gotCreds := w.Header().Get("Access-Control-Allow-Credentials"); gotCreds != "true" {
			t.Errorf("Access-Control-Allow-Credentials = %q, want %q", gotCreds, "true")
		}
	})

	t.Run("search endpoint has CORS for localhost", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("POST", "/api/v1/offers/search", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if gotOrigin := w.Header().Get("Access-Control-Allow-Origin"); gotOrigin != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotOrigin, "http://localhost:3000")
		}
	})
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	t.Run("recovers from panic without crashing server", func(t *testing.T) {
		router := setupTestRouter()

		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req, _ := http.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

// TestRequestID tests request id propagation
func TestRequestID(t *testing.T) {
	t.Run("assigns a request id", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if id := w.Header().Get("X-Request-ID"); len(id) != 36 {
			t.Errorf("X-Request-ID = %q, want a UUID", id)
		}
	})

	t.Run("keeps the caller's request id", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if id := w.Header().Get("X-Request-ID"); id != "abc-123" {
			t.Errorf("X-Request-ID = %q, want abc-123", id)
		}
	})
}

// TestJSONResponses tests that all responses are valid JSON
func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"POST", "/api/v1/offers/search"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			router := setupTestRouter()

			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			gotContentType := w.Header().Get("Content-Type")
			wantContentType := "application/json; charset=utf-8"
			if gotContentType != wantContentType {
				t.Errorf("Content-Type = %q, want %q", gotContentType, wantContentType)
			}

			var response map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Errorf("Response should be valid JSON, got error: %v", err)
			}
		})
	}
}

// --- Mock implementations for testing with OfferService ---

// mockCacheRepository is a mock implementation of domain.CacheRepository
type mockCacheRepository struct {
	data map[string]domain.SearchPayload
}

func newMockCacheRepository() *mockCacheRepository {
	return &mockCacheRepository{data: make(map[string]domain.SearchPayload)}
}

func (m *mockCacheRepository) Get(ctx context.Context, key string) (domain.SearchPayload, error) {
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *mockCacheRepository) Set(ctx context.Context, key string, value domain.SearchPayload, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// mockSearchClient is a mock implementation of domain.SearchClient
type mockSearchClient struct {
	payload   domain.SearchPayload
	err       error
	lastQuery domain.SearchQuery
}

func (m *mockSearchClient) Search(ctx context.Context, query domain.SearchQuery) (domain.SearchPayload, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

// mockReconciler is a mock implementation of domain.Reconciler
type mockReconciler struct {
	offers []domain.NormalizedOffer
	err    error
}

func (m *mockReconciler) Reconcile(ctx context.Context, candidates []domain.OfferCandidate) ([]domain.NormalizedOffer, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.offers, nil
}

// setupTestRouterWithService creates a test router with a real OfferService using mocks
func setupTestRouterWithService(client domain.SearchClient, reconciler domain.Reconciler) *gin.Engine {
	assembler := serpapi.NewAssembler(pricing.NewExtractor(pricing.NewRuleRecognizer()))
	offerService := usecase.NewOfferService(
		newMockCacheRepository(),
		client,
		reconciler,
		assembler,
		usecase.OfferServiceConfig{CacheTTL: time.Minute},
		zerolog.Nop(),
	)

	handler := NewHandler(offerService, zerolog.Nop())
	return SetupRouter(testConfig(), handler, zerolog.Nop())
}

const searchPayload = `{
	"shopping_results": [
		{"title": "Phone A", "link": "http://x.com/a", "price": "$999", "source": "ShopX"},
		{"title": "Phone A", "link": "http://x.com/blog/a", "price": "$989", "source": "ShopY"}
	]
}`

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/api/v1/offers/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestOfferSearchWithService tests the offer search endpoint with a real service
func TestOfferSearchWithService(t *testing.T) {
	t.Run("returns offers for valid JSON request", func(t *testing.T) {
		client := &mockSearchClient{payload: domain.SearchPayload(searchPayload)}
		router := setupTestRouterWithService(client, nil)

		w := postJSON(router, `{"product":"Phone A","location":"UK"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (%s)", w.Code, http.StatusOK, w.Body.String())
		}

		var response []map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if len(response) != 1 {
			t.Fatalf("len(response) = %d, want 1", len(response))
		}
		if response[0]["price"] != "$999" {
			t.Errorf("price = %v, want $999", response[0]["price"])
		}
		if response[0]["extracted_price"] != nil {
			t.Errorf("extracted_price = %v, want null", response[0]["extracted_price"])
		}
		if response[0]["origin"] != "shopping_results" {
			t.Errorf("origin = %v, want shopping_results", response[0]["origin"])
		}
		if client.lastQuery.GoogleDomain != "google.co.uk" {
			t.Errorf("google_domain = %s, want google.co.uk", client.lastQuery.GoogleDomain)
		}
	})

	t.Run("accepts form requests", func(t *testing.T) {
		client := &mockSearchClient{payload: domain.SearchPayload(searchPayload)}
		router := setupTestRouterWithService(client, nil)

		form := url.Values{"product": {"Phone A"}, "location": {"IN"}}
		req, _ := http.NewRequest("POST", "/api/v1/offers/search", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if client.lastQuery.CountryCode != "in" {
			t.Errorf("gl = %s, want in", client.lastQuery.CountryCode)
		}
	})

	t.Run("returns empty array when nothing survives", func(t *testing.T) {
		client := &mockSearchClient{payload: domain.SearchPayload(`{"organic_results":[]}`)}
		router := setupTestRouterWithService(client, nil)

		w := postJSON(router, `{"product":"Phone A"}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if strings.TrimSpace(w.Body.String()) != "[]" {
			t.Errorf("body = %s, want []", w.Body.String())
		}
	})

	t.Run("returns normalized offers when use_llm is set", func(t *testing.T) {
		total := domain.Amount(999)
		client := &mockSearchClient{payload: domain.SearchPayload(searchPayload)}
		reconciler := &mockReconciler{offers: []domain.NormalizedOffer{{Link: "http://x.com/a", TotalPrice: &total}}}
		router := setupTestRouterWithService(client, reconciler)

		w := postJSON(router, `{"product":"Phone A","use_llm":true}`)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response []map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(response) != 1 || response[0]["total_price"] != 999.0 {
			t.Errorf("response = %v, want one offer with total_price 999", response)
		}
		if _, ok := response[0]["monthly_price"]; !ok {
			t.Errorf("monthly_price key missing, want null")
		}
	})

	t.Run("returns 400 for missing product", func(t *testing.T) {
		router := setupTestRouterWithService(&mockSearchClient{}, nil)

		w := postJSON(router, `{"location":"US"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["error"] != "product is required" {
			t.Errorf("error = %v, want product is required", response["error"])
		}
	})

	t.Run("returns 400 for invalid JSON", func(t *testing.T) {
		router := setupTestRouterWithService(&mockSearchClient{}, nil)

		w := postJSON(router, `{invalid json}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["error"] != "Invalid request body" {
			t.Errorf("error = %v, want Invalid request body", response["error"])
		}
	})

	t.Run("reports a mistyped field as an invalid body", func(t *testing.T) {
		client := &mockSearchClient{payload: domain.SearchPayload(searchPayload)}
		router := setupTestRouterWithService(client, nil)

		w := postJSON(router, `{"product":"Phone A","use_llm":"yes"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["error"] != "Invalid request body" {
			t.Errorf("error = %v, want Invalid request body", response["error"])
		}
		if client.lastQuery.Query != "" {
			t.Errorf("search called with %q, want no call", client.lastQuery.Query)
		}
	})
}

// stubSearcher returns a fixed error
type stubSearcher struct {
	err error
}

func (s stubSearcher) SearchOffers(ctx context.Context, request *domain.SearchRequest) (*domain.OfferResult, error) {
	return nil, s.err
}

// TestOfferSearchErrors tests the mapping of service errors to status codes
func TestOfferSearchErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"invalid request", domain.ErrInvalidRequest, http.StatusBadRequest, "product is required"},
		{"search failure", fmt.Errorf("%w: status 401", domain.ErrSearchAPIFailure), http.StatusBadGateway, "Search provider temporarily unavailable"},
		{"invalid payload", domain.ErrInvalidPayload, http.StatusBadGateway, "Search provider temporarily unavailable"},
		{"normalization failed", fmt.Errorf("%w: bad json", domain.ErrNormalizationFailed), http.StatusBadGateway, "Offer normalization failed"},
		{"normalizer unavailable", domain.ErrNormalizerUnavailable, http.StatusServiceUnavailable, "Offer normalization not configured"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(stubSearcher{err: tt.err}, zerolog.Nop())
			router := SetupRouter(testConfig(), handler, zerolog.Nop())

			w := postJSON(router, `{"product":"Phone A"}`)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}

			var response map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if response["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", response["error"], tt.wantError)
			}
		})
	}
}
