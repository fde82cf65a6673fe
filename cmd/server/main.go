package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/offerlens/backend/config"
	httpDelivery "github.com/offerlens/backend/internal/delivery/http"
	"github.com/offerlens/backend/internal/domain"
	"github.com/offerlens/backend/internal/infrastructure/cache"
	"github.com/offerlens/backend/internal/infrastructure/llm"
	"github.com/offerlens/backend/internal/infrastructure/serpapi"
	"github.com/offerlens/backend/internal/logging"
	"github.com/offerlens/backend/internal/pricing"
	"github.com/offerlens/backend/internal/usecase"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Server.Environment, os.Stdout)

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache_type", cfg.Cache.Type).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("Starting OfferLens Backend v1.0.0")

	// Initialize infrastructure dependencies
	var offerCache domain.CacheRepository
	switch cfg.Cache.Type {
	case "memory":
		memoryCache := cache.NewMemoryCacheWithCleanup(cfg.Cache.TTL)
		defer memoryCache.Close()
		offerCache = memoryCache
	default:
		offerCache = cache.NewNoopCache()
	}

	searchClient := serpapi.NewClient(serpapi.ClientConfig{
		APIKey:            cfg.SerpAPI.APIKey,
		BaseURL:           cfg.SerpAPI.BaseURL,
		Engine:            cfg.SerpAPI.Engine,
		Timeout:           cfg.SerpAPI.Timeout,
		RequestsPerSecond: cfg.SerpAPI.RequestsPerSecond,
		Burst:             cfg.SerpAPI.Burst,
		MaxRetries:        cfg.SerpAPI.MaxRetries,
	}, log)

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		searchClient.SetDebug(true)
		log.Debug().Msg("SerpAPI client debug mode enabled")
	}

	log.Info().
		Str("base_url", cfg.SerpAPI.BaseURL).
		Str("key", logging.MaskKey(cfg.SerpAPI.APIKey)).
		Float64("requests_per_second", cfg.SerpAPI.RequestsPerSecond).
		Msg("SerpAPI configured")

	var recognizer pricing.MoneyRecognizer
	if cfg.Extraction.EnableEntityRecognizer {
		recognizer = pricing.NewRuleRecognizer()
	}
	assembler := serpapi.NewAssembler(pricing.NewExtractor(recognizer))

	var reconciler domain.Reconciler
	if cfg.ReconciliationEnabled() {
		reconciler = llm.NewReconciler(llm.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
			MaxRetries:  cfg.OpenAI.MaxRetries,
		}, log)
		log.Info().
			Str("model", cfg.OpenAI.Model).
			Str("key", logging.MaskKey(cfg.OpenAI.APIKey)).
			Msg("Offer reconciliation enabled")
	} else {
		log.Warn().Msg("OpenAI API key not configured, use_llm requests will be rejected")
	}

	// Initialize usecase layer
	offerService := usecase.NewOfferService(
		offerCache,
		searchClient,
		reconciler,
		assembler,
		usecase.OfferServiceConfig{
			CacheTTL:          cfg.Cache.TTL,
			ExclusionKeywords: cfg.Filter.ExclusionKeywords,
		},
		log,
	)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(offerService, log)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, log)

	if err := serve(router, cfg.Server.Port, log); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains in-flight requests
func serve(handler http.Handler, port string, log zerolog.Logger) error {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("failed to start server: %w", err)
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
