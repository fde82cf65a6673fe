package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/offerlens/backend/internal/domain"
	"github.com/offerlens/backend/internal/infrastructure/cache"
	"github.com/offerlens/backend/internal/infrastructure/llm"
	"github.com/offerlens/backend/internal/infrastructure/serpapi"
	"github.com/offerlens/backend/internal/logging"
	"github.com/offerlens/backend/internal/pricing"
	"github.com/offerlens/backend/internal/usecase"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// options holds the command-line flags, with provider keys also read from the environment
type options struct {
	Input      string   `short:"i" long:"input" description:"Saved search payload to extract offers from, '-' reads stdin"`
	Query      string   `short:"q" long:"query" description:"Product to search for live"`
	Country    string   `short:"c" long:"country" default:"US" description:"Two-letter country code for the live search"`
	APIKey     string   `long:"api-key" env:"SERPAPI_KEY" description:"SerpAPI key (required with --query)"`
	SerpAPIURL string   `long:"serpapi-url" env:"SERPAPI_BASE_URL" default:"https://serpapi.com" description:"SerpAPI base URL"`
	OpenAIKey  string   `long:"openai-key" env:"OPENAI_API_KEY" description:"OpenAI key (required with --llm)"`
	OpenAIURL  string   `long:"openai-url" env:"OPENAI_BASE_URL" description:"OpenAI-compatible base URL"`
	Model      string   `long:"model" default:"gpt-4" description:"Chat model used for reconciliation"`
	LLM        bool     `long:"llm" description:"Reconcile offers into the normalized schema"`
	Exclude    []string `short:"x" long:"exclude" description:"Exclusion keyword, repeatable (replaces the default list)"`
	NoEntities bool     `long:"no-entities" description:"Disable the money entity price strategy"`
	Format     string   `short:"f" long:"format" default:"json" choice:"json" choice:"yaml" description:"Output format"`
	Verbose    bool     `short:"v" long:"verbose" description:"Log pipeline progress to stderr"`
}

func main() {
	// A missing .env file is not an error
	_ = godotenv.Load()

	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "offers: %v\n", err)
		os.Exit(1)
	}
}

// run executes one extraction and writes the offers to stdout
func run(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	if (opts.Input == "") == (opts.Query == "") {
		return errors.New("exactly one of --input or --query is required")
	}

	log := logging.New("development", stderr)
	if !opts.Verbose {
		log = log.Level(zerolog.WarnLevel)
	}

	service := newService(opts, log)

	var (
		result *domain.OfferResult
		err    error
	)
	if opts.Input != "" {
		payload, readErr := readPayload(opts.Input, stdin)
		if readErr != nil {
			return readErr
		}
		result, err = service.ExtractOffers(ctx, payload, opts.LLM)
	} else {
		if opts.APIKey == "" {
			return errors.New("--api-key or SERPAPI_KEY is required with --query")
		}
		result, err = service.SearchOffers(ctx, &domain.SearchRequest{
			Product:  opts.Query,
			Location: opts.Country,
			UseLLM:   opts.LLM,
		})
	}
	if err != nil {
		return err
	}

	return writeResult(stdout, result, opts.Format)
}

// newService wires the offer pipeline without a payload cache
func newService(opts options, log zerolog.Logger) *usecase.OfferService {
	var recognizer pricing.MoneyRecognizer
	if !opts.NoEntities {
		recognizer = pricing.NewRuleRecognizer()
	}

	var client domain.SearchClient
	if opts.Query != "" {
		client = serpapi.NewClient(serpapi.ClientConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.SerpAPIURL,
		}, log)
	}

	var reconciler domain.Reconciler
	if opts.LLM && opts.OpenAIKey != "" {
		reconciler = llm.NewReconciler(llm.Config{
			APIKey:  opts.OpenAIKey,
			BaseURL: opts.OpenAIURL,
			Model:   opts.Model,
		}, log)
	}

	return usecase.NewOfferService(
		cache.NewNoopCache(),
		client,
		reconciler,
		serpapi.NewAssembler(pricing.NewExtractor(recognizer)),
		usecase.OfferServiceConfig{ExclusionKeywords: opts.Exclude},
		log,
	)
}

func readPayload(path string, stdin io.Reader) (domain.SearchPayload, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return data, nil
}

func writeResult(w io.Writer, result *domain.OfferResult, format string) error {
	if format == "yaml" {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(result.Items()); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return encoder.Close()
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
