// Package llm reconciles offer candidates into the normalized offer schema with a
// chat completion model.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/offerlens/backend/internal/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
	"golang.org/x/text/currency"
)

// systemPrompt describes the target schema to the model
const systemPrompt = "You are a JSON normalizer. " +
	"Given a list of raw product-offer dicts, return only a JSON array " +
	"where each item has keys: title, source, link, plan, monthly_price, total_price, extracted_price, currency. " +
	"Compute EMI totals, drop unrelated fields."

// codeFenceRegex matches an opening fence with an optional language tag or a closing fence
var codeFenceRegex = regexp.MustCompile("(?m)^```[A-Za-z0-9_+-]*|```[ \\t]*$")

// currencySymbols maps the symbols seen in offers to ISO 4217 codes
var currencySymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"₹":   "INR",
	"RS":  "INR",
	"RS.": "INR",
	"€":   "EUR",
	"£":   "GBP",
}

// Config holds chat completion settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// Reconciler implements domain.Reconciler on top of the OpenAI chat completions API
type Reconciler struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
	log         zerolog.Logger
}

// NewReconciler creates a reconciler. An empty base URL targets the public API.
func NewReconciler(cfg Config, log zerolog.Logger) *Reconciler {
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Reconciler{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		log:         log.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile sends the candidates to the model and parses its answer. Any failure,
// including an unparseable answer, is returned wrapped in domain.ErrNormalizationFailed.
func (r *Reconciler) Reconcile(ctx context.Context, candidates []domain.OfferCandidate) ([]domain.NormalizedOffer, error) {
	if candidates == nil {
		candidates = []domain.OfferCandidate{}
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode candidates: %v", domain.ErrNormalizationFailed, err)
	}

	params := openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(UserPrompt(raw)),
		},
		MaxCompletionTokens: openai.Int(r.maxTokens),
		Temperature:         openai.Float(r.temperature),
	}

	start := time.Now()
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		r.log.Error().Err(err).Int("candidates", len(candidates)).Msg("Chat completion failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrNormalizationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrNormalizationFailed)
	}

	offers, err := ParseNormalizedOffers(resp.Choices[0].Message.Content)
	if err != nil {
		r.log.Warn().Err(err).Msg("Unparseable completion")
		return nil, err
	}

	r.log.Debug().
		Int("candidates", len(candidates)).
		Int("offers", len(offers)).
		Dur("duration", time.Since(start)).
		Msg("Reconciled offers")
	return offers, nil
}

// UserPrompt wraps the serialized candidates in a fenced json block
func UserPrompt(raw []byte) string {
	return "Raw data:\n```json\n" + string(raw) + "\n```"
}

// StripCodeFences removes leading and trailing triple-backtick fences
func StripCodeFences(text string) string {
	return strings.TrimSpace(codeFenceRegex.ReplaceAllString(text, ""))
}

// ParseNormalizedOffers decodes a model answer into normalized offers
func ParseNormalizedOffers(text string) ([]domain.NormalizedOffer, error) {
	body := StripCodeFences(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty answer", domain.ErrNormalizationFailed)
	}

	var offers []domain.NormalizedOffer
	if err := json.Unmarshal([]byte(body), &offers); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNormalizationFailed, err)
	}
	if offers == nil {
		offers = []domain.NormalizedOffer{}
	}

	for i := range offers {
		offers[i].Currency = canonicalCurrency(offers[i].Currency)
	}
	return offers, nil
}

// canonicalCurrency maps symbols and lower-case codes to ISO 4217 codes.
// Values it cannot recognize are returned unchanged.
func canonicalCurrency(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.ToUpper(strings.TrimSpace(*value))
	if trimmed == "" {
		return value
	}

	if code, ok := currencySymbols[trimmed]; ok {
		return &code
	}
	if unit, err := currency.ParseISO(trimmed); err == nil {
		code := unit.String()
		return &code
	}
	return value
}
