package oracle

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/pricepilot/linkverify/internal/domain"
)

const (
	// maxPageChars caps how much extracted page text is sent with a query.
	maxPageChars = 15000

	// DefaultBaseURL targets the OpenRouter chat completions API.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel is the completion model used for product matching.
	DefaultModel = "openai/gpt-4o"
	// DefaultTimeout bounds one completion call.
	DefaultTimeout = 60 * time.Second
)

// Config holds oracle client settings. Zero values fall back to defaults.
type Config struct {
	APIKeySecret string
	BaseURL      string
	Model        string
	Timeout      time.Duration
}

// Client asks a language model to locate a product in page text via fuzzy
// matching and to extract its attributes as key-value lines.
type Client struct {
	cfg         Config
	secrets     domain.SecretProvider
	rateLimiter *rate.Limiter
	debug       bool

	apiMu sync.Mutex
	api   *openai.Client
}

// NewClient creates a product matching client. The API key is resolved
// through secrets on first use and held once client construction succeeds;
// a failed lookup is retried on the next call.
func NewClient(cfg Config, secrets domain.SecretProvider) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	// Bounds load on the upstream LLM API across concurrent verifications.
	limiter := rate.NewLimiter(rate.Limit(2), 10)

	return &Client{
		cfg:         cfg,
		secrets:     secrets,
		rateLimiter: limiter,
	}
}

// SetDebug enables verbose request logging.
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// apiClient lazily builds the completion client, recording it only on
// success so a transient secret store failure is retried on the next call.
func (c *Client) apiClient() (*openai.Client, error) {
	c.apiMu.Lock()
	defer c.apiMu.Unlock()
	if c.api != nil {
		return c.api, nil
	}

	apiKey, err := c.secrets.GetSecret(c.cfg.APIKeySecret)
	if err != nil {
		return nil, fmt.Errorf("resolve oracle API key: %w", err)
	}
	api := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.cfg.BaseURL),
		option.WithHeader("HTTP-Referer", "https://github.com/pricepilot/linkverify"),
		option.WithHeader("X-Title", "Link Verification"),
	)
	c.api = &api
	return c.api, nil
}

// FindProduct searches pageText for a product matching query. It returns
// domain.ErrProductNotFound when the model reports no match, and
// domain.ErrOracleFailure when the call itself fails or the reply is
// unparseable. At most the first 15,000 characters of pageText are sent.
func (c *Client) FindProduct(ctx context.Context, pageText, query string) (*domain.ProductRecord, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrOracleFailure, err)
	}

	api, err := c.apiClient()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)
	}

	if c.debug {
		log.Printf("[ORACLE] querying model for product: %.50q", query)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := api.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildPrompt(pageText, query)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: unexpected API response format", domain.ErrOracleFailure)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: model returned empty content", domain.ErrOracleFailure)
	}
	if strings.Contains(strings.ToUpper(content), "NOT_FOUND") {
		return nil, domain.ErrProductNotFound
	}

	record := parseProductResponse(content, query)
	if record == nil {
		return nil, fmt.Errorf("%w: could not parse product info from model response", domain.ErrOracleFailure)
	}

	if c.debug {
		log.Printf("[ORACLE] product found: %.50q price=%s", record.Title, record.Price)
	}
	return record, nil
}

// buildPrompt instructs the model to fuzzy-match the product and answer in
// key-value-per-line form, or NOT_FOUND. The page text cap counts characters,
// not bytes, so multi-byte text is never cut mid-rune.
func buildPrompt(pageText, query string) string {
	if runes := []rune(pageText); len(runes) > maxPageChars {
		pageText = string(runes[:maxPageChars])
	}

	return fmt.Sprintf(`You are a product search and extraction assistant. I have text content from a website and need to find a specific product.

PRODUCT TO FIND: %q

INSTRUCTIONS:
1. Search through the provided text content for products that match the query
2. Use FUZZY MATCHING: Match based on:
   - Brand name (must match if mentioned in query)
   - Product type (e.g., "laptop", "shoes", "watch")
   - Key characteristics from the product title (color, size, model, features)
   - The product title in the text does NOT need to match exactly
3. Extract all available information about the matching product:
   - Product Title (exact from text)
   - Brand (if found)
   - Price (format: £29.99, $19.99, etc. - include currency symbol)
   - Product Description or key features
   - Availability status (in stock, out of stock, etc.)
   - Any other relevant info (SKU, model number, etc.)
4. Format your response as key-value pairs, one per line:
   title: [product title from text]
   brand: [brand name or N/A]
   price: [price with currency or "Not listed"]
   description: [brief description or key features]
   availability: [in stock/out of stock/etc. or "Not specified"]
   extras: [any other important info or "None"]

If no matching product found, respond with only:
NOT_FOUND

PAGE CONTENT (first %d characters):
%s`, query, maxPageChars, pageText)
}

// parseProductResponse turns the model's free-text reply into a ProductRecord.
// The reply has no schema guarantee beyond line-based key:value pairs, so the
// parser is deliberately lenient: lines without a colon are skipped, the first
// colon splits key from value, unknown keys land in Extras. A reply yielding
// no pairs at all returns nil.
func parseProductResponse(content, query string) *domain.ProductRecord {
	known := make(map[string]string)
	extras := make(map[string]string)

	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		switch key {
		case "title", "brand", "price", "description", "availability":
			known[key] = value
		default:
			extras[key] = value
		}
	}

	if len(known) == 0 && len(extras) == 0 {
		return nil
	}

	record := &domain.ProductRecord{
		Title:        orDefault(known["title"], query),
		Brand:        orDefault(known["brand"], domain.BrandNotAvailable),
		Price:        orDefault(known["price"], domain.PriceNotListed),
		Description:  known["description"],
		Availability: orDefault(known["availability"], domain.AvailabilityNotSpecified),
	}
	if len(extras) > 0 {
		record.Extras = extras
	}
	return record
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
