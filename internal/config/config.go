// Package config loads runtime settings from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultMarketplaceAPIURL = "https://api.software.madkting.com"

// Config holds every knob used by the api and worker binaries.
type Config struct {
	RunLocal bool
	LogLevel string
	Role     string

	OrdersTable   string
	InvoicesTable string

	OrderQueueURL   string
	InvoiceQueueURL string
	ProductQueueURL string

	FeedsFunction   string
	ProductFunction string
	InvoiceFunction string
	ProductRuleName string

	AllowedMarketplaces map[int]bool
	MarketplaceToken    string
	MarketplaceTokens   map[int]string
	MarketplaceAPIURL   string
	RetryToken          string

	StaleAfterDays  int
	MaxDelaySeconds int
	MetricsNS       string
}

// Load reads the environment. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	allowed, err := parseIntSet(getEnv("ALLOWED_MARKETPLACES", ""))
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_MARKETPLACES: %w", err)
	}
	tokens, err := parseTokens(getEnv("MARKETPLACE_TOKENS", ""))
	if err != nil {
		return nil, fmt.Errorf("MARKETPLACE_TOKENS: %w", err)
	}

	return &Config{
		RunLocal: getEnv("RUN_LOCAL", "") == "true",
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Role:     getEnv("WORKER_ROLE", ""),

		OrdersTable:   getEnv("ORDERS_TABLE", "orders"),
		InvoicesTable: getEnv("INVOICES_TABLE", "invoices"),

		OrderQueueURL:   getEnv("ORDER_QUEUE_URL", ""),
		InvoiceQueueURL: getEnv("INVOICE_QUEUE_URL", ""),
		ProductQueueURL: getEnv("PRODUCT_QUEUE_URL", ""),

		FeedsFunction:   getEnv("FEEDS_FUNCTION", ""),
		ProductFunction: getEnv("PRODUCT_FUNCTION", ""),
		InvoiceFunction: getEnv("INVOICE_FUNCTION", ""),
		ProductRuleName: getEnv("PRODUCT_RULE_NAME", "SqsSendProduct"),

		AllowedMarketplaces: allowed,
		MarketplaceToken:    getEnv("MARKETPLACE_TOKEN", ""),
		MarketplaceTokens:   tokens,
		MarketplaceAPIURL:   strings.TrimRight(getEnv("MARKETPLACE_API_URL", DefaultMarketplaceAPIURL), "/"),
		RetryToken:          getEnv("RETRY_TOKEN", ""),

		StaleAfterDays:  atoiEnv("STALE_AFTER_DAYS", 3),
		MaxDelaySeconds: atoiEnv("MAX_DELAY_SECONDS", 120),
		MetricsNS:       getEnv("METRICS_NAMESPACE", "MarketplaceInvoiceSync"),
	}, nil
}

// Validate checks that everything the given role touches is configured.
// Role "api" covers the webhook router and the retry gateway.
func (c *Config) Validate(role string) error {
	var missing []string
	need := func(name, v string) {
		if v == "" {
			missing = append(missing, name)
		}
	}

	switch role {
	case "api":
		need("ORDER_QUEUE_URL", c.OrderQueueURL)
		need("INVOICE_QUEUE_URL", c.InvoiceQueueURL)
		need("FEEDS_FUNCTION", c.FeedsFunction)
		need("RETRY_TOKEN", c.RetryToken)
	case "ingest":
		need("INVOICE_QUEUE_URL", c.InvoiceQueueURL)
	case "reconcile":
		need("INVOICE_QUEUE_URL", c.InvoiceQueueURL)
		need("INVOICE_FUNCTION", c.InvoiceFunction)
	case "sweep":
		need("INVOICE_QUEUE_URL", c.InvoiceQueueURL)
		need("INVOICE_FUNCTION", c.InvoiceFunction)
	case "poll":
		need("PRODUCT_QUEUE_URL", c.ProductQueueURL)
		need("PRODUCT_FUNCTION", c.ProductFunction)
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	if len(missing) > 0 {
		return errors.New("missing required settings: " + strings.Join(missing, ", "))
	}
	return nil
}

// TokenFor returns the marketplace API token for a marketplace id, falling back
// to MARKETPLACE_TOKEN.
func (c *Config) TokenFor(marketplaceID int) string {
	if t, ok := c.MarketplaceTokens[marketplaceID]; ok {
		return t
	}
	return c.MarketplaceToken
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func atoiEnv(key string, def int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return n
}

// parseIntSet parses "13,27, 41".
func parseIntSet(raw string) (map[int]bool, error) {
	out := map[int]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out[n] = true
	}
	return out, nil
}

// parseTokens parses "13:tok-a,27:tok-b".
func parseTokens(raw string) (map[int]string, error) {
	out := map[int]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, token, ok := strings.Cut(part, ":")
		if !ok || token == "" {
			return nil, fmt.Errorf("invalid entry %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", id)
		}
		out[n] = strings.TrimSpace(token)
	}
	return out, nil
}
