package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ALLOWED_MARKETPLACES", "MARKETPLACE_TOKENS", "STALE_AFTER_DAYS", "MAX_DELAY_SECONDS", "MARKETPLACE_API_URL", "PRODUCT_RULE_NAME"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StaleAfterDays != 3 {
		t.Fatalf("expected 3 day staleness, got %d", cfg.StaleAfterDays)
	}
	if cfg.MaxDelaySeconds != 120 {
		t.Fatalf("expected 120s max delay, got %d", cfg.MaxDelaySeconds)
	}
	if cfg.MarketplaceAPIURL != DefaultMarketplaceAPIURL {
		t.Fatalf("unexpected api url %s", cfg.MarketplaceAPIURL)
	}
	if cfg.ProductRuleName != "SqsSendProduct" {
		t.Fatalf("unexpected rule name %s", cfg.ProductRuleName)
	}
	if len(cfg.AllowedMarketplaces) != 0 {
		t.Fatalf("expected empty allow-list")
	}
}

func TestLoad_ParsesListsAndTokens(t *testing.T) {
	t.Setenv("ALLOWED_MARKETPLACES", "13, 27")
	t.Setenv("MARKETPLACE_TOKENS", "13:tok-13,27:tok-27")
	t.Setenv("MARKETPLACE_TOKEN", "default-tok")
	t.Setenv("MARKETPLACE_API_URL", "https://api.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.AllowedMarketplaces[13] || !cfg.AllowedMarketplaces[27] || cfg.AllowedMarketplaces[99] {
		t.Fatalf("unexpected allow-list %v", cfg.AllowedMarketplaces)
	}
	if cfg.TokenFor(27) != "tok-27" || cfg.TokenFor(99) != "default-tok" {
		t.Fatalf("token lookup wrong")
	}
	if cfg.MarketplaceAPIURL != "https://api.example.com" {
		t.Fatalf("trailing slash not trimmed: %s", cfg.MarketplaceAPIURL)
	}
}

func TestLoad_RejectsBadAllowList(t *testing.T) {
	t.Setenv("ALLOWED_MARKETPLACES", "13,abc")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate_PerRole(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate("poll"); err == nil {
		t.Fatalf("expected missing settings")
	}
	cfg.ProductQueueURL, cfg.ProductFunction = "https://sqs/products", "products"
	if err := cfg.Validate("poll"); err != nil {
		t.Fatalf("poll should validate: %v", err)
	}
	if err := cfg.Validate("bogus"); err == nil {
		t.Fatalf("expected unknown role error")
	}
}
