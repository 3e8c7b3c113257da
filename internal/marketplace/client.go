package marketplace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/apperrors"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
)

// maxBody caps how much of an order document is read.
const maxBody = 4 << 20

// TokenFunc returns the API token for a marketplace id.
type TokenFunc func(marketplaceID int) string

// Client fetches order documents.
type Client struct {
	http  *http.Client
	token TokenFunc
}

// NewClient returns a Client. httpClient may be nil.
func NewClient(httpClient *http.Client, token TokenFunc) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{http: httpClient, token: token}
}

// FetchOrder GETs the order at location. Every failure, including a document
// without a reference, is a transient fetch error: the message is redelivered.
func (c *Client) FetchOrder(ctx context.Context, location string) (orders.Payload, error) {
	mk, _ := MarketplaceID(location)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return orders.Payload{}, apperrors.TransientFetch(err, location)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if tok := c.token(mk); tok != "" {
			req.Header.Set("Authorization", "Token "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return orders.Payload{}, apperrors.TransientFetch(err, location)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return orders.Payload{}, apperrors.TransientFetch(err, location)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return orders.Payload{}, apperrors.TransientFetch(
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256)), location)
	}

	p, err := orders.ParsePayload(body)
	if err != nil {
		return orders.Payload{}, apperrors.TransientFetch(err, location)
	}
	return p, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
