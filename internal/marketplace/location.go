// Package marketplace talks to the marketplace integration platform's order API.
package marketplace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrBadLocation is returned for resource URIs without the expected path segments.
var ErrBadLocation = errors.New("unrecognised resource location")

// Location is a parsed order resource URI:
// <base>/shops/{shop}/marketplace/{marketplace}/orders/{order}/
type Location struct {
	ShopID        string
	MarketplaceID int
	OrderID       string
}

// MarketplaceID extracts the numeric id following the "marketplace" path segment.
func MarketplaceID(location string) (int, error) {
	seg, err := segmentAfter(location, "marketplace")
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("%w: marketplace id %q", ErrBadLocation, seg)
	}
	return id, nil
}

// ParseLocation extracts shop, marketplace and order ids. Feed or product
// locations lacking the order segment fail with ErrBadLocation.
func ParseLocation(location string) (Location, error) {
	mk, err := MarketplaceID(location)
	if err != nil {
		return Location{}, err
	}
	shop, err := segmentAfter(location, "shops")
	if err != nil {
		return Location{}, err
	}
	order, err := segmentAfter(location, "orders")
	if err != nil {
		return Location{}, err
	}
	return Location{ShopID: shop, MarketplaceID: mk, OrderID: order}, nil
}

// BuildLocation synthesises the canonical order resource URI.
func BuildLocation(baseURL, shopID, marketplaceID, orderID string) string {
	return fmt.Sprintf("%s/shops/%s/marketplace/%s/orders/%s",
		strings.TrimRight(baseURL, "/"),
		url.PathEscape(shopID), url.PathEscape(marketplaceID), url.PathEscape(orderID))
}

func segmentAfter(location, name string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadLocation, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == name && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("%w: no %s segment in %q", ErrBadLocation, name, location)
}

// ID is an identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON accepts "123", 123 and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }
