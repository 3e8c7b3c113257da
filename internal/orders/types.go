package orders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Order statuses
const (
	StatusPending     = "PENDING"
	StatusManualRetry = "MANUAL_RETRY"
)

// Record is an order waiting for its invoice, stored in the orders DynamoDB table.
// It is removed once the invoice exists or the sweeper judges it stale.
type Record struct {
	Reference     string    `dynamodbav:"reference" json:"reference"` // PK
	ShopID        string    `dynamodbav:"shop_id,omitempty" json:"shop_id,omitempty"`
	MarketplaceID int       `dynamodbav:"marketplace_id,omitempty" json:"marketplace_id,omitempty"`
	Location      string    `dynamodbav:"location,omitempty" json:"location,omitempty"`
	Status        string    `dynamodbav:"status" json:"status"` // PENDING | MANUAL_RETRY
	CreatedAt     time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt     time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// ErrMissingReference is returned for order payloads without a reference.
var ErrMissingReference = errors.New("order payload has no reference")

// Payload is an order document as returned by the marketplace API. Raw is
// forwarded untouched; Reference is lifted out for keyed lookups.
type Payload struct {
	Reference string
	Raw       json.RawMessage
}

// ParsePayload validates body as a JSON object carrying a non-empty reference.
// Numeric references are kept in their literal form.
func ParsePayload(body []byte) (Payload, error) {
	var head struct {
		Reference any `json:"reference"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&head); err != nil {
		return Payload{}, fmt.Errorf("decode order payload: %w", err)
	}

	var ref string
	switch v := head.Reference.(type) {
	case string:
		ref = strings.TrimSpace(v)
	case json.Number:
		ref = v.String()
	}
	if ref == "" {
		return Payload{}, ErrMissingReference
	}

	raw := make(json.RawMessage, len(body))
	copy(raw, body)
	return Payload{Reference: ref, Raw: raw}, nil
}

// MarshalJSON emits the original document.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

// UnmarshalJSON applies the same checks as ParsePayload.
func (p *Payload) UnmarshalJSON(b []byte) error {
	parsed, err := ParsePayload(b)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
