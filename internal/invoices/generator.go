package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
)

// IssueRequest is sent to the invoice backend. Orders carries full payloads
// (reconciliation path); Pending carries stored order records (sweeper path).
type IssueRequest struct {
	ShopID  string           `json:"shop_id,omitempty"`
	Orders  []orders.Payload `json:"orders,omitempty"`
	Pending []orders.Record  `json:"pending,omitempty"`
}

// IssuedInvoice is one invoice produced by the backend.
type IssuedInvoice struct {
	Reference   string          `json:"reference"`
	InvoiceData json.RawMessage `json:"invoice_data"`
}

// IssueResponse lists the invoices the backend produced. References it could
// not invoice are simply absent.
type IssueResponse struct {
	Invoices []IssuedInvoice `json:"invoices"`
}

// Backend produces invoices. The generation algorithm lives behind it.
type Backend interface {
	Issue(ctx context.Context, req IssueRequest) (IssueResponse, error)
}

// LambdaBackend calls the invoice function synchronously.
type LambdaBackend struct {
	invoker  *aws.Invoker
	function string
}

func NewLambdaBackend(invoker *aws.Invoker, function string) *LambdaBackend {
	return &LambdaBackend{invoker: invoker, function: function}
}

func (b *LambdaBackend) Issue(ctx context.Context, req IssueRequest) (IssueResponse, error) {
	out, err := b.invoker.InvokeSync(ctx, b.function, req)
	if err != nil {
		return IssueResponse{}, err
	}
	var resp IssueResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return IssueResponse{}, fmt.Errorf("decode invoice response: %w", err)
	}
	return resp, nil
}

// ErrNotIssued means the backend answered without an invoice for the order.
var ErrNotIssued = errors.New("backend issued no invoice")

// Service runs one generation unit: issue, persist, acknowledge. A failure at
// any step leaves the queue message in place, so the unit is retried on
// redelivery; a duplicate issue is absorbed by Store.Resolve.
type Service struct {
	backend Backend
	store   *Store
	logger  *slog.Logger
}

func NewService(backend Backend, store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, store: store, logger: logger}
}

// Generate invoices one order. The caller hands over ack: on success the
// service deletes the message exactly once; on failure it never touches it.
func (s *Service) Generate(ctx context.Context, order orders.Payload, ack *aws.Ack) error {
	resp, err := s.backend.Issue(ctx, IssueRequest{Orders: []orders.Payload{order}})
	if err != nil {
		return fmt.Errorf("issue invoice %s: %w", order.Reference, err)
	}

	var issued *IssuedInvoice
	for i := range resp.Invoices {
		if resp.Invoices[i].Reference == order.Reference {
			issued = &resp.Invoices[i]
			break
		}
	}
	if issued == nil {
		return fmt.Errorf("reference %s: %w", order.Reference, ErrNotIssued)
	}

	created, err := s.store.Resolve(ctx, Record{Reference: order.Reference, InvoiceData: string(issued.InvoiceData)})
	if err != nil {
		return fmt.Errorf("store invoice %s: %w", order.Reference, err)
	}
	if !created {
		s.logger.Warn("invoice already stored, keeping first", "reference", order.Reference)
	}

	if err := ack.Delete(ctx); err != nil {
		return err
	}
	s.logger.Info("invoice generated", "reference", order.Reference, "receipt_handle", ack.ReceiptHandle())
	return nil
}

// GenerateBatch retries generation for orders the sweeper found unresolved.
// There is no queue message to acknowledge. Orders the backend skips stay
// pending until the next sweep or until they go stale.
func (s *Service) GenerateBatch(ctx context.Context, shopID string, pending []orders.Record) error {
	if len(pending) == 0 {
		return nil
	}
	resp, err := s.backend.Issue(ctx, IssueRequest{ShopID: shopID, Pending: pending})
	if err != nil {
		return fmt.Errorf("issue batch: %w", err)
	}

	var errs []error
	for _, inv := range resp.Invoices {
		if _, err := s.store.Resolve(ctx, Record{Reference: inv.Reference, InvoiceData: string(inv.InvoiceData)}); err != nil {
			s.logger.Error("store batch invoice failed", "reference", inv.Reference, "error", err)
			errs = append(errs, err)
		}
	}
	s.logger.Info("batch retry submitted", "shop_id", shopID, "pending", len(pending), "issued", len(resp.Invoices))
	return errors.Join(errs...)
}
