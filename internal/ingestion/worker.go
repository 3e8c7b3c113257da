// Package ingestion turns order notifications into order records and
// reconciliation messages.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/marketplace"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
)

// Message is the order-queue body written by the webhook router.
type Message struct {
	Location string `json:"location"`
}

// Fetcher retrieves an order document from its resource location.
type Fetcher interface {
	FetchOrder(ctx context.Context, location string) (orders.Payload, error)
}

// OrderStore persists order records.
type OrderStore interface {
	CreateIfNotExists(ctx context.Context, rec orders.Record) (bool, error)
	UpdateStatus(ctx context.Context, reference, newStatus string) error
}

// Publisher sends to the reconciliation queue.
type Publisher interface {
	Send(ctx context.Context, messageBody string, delaySeconds int32, attributes map[string]string) (int, error)
}

// Worker fetches orders and forwards them to reconciliation.
type Worker struct {
	fetcher   Fetcher
	store     OrderStore
	publisher Publisher
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// NewWorker creates an ingestion Worker.
func NewWorker(fetcher Fetcher, store OrderStore, publisher Publisher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Handle processes an SQS batch. Records that fail are reported back so only
// they are redelivered after the visibility timeout; there is no in-worker retry.
func (w *Worker) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := w.processMessage(ctx, rec); err != nil {
			w.logger.Error("order ingestion failed, leaving message for redelivery",
				"message_id", rec.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (w *Worker) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg Message
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.Location == "" {
		return fmt.Errorf("message %s has no location", rec.MessageId)
	}
	return w.Ingest(ctx, msg.Location, false)
}

// Ingest fetches the order at location, records it and publishes it for
// reconciliation exactly once. manual marks a retry requested by an operator.
func (w *Worker) Ingest(ctx context.Context, location string, manual bool) error {
	payload, err := w.fetcher.FetchOrder(ctx, location)
	if err != nil {
		w.logger.Warn("order fetch failed", "location", location, "manual", manual, "error", err)
		return err
	}

	status := orders.StatusPending
	if manual {
		status = orders.StatusManualRetry
	}
	record := orders.Record{
		Reference: payload.Reference,
		Location:  location,
		Status:    status,
		CreatedAt: w.nowFunc().UTC(),
	}
	if loc, err := marketplace.ParseLocation(location); err == nil {
		record.ShopID = loc.ShopID
		record.MarketplaceID = loc.MarketplaceID
	}

	created, err := w.store.CreateIfNotExists(ctx, record)
	if err != nil {
		return fmt.Errorf("store order %s: %w", payload.Reference, err)
	}
	if !created && manual {
		if err := w.store.UpdateStatus(ctx, payload.Reference, orders.StatusManualRetry); err != nil {
			w.logger.Warn("could not flag manual retry", "reference", payload.Reference, "error", err)
		}
	}

	attrs := map[string]string{
		"reference":      payload.Reference,
		"correlation_id": uuid.NewString(),
	}
	if manual {
		attrs["manual_retry"] = "true"
	}
	if _, err := w.publisher.Send(ctx, string(payload.Raw), 0, attrs); err != nil {
		return fmt.Errorf("publish order %s: %w", payload.Reference, err)
	}

	w.logger.Info("order ingested", "reference", payload.Reference, "new_record", created, "manual", manual)
	return nil
}
