// Package reconcile matches order payloads against stored invoices and
// decides whether a delivery is redundant or needs generation.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/apperrors"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
)

// InvoiceLookup is the dedup store.
type InvoiceLookup interface {
	Exists(ctx context.Context, reference string) (bool, error)
}

// Generator produces the invoice and takes ownership of ack.
type Generator interface {
	Generate(ctx context.Context, order orders.Payload, ack *aws.Ack) error
}

// Worker reconciles deliveries from the invoice queue.
type Worker struct {
	invoices  InvoiceLookup
	generator Generator
	queue     *aws.Queue
	logger    *slog.Logger
}

// NewWorker creates a reconciliation Worker. queue must be the queue the
// deliveries come from.
func NewWorker(invoices InvoiceLookup, generator Generator, queue *aws.Queue, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{invoices: invoices, generator: generator, queue: queue, logger: logger}
}

// Handle processes an SQS batch. A failed delete aborts the whole invocation
// with the ack error; any other failure only marks that record for redelivery.
func (w *Worker) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		err := w.Reconcile(ctx, rec.Body, rec.ReceiptHandle)
		if err == nil {
			continue
		}
		if apperrors.Is(err, apperrors.TextCodeAck) {
			return resp, err
		}
		w.logger.Error("reconciliation failed, leaving message for redelivery",
			"message_id", rec.MessageId, "receipt_handle", rec.ReceiptHandle, "error", err)
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
	}
	return resp, nil
}

// Reconcile handles one delivery. If the invoice already exists the delivery
// is a duplicate and is deleted here; otherwise the receipt handle is handed
// to the generator, which alone may delete it.
func (w *Worker) Reconcile(ctx context.Context, body, receiptHandle string) error {
	order, err := orders.ParsePayload([]byte(body))
	if err != nil {
		return fmt.Errorf("invalid order payload: %w", err)
	}

	exists, err := w.invoices.Exists(ctx, order.Reference)
	if err != nil {
		return fmt.Errorf("lookup invoice %s: %w", order.Reference, err)
	}

	ack := w.queue.Ack(receiptHandle)
	if exists {
		if err := ack.Delete(ctx); err != nil {
			return err
		}
		w.logger.Info("message copy deleted", "reference", order.Reference, "receipt_handle", receiptHandle)
		return nil
	}

	return w.generator.Generate(ctx, order, ack)
}
