// Package sweeper purges stale order records and resubmits unresolved ones
// for batch invoice generation.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/marketplace"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
)

const (
	MetricOrdersPurged  = "OrdersPurged"
	MetricOrdersPending = "OrdersPending"
)

type OrderStore interface {
	All(ctx context.Context) ([]orders.Record, error)
	Delete(ctx context.Context, reference string) error
}

type InvoiceLookup interface {
	Exists(ctx context.Context, reference string) (bool, error)
}

// BatchGenerator retries generation for records with no queue message behind them.
type BatchGenerator interface {
	GenerateBatch(ctx context.Context, shopID string, pending []orders.Record) error
}

type MetricsSink interface {
	Counts(ctx context.Context, values map[string]float64) error
}

// Event is the scheduled trigger. The shop id may sit at the top level or
// under the EventBridge detail.
type Event struct {
	ShopPK marketplace.ID `json:"shop_pk"`
	Detail struct {
		ShopPK marketplace.ID `json:"shop_pk"`
	} `json:"detail"`
}

func (e Event) shopID() string {
	if e.ShopPK != "" {
		return e.ShopPK.String()
	}
	return e.Detail.ShopPK.String()
}

// Result summarises one sweep.
type Result struct {
	Scanned int
	Purged  []string
	Pending []string
}

type Sweeper struct {
	orders         OrderStore
	invoices       InvoiceLookup
	generator      BatchGenerator
	metrics        MetricsSink
	staleAfterDays int
	logger         *slog.Logger
	nowFunc        func() time.Time
}

func NewSweeper(orderStore OrderStore, invoices InvoiceLookup, generator BatchGenerator, metrics MetricsSink, staleAfterDays int, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if staleAfterDays <= 0 {
		staleAfterDays = 3
	}
	return &Sweeper{
		orders:         orderStore,
		invoices:       invoices,
		generator:      generator,
		metrics:        metrics,
		staleAfterDays: staleAfterDays,
		logger:         logger,
		nowFunc:        time.Now,
	}
}

// Handle is the scheduled entry point.
func (s *Sweeper) Handle(ctx context.Context, ev Event) (Result, error) {
	return s.Sweep(ctx, ev.shopID())
}

// AgeDays returns the whole number of UTC days between createdAt and now.
func AgeDays(now, createdAt time.Time) int {
	return int(now.UTC().Sub(createdAt.UTC()) / (24 * time.Hour))
}

// Sweep scans every order record once. Records older than the cutoff are
// deleted without requeue whether or not they were invoiced. The remaining
// records without an invoice are submitted as one batch.
func (s *Sweeper) Sweep(ctx context.Context, shopID string) (Result, error) {
	records, err := s.orders.All(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("scan orders: %w", err)
	}

	now := s.nowFunc()
	res := Result{Scanned: len(records)}
	var pending []orders.Record
	for _, rec := range records {
		if AgeDays(now, rec.CreatedAt) > s.staleAfterDays {
			if err := s.orders.Delete(ctx, rec.Reference); err != nil {
				return res, fmt.Errorf("purge order %s: %w", rec.Reference, err)
			}
			res.Purged = append(res.Purged, rec.Reference)
			continue
		}
		invoiced, err := s.invoices.Exists(ctx, rec.Reference)
		if err != nil {
			return res, fmt.Errorf("lookup invoice %s: %w", rec.Reference, err)
		}
		if !invoiced {
			pending = append(pending, rec)
			res.Pending = append(res.Pending, rec.Reference)
		}
	}

	if err := s.generator.GenerateBatch(ctx, shopID, pending); err != nil {
		return res, fmt.Errorf("submit batch retry: %w", err)
	}

	if err := s.metrics.Counts(ctx, map[string]float64{
		MetricOrdersPurged:  float64(len(res.Purged)),
		MetricOrdersPending: float64(len(res.Pending)),
	}); err != nil {
		s.logger.Warn("publish sweep metrics failed", "error", err)
	}

	s.logger.Info("sweep complete",
		"shop_id", shopID,
		"scanned", res.Scanned,
		"purged", len(res.Purged),
		"pending", len(res.Pending),
	)
	return res, nil
}
