package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/config"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/ingestion"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/invoices"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/marketplace"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/poller"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/reconcile"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/sweeper"
)

// Processor wires the queue and schedule handlers. Clients come from the
// invocation context when present, otherwise from the shared provider.
type Processor struct {
	cfg        *config.Config
	logger     *slog.Logger
	provider   *aws.Provider
	httpClient *http.Client
}

// NewProcessor creates a new worker processor.
func NewProcessor(cfg *config.Config, logger *slog.Logger, provider *aws.Provider) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, logger: logger, provider: provider}
}

func (p *Processor) clients(ctx context.Context) (context.Context, *aws.AWSClients, error) {
	if c, ok := aws.FromContext(ctx); ok {
		return ctx, c, nil
	}
	if p.provider == nil {
		return ctx, nil, fmt.Errorf("no aws clients available")
	}
	c, err := p.provider.Clients(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("init aws clients: %w", err)
	}
	return aws.NewContext(ctx, c), c, nil
}

func (p *Processor) invoiceService(c *aws.AWSClients) (*invoices.Service, *invoices.Store) {
	store := invoices.NewStore(c.DynamoDB, p.cfg.InvoicesTable, p.cfg.OrdersTable)
	backend := invoices.NewLambdaBackend(aws.NewInvoker(c.Lambda), p.cfg.InvoiceFunction)
	return invoices.NewService(backend, store, p.logger), store
}

func (p *Processor) ingestionWorker(c *aws.AWSClients) *ingestion.Worker {
	fetcher := marketplace.NewClient(p.httpClient, p.cfg.TokenFor)
	return ingestion.NewWorker(
		fetcher,
		orders.NewStore(c.DynamoDB, p.cfg.OrdersTable),
		aws.NewPublisher(c.SQS, p.cfg.InvoiceQueueURL),
		p.logger,
	)
}

// HandleIngest consumes the order queue.
func (p *Processor) HandleIngest(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	ctx, c, err := p.clients(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	p.logger.Info("received order messages", "count", len(ev.Records))
	return p.ingestionWorker(c).Handle(ctx, ev)
}

// HandleReconcile consumes the invoice queue.
func (p *Processor) HandleReconcile(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	ctx, c, err := p.clients(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	service, store := p.invoiceService(c)
	queue := aws.NewQueue(c.SQS, p.cfg.InvoiceQueueURL, p.logger)
	p.logger.Info("received invoice messages", "count", len(ev.Records))
	return reconcile.NewWorker(store, service, queue, p.logger).Handle(ctx, ev)
}

// HandleSweep runs the scheduled staleness sweep.
func (p *Processor) HandleSweep(ctx context.Context, ev sweeper.Event) (sweeper.Result, error) {
	ctx, c, err := p.clients(ctx)
	if err != nil {
		return sweeper.Result{}, err
	}
	service, store := p.invoiceService(c)
	s := sweeper.NewSweeper(
		orders.NewStore(c.DynamoDB, p.cfg.OrdersTable),
		store,
		service,
		aws.NewMetrics(c.CloudWatch, p.cfg.MetricsNS),
		p.cfg.StaleAfterDays,
		p.logger,
	)
	return s.Handle(ctx, ev)
}

// HandlePoll runs one tick of the product poller.
func (p *Processor) HandlePoll(ctx context.Context) error {
	ctx, c, err := p.clients(ctx)
	if err != nil {
		return err
	}
	pl := poller.NewPoller(
		aws.NewQueue(c.SQS, p.cfg.ProductQueueURL, p.logger),
		poller.NewLambdaAction(aws.NewInvoker(c.Lambda), p.cfg.ProductFunction),
		aws.NewScheduler(c.EventBridge),
		p.cfg.ProductRuleName,
		p.logger,
	)
	return pl.Handle(ctx)
}
