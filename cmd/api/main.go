package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/config"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/handlers"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/ingestion"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/logging"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/marketplace"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/metrics"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/webhooks"
)

func setupRouter(deps handlers.Deps, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(r, deps)

	return r
}

func buildDeps(cfg *config.Config, clients *aws.AWSClients, logger *slog.Logger, m *metrics.HTTP) handlers.Deps {
	router := webhooks.NewRouter(
		aws.NewPublisher(clients.SQS, cfg.OrderQueueURL),
		aws.NewInvoker(clients.Lambda),
		cfg.FeedsFunction,
		cfg.AllowedMarketplaces,
		cfg.MaxDelaySeconds,
		logger,
	)
	ingester := ingestion.NewWorker(
		marketplace.NewClient(nil, cfg.TokenFor),
		orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		aws.NewPublisher(clients.SQS, cfg.InvoiceQueueURL),
		logger,
	)
	return handlers.Deps{
		Webhooks:          router,
		Ingester:          ingester,
		RetryToken:        cfg.RetryToken,
		MarketplaceAPIURL: cfg.MarketplaceAPIURL,
		Logger:            logger,
		Metrics:           m,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate("api"); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	provider := aws.NewProvider(aws.NewAWSClients)
	clients, err := provider.Clients(context.Background())
	if err != nil {
		logger.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	r := setupRouter(buildDeps(cfg, clients, logger, metrics.NewHTTP(reg)), reg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.RunLocal {
		addr := ":8080"
		logger.Info("running local server", "addr", addr)
		if err := r.Run(addr); err != nil {
			logger.Error("failed to run local server", "error", err)
			os.Exit(1)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(aws.NewContext(ctx, clients), req)
	})
}
