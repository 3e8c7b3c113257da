package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/config"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/logging"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("role", cfg.Role)
	slog.SetDefault(logger)

	if err := cfg.Validate(cfg.Role); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	p := NewProcessor(cfg, logger, aws.NewProvider(aws.NewAWSClients))

	// If RUN_LOCAL=true, run the role once against a canned event.
	if cfg.RunLocal {
		if err := runLocal(context.Background(), p, cfg.Role); err != nil {
			logger.Error("local handler error", "error", err)
			os.Exit(1)
		}
		return
	}

	switch cfg.Role {
	case RoleIngest:
		lambda.Start(p.HandleIngest)
	case RoleReconcile:
		lambda.Start(p.HandleReconcile)
	case RoleSweep:
		lambda.Start(p.HandleSweep)
	case RolePoll:
		lambda.Start(p.HandlePoll)
	}
}

func runLocal(ctx context.Context, p *Processor, role string) error {
	body := os.Getenv("LOCAL_SQS_BODY")
	sqsEvent := func(def string) events.SQSEvent {
		if body == "" {
			body = def
		}
		return events.SQSEvent{Records: []events.SQSMessage{
			{MessageId: "local-1", ReceiptHandle: "local-receipt-1", Body: body},
		}}
	}

	switch role {
	case RoleIngest:
		resp, err := p.HandleIngest(ctx, sqsEvent(localIngestBody))
		if err == nil && len(resp.BatchItemFailures) > 0 {
			err = fmt.Errorf("%d item failures", len(resp.BatchItemFailures))
		}
		return err
	case RoleReconcile:
		resp, err := p.HandleReconcile(ctx, sqsEvent(localReconcileBody))
		if err == nil && len(resp.BatchItemFailures) > 0 {
			err = fmt.Errorf("%d item failures", len(resp.BatchItemFailures))
		}
		return err
	case RoleSweep:
		res, err := p.HandleSweep(ctx, sweeper.Event{ShopPK: "1087841"})
		p.logger.Info("local sweep", "purged", len(res.Purged), "pending", len(res.Pending))
		return err
	case RolePoll:
		return p.HandlePoll(ctx)
	}
	return fmt.Errorf("unknown role %q", role)
}
