package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/apperrors"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/marketplace"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/metrics"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/validation"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/webhooks"
)

// WebhookRouter routes a notification by its headers.
type WebhookRouter interface {
	Route(ctx context.Context, h http.Header) (webhooks.Result, error)
}

// Ingester runs the order ingestion path directly.
type Ingester interface {
	Ingest(ctx context.Context, location string, manual bool) error
}

// Deps groups dependencies for the HTTP routes.
type Deps struct {
	Webhooks          WebhookRouter
	Ingester          Ingester
	RetryToken        string
	MarketplaceAPIURL string
	Logger            *slog.Logger
	Metrics           *metrics.HTTP
}

// RegisterRoutes registers the webhook and manual retry routes.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	v := validation.New()

	r.POST("/webhooks", func(c *gin.Context) {
		start := time.Now()
		defer func() { deps.Metrics.Observe("/webhooks", time.Since(start).Seconds()) }()

		res, err := deps.Webhooks.Route(c.Request.Context(), c.Request.Header)
		if err != nil {
			status := apperrors.StatusCode(err)
			deps.Metrics.Webhook("rejected")
			deps.Logger.Error("webhook rejected", "status", status, "error", err)
			if status == http.StatusBadRequest {
				c.JSON(status, validation.BadRequestBody)
				return
			}
			c.JSON(status, gin.H{"message": "Internal error."})
			return
		}
		deps.Metrics.Webhook(string(res.Outcome))
		c.JSON(res.Status, gin.H{"outcome": res.Outcome})
	})

	r.POST("/retry", func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		defer func() { deps.Metrics.Observe("/retry", time.Since(start).Seconds()) }()

		if !tokenMatches(c.GetHeader("token"), deps.RetryToken) {
			err := apperrors.Auth("retry token mismatch")
			deps.Logger.Warn("retry rejected", "error", err)
			deps.Metrics.Retry("unauthorized")
			c.JSON(apperrors.StatusCode(err), gin.H{"message": "Invalid token."})
			return
		}

		var req validation.RetryRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			deps.Logger.Warn("retry rejected", "error", err)
			deps.Metrics.Retry("bad_request")
			return
		}

		location := marketplace.BuildLocation(deps.MarketplaceAPIURL,
			req.ShopID.String(), req.ChannelID.String(), req.OrderID.String())
		if err := deps.Ingester.Ingest(ctx, location, true); err != nil {
			deps.Logger.Error("manual ingestion failed", "location", location, "error", err)
			deps.Metrics.Retry("ingest_failed")
		} else {
			deps.Logger.Info("manual ingestion done", "location", location)
			deps.Metrics.Retry("ok")
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Processed successfully."})
	})
}

// tokenMatches compares in constant time. An unset expected token matches nothing.
func tokenMatches(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
