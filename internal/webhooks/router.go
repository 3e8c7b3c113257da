// Package webhooks classifies marketplace notifications and routes them to
// the order queue or the feeds function.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/apperrors"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/marketplace"
)

const (
	HeaderEvent    = "X-Madkting-Event"
	HeaderLocation = "Location"
)

type EventType string

const (
	EventOrder EventType = "order"
	EventFeed  EventType = "feed"
)

// Outcome is what the router did with a notification.
type Outcome string

const (
	OutcomeEnqueued  Outcome = "enqueued"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeForwarded Outcome = "forwarded"
)

// Event is a classified notification.
type Event struct {
	Type          EventType
	RawType       string
	Location      string
	MarketplaceID int
}

// Result carries the HTTP status to answer with.
type Result struct {
	Status  int
	Outcome Outcome
}

type Enqueuer interface {
	Send(ctx context.Context, messageBody string, delaySeconds int32, attributes map[string]string) (int, error)
}

type FeedInvoker interface {
	InvokeAsync(ctx context.Context, function string, payload any) (int, error)
}

// header looks key up case-insensitively, including non-canonical keys.
func header(h http.Header, key string) string {
	if v := h.Get(key); v != "" {
		return strings.TrimSpace(v)
	}
	for k, vs := range h {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
	}
	return ""
}

// Classify reads the event type and location headers. Order events must
// carry a numeric marketplace id in the location.
func Classify(h http.Header) (Event, error) {
	rawType := header(h, HeaderEvent)
	location := header(h, HeaderLocation)
	if rawType == "" || location == "" {
		return Event{}, apperrors.Validation("missing event type or location header", map[string]any{
			"event_type": rawType,
			"location":   location,
		})
	}

	ev := Event{Type: EventFeed, RawType: rawType, Location: location}
	if !strings.Contains(strings.ToLower(rawType), "order") {
		return ev, nil
	}

	ev.Type = EventOrder
	id, err := marketplace.MarketplaceID(location)
	if err != nil {
		return Event{}, apperrors.Validation("order location has no numeric marketplace id", map[string]any{
			"location": location,
		})
	}
	ev.MarketplaceID = id
	return ev, nil
}

// Router dispatches classified notifications. Each call performs at most one
// enqueue or one invoke.
type Router struct {
	queue         Enqueuer
	feeds         FeedInvoker
	feedsFunction string
	allowed       map[int]bool
	maxDelay      int
	logger        *slog.Logger
	randIntn      func(n int) int
}

func NewRouter(queue Enqueuer, feeds FeedInvoker, feedsFunction string, allowed map[int]bool, maxDelaySeconds int, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDelaySeconds <= 0 {
		maxDelaySeconds = 120
	}
	return &Router{
		queue:         queue,
		feeds:         feeds,
		feedsFunction: feedsFunction,
		allowed:       allowed,
		maxDelay:      maxDelaySeconds,
		logger:        logger,
		randIntn:      rand.IntN,
	}
}

// Route classifies the headers and performs the matching side effect.
func (r *Router) Route(ctx context.Context, h http.Header) (Result, error) {
	ev, err := Classify(h)
	if err != nil {
		return Result{}, err
	}

	body, err := json.Marshal(map[string]string{"location": ev.Location})
	if err != nil {
		return Result{}, fmt.Errorf("marshal location: %w", err)
	}

	if ev.Type == EventFeed {
		status, err := r.feeds.InvokeAsync(ctx, r.feedsFunction, json.RawMessage(body))
		if err != nil {
			return Result{}, err
		}
		r.logger.Info("feed forwarded", "event_type", ev.RawType, "location", ev.Location, "status", status)
		return Result{Status: status, Outcome: OutcomeForwarded}, nil
	}

	if !r.allowed[ev.MarketplaceID] {
		r.logger.Info("marketplace not configured, ignoring", "marketplace_id", ev.MarketplaceID, "location", ev.Location)
		return Result{Status: http.StatusOK, Outcome: OutcomeIgnored}, nil
	}

	delay := int32(r.randIntn(r.maxDelay))
	status, err := r.queue.Send(ctx, string(body), delay, nil)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info("order enqueued",
		"marketplace_id", ev.MarketplaceID,
		"location", ev.Location,
		"delay_seconds", delay,
		"status", status,
	)
	return Result{Status: status, Outcome: OutcomeEnqueued}, nil
}
