package webhooks

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/apperrors"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/awstest"
)

const (
	orderQueue = "https://sqs/orders"
	orderLoc   = "https://api.software.madkting.com/shops/1087841/marketplace/13/orders/6777870536462/"
	feedsFn    = "feeds-fn"
)

func newRouter(allowed map[int]bool) (*Router, *awstest.SQS, *awstest.Lambda) {
	sqs := awstest.NewSQS()
	lam := awstest.NewLambda()
	r := NewRouter(aws.NewPublisher(sqs, orderQueue), aws.NewInvoker(lam), feedsFn, allowed, 120, nil)
	return r, sqs, lam
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h[kv[i]] = []string{kv[i+1]}
	}
	return h
}

func TestRoute_AllowedOrderIsEnqueuedWithBoundedDelay(t *testing.T) {
	r, sqs, lam := newRouter(map[int]bool{13: true})
	var bound int
	r.randIntn = func(n int) int { bound = n; return n - 1 }

	res, err := r.Route(context.Background(), headers("x-madkting-event", "order.created", "location", orderLoc))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if res.Outcome != OutcomeEnqueued || res.Status != http.StatusOK {
		t.Fatalf("unexpected result %+v", res)
	}
	sent := sqs.SentTo(orderQueue)
	if len(sent) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(sent))
	}
	if bound != 120 || sent[0].DelaySeconds != 119 {
		t.Fatalf("delay must be drawn from [0,120), bound=%d delay=%d", bound, sent[0].DelaySeconds)
	}
	if *sent[0].MessageBody != `{"location":"`+orderLoc+`"}` {
		t.Fatalf("unexpected body %s", *sent[0].MessageBody)
	}
	if len(lam.Calls) != 0 {
		t.Fatalf("orders must not invoke the feeds function")
	}
}

func TestRoute_UnconfiguredMarketplaceIsIgnored(t *testing.T) {
	r, sqs, lam := newRouter(map[int]bool{99: true})

	res, err := r.Route(context.Background(), headers(HeaderEvent, "order", HeaderLocation, orderLoc))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if res.Outcome != OutcomeIgnored || res.Status != http.StatusOK {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(sqs.Sent) != 0 || len(lam.Calls) != 0 {
		t.Fatalf("ignored events have no side effects")
	}
}

func TestRoute_FeedIsInvokedAsync(t *testing.T) {
	r, sqs, lam := newRouter(nil)

	res, err := r.Route(context.Background(), headers(HeaderEvent, "feed.updated", HeaderLocation, "https://x/feeds/1"))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if res.Outcome != OutcomeForwarded || res.Status != http.StatusAccepted {
		t.Fatalf("unexpected result %+v", res)
	}
	calls := lam.CallsTo(feedsFn)
	if len(calls) != 1 || calls[0].InvocationType != "Event" {
		t.Fatalf("expected one Event invoke, got %+v", calls)
	}
	if len(sqs.Sent) != 0 {
		t.Fatalf("feeds must not be enqueued")
	}
}

func TestRoute_ValidationErrors(t *testing.T) {
	cases := map[string]http.Header{
		"missing event":    headers(HeaderLocation, orderLoc),
		"missing location": headers(HeaderEvent, "order"),
		"non numeric id":   headers(HeaderEvent, "order", HeaderLocation, "https://x/shops/1/marketplace/abc/orders/2"),
		"no marketplace":   headers(HeaderEvent, "order", HeaderLocation, "https://x/shops/1/orders/2"),
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			r, sqs, lam := newRouter(map[int]bool{13: true})
			_, err := r.Route(context.Background(), h)
			if !apperrors.Is(err, apperrors.TextCodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if apperrors.StatusCode(err) != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", apperrors.StatusCode(err))
			}
			if len(sqs.Sent) != 0 || len(lam.Calls) != 0 {
				t.Fatalf("no side effects expected")
			}
		})
	}
}

func TestRoute_EnqueueFailureIsReturned(t *testing.T) {
	r, sqs, _ := newRouter(map[int]bool{13: true})
	sqs.SendErr = errors.New("throttled")
	if _, err := r.Route(context.Background(), headers(HeaderEvent, "order", HeaderLocation, orderLoc)); err == nil {
		t.Fatalf("expected error")
	}
}
