package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/apperrors"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/awstest"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
)

const loc = "https://api.software.madkting.com/shops/1087841/marketplace/13/orders/6777870536462/"

// --- mock implementations ---

type stubFetcher struct {
	calls []string
	body  string
	err   error
}

func (s *stubFetcher) FetchOrder(ctx context.Context, location string) (orders.Payload, error) {
	s.calls = append(s.calls, location)
	if s.err != nil {
		return orders.Payload{}, s.err
	}
	return orders.ParsePayload([]byte(s.body))
}

func newWorker(f *stubFetcher) (*Worker, *awstest.Dynamo, *awstest.SQS) {
	dynamo := awstest.NewDynamo()
	sqs := awstest.NewSQS()
	w := NewWorker(f, orders.NewStore(dynamo, "orders"), aws.NewPublisher(sqs, "https://sqs/invoices"), nil)
	return w, dynamo, sqs
}

// --- test cases ---

func TestHandle_FetchesStoresAndPublishesOnce(t *testing.T) {
	f := &stubFetcher{body: `{"reference":"6777870536462","total":"10.00"}`}
	w, dynamo, sqs := newWorker(f)

	ev := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "m-1", Body: `{"location":"` + loc + `"}`}}}
	resp, err := w.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected worker error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected no failures, got %+v", resp.BatchItemFailures)
	}
	if len(f.calls) != 1 || f.calls[0] != loc {
		t.Fatalf("expected one fetch of %s, got %v", loc, f.calls)
	}

	item := dynamo.Item("orders", "6777870536462")
	if item == nil {
		t.Fatalf("order record not stored")
	}
	if shop, ok := item["shop_id"].(*types.AttributeValueMemberS); !ok || shop.Value != "1087841" {
		t.Fatalf("shop id not stored: %+v", item["shop_id"])
	}

	sent := sqs.SentTo("https://sqs/invoices")
	if len(sent) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(sent))
	}
	if *sent[0].MessageBody != `{"reference":"6777870536462","total":"10.00"}` {
		t.Fatalf("payload not forwarded verbatim: %s", *sent[0].MessageBody)
	}
	if _, manual := sent[0].MessageAttributes["manual_retry"]; manual {
		t.Fatalf("queue-driven ingestion must not be flagged manual")
	}
}

func TestHandle_FetchFailureLeavesMessage(t *testing.T) {
	f := &stubFetcher{err: apperrors.TransientFetch(errors.New("502"), loc)}
	w, dynamo, sqs := newWorker(f)

	ev := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m-1", Body: `{"location":"` + loc + `"}`},
		{MessageId: "m-2", Body: `not json`},
	}}
	resp, err := w.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("handler must report item failures, not error: %v", err)
	}
	if len(resp.BatchItemFailures) != 2 || resp.BatchItemFailures[0].ItemIdentifier != "m-1" || resp.BatchItemFailures[1].ItemIdentifier != "m-2" {
		t.Fatalf("unexpected failures %+v", resp.BatchItemFailures)
	}
	if len(f.calls) != 1 {
		t.Fatalf("expected a single fetch attempt (no in-worker retry), got %d", len(f.calls))
	}
	if dynamo.Len("orders") != 0 || len(sqs.Sent) != 0 {
		t.Fatalf("nothing may be stored or published on fetch failure")
	}
}

func TestIngest_ManualFlagsRecordAndMessage(t *testing.T) {
	f := &stubFetcher{body: `{"reference":"r-9"}`}
	w, dynamo, sqs := newWorker(f)

	// first a regular ingestion, then an operator retry
	if err := w.Ingest(context.Background(), loc, false); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := w.Ingest(context.Background(), loc, true); err != nil {
		t.Fatalf("manual ingest: %v", err)
	}

	st, ok := dynamo.Item("orders", "r-9")["status"].(*types.AttributeValueMemberS)
	if !ok || st.Value != orders.StatusManualRetry {
		t.Fatalf("expected MANUAL_RETRY status, got %+v", dynamo.Item("orders", "r-9")["status"])
	}
	sent := sqs.SentTo("https://sqs/invoices")
	if len(sent) != 2 {
		t.Fatalf("each successful ingestion publishes once, got %d", len(sent))
	}
	if v := sent[1].MessageAttributes["manual_retry"].StringValue; v == nil || *v != "true" {
		t.Fatalf("manual publish not flagged")
	}
	if sent[1].DelaySeconds != 0 {
		t.Fatalf("manual retry must not be delayed")
	}
}

func TestIngest_PublishFailureIsReturned(t *testing.T) {
	f := &stubFetcher{body: `{"reference":"r-10"}`}
	w, _, sqs := newWorker(f)
	sqs.SendErr = errors.New("queue unavailable")

	if err := w.Ingest(context.Background(), loc, false); err == nil {
		t.Fatalf("expected publish error")
	}
}
