package poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/awstest"
)

const productQueue = "https://sqs/products"

type countingAction struct {
	payloads []string
	err      error
}

func (a *countingAction) Run(ctx context.Context, payload json.RawMessage) error {
	a.payloads = append(a.payloads, string(payload))
	return a.err
}

func setup(action Action) (*Poller, *awstest.SQS, *awstest.EventBridge) {
	sqs := awstest.NewSQS()
	eb := &awstest.EventBridge{}
	p := NewPoller(aws.NewQueue(sqs, productQueue, nil), action, aws.NewScheduler(eb), "", nil)
	return p, sqs, eb
}

func TestTick_EmptyQueueDisablesRule(t *testing.T) {
	action := &countingAction{}
	p, _, eb := setup(action)

	state, err := p.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if state != StateDisabled {
		t.Fatalf("expected DISABLED, got %s", state)
	}
	if len(eb.Disabled) != 1 || eb.Disabled[0] != DefaultRuleName {
		t.Fatalf("expected one disable of %s, got %v", DefaultRuleName, eb.Disabled)
	}
	if len(action.payloads) != 0 {
		t.Fatalf("action must not run on empty queue")
	}
}

func TestTick_MessageIsDeletedThenActioned(t *testing.T) {
	action := &countingAction{}
	p, sqs, eb := setup(action)
	sqs.Push(productQueue, `{"sku":"A-1"}`, "rh-p1")

	state, err := p.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if state != StateActive {
		t.Fatalf("expected ACTIVE, got %s", state)
	}
	if len(sqs.Deleted) != 1 || sqs.Deleted[0] != "rh-p1" {
		t.Fatalf("expected one delete, got %v", sqs.Deleted)
	}
	if len(action.payloads) != 1 || action.payloads[0] != `{"sku":"A-1"}` {
		t.Fatalf("expected one action run, got %v", action.payloads)
	}
	if len(eb.Disabled) != 0 {
		t.Fatalf("rule must stay enabled, got %v", eb.Disabled)
	}
}

func TestTick_ActionFailureAfterDelete(t *testing.T) {
	action := &countingAction{err: errors.New("product api down")}
	p, sqs, _ := setup(action)
	sqs.Push(productQueue, `{"sku":"A-2"}`, "rh-p2")

	if _, err := p.Tick(context.Background()); err == nil {
		t.Fatalf("expected action error")
	}
	if len(sqs.Deleted) != 1 {
		t.Fatalf("message is claimed before the action runs, got %v", sqs.Deleted)
	}
}

func TestTick_InvalidBodyIsDiscarded(t *testing.T) {
	action := &countingAction{}
	p, sqs, _ := setup(action)
	sqs.Push(productQueue, `not json`, "rh-p3")

	if _, err := p.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(sqs.Deleted) != 1 || len(action.payloads) != 0 {
		t.Fatalf("invalid body should be deleted and skipped, deleted=%v runs=%v", sqs.Deleted, action.payloads)
	}
}

func TestLambdaAction_InvokesSynchronously(t *testing.T) {
	lam := awstest.NewLambda()
	a := NewLambdaAction(aws.NewInvoker(lam), "product-fn")
	if err := a.Run(context.Background(), json.RawMessage(`{"sku":"B"}`)); err != nil {
		t.Fatalf("run: %v", err)
	}
	calls := lam.CallsTo("product-fn")
	if len(calls) != 1 || calls[0].InvocationType != "RequestResponse" {
		t.Fatalf("expected one RequestResponse invoke, got %+v", calls)
	}
}
