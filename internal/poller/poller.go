// Package poller drains the product queue one message per tick and switches
// its own schedule off once the queue runs dry.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
)

// DefaultRuleName is the schedule rule driving the poller.
const DefaultRuleName = "SqsSendProduct"

// State is the schedule state after a tick.
type State string

const (
	StateActive   State = "ACTIVE"
	StateDisabled State = "DISABLED"
)

type Receiver interface {
	ReceiveOne(ctx context.Context) (*aws.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Action runs the product work for one claimed message.
type Action interface {
	Run(ctx context.Context, payload json.RawMessage) error
}

type RuleDisabler interface {
	DisableRule(ctx context.Context, name string) error
}

// LambdaAction invokes the product function and waits for it.
type LambdaAction struct {
	invoker  *aws.Invoker
	function string
}

func NewLambdaAction(invoker *aws.Invoker, function string) *LambdaAction {
	return &LambdaAction{invoker: invoker, function: function}
}

func (a *LambdaAction) Run(ctx context.Context, payload json.RawMessage) error {
	_, err := a.invoker.InvokeSync(ctx, a.function, payload)
	return err
}

type Poller struct {
	queue    Receiver
	action   Action
	rules    RuleDisabler
	ruleName string
	logger   *slog.Logger
}

func NewPoller(queue Receiver, action Action, rules RuleDisabler, ruleName string, logger *slog.Logger) *Poller {
	if ruleName == "" {
		ruleName = DefaultRuleName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{queue: queue, action: action, rules: rules, ruleName: ruleName, logger: logger}
}

// Tick runs one scheduled invocation. A message found on the queue is
// deleted before the action runs, so a failed action is not retried from
// the queue. An empty queue disables the rule; nothing here re-enables it.
func (p *Poller) Tick(ctx context.Context) (State, error) {
	msg, err := p.queue.ReceiveOne(ctx)
	if err != nil {
		return StateActive, err
	}

	if msg == nil {
		if err := p.rules.DisableRule(ctx, p.ruleName); err != nil {
			return StateActive, err
		}
		p.logger.Info("timer deactivated", "rule", p.ruleName)
		return StateDisabled, nil
	}

	if err := p.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		return StateActive, err
	}
	p.logger.Info("message deleted", "message_id", msg.MessageID, "receipt_handle", msg.ReceiptHandle)

	if !json.Valid([]byte(msg.Body)) {
		p.logger.Error("discarded product message with invalid body", "message_id", msg.MessageID)
		return StateActive, nil
	}
	if err := p.action.Run(ctx, json.RawMessage(msg.Body)); err != nil {
		return StateActive, fmt.Errorf("product action: %w", err)
	}
	return StateActive, nil
}

// Handle is the scheduled entry point.
func (p *Poller) Handle(ctx context.Context) error {
	_, err := p.Tick(ctx)
	return err
}
