package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
)

// Scheduler controls recurring EventBridge rules.
type Scheduler struct {
	EventBridge EventBridgeAPI
}

// NewScheduler returns a Scheduler over an EventBridge client.
func NewScheduler(client EventBridgeAPI) *Scheduler {
	return &Scheduler{EventBridge: client}
}

// DisableRule stops the named rule from firing until it is enabled again.
func (s *Scheduler) DisableRule(ctx context.Context, name string) error {
	if _, err := s.EventBridge.DisableRule(ctx, &eventbridge.DisableRuleInput{Name: &name}); err != nil {
		return fmt.Errorf("disable rule %s: %w", name, err)
	}
	return nil
}
