package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// Invoker calls other Lambda functions with JSON payloads.
type Invoker struct {
	Lambda LambdaAPI
}

// NewInvoker returns an Invoker over a Lambda client.
func NewInvoker(client LambdaAPI) *Invoker {
	return &Invoker{Lambda: client}
}

// InvokeAsync queues an Event invocation and returns the accept status (202 on success).
func (i *Invoker) InvokeAsync(ctx context.Context, function string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	out, err := i.Lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   &function,
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        body,
	})
	if err != nil {
		return 0, fmt.Errorf("invoke %s: %w", function, err)
	}
	return int(out.StatusCode), nil
}

// InvokeSync runs a RequestResponse invocation and returns the function result.
// A function-level error (unhandled exception in the callee) is returned as an error.
func (i *Invoker) InvokeSync(ctx context.Context, function string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	out, err := i.Lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   &function,
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", function, err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("invoke %s: function error %s: %s", function, *out.FunctionError, string(out.Payload))
	}
	return out.Payload, nil
}
