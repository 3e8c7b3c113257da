package awstest

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS is an in-memory queue set keyed by queue URL.
type SQS struct {
	mu sync.Mutex

	Sent    []*sqs.SendMessageInput
	Deleted []string
	// Pending holds messages served by ReceiveMessage, per queue URL.
	Pending map[string][]sqstypes.Message

	SendErr   error
	DeleteErr error

	ReceiveCalls int
	seq          int
}

func NewSQS() *SQS {
	return &SQS{Pending: map[string][]sqstypes.Message{}}
}

// Push makes body available to ReceiveMessage on queueURL.
func (f *SQS) Push(queueURL, body, receiptHandle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := "msg-" + strconv.Itoa(f.seq)
	f.Pending[queueURL] = append(f.Pending[queueURL], sqstypes.Message{
		MessageId:     &id,
		Body:          &body,
		ReceiptHandle: &receiptHandle,
	})
}

// SentTo returns the messages sent to queueURL.
func (f *SQS) SentTo(queueURL string) []*sqs.SendMessageInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*sqs.SendMessageInput
	for _, in := range f.Sent {
		if *in.QueueUrl == queueURL {
			out = append(out, in)
		}
	}
	return out
}

func (f *SQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.Sent = append(f.Sent, in)
	f.seq++
	id := "msg-" + strconv.Itoa(f.seq)
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

func (f *SQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReceiveCalls++
	pending := f.Pending[*in.QueueUrl]
	n := int(in.MaxNumberOfMessages)
	if n <= 0 {
		n = 1
	}
	if n > len(pending) {
		n = len(pending)
	}
	out := pending[:n]
	f.Pending[*in.QueueUrl] = pending[n:]
	return &sqs.ReceiveMessageOutput{Messages: out}, nil
}

func (f *SQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}
	f.Deleted = append(f.Deleted, *in.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

// Lambda routes invocations to per-function handlers.
type Lambda struct {
	mu       sync.Mutex
	Calls    []*lambda.InvokeInput
	Handlers map[string]func(payload []byte) ([]byte, error)
	// Status is the StatusCode reported for successful invocations (default 200, Event 202).
	Status int32
}

func NewLambda() *Lambda {
	return &Lambda{Handlers: map[string]func([]byte) ([]byte, error){}}
}

// CallsTo returns the invocations of function.
func (f *Lambda) CallsTo(function string) []*lambda.InvokeInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*lambda.InvokeInput
	for _, c := range f.Calls {
		if *c.FunctionName == function {
			out = append(out, c)
		}
	}
	return out
}

func (f *Lambda) Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, in)
	h := f.Handlers[*in.FunctionName]
	f.mu.Unlock()

	status := f.Status
	if status == 0 {
		status = 200
		if in.InvocationType == "Event" {
			status = 202
		}
	}
	if h == nil {
		return &lambda.InvokeOutput{StatusCode: status}, nil
	}
	out, err := h(in.Payload)
	if err != nil {
		unhandled := "Unhandled"
		return &lambda.InvokeOutput{StatusCode: 200, FunctionError: &unhandled, Payload: []byte(`{"errorMessage":"` + err.Error() + `"}`)}, nil
	}
	return &lambda.InvokeOutput{StatusCode: status, Payload: out}, nil
}

// EventBridge records disabled rules.
type EventBridge struct {
	Disabled []string
	Err      error
}

func (f *EventBridge) DisableRule(ctx context.Context, in *eventbridge.DisableRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DisableRuleOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if in.Name == nil {
		return nil, errors.New("missing rule name")
	}
	f.Disabled = append(f.Disabled, *in.Name)
	return &eventbridge.DisableRuleOutput{}, nil
}

// CloudWatch records published metric values by name.
type CloudWatch struct {
	mu     sync.Mutex
	Values map[string]float64
}

func (f *CloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Values == nil {
		f.Values = map[string]float64{}
	}
	for _, d := range in.MetricData {
		f.Values[*d.MetricName] += *d.Value
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}
