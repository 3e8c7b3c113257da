package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/apperrors"
)

// Message is one delivery of a queue message.
type Message struct {
	MessageID     string
	Body          string
	ReceiptHandle string
}

// Queue consumes and acknowledges messages on one SQS queue.
type Queue struct {
	SQS      SQSAPI
	QueueURL string
	Logger   *slog.Logger
}

// NewQueue returns a Queue bound to a queue URL.
func NewQueue(sqsClient SQSAPI, queueURL string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{SQS: sqsClient, QueueURL: queueURL, Logger: logger}
}

// ReceiveOne polls for at most one message. Returns (nil, nil) when the queue is empty.
func (q *Queue) ReceiveOne(ctx context.Context) (*Message, error) {
	out, err := q.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &q.QueueURL,
		MaxNumberOfMessages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}
	m := out.Messages[0]
	return &Message{
		MessageID:     deref(m.MessageId),
		Body:          deref(m.Body),
		ReceiptHandle: deref(m.ReceiptHandle),
	}, nil
}

// Delete acknowledges one delivery. Failures are logged with the receipt
// handle and returned as an ack error.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &q.QueueURL,
		ReceiptHandle: &receiptHandle,
	})
	if err != nil {
		q.Logger.Error("couldn't delete message", "receipt_handle", receiptHandle, "error", err)
		return apperrors.Ack(err, receiptHandle)
	}
	return nil
}

// Ack wraps a receipt handle into a single-use acknowledgment token.
func (q *Queue) Ack(receiptHandle string) *Ack {
	return &Ack{queue: q, handle: receiptHandle}
}

// ErrAckSpent is returned when an Ack is deleted a second time.
var ErrAckSpent = errors.New("ack already used")

// Ack is the right to acknowledge one delivery. Passing an Ack to another
// component hands over that right: the holder performs at most one successful
// Delete and nobody else deletes the delivery.
type Ack struct {
	queue  *Queue
	handle string

	mu    sync.Mutex
	spent bool
}

// ReceiptHandle returns the handle the Ack wraps.
func (a *Ack) ReceiptHandle() string {
	if a == nil {
		return ""
	}
	return a.handle
}

// Delete removes the delivery from the queue. A nil Ack has nothing to
// acknowledge and returns nil. A failed delete leaves the Ack usable.
func (a *Ack) Delete(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.spent {
		return ErrAckSpent
	}
	if err := a.queue.Delete(ctx, a.handle); err != nil {
		return err
	}
	a.spent = true
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
