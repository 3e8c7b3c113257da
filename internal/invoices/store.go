package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
)

// Store encapsulates invoice record operations against DynamoDB.
type Store struct {
	client      aws.DynamoDBAPI
	tableName   string
	ordersTable string
	nowFunc     func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table for invoice records.
// ordersTable: table whose order record is removed when an invoice is stored.
func NewStore(client aws.DynamoDBAPI, tableName, ordersTable string) *Store {
	return &Store{
		client:      client,
		tableName:   tableName,
		ordersTable: ordersTable,
		nowFunc:     time.Now,
	}
}

// Get retrieves an invoice record by reference. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, reference string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orders.ReferenceKey(reference),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// Exists reports whether an invoice was already generated for reference.
func (s *Store) Exists(ctx context.Context, reference string) (bool, error) {
	rec, err := s.Get(ctx, reference)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Resolve atomically stores the invoice record and removes the order record.
// Returns (true, nil) when the invoice was written and (false, nil) when an
// invoice for the reference already existed; in that case the leftover order
// record is still removed.
func (s *Store) Resolve(ctx context.Context, rec Record) (bool, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.nowFunc().UTC()
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal invoice record: %w", err)
	}

	input := &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                item,
					ConditionExpression: awsString("attribute_not_exists(reference)"),
				},
			},
			{
				Delete: &types.Delete{
					TableName: &s.ordersTable,
					Key:       orders.ReferenceKey(rec.Reference),
				},
			},
		},
	}

	_, err = s.client.TransactWriteItems(ctx, input)
	if err == nil {
		return true, nil
	}
	if !isConditionFailure(err) {
		return false, fmt.Errorf("transact write: %w", err)
	}

	// lost the race or duplicate generation: keep the first invoice
	existing, getErr := s.Get(ctx, rec.Reference)
	if getErr != nil {
		return false, getErr
	}
	if existing == nil {
		return false, fmt.Errorf("transaction canceled without existing invoice: %w", err)
	}
	if _, delErr := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.ordersTable,
		Key:       orders.ReferenceKey(rec.Reference),
	}); delErr != nil {
		return false, fmt.Errorf("delete resolved order: %w", delErr)
	}
	return false, nil
}

func isConditionFailure(err error) bool {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

// Helper
func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
