// Package awstest provides in-memory stand-ins for the AWS clients used by the
// service. They implement just enough behaviour for unit and pipeline tests.
package awstest

import (
	"context"
	"errors"
	"sort"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KeyAttr is the partition key of every table the fake serves.
const KeyAttr = "reference"

// Dynamo is an in-memory DynamoDB keyed by table -> reference -> item.
// It understands the condition expressions the stores issue.
type Dynamo struct {
	mu     sync.Mutex
	Tables map[string]map[string]map[string]types.AttributeValue

	// Err, when set, is returned by every call.
	Err error

	PutCalls, GetCalls, DeleteCalls, ScanCalls, TransactCalls int
}

func NewDynamo() *Dynamo {
	return &Dynamo{Tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func (m *Dynamo) table(name string) map[string]map[string]types.AttributeValue {
	if _, ok := m.Tables[name]; !ok {
		m.Tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return m.Tables[name]
}

func keyOf(item map[string]types.AttributeValue) (string, error) {
	v, ok := item[KeyAttr].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("no reference key attribute")
	}
	return v.Value, nil
}

// Seed stores item directly, bypassing conditions.
func (m *Dynamo) Seed(table string, item map[string]types.AttributeValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := keyOf(item)
	if err != nil {
		panic(err)
	}
	m.table(table)[k] = item
}

// Item returns the stored item or nil.
func (m *Dynamo) Item(table, reference string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table(table)[reference]
}

// Len returns the number of items in a table.
func (m *Dynamo) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table(table))
}

func (m *Dynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	tbl := m.table(*params.TableName)
	k, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(reference)" {
		if _, exists := tbl[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	tbl[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *Dynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table(*params.TableName)[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *Dynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	tbl := m.table(*params.TableName)
	item, exists := tbl[k]
	if !exists {
		if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_exists(reference)" {
			return nil, &types.ConditionalCheckFailedException{}
		}
		item = map[string]types.AttributeValue{KeyAttr: params.Key[KeyAttr]}
	}
	// supports SET #s = :new, updated_at = :ua
	if v, ok := params.ExpressionAttributeValues[":new"]; ok {
		item["status"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":ua"]; ok {
		item["updated_at"] = v
	}
	tbl[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *Dynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	delete(m.table(*params.TableName), k)
	return &dyn.DeleteItemOutput{}, nil
}

// Scan returns the whole table in key order in a single page.
func (m *Dynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScanCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	tbl := m.table(*params.TableName)
	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		items = append(items, tbl[k])
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

// TransactWriteItems applies Put and Delete actions all-or-nothing.
func (m *Dynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransactCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	// First pass: verify condition expressions
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil && p.ConditionExpression != nil && *p.ConditionExpression == "attribute_not_exists(reference)" {
			k, err := keyOf(p.Item)
			if err != nil {
				return nil, err
			}
			if _, exists := m.table(*p.TableName)[k]; exists {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}
	// Second pass: apply
	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			k, _ := keyOf(it.Put.Item)
			m.table(*it.Put.TableName)[k] = it.Put.Item
		case it.Delete != nil:
			k, err := keyOf(it.Delete.Key)
			if err != nil {
				return nil, err
			}
			delete(m.table(*it.Delete.TableName), k)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}
