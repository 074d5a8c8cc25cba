// Package memdb is an in-memory stand-in for the DynamoDB item and
// transaction APIs. Write transactions are validated and condition-checked
// as a whole before anything is applied, and read transactions see one
// consistent snapshot, matching the service's guarantees closely enough for
// unit tests.
package memdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/tessera/internal/keyid"
)

const maxTransactItems = 100

type table struct {
	desc  types.TableDescription
	keys  []string
	items map[string]item
}

// Hook inspects a request before it is applied. A non-nil error is returned
// to the caller instead of executing the request.
type Hook func(ctx context.Context, op string, input any) error

// DB is an in-memory DynamoDB. The zero value is not usable; call New.
type DB struct {
	mu     sync.RWMutex
	tables map[string]*table
	tokens map[string]bool
	calls  map[string]int
	hook   Hook
}

// New returns an empty database.
func New() *DB {
	return &DB{
		tables: make(map[string]*table),
		tokens: make(map[string]bool),
		calls:  make(map[string]int),
	}
}

// SetHook installs h, replacing any previous hook. Pass nil to remove it.
func (db *DB) SetHook(h Hook) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.hook = h
}

// Calls returns how many times op (e.g. "TransactWriteItems") was invoked.
func (db *DB) Calls(op string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.calls[op]
}

// Len returns the number of items in a table.
func (db *DB) Len(tableName string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if t, ok := db.tables[tableName]; ok {
		return len(t.items)
	}
	return 0
}

// Items returns copies of all items in a table, in no particular order.
func (db *DB) Items(tableName string) []map[string]types.AttributeValue {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, copyItem(it))
	}
	return out
}

// begin counts the call and runs the hook. It must be called without db.mu held.
func (db *DB) begin(ctx context.Context, op string, input any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	db.calls[op]++
	hook := db.hook
	db.mu.Unlock()
	if hook != nil {
		return hook(ctx, op, input)
	}
	return nil
}

func validationError(format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: fmt.Sprintf(format, args...),
		Fault:   smithy.FaultClient,
	}
}

func (db *DB) table(name *string) (*table, error) {
	t, ok := db.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: Table: " + aws.ToString(name) + " not found")}
	}
	return t, nil
}

// keyOf validates that av carries exactly the table's key attributes when
// keyOnly is set, or at least them otherwise, and returns the item identity.
func (t *table) keyOf(av item, keyOnly bool) (string, error) {
	key := make(item, len(t.keys))
	for _, k := range t.keys {
		v, ok := av[k]
		if !ok {
			return "", validationError("One of the required keys was not given a value")
		}
		key[k] = v
	}
	if keyOnly && len(av) != len(t.keys) {
		return "", validationError("The provided key element does not match the schema")
	}
	id, err := keyid.Of(aws.ToString(t.desc.TableName), key)
	if err != nil {
		return "", validationError("One or more parameter values were invalid: %v", err)
	}
	return id, nil
}

func parseCondition(expr *string, names map[string]string, values map[string]types.AttributeValue) (*Condition, error) {
	if expr == nil {
		if len(names) > 0 || len(values) > 0 {
			return nil, validationError("ExpressionAttributeNames and ExpressionAttributeValues can only be specified when using expressions")
		}
		return nil, nil
	}
	if names != nil && len(names) == 0 {
		return nil, validationError("ExpressionAttributeNames must not be empty")
	}
	if values != nil && len(values) == 0 {
		return nil, validationError("ExpressionAttributeValues must not be empty")
	}
	c, err := ParseCondition(*expr, names, values)
	if err != nil {
		return nil, validationError("Invalid ConditionExpression: %v", err)
	}
	return c, nil
}

// CreateTable registers a table. Only the key schema is used.
func (db *DB) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if err := db.begin(ctx, "CreateTable", params); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	name := aws.ToString(params.TableName)
	if _, ok := db.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	if len(params.KeySchema) == 0 || len(params.KeySchema) > 2 {
		return nil, validationError("invalid key schema for table %s", name)
	}

	t := &table{items: make(map[string]item)}
	for _, k := range params.KeySchema {
		t.keys = append(t.keys, aws.ToString(k.AttributeName))
	}
	t.desc = types.TableDescription{
		TableName:            aws.String(name),
		TableStatus:          types.TableStatusActive,
		KeySchema:            params.KeySchema,
		AttributeDefinitions: params.AttributeDefinitions,
	}
	db.tables[name] = t

	desc := t.desc
	return &dynamodb.CreateTableOutput{TableDescription: &desc}, nil
}

// DescribeTable reports an existing table as ACTIVE.
func (db *DB) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if err := db.begin(ctx, "DescribeTable", params); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, err := db.table(params.TableName)
	if err != nil {
		return nil, err
	}
	desc := t.desc
	desc.ItemCount = aws.Int64(int64(len(t.items)))
	return &dynamodb.DescribeTableOutput{Table: &desc}, nil
}

// DeleteTable drops a table and its items.
func (db *DB) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	if err := db.begin(ctx, "DeleteTable", params); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(params.TableName)
	if err != nil {
		return nil, err
	}
	delete(db.tables, aws.ToString(params.TableName))
	desc := t.desc
	desc.TableStatus = types.TableStatusDeleting
	return &dynamodb.DeleteTableOutput{TableDescription: &desc}, nil
}

// GetItem returns a copy of the item with the given key, if any.
func (db *DB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := db.begin(ctx, "GetItem", params); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, err := db.table(params.TableName)
	if err != nil {
		return nil, err
	}
	id, err := t.keyOf(params.Key, true)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.GetItemOutput{}
	if it, ok := t.items[id]; ok {
		out.Item = copyItem(it)
	}
	return out, nil
}

// PutItem stores an item if its condition holds.
func (db *DB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := db.begin(ctx, "PutItem", params); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(params.TableName)
	if err != nil {
		return nil, err
	}
	id, err := t.keyOf(params.Item, false)
	if err != nil {
		return nil, err
	}
	cond, err := parseCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	old := t.items[id]
	if !cond.Eval(old) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	t.items[id] = copyItem(params.Item)

	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && old != nil {
		out.Attributes = copyItem(old)
	}
	return out, nil
}

// DeleteItem removes an item if its condition holds.
func (db *DB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := db.begin(ctx, "DeleteItem", params); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(params.TableName)
	if err != nil {
		return nil, err
	}
	id, err := t.keyOf(params.Key, true)
	if err != nil {
		return nil, err
	}
	cond, err := parseCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	old := t.items[id]
	if !cond.Eval(old) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	delete(t.items, id)

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && old != nil {
		out.Attributes = copyItem(old)
	}
	return out, nil
}

// TransactGetItems reads all keys under one read lock.
func (db *DB) TransactGetItems(ctx context.Context, params *dynamodb.TransactGetItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error) {
	if err := db.begin(ctx, "TransactGetItems", params); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(params.TransactItems) == 0 || len(params.TransactItems) > maxTransactItems {
		return nil, validationError("Member must have length between 1 and %d", maxTransactItems)
	}

	seen := make(map[string]bool, len(params.TransactItems))
	responses := make([]types.ItemResponse, len(params.TransactItems))
	for i, ti := range params.TransactItems {
		if ti.Get == nil {
			return nil, validationError("TransactItems[%d] has no Get", i)
		}
		t, err := db.table(ti.Get.TableName)
		if err != nil {
			return nil, err
		}
		id, err := t.keyOf(ti.Get.Key, true)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, validationError("Transaction request cannot include multiple operations on one item")
		}
		seen[id] = true
		if it, ok := t.items[id]; ok {
			responses[i].Item = copyItem(it)
		}
	}
	return &dynamodb.TransactGetItemsOutput{Responses: responses}, nil
}

// pending is one validated write of a transaction.
type pending struct {
	table     *table
	id        string
	put       item
	delete    bool
	cond      *Condition
	returnOld bool
}

// TransactWriteItems validates every operation, evaluates every condition
// against the current state and applies the writes only if all pass.
// Otherwise it returns a TransactionCanceledException with one reason per
// operation.
func (db *DB) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if err := db.begin(ctx, "TransactWriteItems", params); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(params.TransactItems) == 0 || len(params.TransactItems) > maxTransactItems {
		return nil, validationError("Member must have length between 1 and %d", maxTransactItems)
	}
	token := aws.ToString(params.ClientRequestToken)
	if token != "" && db.tokens[token] {
		return &dynamodb.TransactWriteItemsOutput{}, nil
	}

	ops := make([]pending, len(params.TransactItems))
	seen := make(map[string]bool, len(params.TransactItems))
	for i, ti := range params.TransactItems {
		op, err := db.prepare(ti)
		if err != nil {
			return nil, err
		}
		if seen[op.id] {
			return nil, validationError("Transaction request cannot include multiple operations on one item")
		}
		seen[op.id] = true
		ops[i] = op
	}

	failed := false
	reasons := make([]types.CancellationReason, len(ops))
	for i, op := range ops {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		old := op.table.items[op.id]
		if !op.cond.Eval(old) {
			failed = true
			reasons[i] = types.CancellationReason{
				Code:    aws.String("ConditionalCheckFailed"),
				Message: aws.String("The conditional request failed"),
			}
			if op.returnOld && old != nil {
				reasons[i].Item = copyItem(old)
			}
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, op := range ops {
		switch {
		case op.put != nil:
			op.table.items[op.id] = copyItem(op.put)
		case op.delete:
			delete(op.table.items, op.id)
		}
	}
	if token != "" {
		db.tokens[token] = true
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (db *DB) prepare(ti types.TransactWriteItem) (pending, error) {
	var (
		op       pending
		tableRef *string
		key      item
		keyOnly  bool
		expr     *string
		names    map[string]string
		values   map[string]types.AttributeValue
		onFail   types.ReturnValuesOnConditionCheckFailure
		set      int
	)
	if p := ti.Put; p != nil {
		set++
		tableRef, key, expr, names, values, onFail = p.TableName, p.Item, p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, p.ReturnValuesOnConditionCheckFailure
		op.put = p.Item
	}
	if d := ti.Delete; d != nil {
		set++
		tableRef, key, expr, names, values, onFail = d.TableName, d.Key, d.ConditionExpression, d.ExpressionAttributeNames, d.ExpressionAttributeValues, d.ReturnValuesOnConditionCheckFailure
		keyOnly = true
		op.delete = true
	}
	if c := ti.ConditionCheck; c != nil {
		set++
		tableRef, key, expr, names, values, onFail = c.TableName, c.Key, c.ConditionExpression, c.ExpressionAttributeNames, c.ExpressionAttributeValues, c.ReturnValuesOnConditionCheckFailure
		keyOnly = true
		if c.ConditionExpression == nil {
			return op, validationError("ConditionCheck requires a ConditionExpression")
		}
	}
	if ti.Update != nil {
		return op, validationError("Update is not supported by memdb")
	}
	if set != 1 {
		return op, validationError("TransactItem must contain exactly one of Put, Delete or ConditionCheck")
	}

	t, err := db.table(tableRef)
	if err != nil {
		return op, err
	}
	id, err := t.keyOf(key, keyOnly)
	if err != nil {
		return op, err
	}
	cond, err := parseCondition(expr, names, values)
	if err != nil {
		return op, err
	}
	op.table, op.id, op.cond = t, id, cond
	op.returnOld = onFail == types.ReturnValuesOnConditionCheckFailureAllOld
	return op, nil
}

func copyItem(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v types.AttributeValue) types.AttributeValue {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: v.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: v.Value}
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: append([]byte(nil), v.Value...)}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: v.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: v.Value}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), v.Value...)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: append([]string(nil), v.Value...)}
	case *types.AttributeValueMemberBS:
		bs := make([][]byte, len(v.Value))
		for i, b := range v.Value {
			bs[i] = append([]byte(nil), b...)
		}
		return &types.AttributeValueMemberBS{Value: bs}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(v.Value))
		for i, e := range v.Value {
			l[i] = copyValue(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: copyItem(v.Value)}
	}
	return v
}
