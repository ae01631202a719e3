package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakeDynamo struct {
	getOut    *dynamodb.GetItemOutput
	getErr    error
	getByID   map[string]map[string]types.AttributeValue
	putErr    error
	queryOuts []*dynamodb.QueryOutput
	queryErr  error
	batchFn   func(in *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)

	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	queryInputs  []*dynamodb.QueryInput
	batchInputs  []*dynamodb.BatchGetItemInput
	getCalls     int
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.getByID != nil {
		id := in.Key[catalogKey].(*types.AttributeValueMemberS).Value
		return &dynamodb.GetItemOutput{Item: f.getByID[id]}, nil
	}
	return f.getOut, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.queryOuts) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	out := f.queryOuts[0]
	f.queryOuts = f.queryOuts[1:]
	return out, nil
}

func (f *fakeDynamo) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.batchInputs = append(f.batchInputs, in)
	if f.batchFn == nil {
		return nil, fmt.Errorf("no batch response configured")
	}
	return f.batchFn(in)
}

func restaurantItem(id, name string, rating float64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		catalogKey:     &types.AttributeValueMemberS{Value: id},
		"name":         &types.AttributeValueMemberS{Value: name},
		"address":      &types.AttributeValueMemberS{Value: "1 Main St"},
		"rating":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%.1f", rating)},
		"review_count": &types.AttributeValueMemberN{Value: "120"},
		"cuisine":      &types.AttributeValueMemberS{Value: "japanese"},
	}
}

func idItem(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{catalogKey: &types.AttributeValueMemberS{Value: id}}
}
