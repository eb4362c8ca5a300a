// Package dynamostore is a typed key-value facade over a DynamoDB table.
// Items marshal through `dynamodbav` struct tags.
package dynamostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotFound is returned by Get for keys with no item.
var ErrNotFound = errors.New("dynamostore: item not found")

// DynamoAPI is the slice of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store persists values of type T keyed by a single string hash key.
type Store[T any] struct {
	client  DynamoAPI
	table   string
	hashKey string
}

// New builds a store for table, using hashKey as the partition key attribute.
func New[T any](client DynamoAPI, table, hashKey string) *Store[T] {
	return &Store[T]{client: client, table: table, hashKey: hashKey}
}

// Put writes item, replacing any existing item with the same key.
func (s *Store[T]) Put(ctx context.Context, item T) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("dynamostore: marshal: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamostore: put: %w", err)
	}
	return nil
}

// Get reads the item under key, returning ErrNotFound when absent.
func (s *Store[T]) Get(ctx context.Context, key string) (*T, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.keyAttr(key),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamostore: get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item T
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("dynamostore: unmarshal %s: %w", key, err)
	}
	return &item, nil
}

// Delete removes the item under key. Deleting an absent key is not an error.
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.keyAttr(key),
	}); err != nil {
		return fmt.Errorf("dynamostore: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store[T]) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		s.hashKey: &types.AttributeValueMemberS{Value: key},
	}
}
