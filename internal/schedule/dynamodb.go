package schedule

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDBClientAPI is the subset of the DynamoDB client used by the store.
type DynamoDBClientAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBStore implements Store on a DynamoDB table with a TTL attribute
// on delete_on and a stream emitting old images.
type DynamoDBStore struct {
	client DynamoDBClientAPI
	table  string
}

// DynamoDBOption is a functional option for configuring the store.
type DynamoDBOption func(*DynamoDBStore)

// WithDynamoDBClient sets a custom DynamoDB client (for testing).
func WithDynamoDBClient(client DynamoDBClientAPI) DynamoDBOption {
	return func(s *DynamoDBStore) {
		s.client = client
	}
}

// NewDynamoDBStore creates a store over the given table.
func NewDynamoDBStore(cfg aws.Config, table string, opts ...DynamoDBOption) *DynamoDBStore {
	s := &DynamoDBStore{table: table}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = dynamodb.NewFromConfig(cfg)
	}

	return s
}

// Put writes or replaces the record. PutItem on the composite key makes the
// write idempotent; concurrent writes for the same credential are
// last-write-wins, which is acceptable because one credential is only ever
// being retired once.
func (s *DynamoDBStore) Put(ctx context.Context, record ScheduledDeletion) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal scheduled deletion: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to write scheduled deletion for %s/%s: %w",
			record.Principal, record.CredentialID, err)
	}

	return nil
}

// StreamARN returns the table's latest stream ARN, required by the
// change-feed poller. Empty when streams are not enabled on the table.
func (s *DynamoDBStore) StreamARN(ctx context.Context) (string, error) {
	resp, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return "", fmt.Errorf("schedule store table '%s' is not reachable: %w", s.table, err)
	}
	if resp.Table == nil || resp.Table.LatestStreamArn == nil {
		return "", nil
	}
	return *resp.Table.LatestStreamArn, nil
}

// Ping verifies the table exists and is reachable.
func (s *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return fmt.Errorf("schedule store table '%s' is not reachable: %w", s.table, err)
	}
	return nil
}
