package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyrotator/internal/logging"
)

func awsConfig() aws.Config {
	return aws.Config{Region: "us-east-1"}
}

// fakeStreamsClient serves one shard with a fixed batch of records, then
// closes the shard.
type fakeStreamsClient struct {
	mu       sync.Mutex
	records  []streamtypes.Record
	served   bool
	iterator string
}

func (f *fakeStreamsClient) DescribeStream(_ context.Context, _ *dynamodbstreams.DescribeStreamInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error) {
	shardID := "shard-0001"
	return &dynamodbstreams.DescribeStreamOutput{
		StreamDescription: &streamtypes.StreamDescription{
			Shards: []streamtypes.Shard{{ShardId: &shardID}},
		},
	}, nil
}

func (f *fakeStreamsClient) GetShardIterator(_ context.Context, _ *dynamodbstreams.GetShardIteratorInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error) {
	iter := "iter-1"
	f.iterator = iter
	return &dynamodbstreams.GetShardIteratorOutput{ShardIterator: &iter}, nil
}

func (f *fakeStreamsClient) GetRecords(_ context.Context, _ *dynamodbstreams.GetRecordsInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.served {
		return &dynamodbstreams.GetRecordsOutput{}, nil
	}
	f.served = true
	return &dynamodbstreams.GetRecordsOutput{Records: f.records}, nil
}

func removeRecord(principal, keyID string) streamtypes.Record {
	return streamtypes.Record{
		EventName: streamtypes.OperationTypeRemove,
		Dynamodb: &streamtypes.StreamRecord{
			OldImage: map[string]streamtypes.AttributeValue{
				"user":                  &streamtypes.AttributeValueMemberS{Value: principal},
				"ak":                    &streamtypes.AttributeValueMemberS{Value: keyID},
				"notification_channel":  &streamtypes.AttributeValueMemberS{Value: "email"},
				"notification_endpoint": &streamtypes.AttributeValueMemberS{Value: "a@x.com"},
				"delete_on":             &streamtypes.AttributeValueMemberN{Value: "1700000000"},
			},
		},
	}
}

func TestPoller_DispatchesRemoveEvents(t *testing.T) {
	t.Parallel()

	client := &fakeStreamsClient{
		records: []streamtypes.Record{
			removeRecord("alice", "AKIAOLD"),
			{EventName: streamtypes.OperationTypeInsert},
		},
	}

	var mu sync.Mutex
	var events []Event
	handler := func(_ context.Context, event Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		return nil
	}

	poller := NewPoller(client, "arn:aws:dynamodb:us-east-1:1:table/t/stream/1", handler, logging.New(false, true), time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := poller.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)

	var removes, inserts int
	for _, ev := range events {
		switch ev.Kind {
		case EventRemove:
			removes++
			require.NotNil(t, ev.OldImage)
			assert.Equal(t, "alice", ev.OldImage.Principal)
		case EventInsert:
			inserts++
			assert.Nil(t, ev.OldImage)
		}
	}
	assert.Equal(t, 1, removes)
	assert.Equal(t, 1, inserts)
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	t.Parallel()

	poller := NewPoller(&fakeStreamsClient{}, "arn", nil, logging.New(false, true), 0)
	assert.Equal(t, DefaultPollInterval, poller.interval)
}
