package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/systmms/keyrotator/internal/fanout"
	"github.com/systmms/keyrotator/internal/logging"
)

// DefaultPollInterval is how often the poller asks each shard for records.
const DefaultPollInterval = 10 * time.Second

// maxEventFanout bounds concurrent event handling within one poll batch.
// Events are self-contained, so ordering across them is not required.
const maxEventFanout = 32

// StreamsClientAPI is the subset of the DynamoDB Streams client used by
// the poller.
type StreamsClientAPI interface {
	DescribeStream(ctx context.Context, params *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, params *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// EventHandler processes one change-feed event.
type EventHandler func(ctx context.Context, event Event) error

// Poller tails the table's stream and hands each record to the handler.
// In the original deployment the platform invoked the handler per event;
// the poller is the daemon-shaped equivalent.
type Poller struct {
	client    StreamsClientAPI
	streamARN string
	handler   EventHandler
	logger    *logging.Logger
	interval  time.Duration

	// iterators tracks the current position per shard ID.
	iterators map[string]string
}

// NewPoller creates a poller over the given stream.
func NewPoller(client StreamsClientAPI, streamARN string, handler EventHandler, logger *logging.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		client:    client,
		streamARN: streamARN,
		handler:   handler,
		logger:    logger,
		interval:  interval,
		iterators: make(map[string]string),
	}
}

// Run polls until the context is cancelled. Per-event handler errors are
// logged and never stop the loop; only a cancelled context ends it.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx); err != nil {
			p.logger.Error("Stream poll failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll refreshes the shard list and drains one batch from every shard.
func (p *Poller) poll(ctx context.Context) error {
	if err := p.refreshShards(ctx); err != nil {
		return err
	}

	for shardID, iterator := range p.iterators {
		if iterator == "" {
			continue
		}

		out, err := p.client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{
			ShardIterator: &iterator,
		})
		if err != nil {
			p.logger.Warn("Failed to read records from shard %s: %v", shardID, err)
			continue
		}

		p.dispatch(ctx, out.Records)

		if out.NextShardIterator == nil {
			// Shard closed; stop tracking it.
			delete(p.iterators, shardID)
			continue
		}
		p.iterators[shardID] = *out.NextShardIterator
	}

	return nil
}

// refreshShards discovers shards and opens an iterator for any new ones.
func (p *Poller) refreshShards(ctx context.Context) error {
	input := &dynamodbstreams.DescribeStreamInput{StreamArn: &p.streamARN}

	for {
		out, err := p.client.DescribeStream(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to describe stream: %w", err)
		}
		if out.StreamDescription == nil {
			return nil
		}

		for _, shard := range out.StreamDescription.Shards {
			if shard.ShardId == nil {
				continue
			}
			if _, known := p.iterators[*shard.ShardId]; known {
				continue
			}

			iter, err := p.client.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
				StreamArn:         &p.streamARN,
				ShardId:           shard.ShardId,
				ShardIteratorType: streamtypes.ShardIteratorTypeTrimHorizon,
			})
			if err != nil {
				p.logger.Warn("Failed to open iterator for shard %s: %v", *shard.ShardId, err)
				continue
			}
			if iter.ShardIterator != nil {
				p.iterators[*shard.ShardId] = *iter.ShardIterator
			}
		}

		if out.StreamDescription.LastEvaluatedShardId == nil {
			return nil
		}
		input.ExclusiveStartShardId = out.StreamDescription.LastEvaluatedShardId
	}
}

// dispatch fans the batch out to the handler. Each event is independent;
// one handler failure never blocks its siblings.
func (p *Poller) dispatch(ctx context.Context, records []streamtypes.Record) {
	if len(records) == 0 {
		return
	}

	results := fanout.Map(ctx, records, maxEventFanout, func(ctx context.Context, rec streamtypes.Record) (struct{}, error) {
		event, err := ParseStreamRecord(rec)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, p.handler(ctx, event)
	})

	for _, r := range results {
		if r.Err != nil {
			p.logger.Error("Event handling failed: %v", r.Err)
		}
	}
}

// ParseStreamRecord converts a raw stream record into a change-feed Event.
// The old image is only decoded for removals; that is the only kind the
// worker acts on.
func ParseStreamRecord(rec streamtypes.Record) (Event, error) {
	event := Event{Kind: EventKind(rec.EventName)}

	if event.Kind != EventRemove || rec.Dynamodb == nil || rec.Dynamodb.OldImage == nil {
		return event, nil
	}

	image, err := attributevalue.FromDynamoDBStreamsMap(rec.Dynamodb.OldImage)
	if err != nil {
		return event, fmt.Errorf("failed to convert stream image: %w", err)
	}

	var record ScheduledDeletion
	if err := attributevalue.UnmarshalMap(image, &record); err != nil {
		return event, fmt.Errorf("failed to decode scheduled deletion from stream image: %w", err)
	}

	event.OldImage = &record
	return event, nil
}
