package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is one observable scheduling occurrence: a negotiation transition or
// a committed meeting. Consumers read the stream to build timelines or feed
// a presentation layer.
type Event struct {
	Type          string    `json:"type"` // "transition", "outcome", "scheduled"
	NegotiationID string    `json:"negotiation_id,omitempty"`
	MeetingID     string    `json:"meeting_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	Round         int       `json:"round,omitempty"`
	PartyID       string    `json:"party_id,omitempty"`
	Action        string    `json:"action,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	SlotStart     time.Time `json:"slot_start,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

const streamKey = "parley:events"

// EventStream publishes scheduling events to a Redis Stream.
type EventStream struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewEventStream connects to Redis and returns a stream publisher.
func NewEventStream(redisURL string, logger *zap.Logger) (*EventStream, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &EventStream{rdb: rdb, logger: logger}, nil
}

// Publish appends an event to the stream.
func (es *EventStream) Publish(ctx context.Context, ev *Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = es.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	es.logger.Debug("event published",
		zap.String("type", ev.Type),
		zap.String("action", ev.Action),
		zap.Int("round", ev.Round))
	return nil
}

// Subscribe tails the event stream. Cancel the context to stop.
func (es *EventStream) Subscribe(ctx context.Context) <-chan *Event {
	ch := make(chan *Event, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := es.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{streamKey, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()

			if err != nil {
				// go-redis may wrap the context error.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
					return
				}
				if errors.Is(err, redis.Nil) {
					// Block timeout with no new entries.
					continue
				}
				es.logger.Warn("event stream read failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- &ev
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (es *EventStream) Close() error {
	return es.rdb.Close()
}
