package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"sports-arb-scanner/internal/arbitrage"
	"sports-arb-scanner/internal/config"
)

// Publisher ships detected opportunities to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, scanID string, opps []arbitrage.Opportunity) error
	Close() error
}

// Message is the payload written for every opportunity.
type Message struct {
	ScanID      string                `json:"scan_id"`
	PublishedAt time.Time             `json:"published_at"`
	MarginPct   string                `json:"margin_pct"`
	Opportunity arbitrage.Opportunity `json:"opportunity"`
}

func newMessage(scanID string, opp arbitrage.Opportunity, at time.Time) Message {
	return Message{ScanID: scanID, PublishedAt: at, MarginPct: opp.MarginPct().StringFixed(2), Opportunity: opp}
}

// New builds the configured publisher. It returns nil for the "none" driver.
func New(cfg config.PublishConfig, client *redis.Client) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis publisher requires cache.addr")
		}
		return NewRedisStream(client, cfg.Stream, cfg.StreamMaxLen), nil
	case "kafka":
		return NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	return nil, fmt.Errorf("unknown publish driver %q", cfg.Driver)
}

// RedisStream appends opportunities to a Redis stream.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStream creates a stream publisher.
func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = "opportunities.detected"
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Publish adds one stream entry per opportunity.
func (p *RedisStream) Publish(ctx context.Context, scanID string, opps []arbitrage.Opportunity) error {
	now := time.Now().UTC()
	for _, opp := range opps {
		payload, err := json.Marshal(newMessage(scanID, opp, now))
		if err != nil {
			return fmt.Errorf("marshal opportunity: %w", err)
		}
		args := &redis.XAddArgs{
			Stream: p.stream,
			Values: map[string]interface{}{
				"scan_id":     scanID,
				"sport_key":   opp.SportKey,
				"opportunity": string(payload),
			},
		}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}
		if err := p.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("publish to stream %s: %w", p.stream, err)
		}
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *RedisStream) Close() error { return nil }

// Kafka writes opportunities to a topic keyed by event.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a Kafka publisher.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic required")
	}
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}, nil
}

// Publish writes every opportunity in a single batch.
func (p *Kafka) Publish(ctx context.Context, scanID string, opps []arbitrage.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	msgs, err := kafkaMessages(scanID, opps, time.Now().UTC())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the writer.
func (p *Kafka) Close() error {
	return p.writer.Close()
}

func kafkaMessages(scanID string, opps []arbitrage.Opportunity, at time.Time) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(opps))
	for _, opp := range opps {
		payload, err := json.Marshal(newMessage(scanID, opp, at))
		if err != nil {
			return nil, fmt.Errorf("marshal opportunity %s: %w", opp.EventID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(opp.Key()), Value: payload, Time: at})
	}
	return msgs, nil
}

var (
	_ Publisher = (*RedisStream)(nil)
	_ Publisher = (*Kafka)(nil)
)
