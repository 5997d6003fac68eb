package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"sheetport/internal/delegation"
)

// Kafka carries delegation messages on a Kafka topic. Subscriptions use no
// consumer group and start at the current end of every partition, so each
// participant sees every message published after it subscribed.
type Kafka struct {
	producer *kgo.Client
	brokers  []string
	topic    string
	logger   *slog.Logger
}

type KafkaOption func(*Kafka)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(k *Kafka) {
		k.logger = logger
	}
}

// NewKafka connects a producer to brokers. Close releases it.
func NewKafka(brokers []string, topic string, opts ...KafkaOption) (*Kafka, error) {
	k := &Kafka{brokers: brokers, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(k)
	}
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	k.producer = producer
	return k, nil
}

func (k *Kafka) Publish(ctx context.Context, msg delegation.Message) error {
	payload, err := encode(msg)
	if err != nil {
		return err
	}
	record := &kgo.Record{Key: []byte(msg.RequestID), Value: payload}
	if err := k.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

// Subscribe pins the current end offsets before returning, so no message
// published afterwards is skipped.
func (k *Kafka) Subscribe(ctx context.Context) (delegation.Subscription, error) {
	ends, err := kadm.NewClient(k.producer).ListEndOffsets(ctx, k.topic)
	if err != nil {
		return nil, fmt.Errorf("kafka list end offsets: %w", err)
	}
	partitions := make(map[int32]kgo.Offset)
	var listErr error
	ends.Each(func(o kadm.ListedOffset) {
		if o.Err != nil {
			listErr = o.Err
			return
		}
		partitions[o.Partition] = kgo.NewOffset().At(o.Offset)
	})
	if listErr != nil {
		return nil, fmt.Errorf("kafka end offset: %w", listErr)
	}
	if len(partitions) == 0 {
		return nil, fmt.Errorf("kafka topic %s has no partitions", k.topic)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(k.brokers...),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{k.topic: partitions}),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	rl := newRelay(k.logger, func() error {
		cancel()
		return nil
	})
	go func() {
		defer rl.finish()
		defer consumer.Close()
		for {
			fetches := consumer.PollFetches(pollCtx)
			if fetches.IsClientClosed() || pollCtx.Err() != nil {
				return
			}
			fetches.EachError(func(topic string, partition int32, err error) {
				k.logger.Warn("kafka fetch error", "topic", topic, "partition", partition, "error", err)
			})
			stopped := false
			fetches.EachRecord(func(r *kgo.Record) {
				if !stopped && !rl.deliver(r.Value) {
					stopped = true
				}
			})
			if stopped {
				return
			}
		}
	}()
	return rl, nil
}

// Close releases the producer.
func (k *Kafka) Close() {
	k.producer.Close()
}
