package kafka

import (
	"context"
	"log/slog"

	"github.com/BRO3886/content-indexer/internal/logger"
	"github.com/BRO3886/content-indexer/internal/queue"
	"github.com/IBM/sarama"
)

type KafkaEnqueuer struct {
	syncProducer  sarama.SyncProducer
	asyncProducer sarama.AsyncProducer
	cfg           *Config
	logger        *slog.Logger
}

func NewEnqueuer(ctx context.Context, c *Config) (queue.Enqueuer, error) {
	k := &KafkaEnqueuer{
		cfg:    c,
		logger: logger.WithComponent("kafka"),
	}

	var err error
	if c.IsSync() {
		k.syncProducer, err = sarama.NewSyncProducer(c.GetBrokers(), c.GetConfig())
	} else {
		k.asyncProducer, err = sarama.NewAsyncProducer(c.GetBrokers(), c.GetConfig())
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}

// Enqueue publishes data on topic. Messages with the same key land on the
// same partition, so changes to one record stay ordered.
func (k *KafkaEnqueuer) Enqueue(ctx context.Context, topic, key string, data []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	if k.cfg.IsSync() {
		return k.enqueueSync(msg)
	}
	return k.enqueueAsync(ctx, msg)
}

func (k *KafkaEnqueuer) enqueueSync(msg *sarama.ProducerMessage) error {
	partition, offset, err := k.syncProducer.SendMessage(msg)
	if err != nil {
		return err
	}
	k.logger.Debug("message sent", "topic", msg.Topic, "partition", partition, "offset", offset)
	return nil
}

func (k *KafkaEnqueuer) enqueueAsync(ctx context.Context, msg *sarama.ProducerMessage) error {
	select {
	case k.asyncProducer.Input() <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-k.asyncProducer.Successes():
		return nil
	case perr := <-k.asyncProducer.Errors():
		return perr.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaEnqueuer) Close() error {
	if k.syncProducer != nil {
		return k.syncProducer.Close()
	}
	return k.asyncProducer.Close()
}
