package kafka

import (
	"context"
	"errors"

	"github.com/BRO3886/content-indexer/internal/logger"
	"github.com/BRO3886/content-indexer/internal/queue"
	"github.com/IBM/sarama"
)

type KafkaDequeuer struct {
	consumerGroups map[string]sarama.ConsumerGroup
	cfg            *Config
}

func NewDequeuer(ctx context.Context, c *Config) (queue.Dequeuer, error) {
	consumerGroups := make(map[string]sarama.ConsumerGroup)
	for _, topic := range c.GetTopics() {
		consumerGroup, err := sarama.NewConsumerGroup(c.GetBrokers(), c.GroupFor(topic), c.GetConfig())
		if err != nil {
			return nil, err
		}
		consumerGroups[topic] = consumerGroup
	}
	return &KafkaDequeuer{
		consumerGroups: consumerGroups,
		cfg:            c,
	}, nil
}

// Dequeue consumes topic until ctx is done, rejoining the group after every
// rebalance.
func (k *KafkaDequeuer) Dequeue(ctx context.Context, topic string, handler queue.MessageHandler) error {
	if _, ok := k.consumerGroups[topic]; !ok {
		consumerGroup, err := sarama.NewConsumerGroup(k.cfg.GetBrokers(), k.cfg.GroupFor(topic), k.cfg.GetConfig())
		if err != nil {
			return err
		}
		k.consumerGroups[topic] = consumerGroup
	}
	consumerGroup := k.consumerGroups[topic]

	log := logger.WithComponent("kafka")
	go func() {
		for err := range consumerGroup.Errors() {
			log.Error("consumer group error", "topic", topic, "error", err)
		}
	}()

	for {
		if err := consumerGroup.Consume(ctx, []string{topic}, NewConsumerGroupHandler(handler)); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (k *KafkaDequeuer) Close() error {
	var errs []error
	for _, cg := range k.consumerGroups {
		errs = append(errs, cg.Close())
	}
	return errors.Join(errs...)
}
