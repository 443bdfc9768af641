package kafka

import (
	"fmt"
	"log/slog"

	"github.com/BRO3886/content-indexer/internal/logger"
	"github.com/BRO3886/content-indexer/internal/queue"
	"github.com/IBM/sarama"
)

type ConsumerGroupHandler struct {
	handler queue.MessageHandler
	logger  *slog.Logger
}

func NewConsumerGroupHandler(handler queue.MessageHandler) sarama.ConsumerGroupHandler {
	return &ConsumerGroupHandler{
		handler: handler,
		logger:  logger.WithComponent("kafka"),
	}
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) (err error) {
	c.logger.Info("consuming claims", "topic", claim.Topic(), "partition", claim.Partition())
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while handling message", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for message := range claim.Messages() {
		if err := c.handler(session.Context(), message.Value); err != nil {
			c.logger.Error("error handling message",
				"topic", message.Topic, "partition", message.Partition, "offset", message.Offset, "error", err)
			return err
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}
