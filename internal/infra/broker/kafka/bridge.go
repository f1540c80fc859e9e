package kafka

import (
	"context"

	"github.com/IBM/sarama"
)

// Dispatcher receives a relayed event body and its headers.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload []byte, headers map[string]string) error
}

// Bridge adapts consumed Kafka records to a Dispatcher.
type Bridge struct {
	Target Dispatcher
}

func (b Bridge) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		if h == nil {
			continue
		}
		headers[string(h.Key)] = string(h.Value)
	}
	return b.Target.Dispatch(ctx, msg.Value, headers)
}

var _ MessageHandler = Bridge{}
