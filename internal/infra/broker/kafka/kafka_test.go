package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerPublishesKeyedRecord(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "messaging.events.v1" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "conv-1" {
			return errors.New("unexpected key " + string(key))
		}
		if len(msg.Headers) != 2 || string(msg.Headers[0].Key) != "audience" {
			return errors.New("headers not sorted")
		}
		return nil
	})
	p := NewProducerFrom(sync)
	err := p.Publish(context.Background(), "messaging.events.v1", "conv-1", []byte(`{}`), map[string]string{
		"ce-type":  "message.sent",
		"audience": "alice,bob",
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducerSurfacesBrokerErrors(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducerFrom(sync)
	err := p.Publish(context.Background(), "t", "k", nil, nil)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestProducerHonoursCanceledContext(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	p := NewProducerFrom(sync)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
	require.NoError(t, p.Close())
}

type recordingDispatcher struct {
	payload []byte
	headers map[string]string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, payload []byte, headers map[string]string) error {
	d.payload = payload
	d.headers = headers
	return nil
}

func TestBridgeCopiesHeaders(t *testing.T) {
	target := &recordingDispatcher{}
	err := Bridge{Target: target}.Handle(context.Background(), &sarama.ConsumerMessage{
		Value: []byte("body"),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("audience"), Value: []byte("bob")},
			nil,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "body", string(target.payload))
	assert.Equal(t, map[string]string{"audience": "bob"}, target.headers)
}
