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

func TestPublishSendsKeyedMessageWithSortedHeaders(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "booking.events.v1" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "b-1" {
			return errors.New("unexpected key " + string(key))
		}
		if len(msg.Headers) != 2 || string(msg.Headers[0].Key) != "ce-type" {
			return errors.New("headers not sorted")
		}
		return nil
	})
	p := WithSyncProducer(sp)

	err := p.Publish(context.Background(), "booking.events.v1", "b-1", []byte(`{}`), map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      "booking.created.v1",
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishPropagatesBrokerFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := WithSyncProducer(sp)

	err := p.Publish(context.Background(), "t", "k", nil, nil)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestPublishWithoutProducer(t *testing.T) {
	var p *Producer
	assert.ErrorIs(t, p.Publish(context.Background(), "t", "k", nil, nil), ErrProducerClosed)
	assert.NoError(t, p.Close())
}
