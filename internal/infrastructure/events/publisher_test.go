package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"promptmarket/internal/application/notifications"
	"promptmarket/internal/domain"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_PurchaseCompleted(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	sellerID := uuid.New()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != sellerID.String() {
			return errors.New("message not keyed by seller")
		}
		b, _ := msg.Value.Encode()
		var env struct {
			Type string       `json:"type"`
			Data PurchaseData `json:"data"`
		}
		if err := json.Unmarshal(b, &env); err != nil {
			return err
		}
		if env.Type != EventPurchaseCompleted || env.Data.SellerEarnings != 849 {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewPublisherWithProducer(producer, "marketplace.events")
	err := p.PurchaseCompleted(context.Background(), notifications.PurchaseEvent{
		Purchase: &domain.Purchase{ID: uuid.New(), SellerID: sellerID, Price: 999, PlatformFee: 150, SellerEarnings: 849},
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWithProducer(producer, "marketplace.events")
	err := p.PayoutProcessed(context.Background(), notifications.PayoutEvent{Payout: &domain.Payout{ID: uuid.New()}})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(nil, "topic")
	assert.Error(t, err)
	_, err = NewPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
