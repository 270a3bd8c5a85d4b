package delivery

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"uk.co.dudmesh.bitlink/internal/model"
)

func TestQueue(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	t.Run("Drain Empties The Queue", func(t *testing.T) {
		queue := NewQueue(10)
		assert.Nil(queue.Deliver(ctx, &model.InboundMessage{ExternalID: "m1"}))
		assert.Nil(queue.Deliver(ctx, &model.InboundMessage{ExternalID: "m2"}))

		batch := queue.Drain()
		assert.Len(batch, 2)
		assert.Equal("m1", batch[0].ExternalID)
		assert.Equal("m2", batch[1].ExternalID)

		again := queue.Drain()
		assert.NotNil(again)
		assert.Len(again, 0)
	})

	t.Run("Drops Oldest When Full", func(t *testing.T) {
		queue := NewQueue(2)
		for i := 1; i <= 3; i++ {
			assert.Nil(queue.Deliver(ctx, &model.InboundMessage{ExternalID: fmt.Sprintf("m%d", i)}))
		}

		assert.Equal(uint64(1), queue.Evicted())
		batch := queue.Drain()
		assert.Len(batch, 2)
		assert.Equal("m2", batch[0].ExternalID)
		assert.Equal("m3", batch[1].ExternalID)
	})

	t.Run("Near Capacity Flag", func(t *testing.T) {
		queue := NewQueue(10)
		for i := 0; i < 8; i++ {
			queue.Deliver(ctx, &model.InboundMessage{})
		}
		assert.False(queue.NearCapacity())

		queue.Deliver(ctx, &model.InboundMessage{})
		assert.True(queue.NearCapacity())
	})

	t.Run("Zero Capacity Falls Back To Default", func(t *testing.T) {
		queue := NewQueue(0)
		assert.Equal(DefaultQueueCapacity, queue.capacity)
	})
}
