package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Folau1/WebApp/internal/messaging"
)

func TestBroker_ReusesWriterPerTopic(t *testing.T) {
	b := NewKafkaBroker([]string{"localhost:9092"})

	w1 := b.writer(messaging.TopicOrdersPaid)
	w2 := b.writer(messaging.TopicOrdersPaid)
	other := b.writer("orders.other")

	assert.Same(t, w1, w2)
	assert.NotSame(t, w1, other)
	assert.Equal(t, messaging.TopicOrdersPaid, w1.Topic)

	assert.NoError(t, b.Close())
	assert.Empty(t, b.writers)
}
