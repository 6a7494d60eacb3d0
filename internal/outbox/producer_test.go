package outbox

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestProducerReusesWriterPerTopic(t *testing.T) {
	producer := NewKafkaProducer([]string{"broker-1:9092"})
	t.Cleanup(func() { _ = producer.Close() })

	first := producer.writerForTopic("notification_events")
	second := producer.writerForTopic("notification_events")
	require.Same(t, first, second)

	other := producer.writerForTopic("attendance_events")
	require.NotSame(t, first, other)
	require.Len(t, producer.writers, 2)
}

func TestProducerWriterConfiguration(t *testing.T) {
	producer := NewKafkaProducer([]string{"broker-1:9092"})
	t.Cleanup(func() { _ = producer.Close() })

	writer := producer.writerForTopic("notification_events")
	require.Equal(t, "notification_events", writer.Topic)
	require.Equal(t, kafka.RequireAll, writer.RequiredAcks)
	require.IsType(t, &kafka.Hash{}, writer.Balancer)
	require.False(t, writer.Async)
}
