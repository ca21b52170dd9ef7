package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/config"
	"github.com/couchcryptid/quake-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	loadedAt := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	id := "20240101_0000001"
	event := domain.Event{
		SourceID:  &id,
		Time:      time.Date(2024, 1, 1, 7, 10, 9, 0, time.UTC),
		Latitude:  -33.1,
		Longitude: -71.6,
		Magnitude: 4.7,
	}

	msg, err := serializeToMessage(event, "run-1", loadedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte(id), msg.Key)
	assert.JSONEq(t, `{
		"source_id": "20240101_0000001",
		"time": "2024-01-01T07:10:09Z",
		"latitude": -33.1,
		"longitude": -71.6,
		"depth": null,
		"magnitude": 4.7,
		"region": null
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "loaded_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(loadedAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_NoSourceID(t *testing.T) {
	msg, err := serializeToMessage(domain.Event{Time: time.Now()}, "run-1", time.Now())
	require.NoError(t, err)
	assert.Nil(t, msg.Key)
}

func TestNewWriter(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"b1:9092", "b2:9092"}, KafkaTopic: "quakes"}

	w := NewWriter(cfg, nil)

	assert.Equal(t, "quakes", w.writer.Topic)
	assert.Equal(t, kafkago.RequireAll, w.writer.RequiredAcks)
	assert.IsType(t, &kafkago.Hash{}, w.writer.Balancer)
}
