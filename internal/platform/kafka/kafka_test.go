package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"census/internal/platform/config"
)

func TestNew(t *testing.T) {
	t.Run("no brokers disables the producer", func(t *testing.T) {
		producer, err := New(config.KafkaConfig{})
		require.NoError(t, err)
		assert.Nil(t, producer)
	})

	t.Run("brokers without topic are rejected", func(t *testing.T) {
		_, err := New(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
		assert.Error(t, err)
	})
}
