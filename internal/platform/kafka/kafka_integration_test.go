//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"census/internal/platform/config"
	"census/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	broker   *containers.RedpandaContainer
	producer *Producer
	cfg      config.KafkaConfig
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T())
	s.cfg = config.KafkaConfig{
		Brokers:         s.broker.Brokers,
		Topic:           "census.audit.test",
		ClientID:        "census-test",
		DeliveryTimeout: 10 * time.Second,
	}
	producer, err := New(s.cfg)
	s.Require().NoError(err)
	s.producer = producer
}

func (s *ProducerSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *ProducerSuite) TestProduceAndConsume() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Require().NoError(s.producer.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(s.producer.EnsureTopic(ctx, 1, 1), "second call must tolerate an existing topic")
	s.Require().NoError(s.producer.Produce(ctx, []byte("import:1"), []byte(`{"action":"import_created"}`)))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ConsumeTopics(s.cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().NotEmpty(records)
	s.Equal("import:1", string(records[0].Key))
}

func (s *ProducerSuite) TestHealth() {
	s.NoError(s.producer.Health(context.Background()))
}
