package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"LendLedger/internal/observability"
	"LendLedger/internal/oracle"
)

// RatesSubscriber consumes oracle rate updates from JetStream and pushes
// them into the feed adapter the core prices against.
type RatesSubscriber struct {
	js       jetstream.JetStream
	adapter  *oracle.FeedAdapter
	metrics  *observability.Metrics
	log      zerolog.Logger
	consumer jetstream.ConsumeContext
}

func NewRatesSubscriber(js jetstream.JetStream, adapter *oracle.FeedAdapter, metrics *observability.Metrics, log zerolog.Logger) *RatesSubscriber {
	return &RatesSubscriber{
		js:      js,
		adapter: adapter,
		metrics: metrics,
		log:     log.With().Str("component", "rates_subscriber").Logger(),
	}
}

// Subscribe creates the durable consumer and starts delivering updates.
// Rates are latest-wins, so failed messages are ACKed and dropped rather
// than redelivered out of order.
func (rs *RatesSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := rs.js.CreateOrUpdateConsumer(ctx, RatesStream, jetstream.ConsumerConfig{
		Durable:       "lend-rates",
		FilterSubject: RatesSubject + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create rates consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		defer msg.Ack()

		upd, err := ParseRateUpdate(msg.Data())
		if err != nil {
			rs.log.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping rate message")
			return
		}
		if err := rs.adapter.Update(upd.Rate); err != nil {
			rs.log.Warn().Err(err).Msg("rate rejected by adapter")
			return
		}
		if rs.metrics != nil {
			rs.metrics.OracleRate.Set(float64(upd.Rate))
			rs.metrics.OracleUpdates.Inc()
		}
	})
	if err != nil {
		return fmt.Errorf("consume rates: %w", err)
	}

	rs.consumer = cc
	rs.log.Info().Str("stream", RatesStream).Msg("subscribed to rate updates")
	return nil
}

// Stop gracefully stops the consumer.
func (rs *RatesSubscriber) Stop() {
	if rs.consumer != nil {
		rs.consumer.Stop()
	}
}
