package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"LendLedger/internal/event"
)

// Notifier drains the core's notify channel and publishes committed
// operations to lend.ledger.events.{event_type}. Publishing is best-effort:
// downstream consumers that need durability read ledger.operations instead.
type Notifier struct {
	js        jetstream.JetStream
	inputChan <-chan event.Envelope
	log       zerolog.Logger
}

// outboundEvent is the published wire form of an envelope.
type outboundEvent struct {
	OperationID string          `json:"operation_id"`
	EventType   string          `json:"event_type"`
	PoolID      uint32          `json:"pool_id"`
	Principal   string          `json:"principal"`
	Timestamp   int64           `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

func NewNotifier(js jetstream.JetStream, inputChan <-chan event.Envelope, log zerolog.Logger) *Notifier {
	return &Notifier{
		js:        js,
		inputChan: inputChan,
		log:       log.With().Str("component", "notifier").Logger(),
	}
}

// Run publishes until ctx is cancelled or the channel closes.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-n.inputChan:
			if !ok {
				return nil
			}
			if err := n.publish(ctx, env); err != nil {
				n.log.Warn().Err(err).
					Str("operation_id", env.OperationID.String()).
					Str("event_type", env.EventType.String()).
					Msg("outbound publish failed")
			}
		}
	}
}

func (n *Notifier) publish(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(outboundEvent{
		OperationID: env.OperationID.String(),
		EventType:   env.EventType.String(),
		PoolID:      env.PoolID,
		Principal:   env.Principal.String(),
		Timestamp:   env.Timestamp.Unix(),
		Payload:     env.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal outbound event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", EventsSubjectPrefix, env.EventType.String())
	_, err = n.js.Publish(ctx, subject, data)
	return err
}
