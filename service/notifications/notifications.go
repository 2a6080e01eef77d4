package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/monitor"
)

// Publisher delivers transfer notifications on a best effort basis.
// Notify never blocks and never fails the caller.
type Publisher interface {
	Notify(notification *model.TransferNotification)
}

// MessageWriter is implemented by the kafka producer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
}

const flushInterval = 200 * time.Millisecond

// KafkaPublisher buffers notifications and publishes them in batches keyed by recipient
type KafkaPublisher struct {
	writer MessageWriter
	queue  chan *model.TransferNotification
	limit  int
}

// NewKafkaPublisher godoc
func NewKafkaPublisher(writer MessageWriter, buffer int) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 10000
	}
	return &KafkaPublisher{
		writer: writer,
		queue:  make(chan *model.TransferNotification, buffer),
		limit:  buffer,
	}
}

// Notify queues the notification, it is dropped when the queue is full
func (p *KafkaPublisher) Notify(notification *model.TransferNotification) {
	select {
	case p.queue <- notification:
		monitor.NotificationsCount.WithLabelValues("queued").Inc()
	default:
		monitor.NotificationsCount.WithLabelValues("dropped").Inc()
		log.Warn().
			Str("section", "notifications").
			Str("transfer_id", notification.TransferID).
			Str("recipient_id", notification.RecipientID).
			Msg("Notification queue full, dropping transfer notification")
	}
}

// Process publishes the queued notifications until the context is cancelled
func (p *KafkaPublisher) Process(ctx context.Context, wait *sync.WaitGroup) {
	log.Info().Str("worker", "notifications").Str("action", "start").Msg("Transfer notifications publisher - started")

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	pending := []*model.TransferNotification{}

	for {
		select {
		case <-ctx.Done():
			// drain what was queued before the shutdown
			for done := false; !done; {
				select {
				case notification := <-p.queue:
					pending = append(pending, notification)
				default:
					done = true
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.publish(flushCtx, pending); err != nil {
				log.Error().Err(err).Str("worker", "notifications").Int("count", len(pending)).Msg("Unable to publish transfer notifications on shutdown")
			}
			cancel()
			log.Info().Str("worker", "notifications").Str("action", "stop").Msg("Transfer notifications publisher - stopped")
			if wait != nil {
				wait.Done()
			}
			return
		case notification := <-p.queue:
			pending = append(pending, notification)
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			if err := p.publish(ctx, pending); err != nil {
				log.Error().Err(err).Str("worker", "notifications").Int("count", len(pending)).Msg("Unable to publish transfer notifications")
				// keep the newest notifications for the next attempt
				if len(pending) > p.limit {
					dropped := len(pending) - p.limit
					monitor.NotificationsCount.WithLabelValues("dropped").Add(float64(dropped))
					pending = append(pending[:0], pending[dropped:]...)
				}
				continue
			}
			pending = pending[:0]
		}
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, notifications []*model.TransferNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	msgs := make([]kafkaGo.Message, 0, len(notifications))
	for _, notification := range notifications {
		bytes, err := notification.ToBinary()
		if err != nil {
			log.Error().Err(err).Str("transfer_id", notification.TransferID).Msg("Unable to encode transfer notification")
			continue
		}
		msgs = append(msgs, kafkaGo.Message{Key: []byte(notification.RecipientID), Value: bytes})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		monitor.NotificationsCount.WithLabelValues("failed").Add(float64(len(msgs)))
		return err
	}
	monitor.NotificationsCount.WithLabelValues("published").Add(float64(len(msgs)))
	return nil
}

// Nop discards every notification
type Nop struct{}

// Notify godoc
func (Nop) Notify(*model.TransferNotification) {}
