package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tng-miniapp/ledger_api/model"
)

type recordingWriter struct {
	lock     sync.Mutex
	messages []kafkaGo.Message
	fail     bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.fail {
		return errors.New("broker unavailable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) count() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return len(w.messages)
}

func notification(id, recipient string) *model.TransferNotification {
	return &model.TransferNotification{
		TransferID:  id,
		SenderID:    "alice",
		RecipientID: recipient,
		Asset:       "TNG",
		Amount:      "500",
		Timestamp:   time.Now(),
	}
}

func TestKafkaPublisher_PublishesKeyedByRecipient(t *testing.T) {
	writer := &recordingWriter{}
	publisher := NewKafkaPublisher(writer, 10)
	ctx, cancel := context.WithCancel(context.Background())
	wait := &sync.WaitGroup{}
	wait.Add(1)
	go publisher.Process(ctx, wait)

	publisher.Notify(notification("t1", "bob"))
	publisher.Notify(notification("t2", "carol"))

	require.Eventually(t, func() bool { return writer.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	wait.Wait()

	writer.lock.Lock()
	defer writer.lock.Unlock()
	assert.Equal(t, "bob", string(writer.messages[0].Key))
	decoded := &model.TransferNotification{}
	require.NoError(t, decoded.FromBinary(writer.messages[1].Value))
	assert.Equal(t, "t2", decoded.TransferID)
	assert.Equal(t, "carol", decoded.RecipientID)
}

func TestKafkaPublisher_FlushesOnShutdown(t *testing.T) {
	writer := &recordingWriter{}
	publisher := NewKafkaPublisher(writer, 10)
	publisher.Notify(notification("t1", "bob"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wait := &sync.WaitGroup{}
	wait.Add(1)
	publisher.Process(ctx, wait)

	assert.Equal(t, 1, writer.count())
}

func TestKafkaPublisher_NotifyNeverBlocks(t *testing.T) {
	writer := &recordingWriter{fail: true}
	publisher := NewKafkaPublisher(writer, 1)

	done := make(chan struct{})
	go func() {
		publisher.Notify(notification("t1", "bob"))
		publisher.Notify(notification("t2", "bob"))
		publisher.Notify(notification("t3", "bob"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	assert.Len(t, publisher.queue, 1)
}
