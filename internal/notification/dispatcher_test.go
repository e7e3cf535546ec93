package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Poyyy414/ByteTech/internal/protocol"
)

type fakeSource struct {
	messages  []kafka.Message
	committed []int64
}

func (f *fakeSource) Consume(ctx context.Context) (kafka.Message, error) {
	if len(f.messages) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

func (f *fakeSource) Commit(ctx context.Context, msg kafka.Message) error {
	f.committed = append(f.committed, msg.Offset)
	return nil
}

type fakeSender struct {
	failures int
	sent     []*protocol.AlertNotification
	attempts int
}

func (f *fakeSender) SendAlertNotification(n *protocol.AlertNotification) error {
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, n)
	return nil
}

func encoded(t *testing.T, offset int64) kafka.Message {
	data, err := protocol.EncodeAlertNotification(sampleNotification())
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: data}
}

func newTestDispatcher(src *fakeSource, sender *fakeSender) *Dispatcher {
	d := NewDispatcher(src, sender, zerolog.Nop())
	d.RetryDelay = time.Millisecond
	return d
}

func TestDispatcherDeliversAndCommits(t *testing.T) {
	src := &fakeSource{messages: []kafka.Message{encoded(t, 1), {Offset: 2, Value: []byte("not json")}, encoded(t, 3)}}
	sender := &fakeSender{}
	d := newTestDispatcher(src, sender)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, []int64{1, 2, 3}, src.committed)
}

func TestDispatcherRetriesThenGivesUp(t *testing.T) {
	src := &fakeSource{}
	sender := &fakeSender{failures: 10}
	d := newTestDispatcher(src, sender)
	d.MaxRetries = 2

	require.NoError(t, d.Handle(context.Background(), encoded(t, 7)))
	assert.Equal(t, 3, sender.attempts)
	assert.Empty(t, sender.sent)
	assert.Equal(t, []int64{7}, src.committed)
}

func TestDispatcherRetrySucceeds(t *testing.T) {
	src := &fakeSource{}
	sender := &fakeSender{failures: 1}
	d := newTestDispatcher(src, sender)

	require.NoError(t, d.Handle(context.Background(), encoded(t, 8)))
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, 2, sender.attempts)
}
