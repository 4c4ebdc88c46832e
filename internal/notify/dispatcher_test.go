package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu      sync.Mutex
	sent    []Message
	fail    bool
	release chan struct{}
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("relay down")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) Notification(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[result]++
}

func (r *countingRecorder) get(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[result]
}

func msg(kind string) Message {
	return Message{Kind: kind, To: []string{"admin@example.com"}, Subject: kind}
}

func TestDispatcherDeliversQueuedMessages(t *testing.T) {
	mailer := &recordingMailer{}
	rec := &countingRecorder{}
	d := NewDispatcher(mailer, Options{Workers: 2, QueueSize: 8}, rec, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		require.True(t, d.Enqueue(msg("order_placed")))
	}

	require.Eventually(t, func() bool { return mailer.count() == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 5, rec.get("sent"))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	mailer := &recordingMailer{}
	rec := &countingRecorder{}
	d := NewDispatcher(mailer, Options{Workers: 1, QueueSize: 2}, rec, zerolog.Nop())

	assert.True(t, d.Enqueue(msg("a")))
	assert.True(t, d.Enqueue(msg("b")))
	assert.False(t, d.Enqueue(msg("c")), "enqueue never blocks")
	assert.Equal(t, 1, rec.get("dropped"))
}

func TestDispatcherSkipsMessagesWithoutRecipient(t *testing.T) {
	d := NewDispatcher(&recordingMailer{}, Options{}, nil, zerolog.Nop())
	assert.False(t, d.Enqueue(Message{Kind: "orphan"}))
}

func TestDispatcherFailuresAreCountedNotRetried(t *testing.T) {
	mailer := &recordingMailer{fail: true}
	rec := &countingRecorder{}
	d := NewDispatcher(mailer, Options{Workers: 1, QueueSize: 4}, rec, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	require.True(t, d.Enqueue(msg("order_placed")))
	require.Eventually(t, func() bool { return rec.get("failed") == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.get("failed"))
	assert.Zero(t, rec.get("sent"))
}

func TestDispatcherSendTimeout(t *testing.T) {
	mailer := &recordingMailer{release: make(chan struct{})}
	rec := &countingRecorder{}
	d := NewDispatcher(mailer, Options{Workers: 1, QueueSize: 1, SendTimeout: 10 * time.Millisecond}, rec, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	require.True(t, d.Enqueue(msg("slow")))
	require.Eventually(t, func() bool { return rec.get("failed") == 1 }, time.Second, 5*time.Millisecond)
}

type strictMailer struct {
	recordingMailer
}

func (m *strictMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.recordingMailer.Send(ctx, msg)
}

func TestDispatcherFlushesQueueOnStop(t *testing.T) {
	mailer := &strictMailer{}
	rec := &countingRecorder{}
	d := NewDispatcher(mailer, Options{Workers: 2, QueueSize: 4}, rec, zerolog.Nop())

	for i := 0; i < 3; i++ {
		require.True(t, d.Enqueue(msg("order_placed")))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, 3, mailer.count())
	assert.Equal(t, 3, rec.get("sent"))
	assert.Zero(t, rec.get("failed"))
	assert.Zero(t, rec.get("dropped"))
}
