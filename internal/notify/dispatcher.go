// Package notify delivers outbound email in the background. Delivery is
// at-most-once: a message is attempted once and failures are only logged.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Message is one outbound email.
type Message struct {
	Kind    string
	To      []string
	Subject string
	Body    string
}

// Mailer sends a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Recorder receives delivery outcomes: sent, failed or dropped.
type Recorder interface {
	Notification(result string)
}

// Notifier is what domain services depend on.
type Notifier interface {
	Enqueue(msg Message) bool
}

type Options struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher owns a bounded queue drained by a fixed set of workers.
type Dispatcher struct {
	mailer   Mailer
	recorder Recorder
	queue    chan Message
	workers  int
	timeout  time.Duration
	log      zerolog.Logger
}

func NewDispatcher(mailer Mailer, opts Options, recorder Recorder, log zerolog.Logger) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		mailer:   mailer,
		recorder: recorder,
		queue:    make(chan Message, opts.QueueSize),
		workers:  opts.Workers,
		timeout:  opts.SendTimeout,
		log:      log.With().Str("component", "notify").Logger(),
	}
}

// Enqueue hands msg to the workers without blocking. It reports false when
// the message was dropped because the queue is full or has no recipient.
func (d *Dispatcher) Enqueue(msg Message) bool {
	if len(msg.To) == 0 {
		d.log.Debug().Str("kind", msg.Kind).Msg("notification without recipient skipped")
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.record("dropped")
		d.log.Warn().Str("kind", msg.Kind).Int("capacity", cap(d.queue)).Msg("notification queue full, message dropped")
		return false
	}
}

// Run starts the workers and blocks until ctx is cancelled. Messages still
// queued at that point get one send timeout to flush; whatever is left after
// that is discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.work(ctx, worker)
		}(i)
	}
	d.log.Info().Int("workers", d.workers).Int("queue", cap(d.queue)).Msg("notification dispatcher started")
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	var flush sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		flush.Add(1)
		go func(worker int) {
			defer flush.Done()
			d.flush(flushCtx, worker)
		}(i)
	}
	flush.Wait()

	discarded := len(d.queue)
	for range discarded {
		<-d.queue
		d.record("dropped")
	}
	d.log.Info().Int("discarded", discarded).Msg("notification dispatcher stopped")
	return nil
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.deliver(context.WithoutCancel(ctx), worker, msg)
		}
	}
}

// flush delivers what is already queued without waiting for more.
func (d *Dispatcher) flush(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, worker, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			d.record("failed")
			d.log.Error().Interface("panic", r).Str("kind", msg.Kind).Msg("mailer panicked")
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.mailer.Send(sendCtx, msg); err != nil {
		d.record("failed")
		d.log.Error().Err(err).Int("worker", worker).Str("kind", msg.Kind).Strs("to", msg.To).Msg("notification failed")
		return
	}
	d.record("sent")
	d.log.Debug().Int("worker", worker).Str("kind", msg.Kind).Msg("notification sent")
}

func (d *Dispatcher) record(result string) {
	if d.recorder != nil {
		d.recorder.Notification(result)
	}
}
