package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bd2kgenomics/spinnaker/pkg/metrics"
	"github.com/bd2kgenomics/spinnaker/pkg/requestid"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTopic  string = "spinnaker.events"
	defaultSource string = "spinnaker.submissions"

	closeTimeout = 5 * time.Second

	// cloudevents extension names are lowercase alphanumeric
	requestIDExtension = "requestid"
)

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// EventProducer is a wrapper around a Writer with a buffer. Pending events are kept in
// the buffer so the caller is not blocked while the writer is slow.
type EventProducer struct {
	buffer *buffer
	wakeCh chan struct{}
	doneCh chan struct{}
	exitCh chan struct{}
	once   sync.Once
	// mu orders a push against close so nothing lands after the final flush
	mu     sync.Mutex
	closed bool
	writer Writer
	topic  string
	source string
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		buffer: newBuffer(),
		wakeCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
		exitCh: make(chan struct{}),
		writer: w,
		topic:  defaultTopic,
		source: defaultSource,
	}

	for _, o := range opts {
		o(ep)
	}

	go ep.run()
	return ep
}

func (ep *EventProducer) Write(ctx context.Context, kind string, subject string, body io.Reader) error {
	d, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return fmt.Errorf("event producer is closed")
	}
	ep.buffer.PushBack(&message{
		Kind:      kind,
		Subject:   subject,
		RequestID: requestid.FromContext(ctx),
		Data:      d,
	})
	ep.mu.Unlock()

	// wake up the consumer, a pending wake up is enough
	select {
	case ep.wakeCh <- struct{}{}:
	default:
	}

	return nil
}

// WriteSubmissionEvent encodes the event and queues it.
func (ep *EventProducer) WriteSubmissionEvent(ctx context.Context, kind string, event SubmissionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return ep.Write(ctx, kind, fmt.Sprintf("%d", event.SubmissionID), bytes.NewReader(data))
}

// Close flushes the pending events and closes the writer.
func (ep *EventProducer) Close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	ep.once.Do(func() {
		ep.mu.Lock()
		ep.closed = true
		ep.mu.Unlock()
		close(ep.doneCh)
	})

	g, ctx := errgroup.WithContext(closeCtx)
	g.Go(func() error {
		select {
		case <-ep.exitCh:
		case <-ctx.Done():
			return fmt.Errorf("timeout flushing %d pending events: %w", ep.buffer.Size(), ctx.Err())
		}
		return ep.writer.Close(ctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Named("event_producer").Errorf("event producer closed with error: %s", err)
		return err
	}

	zap.S().Named("event_producer").Info("event producer closed")

	return nil
}

func (ep *EventProducer) run() {
	defer close(ep.exitCh)

	for {
		for msg := ep.buffer.Pop(); msg != nil; msg = ep.buffer.Pop() {
			ep.send(msg)
		}

		select {
		case <-ep.wakeCh:
		case <-ep.doneCh:
			// flush what was queued before closing
			for msg := ep.buffer.Pop(); msg != nil; msg = ep.buffer.Pop() {
				ep.send(msg)
			}
			return
		}
	}
}

func (ep *EventProducer) send(msg *message) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(ep.source)
	e.SetType(msg.Kind)
	e.SetTime(time.Now().UTC())
	if msg.Subject != "" {
		e.SetSubject(msg.Subject)
	}
	if msg.RequestID != "" {
		e.SetExtension(requestIDExtension, msg.RequestID)
	}
	_ = e.SetData(*cloudevents.StringOfApplicationJSON(), msg.Data)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := ep.writer.Write(ctx, ep.topic, e); err != nil {
		metrics.IncreaseEventsMetric(msg.Kind, "failed")
		zap.S().Named("event_producer").Errorw("failed to send message", "error", err, "event", e)
		return
	}
	metrics.IncreaseEventsMetric(msg.Kind, "sent")
}
