package analytics

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/kafka"
)

// Publisher is the part of *kafka.Producer the collector uses.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector records search events in an Aggregator and forwards them to
// Kafka from a background goroutine. Either side may be nil. eventCh is
// never closed, so Track stays safe after Close.
type Collector struct {
	publisher  Publisher
	aggregator *Aggregator
	eventCh    chan SearchEvent
	logger     *slog.Logger
	stop       chan struct{}
	done       chan struct{}

	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewCollector(publisher Publisher, aggregator *Aggregator, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher:  publisher,
		aggregator: aggregator,
		eventCh:    make(chan SearchEvent, bufferSize),
		logger:     slog.Default().With("component", "analytics-collector"),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the publishing loop. It stops when ctx is done or Close is
// called, publishing whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	go func() {
		defer close(c.done)
		for {
			select {
			case event := <-c.eventCh:
				c.publish(ctx, event)
			case <-c.stop:
				c.drainRemaining()
				return
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track never blocks. Events that do not fit in the buffer, or arrive after
// Close, are aggregated but not published.
func (c *Collector) Track(event SearchEvent) {
	if c.aggregator != nil {
		c.aggregator.Record(event)
	}
	if c.publisher == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "query", event.Query)
	}
}

// Close stops the publishing loop and waits for it to flush. It may be
// called more than once.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.stop)
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

func (c *Collector) publish(ctx context.Context, event SearchEvent) {
	if err := c.publisher.Publish(ctx, kafka.Event{
		Key:   strings.Join(event.Terms, " "),
		Type:  string(event.Type),
		Value: event,
	}); err != nil {
		c.logger.Error("failed to publish analytics event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event := <-c.eventCh:
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
