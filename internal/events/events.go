// Package events fans broadcast messages out to every connected observer.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"sitecnd/pkg/types"
)

// DefaultBuffer is the per-observer queue length.
const DefaultBuffer = 64

var (
	published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Name:      "broadcasts_total",
		Help:      "Broadcast messages by kind.",
	}, []string{"kind"})
	dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Name:      "broadcasts_dropped_total",
		Help:      "Broadcast deliveries dropped because an observer was too slow.",
	})
)

func init() {
	prometheus.MustRegister(published, dropped)
}

// Envelope is one delivered broadcast. Seq grows across the broker's life.
type Envelope struct {
	Seq int64 `json:"seq"`
	types.Message
}

// Broker delivers each published message at most once to every observer
// subscribed at publish time. There is no replay.
type Broker struct {
	buffer int
	seq    atomic.Int64

	mu          sync.RWMutex
	subscribers map[chan Envelope]struct{}
}

func NewBroker() *Broker {
	return NewBrokerSize(DefaultBuffer)
}

// NewBrokerSize returns a Broker whose observers buffer n messages.
func NewBrokerSize(n int) *Broker {
	if n <= 0 {
		n = DefaultBuffer
	}
	return &Broker{buffer: n, subscribers: map[chan Envelope]struct{}{}}
}

// Subscribe registers an observer until ctx is done; the channel is closed
// afterwards.
func (b *Broker) Subscribe(ctx context.Context) <-chan Envelope {
	ch := make(chan Envelope, b.buffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish sends msg to every observer without blocking. It returns the
// number of observers reached.
func (b *Broker) Publish(msg types.Message) int {
	env := Envelope{Seq: b.seq.Add(1), Message: msg}
	published.WithLabelValues(string(msg.Kind)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for ch := range b.subscribers {
		select {
		case ch <- env:
			n++
		default:
			dropped.Inc()
		}
	}
	return n
}

// Observers is the number of connected observers.
func (b *Broker) Observers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
