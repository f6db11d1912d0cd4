package ringchan

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// EventKind tells whether an event follows a write or a read.
type EventKind int

const (
	EventWritten EventKind = iota
	EventRead
)

func (k EventKind) String() string {
	switch k {
	case EventWritten:
		return "written"
	case EventRead:
		return "read"
	default:
		return "unknown"
	}
}

// Event describes one successful transfer. Size and Capacity are
// snapshots taken under the channel lock when the transfer completed.
type Event struct {
	Channel  string
	Kind     EventKind
	Count    int
	Size     int
	Capacity int
	Marked   bool
}

// Listener receives events on the channel's dispatcher goroutine, never on
// the goroutine that performed the transfer.
type Listener func(Event)

// notifier hands events to a single dispatcher goroutine through a bounded
// queue. A full queue drops the event instead of blocking the caller.
type notifier struct {
	listener Listener
	queue    chan Event
	done     chan struct{}
	logger   *zap.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func newNotifier(l Listener, size int, logger *zap.Logger) *notifier {
	n := &notifier{
		listener: l,
		queue:    make(chan Event, size),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go n.run()
	return n
}

func (n *notifier) run() {
	defer close(n.done)
	for ev := range n.queue {
		n.dispatch(ev)
	}
}

func (n *notifier) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("listener panicked", zap.String("channel", ev.Channel), zap.Any("panic", r))
		}
	}()
	n.listener(ev)
}

func (n *notifier) publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- ev:
	default:
		if d := n.dropped.Add(1); d%1024 == 1 {
			n.logger.Warn("listener queue full, dropping events",
				zap.String("channel", ev.Channel), zap.Uint64("dropped", d))
		}
	}
}

// close stops accepting events and waits for queued ones to be delivered.
func (n *notifier) close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}
