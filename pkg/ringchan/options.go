package ringchan

import "go.uber.org/zap"

// DefaultCapacity is used when New is called with a non-positive capacity.
const DefaultCapacity = 64 * 1024

// DefaultQueueSize bounds the number of pending listener events.
const DefaultQueueSize = 256

type options struct {
	name      string
	minSize   int
	listener  Listener
	queueSize int
	logger    *zap.Logger
}

// Option configures a Channel at construction time.
type Option func(*options)

// WithName labels the channel in events and log lines.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMinSize sets the reserve kept back from blocking reads. A negative
// value disables the reserve.
func WithMinSize(n int) Option {
	return func(o *options) { o.minSize = n }
}

// WithListener installs an asynchronous data available/consumed hook.
func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithQueueSize bounds the listener event queue. Events beyond it are
// dropped and counted.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func defaultOptions() options {
	return options{
		queueSize: DefaultQueueSize,
		logger:    zap.NewNop(),
	}
}
