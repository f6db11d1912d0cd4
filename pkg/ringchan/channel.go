package ringchan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"go.uber.org/zap"
)

// Cancelled is the count returned when a blocking wait is cancelled.
const Cancelled = -1

var (
	// ErrSegmentEnd is returned by the read call following one that stopped
	// at a mark.
	ErrSegmentEnd = errors.New("ringchan: end of segment")
	// ErrClosed is returned when writing through a closed Writer.
	ErrClosed = errors.New("ringchan: closed")
)

// Element is the set of element types a Channel can carry.
type Element interface {
	~byte | ~float32
}

// Channel is a fixed-capacity circular buffer guarded by one mutex and two
// condition variables. Writers wait on writeCond for room and signal
// readCond; readers wait on readCond for data and signal writeCond.
type Channel[T Element] struct {
	name   string
	logger *zap.Logger

	mu        sync.Mutex
	readCond  *sync.Cond
	writeCond *sync.Cond

	buf   []T
	start int
	end   int
	size  int

	viewPtr int
	peeked  int

	minSize int

	// marks holds absolute stream positions; consumed is the absolute
	// position of start.
	marks     *deque.Deque[uint64]
	consumed  uint64
	wasMarked bool

	readWaiters  int
	writeWaiters int

	notifier *notifier
}

// New returns a channel holding up to capacity elements.
func New[T Element](capacity int, opts ...Option) *Channel[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Channel[T]{
		name:    o.name,
		logger:  o.logger,
		buf:     make([]T, capacity),
		minSize: o.minSize,
		marks:   deque.New[uint64](),
	}
	c.readCond = sync.NewCond(&c.mu)
	c.writeCond = sync.NewCond(&c.mu)
	if o.listener != nil {
		c.notifier = newNotifier(o.listener, o.queueSize, o.logger)
	}
	return c
}

// NewBytes returns a channel of raw device bytes.
func NewBytes(capacity int, opts ...Option) *Channel[byte] {
	return New[byte](capacity, opts...)
}

// NewSamples returns a channel of decoded samples.
func NewSamples(capacity int, opts ...Option) *Channel[float32] {
	return New[float32](capacity, opts...)
}

// Name returns the label given with WithName.
func (c *Channel[T]) Name() string {
	return c.name
}

// Close stops the listener dispatcher after delivering queued events. It
// does not touch buffered data; blocked callers are released through their
// contexts.
func (c *Channel[T]) Close() {
	if c.notifier != nil {
		c.notifier.close()
	}
}

// Write copies up to len(src) elements into the buffer.
//
// With blocking set, Write waits until there is room for all of src (or the
// whole buffer, when src is larger). Once woken it writes whatever fits, so a
// blocking caller may still see a short count. A cancelled wait returns
// Cancelled and a non-nil error. Without blocking, Write copies what fits and
// returns 0 when the buffer is full.
func (c *Channel[T]) Write(ctx context.Context, src []T, blocking bool) (int, error) {
	c.mu.Lock()
	if blocking {
		need := min(len(src), len(c.buf))
		woken := false
		for c.free() < need {
			if woken && c.free() > 0 {
				break
			}
			c.writeWaiters++
			err := c.wait(ctx, c.writeCond)
			c.writeWaiters--
			if err != nil {
				c.mu.Unlock()
				return Cancelled, fmt.Errorf("write %s: %w", c.label(), err)
			}
			woken = true
		}
	}

	n := min(len(src), c.free())
	if n > 0 {
		first := min(n, len(c.buf)-c.end)
		copy(c.buf[c.end:], src[:first])
		copy(c.buf, src[first:n])
		c.end = (c.end + n) % len(c.buf)
		c.size += n
		c.readCond.Broadcast()
	}
	ev := c.event(EventWritten, n, false)
	c.mu.Unlock()

	if n > 0 {
		c.publish(ev)
	}
	return n, nil
}

// Read copies buffered elements into dst, never dipping into the reserve.
//
// The one-shot segment flag is cleared first: if the previous read stopped
// at a mark, this call returns ErrSegmentEnd without consuming anything.
// With blocking set and a reserve of zero or more, Read waits until more
// than the reserve is buffered or a mark sits at the consume cursor. A
// negative reserve never waits. If the oldest mark falls within what can be
// returned, the read stops exactly at it and the mark is popped.
//
// A mark at the consume cursor yields (0, nil) and pops the mark; the next
// call returns (0, ErrSegmentEnd).
func (c *Channel[T]) Read(ctx context.Context, dst []T, blocking bool) (int, error) {
	return c.read(ctx, dst, blocking, false)
}

// read is Read with an extra mode: untilData waits for data or a mark even
// when the reserve is negative.
func (c *Channel[T]) read(ctx context.Context, dst []T, blocking, untilData bool) (int, error) {
	c.mu.Lock()
	if c.takeSentinel() {
		c.mu.Unlock()
		return 0, ErrSegmentEnd
	}
	if blocking && (untilData || c.minSize >= 0) {
		for c.size <= c.reserve() && !c.markAtCursor() {
			c.readWaiters++
			err := c.wait(ctx, c.readCond)
			c.readWaiters--
			if err != nil {
				c.mu.Unlock()
				return Cancelled, fmt.Errorf("read %s: %w", c.label(), err)
			}
		}
	}
	n, ev := c.readLocked(dst)
	c.mu.Unlock()

	if n > 0 || ev.Marked {
		c.publish(ev)
	}
	return n, nil
}

// ReadFully waits until len(dst) elements above the reserve are buffered,
// then performs a single non-blocking read. A mark reached before len(dst)
// elements also ends the wait, in which case the read stops at the mark.
func (c *Channel[T]) ReadFully(ctx context.Context, dst []T) (int, error) {
	c.mu.Lock()
	if c.takeSentinel() {
		c.mu.Unlock()
		return 0, ErrSegmentEnd
	}
	for !c.fullyReadable(len(dst)) {
		c.readWaiters++
		err := c.wait(ctx, c.readCond)
		c.readWaiters--
		if err != nil {
			c.mu.Unlock()
			return Cancelled, fmt.Errorf("read fully %s: %w", c.label(), err)
		}
	}
	n, ev := c.readLocked(dst)
	c.mu.Unlock()

	if n > 0 || ev.Marked {
		c.publish(ev)
	}
	return n, nil
}

// Peek copies elements from the peek cursor forward without consuming them.
// Successive peeks continue where the last one stopped; a read that passes
// the peek cursor moves it back to the consume cursor. Peek ignores the
// reserve and never wakes a waiting writer.
func (c *Channel[T]) Peek(dst []T) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := min(len(dst), c.size-c.peeked)
	if n <= 0 {
		return 0
	}
	first := min(n, len(c.buf)-c.viewPtr)
	copy(dst[:first], c.buf[c.viewPtr:c.viewPtr+first])
	copy(dst[first:n], c.buf[:n-first])
	c.viewPtr = (c.viewPtr + n) % len(c.buf)
	c.peeked += n
	return n
}

// ResetPeek moves the peek cursor back to the consume cursor.
func (c *Channel[T]) ResetPeek() {
	c.mu.Lock()
	c.viewPtr = c.start
	c.peeked = 0
	c.mu.Unlock()
}

// Peeked returns how many buffered elements have been peeked but not read.
func (c *Channel[T]) Peeked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peeked
}

// Mark records a segment boundary after the elements buffered so far.
func (c *Channel[T]) Mark() {
	c.mu.Lock()
	c.marks.PushBack(c.consumed + uint64(c.size))
	c.readCond.Broadcast()
	c.mu.Unlock()
}

// PendingMarks returns the number of marks not yet reached by a read.
func (c *Channel[T]) PendingMarks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.marks.Len()
}

// WasMarked reports whether the last read stopped at a mark and the
// segment end has not been reported yet.
func (c *Channel[T]) WasMarked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wasMarked
}

// CancelMark drops a pending segment end so the next read returns data.
func (c *Channel[T]) CancelMark() {
	c.mu.Lock()
	c.wasMarked = false
	c.mu.Unlock()
}

// SetCapacity reallocates the buffer. All buffered data, marks and cursors
// are discarded.
func (c *Channel[T]) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	dropped := c.size
	c.buf = make([]T, n)
	c.resetLocked()
	c.readCond.Broadcast()
	c.writeCond.Broadcast()
	c.mu.Unlock()

	c.logger.Debug("capacity changed", zap.String("channel", c.name),
		zap.Int("capacity", n), zap.Int("dropped", dropped))
}

// Clear discards buffered data and marks, keeping the capacity.
func (c *Channel[T]) Clear() {
	c.mu.Lock()
	c.resetLocked()
	c.writeCond.Broadcast()
	c.mu.Unlock()
}

// Capacity returns the number of elements the buffer can hold.
func (c *Channel[T]) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Size returns the number of buffered elements, reserve included.
func (c *Channel[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Available returns how many elements a read could return right now.
func (c *Channel[T]) Available() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(c.size-c.reserve(), 0)
}

// Ready reports whether a read would return data or a segment end. It
// ignores a negative reserve, so an empty channel is never ready.
func (c *Channel[T]) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wasMarked || c.size > c.reserve() || c.markAtCursor()
}

// Stats is a consistent snapshot of a channel's counters.
type Stats struct {
	Name         string `json:"name"`
	Capacity     int    `json:"capacity"`
	Size         int    `json:"size"`
	Available    int    `json:"available"`
	MinSize      int    `json:"min_size"`
	Peeked       int    `json:"peeked"`
	PendingMarks int    `json:"pending_marks"`
	Consumed     uint64 `json:"consumed"`
	Dropped      uint64 `json:"dropped_events"`
}

// Snapshot returns the channel's counters taken under one lock.
func (c *Channel[T]) Snapshot() Stats {
	c.mu.Lock()
	s := Stats{
		Name:         c.name,
		Capacity:     len(c.buf),
		Size:         c.size,
		Available:    max(c.size-c.reserve(), 0),
		MinSize:      c.minSize,
		Peeked:       c.peeked,
		PendingMarks: c.marks.Len(),
		Consumed:     c.consumed,
	}
	c.mu.Unlock()
	if c.notifier != nil {
		s.Dropped = c.notifier.dropped.Load()
	}
	return s
}

// MinSize returns the configured reserve.
func (c *Channel[T]) MinSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minSize
}

// SetMinSize changes the reserve. Lowering it may release blocked readers.
func (c *Channel[T]) SetMinSize(n int) {
	c.mu.Lock()
	c.minSize = n
	c.readCond.Broadcast()
	c.mu.Unlock()
}

// wait blocks on cond until signalled or ctx is done. c.mu must be held.
func (c *Channel[T]) wait(ctx context.Context, cond *sync.Cond) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		cond.Broadcast()
	})
	cond.Wait()
	stop()
	return ctx.Err()
}

func (c *Channel[T]) readLocked(dst []T) (int, Event) {
	n := min(len(dst), max(c.size-c.reserve(), 0))
	marked := false
	if c.marks.Len() > 0 {
		if d := c.markDistance(); d <= n {
			c.marks.PopFront()
			n = d
			marked = true
			c.wasMarked = true
		}
	}

	if n > 0 {
		first := min(n, len(c.buf)-c.start)
		copy(dst[:first], c.buf[c.start:c.start+first])
		copy(dst[first:n], c.buf[:n-first])
		c.start = (c.start + n) % len(c.buf)
		c.size -= n
		c.consumed += uint64(n)

		if n >= c.peeked {
			c.viewPtr = c.start
			c.peeked = 0
		} else {
			c.peeked -= n
		}
		c.writeCond.Broadcast()
	}
	return n, c.event(EventRead, n, marked)
}

// fullyReadable reports whether ReadFully for want elements may proceed.
func (c *Channel[T]) fullyReadable(want int) bool {
	want = min(want, len(c.buf)-c.reserve())
	if want <= 0 {
		return true
	}
	avail := c.size - c.reserve()
	if avail >= want {
		return true
	}
	return c.marks.Len() > 0 && c.markDistance() <= max(avail, 0)
}

func (c *Channel[T]) markAtCursor() bool {
	return c.marks.Len() > 0 && c.marks.Front() == c.consumed
}

func (c *Channel[T]) markDistance() int {
	return int(c.marks.Front() - c.consumed)
}

func (c *Channel[T]) takeSentinel() bool {
	marked := c.wasMarked
	c.wasMarked = false
	return marked
}

func (c *Channel[T]) resetLocked() {
	c.consumed += uint64(c.size)
	c.start, c.end, c.size = 0, 0, 0
	c.viewPtr, c.peeked = 0, 0
	c.marks.Clear()
	c.wasMarked = false
}

func (c *Channel[T]) free() int {
	return len(c.buf) - c.size
}

func (c *Channel[T]) reserve() int {
	return max(c.minSize, 0)
}

func (c *Channel[T]) label() string {
	if c.name == "" {
		return "channel"
	}
	return c.name
}

func (c *Channel[T]) event(kind EventKind, n int, marked bool) Event {
	return Event{
		Channel:  c.name,
		Kind:     kind,
		Count:    n,
		Size:     c.size,
		Capacity: len(c.buf),
		Marked:   marked,
	}
}

func (c *Channel[T]) publish(ev Event) {
	if c.notifier != nil {
		c.notifier.publish(ev)
	}
}
