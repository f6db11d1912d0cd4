package ringchan

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Reader is a sequential byte-input view over a byte channel. It reads with
// blocking semantics and reports a segment end as io.EOF, after which the
// next Read resumes with the following segment.
type Reader struct {
	ch     *Channel[byte]
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var (
	_ io.ReadCloser = (*Reader)(nil)
	_ io.ByteReader = (*Reader)(nil)
)

// NewReader returns a Reader over ch. Cancelling ctx or closing the Reader
// releases a blocked Read.
func NewReader(ctx context.Context, ch *Channel[byte]) *Reader {
	ctx, cancel := context.WithCancel(ctx)
	return &Reader{ch: ch, ctx: ctx, cancel: cancel}
}

// Read blocks until data is available and returns what can be read without
// crossing a mark. Once the Reader is closed, Read returns io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if r.isClosed() {
			return 0, io.EOF
		}
		n, err := r.ch.read(r.ctx, p, true, true)
		switch {
		case errors.Is(err, ErrSegmentEnd):
			return 0, io.EOF
		case err != nil:
			if r.isClosed() {
				return 0, io.EOF
			}
			return 0, err
		case n > 0:
			return n, nil
		}
		// A mark with nothing before it; the next call reports the end.
	}
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Close cancels a pending segment end and makes further reads return
// io.EOF.
func (r *Reader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.ch.CancelMark()
	return nil
}

func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Writer is a sequential byte-output view over a byte channel. Write blocks
// until all of p has been accepted.
type Writer struct {
	ch     *Channel[byte]
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var (
	_ io.WriteCloser = (*Writer)(nil)
	_ io.ByteWriter  = (*Writer)(nil)
)

// NewWriter returns a Writer over ch.
func NewWriter(ctx context.Context, ch *Channel[byte]) *Writer {
	ctx, cancel := context.WithCancel(ctx)
	return &Writer{ch: ch, ctx: ctx, cancel: cancel}
}

// Write copies all of p into the channel, waiting for room as needed. It
// returns ErrClosed once the Writer has been closed.
func (w *Writer) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if w.isClosed() {
			return total, ErrClosed
		}
		n, err := w.ch.Write(w.ctx, p[total:], true)
		if err != nil {
			if w.isClosed() {
				return total, ErrClosed
			}
			return total, err
		}
		total += n
	}
	if len(p) == 0 && w.isClosed() {
		return 0, ErrClosed
	}
	return total, nil
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

// Mark ends the current segment after everything written so far.
func (w *Writer) Mark() error {
	if w.isClosed() {
		return ErrClosed
	}
	w.ch.Mark()
	return nil
}

// Close releases a blocked Write; later writes fail with ErrClosed.
func (w *Writer) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
	return nil
}

func (w *Writer) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
