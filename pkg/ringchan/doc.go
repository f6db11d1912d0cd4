// Package ringchan implements a bounded, blocking circular buffer that sits
// between a producer of raw device data and consumers pulling fixed-size
// chunks.
//
// A Channel keeps one consume cursor and one peek cursor shared by every
// caller. Writers block for room, readers block for data above a
// configurable reserve (the minimum size), and Peek looks ahead without
// consuming. Marks split the continuous stream into segments: the read that
// reaches a mark returns exactly the elements before it, and the following
// read reports ErrSegmentEnd once before delivery resumes.
//
// Channel is generic over byte and float32 elements. The byte form can be
// wrapped in a Reader or Writer to plug into code that expects io.Reader or
// io.Writer; at those views a segment end surfaces as io.EOF.
//
// Blocking waits are cancelled through their context. A cancelled call
// returns Cancelled together with an error wrapping the context error and
// leaves the buffer untouched.
package ringchan
