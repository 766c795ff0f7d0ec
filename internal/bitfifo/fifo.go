/*
Package bitfifo implements a bounded first-in first-out store of bits.

A FIFO never blocks and never grows beyond its capacity: pushing a bit into
a full FIFO discards the oldest bit.  The backing store is allocated once,
at twice the capacity, so that the live bits are always contiguous and the
most recent N bits can be handed out as a slice without copying.
*/
package bitfifo

// FIFO is a bounded bit history.  Each entry holds 0 or 1.
type FIFO struct {
	buf      []byte
	start    int
	capacity int
}

// New returns an empty FIFO holding at most capacity bits.
func New(capacity int) *FIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO{
		buf:      make([]byte, 0, 2*capacity),
		capacity: capacity,
	}
}

// Cap returns the maximum number of bits the FIFO retains.
func (f *FIFO) Cap() int {
	return f.capacity
}

// Len returns the number of bits currently held.
func (f *FIFO) Len() int {
	return len(f.buf) - f.start
}

// Push appends a bit, discarding the oldest bit if the FIFO is full.
func (f *FIFO) Push(bit byte) {
	if len(f.buf) == cap(f.buf) {
		n := copy(f.buf, f.buf[f.start:])
		f.buf = f.buf[:n]
		f.start = 0
	}
	f.buf = append(f.buf, bit&1)
	if f.Len() > f.capacity {
		f.start++
	}
}

// Bytes returns the held bits, oldest first.
// The slice aliases the FIFO and is only valid until the next mutation.
func (f *FIFO) Bytes() []byte {
	return f.buf[f.start:]
}

// Last returns the most recent n bits, oldest first.  If fewer than n
// bits are held, all of them are returned.
// The slice aliases the FIFO and is only valid until the next mutation.
func (f *FIFO) Last(n int) []byte {
	l := f.Len()
	if n > l {
		n = l
	}
	return f.buf[len(f.buf)-n:]
}

// Clear discards every held bit.
func (f *FIFO) Clear() {
	f.buf = f.buf[:0]
	f.start = 0
}

// Reset replaces the FIFO contents with bits.  If bits is longer than the
// capacity only the most recent bits are kept.
func (f *FIFO) Reset(bits []byte) {
	if len(bits) > f.capacity {
		bits = bits[len(bits)-f.capacity:]
	}
	// bits may alias our own backing store, so shuffle down with copy
	// rather than clearing first.
	f.buf = f.buf[:len(bits)]
	copy(f.buf, bits)
	f.start = 0
}
