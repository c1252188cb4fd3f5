package socket

// CircularBuf is a byte ring buffer, the same fixed-slice,
// monotonically-increasing-cursor, masked-index shape as
// catrate/ring.go's ringBuffer[E], generalized to expose two-slice
// wraparound views instead of typed Get/Insert, since sendmsg/recvmsg
// need contiguous byte runs rather than individual elements.
//
// Capacity is len(s)-1: the cursors would otherwise be unable to
// distinguish full from empty.
type CircularBuf struct {
	s    []byte
	r, w uint
}

// NewCircularBuf allocates a CircularBuf usable capacity of capacity
// bytes (backing array sized capacity+1).
func NewCircularBuf(capacity int) *CircularBuf {
	if capacity <= 0 {
		panic("socket: circularbuf: capacity must be positive")
	}
	return &CircularBuf{s: make([]byte, capacity+1)}
}

func (c *CircularBuf) mask(v uint) uint { return v % uint(len(c.s)) }

// Producible is the number of bytes that can still be written in.
func (c *CircularBuf) Producible() int {
	return len(c.s) - 1 - c.Consumable()
}

// Consumable is the number of bytes available to read out.
func (c *CircularBuf) Consumable() int {
	return int(c.w - c.r)
}

// Empty reports whether there is nothing to consume.
func (c *CircularBuf) Empty() bool { return c.Consumable() == 0 }

// Full reports whether there is no room left to produce.
func (c *CircularBuf) Full() bool { return c.Producible() == 0 }

// twoSlices returns up to two contiguous views starting at cursor start
// covering up to n bytes (n bounded by the caller to Producible/Consumable).
func (c *CircularBuf) twoSlices(start uint, n int) (a, b []byte) {
	if n == 0 {
		return nil, nil
	}
	i := c.mask(start)
	first := len(c.s) - int(i)
	if first >= n {
		return c.s[i : i+uint(n)], nil
	}
	return c.s[i:], c.s[:n-first]
}

// WithProducerView calls f with up to two writable slices (the
// wraparound halves of the free region) and advances the write cursor by
// the number of bytes f reports consuming (writing). f must not retain
// the slices past the call.
func (c *CircularBuf) WithProducerView(f func(a, b []byte) (n int)) int {
	a, b := c.twoSlices(c.w, c.Producible())
	n := f(a, b)
	if n < 0 || n > len(a)+len(b) {
		panic("socket: circularbuf: produced more than producible")
	}
	c.w += uint(n)
	return n
}

// WithConsumerView calls f with up to two readable slices (the
// wraparound halves of the filled region) and advances the read cursor
// by the number of bytes f reports consuming (reading). f must not
// retain the slices past the call.
func (c *CircularBuf) WithConsumerView(f func(a, b []byte) (n int)) int {
	a, b := c.twoSlices(c.r, c.Consumable())
	n := f(a, b)
	if n < 0 || n > len(a)+len(b) {
		panic("socket: circularbuf: consumed more than consumable")
	}
	c.r += uint(n)
	return n
}

// ProduceWithoutCopy advances the write cursor by n, for a caller (the
// I/O facility) that filled the producer-view slices directly rather
// than through the closure form.
func (c *CircularBuf) ProduceWithoutCopy(n int) {
	if n < 0 || n > c.Producible() {
		panic("socket: circularbuf: produce without copy out of range")
	}
	c.w += uint(n)
}

// ConsumeWithoutCopy advances the read cursor by n, for a caller (the I/O
// facility) that drained the consumer-view slices directly.
func (c *CircularBuf) ConsumeWithoutCopy(n int) {
	if n < 0 || n > c.Consumable() {
		panic("socket: circularbuf: consume without copy out of range")
	}
	c.r += uint(n)
}

// Write copies from p into the buffer, up to Producible() bytes, and
// reports how many bytes were copied.
func (c *CircularBuf) Write(p []byte) int {
	return c.WithProducerView(func(a, b []byte) int {
		n := copy(a, p)
		n += copy(b, p[n:])
		return n
	})
}

// Read copies out into p, up to len(p) bytes, and reports how many bytes
// were copied.
func (c *CircularBuf) Read(p []byte) int {
	return c.WithConsumerView(func(a, b []byte) int {
		n := copy(p, a)
		n += copy(p[n:], b)
		return n
	})
}

// FirstConsumerSlice returns just the first contiguous readable slice,
// the view Sender.flush passes to a single sendmsg submission.
func (c *CircularBuf) FirstConsumerSlice() []byte {
	a, _ := c.twoSlices(c.r, c.Consumable())
	return a
}

// FirstProducerSlice returns just the first contiguous writable slice,
// the view Receiver uses for a single recvmsg submission.
func (c *CircularBuf) FirstProducerSlice() []byte {
	a, _ := c.twoSlices(c.w, c.Producible())
	return a
}
