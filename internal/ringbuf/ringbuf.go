package ringbuf

// RingBuf holds the most recent MaxLen values pushed to it.
// Pushing to a full RingBuf overwrites the oldest value.
type RingBuf[T any] struct {
	buf        []T
	head, tail int
}

func New[T any](n int) RingBuf[T] {
	return RingBuf[T]{buf: make([]T, n)}
}

func (rb *RingBuf[T]) MaxLen() int {
	return len(rb.buf)
}

// PushBack adds val as the newest element.
// It is a no-op on a RingBuf with MaxLen() == 0.
func (rb *RingBuf[T]) PushBack(val T) {
	if len(rb.buf) == 0 {
		return
	}
	rb.buf[rb.tail%len(rb.buf)] = val
	rb.tail++
	if rb.tail-rb.head > len(rb.buf) {
		rb.head++
	}
}

// PopFront removes and returns the oldest element.
func (rb *RingBuf[T]) PopFront() T {
	val := rb.At(0)
	rb.head++
	return val
}

// At returns the i'th element, counting from the oldest.
func (rb *RingBuf[T]) At(i int) T {
	if i < 0 || i >= rb.Len() {
		panic(i)
	}
	return rb.buf[(rb.head+i)%len(rb.buf)]
}

func (rb *RingBuf[T]) Len() int {
	return rb.tail - rb.head
}

// AppendTo appends the elements from oldest to newest to out.
func (rb *RingBuf[T]) AppendTo(out []T) []T {
	for i := 0; i < rb.Len(); i++ {
		out = append(out, rb.At(i))
	}
	return out
}

func (rb *RingBuf[T]) Clear() {
	rb.head, rb.tail = 0, 0
}
