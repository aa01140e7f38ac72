package negentropy

import "fmt"

// DefaultBufferSize is the initial capacity of a Buffer created by NewBuffer.
const DefaultBufferSize = 1024

// Buffer is a growable byte buffer with independent read (head) and write (tail)
// positions. It is used both for assembling outgoing messages and for parsing incoming
// ones.
type Buffer struct {
	raw []byte
}

// NewBuffer creates an empty Buffer with the default capacity.
func NewBuffer() *Buffer {
	return NewBufferSize(DefaultBufferSize)
}

// NewBufferSize creates an empty Buffer with the specified capacity.
func NewBufferSize(capacity int) *Buffer {
	return &Buffer{raw: make([]byte, 0, capacity)}
}

// NewBufferFrom creates a Buffer holding a copy of b.
func NewBufferFrom(b []byte) *Buffer {
	buf := &Buffer{raw: make([]byte, len(b))}
	copy(buf.raw, b)
	return buf
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.raw)
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return cap(b.raw)
}

func (b *Buffer) grow(target int) {
	if cap(b.raw) >= target {
		return
	}
	raw := make([]byte, len(b.raw), max(2*cap(b.raw), target))
	copy(raw, b.raw)
	b.raw = raw
}

// Append writes data at the tail of the buffer, doubling the capacity when needed.
func (b *Buffer) Append(data []byte) {
	b.grow(len(b.raw) + len(data))
	b.raw = append(b.raw, data...)
}

// Set replaces the contents of the buffer with a copy of data.
func (b *Buffer) Set(data []byte) {
	if cap(b.raw) < len(data) {
		b.raw = make([]byte, 0, max(2*cap(b.raw), len(data)))
	}
	b.raw = append(b.raw[:0], data...)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.raw = b.raw[:0]
}

// Unwrap returns the unread contents of the buffer. The returned slice aliases the
// buffer memory and is only valid until the next modification.
func (b *Buffer) Unwrap() []byte {
	return b.raw
}

// Shift removes and returns the first byte of the buffer.
func (b *Buffer) Shift() (byte, error) {
	if len(b.raw) == 0 {
		return 0, fmt.Errorf("%w: cannot shift from empty buffer", ErrBufferUnderrun)
	}
	v := b.raw[0]
	b.raw = b.raw[1:]
	return v, nil
}

// ShiftN removes and returns the first n bytes of the buffer.
// The returned slice aliases the buffer memory.
func (b *Buffer) ShiftN(n int) ([]byte, error) {
	if n < 0 || n > len(b.raw) {
		return nil, fmt.Errorf("%w: cannot shift more bytes than available (%d > %d)",
			ErrBufferUnderrun, n, len(b.raw))
	}
	r := b.raw[:n:n]
	b.raw = b.raw[n:]
	return r, nil
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	return b.Shift()
}

// truncate drops everything past the first n unread bytes.
func (b *Buffer) truncate(n int) {
	b.raw = b.raw[:n]
}
