// Package buffer provides the fixed-size cursor buffer a connection shares
// between its send and receive paths.
package buffer

import (
	"github.com/valyala/bytebufferpool"

	"github.com/WhileEndless/go-httpget/pkg/constants"
)

var pool bytebufferpool.Pool

// Buffer is a fixed-capacity byte region split into a used part
// [begin, end) and free trailing space [end, cap).
//
// Invariant: 0 <= begin <= end <= capacity.
type Buffer struct {
	bb    *bytebufferpool.ByteBuffer
	begin int
	end   int
}

// New acquires a buffer of the given capacity from the pool.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = constants.ConnBufferSize
	}
	bb := pool.Get()
	if cap(bb.B) < capacity {
		bb.B = make([]byte, capacity)
	}
	bb.B = bb.B[:capacity]
	return &Buffer{bb: bb}
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	if b.bb == nil {
		return 0
	}
	return len(b.bb.B)
}

// Len returns the number of used bytes.
func (b *Buffer) Len() int {
	return b.end - b.begin
}

// Free returns the number of bytes left after the used region.
func (b *Buffer) Free() int {
	return b.Cap() - b.end
}

// Full reports whether no trailing space is left.
func (b *Buffer) Full() bool {
	return b.Free() == 0
}

// Readable returns the used region. The slice is valid until the next
// Commit, Consume or Reset.
func (b *Buffer) Readable() []byte {
	if b.bb == nil {
		return nil
	}
	return b.bb.B[b.begin:b.end]
}

// Writable returns the free trailing space. When the used region is empty
// the cursors are rewound first so the whole buffer is available.
func (b *Buffer) Writable() []byte {
	if b.bb == nil {
		return nil
	}
	if b.begin == b.end {
		b.begin, b.end = 0, 0
	}
	return b.bb.B[b.end:]
}

// Commit marks n bytes of the writable region as used.
func (b *Buffer) Commit(n int) {
	if n < 0 || n > b.Free() {
		panic("buffer: commit out of range")
	}
	b.end += n
}

// Consume drops n bytes from the front of the used region.
func (b *Buffer) Consume(n int) {
	if n < 0 || n > b.Len() {
		panic("buffer: consume out of range")
	}
	b.begin += n
	if b.begin == b.end {
		b.begin, b.end = 0, 0
	}
}

// Append copies as much of p as fits into the free space and returns the
// number of bytes copied.
func (b *Buffer) Append(p []byte) int {
	n := copy(b.Writable(), p)
	b.Commit(n)
	return n
}

// Read copies up to len(p) used bytes into p and consumes them.
func (b *Buffer) Read(p []byte) int {
	n := copy(p, b.Readable())
	b.Consume(n)
	return n
}

// Reset empties the buffer without releasing it.
func (b *Buffer) Reset() {
	b.begin, b.end = 0, 0
}

// Release returns the storage to the pool. The buffer must not be used
// afterwards; calling Release twice is a no-op.
func (b *Buffer) Release() {
	if b.bb == nil {
		return
	}
	b.bb.Reset()
	pool.Put(b.bb)
	b.bb = nil
	b.begin, b.end = 0, 0
}
