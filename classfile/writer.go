package classfile

import (
	"bytes"
	"sync"
)

// scratchPool reuses buffers for nested structures (attribute bodies) whose
// length prefix is only known once they are fully encoded.
var scratchPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// writer appends class file items to a growable buffer. Like reader, it keeps
// the first error and turns later writes into no-ops.
type writer struct {
	buf *bytes.Buffer
	err error
}

func newWriter(buf *bytes.Buffer) *writer { return &writer{buf: buf} }

func (w *writer) Err() error { return w.err }
func (w *writer) Len() int   { return w.buf.Len() }

func (w *writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *writer) u1(v uint8) {
	if w.err != nil {
		return
	}
	w.buf.WriteByte(v)
}

func (w *writer) u2(v uint16) {
	if w.err != nil {
		return
	}
	var b [2]byte
	order.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u4(v uint32) {
	if w.err != nil {
		return
	}
	var b [4]byte
	order.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u8(v uint64) {
	if w.err != nil {
		return
	}
	var b [8]byte
	order.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) bytes(b []byte) {
	if w.err != nil || len(b) == 0 {
		return
	}
	w.buf.Write(b)
}

// nested encodes a length-prefixed (u4) block produced by fn.
func (w *writer) nested(fn func(w *writer)) {
	if w.err != nil {
		return
	}
	scratch := scratchPool.Get().(*bytes.Buffer)
	scratch.Reset()
	defer scratchPool.Put(scratch)

	inner := newWriter(scratch)
	fn(inner)
	if inner.err != nil {
		w.setError(inner.err)
		return
	}
	w.u4(uint32(scratch.Len()))
	w.bytes(scratch.Bytes())
}
