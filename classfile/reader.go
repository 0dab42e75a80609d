package classfile

import "encoding/binary"

// order is the byte order of every multi-byte class file item.
var order = binary.BigEndian

// reader walks a class file held in memory. It tracks the first error it
// meets; every read after that is a no-op returning zero values, so parsing
// code can read a whole structure and check Err once at the end.
type reader struct {
	b   []byte
	n   int // current read position
	err error
}

func newReader(b []byte) *reader { return &reader{b: b} }

func (r *reader) Err() error     { return r.err }
func (r *reader) Offset() int    { return r.n }
func (r *reader) Available() int { return max(len(r.b)-r.n, 0) }

// setError records the first non-nil error.
func (r *reader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// next returns the following n bytes without copying them.
func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Available() < n {
		r.setError(ErrTruncated)
		return nil
	}
	b := r.b[r.n : r.n+n]
	r.n += n
	return b
}

func (r *reader) skip(n int) { r.next(n) }

func (r *reader) u1() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u2() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return order.Uint16(b)
}

func (r *reader) u4() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return order.Uint32(b)
}

func (r *reader) u8() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return order.Uint64(b)
}

// bytes returns a copy of the following n bytes.
func (r *reader) bytes(n int) []byte {
	b := r.next(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
