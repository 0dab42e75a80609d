package classfile

import (
	"encoding/binary"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/exp/constraints"
)

// sizeCache avoids the reflection cost of binary.Size on every fixed read.
var sizeCache = xsync.NewMap[reflect.Type, int]()

// fixedSize returns the encoded size of a struct made only of fixed-size
// fields. T MUST NOT contain slices, maps or strings.
func fixedSize[T any]() int {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if size, ok := sizeCache.Load(t); ok {
		return size
	}
	var zero T
	size := binary.Size(&zero)
	sizeCache.Store(t, size)
	return size
}

// readFixed decodes a fixed-size struct in class file byte order.
func readFixed[T any](r *reader, v *T) {
	b := r.next(fixedSize[T]())
	if b == nil {
		return
	}
	if _, err := binary.Decode(b, order, v); err != nil {
		r.setError(ErrTruncated)
	}
}

// writeFixed encodes a fixed-size struct in class file byte order.
func writeFixed[T any](w *writer, v *T) {
	if w.err != nil {
		return
	}
	b := make([]byte, fixedSize[T]())
	if _, err := binary.Encode(b, order, v); err != nil {
		w.setError(err)
		return
	}
	w.bytes(b)
}

// roundup rounds n up to the nearest multiple of align (a power of two).
func roundup[T constraints.Integer](n, align T) T { return (n + (align - 1)) &^ (align - 1) }
