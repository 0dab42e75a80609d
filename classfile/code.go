package classfile

import (
	"bytes"
	"fmt"
)

// Attribute names the codec understands.
const (
	AttrCode          = "Code"
	AttrStackMapTable = "StackMapTable"
)

// Handler is one exception table entry.
type Handler struct {
	Start     uint16
	End       uint16
	Handler   uint16
	CatchType uint16 // Class constant, 0 for any
}

// Code is a decoded Code attribute.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Bytecode   []byte
	Handlers   []Handler
	Attributes []Attribute
}

// MaxCodeLength is the largest bytecode array a Code attribute may hold.
const MaxCodeLength = 0xFFFF

// ParseCode decodes the body of a Code attribute.
func ParseCode(info []byte) (*Code, error) {
	r := newReader(info)
	c := &Code{MaxStack: r.u2(), MaxLocals: r.u2()}
	if n := r.u4(); n > MaxCodeLength {
		r.setError(fmt.Errorf("%w: code length %d exceeds %d", ErrMalformed, n, MaxCodeLength))
	} else {
		c.Bytecode = r.bytes(int(n))
	}
	n := int(r.u2())
	for range n {
		var h Handler
		readFixed(r, &h)
		if r.err != nil {
			break
		}
		c.Handlers = append(c.Handlers, h)
	}
	c.Attributes = readAttributes(r)
	if r.err != nil {
		return nil, fmt.Errorf("code attribute: %w", r.err)
	}
	if r.Available() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in code attribute", ErrMalformed, r.Available())
	}
	return c, nil
}

// Encode returns the body of the Code attribute.
func (c *Code) Encode() ([]byte, error) {
	if len(c.Bytecode) > MaxCodeLength {
		return nil, fmt.Errorf("%w: code length %d exceeds %d", ErrMalformed, len(c.Bytecode), MaxCodeLength)
	}
	var buf bytes.Buffer
	w := newWriter(&buf)
	w.u2(c.MaxStack)
	w.u2(c.MaxLocals)
	w.u4(uint32(len(c.Bytecode)))
	w.bytes(c.Bytecode)
	w.u2(uint16(len(c.Handlers)))
	for i := range c.Handlers {
		writeFixed(w, &c.Handlers[i])
	}
	writeAttributes(w, c.Attributes)
	return buf.Bytes(), w.err
}
