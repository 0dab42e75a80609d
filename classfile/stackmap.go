package classfile

import "fmt"

// Frame is one decoded StackMapTable entry. Long and double take a single
// entry in Locals and Stack.
type Frame struct {
	Offset int
	Locals []VType
	Stack  []VType
}

// Frames decodes the StackMapTable of method m into explicit frames. It
// returns nil if the method has no code or no table.
func (cf *ClassFile) Frames(m *Member) ([]Frame, error) {
	code, err := cf.Code(m)
	if err != nil || code == nil {
		return nil, err
	}
	i, ok := cf.attribute(code.Attributes, AttrStackMapTable)
	if !ok {
		return nil, nil
	}
	name, desc := cf.MemberName(m)
	a := &analyzer{
		owner:     cf.Name(),
		name:      name,
		desc:      desc,
		static:    m.Access&AccStatic != 0,
		maxLocals: int(code.MaxLocals),
	}
	initial, err := a.initial()
	if err != nil {
		return nil, err
	}
	return decodeStackMap(cf.Pool, code.Attributes[i].Info, collapse(initial.locals, true))
}

func decodeStackMap(pool *ConstantPool, info []byte, locals []VType) ([]Frame, error) {
	r := newReader(info)
	n := int(r.u2())
	frames := make([]Frame, 0, min(n, r.Available()))
	offset := -1
	for range n {
		kind := r.u1()
		var delta int
		var stack []VType
		switch {
		case kind < 64:
			delta = int(kind)
		case kind < 128:
			delta = int(kind) - 64
			stack = readVTypes(r, pool, 1)
		case kind == 247:
			delta = int(r.u2())
			stack = readVTypes(r, pool, 1)
		case kind >= 248 && kind <= 250:
			delta = int(r.u2())
			chop := 251 - int(kind)
			if chop > len(locals) {
				return nil, fmt.Errorf("%w: chop_frame removes %d of %d locals", ErrMalformed, chop, len(locals))
			}
			locals = locals[:len(locals)-chop]
		case kind == 251:
			delta = int(r.u2())
		case kind >= 252 && kind <= 254:
			delta = int(r.u2())
			locals = append(append([]VType(nil), locals...), readVTypes(r, pool, int(kind)-251)...)
		case kind == 255:
			delta = int(r.u2())
			locals = readVTypes(r, pool, int(r.u2()))
			stack = readVTypes(r, pool, int(r.u2()))
		default:
			if r.err == nil {
				return nil, fmt.Errorf("%w: reserved frame type %d", ErrMalformed, kind)
			}
		}
		if r.err != nil {
			return nil, r.err
		}
		offset += delta + 1
		frames = append(frames, Frame{Offset: offset, Locals: locals, Stack: stack})
	}
	if r.err != nil {
		return nil, r.err
	}
	return frames, nil
}

func readVTypes(r *reader, pool *ConstantPool, n int) []VType {
	var ts []VType
	for range n {
		t := VType{Item: Item(r.u1())}
		switch t.Item {
		case ItemObject:
			name, err := pool.ClassName(r.u2())
			r.setError(err)
			t.Class = name
		case ItemUninitialized:
			t.Offset = int(r.u2())
		default:
			if t.Item > ItemUninitialized {
				r.setError(fmt.Errorf("%w: verification type tag %d", ErrMalformed, t.Item))
			}
		}
		if r.err != nil {
			return nil
		}
		ts = append(ts, t)
	}
	return ts
}
