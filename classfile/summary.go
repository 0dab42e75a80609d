package classfile

import (
	"fmt"
	"slices"
)

// ObjectClass is the internal name of the universal root type.
const ObjectClass = "java/lang/Object"

// Summary is the structural header of a class: everything up to and
// including its interface table.
type Summary struct {
	Major, Minor uint16
	Access       uint16
	Name         string
	Super        string // empty only for java/lang/Object
	Interfaces   []string
}

// IsInterface reports whether the summary describes an interface.
func (s *Summary) IsInterface() bool { return s.Access&AccInterface != 0 }

// Implements reports whether name is among the directly implemented interfaces.
func (s *Summary) Implements(name string) bool { return slices.Contains(s.Interfaces, name) }

// ReadSummary parses just enough of b to return its Summary. The constant
// pool is only indexed, not decoded; fields, methods and attributes are
// never touched.
func ReadSummary(b []byte) (*Summary, error) {
	r := newReader(b)
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: constant_pool_count is zero", ErrMalformed)
	}
	// offsets[i] is the position of entry i's tag byte, 0 for unused slots.
	offsets := make([]int, count)
	for i := 1; i < count; i++ {
		offsets[i] = r.Offset()
		tag := Tag(r.u1())
		if tag == TagUtf8 {
			r.skip(int(r.u2()))
		} else if size := constantSize(tag); size > 0 {
			r.skip(size)
			if tag.wide() {
				i++
			}
		} else if r.err == nil {
			return nil, fmt.Errorf("%w: unknown constant tag %d at index %d", ErrMalformed, tag, i)
		}
		if r.err != nil {
			return nil, r.err
		}
	}

	s := &Summary{Major: h.Major, Minor: h.Minor, Access: r.u2()}
	this, super := r.u2(), r.u2()
	n := int(r.u2())
	ifaces := make([]uint16, 0, min(n, r.Available()/2))
	for range n {
		ifaces = append(ifaces, r.u2())
	}
	if r.err != nil {
		return nil, r.err
	}

	lazy := lazyPool{b: b, offsets: offsets}
	if s.Name, err = lazy.className(this); err != nil {
		return nil, err
	}
	if super != 0 {
		if s.Super, err = lazy.className(super); err != nil {
			return nil, err
		}
	}
	s.Interfaces = make([]string, len(ifaces))
	for i, idx := range ifaces {
		if s.Interfaces[i], err = lazy.className(idx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// lazyPool decodes individual entries from an indexed, undecoded pool.
type lazyPool struct {
	b       []byte
	offsets []int
}

func (p lazyPool) at(i uint16, want Tag) (*reader, error) {
	if i == 0 || int(i) >= len(p.offsets) || p.offsets[i] == 0 {
		return nil, fmt.Errorf("%w: constant pool index %d out of range", ErrMalformed, i)
	}
	r := newReader(p.b)
	r.n = p.offsets[i]
	if tag := Tag(r.u1()); tag != want {
		return nil, fmt.Errorf("%w: constant pool index %d has tag %d, want %d", ErrMalformed, i, tag, want)
	}
	return r, nil
}

func (p lazyPool) className(i uint16) (string, error) {
	r, err := p.at(i, TagClass)
	if err != nil {
		return "", err
	}
	u := r.u2()
	if r, err = p.at(u, TagUtf8); err != nil {
		return "", err
	}
	s := r.next(int(r.u2()))
	if r.err != nil {
		return "", r.err
	}
	return string(s), nil
}
