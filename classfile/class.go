package classfile

import (
	"bytes"
	"fmt"
)

// Access flags.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
)

// Attribute is a raw attribute; Name indexes a Utf8 constant.
type Attribute struct {
	Name uint16
	Info []byte
}

// Member is a field or a method.
type Member struct {
	Access     uint16
	Name       uint16
	Descriptor uint16
	Attributes []Attribute
}

// ClassFile is a mutable structural model of one class file. Attributes are
// kept undecoded so that emitting an unmodified model reproduces its input.
type ClassFile struct {
	Header
	Pool       *ConstantPool
	Access     uint16
	This       uint16
	Super      uint16
	Interfaces []uint16
	Fields     []Member
	Methods    []Member
	Attributes []Attribute
}

// Parse decodes a complete class file.
func Parse(b []byte) (*ClassFile, error) {
	r := newReader(b)
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	cf := &ClassFile{Header: h}
	if cf.Pool, err = readConstantPool(r); err != nil {
		return nil, err
	}
	cf.Access = r.u2()
	cf.This = r.u2()
	cf.Super = r.u2()
	n := int(r.u2())
	for range n {
		if r.err != nil {
			break
		}
		cf.Interfaces = append(cf.Interfaces, r.u2())
	}
	cf.Fields = readMembers(r)
	cf.Methods = readMembers(r)
	cf.Attributes = readAttributes(r)
	if r.err != nil {
		return nil, r.err
	}
	if r.Available() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.Available())
	}
	if _, err := cf.Pool.ClassName(cf.This); err != nil {
		return nil, err
	}
	return cf, nil
}

func readMembers(r *reader) []Member {
	n := int(r.u2())
	var members []Member
	for range n {
		if r.err != nil {
			return nil
		}
		m := Member{Access: r.u2(), Name: r.u2(), Descriptor: r.u2()}
		m.Attributes = readAttributes(r)
		members = append(members, m)
	}
	return members
}

func readAttributes(r *reader) []Attribute {
	n := int(r.u2())
	var attrs []Attribute
	for range n {
		if r.err != nil {
			return nil
		}
		name := r.u2()
		attrs = append(attrs, Attribute{Name: name, Info: r.bytes(int(r.u4()))})
	}
	return attrs
}

func (cf *ClassFile) writeTo(w *writer) {
	writeFixed(w, &cf.Header)
	cf.Pool.writeTo(w)
	w.u2(cf.Access)
	w.u2(cf.This)
	w.u2(cf.Super)
	w.u2(uint16(len(cf.Interfaces)))
	for _, i := range cf.Interfaces {
		w.u2(i)
	}
	writeMembers(w, cf.Fields)
	writeMembers(w, cf.Methods)
	writeAttributes(w, cf.Attributes)
}

func writeMembers(w *writer, members []Member) {
	w.u2(uint16(len(members)))
	for _, m := range members {
		w.u2(m.Access)
		w.u2(m.Name)
		w.u2(m.Descriptor)
		writeAttributes(w, m.Attributes)
	}
}

func writeAttributes(w *writer, attrs []Attribute) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(a.Name)
		w.u4(uint32(len(a.Info)))
		w.bytes(a.Info)
	}
}

// Name returns the internal name of the class.
func (cf *ClassFile) Name() string {
	s, _ := cf.Pool.ClassName(cf.This)
	return s
}

// SuperName returns the internal name of the superclass, or "" for the root.
func (cf *ClassFile) SuperName() string {
	if cf.Super == 0 {
		return ""
	}
	s, _ := cf.Pool.ClassName(cf.Super)
	return s
}

// InterfaceNames returns the directly implemented interfaces in order.
func (cf *ClassFile) InterfaceNames() []string {
	names := make([]string, 0, len(cf.Interfaces))
	for _, i := range cf.Interfaces {
		s, _ := cf.Pool.ClassName(i)
		names = append(names, s)
	}
	return names
}

// Summary returns the structural header of cf.
func (cf *ClassFile) Summary() *Summary {
	return &Summary{
		Major:      cf.Major,
		Minor:      cf.Minor,
		Access:     cf.Access,
		Name:       cf.Name(),
		Super:      cf.SuperName(),
		Interfaces: cf.InterfaceNames(),
	}
}

// MemberName returns the name and descriptor of a field or method.
func (cf *ClassFile) MemberName(m *Member) (name, desc string) {
	name, _ = cf.Pool.Utf8(m.Name)
	desc, _ = cf.Pool.Utf8(m.Descriptor)
	return name, desc
}

// Method finds a method by name and descriptor.
func (cf *ClassFile) Method(name, desc string) *Member {
	for i := range cf.Methods {
		n, d := cf.MemberName(&cf.Methods[i])
		if n == name && d == desc {
			return &cf.Methods[i]
		}
	}
	return nil
}

// attribute returns the first attribute called name.
func (cf *ClassFile) attribute(attrs []Attribute, name string) (int, bool) {
	for i, a := range attrs {
		if s, _ := cf.Pool.Utf8(a.Name); s == name {
			return i, true
		}
	}
	return -1, false
}

// Code decodes the Code attribute of m, or returns nil if m has none.
func (cf *ClassFile) Code(m *Member) (*Code, error) {
	i, ok := cf.attribute(m.Attributes, AttrCode)
	if !ok {
		return nil, nil
	}
	return ParseCode(m.Attributes[i].Info)
}

// clone returns a copy that can be mutated without affecting cf. Attribute
// bodies are shared; callers replace rather than modify them.
func (cf *ClassFile) clone() *ClassFile {
	c := *cf
	c.Pool = cf.Pool.clone()
	c.Interfaces = append([]uint16(nil), cf.Interfaces...)
	c.Fields = cloneMembers(cf.Fields)
	c.Methods = cloneMembers(cf.Methods)
	c.Attributes = append([]Attribute(nil), cf.Attributes...)
	return &c
}

func cloneMembers(members []Member) []Member {
	out := make([]Member, len(members))
	for i, m := range members {
		out[i] = m
		out[i].Attributes = append([]Attribute(nil), m.Attributes...)
	}
	return out
}

// Bytes emits cf unchanged.
func (cf *ClassFile) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	w := newWriter(&buf)
	cf.writeTo(w)
	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}
