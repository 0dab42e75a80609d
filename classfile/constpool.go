package classfile

import (
	"fmt"
	"math"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// wide reports whether the entry occupies two pool slots.
func (t Tag) wide() bool { return t == TagLong || t == TagDouble }

// Constant is one constant pool entry. Which fields are meaningful depends
// on Tag:
//
//	Utf8                         Str
//	Integer, Float, Long, Double Bits
//	Class, String, MethodType,
//	Module, Package              A
//	*ref, NameAndType            A, B
//	MethodHandle                 Kind, A
//	Dynamic, InvokeDynamic       A (bootstrap index), B (name and type)
//
// Constant is comparable so the pool can deduplicate additions.
type Constant struct {
	Tag  Tag
	Str  string
	A, B uint16
	Kind uint8
	Bits uint64
}

// ConstantPool holds the entries of a class file's constant pool. Index 0 and
// the slot following a Long or Double hold zero Constants.
type ConstantPool struct {
	entries []Constant
	index   map[Constant]uint16
}

// NewConstantPool returns an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]Constant, 1)}
}

// Count returns constant_pool_count: the number of slots including slot 0.
func (p *ConstantPool) Count() int { return len(p.entries) }

// Get returns the entry at index i.
func (p *ConstantPool) Get(i uint16) (Constant, bool) {
	if i == 0 || int(i) >= len(p.entries) || p.entries[i].Tag == 0 {
		return Constant{}, false
	}
	return p.entries[i], true
}

func (p *ConstantPool) expect(i uint16, tag Tag) (Constant, error) {
	c, ok := p.Get(i)
	if !ok {
		return c, fmt.Errorf("%w: constant pool index %d out of range", ErrMalformed, i)
	}
	if c.Tag != tag {
		return c, fmt.Errorf("%w: constant pool index %d has tag %d, want %d", ErrMalformed, i, c.Tag, tag)
	}
	return c, nil
}

// Utf8 returns the string at a Utf8 entry.
func (p *ConstantPool) Utf8(i uint16) (string, error) {
	c, err := p.expect(i, TagUtf8)
	return c.Str, err
}

// ClassName returns the internal name referenced by a Class entry.
func (p *ConstantPool) ClassName(i uint16) (string, error) {
	c, err := p.expect(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.A)
}

// NameAndType returns the name and descriptor of a NameAndType entry.
func (p *ConstantPool) NameAndType(i uint16) (name, desc string, err error) {
	c, err := p.expect(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.A); err != nil {
		return "", "", err
	}
	desc, err = p.Utf8(c.B)
	return name, desc, err
}

// MemberRef returns the owner, name and descriptor of a Fieldref, Methodref
// or InterfaceMethodref entry.
func (p *ConstantPool) MemberRef(i uint16) (owner, name, desc string, err error) {
	c, ok := p.Get(i)
	if !ok {
		return "", "", "", fmt.Errorf("%w: constant pool index %d out of range", ErrMalformed, i)
	}
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return "", "", "", fmt.Errorf("%w: constant pool index %d is not a member reference", ErrMalformed, i)
	}
	if owner, err = p.ClassName(c.A); err != nil {
		return "", "", "", err
	}
	name, desc, err = p.NameAndType(c.B)
	return owner, name, desc, err
}

// Add appends c unless an equal entry already exists, returning its index.
func (p *ConstantPool) Add(c Constant) (uint16, error) {
	if p.index == nil {
		p.index = make(map[Constant]uint16, len(p.entries))
		for i := len(p.entries) - 1; i > 0; i-- {
			if p.entries[i].Tag != 0 {
				p.index[p.entries[i]] = uint16(i)
			}
		}
	}
	if i, ok := p.index[c]; ok {
		return i, nil
	}
	slots := 1
	if c.Tag.wide() {
		slots = 2
	}
	if len(p.entries)+slots > math.MaxUint16 {
		return 0, ErrPoolOverflow
	}
	i := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if slots == 2 {
		p.entries = append(p.entries, Constant{})
	}
	p.index[c] = i
	return i, nil
}

// AddUtf8 adds a Utf8 entry.
func (p *ConstantPool) AddUtf8(s string) (uint16, error) {
	return p.Add(Constant{Tag: TagUtf8, Str: s})
}

// AddInteger adds an Integer entry.
func (p *ConstantPool) AddInteger(v int32) (uint16, error) {
	return p.Add(Constant{Tag: TagInteger, Bits: uint64(uint32(v))})
}

func (p *ConstantPool) addIndexed(tag Tag, s string) (uint16, error) {
	u, err := p.AddUtf8(s)
	if err != nil {
		return 0, err
	}
	return p.Add(Constant{Tag: tag, A: u})
}

// AddClass adds a Class entry for an internal name or array descriptor.
func (p *ConstantPool) AddClass(name string) (uint16, error) {
	return p.addIndexed(TagClass, name)
}

// AddString adds a String entry and its Utf8.
func (p *ConstantPool) AddString(s string) (uint16, error) {
	return p.addIndexed(TagString, s)
}

// AddNameAndType adds a NameAndType entry and its two Utf8s.
func (p *ConstantPool) AddNameAndType(name, desc string) (uint16, error) {
	n, err := p.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.AddUtf8(desc)
	if err != nil {
		return 0, err
	}
	return p.Add(Constant{Tag: TagNameAndType, A: n, B: d})
}

func (p *ConstantPool) addRef(tag Tag, owner, name, desc string) (uint16, error) {
	c, err := p.AddClass(owner)
	if err != nil {
		return 0, err
	}
	nt, err := p.AddNameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.Add(Constant{Tag: tag, A: c, B: nt})
}

// AddFieldref adds a Fieldref with its Class and NameAndType.
func (p *ConstantPool) AddFieldref(owner, name, desc string) (uint16, error) {
	return p.addRef(TagFieldref, owner, name, desc)
}

// AddMethodref adds a Methodref with its Class and NameAndType.
func (p *ConstantPool) AddMethodref(owner, name, desc string) (uint16, error) {
	return p.addRef(TagMethodref, owner, name, desc)
}

// AddInterfaceMethodref adds an InterfaceMethodref with its Class and
// NameAndType.
func (p *ConstantPool) AddInterfaceMethodref(owner, name, desc string) (uint16, error) {
	return p.addRef(TagInterfaceMethodref, owner, name, desc)
}

// clone returns a copy whose additions do not affect p.
func (p *ConstantPool) clone() *ConstantPool {
	return &ConstantPool{entries: append([]Constant(nil), p.entries...)}
}

// constantSize returns the body size (after the tag byte) of fixed-size
// entries, or -1 for Utf8 and unknown tags.
func constantSize(t Tag) int {
	switch t {
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		return 2
	case TagMethodHandle:
		return 3
	case TagInteger, TagFloat, TagFieldref, TagMethodref, TagInterfaceMethodref,
		TagNameAndType, TagDynamic, TagInvokeDynamic:
		return 4
	case TagLong, TagDouble:
		return 8
	}
	return -1
}

func readConstantPool(r *reader) (*ConstantPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: constant_pool_count is zero", ErrMalformed)
	}
	p := &ConstantPool{entries: make([]Constant, count)}
	for i := 1; i < count; i++ {
		c := Constant{Tag: Tag(r.u1())}
		switch c.Tag {
		case TagUtf8:
			c.Str = string(r.next(int(r.u2())))
		case TagInteger, TagFloat:
			c.Bits = uint64(r.u4())
		case TagLong, TagDouble:
			c.Bits = r.u8()
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.A = r.u2()
		case TagMethodHandle:
			c.Kind = r.u1()
			c.A = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			c.A = r.u2()
			c.B = r.u2()
		default:
			if r.err == nil {
				return nil, fmt.Errorf("%w: unknown constant tag %d at index %d", ErrMalformed, c.Tag, i)
			}
		}
		if r.err != nil {
			return nil, r.err
		}
		p.entries[i] = c
		if c.Tag.wide() {
			i++
			if i >= count {
				return nil, fmt.Errorf("%w: wide constant at last pool slot", ErrMalformed)
			}
		}
	}
	return p, nil
}

func (p *ConstantPool) writeTo(w *writer) {
	w.u2(uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		w.u1(uint8(c.Tag))
		switch c.Tag {
		case TagUtf8:
			if len(c.Str) > math.MaxUint16 {
				w.setError(fmt.Errorf("%w: utf8 constant longer than 65535 bytes", ErrMalformed))
				return
			}
			w.u2(uint16(len(c.Str)))
			w.bytes([]byte(c.Str))
		case TagInteger, TagFloat:
			w.u4(uint32(c.Bits))
		case TagLong, TagDouble:
			w.u8(c.Bits)
			i++
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(c.A)
		case TagMethodHandle:
			w.u1(c.Kind)
			w.u2(c.A)
		default:
			w.u2(c.A)
			w.u2(c.B)
		}
	}
}
