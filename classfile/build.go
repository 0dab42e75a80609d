package classfile

// New returns an empty class with the given version, access flags, name,
// superclass ("" for none) and interfaces.
func New(major uint16, access uint16, name, super string, interfaces ...string) (*ClassFile, error) {
	cf := &ClassFile{
		Header: Header{Magic: Magic, Major: major},
		Pool:   NewConstantPool(),
		Access: access,
	}
	var err error
	if cf.This, err = cf.Pool.AddClass(name); err != nil {
		return nil, err
	}
	if super != "" {
		if cf.Super, err = cf.Pool.AddClass(super); err != nil {
			return nil, err
		}
	}
	for _, i := range interfaces {
		if err := cf.AddInterface(i); err != nil {
			return nil, err
		}
	}
	return cf, nil
}

// AddInterface appends name to the interface table unless it is present.
func (cf *ClassFile) AddInterface(name string) error {
	idx, err := cf.Pool.AddClass(name)
	if err != nil {
		return err
	}
	for _, i := range cf.Interfaces {
		if i == idx {
			return nil
		}
	}
	cf.Interfaces = append(cf.Interfaces, idx)
	return nil
}

func (cf *ClassFile) newMember(access uint16, name, desc string) (Member, error) {
	n, err := cf.Pool.AddUtf8(name)
	if err != nil {
		return Member{}, err
	}
	d, err := cf.Pool.AddUtf8(desc)
	if err != nil {
		return Member{}, err
	}
	return Member{Access: access, Name: n, Descriptor: d}, nil
}

// AddField appends a field without attributes.
func (cf *ClassFile) AddField(access uint16, name, desc string) error {
	m, err := cf.newMember(access, name, desc)
	if err != nil {
		return err
	}
	cf.Fields = append(cf.Fields, m)
	return nil
}

// AddMethod appends a method. code may be nil for abstract and native
// methods.
func (cf *ClassFile) AddMethod(access uint16, name, desc string, code *Code) error {
	m, err := cf.newMember(access, name, desc)
	if err != nil {
		return err
	}
	if code != nil {
		if m.Attributes, err = cf.setCode(nil, code); err != nil {
			return err
		}
	}
	cf.Methods = append(cf.Methods, m)
	return nil
}

// setCode replaces (or appends) the Code attribute in attrs.
func (cf *ClassFile) setCode(attrs []Attribute, code *Code) ([]Attribute, error) {
	info, err := code.Encode()
	if err != nil {
		return nil, err
	}
	name, err := cf.Pool.AddUtf8(AttrCode)
	if err != nil {
		return nil, err
	}
	if i, ok := cf.attribute(attrs, AttrCode); ok {
		attrs[i] = Attribute{Name: name, Info: info}
		return attrs, nil
	}
	return append(attrs, Attribute{Name: name, Info: info}), nil
}
