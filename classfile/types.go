package classfile

import (
	"fmt"
	"strings"
)

// Item is a verification type tag as encoded in StackMapTable.
type Item uint8

const (
	ItemTop Item = iota
	ItemInteger
	ItemFloat
	ItemDouble
	ItemLong
	ItemNull
	ItemUninitializedThis
	ItemObject
	ItemUninitialized
)

// VType is a verification type. Class holds the internal name or array
// descriptor of ItemObject; Offset holds the offset of the creating new
// instruction for ItemUninitialized.
type VType struct {
	Item   Item
	Class  string
	Offset int
}

var (
	vTop        = VType{Item: ItemTop}
	vInt        = VType{Item: ItemInteger}
	vFloat      = VType{Item: ItemFloat}
	vLong       = VType{Item: ItemLong}
	vDouble     = VType{Item: ItemDouble}
	vNull       = VType{Item: ItemNull}
	vUninitThis = VType{Item: ItemUninitializedThis}
)

func vObject(name string) VType { return VType{Item: ItemObject, Class: name} }

// wide reports whether t occupies two local or stack slots.
func (t VType) wide() bool { return t.Item == ItemLong || t.Item == ItemDouble }

// isReference reports whether t can be merged through the class hierarchy.
func (t VType) isReference() bool { return t.Item == ItemObject || t.Item == ItemNull }

// String returns the type as javap prints it in frames.
func (t VType) String() string {
	switch t.Item {
	case ItemTop:
		return "top"
	case ItemInteger:
		return "int"
	case ItemFloat:
		return "float"
	case ItemDouble:
		return "double"
	case ItemLong:
		return "long"
	case ItemNull:
		return "null"
	case ItemUninitializedThis:
		return "uninitializedThis"
	case ItemObject:
		return t.Class
	case ItemUninitialized:
		return fmt.Sprintf("uninitialized(%d)", t.Offset)
	}
	return fmt.Sprintf("item(%d)", t.Item)
}

// fieldType parses the field descriptor at the start of desc and returns its
// verification type and the remaining input.
func fieldType(desc string) (VType, string, error) {
	if desc == "" {
		return vTop, "", fmt.Errorf("%w: empty descriptor", ErrMalformed)
	}
	switch desc[0] {
	case 'B', 'C', 'I', 'S', 'Z':
		return vInt, desc[1:], nil
	case 'F':
		return vFloat, desc[1:], nil
	case 'J':
		return vLong, desc[1:], nil
	case 'D':
		return vDouble, desc[1:], nil
	case 'L':
		end := strings.IndexByte(desc, ';')
		if end < 2 {
			return vTop, "", fmt.Errorf("%w: bad descriptor %q", ErrMalformed, desc)
		}
		return vObject(desc[1:end]), desc[end+1:], nil
	case '[':
		dims := 0
		for dims < len(desc) && desc[dims] == '[' {
			dims++
		}
		_, rest, err := fieldType(desc[dims:])
		if err != nil {
			return vTop, "", err
		}
		return vObject(desc[:len(desc)-len(rest)]), rest, nil
	}
	return vTop, "", fmt.Errorf("%w: bad descriptor %q", ErrMalformed, desc)
}

// methodType parses a method descriptor. ret is nil for void.
func methodType(desc string) (args []VType, ret *VType, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, nil, fmt.Errorf("%w: bad method descriptor %q", ErrMalformed, desc)
	}
	rest := desc[1:]
	for !strings.HasPrefix(rest, ")") {
		var t VType
		if t, rest, err = fieldType(rest); err != nil {
			return nil, nil, err
		}
		args = append(args, t)
	}
	rest = rest[1:]
	if rest == "V" {
		return args, nil, nil
	}
	t, tail, err := fieldType(rest)
	if err != nil {
		return nil, nil, err
	}
	if tail != "" {
		return nil, nil, fmt.Errorf("%w: bad method descriptor %q", ErrMalformed, desc)
	}
	return args, &t, nil
}

// slots returns how many local or stack slots the types occupy.
func slots(ts []VType) int {
	n := 0
	for _, t := range ts {
		n++
		if t.wide() {
			n++
		}
	}
	return n
}

// arrayOf returns the array type whose components are class.
func arrayOf(class string) string {
	if strings.HasPrefix(class, "[") {
		return "[" + class
	}
	return "[L" + class + ";"
}

// componentOf returns the component type of the array descriptor class.
func componentOf(class string) (VType, error) {
	if !strings.HasPrefix(class, "[") {
		return vTop, fmt.Errorf("%w: %s is not an array", ErrMalformed, class)
	}
	t, rest, err := fieldType(class[1:])
	if err == nil && rest != "" {
		err = fmt.Errorf("%w: bad array descriptor %q", ErrMalformed, class)
	}
	return t, err
}
