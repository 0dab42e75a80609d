package classfile

import "fmt"

// Mode selects how Emit treats derived metadata.
type Mode int

const (
	// AsIs writes the model exactly as it is.
	AsIs Mode = iota
	// ComputeFrames recomputes StackMapTable, max_stack and max_locals of
	// every method with code before writing.
	ComputeFrames
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case AsIs:
		return "as-is"
	case ComputeFrames:
		return "compute-frames"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Emit serializes cf. In ComputeFrames mode h resolves the supertypes that
// frame merges need; it may be nil, in which case only the class itself and
// the Builtin types are known. cf is never modified.
func Emit(cf *ClassFile, mode Mode, h Hierarchy) ([]byte, error) {
	switch mode {
	case AsIs:
		return cf.Bytes()
	case ComputeFrames:
	default:
		return nil, fmt.Errorf("classfile: unknown emit mode %d", int(mode))
	}

	out := cf.clone()
	scope := scopedHierarchy{self: cf.Summary(), outer: h}
	for i := range out.Methods {
		m := &out.Methods[i]
		code, err := out.Code(m)
		if err != nil {
			return nil, err
		}
		if code == nil {
			continue
		}
		name, desc := out.MemberName(m)
		updated, err := computeFrames(out, scope, m, code)
		if err != nil {
			return nil, fmt.Errorf("%s.%s%s: %w", out.Name(), name, desc, err)
		}
		if m.Attributes, err = out.setCode(m.Attributes, updated); err != nil {
			return nil, err
		}
	}
	return out.Bytes()
}

// Transcode parses b and emits it again in the given mode.
func Transcode(b []byte, mode Mode, h Hierarchy) ([]byte, error) {
	cf, err := Parse(b)
	if err != nil {
		return nil, err
	}
	return Emit(cf, mode, h)
}
