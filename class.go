// Package enhance serializes enhanced classes with version-appropriate
// verification metadata and detects whether a compiled class already carries
// the persistence marker interface.
package enhance

import (
	"github.com/oy3o/enhance/classfile"
)

// Context is the loading context of a class. It resolves supertypes for frame
// computation and locates the class's own backing file.
type Context interface {
	classfile.Hierarchy
	Locate(name string) (string, error)
}

// Class is an in-memory class ready to be written. It is owned by the
// weaving stage; writers only read it.
type Class interface {
	Name() string
	MajorVersion() int
	// Context may return nil, in which case only the class itself and the
	// built-in java/lang types are known during recomputation.
	Context() Context
	// NativeBytes serializes the class without recomputing anything.
	NativeBytes() ([]byte, error)
}

// Model adapts a parsed or built *classfile.ClassFile to Class.
type Model struct {
	file *classfile.ClassFile
	ctx  Context
}

var _ Class = (*Model)(nil)

// NewClass wraps cf with its loading context; ctx may be nil.
func NewClass(cf *classfile.ClassFile, ctx Context) *Model {
	return &Model{file: cf, ctx: ctx}
}

// ParseClass parses b into a Model.
func ParseClass(b []byte, ctx Context) (*Model, error) {
	cf, err := classfile.Parse(b)
	if err != nil {
		return nil, err
	}
	return NewClass(cf, ctx), nil
}

// Name returns the internal name of the class.
func (m *Model) Name() string { return m.file.Name() }

// MajorVersion returns the class file major version.
func (m *Model) MajorVersion() int { return int(m.file.Major) }

// Context returns the loading context, which may be nil.
func (m *Model) Context() Context { return m.ctx }

// File returns the underlying class file model.
func (m *Model) File() *classfile.ClassFile { return m.file }

// NativeBytes serializes the model as-is.
func (m *Model) NativeBytes() ([]byte, error) { return classfile.Emit(m.file, classfile.AsIs, nil) }
