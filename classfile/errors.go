package classfile

import "errors"

var (
	// ErrBadMagic indicates the input does not start with 0xCAFEBABE.
	ErrBadMagic = errors.New("classfile: bad magic number")

	// ErrTruncated indicates the data ended before the structure was complete.
	ErrTruncated = errors.New("classfile: truncated data")

	// ErrMalformed indicates a structurally invalid class file, such as an
	// unknown constant tag or an index pointing at the wrong kind of entry.
	ErrMalformed = errors.New("classfile: malformed class file")

	// ErrUnsupportedInstruction is returned by frame computation for opcodes
	// that cannot appear in classes carrying stack map frames (jsr, ret).
	ErrUnsupportedInstruction = errors.New("classfile: unsupported instruction")

	// ErrUnresolvedType indicates that a type needed to merge two frames
	// could not be found through the Hierarchy.
	ErrUnresolvedType = errors.New("classfile: unresolved type")

	// ErrPoolOverflow indicates the constant pool would exceed 65535 entries.
	ErrPoolOverflow = errors.New("classfile: constant pool overflow")
)
