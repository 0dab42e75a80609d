package classfile

import "fmt"

// Magic is the first four bytes of every class file.
const Magic uint32 = 0xCAFEBABE

// Major versions of notable runtime generations.
const (
	Java1_1 = 45
	Java5   = 49
	Java6   = 50
	Java7   = 51 // first version whose verifier requires StackMapTable frames
	Java8   = 52
	Java11  = 55
	Java17  = 61
	Java21  = 65
)

// Header is the fixed-size prefix of a class file.
type Header struct {
	Magic uint32
	Minor uint16
	Major uint16
}

func readHeader(r *reader) (Header, error) {
	var h Header
	readFixed(r, &h)
	if r.err != nil {
		return h, r.err
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: 0x%08X", ErrBadMagic, h.Magic)
	}
	return h, nil
}

// Version reads only the major and minor version of a class file.
func Version(b []byte) (major, minor uint16, err error) {
	h, err := readHeader(newReader(b))
	return h.Major, h.Minor, err
}
