package enhance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oy3o/enhance/classfile"
)

// branchy is static int f(int x) { return x != 0 ? 1 : 0; }, which needs a
// frame at the second return.
var branchy = []byte{
	0x1a,             // iload_0
	0x99, 0x00, 0x05, // ifeq +5
	0x04, // iconst_1
	0xac, // ireturn
	0x03, // iconst_0
	0xac, // ireturn
}

func buildClass(t *testing.T, major uint16, name, super string, ifaces ...string) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.New(major, classfile.AccPublic|classfile.AccSuper, name, super, ifaces...)
	require.NoError(t, err)
	return cf
}

func classWithMethod(t *testing.T, major uint16, code []byte) *classfile.ClassFile {
	t.Helper()
	cf := buildClass(t, major, "com/acme/Entity", classfile.ObjectClass, "java/io/Serializable")
	require.NoError(t, cf.AddMethod(classfile.AccPublic|classfile.AccStatic, "f", "(I)I", &classfile.Code{
		MaxStack:  1,
		MaxLocals: 1,
		Bytecode:  code,
	}))
	return cf
}

func summaryBytes(t *testing.T, name, super string, ifaces ...string) []byte {
	t.Helper()
	b, err := buildClass(t, classfile.Java8, name, super, ifaces...).Bytes()
	require.NoError(t, err)
	return b
}

// fakeContext locates every class at path, or fails with err.
type fakeContext struct {
	path string
	err  error
}

func (c fakeContext) Lookup(name string) (*classfile.Summary, error) {
	return classfile.Builtin.Lookup(name)
}

func (c fakeContext) Locate(string) (string, error) { return c.path, c.err }
