package classfile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// benchClass is a Java 8 class with a constructor and a counting loop.
func benchClass(b *testing.B) []byte {
	cf, err := New(Java8, AccPublic|AccSuper, "bench/Loop", ObjectClass, "java/io/Serializable")
	require.NoError(b, err)
	ctor, err := cf.Pool.AddMethodref(ObjectClass, "<init>", "()V")
	require.NoError(b, err)
	require.NoError(b, cf.AddMethod(AccPublic, "<init>", "()V", &Code{
		MaxStack:  1,
		MaxLocals: 1,
		Bytecode:  []byte{0x2a, opInvokespecial, hi(ctor), lo(ctor), opReturn},
	}))
	require.NoError(b, cf.AddMethod(AccPublic|AccStatic, "count", "(I)V", &Code{
		MaxStack:  2,
		MaxLocals: 2,
		Bytecode: []byte{
			0x03, 0x3c, // iconst_0; istore_1
			0x1b, 0x1a, // iload_1; iload_0
			0xa2, 0x00, 0x09, // if_icmpge +9
			0x84, 0x01, 0x01, // iinc 1 1
			0xa7, 0xff, 0xf8, // goto -8
			opReturn,
		},
	}))
	out, err := Emit(cf, AsIs, nil)
	require.NoError(b, err)
	return out
}

func BenchmarkParse(b *testing.B) {
	data := benchClass(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Parse(data)
	}
}

func BenchmarkReadSummary(b *testing.B) {
	data := benchClass(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ReadSummary(data)
	}
}

func BenchmarkEmitAsIs(b *testing.B) {
	cf, err := Parse(benchClass(b))
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Emit(cf, AsIs, nil)
	}
}

func BenchmarkEmitComputeFrames(b *testing.B) {
	cf, err := Parse(benchClass(b))
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Emit(cf, ComputeFrames, nil)
	}
}

// Baseline: decoding the fixed header with binary.Decode alone.
func BenchmarkStandardHeaderRead(b *testing.B) {
	data := benchClass(b)
	var h Header
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = binary.Decode(data, order, &h)
	}
}
