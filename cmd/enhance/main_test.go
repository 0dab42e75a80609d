package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oy3o/enhance"
	"github.com/oy3o/enhance/classfile"
	"github.com/oy3o/enhance/internal/config"
)

// fixture writes com/acme/Base (implementing the marker) and
// com/acme/Entity (extending it, with one branching method) under a new
// classpath directory.
func fixture(t *testing.T) (dir, entity string) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{config.EnvClasspath, config.EnvMarker, config.EnvThreshold, config.EnvLogLevel, config.EnvLogFormat} {
		t.Setenv(k, "")
	}

	dir = t.TempDir()
	base, err := classfile.New(classfile.Java8, classfile.AccPublic|classfile.AccSuper, "com/acme/Base", classfile.ObjectClass, enhance.DefaultMarker)
	require.NoError(t, err)
	writeClass(t, dir, base)

	cf, err := classfile.New(classfile.Java8, classfile.AccPublic|classfile.AccSuper, "com/acme/Entity", "com/acme/Base")
	require.NoError(t, err)
	require.NoError(t, cf.AddMethod(classfile.AccPublic|classfile.AccStatic, "f", "(I)I", &classfile.Code{
		MaxStack:  1,
		MaxLocals: 1,
		Bytecode:  []byte{0x1a, 0x99, 0x00, 0x05, 0x04, 0xac, 0x03, 0xac},
	}))
	return dir, writeClass(t, dir, cf)
}

func writeClass(t *testing.T, dir string, cf *classfile.ClassFile) string {
	t.Helper()
	b, err := cf.Bytes()
	require.NoError(t, err)
	p := filepath.Join(dir, filepath.FromSlash(cf.Name())+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, b, 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	defer a.close()

	var out, errOut bytes.Buffer
	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheckCmd(t *testing.T) {
	dir, entity := fixture(t)

	out, err := run(t, "check", "--classpath", dir, "com.acme.Entity", entity, "com/acme/Missing")
	require.NoError(t, err)
	assert.Equal(t, "com/acme/Entity\tenhanced\ncom/acme/Entity\tenhanced\ncom/acme/Missing\tunknown\n", out)
}

func TestCheckCmd_WithoutClasspath(t *testing.T) {
	_, entity := fixture(t)

	out, err := run(t, "check", entity)
	require.NoError(t, err)
	assert.Equal(t, "com/acme/Entity\tunknown\n", out)
}

func TestUpgradeCmd_Output(t *testing.T) {
	dir, entity := fixture(t)
	target := filepath.Join(t.TempDir(), "Entity.class")

	_, err := run(t, "upgrade", "--classpath", dir, entity, "-o", target)
	require.NoError(t, err)

	b, err := os.ReadFile(target)
	require.NoError(t, err)
	cf, err := classfile.Parse(b)
	require.NoError(t, err)
	assert.Equal(t, "com/acme/Base", cf.SuperName())

	frames, err := cf.Frames(cf.Method("f", "(I)I"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 6, frames[0].Offset)
}

func TestUpgradeCmd_Stdout(t *testing.T) {
	dir, _ := fixture(t)

	out, err := run(t, "upgrade", "--classpath", dir, "com.acme.Entity", "-o", "-")
	require.NoError(t, err)

	s, err := classfile.ReadSummary([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "com/acme/Entity", s.Name)
}

func TestUpgradeCmd_InPlaceResource(t *testing.T) {
	dir, entity := fixture(t)
	before, err := os.ReadFile(entity)
	require.NoError(t, err)

	_, err = run(t, "upgrade", "--classpath", dir, "com/acme/Entity", "--in-place")
	require.NoError(t, err)

	after, err := os.ReadFile(entity)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestUpgradeCmd_NeedsDestination(t *testing.T) {
	_, entity := fixture(t)

	_, err := run(t, "upgrade", entity)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output or --in-place")
}

func TestFramesCmd(t *testing.T) {
	_, entity := fixture(t)

	out, err := run(t, "frames", entity)
	require.NoError(t, err)
	assert.Equal(t, "com/acme/Entity (major 52)\nf(I)I max_stack=1 max_locals=1\n", out)

	out, err = run(t, "frames", "--compute", entity)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "  @6 locals=[int] stack=[]\n"), out)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "enhance "+version+"\n", out)
}
