package enhance

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/oy3o/enhance/classfile"
	"github.com/oy3o/enhance/classpath"
)

var errSink = errors.New("sink failure")

// sink is a stream destination that records its lifecycle.
type sink struct {
	bytes.Buffer
	failWrite bool
	flushed   int
	closed    int
}

func (s *sink) Write(p []byte) (int, error) {
	if s.failWrite {
		n := len(p) / 2
		s.Buffer.Write(p[:n])
		return n, errSink
	}
	return s.Buffer.Write(p)
}

func (s *sink) Flush() error { s.flushed++; return nil }
func (s *sink) Close() error { s.closed++; return nil }

// failingFile wraps a real temp file and fails after writing half of the data.
type failingFile struct {
	*os.File
	closed bool
}

func (f *failingFile) Write(p []byte) (int, error) {
	n, _ := f.File.Write(p[:len(p)/2])
	return n, errSink
}

func (f *failingFile) Close() error {
	f.closed = true
	return f.File.Close()
}

type WriterTestSuite struct {
	suite.Suite
	w *Writer
}

func (s *WriterTestSuite) SetupTest() {
	s.w = NewWriter()
}

func (s *WriterTestSuite) TestUpgrade_LegacyIsIdentical() {
	for _, major := range []uint16{classfile.Java1_1, classfile.Java5, classfile.Java6} {
		c := NewClass(classWithMethod(s.T(), major, branchy), nil)
		native, err := c.NativeBytes()
		s.Require().NoError(err)

		out, err := s.w.Upgrade(c, native)
		s.Require().NoError(err)
		s.Equal(native, out, "major %d", major)
	}
}

func (s *WriterTestSuite) TestUpgrade_ModernRecomputesFrames() {
	for _, major := range []uint16{classfile.Java7, classfile.Java8, classfile.Java17} {
		c := NewClass(classWithMethod(s.T(), major, branchy), nil)
		native, err := c.NativeBytes()
		s.Require().NoError(err)

		out, err := s.w.Upgrade(c, native)
		s.Require().NoError(err)
		s.NotEqual(native, out)

		in, err := classfile.ReadSummary(native)
		s.Require().NoError(err)
		got, err := classfile.ReadSummary(out)
		s.Require().NoError(err)
		s.Equal(in, got)

		cf, err := classfile.Parse(out)
		s.Require().NoError(err)
		frames, err := cf.Frames(cf.Method("f", "(I)I"))
		s.Require().NoError(err)
		s.Require().Len(frames, 1)
		s.Equal(6, frames[0].Offset)
	}
}

func (s *WriterTestSuite) TestUpgrade_RecomputeFailure() {
	jsr := []byte{0xa8, 0x00, 0x03, 0xb1}
	c := NewClass(classWithMethod(s.T(), classfile.Java8, jsr), nil)

	_, err := s.w.Bytes(c)
	s.ErrorIs(err, ErrRecompute)
	s.ErrorIs(err, classfile.ErrUnsupportedInstruction)

	// The same class below the threshold is written untouched.
	legacy := NewClass(classWithMethod(s.T(), classfile.Java6, jsr), nil)
	_, err = s.w.Bytes(legacy)
	s.NoError(err)
}

func (s *WriterTestSuite) TestUpgrade_CodeTooLongIsRejected() {
	// goto_w 70000 over nops to a return; too long for a Code attribute.
	code := make([]byte, 70001)
	copy(code, []byte{0xc8, 0x00, 0x01, 0x11, 0x70})
	code[70000] = 0xb1
	info := binary.BigEndian.AppendUint16(nil, 0)     // max_stack
	info = binary.BigEndian.AppendUint16(info, 0)     // max_locals
	info = binary.BigEndian.AppendUint32(info, 70001) // code_length
	info = append(info, code...)
	info = append(info, 0, 0, 0, 0) // no handlers, no attributes

	cf := buildClass(s.T(), classfile.Java8, "com/acme/Huge", classfile.ObjectClass)
	name, err := cf.Pool.AddUtf8("huge")
	s.Require().NoError(err)
	desc, err := cf.Pool.AddUtf8("()V")
	s.Require().NoError(err)
	attr, err := cf.Pool.AddUtf8(classfile.AttrCode)
	s.Require().NoError(err)
	cf.Methods = append(cf.Methods, classfile.Member{
		Access:     classfile.AccPublic | classfile.AccStatic,
		Name:       name,
		Descriptor: desc,
		Attributes: []classfile.Attribute{{Name: attr, Info: info}},
	})

	c := NewClass(cf, nil)
	_, err = s.w.Bytes(c)
	s.ErrorIs(err, ErrRecompute)
	s.ErrorIs(err, classfile.ErrMalformed)

	path := filepath.Join(s.T().TempDir(), "Huge.class")
	s.ErrorIs(s.w.WriteFile(c, path), ErrRecompute)
	s.NoFileExists(path)
}

func (s *WriterTestSuite) TestThresholdOption() {
	w := NewWriter(WithThreshold(classfile.Java11))
	s.False(w.NeedsFrames(classfile.Java8))
	s.True(w.NeedsFrames(classfile.Java11))
	s.True(s.w.NeedsFrames(classfile.Java7))
	s.False(s.w.NeedsFrames(classfile.Java6))
}

func (s *WriterTestSuite) TestNilClass() {
	_, err := s.w.Bytes(nil)
	s.ErrorIs(err, ErrNilClass)
	s.ErrorIs(s.w.WriteResource(nil), ErrNilClass)
}

func (s *WriterTestSuite) TestWriteStream() {
	c := NewClass(classWithMethod(s.T(), classfile.Java8, branchy), nil)
	want, err := s.w.Bytes(c)
	s.Require().NoError(err)

	dst := &sink{}
	s.Require().NoError(s.w.WriteStream(c, dst))
	s.Equal(want, dst.Bytes())
	s.Equal(1, dst.flushed)
	s.Equal(1, dst.closed)
}

func (s *WriterTestSuite) TestWriteStream_ReleasedOnWriteFailure() {
	c := NewClass(classWithMethod(s.T(), classfile.Java8, branchy), nil)
	dst := &sink{failWrite: true}

	err := s.w.WriteStream(c, dst)
	s.ErrorIs(err, errSink)
	s.Equal(1, dst.flushed)
	s.Equal(1, dst.closed)
}

func (s *WriterTestSuite) TestWriteStream_ReleasedOnRecomputeFailure() {
	c := NewClass(classWithMethod(s.T(), classfile.Java8, []byte{0xa8, 0x00, 0x03, 0xb1}), nil)
	dst := &sink{}

	err := s.w.WriteStream(c, dst)
	s.ErrorIs(err, ErrRecompute)
	s.Zero(dst.Len())
	s.Equal(1, dst.flushed)
	s.Equal(1, dst.closed)
}

func (s *WriterTestSuite) TestWriteStream_NilSink() {
	c := NewClass(classWithMethod(s.T(), classfile.Java8, branchy), nil)
	s.ErrorIs(s.w.WriteStream(c, nil), ErrNilSink)
}

func (s *WriterTestSuite) TestWriteFile() {
	path := filepath.Join(s.T().TempDir(), "Entity.class")
	c := NewClass(classWithMethod(s.T(), classfile.Java8, branchy), nil)

	s.Require().NoError(s.w.WriteFile(c, path))
	got, err := os.ReadFile(path)
	s.Require().NoError(err)
	want, err := s.w.Bytes(c)
	s.Require().NoError(err)
	s.Equal(want, got)

	fi, err := os.Stat(path)
	s.Require().NoError(err)
	s.Equal(defaultFileMode, fi.Mode().Perm())
}

func (s *WriterTestSuite) TestWriteFile_RecomputeFailureLeavesNoFile() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "Entity.class")
	c := NewClass(classWithMethod(s.T(), classfile.Java8, []byte{0xa8, 0x00, 0x03, 0xb1}), nil)

	s.ErrorIs(s.w.WriteFile(c, path), ErrRecompute)
	entries, err := os.ReadDir(dir)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *WriterTestSuite) TestWriteResource() {
	path := filepath.Join(s.T().TempDir(), "Entity.class")
	c := NewClass(classWithMethod(s.T(), classfile.Java6, branchy), fakeContext{path: path})

	s.Require().NoError(s.w.WriteResource(c))
	got, err := os.ReadFile(path)
	s.Require().NoError(err)
	native, err := c.NativeBytes()
	s.Require().NoError(err)
	s.Equal(native, got)
}

func (s *WriterTestSuite) TestWriteResource_NoResource() {
	cf := classWithMethod(s.T(), classfile.Java8, branchy)

	err := s.w.WriteResource(NewClass(cf, fakeContext{err: classpath.ErrNotFound}))
	s.ErrorIs(err, ErrNoResource)
	s.ErrorIs(err, classpath.ErrNotFound)

	s.ErrorIs(s.w.WriteResource(NewClass(cf, nil)), ErrNoResource)
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}

func TestWriteFile_ForcedWriteFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Entity.class")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))

	var opened *failingFile
	orig := createTemp
	createTemp = func(dir, pattern string) (tempFile, error) {
		f, err := os.CreateTemp(dir, pattern)
		if err != nil {
			return nil, err
		}
		opened = &failingFile{File: f}
		return opened, nil
	}
	t.Cleanup(func() { createTemp = orig })

	c := NewClass(classWithMethod(t, classfile.Java8, branchy), nil)
	err := NewWriter().WriteFile(c, path)
	require.ErrorIs(t, err, errSink)

	require.NotNil(t, opened)
	assert.True(t, opened.closed, "temp file left open")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("previous"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
	assert.Equal(t, "Entity.class", entries[0].Name())
}

func TestWriteFile_RenameFailureRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory at the target makes the rename fail.
	path := filepath.Join(dir, "Entity.class")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "occupied"), 0o755))

	c := NewClass(classWithMethod(t, classfile.Java8, branchy), nil)
	require.Error(t, NewWriter().WriteFile(c, path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
	assert.Equal(t, "Entity.class", entries[0].Name())
	assert.True(t, entries[0].IsDir())
}

func TestWriteResource_Classpath(t *testing.T) {
	dir := t.TempDir()
	native := summaryBytes(t, "com/acme/Base", classfile.ObjectClass)
	path := filepath.Join(dir, "com", "acme", "Base.class")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, native, 0o600))

	loader, err := classpath.New([]string{dir})
	require.NoError(t, err)
	defer loader.Close()

	c := NewClass(classWithMethod(t, classfile.Java8, branchy), loader)
	_, err = loader.Locate(c.Name())
	require.ErrorIs(t, err, classpath.ErrNotFound)
	require.ErrorIs(t, NewWriter().WriteResource(c), ErrNoResource)

	base, err := ParseClass(native, loader)
	require.NoError(t, err)
	require.NoError(t, NewWriter().WriteResource(base))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm(), "existing mode kept")
}
