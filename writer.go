package enhance

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oy3o/enhance/classfile"
)

// Threshold is the first major version whose verifier requires stack map
// frames. Classes below it are written exactly as serialized.
const Threshold = classfile.Java7

// Writer serializes classes, recomputing frames for modern versions. A
// Writer holds no mutable state and is safe for concurrent use.
type Writer struct {
	threshold int
	logger    *slog.Logger
}

// NewWriter returns a Writer; see WithThreshold and WithLogger.
func NewWriter(opts ...Option) *Writer {
	o := newOptions(opts)
	return &Writer{threshold: o.threshold, logger: o.logger}
}

// NeedsFrames reports whether classes of the given major version are
// recomputed.
func (w *Writer) NeedsFrames(major int) bool { return major >= w.threshold }

// Upgrade converts native, the native serialization of c, into its final
// form. Legacy bytes are returned unchanged.
func (w *Writer) Upgrade(c Class, native []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrNilClass
	}
	if !w.NeedsFrames(c.MajorVersion()) {
		return native, nil
	}

	var h classfile.Hierarchy
	if ctx := c.Context(); ctx != nil {
		h = ctx
	}
	w.logger.Debug("enhance: recomputing frames", "class", c.Name(), "major", c.MajorVersion())
	out, err := classfile.Transcode(native, classfile.ComputeFrames, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRecompute, c.Name(), err)
	}
	return out, nil
}

// Bytes returns the final serialization of c.
func (w *Writer) Bytes(c Class) ([]byte, error) {
	if c == nil {
		return nil, ErrNilClass
	}
	native, err := c.NativeBytes()
	if err != nil {
		return nil, fmt.Errorf("enhance: serialize %s: %w", c.Name(), err)
	}
	return w.Upgrade(c, native)
}

// WriteStream writes c to dst. Whatever happens, dst is flushed if it has a
// Flush() error method and closed if it is an io.Closer before WriteStream
// returns.
func (w *Writer) WriteStream(c Class, dst io.Writer) (err error) {
	if dst == nil {
		return ErrNilSink
	}
	defer func() { err = errors.Join(err, release(dst)) }()

	b, err := w.Bytes(c)
	if err != nil {
		return err
	}
	n, err := dst.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	return err
}

type flusher interface{ Flush() error }

func release(dst io.Writer) error {
	var errs []error
	if f, ok := dst.(flusher); ok {
		errs = append(errs, f.Flush())
	}
	if c, ok := dst.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// WriteFile writes c to path. The class is fully serialized before the
// destination is touched, and the file is replaced atomically: on failure the
// previous content (or absence) of path is preserved.
func (w *Writer) WriteFile(c Class, path string) error {
	b, err := w.Bytes(c)
	if err != nil {
		return err
	}
	if err := writeFile(path, b); err != nil {
		return err
	}
	w.logger.Debug("enhance: wrote class", "class", c.Name(), "path", path, "size", len(b))
	return nil
}

// WriteResource writes c back to the file its loading context locates for it.
func (w *Writer) WriteResource(c Class) error {
	if c == nil {
		return ErrNilClass
	}
	ctx := c.Context()
	if ctx == nil {
		return fmt.Errorf("%w: %s has no loading context", ErrNoResource, c.Name())
	}
	path, err := ctx.Locate(c.Name())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoResource, c.Name(), err)
	}
	return w.WriteFile(c, path)
}

// tempFile is the subset of *os.File used while writing a class file.
type tempFile interface {
	io.WriteCloser
	Name() string
	Sync() error
}

var createTemp = func(dir, pattern string) (tempFile, error) { return os.CreateTemp(dir, pattern) }

const defaultFileMode fs.FileMode = 0o644

func writeFile(path string, b []byte) error {
	mode := defaultFileMode
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	f, err := createTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("enhance: write %s: %w", path, err)
	}
	tmp := f.Name()

	n, err := f.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, mode)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		if rerr := os.Remove(tmp); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("remove temp file: %w", rerr))
		}
		return fmt.Errorf("enhance: write %s: %w", path, err)
	}
	return nil
}
