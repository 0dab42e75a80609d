// Package classpath resolves compiled classes by name from directories and
// jar archives. A Loader is the loading context that enhancement uses both
// to find supertypes during frame computation and to walk ancestors when
// detecting enhancement markers.
package classpath

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/oy3o/enhance/classfile"
)

const (
	// DefaultMaxClassSize bounds how much of a single class file is read.
	DefaultMaxClassSize = 16 << 20
	// DefaultCacheSize is the number of class summaries kept by Lookup.
	DefaultCacheSize = 4096
)

// Loader resolves classes from an ordered list of roots. It is safe for
// concurrent use.
type Loader struct {
	roots     []root
	summaries *lru.Cache[string, *classfile.Summary]
	maxSize   int64
	cacheSize int
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for lookup diagnostics. A nil logger
// keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxClassSize sets the largest class file Resolve will read.
func WithMaxClassSize(n int64) Option {
	return func(l *Loader) { l.maxSize = n }
}

// WithCacheSize sets how many summaries Lookup caches.
func WithCacheSize(n int) Option {
	return func(l *Loader) { l.cacheSize = n }
}

// New opens each path as a directory or a .jar/.zip archive. Missing
// entries are skipped with a warning, as a JVM does.
func New(paths []string, opts ...Option) (*Loader, error) {
	l := &Loader{maxSize: DefaultMaxClassSize, cacheSize: DefaultCacheSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	cache, err := lru.New[string, *classfile.Summary](max(l.cacheSize, 1))
	if err != nil {
		return nil, err
	}
	l.summaries = cache

	for _, p := range paths {
		if p == "" {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			l.logger.Warn("classpath: skipping entry", "path", p, "error", err)
			continue
		}
		switch {
		case fi.IsDir():
			l.roots = append(l.roots, dirRoot{dir: p})
		case isArchive(p):
			jr, err := openJar(p)
			if err != nil {
				l.Close()
				return nil, err
			}
			l.roots = append(l.roots, jr)
		default:
			l.Close()
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedRoot, p)
		}
	}
	return l, nil
}

func isArchive(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasSuffix(lower, ".jar") || strings.HasSuffix(lower, ".zip")
}

// Close releases open archives.
func (l *Loader) Close() error {
	var errs []error
	for _, r := range l.roots {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// InternalName converts a binary name (a.b.C) or resource name (a/b/C.class)
// to an internal name (a/b/C).
func InternalName(name string) string {
	return strings.ReplaceAll(strings.TrimSuffix(name, ".class"), ".", "/")
}

func resourceName(name string) string { return InternalName(name) + ".class" }

// Resolve returns the bytes of the named class from the first root that
// holds it.
func (l *Loader) Resolve(name string) ([]byte, error) {
	resource := resourceName(name)
	for _, r := range l.roots {
		rc, err := r.open(resource)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("classpath: open %s in %s: %w", resource, r, err)
		}
		b, err := l.readAll(rc)
		if err != nil {
			return nil, fmt.Errorf("classpath: read %s in %s: %w", resource, r, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, InternalName(name))
}

func (l *Loader) readAll(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, l.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > l.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.maxSize)
	}
	return b, nil
}

// Locate returns the file that backs the named class. Classes found first in
// an archive yield ErrNotFile.
func (l *Loader) Locate(name string) (string, error) {
	resource := resourceName(name)
	for _, r := range l.roots {
		if p, ok := r.file(resource); ok {
			return p, nil
		}
		if _, isJar := r.(*jarRoot); isJar {
			if rc, err := r.open(resource); err == nil {
				rc.Close()
				return "", fmt.Errorf("%w: %s is inside %s", ErrNotFile, InternalName(name), r)
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, InternalName(name))
}

// Lookup implements classfile.Hierarchy.
func (l *Loader) Lookup(name string) (*classfile.Summary, error) {
	name = InternalName(name)
	if s, ok := l.summaries.Get(name); ok {
		return s, nil
	}
	b, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}
	s, err := classfile.ReadSummary(b)
	if err != nil {
		l.logger.Debug("classpath: unreadable class", "name", name, "error", err)
		return nil, fmt.Errorf("classpath: %s: %w", name, err)
	}
	l.summaries.Add(name, s)
	return s, nil
}

var _ classfile.Hierarchy = (*Loader)(nil)
