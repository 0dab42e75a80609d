package classpath

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// root is one classpath entry.
type root interface {
	// open returns the resource or an error wrapping ErrNotFound.
	open(resource string) (io.ReadCloser, error)
	// file returns the on-disk path of resource, if it is a plain file.
	file(resource string) (string, bool)
	io.Closer
	fmt.Stringer
}

type dirRoot struct{ dir string }

func (r dirRoot) path(resource string) string {
	return filepath.Join(r.dir, filepath.FromSlash(resource))
}

func (r dirRoot) open(resource string) (io.ReadCloser, error) {
	f, err := os.Open(r.path(resource))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, resource, r.dir)
	}
	return f, err
}

func (r dirRoot) file(resource string) (string, bool) {
	p := r.path(resource)
	fi, err := os.Stat(p)
	return p, err == nil && fi.Mode().IsRegular()
}

func (r dirRoot) Close() error   { return nil }
func (r dirRoot) String() string { return r.dir }

// jarRoot serves classes from a jar or zip archive.
type jarRoot struct {
	path  string
	zr    *zip.ReadCloser
	files map[string]*zip.File
}

func openJar(path string) (*jarRoot, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: open %s: %w", path, err)
	}
	r := &jarRoot{path: path, zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		r.files[f.Name] = f
	}
	return r, nil
}

func (r *jarRoot) open(resource string) (io.ReadCloser, error) {
	f, ok := r.files[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, resource, r.path)
	}
	return f.Open()
}

func (r *jarRoot) file(string) (string, bool) { return "", false }
func (r *jarRoot) Close() error               { return r.zr.Close() }
func (r *jarRoot) String() string             { return r.path }
