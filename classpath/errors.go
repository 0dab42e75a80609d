package classpath

import "errors"

var (
	// ErrNotFound indicates that no classpath root holds the requested class.
	ErrNotFound = errors.New("classpath: class not found")

	// ErrNotFile indicates the class exists only inside an archive and so has
	// no location a writer could replace.
	ErrNotFile = errors.New("classpath: class is not backed by a file")

	// ErrTooLarge indicates a class file exceeded the configured size limit.
	ErrTooLarge = errors.New("classpath: class file too large")

	// ErrUnsupportedRoot indicates a classpath entry that is neither a
	// directory nor a jar/zip archive.
	ErrUnsupportedRoot = errors.New("classpath: unsupported classpath entry")
)
