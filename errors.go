package enhance

import "errors"

var (
	// ErrNoResource indicates a class has no discoverable backing file, so it
	// cannot be written back to its own location.
	ErrNoResource = errors.New("enhance: class has no backing resource")

	// ErrRecompute indicates frame recomputation failed for a modern class.
	// The cause (malformed bytecode, an unresolvable type) is wrapped.
	ErrRecompute = errors.New("enhance: frame recomputation failed")

	// ErrNilSink indicates WriteStream was called with a nil io.Writer.
	ErrNilSink = errors.New("enhance: WriteStream called with a nil io.Writer")

	// ErrNilClass indicates a writer entry point was called without a class.
	ErrNilClass = errors.New("enhance: nil class")
)
