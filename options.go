package enhance

import (
	"log/slog"

	"github.com/oy3o/enhance/classpath"
)

type options struct {
	threshold int
	marker    string
	maxDepth  int
	logger    *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		threshold: Threshold,
		marker:    DefaultMarker,
		maxDepth:  DefaultMaxDepth,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Writer or a Detector. Options that do not apply to the
// component being built are ignored.
type Option func(*options)

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithThreshold sets the first major version whose classes get their frames
// recomputed.
func WithThreshold(major int) Option {
	return func(o *options) { o.threshold = major }
}

// WithMarker sets the marker interface; dotted and internal names are both
// accepted.
func WithMarker(name string) Option {
	return func(o *options) {
		if name != "" {
			o.marker = classpath.InternalName(name)
		}
	}
}

// WithMaxDepth bounds the ancestor walk of a Detector.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}
