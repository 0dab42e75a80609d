package enhance

import (
	"log/slog"

	"github.com/oy3o/enhance/classfile"
)

const (
	// DefaultMarker is the interface whose presence marks an enhanced class.
	DefaultMarker = "org/apache/openjpa/enhance/PersistenceCapable"
	// DefaultMaxDepth bounds ancestor walks over adversarial input.
	DefaultMaxDepth = 512
)

// Resolver returns the bytes of a class by internal or binary name.
// *classpath.Loader implements it.
type Resolver interface {
	Resolve(name string) ([]byte, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) ([]byte, error)

// Resolve calls f(name).
func (f ResolverFunc) Resolve(name string) ([]byte, error) { return f(name) }

// Status is the outcome of a marker check.
type Status int

const (
	// Unknown means the answer could not be determined: bytes were absent or
	// malformed, an ancestor could not be resolved, or the chain was cyclic.
	Unknown Status = iota
	// NotEnhanced means the chain reached the root without the marker.
	NotEnhanced
	// Enhanced means the class or an ancestor implements the marker.
	Enhanced
)

// String returns the status as the CLI prints it.
func (s Status) String() string {
	switch s {
	case NotEnhanced:
		return "not-enhanced"
	case Enhanced:
		return "enhanced"
	}
	return "unknown"
}

// Detector checks whether classes implement the marker interface, directly
// or through a superclass. It is safe for concurrent use.
type Detector struct {
	resolver Resolver
	marker   string
	maxDepth int
	logger   *slog.Logger
}

// NewDetector returns a Detector that resolves ancestors through r. A nil r
// means no ancestor can be resolved.
func NewDetector(r Resolver, opts ...Option) *Detector {
	o := newOptions(opts)
	return &Detector{resolver: r, marker: o.marker, maxDepth: o.maxDepth, logger: o.logger}
}

// Marker returns the internal name of the marker interface.
func (d *Detector) Marker() string { return d.marker }

// IsEnhanced reports whether b is known to be enhanced. Every failure is
// reported as false.
func (d *Detector) IsEnhanced(b []byte) bool { return d.Check(b) == Enhanced }

// Check reads only the class header of b and of as many ancestors as needed,
// stopping at the first class that implements the marker.
func (d *Detector) Check(b []byte) Status {
	seen := make(map[string]struct{})
	for depth := 0; ; depth++ {
		if len(b) == 0 {
			return Unknown
		}
		s, err := classfile.ReadSummary(b)
		if err != nil {
			d.logger.Debug("enhance: unreadable class", "depth", depth, "error", err)
			return Unknown
		}
		if s.Implements(d.marker) {
			return Enhanced
		}
		if s.Super == "" || s.Super == classfile.ObjectClass {
			return NotEnhanced
		}

		seen[s.Name] = struct{}{}
		if _, ok := seen[s.Super]; ok {
			d.logger.Debug("enhance: cyclic superclass", "class", s.Name, "super", s.Super)
			return Unknown
		}
		if depth+1 >= d.maxDepth {
			d.logger.Debug("enhance: superclass chain too deep", "class", s.Name, "depth", depth)
			return Unknown
		}
		if d.resolver == nil {
			return Unknown
		}
		if b, err = d.resolver.Resolve(s.Super); err != nil {
			d.logger.Debug("enhance: unresolvable superclass", "class", s.Name, "super", s.Super, "error", err)
			return Unknown
		}
	}
}
