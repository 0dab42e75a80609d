package enhance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/oy3o/enhance/classfile"
)

var errMissing = errors.New("missing")

type DetectorTestSuite struct {
	suite.Suite
	classes  map[string][]byte
	resolved []string
	d        *Detector
}

func (s *DetectorTestSuite) SetupTest() {
	s.classes = map[string][]byte{}
	s.resolved = nil
	s.d = NewDetector(ResolverFunc(func(name string) ([]byte, error) {
		s.resolved = append(s.resolved, name)
		if b, ok := s.classes[name]; ok {
			return b, nil
		}
		return nil, errMissing
	}))
}

func (s *DetectorTestSuite) add(name, super string, ifaces ...string) []byte {
	b := summaryBytes(s.T(), name, super, ifaces...)
	s.classes[name] = b
	return b
}

func (s *DetectorTestSuite) TestAbsent() {
	s.False(s.d.IsEnhanced(nil))
	s.Equal(Unknown, s.d.Check([]byte{}))
	s.Empty(s.resolved)
}

func (s *DetectorTestSuite) TestDirectMarker() {
	b := s.add("com/acme/Entity", classfile.ObjectClass, "java/io/Serializable", DefaultMarker)
	s.True(s.d.IsEnhanced(b))
	s.Empty(s.resolved)
}

func (s *DetectorTestSuite) TestGrandparentMarker() {
	s.add("com/acme/Root", classfile.ObjectClass, DefaultMarker)
	s.add("com/acme/Middle", "com/acme/Root")
	b := s.add("com/acme/Leaf", "com/acme/Middle")

	s.True(s.d.IsEnhanced(b))
	s.Equal([]string{"com/acme/Middle", "com/acme/Root"}, s.resolved)
}

func (s *DetectorTestSuite) TestNotEnhanced() {
	s.add("com/acme/Middle", classfile.ObjectClass, "java/io/Serializable")
	b := s.add("com/acme/Leaf", "com/acme/Middle")

	s.Equal(NotEnhanced, s.d.Check(b))
	s.Equal([]string{"com/acme/Middle"}, s.resolved)
}

func (s *DetectorTestSuite) TestSelfSuper() {
	b := s.add("com/acme/Loop", "com/acme/Loop")
	s.False(s.d.IsEnhanced(b))
	s.Equal(Unknown, s.d.Check(b))
	s.Empty(s.resolved)
}

func (s *DetectorTestSuite) TestCycle() {
	s.add("com/acme/A", "com/acme/B")
	b := s.add("com/acme/B", "com/acme/A")

	s.Equal(Unknown, s.d.Check(b))
	s.Equal([]string{"com/acme/A"}, s.resolved)
}

func (s *DetectorTestSuite) TestRoot() {
	b := s.add(classfile.ObjectClass, "")
	s.False(s.d.IsEnhanced(b))
	s.Equal(NotEnhanced, s.d.Check(b))
	s.Empty(s.resolved)
}

func (s *DetectorTestSuite) TestUnresolvableParent() {
	b := s.add("com/acme/Leaf", "com/acme/Gone")
	s.Equal(Unknown, s.d.Check(b))
	s.False(s.d.IsEnhanced(b))
}

func (s *DetectorTestSuite) TestMalformed() {
	s.classes["com/acme/Bad"] = []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00}
	b := s.add("com/acme/Leaf", "com/acme/Bad")

	s.Equal(Unknown, s.d.Check(b))
	s.Equal(Unknown, s.d.Check([]byte("not a class")))
}

func (s *DetectorTestSuite) TestMaxDepth() {
	s.add("com/acme/C0", classfile.ObjectClass, DefaultMarker)
	s.add("com/acme/C1", "com/acme/C0")
	b := s.add("com/acme/C2", "com/acme/C1")

	d := NewDetector(ResolverFunc(func(name string) ([]byte, error) { return s.classes[name], nil }), WithMaxDepth(2))
	s.Equal(Unknown, d.Check(b))
	s.True(NewDetector(ResolverFunc(func(name string) ([]byte, error) { return s.classes[name], nil }), WithMaxDepth(3)).IsEnhanced(b))
}

func (s *DetectorTestSuite) TestCustomMarker() {
	b := s.add("com/acme/Entity", classfile.ObjectClass, "com/acme/Tracked")

	d := NewDetector(nil, WithMarker("com.acme.Tracked"))
	s.Equal("com/acme/Tracked", d.Marker())
	s.True(d.IsEnhanced(b))
	s.False(s.d.IsEnhanced(b))
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorTestSuite))
}

func TestDetector_NilResolver(t *testing.T) {
	b := summaryBytes(t, "com/acme/Leaf", "com/acme/Middle")
	assert.Equal(t, Unknown, NewDetector(nil).Check(b))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "enhanced", Enhanced.String())
	assert.Equal(t, "not-enhanced", NotEnhanced.String())
	assert.Equal(t, "unknown", Unknown.String())
}
