package classfile

import (
	"errors"
	"fmt"
	"strings"
)

// Hierarchy resolves the structural header of a type by internal name. It
// is the loading context frame computation uses to find common superclasses.
type Hierarchy interface {
	Lookup(name string) (*Summary, error)
}

// HierarchyFunc adapts a function to Hierarchy.
type HierarchyFunc func(name string) (*Summary, error)

// Lookup calls f(name).
func (f HierarchyFunc) Lookup(name string) (*Summary, error) { return f(name) }

// Builtin knows the core platform types that application classpaths rarely
// carry, so merges involving them succeed without a runtime image.
var Builtin Hierarchy = builtin{}

type builtin struct{}

var builtinTypes = func() map[string]*Summary {
	classes := map[string]string{
		"java/lang/Object":                        "",
		"java/lang/String":                        ObjectClass,
		"java/lang/Class":                         ObjectClass,
		"java/lang/Number":                        ObjectClass,
		"java/lang/Boolean":                       ObjectClass,
		"java/lang/Character":                     ObjectClass,
		"java/lang/Byte":                          "java/lang/Number",
		"java/lang/Short":                         "java/lang/Number",
		"java/lang/Integer":                       "java/lang/Number",
		"java/lang/Long":                          "java/lang/Number",
		"java/lang/Float":                         "java/lang/Number",
		"java/lang/Double":                        "java/lang/Number",
		"java/math/BigInteger":                    "java/lang/Number",
		"java/math/BigDecimal":                    "java/lang/Number",
		"java/lang/Enum":                          ObjectClass,
		"java/lang/Record":                        ObjectClass,
		"java/lang/StringBuilder":                 ObjectClass,
		"java/lang/Throwable":                     ObjectClass,
		"java/lang/Exception":                     "java/lang/Throwable",
		"java/lang/Error":                         "java/lang/Throwable",
		"java/lang/RuntimeException":              "java/lang/Exception",
		"java/lang/IllegalArgumentException":      "java/lang/RuntimeException",
		"java/lang/IllegalStateException":         "java/lang/RuntimeException",
		"java/lang/NullPointerException":          "java/lang/RuntimeException",
		"java/lang/ClassCastException":            "java/lang/RuntimeException",
		"java/lang/UnsupportedOperationException": "java/lang/RuntimeException",
		"java/lang/ReflectiveOperationException":  "java/lang/Exception",
		"java/lang/ClassNotFoundException":        "java/lang/ReflectiveOperationException",
		"java/io/IOException":                     "java/lang/Exception",
		"java/lang/invoke/MethodHandle":           ObjectClass,
		"java/lang/invoke/MethodType":             ObjectClass,
		"java/util/AbstractCollection":            ObjectClass,
		"java/util/AbstractList":                  "java/util/AbstractCollection",
		"java/util/ArrayList":                     "java/util/AbstractList",
		"java/util/AbstractMap":                   ObjectClass,
		"java/util/HashMap":                       "java/util/AbstractMap",
	}
	interfaces := []string{
		"java/io/Serializable",
		"java/lang/Cloneable",
		"java/lang/Comparable",
		"java/lang/CharSequence",
		"java/lang/Runnable",
		"java/lang/Iterable",
		"java/util/Collection",
		"java/util/List",
		"java/util/Set",
		"java/util/Map",
	}
	types := make(map[string]*Summary, len(classes)+len(interfaces))
	for name, super := range classes {
		types[name] = &Summary{Access: AccPublic | AccSuper, Name: name, Super: super}
	}
	for _, name := range interfaces {
		types[name] = &Summary{Access: AccPublic | AccInterface | AccAbstract, Name: name, Super: ObjectClass}
	}
	return types
}()

func (builtin) Lookup(name string) (*Summary, error) {
	if s, ok := builtinTypes[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnresolvedType, name)
}

// scopedHierarchy answers for the class being emitted first, then asks the
// caller's hierarchy, then the built-in table.
type scopedHierarchy struct {
	self  *Summary
	outer Hierarchy
}

func (h scopedHierarchy) Lookup(name string) (*Summary, error) {
	if name == h.self.Name {
		return h.self, nil
	}
	var outerErr error
	if h.outer != nil {
		s, err := h.outer.Lookup(name)
		if err == nil && s != nil {
			return s, nil
		}
		outerErr = err
	}
	if s, err := Builtin.Lookup(name); err == nil {
		return s, nil
	}
	if outerErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnresolvedType, name, outerErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnresolvedType, name)
}

// maxHierarchyDepth bounds superclass walks over malformed, cyclic input.
const maxHierarchyDepth = 1024

// superChain returns name followed by its superclasses up to the root.
func superChain(h Hierarchy, name string) ([]string, bool, error) {
	var chain []string
	isInterface := false
	for cur := name; cur != ""; {
		if len(chain) == maxHierarchyDepth {
			return nil, false, fmt.Errorf("%w: superclass chain of %s too deep or cyclic", ErrMalformed, name)
		}
		s, err := h.Lookup(cur)
		if err != nil {
			return nil, false, err
		}
		if cur == name {
			isInterface = s.IsInterface()
		}
		chain = append(chain, cur)
		if s.Super == cur {
			return nil, false, fmt.Errorf("%w: %s is its own superclass", ErrMalformed, cur)
		}
		cur = s.Super
	}
	return chain, isInterface, nil
}

// commonSuperclass returns the most specific class both a and b extend.
// Interfaces merge to java/lang/Object.
func commonSuperclass(h Hierarchy, a, b string) (string, error) {
	if a == b {
		return a, nil
	}
	if a == ObjectClass || b == ObjectClass {
		return ObjectClass, nil
	}
	if strings.HasPrefix(a, "[") || strings.HasPrefix(b, "[") {
		return commonArray(h, a, b)
	}
	chainA, ifaceA, err := superChain(h, a)
	if err != nil {
		return "", err
	}
	chainB, ifaceB, err := superChain(h, b)
	if err != nil {
		return "", err
	}
	if ifaceA || ifaceB {
		return ObjectClass, nil
	}
	seen := make(map[string]struct{}, len(chainA))
	for _, c := range chainA {
		seen[c] = struct{}{}
	}
	for _, c := range chainB {
		if _, ok := seen[c]; ok {
			return c, nil
		}
	}
	return ObjectClass, nil
}

// commonArray merges array types: reference arrays of equal dimension merge
// component-wise, anything else becomes java/lang/Object.
func commonArray(h Hierarchy, a, b string) (string, error) {
	if !strings.HasPrefix(a, "[") || !strings.HasPrefix(b, "[") {
		return ObjectClass, nil
	}
	ca, errA := componentOf(a)
	cb, errB := componentOf(b)
	if err := errors.Join(errA, errB); err != nil {
		return "", err
	}
	if ca.Item != ItemObject || cb.Item != ItemObject {
		return ObjectClass, nil
	}
	c, err := commonSuperclass(h, ca.Class, cb.Class)
	if err != nil {
		return "", err
	}
	return arrayOf(c), nil
}
