package traverse

import (
	"reflect"

	"github.com/gridbugs/archetype-lang/internal/model"
)

// StructuralEqual compares two terms by shape and content, ignoring
// Position (two terms synthesized at different points by a pass but
// otherwise identical are still "the same term" for the tests that
// compare rewritten trees).
func StructuralEqual(a, b model.Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	av, bv := stripPos(a), stripPos(b)
	return reflect.DeepEqual(av, bv)
}

// stripPos returns a shallow copy of t with its embedded Position zeroed,
// via reflection, so DeepEqual does not fail on position-only differences.
// Children are compared the normal recursive way since DeepEqual already
// walks pointers structurally; we only need to normalize every TermBase it
// encounters, which this does by operating on a copy's addressable fields.
func stripPos(t model.Term) model.Term {
	v := reflect.ValueOf(t)
	if v.Kind() != reflect.Ptr {
		return t
	}
	cp := reflect.New(v.Elem().Type())
	cp.Elem().Set(v.Elem())
	zeroPositions(cp.Elem())
	return cp.Interface().(model.Term)
}

func zeroPositions(v reflect.Value) {
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if !f.CanSet() {
				continue
			}
			if f.Type() == reflect.TypeOf(model.TermBase{}) {
				tb := f.Addr().Interface().(*model.TermBase)
				tb.P = model.NoPos
				continue
			}
			zeroPositions(f)
		}
	case reflect.Ptr:
		if !v.IsNil() {
			zeroPositions(v.Elem())
		}
	}
}
