package ir

import "reflect"

// Compare depth sentinels accepted by EqualDepth callers.
const (
	// CompareNever treats every pair of values as equal: changes never trigger.
	CompareNever = -1
	// CompareAlways treats every pair of values as different.
	CompareAlways = -2
)

// Equal reports full structural equality.
func Equal(a, b Value) bool {
	return equalDepth(a, b, -1)
}

// EqualDepth compares a and b structurally down to depth levels.
//
// depth 0 compares by reference: two objects or arrays are equal only if they
// share the same backing storage, scalars compare by value. depth N > 0 walks
// N levels of nesting; anything deeper falls back to the reference comparison.
// The negative sentinels CompareNever and CompareAlways short-circuit.
func EqualDepth(a, b Value, depth int) bool {
	switch depth {
	case CompareNever:
		return true
	case CompareAlways:
		return false
	}
	if depth < 0 {
		depth = 0
	}
	return equalDepth(a, b, depth)
}

// equalDepth treats a negative remaining depth as unbounded.
func equalDepth(a, b Value, depth int) bool {
	a, b = normNull(a), normNull(b)
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok {
			return false
		}
		if depth == 0 {
			return SameRef(av, bv)
		}
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalDepth(av[i], bv[i], depth-1) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok {
			return false
		}
		if depth == 0 {
			return SameRef(av, bv)
		}
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !equalDepth(v, w, depth-1) {
				return false
			}
		}
		return true
	}
	return false
}

// SameRef reports whether two composite values share backing storage.
// Scalars are compared by value.
func SameRef(a, b Value) bool {
	a, b = normNull(a), normNull(b)
	switch av := a.(type) {
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		if len(av) == 0 {
			return true
		}
		return &av[0] == &bv[0]
	case Object:
		bv, ok := b.(Object)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return len(av) == 0 && len(bv) == 0
		}
		return reflect.ValueOf(av).UnsafePointer() == reflect.ValueOf(bv).UnsafePointer()
	}
	return equalDepth(a, b, 1)
}

// Diff returns the keys whose values differ between prev and next, with the
// next value (Null for removed keys). Returns nil when nothing changed.
func Diff(prev, next Object) Object {
	var out Object
	for k, v := range next {
		if w, ok := prev[k]; !ok || !Equal(v, w) {
			if out == nil {
				out = Object{}
			}
			out[k] = v
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			if out == nil {
				out = Object{}
			}
			out[k] = Null{}
		}
	}
	return out
}

func normNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}
