package mergebounce

import (
	"reflect"
)

// ArrayMode selects how two sequences are combined when both the buffered and
// the incoming value at the same place are slices or arrays.
type ArrayMode int

const (
	// ArraysOverlay replaces elements index by index, merging elements that
	// are themselves mappings or sequences. Buffered elements past the end of
	// the incoming sequence are kept.
	ArraysOverlay ArrayMode = iota

	// ArraysConcat appends the incoming elements after the buffered ones.
	ArraysConcat

	// ArraysDedupe appends the incoming elements that are not deeply equal to
	// any buffered element.
	ArraysDedupe
)

func (m ArrayMode) String() string {
	switch m {
	case ArraysOverlay:
		return "overlay"
	case ArraysConcat:
		return "concat"
	case ArraysDedupe:
		return "dedupe"
	default:
		return "unknown"
	}
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

type valueKind int

const (
	scalarKind valueKind = iota
	mappingKind
	sequenceKind
)

// MergeArgs merges args into the buffered argument list position by position
// and returns the new list. Positions missing from args keep their buffered
// value. Neither input is modified.
func MergeArgs(buffered, args []any, mode ArrayMode) []any {
	n := len(buffered)
	if len(args) > n {
		n = len(args)
	}

	out := make([]any, n)
	for i := range out {
		switch {
		case i >= len(args):
			out[i] = Clone(buffered[i])
		case i >= len(buffered):
			out[i] = Clone(args[i])
		default:
			out[i] = Merge(buffered[i], args[i], mode)
		}
	}

	return out
}

// Merge deep merges src into dst and returns the result.
//
// Two mappings merge key by key, recursively. Two sequences merge according to
// mode. In every other case, including a nil src, src replaces dst. Values taken
// from src are deep copied, so later changes to src do not leak into the result.
func Merge(dst, src any, mode ArrayMode) any {
	return toInterface(mergeValue(
		reflect.ValueOf(dst), reflect.ValueOf(src), mode,
	))
}

// Clone returns a deep copy of the maps, slices and arrays reachable from v.
// Other values are returned as is.
func Clone(v any) any {
	return toInterface(cloneValue(reflect.ValueOf(v)))
}

func mergeValue(dst, src reflect.Value, mode ArrayMode) reflect.Value {
	dst, src = unwrap(dst), unwrap(src)

	switch kd, ks := kindOf(dst), kindOf(src); {
	case kd == mappingKind && ks == mappingKind &&
		dst.Type().Key() == src.Type().Key():
		return mergeMaps(dst, src, mode)
	case kd == sequenceKind && ks == sequenceKind:
		if mode == ArraysOverlay {
			return overlaySequences(dst, src, mode)
		}

		return concatSequences(dst, src, mode)
	default:
		return cloneValue(src)
	}
}

func mergeMaps(dst, src reflect.Value, mode ArrayMode) reflect.Value {
	typ := dst.Type()
	if src.Type() != typ {
		typ = reflect.MapOf(typ.Key(), anyType)
	}
	elem := typ.Elem()

	out := reflect.MakeMapWithSize(typ, dst.Len()+src.Len())
	iter := dst.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), fit(cloneValue(iter.Value()), elem))
	}

	iter = src.MapRange()
	for iter.Next() {
		k, sv := iter.Key(), iter.Value()
		v := cloneValue(sv)
		if dv := dst.MapIndex(k); dv.IsValid() {
			if merged := mergeValue(dv, sv, mode); assignable(merged, elem) {
				v = merged
			}
		}
		out.SetMapIndex(k, fit(v, elem))
	}

	return out
}

func overlaySequences(dst, src reflect.Value, mode ArrayMode) reflect.Value {
	n := dst.Len()
	if src.Len() > n {
		n = src.Len()
	}

	var out reflect.Value
	switch typ := dst.Type(); {
	case typ == src.Type() && typ.Kind() == reflect.Array:
		out = reflect.New(typ).Elem()
	case typ == src.Type():
		out = reflect.MakeSlice(typ, n, n)
	default:
		out = reflect.MakeSlice(reflect.SliceOf(anyType), n, n)
	}
	elem := out.Type().Elem()

	for i := 0; i < n; i++ {
		var v reflect.Value
		switch {
		case i >= src.Len():
			v = cloneValue(dst.Index(i))
		case i >= dst.Len():
			v = cloneValue(src.Index(i))
		default:
			v = mergeValue(dst.Index(i), src.Index(i), mode)
			if !assignable(v, elem) {
				v = cloneValue(src.Index(i))
			}
		}
		out.Index(i).Set(fit(v, elem))
	}

	return out
}

func concatSequences(dst, src reflect.Value, mode ArrayMode) reflect.Value {
	var typ reflect.Type
	switch {
	case dst.Type() == src.Type() && dst.Kind() == reflect.Slice:
		typ = dst.Type()
	case dst.Type().Elem() == src.Type().Elem():
		typ = reflect.SliceOf(dst.Type().Elem())
	default:
		typ = reflect.SliceOf(anyType)
	}
	elem := typ.Elem()

	out := reflect.MakeSlice(typ, 0, dst.Len()+src.Len())
	for i := 0; i < dst.Len(); i++ {
		out = reflect.Append(out, fit(cloneValue(dst.Index(i)), elem))
	}
	for i := 0; i < src.Len(); i++ {
		v := src.Index(i)
		if mode == ArraysDedupe && containsEqual(dst, v) {
			continue
		}
		out = reflect.Append(out, fit(cloneValue(v), elem))
	}

	return out
}

func containsEqual(seq, v reflect.Value) bool {
	want := toInterface(v)
	for i := 0; i < seq.Len(); i++ {
		if reflect.DeepEqual(toInterface(seq.Index(i)), want) {
			return true
		}
	}

	return false
}

func cloneValue(v reflect.Value) reflect.Value {
	v = unwrap(v)
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		elem := v.Type().Elem()
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), fit(cloneValue(iter.Value()), elem))
		}

		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		if v.Type().Elem().Kind() == reflect.Uint8 {
			reflect.Copy(out, v)

			return out
		}
		elem := v.Type().Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(fit(cloneValue(v.Index(i)), elem))
		}

		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		elem := v.Type().Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(fit(cloneValue(v.Index(i)), elem))
		}

		return out
	default:
		return v
	}
}

func kindOf(v reflect.Value) valueKind {
	if !v.IsValid() {
		return scalarKind
	}

	switch v.Kind() {
	case reflect.Map:
		return mappingKind
	case reflect.Slice, reflect.Array:
		// Byte slices are opaque blobs, not sequences.
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return scalarKind
		}

		return sequenceKind
	default:
		return scalarKind
	}
}

func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}

	return v
}

func assignable(v reflect.Value, t reflect.Type) bool {
	if !v.IsValid() {
		return true
	}

	return v.Type().AssignableTo(t)
}

// fit returns v in a form that can be stored in a container element of type t.
// Invalid values (untyped nil) become the zero value of t.
func fit(v reflect.Value, t reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(t)
	}

	return v
}

func toInterface(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	return v.Interface()
}
