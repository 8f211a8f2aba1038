package values

import (
	"reflect"
	"sort"
	"time"
)

// Clone deep-copies map and list nodes, typed slices and maps included,
// keeping their Go types. Other leaves are copied by value.
func Clone(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return CloneMap(n)
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = Clone(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(cloneValue(rv.Index(i)))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out.Interface()
	}
	return v
}

// cloneValue clones an element read through reflection, returning a value
// assignable to the element's type.
func cloneValue(elem reflect.Value) reflect.Value {
	if !elem.CanInterface() {
		return elem
	}
	c := Clone(elem.Interface())
	if c == nil {
		return reflect.Zero(elem.Type())
	}
	return reflect.ValueOf(c)
}

// CloneMap deep-copies a tree. A nil tree yields an empty one.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

// Equal reports structural equality. Times compare with time.Equal,
// numbers compare by value across Go numeric types, and map entries keyed
// "ref" are not compared (only their presence is).
func Equal(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok {
				return false
			}
			if k != "ref" && !Equal(xv, yv) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	if b == nil {
		return false
	}
	if xf, ok := ToFloat(a); ok {
		if yf, ok := ToFloat(b); ok {
			return xf == yf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// ToFloat converts Go numeric types to float64. Strings are not converted.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// DirtyPaths compares current against defaults and returns the sorted leaf
// paths that differ. Leaves present only in current count as dirty; a
// default subtree whose counterpart in current is missing or scalar is
// dirty leaf by leaf.
func DirtyPaths(defaults, current map[string]any) []string {
	dirty := make(map[string]bool)
	markDirty(current, "", dirty)
	compareDefaults(defaults, current, "", dirty)

	out := make([]string, 0, len(dirty))
	for p, d := range dirty {
		if d {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func markDirty(node any, prefix string, dirty map[string]bool) {
	for _, k := range keys(node) {
		v, _ := Child(node, k)
		p := Join(prefix, k)
		if IsContainer(v) {
			markDirty(v, p, dirty)
		} else if v != nil {
			dirty[p] = true
		}
	}
}

func compareDefaults(def, cur any, prefix string, dirty map[string]bool) {
	for _, k := range keys(def) {
		dv, _ := Child(def, k)
		cv, _ := Child(cur, k)
		p := Join(prefix, k)
		if !IsContainer(dv) {
			dirty[p] = !Equal(dv, cv)
			continue
		}
		if cur == nil || !IsContainer(cv) {
			delete(dirty, p)
			markDirty(dv, p, dirty)
			continue
		}
		compareDefaults(dv, cv, p, dirty)
	}
}
