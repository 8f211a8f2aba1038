package values

import (
	"sort"
	"strconv"
)

// Get returns the value at path, or fallback when the path is missing or
// holds nil. A key that literally contains dots is found as a last resort.
func Get(tree map[string]any, path string, fallback any) any {
	if path == "" || tree == nil {
		return fallback
	}
	var cur any = tree
	for _, seg := range Parse(path) {
		next, ok := Child(cur, seg)
		if !ok {
			cur = nil
			break
		}
		cur = next
	}
	if cur == nil {
		if v, ok := tree[path]; ok && v != nil {
			return v
		}
		return fallback
	}
	return cur
}

// Lookup is Get without a fallback; ok is false when nothing is stored.
func Lookup(tree map[string]any, path string) (any, bool) {
	v := Get(tree, path, nil)
	return v, v != nil
}

// Set stores value at path, creating intermediate maps, or lists when the
// following segment is an index. Lists grow as needed.
func Set(tree map[string]any, path string, value any) {
	segs := Parse(path)
	if tree == nil || len(segs) == 0 {
		return
	}
	assign(tree, segs, value)
}

func assign(node any, segs []string, value any) any {
	key := segs[0]
	if len(segs) == 1 {
		return put(node, key, value)
	}
	next, _ := Child(node, key)
	if !IsContainer(next) {
		if IsIndex(segs[1]) {
			next = []any{}
		} else {
			next = map[string]any{}
		}
	}
	return put(node, key, assign(next, segs[1:], value))
}

func put(node any, key string, value any) any {
	switch n := node.(type) {
	case map[string]any:
		n[key] = value
		return n
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 {
			return n
		}
		for len(n) <= i {
			n = append(n, nil)
		}
		n[i] = value
		return n
	}
	return node
}

// Unset removes the value at path. Parents left empty by the removal are
// removed as well, up to (not including) the root.
func Unset(tree map[string]any, path string) {
	unsetSegments(tree, Parse(path))
}

func unsetSegments(tree map[string]any, segs []string) {
	if tree == nil || len(segs) == 0 {
		return
	}
	var parent any = tree
	if len(segs) > 1 {
		parent = walk(tree, segs[:len(segs)-1])
	}
	key := segs[len(segs)-1]
	switch p := parent.(type) {
	case map[string]any:
		delete(p, key)
	case []any:
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(p) {
			p[i] = nil
		}
	default:
		return
	}
	if len(segs) > 1 && isEmptyContainer(parent) {
		unsetSegments(tree, segs[:len(segs)-1])
	}
}

func walk(node any, segs []string) any {
	for _, seg := range segs {
		next, ok := Child(node, seg)
		if !ok {
			return nil
		}
		node = next
	}
	return node
}

// Child returns the direct child of a map or list node.
func Child(node any, key string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		v, ok := n[key]
		return v, ok
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(n) {
			return nil, false
		}
		return n[i], true
	}
	return nil, false
}

// IsContainer reports whether v is a map or list node.
func IsContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func isEmptyContainer(v any) bool {
	switch n := v.(type) {
	case map[string]any:
		return len(n) == 0
	case []any:
		for _, e := range n {
			if e != nil {
				return false
			}
		}
		return true
	}
	return false
}

// IsEmpty reports whether v is nil, an empty string, or an empty container.
func IsEmpty(v any) bool {
	switch n := v.(type) {
	case nil:
		return true
	case string:
		return n == ""
	case map[string]any:
		return len(n) == 0
	case []any:
		return len(n) == 0
	}
	return false
}

// Keys returns the child keys of a container in a stable order: indices
// ascending for lists, sorted keys for maps. Leaves have no keys.
func Keys(node any) []string {
	return keys(node)
}

func keys(node any) []string {
	switch n := node.(type) {
	case map[string]any:
		out := make([]string, 0, len(n))
		for k := range n {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	case []any:
		out := make([]string, len(n))
		for i := range n {
			out[i] = strconv.Itoa(i)
		}
		return out
	}
	return nil
}
