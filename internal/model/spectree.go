package model

import "strings"

// SpecTree is a nested snowmobile specification document. Interior nodes
// are map[string]any, leaves are scalars or []any lists. Trees originate
// from YAML catalog fixtures or JSONB columns, so numeric leaves may be
// int, int64 or float64 depending on the decoder.
type SpecTree map[string]any

// DeepCopy returns an independent copy of the tree. Nested SpecTree
// values are normalized to map[string]any on the way through.
func (t SpecTree) DeepCopy() SpecTree {
	if t == nil {
		return nil
	}
	return copyValue(map[string]any(t)).(map[string]any)
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case SpecTree:
		return copyValue(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// GetPath walks a dotted path and returns the value at its end.
func (t SpecTree) GetPath(path string) (any, bool) {
	if t == nil {
		return nil, false
	}
	cur := any(map[string]any(t))
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// SetPath writes value at the dotted path, creating intermediate maps as
// needed. A non-map intermediate is overwritten.
func (t SpecTree) SetPath(path string, value any) {
	parts := strings.Split(path, ".")
	m := map[string]any(t)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// DeletePath removes the value at the dotted path, leaving intermediate
// maps in place.
func (t SpecTree) DeletePath(path string) {
	parts := strings.Split(path, ".")
	m := map[string]any(t)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

// MergePath appends value to the list at path, creating the list when
// absent. A scalar already at the path is promoted to a one-element list
// first, and slice values are appended element-wise.
func (t SpecTree) MergePath(path string, value any) {
	existing, ok := t.GetPath(path)
	var list []any
	if ok {
		if l, isList := existing.([]any); isList {
			list = l
		} else {
			list = []any{existing}
		}
	}
	if items, isList := value.([]any); isList {
		list = append(list, items...)
	} else {
		list = append(list, value)
	}
	t.SetPath(path, list)
}

// Flatten returns dotted paths mapped to leaf values. Lists count as
// leaves.
func (t SpecTree) Flatten() map[string]any {
	out := make(map[string]any)
	if t != nil {
		flattenInto(out, "", map[string]any(t))
	}
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := asMap(v); ok && len(child) > 0 {
			flattenInto(out, key, child)
			continue
		}
		out[key] = v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case SpecTree:
		return map[string]any(m), true
	default:
		return nil, false
	}
}
