// Package docpath addresses values inside a codec.Document by dotted path.
// Each segment of a path is a key of an object, or a zero-based index of a
// list: "servers.0.host" is the "host" key of the first item of the
// "servers" list. The empty path is the document itself.
package docpath

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dekarrin/sealdoc/internal/codec"
)

var (
	// ErrNotFound is returned when a path does not lead to a value.
	ErrNotFound = errors.New("no value at path")

	// ErrNotContainer is returned when a path goes through a value that is
	// neither an object nor a list.
	ErrNotContainer = errors.New("not an object or list")

	// ErrBadIndex is returned when a list is indexed with something that is
	// not an in-range integer.
	ErrBadIndex = errors.New("bad list index")

	// ErrRoot is returned when an operation that needs a parent is given the
	// empty path, or the root is replaced with something that is not an
	// object.
	ErrRoot = errors.New("invalid operation on document root")
)

// Split breaks path into its segments. The empty path has no segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get returns the value at path. Containers in the result are shared with
// doc, not copied.
func Get(doc codec.Document, path string) (interface{}, error) {
	if doc == nil {
		return nil, fmt.Errorf("%q: %w", path, ErrNotFound)
	}
	var cur interface{} = map[string]interface{}(doc)
	for i, seg := range Split(path) {
		next, err := child(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", joinUpTo(path, i), err)
		}
		cur = next
	}
	return cur, nil
}

// Set stores value at path and returns the resulting document. Missing
// objects along the way are created; lists are never grown except by setting
// the index one past the end, which appends. Setting the empty path replaces
// the whole document, and value must then be an object.
//
// doc is modified in place where possible, but callers must use the returned
// Document.
func Set(doc codec.Document, path string, value interface{}) (codec.Document, error) {
	segs := Split(path)
	if len(segs) == 0 {
		m, ok := asMap(value)
		if !ok {
			return doc, fmt.Errorf("%w: document must be an object", ErrRoot)
		}
		return codec.Document(m), nil
	}
	if doc == nil {
		doc = codec.Document{}
	}
	root, err := setIn(map[string]interface{}(doc), segs, value, path, 0)
	if err != nil {
		return doc, err
	}
	return codec.Document(root.(map[string]interface{})), nil
}

func setIn(container interface{}, segs []string, value interface{}, path string, depth int) (interface{}, error) {
	seg := segs[0]
	last := len(segs) == 1

	switch c := container.(type) {
	case map[string]interface{}:
		if last {
			c[seg] = value
			return c, nil
		}
		next, ok := c[seg]
		if !ok || next == nil {
			next = map[string]interface{}{}
		}
		updated, err := setIn(next, segs[1:], value, path, depth+1)
		if err != nil {
			return nil, err
		}
		c[seg] = updated
		return c, nil
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx > len(c) {
			return nil, fmt.Errorf("%q: %w: %s", joinUpTo(path, depth), ErrBadIndex, seg)
		}
		if idx == len(c) {
			if !last {
				return nil, fmt.Errorf("%q: %w: %s", joinUpTo(path, depth), ErrBadIndex, seg)
			}
			return append(c, value), nil
		}
		if last {
			c[idx] = value
			return c, nil
		}
		updated, err := setIn(c[idx], segs[1:], value, path, depth+1)
		if err != nil {
			return nil, err
		}
		c[idx] = updated
		return c, nil
	default:
		return nil, fmt.Errorf("%q: %w", joinUpTo(path, depth-1), ErrNotContainer)
	}
}

// Delete removes the value at path and returns the resulting document.
// Deleting a list item shifts the items after it down by one.
func Delete(doc codec.Document, path string) (codec.Document, error) {
	segs := Split(path)
	if len(segs) == 0 {
		return doc, fmt.Errorf("%w: cannot delete the document itself", ErrRoot)
	}
	parentPath := strings.Join(segs[:len(segs)-1], ".")
	parent, err := Get(doc, parentPath)
	if err != nil {
		return doc, err
	}
	seg := segs[len(segs)-1]

	switch p := parent.(type) {
	case map[string]interface{}:
		if _, ok := p[seg]; !ok {
			return doc, fmt.Errorf("%q: %w", path, ErrNotFound)
		}
		delete(p, seg)
		return doc, nil
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(p) {
			return doc, fmt.Errorf("%q: %w: %s", path, ErrBadIndex, seg)
		}
		shrunk := append(p[:idx:idx], p[idx+1:]...)
		return Set(doc, parentPath, shrunk)
	default:
		return doc, fmt.Errorf("%q: %w", parentPath, ErrNotContainer)
	}
}

// Keys lists what is directly under path: the sorted keys of an object, or
// the indices of a list.
func Keys(doc codec.Document, path string) ([]string, error) {
	v, err := Get(doc, path)
	if err != nil {
		return nil, err
	}
	switch c := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, nil
	case []interface{}:
		keys := make([]string, len(c))
		for i := range c {
			keys[i] = strconv.Itoa(i)
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("%q: %w", path, ErrNotContainer)
	}
}

func child(container interface{}, seg string) (interface{}, error) {
	switch c := container.(type) {
	case map[string]interface{}:
		v, ok := c[seg]
		if !ok {
			return nil, ErrNotFound
		}
		return v, nil
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil, fmt.Errorf("%w: %s", ErrBadIndex, seg)
		}
		return c[idx], nil
	default:
		return nil, ErrNotContainer
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case codec.Document:
		return m, true
	default:
		return nil, false
	}
}

// joinUpTo gives the prefix of path through segment i.
func joinUpTo(path string, i int) string {
	segs := Split(path)
	if i < 0 {
		return ""
	}
	if i >= len(segs) {
		return path
	}
	return strings.Join(segs[:i+1], ".")
}
