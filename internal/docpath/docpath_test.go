package docpath

import (
	"errors"
	"reflect"
	"testing"

	"dekarrin/sealdoc/internal/codec"
)

func testDoc() codec.Document {
	return codec.Document{
		"name": "cluster",
		"servers": []interface{}{
			map[string]interface{}{"host": "alpha", "port": int64(80)},
			map[string]interface{}{"host": "beta", "port": int64(81)},
		},
		"limits": map[string]interface{}{"cpu": int64(4)},
	}
}

func Test_Get(t *testing.T) {
	testCases := []struct {
		path      string
		expected  interface{}
		expectErr error
	}{
		{path: "name", expected: "cluster"},
		{path: "servers.1.host", expected: "beta"},
		{path: "limits", expected: map[string]interface{}{"cpu": int64(4)}},
		{path: "", expected: map[string]interface{}(testDoc())},
		{path: "missing", expectErr: ErrNotFound},
		{path: "servers.2", expectErr: ErrBadIndex},
		{path: "servers.x", expectErr: ErrBadIndex},
		{path: "name.first", expectErr: ErrNotContainer},
	}

	for _, tc := range testCases {
		t.Run("path "+tc.path, func(t *testing.T) {
			actual, err := Get(testDoc(), tc.path)

			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Fatalf("expected error to be %v but got: %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("returned an error: %v", err)
			}
			if !reflect.DeepEqual(tc.expected, actual) {
				t.Fatalf("expected %v but got %v", tc.expected, actual)
			}
		})
	}
}

func Test_Get_NilDocument(t *testing.T) {
	if _, err := Get(nil, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound but got: %v", err)
	}
}

func Test_Set(t *testing.T) {
	testCases := []struct {
		name      string
		path      string
		value     interface{}
		check     string
		expected  interface{}
		expectErr error
	}{
		{name: "replace scalar", path: "name", value: "renamed", check: "name", expected: "renamed"},
		{name: "new top-level key", path: "added", value: true, check: "added", expected: true},
		{name: "creates objects", path: "a.b.c", value: int64(1), check: "a.b", expected: map[string]interface{}{"c": int64(1)}},
		{name: "into list item", path: "servers.0.port", value: int64(8080), check: "servers.0.port", expected: int64(8080)},
		{name: "append to list", path: "servers.2", value: "gamma", check: "servers.2", expected: "gamma"},
		{name: "past end of list", path: "servers.3", value: "x", expectErr: ErrBadIndex},
		{name: "through end of list", path: "servers.2.host", value: "x", expectErr: ErrBadIndex},
		{name: "through scalar", path: "name.first", value: "x", expectErr: ErrNotContainer},
		{name: "root to non-object", path: "", value: []interface{}{}, expectErr: ErrRoot},
		{name: "root to object", path: "", value: map[string]interface{}{"only": "this"}, check: "", expected: map[string]interface{}{"only": "this"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Set(testDoc(), tc.path, tc.value)

			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Fatalf("expected error to be %v but got: %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("returned an error: %v", err)
			}

			actual, err := Get(doc, tc.check)
			if err != nil {
				t.Fatalf("get after set returned an error: %v", err)
			}
			if !reflect.DeepEqual(tc.expected, actual) {
				t.Fatalf("expected %v but got %v", tc.expected, actual)
			}
		})
	}
}

func Test_Set_NilDocument(t *testing.T) {
	doc, err := Set(nil, "a", int64(1))
	if err != nil {
		t.Fatalf("returned an error: %v", err)
	}
	expected := codec.Document{"a": int64(1)}
	if !reflect.DeepEqual(expected, doc) {
		t.Fatalf("expected %v but got %v", expected, doc)
	}
}

func Test_Delete(t *testing.T) {
	testCases := []struct {
		name      string
		path      string
		expected  codec.Document
		expectErr error
	}{
		{
			name: "object key",
			path: "limits.cpu",
			expected: func() codec.Document {
				d := testDoc()
				d["limits"] = map[string]interface{}{}
				return d
			}(),
		},
		{
			name: "list item shifts",
			path: "servers.0",
			expected: func() codec.Document {
				d := testDoc()
				d["servers"] = []interface{}{map[string]interface{}{"host": "beta", "port": int64(81)}}
				return d
			}(),
		},
		{name: "missing key", path: "nope", expectErr: ErrNotFound},
		{name: "bad index", path: "servers.5", expectErr: ErrBadIndex},
		{name: "root", path: "", expectErr: ErrRoot},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := Delete(testDoc(), tc.path)

			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Fatalf("expected error to be %v but got: %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("returned an error: %v", err)
			}
			if !reflect.DeepEqual(tc.expected, actual) {
				t.Fatalf("expected %v but got %v", tc.expected, actual)
			}
		})
	}
}

func Test_Keys(t *testing.T) {
	testCases := []struct {
		path      string
		expected  []string
		expectErr error
	}{
		{path: "", expected: []string{"limits", "name", "servers"}},
		{path: "servers", expected: []string{"0", "1"}},
		{path: "servers.0", expected: []string{"host", "port"}},
		{path: "name", expectErr: ErrNotContainer},
	}

	for _, tc := range testCases {
		t.Run("path "+tc.path, func(t *testing.T) {
			actual, err := Keys(testDoc(), tc.path)

			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Fatalf("expected error to be %v but got: %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("returned an error: %v", err)
			}
			if !reflect.DeepEqual(tc.expected, actual) {
				t.Fatalf("expected %v but got %v", tc.expected, actual)
			}
		})
	}
}
