package misc

import (
	"reflect"
	"testing"
)

func Test_WrapText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		width    int
		expected []string
	}{
		{name: "empty input", input: "", width: 10, expected: []string{""}},
		{name: "fits", input: "hello there", width: 20, expected: []string{"hello there"}},
		{name: "exact fit", input: "hello there", width: 11, expected: []string{"hello there"}},
		{name: "wraps", input: "hello there friend", width: 11, expected: []string{"hello there", "friend"}},
		{name: "collapses whitespace", input: "a \t\n b", width: 10, expected: []string{"a b"}},
		{name: "breaks long word", input: "abcdefgh", width: 4, expected: []string{"abc-", "def-", "gh"}},
		{name: "long word after short", input: "a abcdefgh", width: 4, expected: []string{"a", "abc-", "def-", "gh"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := WrapText(tc.input, tc.width)
			if !reflect.DeepEqual(tc.expected, actual) {
				t.Fatalf("expected %q but got %q", tc.expected, actual)
			}
		})
	}
}

func Test_JustifyText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{name: "no gaps", input: "hello", width: 10, expected: "hello"},
		{name: "already wide", input: "hello there", width: 5, expected: "hello there"},
		{name: "one gap", input: "a b", width: 6, expected: "a    b"},
		{name: "alternates sides", input: "a b c", width: 7, expected: "a  b  c"},
		{name: "extra wraps around", input: "a b c", width: 8, expected: "a  b   c"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := JustifyText(tc.input, tc.width)
			if actual != tc.expected {
				t.Fatalf("expected %q but got %q", tc.expected, actual)
			}
		})
	}
}

func Test_JustifyTextBlock(t *testing.T) {
	actual := JustifyTextBlock([]string{"a b", "c d"}, 5)
	expected := []string{"a   b", "c d"}
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %q but got %q", expected, actual)
	}
}

func Test_CountOf(t *testing.T) {
	testCases := []struct {
		count    int
		expected string
	}{
		{0, "0 keys"},
		{1, "1 key"},
		{2, "2 keys"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			actual := CountOf("key", "keys", tc.count)
			if actual != tc.expected {
				t.Fatalf("expected %q but got %q", tc.expected, actual)
			}
		})
	}
}
