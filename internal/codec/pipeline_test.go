package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
)

func testPipelines(t *testing.T) []Pipeline {
	sealer, err := NewSealer([]byte("test key"))
	if err != nil {
		t.Fatalf("prep step: creating sealer failed: %v", err)
	}
	return []Pipeline{
		{},
		{Compression: true},
		{Sealer: sealer},
		{Compression: true, Sealer: sealer},
	}
}

func Test_Pipeline_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		doc  Document
	}{
		{name: "nil document", doc: nil},
		{name: "empty document", doc: Document{}},
		{name: "scalars", doc: Document{"s": "text", "i": int64(-4), "f": 2.5, "b": false, "n": nil}},
		{name: "nested", doc: Document{"a": map[string]interface{}{"b": []interface{}{int64(1), "two", map[string]interface{}{}}}}},
		{name: "html is not escaped", doc: Document{"h": "<a href=\"x\">&</a>"}},
		{name: "unicode", doc: Document{"日本": "語", "emoji": "\U0001F600"}},
		{name: "beyond float precision", doc: Document{"big": int64(1<<62 + 1)}},
		{name: "beyond int64", doc: Document{"huge": json.Number("123456789012345678901234567890")}},
		{name: "integral floats", doc: Document{"one": 1.0, "negzero": math.Copysign(0, -1), "big": 1e20, "list": []interface{}{3.0, int64(3)}}},
		{name: "large repetitive", doc: Document{"blob": strings.Repeat("abcdefgh", 10000)}},
	}

	for _, p := range testPipelines(t) {
		for _, tc := range testCases {
			t.Run(fmt.Sprintf("%s: %s", p.Header(), tc.name), func(t *testing.T) {
				data, err := p.Encode(tc.doc)
				if err != nil {
					t.Fatalf("encode returned an error: %v", err)
				}

				actual, err := p.Decode(data)
				if err != nil {
					t.Fatalf("decode returned an error: %v", err)
				}

				if !reflect.DeepEqual(tc.doc, actual) {
					t.Fatalf("expected %#v but got %#v", tc.doc, actual)
				}
			})
		}
	}
}

func Test_Pipeline_Encode_NilIsEmpty(t *testing.T) {
	for _, p := range testPipelines(t) {
		t.Run(p.Header().String(), func(t *testing.T) {
			data, err := p.Encode(nil)
			if err != nil {
				t.Fatalf("returned an error: %v", err)
			}
			if len(data) != 0 {
				t.Fatalf("expected 0 bytes but got %d", len(data))
			}
		})
	}
}

func Test_Pipeline_Encode_FreshNonce(t *testing.T) {
	sealer, err := NewSealer([]byte("k"))
	if err != nil {
		t.Fatalf("prep step: creating sealer failed: %v", err)
	}
	p := Pipeline{Sealer: sealer}
	doc := Document{"same": "content"}

	first, err := p.Encode(doc)
	if err != nil {
		t.Fatalf("encode returned an error: %v", err)
	}
	second, err := p.Encode(doc)
	if err != nil {
		t.Fatalf("encode returned an error: %v", err)
	}

	if bytes.Equal(first, second) {
		t.Fatalf("expected two encodings of the same document to differ")
	}
}

func Test_Pipeline_Compression_Shrinks(t *testing.T) {
	doc := Document{"blob": strings.Repeat("all work and no play ", 2000)}

	plain, err := Pipeline{}.Encode(doc)
	if err != nil {
		t.Fatalf("encode returned an error: %v", err)
	}
	compressed, err := Pipeline{Compression: true}.Encode(doc)
	if err != nil {
		t.Fatalf("encode returned an error: %v", err)
	}

	if len(compressed) >= len(plain) {
		t.Fatalf("expected compressed size %d to be smaller than %d", len(compressed), len(plain))
	}
}

func Test_Pipeline_Decode_Errors(t *testing.T) {
	sealer, err := NewSealer([]byte("right"))
	if err != nil {
		t.Fatalf("prep step: creating sealer failed: %v", err)
	}
	wrong, err := NewSealer([]byte("wrong"))
	if err != nil {
		t.Fatalf("prep step: creating sealer failed: %v", err)
	}
	sealed := Pipeline{Sealer: sealer, Compression: true}
	good, err := sealed.Encode(Document{"a": int64(1)})
	if err != nil {
		t.Fatalf("prep step: encode failed: %v", err)
	}
	plainGood, err := Pipeline{}.Encode(Document{"a": int64(1)})
	if err != nil {
		t.Fatalf("prep step: encode failed: %v", err)
	}

	flipped := func(data []byte, i int) []byte {
		c := append([]byte(nil), data...)
		c[i] ^= 0x80
		return c
	}
	withPayload := func(payload string) []byte {
		return append([]byte(Magic+"\x01\x00"), payload...)
	}

	testCases := []struct {
		name      string
		p         Pipeline
		data      []byte
		expectErr error
	}{
		{name: "wrong key", p: Pipeline{Sealer: wrong, Compression: true}, data: good, expectErr: ErrIntegrity},
		{name: "tampered tag", p: sealed, data: flipped(good, len(good)-1), expectErr: ErrIntegrity},
		{name: "tampered nonce", p: sealed, data: flipped(good, baseHeaderLen), expectErr: ErrIntegrity},
		{name: "truncated ciphertext", p: sealed, data: good[:len(good)-3], expectErr: ErrIntegrity},
		{name: "tampered version", p: sealed, data: flipped(good, len(Magic)), expectErr: ErrCorrupt},
		{name: "bad magic", p: Pipeline{}, data: []byte("{\"a\": 1}"), expectErr: ErrCorrupt},
		{name: "short header", p: Pipeline{}, data: []byte("SD"), expectErr: ErrCorrupt},
		{name: "unknown flags", p: Pipeline{}, data: []byte(Magic + "\x01\x80{}"), expectErr: ErrCorrupt},
		{name: "sealed header missing nonce", p: sealed, data: []byte(Magic + "\x01\x03abc"), expectErr: ErrCorrupt},
		{name: "not an object", p: Pipeline{}, data: withPayload("[1, 2]"), expectErr: ErrCorrupt},
		{name: "null payload", p: Pipeline{}, data: withPayload("null"), expectErr: ErrCorrupt},
		{name: "invalid json", p: Pipeline{}, data: withPayload("{\"a\":"), expectErr: ErrCorrupt},
		{name: "trailing data", p: Pipeline{}, data: withPayload("{} {}"), expectErr: ErrCorrupt},
		{name: "not zstd", p: Pipeline{Compression: true}, data: append([]byte(Magic+"\x01\x01"), "plainly not zstd"...), expectErr: ErrCorrupt},
		{name: "sealed read as plain", p: Pipeline{}, data: good, expectErr: ErrFormatMismatch},
		{name: "plain read as sealed", p: sealed, data: plainGood, expectErr: ErrFormatMismatch},
		{name: "compressed flag missing", p: Pipeline{Sealer: sealer}, data: good, expectErr: ErrFormatMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.p.Decode(tc.data)
			if err == nil {
				t.Fatalf("expected an error but nil error was returned")
			}
			if !errors.Is(err, tc.expectErr) {
				t.Fatalf("expected error to be %v but got: %v", tc.expectErr, err)
			}
		})
	}
}

func Test_Pipeline_Encode_Unserializable(t *testing.T) {
	_, err := Pipeline{}.Encode(Document{"c": make(chan int)})
	if err == nil {
		t.Fatalf("expected an error but nil error was returned")
	}
}

func Test_ReadHeader(t *testing.T) {
	sealer, err := NewSealer([]byte("k"))
	if err != nil {
		t.Fatalf("prep step: creating sealer failed: %v", err)
	}

	testCases := []struct {
		name     string
		p        Pipeline
		expected string
	}{
		{name: "plain", p: Pipeline{}, expected: "SDOC v1 [json]"},
		{name: "compressed", p: Pipeline{Compression: true}, expected: "SDOC v1 [json -> zstd]"},
		{name: "sealed", p: Pipeline{Sealer: sealer}, expected: "SDOC v1 [json -> xchacha20-poly1305]"},
		{name: "both", p: Pipeline{Compression: true, Sealer: sealer}, expected: "SDOC v1 [json -> zstd -> xchacha20-poly1305]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.p.Encode(Document{"x": "y"})
			if err != nil {
				t.Fatalf("prep step: encode failed: %v", err)
			}

			h, err := ReadHeader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("returned an error: %v", err)
			}
			if h.String() != tc.expected {
				t.Fatalf("expected %q but got %q", tc.expected, h.String())
			}
			if h.Sealed && !bytes.Equal(h.Nonce, data[baseHeaderLen:h.Len()]) {
				t.Fatalf("expected nonce to be read from the header")
			}
		})
	}
}

func Test_JSONSerializer_Indent(t *testing.T) {
	js := JSONSerializer{Indent: "  "}
	data, err := js.Serialize(Document{"a": int64(1)})
	if err != nil {
		t.Fatalf("returned an error: %v", err)
	}

	expected := "{\n  \"a\": 1\n}"
	if string(data) != expected {
		t.Fatalf("expected %q but got %q", expected, string(data))
	}
}

func Test_JSONSerializer_Numbers(t *testing.T) {
	testCases := []struct {
		input    string
		expected interface{}
	}{
		{input: "0", expected: int64(0)},
		{input: "-17", expected: int64(-17)},
		{input: "9223372036854775807", expected: int64(9223372036854775807)},
		{input: "9223372036854775808", expected: json.Number("9223372036854775808")},
		{input: "1.5", expected: 1.5},
		{input: "1e3", expected: 1000.0},
		{input: "2.0", expected: 2.0},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			doc, err := JSONSerializer{}.Deserialize([]byte(`{"n": ` + tc.input + `}`))
			if err != nil {
				t.Fatalf("returned an error: %v", err)
			}
			if !reflect.DeepEqual(tc.expected, doc["n"]) {
				t.Fatalf("expected %#v but got %#v", tc.expected, doc["n"])
			}
		})
	}
}

func Test_JSONSerializer_Serialize_Floats(t *testing.T) {
	testCases := []struct {
		name      string
		input     interface{}
		expected  string
		expectErr bool
	}{
		{name: "integral float", input: 1.0, expected: `{"n":1.0}`},
		{name: "zero", input: 0.0, expected: `{"n":0.0}`},
		{name: "negative zero", input: math.Copysign(0, -1), expected: `{"n":-0.0}`},
		{name: "large float", input: 1e20, expected: `{"n":1e+20}`},
		{name: "fraction", input: 0.25, expected: `{"n":0.25}`},
		{name: "float32", input: float32(2), expected: `{"n":2.0}`},
		{name: "int is unchanged", input: int64(1), expected: `{"n":1}`},
		{name: "nested in list", input: []interface{}{4.0}, expected: `{"n":[4.0]}`},
		{name: "NaN", input: math.NaN(), expectErr: true},
		{name: "infinity", input: math.Inf(1), expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := Document{"n": tc.input}
			data, err := JSONSerializer{}.Serialize(doc)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected an error but got output %q", string(data))
				}
				return
			}
			if err != nil {
				t.Fatalf("returned an error: %v", err)
			}
			if string(data) != tc.expected {
				t.Fatalf("expected %q but got %q", tc.expected, string(data))
			}
			if !reflect.DeepEqual(Document{"n": tc.input}, doc) {
				t.Fatalf("expected input document to be unmodified but got %#v", doc)
			}
		})
	}
}

func Test_Document_Clone(t *testing.T) {
	original := Document{
		"list": []interface{}{map[string]interface{}{"k": "v"}},
		"map":  map[string]interface{}{"inner": []interface{}{int64(1)}},
		"int":  7,
	}

	c := original.Clone()
	c["list"].([]interface{})[0].(map[string]interface{})["k"] = "changed"
	c["map"].(map[string]interface{})["inner"].([]interface{})[0] = int64(2)

	if original["list"].([]interface{})[0].(map[string]interface{})["k"] != "v" {
		t.Fatalf("expected nested map in list to be copied")
	}
	if original["map"].(map[string]interface{})["inner"].([]interface{})[0] != int64(1) {
		t.Fatalf("expected nested list in map to be copied")
	}
	if c["int"] != int64(7) {
		t.Fatalf("expected int to be normalized to int64 but got %#v", c["int"])
	}

	var none Document
	if none.Clone() != nil {
		t.Fatalf("expected clone of nil document to be nil")
	}
}

func Test_Document_Clone_TypedValues(t *testing.T) {
	type label string
	type point struct {
		X int `json:"x"`
	}
	seven := 7

	testCases := []struct {
		name     string
		input    interface{}
		expected interface{}
	}{
		{name: "string slice", input: []string{"a", "b"}, expected: []interface{}{"a", "b"}},
		{name: "int slice", input: []int{1, 2}, expected: []interface{}{int64(1), int64(2)}},
		{name: "float slice", input: []float64{1.0}, expected: []interface{}{1.0}},
		{name: "array", input: [2]bool{true, false}, expected: []interface{}{true, false}},
		{name: "nil slice", input: []string(nil), expected: nil},
		{name: "bytes", input: []byte("hi"), expected: "aGk="},
		{name: "string map", input: map[string]string{"k": "v"}, expected: map[string]interface{}{"k": "v"}},
		{name: "map of slices", input: map[string][]int{"k": {3}}, expected: map[string]interface{}{"k": []interface{}{int64(3)}}},
		{name: "slice of maps", input: []map[string]interface{}{{"k": "v"}}, expected: []interface{}{map[string]interface{}{"k": "v"}}},
		{name: "int keyed map", input: map[int]string{1: "one"}, expected: map[string]interface{}{"1": "one"}},
		{name: "named string", input: label("x"), expected: "x"},
		{name: "small int", input: int8(-3), expected: int64(-3)},
		{name: "huge uint", input: uint64(math.MaxUint64), expected: json.Number("18446744073709551615")},
		{name: "pointer", input: &seven, expected: int64(7)},
		{name: "struct", input: point{X: 4}, expected: map[string]interface{}{"x": int64(4)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Document{"v": tc.input}.Clone()
			if !reflect.DeepEqual(tc.expected, c["v"]) {
				t.Fatalf("expected %#v but got %#v", tc.expected, c["v"])
			}
		})
	}
}

func Test_Document_Clone_TypedContainersAreCopied(t *testing.T) {
	list := []string{"a"}
	m := map[string]string{"k": "v"}
	original := Document{"list": list, "map": m}

	c := original.Clone()
	list[0] = "changed"
	m["k"] = "changed"

	expected := Document{"list": []interface{}{"a"}, "map": map[string]interface{}{"k": "v"}}
	if !reflect.DeepEqual(expected, c) {
		t.Fatalf("expected %v but got %v", expected, c)
	}
}

func Test_DeriveKey(t *testing.T) {
	a1, err := DeriveKey([]byte("material"))
	if err != nil {
		t.Fatalf("returned an error: %v", err)
	}
	a2, err := DeriveKey([]byte("material"))
	if err != nil {
		t.Fatalf("returned an error: %v", err)
	}
	b, err := DeriveKey([]byte("other material"))
	if err != nil {
		t.Fatalf("returned an error: %v", err)
	}

	if len(a1) != KeySize {
		t.Fatalf("expected key of %d bytes but got %d", KeySize, len(a1))
	}
	if !bytes.Equal(a1, a2) {
		t.Fatalf("expected same material to derive the same key")
	}
	if bytes.Equal(a1, b) {
		t.Fatalf("expected different material to derive different keys")
	}
	if _, err := DeriveKey(nil); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey but got: %v", err)
	}
}
