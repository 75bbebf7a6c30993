package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// Document is the single value persisted by a store. A nil Document means
// "no document"; an empty non-nil map is a valid, empty document.
//
// Values inside a Document are limited to what JSON can express: nil, bool,
// string, int64, float64, json.Number, []interface{}, and
// map[string]interface{}. Decoding produces int64 for every integral number
// that fits, json.Number for integral numbers that do not, and float64 for
// everything else.
type Document map[string]interface{}

// Clone returns a deep copy of the Document. Cloning a nil Document gives nil.
//
// Values of other Go types are normalized to the types listed above while
// copying, the same way they would come back from disk: typed slices and
// arrays become []interface{}, maps with string keys become
// map[string]interface{}, byte slices become base64 strings, and sized
// integers become int64.
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}
	return Document(cloneMap(doc))
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		return cloneMap(typed)
	case Document:
		return cloneMap(typed)
	case []interface{}:
		c := make([]interface{}, len(typed))
		for i := range typed {
			c[i] = cloneValue(typed[i])
		}
		return c
	case nil, bool, string, int64, float64, json.Number:
		return v
	default:
		return normalizeValue(reflect.ValueOf(v))
	}
}

func normalizeValue(rv reflect.Value) interface{} {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return json.Number(strconv.FormatUint(u, 10))
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(rv.Bytes())
		}
		return normalizeList(rv)
	case reflect.Array:
		return normalizeList(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return jsonNormalized(rv.Interface())
		}
		if rv.IsNil() {
			return nil
		}
		c := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			c[iter.Key().String()] = cloneValue(iter.Value().Interface())
		}
		return c
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return cloneValue(rv.Elem().Interface())
	default:
		return jsonNormalized(rv.Interface())
	}
}

func normalizeList(rv reflect.Value) []interface{} {
	c := make([]interface{}, rv.Len())
	for i := range c {
		c[i] = cloneValue(rv.Index(i).Interface())
	}
	return c
}

// jsonNormalized converts v to what decoding its JSON form would give. A value
// that cannot be encoded is returned as is and rejected when serialized.
func jsonNormalized(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return v
	}
	return resolveNumbers(decoded)
}
