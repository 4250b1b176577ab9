package output

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

var (
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	timeType      = reflect.TypeOf(time.Time{})
)

// DeterministicEncode produces byte-identical JSON output
// - Stable key ordering (sorted alphabetically)
// - Float formatting: max 6 decimal places
// - Null/undefined fields omitted entirely
func DeterministicEncode(v interface{}) ([]byte, error) {
	normalized, err := normalizeValue(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(normalized); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DeterministicEncodeIndented is DeterministicEncode with indentation.
func DeterministicEncodeIndented(v interface{}, indent string) ([]byte, error) {
	normalized, err := normalizeValue(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", indent)
	if err := encoder.Encode(normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizeValue recursively converts v into maps, slices and scalars.
// Encoding/json sorts map keys, which gives the stable ordering.
func normalizeValue(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeReflect(val reflect.Value) (interface{}, error) {
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}

	// Times and custom marshalers keep their own encoding.
	if val.Type() == timeType || val.Type().Implements(marshalerType) {
		data, err := json.Marshal(val.Interface())
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	}

	switch val.Kind() {
	case reflect.Map:
		return normalizeMap(val)
	case reflect.Slice, reflect.Array:
		return normalizeSlice(val)
	case reflect.Struct:
		return normalizeStruct(val)
	case reflect.Float32, reflect.Float64:
		return RoundFloat(val.Float()), nil
	default:
		return val.Interface(), nil
	}
}

func normalizeMap(val reflect.Value) (interface{}, error) {
	if val.IsNil() || val.Len() == 0 {
		return nil, nil
	}
	result := make(map[string]interface{}, val.Len())
	iter := val.MapRange()
	for iter.Next() {
		value, err := normalizeReflect(iter.Value())
		if err != nil {
			return nil, err
		}
		if value != nil {
			result[mapKey(iter.Key())] = value
		}
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	data, err := json.Marshal(k.Interface())
	if err != nil {
		return ""
	}
	return strings.Trim(string(data), `"`)
}

func normalizeSlice(val reflect.Value) (interface{}, error) {
	if val.Kind() == reflect.Slice && val.IsNil() {
		return nil, nil
	}
	if val.Len() == 0 {
		return nil, nil
	}
	result := make([]interface{}, val.Len())
	for i := range result {
		item, err := normalizeReflect(val.Index(i))
		if err != nil {
			return nil, err
		}
		result[i] = item
	}
	return result, nil
}

func normalizeStruct(val reflect.Value) (interface{}, error) {
	result := make(map[string]interface{})
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		tagName, omitEmpty := parseJSONTag(jsonTag)
		if tagName == "" {
			tagName = field.Name
		}

		normalized, err := normalizeReflect(val.Field(i))
		if err != nil {
			return nil, err
		}
		if omitEmpty && isZeroValue(normalized) {
			continue
		}
		if normalized != nil {
			result[tagName] = normalized
		}
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// parseJSONTag parses a JSON struct tag
func parseJSONTag(tag string) (name string, omitEmpty bool) {
	if tag == "" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return parts[0], omitEmpty
}

// isZeroValue checks if a normalized value is zero/empty
func isZeroValue(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.String:
		return rv.Len() == 0
	default:
		return false
	}
}
