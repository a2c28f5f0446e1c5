package event

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// Parse decodes a JSON document into a Value, keeping object key order and
// the exact text of numbers.
func Parse(b []byte) (*Value, error) {
	if !utf8.Valid(b) {
		return nil, errors.New("event: document is not valid UTF-8")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Newf("event: unexpected data after top-level value at offset %d", dec.InputOffset())
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	parsed, err := Parse(b)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrapf(err, "event: decoding at offset %d", dec.InputOffset())
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []*Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, errors.Wrap(err, "event: unterminated array")
			}
			return Array(items...), nil
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, errors.Wrap(err, "event: reading object key")
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, errors.Newf("event: object key is %T, not string", keyTok)
				}
				field, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, field)
			}
			if _, err := dec.Token(); err != nil {
				return nil, errors.Wrap(err, "event: unterminated object")
			}
			return ObjectValue(obj), nil
		}
	}
	return nil, errors.Newf("event: unexpected token %v", tok)
}

// MarshalJSON implements json.Marshaler. Object fields are written in
// insertion order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v *Value) error {
	if v.IsNull() {
		buf.WriteString("null")
		return nil
	}
	switch v.Kind {
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case KindNumber:
		if v.Number == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.Number.String())
		}
	case KindString:
		return writeString(buf, v.String)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, key := range v.Object.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			field, _ := v.Object.Get(key)
			if err := writeValue(buf, field); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errors.Newf("event: cannot encode value of kind %d", v.Kind)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// FromAny converts the output of encoding/json (or any similarly shaped Go
// value) into a Value. Map keys are sorted because Go maps carry no order.
func FromAny(in any) (*Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case *Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case float64:
		return Float(t), nil
	case float32:
		return Float(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case []any:
		items := make([]*Value, 0, len(t))
		for _, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case []string:
		items := make([]*Value, 0, len(t))
		for _, item := range t {
			items = append(items, String(item))
		}
		return Array(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, v)
		}
		return ObjectValue(obj), nil
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			obj.Set(k, String(t[k]))
		}
		return ObjectValue(obj), nil
	}
	return nil, errors.Newf("event: unsupported Go type %T", in)
}
