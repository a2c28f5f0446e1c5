// Package event holds the tree of typed values that the scrubber walks.
//
// A Value is a closed tagged variant: exactly one of Null, Bool, Number,
// String, Array or Object. Containers own their children; the walker never
// aliases a node from two parents.
package event

import (
	"encoding/json"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "boolean",
	KindNumber: "number",
	KindString: "string",
	KindArray:  "array",
	KindObject: "object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// IsScalar reports whether values of this kind have no children.
func (k Kind) IsScalar() bool {
	return k != KindArray && k != KindObject
}

// Value is a single node of an event tree.
type Value struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	String string
	Array  []*Value
	Object *Object
}

func Null() *Value {
	return &Value{Kind: KindNull}
}

func Bool(b bool) *Value {
	return &Value{Kind: KindBool, Bool: b}
}

func Number(n json.Number) *Value {
	return &Value{Kind: KindNumber, Number: n}
}

func Int(i int64) *Value {
	return Number(json.Number(strconv.FormatInt(i, 10)))
}

func Float(f float64) *Value {
	return Number(json.Number(strconv.FormatFloat(f, 'g', -1, 64)))
}

func String(s string) *Value {
	return &Value{Kind: KindString, String: s}
}

func Array(items ...*Value) *Value {
	if items == nil {
		items = []*Value{}
	}
	return &Value{Kind: KindArray, Array: items}
}

// ObjectValue wraps o in a Value. A nil o yields an empty object.
func ObjectValue(o *Object) *Value {
	if o == nil {
		o = NewObject()
	}
	return &Value{Kind: KindObject, Object: o}
}

// IsNull treats a nil pointer as null too.
func (v *Value) IsNull() bool {
	return v == nil || v.Kind == KindNull
}

// Text renders a scalar the way it is matched against patterns. Containers
// and null render as the empty string.
func (v *Value) Text() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return v.Number.String()
	case KindString:
		return v.String
	default:
		return ""
	}
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	c := *v
	switch v.Kind {
	case KindArray:
		c.Array = make([]*Value, len(v.Array))
		for i, item := range v.Array {
			c.Array[i] = item.Clone()
		}
	case KindObject:
		c.Object = v.Object.Clone()
	}
	return &c
}

// Equal reports deep equality. Object key order is significant.
func (v *Value) Equal(o *Value) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber:
		return v.Number == o.Number
	case KindString:
		return v.String == o.String
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.Object.Equal(o.Object)
	}
	return false
}

// Object is an insertion-ordered map of field name to Value.
type Object struct {
	keys   []string
	fields map[string]*Value
}

func NewObject() *Object {
	return &Object{fields: map[string]*Value{}}
}

// Len returns the number of fields.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the field names in insertion order. The slice is a copy.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

func (o *Object) Get(key string) (*Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.fields[key]
	return v, ok
}

// Set replaces an existing field in place or appends a new one.
func (o *Object) Set(key string, v *Value) *Object {
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
	return o
}

// Delete removes key, keeping the order of the remaining fields.
func (o *Object) Delete(key string) bool {
	if _, ok := o.fields[key]; !ok {
		return false
	}
	delete(o.fields, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := &Object{
		keys:   append([]string(nil), o.keys...),
		fields: make(map[string]*Value, len(o.fields)),
	}
	for k, v := range o.fields {
		c.fields[k] = v.Clone()
	}
	return c
}

func (o *Object) Equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	for i, k := range o.keys {
		if other.keys[i] != k {
			return false
		}
		if !o.fields[k].Equal(other.fields[k]) {
			return false
		}
	}
	return true
}
