// Package value defines the closed set of field values a XenoScript node
// can hold: string, number, boolean, null, array and object.
package value

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindString: "string",
	KindNumber: "number",
	KindBool:   "boolean",
	KindArray:  "array",
	KindObject: "object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged union. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  *Map
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array returns an array value holding elems.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, arr: elems}
}

// Object returns an object value backed by m. A nil map yields an empty object.
func Object(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindObject, obj: m}
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsArray returns the array elements. The slice is shared with v.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsObject returns the object payload. The map is shared with v.
func (v Value) AsObject() (*Map, bool) { return v.obj, v.kind == KindObject }

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Clone()
		}
		return Value{kind: KindArray, arr: out}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	}
	return v
}

// Equal reports deep equality. Object comparison ignores key order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.str == b.str
	case KindNumber:
		return a.num == b.num
	case KindBool:
		return a.b == b.b
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return a.obj.Equal(b.obj)
	}
	return false
}

// String renders v in XenoScript literal syntax.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

// Text renders v for prose: strings are unquoted, everything else as String.
func (v Value) Text() string {
	if v.kind == KindString {
		return v.str
	}
	return v.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindString:
		sb.WriteString(Quote(v.str))
	case KindNumber:
		sb.WriteString(FormatNumber(v.num))
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.write(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(FormatKey(k))
			sb.WriteString(": ")
			e, _ := v.obj.Get(k)
			e.write(sb)
		}
		sb.WriteByte('}')
	}
}

// FormatNumber prints integral values without a fractional part.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FormatKey quotes a field key only when it is not a plain identifier.
func FormatKey(k string) string {
	if isPlainKey(k) {
		return k
	}
	return Quote(k)
}

// Quote writes s as a double-quoted literal using only the escapes the
// lexer decodes: \\ \" \n \t. Every other byte is written as is.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '"':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func isPlainKey(k string) bool {
	if k == "" {
		return false
	}
	for i, r := range k {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	switch k {
	case "true", "false", "null":
		return false
	}
	return true
}
