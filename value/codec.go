package value

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

// MarshalJSON encodes v as plain JSON. Objects keep their key order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		return v.obj.MarshalJSON()
	}
	return nil, fmt.Errorf("value: cannot marshal kind %s", v.kind)
}

// UnmarshalJSON decodes any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeJSON(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// MarshalJSON encodes m as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		e, _ := m.Get(k)
		vb, err := e.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order. JSON null
// yields an empty map.
func (m *Map) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	switch v.kind {
	case KindNull:
		*m = *NewMap()
		return nil
	case KindObject:
		*m = *v.obj
		return nil
	}
	return fmt.Errorf("value: expected object, got %s", v.kind)
}

func decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("value: bad number %q: %w", t, err)
		}
		return Number(n), nil
	case json.Delim:
		switch t {
		case '[':
			elems := []Value{}
			for dec.More() {
				e, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, e)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(elems...), nil
		case '{':
			m := NewMap()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("value: object key is %T", kt)
				}
				e, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, e)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Object(m), nil
		}
	}
	return Value{}, fmt.Errorf("value: unexpected JSON token %v", tok)
}

// ---------------------------------------------------------------------------
// CBOR
// ---------------------------------------------------------------------------

type wireValue struct {
	Kind Kind    `cbor:"k"`
	Str  string  `cbor:"s,omitempty"`
	Num  float64 `cbor:"n,omitempty"`
	Bool bool    `cbor:"b,omitempty"`
	Arr  []Value `cbor:"a,omitempty"`
	Obj  *Map    `cbor:"o,omitempty"`
}

type wirePair struct {
	_     struct{} `cbor:",toarray"`
	Key   string
	Value Value
}

// MarshalCBOR encodes v as a tagged record so the variant survives.
func (v Value) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(wireValue{Kind: v.kind, Str: v.str, Num: v.num, Bool: v.b, Arr: v.arr, Obj: v.obj})
}

// UnmarshalCBOR decodes a record written by MarshalCBOR.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case KindNull:
		*v = Null()
	case KindString:
		*v = String(w.Str)
	case KindNumber:
		*v = Number(w.Num)
	case KindBool:
		*v = Bool(w.Bool)
	case KindArray:
		*v = Array(w.Arr...)
	case KindObject:
		*v = Object(w.Obj)
	default:
		return fmt.Errorf("value: unknown CBOR kind %d", w.Kind)
	}
	return nil
}

// MarshalCBOR encodes m as an ordered array of key/value pairs.
func (m *Map) MarshalCBOR() ([]byte, error) {
	pairs := make([]wirePair, 0, m.Len())
	for _, k := range m.Keys() {
		e, _ := m.Get(k)
		pairs = append(pairs, wirePair{Key: k, Value: e})
	}
	return cbor.Marshal(pairs)
}

// UnmarshalCBOR decodes pairs written by MarshalCBOR.
func (m *Map) UnmarshalCBOR(data []byte) error {
	var pairs []wirePair
	if err := cbor.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := NewMap()
	for _, p := range pairs {
		out.Set(p.Key, p.Value)
	}
	*m = *out
	return nil
}
