package value

// Map is an insertion-ordered string-keyed map of values. Re-setting an
// existing key keeps its original position.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// MapOf builds a map from alternating key/value pairs, mainly for tests.
func MapOf(pairs ...any) *Map {
	m := NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		m.Set(k, From(pairs[i+1]))
	}
	return m
}

// Len returns the number of entries. A nil map is empty.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under k.
func (m *Map) Get(k string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[k]
	return v, ok
}

// Set stores v under k.
func (m *Map) Set(k string, v Value) {
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, ok := m.vals[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.vals[k].Clone())
	}
	return out
}

// Equal compares contents irrespective of key order.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for _, k := range m.Keys() {
		ov, ok := o.Get(k)
		if !ok {
			return false
		}
		mv, _ := m.Get(k)
		if !Equal(mv, ov) {
			return false
		}
	}
	return true
}

// From converts a plain Go value into a Value. Unsupported types become null.
func From(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case float64:
		return Number(t)
	case []Value:
		return Array(t...)
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = From(e)
		}
		return Array(elems...)
	case *Map:
		return Object(t)
	case map[string]any:
		m := NewMap()
		for k, e := range t {
			m.Set(k, From(e))
		}
		return Object(m)
	}
	return Null()
}
