package syntax

import (
	"strings"

	"github.com/chazu/xenoscript/value"
)

// ---------------------------------------------------------------------------
// Canonical formatter
// ---------------------------------------------------------------------------

// Format renders a statement in canonical XenoScript. Declarations with
// more than one field, or any nested object, break across lines with
// two-space indentation. References are written as quoted strings since
// the parser stores them that way.
func Format(stmt Statement) string {
	f := &formatter{buf: &strings.Builder{}}
	f.formatStatement(stmt)
	return f.buf.String()
}

// FormatSource parses and reformats a single statement.
func FormatSource(src string) (string, error) {
	stmt, err := NewParser(src).ParseStatement()
	if err != nil {
		return "", err
	}
	if stmt == nil {
		return "", nil
	}
	return Format(stmt), nil
}

type formatter struct {
	indent int
	buf    *strings.Builder
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) writeIndent() {
	for i := 0; i < f.indent; i++ {
		f.buf.WriteString("  ")
	}
}

func (f *formatter) formatStatement(stmt Statement) {
	switch s := stmt.(type) {
	case *Declaration:
		f.write(s.Keyword + " " + s.Name)
		if s.Fields.Len() > 0 {
			f.write(" ")
			f.formatObject(s.Fields)
		}
	case *Assignment:
		f.write(s.Target + "." + s.Member + " = ")
		f.formatValue(s.Value)
	case *Command:
		f.write(s.Target + "." + s.Method + "(")
		for i, a := range s.Args {
			if i > 0 {
				f.write(", ")
			}
			f.formatValue(a)
		}
		f.write(")")
	case *Projection:
		f.write(s.Target + " → " + s.Projector)
	case *Query:
		f.formatQuery(s)
	case *Builtin:
		f.write(s.Name)
		for _, a := range s.Args {
			f.write(" ")
			if isBareWord(a) {
				f.write(a)
			} else {
				f.write(value.String(a).String())
			}
		}
	}
}

func (f *formatter) formatQuery(q *Query) {
	target := q.Target
	if q.HasVersion {
		target += "@" + itoa(q.Version)
	}
	switch q.Kind {
	case QueryHistory:
		f.write("history " + target)
	case QueryDrift:
		f.write("?drift")
		if target != "" {
			f.write(" " + target)
		}
	default:
		f.write("?" + target)
		if q.Member != "" {
			f.write("." + q.Member)
		}
	}
}

// formatObject prints small flat objects inline and everything else one
// field per line.
func (f *formatter) formatObject(m *value.Map) {
	if m.Len() == 0 {
		f.write("{}")
		return
	}
	if m.Len() == 1 && !hasNested(m) {
		k := m.Keys()[0]
		v, _ := m.Get(k)
		f.write("{ " + value.FormatKey(k) + ": " + v.String() + " }")
		return
	}
	f.write("{\n")
	f.indent++
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		f.writeIndent()
		f.write(value.FormatKey(k) + ": ")
		f.formatValue(v)
		f.write("\n")
	}
	f.indent--
	f.writeIndent()
	f.write("}")
}

func (f *formatter) formatValue(v value.Value) {
	if obj, ok := v.AsObject(); ok {
		f.formatObject(obj)
		return
	}
	f.write(v.String())
}

func hasNested(m *value.Map) bool {
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if _, ok := v.AsObject(); ok {
			return true
		}
	}
	return false
}

// isBareWord reports whether s would lex back as a single identifier.
func isBareWord(s string) bool {
	toks := Tokenize(s)
	return len(toks) == 2 && toks[0].Type == TokenIdentifier && toks[0].Literal == s
}

func itoa(n int) string {
	return value.FormatNumber(float64(n))
}
