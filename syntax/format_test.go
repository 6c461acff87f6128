package syntax

import (
	"testing"

	"github.com/chazu/xenoscript/value"
)

func TestFormatStatements(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`node   Foo{horizon:1}`, `node Foo { horizon: 1 }`},
		{"node Foo { a: 1 b: 'two' }", "node Foo {\n  a: 1\n  b: \"two\"\n}"},
		{`signal Ping`, `signal Ping`},
		{`node Foo {}`, `node Foo`},
		{`Foo.horizon=2`, `Foo.horizon = 2`},
		{`Foo.spawn( "Kid" )`, `Foo.spawn("Kid")`},
		{`Foo -> task/list`, `Foo → task/list`},
		{`?Foo@2`, `?Foo@2`},
		{`Foo.focus`, `?Foo.focus`},
		{`?drift`, `?drift`},
		{`history   Foo`, `history Foo`},
		{`run "my plan.xeno"`, `run "my plan.xeno"`},
		{`load work`, `load work`},
		{"node Foo { meta: { a: 1 } }", "node Foo {\n  meta: { a: 1 }\n}"},
	}
	for _, tc := range tests {
		got, err := FormatSource(tc.input)
		if err != nil {
			t.Errorf("FormatSource(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("FormatSource(%q) =\n%s\nwant\n%s", tc.input, got, tc.want)
		}
	}
}

func TestFormatIsStable(t *testing.T) {
	src := "node Plan {\n  focus: \"ship\"\n  outcomes: [\"a\", \"b\"]\n  meta: {\n    owner: \"al\"\n    n: 2\n  }\n}"
	once, err := FormatSource(src)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := FormatSource(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("format not idempotent:\n%s\n---\n%s", once, twice)
	}
	if once != src {
		t.Errorf("canonical input changed:\n%s", once)
	}
}

func TestFormatKeepsStringContents(t *testing.T) {
	tests := []string{
		"a\rb",
		"ctl\x01",
		"zero\u200bwidth",
		`back\slash "quoted" 'single'`,
		"line\nbreak\ttab",
		"é→✓",
	}
	for _, want := range tests {
		src := "node A { s: " + value.Quote(want) + " }"
		formatted, err := FormatSource(src)
		if err != nil {
			t.Fatalf("FormatSource(%q): %v", src, err)
		}
		res := Parse(formatted)
		if !res.Success {
			t.Fatalf("reparse %q: %s", formatted, res.Error)
		}
		got, _ := res.Statement.(*Declaration).Fields.Get("s")
		if !value.Equal(got, value.String(want)) {
			t.Errorf("formatting %q changed the value to %s", want, got)
		}
	}
}
