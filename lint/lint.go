// Package lint checks .xeno source without executing it.
package lint

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/loader"
	"github.com/chazu/xenoscript/projector"
	"github.com/chazu/xenoscript/syntax"
	"github.com/chazu/xenoscript/value"
)

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rule names.
const (
	RuleParseError          = "parse-error"
	RuleDuplicateName       = "duplicate-name"
	RuleUnknownTarget       = "unknown-target"
	RuleUnresolvedReference = "unresolved-reference"
	RuleUnknownProjector    = "unknown-projector"
	RuleTelicAssignment     = "telic-assignment"
	RuleMissingHorizon      = "missing-horizon"
)

// Diagnostic is one finding. Line and Column are 1-based; Column is 0 when
// unknown.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Rule     string   `json:"rule"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d %s %s [%s]", d.Line, d.Column, d.Severity, d.Message, d.Rule)
}

// referenceFields hold node names.
var referenceFields = []string{"depends_on", "refines", "parent"}

type reference struct {
	name  string
	field string
	from  string
	line  int
}

type linter struct {
	projectors *projector.Registry
	declared   map[string]int // name -> line of first declaration
	refs       []reference
	diags      []Diagnostic
}

// Lint checks src. A nil registry means the built-in projectors.
func Lint(src string, projectors *projector.Registry) []Diagnostic {
	if projectors == nil {
		projectors = projector.Default()
	}
	l := &linter{projectors: projectors, declared: make(map[string]int)}
	for _, b := range loader.Split(src) {
		l.block(b)
	}
	for _, r := range l.refs {
		if _, ok := l.declared[r.name]; !ok {
			l.report(SeverityWarning, RuleUnresolvedReference, r.line, 0,
				"%s.%s refers to %s, which is never declared", r.from, r.field, r.name)
		}
	}
	sort.SliceStable(l.diags, func(i, j int) bool { return l.diags[i].Line < l.diags[j].Line })
	return l.diags
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (l *linter) report(sev Severity, rule string, line, col int, format string, args ...interface{}) {
	l.diags = append(l.diags, Diagnostic{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   col,
		Rule:     rule,
	})
}

func (l *linter) block(b loader.Block) {
	res := syntax.Parse(b.Text)
	if !res.Success {
		line, col := b.Line, 0
		msg := res.Error
		var perr *syntax.Error
		if errors.As(res.Err, &perr) {
			line += perr.Pos.Line - 1
			col = perr.Pos.Column
			msg = perr.Msg
		}
		l.report(SeverityError, RuleParseError, line, col, "%s", msg)
		return
	}
	if res.Statement == nil {
		return
	}
	line := b.Line + res.Statement.Span().Start.Line - 1

	switch s := res.Statement.(type) {
	case *syntax.Declaration:
		l.declaration(s, line)
	case *syntax.Command:
		if l.target(s.Target, line) && s.Method == "spawn" && len(s.Args) > 0 {
			l.declare(s.Args[0].Text(), line)
		}
	case *syntax.Assignment:
		l.target(s.Target, line)
		if graph.IsTelicField(s.Member) {
			l.report(SeverityInfo, RuleTelicAssignment, line, 0,
				"assigning %s.%s changes the node's intent", s.Target, s.Member)
		}
	case *syntax.Projection:
		l.target(s.Target, line)
		if _, ok := l.projectors.Get(s.Projector); !ok {
			l.report(SeverityWarning, RuleUnknownProjector, line, 0,
				"unknown projector %q (available: %s)", s.Projector, strings.Join(l.projectors.Names(), ", "))
		}
	case *syntax.Query:
		if s.Target != "" {
			l.target(s.Target, line)
		}
	}
}

func (l *linter) declaration(d *syntax.Declaration, line int) {
	if first, dup := l.declared[d.Name]; dup {
		l.report(SeverityWarning, RuleDuplicateName, line, 0,
			"%s is already declared on line %d; the earlier node becomes unreachable by name", d.Name, first)
	}
	l.declare(d.Name, line)

	if graph.Kind(d.Kind) == graph.KindNode {
		if _, ok := d.Fields.Get("horizon"); !ok {
			l.report(SeverityInfo, RuleMissingHorizon, line, 0,
				"%s has no horizon; task projection treats it as %d", d.Name, projector.DefaultHorizon)
		}
	}

	for _, field := range referenceFields {
		v, ok := d.Fields.Get(field)
		if !ok {
			continue
		}
		for _, name := range names(v) {
			l.refs = append(l.refs, reference{name: name, field: field, from: d.Name, line: line})
		}
	}
}

func (l *linter) declare(name string, line int) {
	if _, ok := l.declared[name]; !ok {
		l.declared[name] = line
	}
}

// target reports a use of a name that has not been declared yet.
func (l *linter) target(name string, line int) bool {
	if _, ok := l.declared[name]; ok {
		return true
	}
	l.report(SeverityError, RuleUnknownTarget, line, 0, "%s is not declared before this line", name)
	return false
}

// names extracts node names from a string or an array of strings.
func names(v value.Value) []string {
	if s, ok := v.AsString(); ok {
		return []string{s}
	}
	var out []string
	if elems, ok := v.AsArray(); ok {
		for _, e := range elems {
			if s, ok := e.AsString(); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
