package syntax

import "github.com/chazu/xenoscript/value"

// ---------------------------------------------------------------------------
// AST: one Statement per parsed line or block
// ---------------------------------------------------------------------------

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Statement is the interface implemented by all statement nodes.
type Statement interface {
	Span() Span
	Type() string
	stmt() // marker method
}

// Declaration declares a node: <kind> <Name> { field: value, ... }.
type Declaration struct {
	SpanVal Span
	Keyword string // node, relation, constraint, signal
	Kind    string // convergence/node, relation, ...
	Name    string
	Fields  *value.Map
}

func (n *Declaration) Span() Span   { return n.SpanVal }
func (n *Declaration) Type() string { return "declaration" }
func (n *Declaration) stmt()        {}

// Command is a method call on a node: Target.method(arg, ...).
type Command struct {
	SpanVal Span
	Target  string
	Method  string
	Args    []value.Value
}

func (n *Command) Span() Span   { return n.SpanVal }
func (n *Command) Type() string { return "command" }
func (n *Command) stmt()        {}

// Assignment sets one field: Target.member = value.
type Assignment struct {
	SpanVal Span
	Target  string
	Member  string
	Value   value.Value
}

func (n *Assignment) Span() Span   { return n.SpanVal }
func (n *Assignment) Type() string { return "assignment" }
func (n *Assignment) stmt()        {}

// QueryKind distinguishes the query forms.
type QueryKind int

const (
	QueryInfo QueryKind = iota
	QueryDrift
	QueryHistory
)

func (k QueryKind) String() string {
	switch k {
	case QueryDrift:
		return "drift"
	case QueryHistory:
		return "history"
	}
	return "info"
}

// Query asks about the graph. Target may be empty (all nodes), a name, or
// a dotted Name.member path. Version is set when the target carried @N.
type Query struct {
	SpanVal    Span
	Kind       QueryKind
	Target     string
	Member     string
	Version    int
	HasVersion bool
}

func (n *Query) Span() Span   { return n.SpanVal }
func (n *Query) Type() string { return "query" }
func (n *Query) stmt()        {}

// Path returns Target or Target.Member.
func (n *Query) Path() string {
	if n.Member == "" {
		return n.Target
	}
	return n.Target + "." + n.Member
}

// Projection renders a node: Target → projector.
type Projection struct {
	SpanVal   Span
	Target    string
	Projector string
}

func (n *Projection) Span() Span   { return n.SpanVal }
func (n *Projection) Type() string { return "projection" }
func (n *Projection) stmt()        {}

// Builtin is a session command such as ls, save or exit.
type Builtin struct {
	SpanVal Span
	Name    string
	Args    []string
}

func (n *Builtin) Span() Span   { return n.SpanVal }
func (n *Builtin) Type() string { return "builtin" }
func (n *Builtin) stmt()        {}
