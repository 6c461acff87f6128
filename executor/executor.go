// Package executor runs one XenoScript statement at a time against a
// session's graph and reports the outcome as text.
package executor

import (
	"fmt"
	"strings"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/projector"
	"github.com/chazu/xenoscript/syntax"
)

// State is everything a statement may read or change. Callers own it and
// decide when to persist Graph.
type State struct {
	Graph             *graph.Graph
	SessionProvenance graph.Provenance
	Projectors        *projector.Registry
}

// NewState returns a session over an empty graph with the built-in
// projectors.
func NewState(namespace string, prov graph.Provenance) *State {
	return &State{
		Graph:             graph.New(namespace),
		SessionProvenance: prov,
		Projectors:        projector.Default(),
	}
}

// Request asks the caller to perform I/O on behalf of a builtin.
type Request struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// Result is the outcome of one statement.
type Result struct {
	Success    bool     `json:"success"`
	Output     string   `json:"output"`
	ShouldExit bool     `json:"shouldExit,omitempty"`
	Request    *Request `json:"request,omitempty"`
}

func ok(format string, args ...interface{}) Result {
	return Result{Success: true, Output: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...interface{}) Result {
	return Result{Success: false, Output: fmt.Sprintf(format, args...)}
}

// Execute parses line and applies it to state. It never panics: every
// failure comes back as an unsuccessful Result.
func Execute(state *State, line string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = fail("Internal error: %v", r)
		}
	}()

	if strings.TrimSpace(line) == "" {
		return Result{Success: true}
	}
	parsed := syntax.Parse(line)
	if !parsed.Success {
		return fail("Parse error: %s", parsed.Error)
	}
	if parsed.Statement == nil {
		return Result{Success: true}
	}
	return Dispatch(state, parsed.Statement)
}

// Dispatch applies an already parsed statement.
func Dispatch(state *State, stmt syntax.Statement) Result {
	switch s := stmt.(type) {
	case *syntax.Declaration:
		return declare(state, s)
	case *syntax.Command:
		return command(state, s)
	case *syntax.Assignment:
		return assign(state, s)
	case *syntax.Query:
		return query(state, s)
	case *syntax.Projection:
		return project(state, s)
	case *syntax.Builtin:
		return builtin(state, s)
	}
	return fail("Unsupported statement: %s", stmt.Type())
}

func declare(state *State, d *syntax.Declaration) Result {
	n := state.Graph.Create(graph.Kind(d.Kind), d.Name, d.Fields, state.SessionProvenance)
	return ok("%s %s %s created (%s, %s)", n.Provenance.Glyph(), n.Kind.Short(), n.Name,
		n.Provenance, graph.Plural(n.Fields.Len(), "field", "fields"))
}

func command(state *State, c *syntax.Command) Result {
	parent, found := state.Graph.Get(c.Target)
	if !found {
		return fail("Node not found: %s", c.Target)
	}
	switch c.Method {
	case "spawn":
		if len(c.Args) == 0 {
			return fail("spawn needs a child name: %s.spawn(\"Name\")", c.Target)
		}
		name := c.Args[0].Text()
		child, _ := state.Graph.Spawn(parent.ID, name)
		return ok("%s %s spawned from %s (%s)", child.Provenance.Glyph(), child.Name, parent.Name, child.Provenance)
	}
	return fail("Unknown method %q on %s (available: spawn)", c.Method, c.Target)
}

func assign(state *State, a *syntax.Assignment) Result {
	if _, found := state.Graph.Get(a.Target); !found {
		return fail("Node not found: %s", a.Target)
	}
	drift := state.Graph.Update(a.Target, a.Member, a.Value)

	var sb strings.Builder
	old := "(unset)"
	if drift.OldValue != nil {
		old = drift.OldValue.String()
	}
	switch drift.DriftClass {
	case graph.DriftNone:
		return ok("%s.%s unchanged (%s)", a.Target, a.Member, a.Value)
	case graph.DriftTelic:
		// Advisory only: the update has already been applied.
		fmt.Fprintf(&sb, "⚠ Telic drift on %s.%s\n", a.Target, a.Member)
		fmt.Fprintf(&sb, "  %s → %s\n", old, a.Value)
		fmt.Fprintf(&sb, "  This changes what %s is for.\n", a.Target)
		sb.WriteString("  proceed? (y/n/explain)\n")
	case graph.DriftStructural:
		fmt.Fprintf(&sb, "Structural drift on %s.%s: %s → %s\n", a.Target, a.Member, old, a.Value)
	}
	fmt.Fprintf(&sb, "✓ %s.%s = %s (%s)", a.Target, a.Member, a.Value, drift.DriftClass)
	return ok("%s", sb.String())
}

func project(state *State, p *syntax.Projection) Result {
	n, found := state.Graph.Get(p.Target)
	if !found {
		return fail("Node not found: %s", p.Target)
	}
	proj, found := state.Projectors.Get(p.Projector)
	if !found {
		return fail("Unknown projector %q (available: %s)", p.Projector, strings.Join(state.Projectors.Names(), ", "))
	}
	out, err := proj.Project(state.Graph, n.ID)
	if err != nil {
		return fail("Projection failed: %v", err)
	}
	return ok("%s\n\n%s", out.Output, footer(proj.Name(), out))
}

func footer(name string, out projector.Output) string {
	s := fmt.Sprintf("[%s, %s", name, out.Lossiness)
	if len(out.DiscardedFields) > 0 {
		s += "; discards fields: " + strings.Join(out.DiscardedFields, ", ")
	}
	if len(out.DiscardedEdges) > 0 {
		s += "; discards edges: " + strings.Join(out.DiscardedEdges, ", ")
	}
	return s + "]"
}
