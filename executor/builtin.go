package executor

import (
	"fmt"
	"strings"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/syntax"
)

// ClearScreen is the ANSI sequence returned by the clear builtin.
const ClearScreen = "\033[2J\033[H"

// HelpText is returned by the help builtin.
const HelpText = `XenoScript

Declarations
  node Name { field: value, ... }      also relation, constraint, signal

Mutations
  Name.field = value                   update a field (drift is reported)
  Name.spawn("Child")                  create a synthetic child

Queries
  ?                                    list nodes
  ?Name  ?Name.field  ?Name@N          inspect a node, a field, or a version
  ?drift [Name]                        drift report
  history Name                         full history

Projections
  Name → projector                     also Name -> projector

Session
  ls  save [ns]  load ns  run file  clear  help  exit`

func builtin(state *State, b *syntax.Builtin) Result {
	switch b.Name {
	case "ls":
		return ls(state.Graph)
	case "exit":
		return Result{Success: true, Output: "Goodbye.", ShouldExit: true}
	case "help":
		return ok("%s", HelpText)
	case "clear":
		return ok("%s", ClearScreen)
	case "save":
		ns := state.Graph.Namespace()
		if len(b.Args) > 0 {
			ns = b.Args[0]
		}
		return request(b, fmt.Sprintf("Saving namespace %s", ns))
	case "load":
		if len(b.Args) == 0 {
			return fail("load needs a namespace name")
		}
		return request(b, fmt.Sprintf("Loading namespace %s", b.Args[0]))
	case "run":
		if len(b.Args) == 0 {
			return fail("run needs a file path")
		}
		return request(b, fmt.Sprintf("Running %s", b.Args[0]))
	}
	return fail("Unknown builtin: %s", b.Name)
}

func request(b *syntax.Builtin, msg string) Result {
	return Result{
		Success: true,
		Output:  msg,
		Request: &Request{Name: b.Name, Args: append([]string(nil), b.Args...)},
	}
}

func ls(g *graph.Graph) Result {
	nodes := g.Nodes()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)", g.Namespace(), graph.Plural(len(nodes), "node", "nodes"))
	for _, n := range nodes {
		fmt.Fprintf(&sb, "\n  %s %-24s %-10s %s", n.Provenance.Glyph(), n.Name, n.Kind.Short(),
			graph.Plural(len(n.Children), "child", "children"))
	}
	return ok("%s", sb.String())
}
