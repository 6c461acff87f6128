package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/syntax"
	"github.com/chazu/xenoscript/value"
)

func query(state *State, q *syntax.Query) Result {
	switch q.Kind {
	case syntax.QueryDrift:
		return driftQuery(state, q.Target)
	case syntax.QueryHistory:
		return historyQuery(state, q.Target)
	}
	return infoQuery(state, q)
}

func infoQuery(state *State, q *syntax.Query) Result {
	g := state.Graph
	if q.Target == "" {
		return listNodes(g)
	}

	var (
		n     *graph.Node
		found bool
	)
	if q.HasVersion {
		n, found = g.SnapshotAt(q.Target, q.Version)
		if found && q.Version > n.Version() {
			return fail("%s has no version %d (latest is %d)", q.Target, q.Version, n.Version())
		}
	} else {
		n, found = g.Get(q.Target)
	}
	if !found {
		return fail("Node not found: %s", q.Target)
	}

	if q.Member != "" {
		v, has := n.Field(q.Member)
		if !has {
			return fail("%s has no field %q", q.Target, q.Member)
		}
		return ok("%s = %s", q.Path(), v)
	}

	res, _ := g.Query(n.ID)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", n.Provenance.Glyph(), res.Summary)
	fmt.Fprintf(&sb, "  id: %s\n", n.ID)
	fmt.Fprintf(&sb, "  descendants: %d\n", res.DescendantCount)
	if q.HasVersion {
		fmt.Fprintf(&sb, "  version: %d (fields show current values)\n", q.Version)
		for i, h := range n.History {
			fmt.Fprintf(&sb, "    %s\n", historyLine(i, h))
		}
	} else {
		fmt.Fprintf(&sb, "  version: %d\n", n.Version())
	}
	writeFields(&sb, n.Fields)
	return ok("%s", strings.TrimRight(sb.String(), "\n"))
}

func writeFields(sb *strings.Builder, fields *value.Map) {
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		fmt.Fprintf(sb, "  %s: %s\n", value.FormatKey(k), v)
	}
}

func listNodes(g *graph.Graph) Result {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return ok("No nodes in %s", g.Namespace())
	}
	var sb strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s %s (%s)\n", n.Provenance.Glyph(), n.Name, n.Kind)
	}
	return ok("%s", strings.TrimRight(sb.String(), "\n"))
}

// driftQuery has no baseline to compare against yet, so every node reports
// no drift.
func driftQuery(state *State, target string) Result {
	g := state.Graph
	var nodes []*graph.Node
	if target != "" {
		n, found := g.Get(target)
		if !found {
			return fail("Node not found: %s", target)
		}
		nodes = []*graph.Node{n}
	} else {
		nodes = g.Nodes()
	}

	var sb strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s %s: no drift\n", n.Provenance.Glyph(), n.Name)
	}
	fmt.Fprintf(&sb, "Checked %s: 0 telic, 0 structural, 0 cosmetic",
		graph.Plural(len(nodes), "node", "nodes"))
	return ok("%s", sb.String())
}

func historyQuery(state *State, target string) Result {
	n, found := state.Graph.Get(target)
	if !found {
		return fail("Node not found: %s", target)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "History of %s (%s)\n", n.Name, graph.Plural(len(n.History), "entry", "entries"))
	for i, h := range n.History {
		fmt.Fprintf(&sb, "  %s\n", historyLine(i, h))
	}
	return ok("%s", strings.TrimRight(sb.String(), "\n"))
}

func historyLine(i int, h graph.HistoryEntry) string {
	s := fmt.Sprintf("@%d  %s  %s", i, h.Timestamp.Format(time.RFC3339), h.Action)
	switch h.Action {
	case graph.ActionUpdated:
		old := "(unset)"
		if h.OldValue != nil {
			old = h.OldValue.String()
		}
		next := "(unset)"
		if h.NewValue != nil {
			next = h.NewValue.String()
		}
		s += fmt.Sprintf(" %s: %s → %s", h.Field, old, next)
		if h.Note != "" {
			s += fmt.Sprintf(" (%s)", h.Note)
		}
	case graph.ActionSpawned:
		s += " " + h.Note
	}
	return s
}
