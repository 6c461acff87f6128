package projector

import (
	"fmt"
	"strings"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/value"
)

// DefaultHorizon applies to nodes without a numeric horizon field.
const DefaultHorizon = 3

// actionableHorizon is the largest horizon a leaf may have and still count
// as something to do now.
const actionableHorizon = 2

// TaskList flattens a subtree into a checkbox outline.
type TaskList struct{}

func (TaskList) Name() string { return "task/list" }

func (TaskList) Description() string {
	return "Checkbox outline of the node's subtree with an actionable count"
}

func (TaskList) Lossiness() Lossiness { return Lossy }

func (p TaskList) Project(g *graph.Graph, nodeID string) (Output, error) {
	n, err := lookup(g, nodeID)
	if err != nil {
		return Output{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n", n.Name)
	for _, f := range []string{"focus", "about"} {
		if v, ok := n.Field(f); ok && !v.IsNull() {
			fmt.Fprintf(&sb, "%s\n", v.Text())
			break
		}
	}
	sb.WriteString("\n")

	children := g.Children(n)
	if len(children) == 0 {
		writeTask(&sb, n, 0)
	}
	onPath := map[string]bool{n.ID: true}
	for _, c := range children {
		writeSubtree(&sb, g, c, 0, onPath)
	}
	fmt.Fprintf(&sb, "\nactionable: %d", ActionableCount(g, n))

	return Output{
		Output:          sb.String(),
		Lossiness:       p.Lossiness(),
		DiscardedFields: []string{"context", "provenance"},
		DiscardedEdges:  []string{"refines", "contradicts"},
	}, nil
}

func writeSubtree(sb *strings.Builder, g *graph.Graph, n *graph.Node, depth int, onPath map[string]bool) {
	if onPath[n.ID] {
		return
	}
	onPath[n.ID] = true
	defer delete(onPath, n.ID)

	writeTask(sb, n, depth)
	for _, c := range g.Children(n) {
		writeSubtree(sb, g, c, depth+1, onPath)
	}
}

func writeTask(sb *strings.Builder, n *graph.Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(sb, "- [ ] %s", n.Name)
	if h, ok := horizon(n, DefaultHorizon); ok {
		fmt.Fprintf(sb, " (horizon %s)", value.FormatNumber(h))
	}
	if len(n.Children) == 0 && !leafActionable(n) {
		sb.WriteString(" (later)")
	}
	sb.WriteString("\n")
}

func leafActionable(n *graph.Node) bool {
	h, _ := horizon(n, DefaultHorizon)
	return h <= actionableHorizon
}

// ActionableCount counts actionable work under n. A leaf counts once when
// its horizon is at most 2. A node with children counts the sum of its
// children, and at least 1.
func ActionableCount(g *graph.Graph, n *graph.Node) int {
	return actionable(g, n, map[string]bool{})
}

func actionable(g *graph.Graph, n *graph.Node, onPath map[string]bool) int {
	children := g.Children(n)
	if len(children) == 0 {
		if leafActionable(n) {
			return 1
		}
		return 0
	}

	onPath[n.ID] = true
	defer delete(onPath, n.ID)

	sum := 0
	for _, c := range children {
		if onPath[c.ID] {
			continue
		}
		sum += actionable(g, c, onPath)
	}
	if sum == 0 {
		return 1
	}
	return sum
}
