package projector

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/chazu/xenoscript/graph"
)

// Tree draws the subtree with box-drawing connectors, one line per node.
type Tree struct{}

func (Tree) Name() string { return "graph/tree" }

func (Tree) Description() string {
	return "Box-drawing tree with provenance glyphs and horizons"
}

func (Tree) Lossiness() Lossiness { return Lossless }

func (p Tree) Project(g *graph.Graph, nodeID string) (Output, error) {
	n, err := lookup(g, nodeID)
	if err != nil {
		return Output{}, err
	}

	root := treeprint.New()
	onPath := map[string]bool{n.ID: true}
	for _, c := range g.Children(n) {
		addBranch(root, g, c, onPath)
	}

	// treeprint labels its root "."; the node's own label replaces it.
	body := strings.TrimPrefix(root.String(), ".\n")
	out := label(n)
	if body = strings.TrimRight(body, "\n"); body != "" {
		out += "\n" + body
	}
	return Output{Output: out, Lossiness: p.Lossiness()}, nil
}

func addBranch(parent treeprint.Tree, g *graph.Graph, n *graph.Node, onPath map[string]bool) {
	if onPath[n.ID] {
		return
	}
	onPath[n.ID] = true
	defer delete(onPath, n.ID)

	branch := parent.AddBranch(label(n))
	for _, c := range g.Children(n) {
		addBranch(branch, g, c, onPath)
	}
}

// label annotates every node with its horizon; "?" marks a node without one.
func label(n *graph.Node) string {
	h := "?"
	if v, ok := n.Field("horizon"); ok {
		h = v.Text()
	}
	return fmt.Sprintf("%s %s [horizon: %s]", n.Provenance.Glyph(), n.Name, h)
}
