package projector

import (
	"fmt"
	"strings"

	"github.com/chazu/xenoscript/graph"
)

// Questions turns a node into a short list of reflective prompts.
type Questions struct{}

func (Questions) Name() string { return "reflection/questions" }

func (Questions) Description() string {
	return "Socratic questions seeded from focus, context, horizon and children"
}

func (Questions) Lossiness() Lossiness { return Lossy }

func (p Questions) Project(g *graph.Graph, nodeID string) (Output, error) {
	n, err := lookup(g, nodeID)
	if err != nil {
		return Output{}, err
	}

	var qs []string
	if focus, ok := text(n, "focus"); ok {
		qs = append(qs, fmt.Sprintf("What would success look like for %q?", focus))
	} else {
		qs = append(qs, fmt.Sprintf("What is %s ultimately for?", n.Name))
	}
	if ctx, ok := text(n, "context"); ok {
		qs = append(qs, fmt.Sprintf("Which assumptions in %q might not hold?", ctx))
	} else {
		qs = append(qs, fmt.Sprintf("What context is missing from %s?", n.Name))
	}
	if h, _ := horizon(n, DefaultHorizon); h <= actionableHorizon {
		qs = append(qs, "What is the very next concrete step?")
	} else {
		qs = append(qs, fmt.Sprintf("What would have to be true to bring %s closer?", n.Name))
	}
	if c := len(n.Children); c == 0 {
		qs = append(qs, fmt.Sprintf("Could %s be broken into smaller pieces?", n.Name))
	} else {
		qs = append(qs, fmt.Sprintf("Do these %s fully cover %s?", graph.Plural(c, "child", "children"), n.Name))
	}
	switch n.Provenance {
	case graph.Synthetic:
		qs = append(qs, "This node was generated. Does it say what you actually mean?")
	case graph.Hybrid:
		qs = append(qs, "Which parts of this came from you, and which were generated?")
	case graph.Organic:
		qs = append(qs, fmt.Sprintf("Who else should weigh in on %s?", n.Name))
	default:
		qs = append(qs, fmt.Sprintf("Where did %s come from?", n.Name))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reflecting on %s\n", n.Name)
	for i, q := range qs {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, q)
	}
	return Output{
		Output:          sb.String(),
		Lossiness:       p.Lossiness(),
		DiscardedFields: []string{"horizon", "children"},
	}, nil
}

func text(n *graph.Node, field string) (string, bool) {
	v, ok := n.Field(field)
	if !ok || v.IsNull() {
		return "", false
	}
	return v.Text(), true
}
