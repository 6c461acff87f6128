package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/xenoscript/executor"
	"github.com/chazu/xenoscript/graph"
)

const plan = `# Quarterly plan
node Plan {
  focus: "ship {v1}"   # braces in strings do not count
  horizon: 2

  outcomes: [
    "docs",
    "release"
  ]
}

Plan.spawn("Docs")
Plan.spawn("Release")
Docs.horizon = 1

signal Ping
`

func TestSplit(t *testing.T) {
	blocks := Split(plan)
	var lines []int
	for _, b := range blocks {
		lines = append(lines, b.Line)
	}
	if diff := cmp.Diff([]int{2, 12, 13, 14, 16}, lines); diff != "" {
		t.Errorf("block lines mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(blocks[0].Text, "}") || !strings.Contains(blocks[0].Text, `"release"`) {
		t.Errorf("first block =\n%s", blocks[0].Text)
	}
}

func TestSplitMultilineString(t *testing.T) {
	blocks := Split("node A { note: \"first\nsecond }\" }\nnode B")
	if len(blocks) != 2 {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[1].Line != 3 {
		t.Errorf("second block line = %d", blocks[1].Line)
	}
}

func TestSplitUnbalancedTail(t *testing.T) {
	blocks := Split("node A\nnode B {\n  x: 1\n")
	if len(blocks) != 2 || blocks[1].Line != 2 {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestIncomplete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"node A", false},
		{"node A {", true},
		{"node A {\n  x: [1, 2\n", true},
		{"node A {\n  x: [1, 2]\n}", false},
		{`node A { about: "open {" }`, false},
		{"node A { about: \"unterminated", true},
		{"# just a comment {", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := Incomplete(tc.src); got != tc.want {
			t.Errorf("Incomplete(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestLoad(t *testing.T) {
	st := executor.NewState("plan", graph.Organic)
	res := Load(st, plan)
	if len(res.Errors) != 0 {
		t.Fatalf("errors = %v", res.Errors)
	}
	if res.NodesCreated != 4 {
		t.Errorf("nodes created = %d, want 4", res.NodesCreated)
	}
	q, _ := res.Graph.Query("Plan")
	if q.ChildCount != 2 {
		t.Errorf("children = %d", q.ChildCount)
	}
}

func TestLoadCollectsErrors(t *testing.T) {
	st := executor.NewState("bad", graph.Organic)
	res := Load(st, "node A\n\nGhost.x = 1\nnode 42\nnode B\nsave\n")
	if res.NodesCreated != 2 {
		t.Errorf("nodes created = %d, want 2", res.NodesCreated)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %v", res.Errors)
	}
	if res.Errors[0].Line != 3 || !strings.Contains(res.Errors[0].Message, "Ghost") {
		t.Errorf("first error = %v", res.Errors[0])
	}
	if len(res.Requests) != 1 || res.Requests[0].Name != "save" {
		t.Errorf("requests = %+v", res.Requests)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q3.xeno")
	if err := os.WriteFile(path, []byte(plan), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := LoadFile(path, graph.Synthetic)
	if err != nil {
		t.Fatal(err)
	}
	if res.Graph.Namespace() != "q3" {
		t.Errorf("namespace = %q", res.Graph.Namespace())
	}
	n, _ := res.Graph.Get("Plan")
	if n.Provenance != graph.Synthetic {
		t.Errorf("provenance = %s", n.Provenance)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.xeno"), graph.Organic); err == nil {
		t.Error("expected error for missing file")
	}
}
