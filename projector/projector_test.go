package projector

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/value"
)

func family(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("test")
	g.Create(graph.KindNode, "Parent", value.MapOf("focus", "ship v1", "horizon", 2), graph.Organic)
	g.Spawn("Parent", "Child")
	g.Spawn("Child", "Grand")
	g.Spawn("Parent", "Sibling")
	g.Update("Grand", "horizon", value.Number(1))
	return g
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	want := []string{"data/yaml", "graph/tree", "reflection/questions", "task/list"}
	if diff := cmp.Diff(want, r.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if err := r.Register(Tree{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate register err = %v", err)
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("unexpected projector")
	}
}

func TestActionableCount(t *testing.T) {
	tests := []struct {
		name   string
		fields *value.Map
		want   int
	}{
		{"horizon 3 leaf", value.MapOf("horizon", 3), 0},
		{"horizon 1 leaf", value.MapOf("horizon", 1), 1},
		{"horizon 2 leaf", value.MapOf("horizon", 2), 1},
		{"default horizon", nil, 0},
		{"non-numeric horizon", value.MapOf("horizon", "soon"), 0},
	}
	for _, tc := range tests {
		g := graph.New("test")
		n := g.Create(graph.KindNode, "Foo", tc.fields, graph.Organic)
		if got := ActionableCount(g, n); got != tc.want {
			t.Errorf("%s: actionable = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestActionableCountSumsChildren(t *testing.T) {
	g := family(t)
	parent, _ := g.Get("Parent")
	// Grand (horizon 1) counts; Sibling has the default horizon.
	if got := ActionableCount(g, parent); got != 1 {
		t.Errorf("actionable = %d, want 1", got)
	}

	g.Update("Sibling", "horizon", value.Number(2))
	if got := ActionableCount(g, parent); got != 2 {
		t.Errorf("actionable = %d, want 2", got)
	}

	g2 := graph.New("test")
	p := g2.Create(graph.KindNode, "P", nil, graph.Organic)
	g2.Spawn("P", "Far")
	if got := ActionableCount(g2, p); got != 1 {
		t.Errorf("parent with no actionable children = %d, want floor of 1", got)
	}
}

func TestTaskListOutput(t *testing.T) {
	g := family(t)
	out, err := TaskList{}.Project(g, "Parent")
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"## Parent",
		"ship v1",
		"",
		"- [ ] Child",
		"  - [ ] Grand (horizon 1)",
		"- [ ] Sibling (later)",
		"",
		"actionable: 1",
	}, "\n")
	if out.Output != want {
		t.Errorf("output =\n%s\nwant\n%s", out.Output, want)
	}
	if out.Lossiness != Lossy {
		t.Errorf("lossiness = %s", out.Lossiness)
	}
	if diff := cmp.Diff([]string{"context", "provenance"}, out.DiscardedFields); diff != "" {
		t.Errorf("discarded fields (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"refines", "contradicts"}, out.DiscardedEdges); diff != "" {
		t.Errorf("discarded edges (-want +got):\n%s", diff)
	}
}

func TestTaskListLeaf(t *testing.T) {
	g := graph.New("test")
	g.Create(graph.KindNode, "Foo", value.MapOf("horizon", 1), graph.Organic)
	out, err := TaskList{}.Project(g, "Foo")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Output, "- [ ] Foo (horizon 1)\n") || !strings.HasSuffix(out.Output, "actionable: 1") {
		t.Errorf("output =\n%s", out.Output)
	}
}

func TestTreeOutput(t *testing.T) {
	g := family(t)
	out, err := Tree{}.Project(g, "Parent")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(out.Output, "\n")
	want := []string{
		"◉ Parent [horizon: 2]",
		"├── ○ Child [horizon: ?]",
		"│   └── ○ Grand [horizon: 1]",
		"└── ○ Sibling [horizon: ?]",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	if out.Lossiness != Lossless || len(out.DiscardedFields) != 0 {
		t.Errorf("tree should be lossless, got %+v", out)
	}
}

func TestTreeSingleNode(t *testing.T) {
	g := graph.New("test")
	g.Create(graph.KindNode, "Alone", nil, graph.Hybrid)
	out, err := Tree{}.Project(g, "Alone")
	if err != nil {
		t.Fatal(err)
	}
	if out.Output != "◐ Alone [horizon: ?]" {
		t.Errorf("output = %q", out.Output)
	}
}

func TestTreeNonNumericHorizon(t *testing.T) {
	g := graph.New("test")
	g.Create(graph.KindNode, "Later", value.MapOf("horizon", "someday"), graph.Organic)
	out, err := Tree{}.Project(g, "Later")
	if err != nil {
		t.Fatal(err)
	}
	if out.Output != "◉ Later [horizon: someday]" {
		t.Errorf("output = %q", out.Output)
	}
}

func TestQuestions(t *testing.T) {
	g := family(t)
	out, err := Questions{}.Project(g, "Parent")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Reflecting on Parent",
		`1. What would success look like for "ship v1"?`,
		"2. What context is missing from Parent?",
		"3. What is the very next concrete step?",
		"4. Do these 2 children fully cover Parent?",
		"5. Who else should weigh in on Parent?",
	} {
		if !strings.Contains(out.Output, want) {
			t.Errorf("missing %q in\n%s", want, out.Output)
		}
	}
	if diff := cmp.Diff([]string{"horizon", "children"}, out.DiscardedFields); diff != "" {
		t.Errorf("discarded fields (-want +got):\n%s", diff)
	}

	child, _ := Questions{}.Project(g, "Sibling")
	if !strings.Contains(child.Output, "This node was generated") {
		t.Errorf("synthetic prompt missing:\n%s", child.Output)
	}
}

func TestYAMLOutput(t *testing.T) {
	g := graph.New("test")
	g.Create(graph.KindNode, "Plan", value.MapOf(
		"focus", "ship",
		"horizon", 2,
		"ratio", 0.5,
		"tags", []any{"a", "b"},
		"done", false,
	), graph.Organic)
	g.Spawn("Plan", "Step")

	out, err := YAML{}.Project(g, "Plan")
	if err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Name       string         `yaml:"name"`
		Provenance string         `yaml:"provenance"`
		Fields     map[string]any `yaml:"fields"`
		Children   []struct {
			Name string `yaml:"name"`
		} `yaml:"children"`
	}
	if err := yaml.Unmarshal([]byte(out.Output), &doc); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out.Output)
	}
	if doc.Name != "Plan" || doc.Provenance != "organic" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Fields["horizon"] != 2 || doc.Fields["ratio"] != 0.5 || doc.Fields["done"] != false {
		t.Errorf("fields = %v", doc.Fields)
	}
	if len(doc.Children) != 1 || doc.Children[0].Name != "Step" {
		t.Errorf("children = %+v", doc.Children)
	}
	if strings.Index(out.Output, "focus") > strings.Index(out.Output, "tags") {
		t.Error("field order not preserved")
	}
}

func TestProjectMissingNode(t *testing.T) {
	g := graph.New("test")
	for _, name := range Default().Names() {
		p, _ := Default().Get(name)
		if _, err := p.Project(g, "Ghost"); !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}
