package graph

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/xenoscript/value"
)

// stepClock returns a clock advancing one millisecond per call.
func stepClock() func() time.Time {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestGraph() *Graph {
	return New("test", WithClock(stepClock()))
}

var valueComparer = cmp.Comparer(func(a, b value.Value) bool { return value.Equal(a, b) })

func TestCreateAndGet(t *testing.T) {
	g := newTestGraph()
	n := g.Create(KindNode, "Parent", value.MapOf("about", "root"), Organic)

	if !strings.HasPrefix(n.ID, "node-parent-") {
		t.Errorf("id = %q", n.ID)
	}
	byName, ok := g.Get("Parent")
	if !ok || byName != n {
		t.Fatal("lookup by name failed")
	}
	byID, ok := g.Get(n.ID)
	if !ok || byID != n {
		t.Fatal("lookup by id failed")
	}
	if len(n.History) != 1 || n.History[0].Action != ActionCreated {
		t.Errorf("history = %+v", n.History)
	}
	if _, ok := g.Get("Missing"); ok {
		t.Error("unexpected hit for Missing")
	}
}

func TestCreateCopiesFields(t *testing.T) {
	g := newTestGraph()
	fields := value.MapOf("horizon", 1)
	g.Create(KindNode, "A", fields, Organic)
	fields.Set("horizon", value.Number(9))

	n, _ := g.Get("A")
	if h, _ := n.Field("horizon"); !value.Equal(h, value.Number(1)) {
		t.Errorf("horizon = %s, caller mutation leaked into graph", h)
	}
}

func TestDuplicateNameRepointsIndex(t *testing.T) {
	g := newTestGraph()
	first := g.Create(KindNode, "Dup", nil, Organic)
	second := g.Create(KindNode, "Dup", nil, Organic)

	got, _ := g.Get("Dup")
	if got != second {
		t.Error("name should resolve to the latest node")
	}
	if old, ok := g.Get(first.ID); !ok || old != first {
		t.Error("earlier node should stay reachable by id")
	}
	if g.Len() != 2 {
		t.Errorf("len = %d, want 2", g.Len())
	}
}

func TestIDCollisionGetsSuffix(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := New("test", WithClock(func() time.Time { return fixed }))
	a := g.Create(KindNode, "Same", nil, Organic)
	b := g.Create(KindNode, "Same", nil, Organic)
	if a.ID == b.ID {
		t.Fatalf("ids collide: %s", a.ID)
	}
	if !strings.HasPrefix(b.ID, a.ID+"-") {
		t.Errorf("second id = %q, want suffix on %q", b.ID, a.ID)
	}
}

func TestSpawnIsAlwaysSynthetic(t *testing.T) {
	for _, prov := range []Provenance{Organic, Synthetic, Hybrid, Unknown} {
		g := newTestGraph()
		g.Create(KindConstraint, "P", nil, prov)
		child, ok := g.Spawn("P", "C")
		if !ok {
			t.Fatalf("%s: spawn failed", prov)
		}
		if child.Provenance != Synthetic {
			t.Errorf("%s parent: child provenance = %s", prov, child.Provenance)
		}
		if child.Kind != KindConstraint {
			t.Errorf("child kind = %s, want parent's kind", child.Kind)
		}
	}
}

func TestSpawnLinksAndHistory(t *testing.T) {
	g := newTestGraph()
	parent := g.Create(KindNode, "Parent", value.MapOf("about", "root"), Organic)
	child, _ := g.Spawn("Parent", "Child")

	if child.Parent != parent.ID {
		t.Errorf("child.Parent = %q", child.Parent)
	}
	if diff := cmp.Diff([]string{child.ID}, parent.Children); diff != "" {
		t.Errorf("parent.Children mismatch (-want +got):\n%s", diff)
	}
	if len(parent.History) != 2 || parent.History[1].Action != ActionSpawned {
		t.Errorf("parent history = %+v", parent.History)
	}
	if len(child.History) != 1 {
		t.Errorf("child history len = %d, want 1", len(child.History))
	}
	edges := g.Edges()
	if len(edges) != 1 || edges[0].Type != EdgeSpawned || edges[0].From != parent.ID || edges[0].To != child.ID {
		t.Errorf("edges = %+v", edges)
	}
	if !strings.HasPrefix(edges[0].ID, "e_") {
		t.Errorf("edge id = %q", edges[0].ID)
	}

	if _, ok := g.Spawn("Nobody", "X"); ok {
		t.Error("spawn from missing parent should fail")
	}
}

func TestQueryCounts(t *testing.T) {
	g := newTestGraph()
	g.Create(KindNode, "Parent", value.MapOf("about", "root"), Organic)
	g.Spawn("Parent", "Child")

	res, ok := g.Query("Parent")
	if !ok {
		t.Fatal("query failed")
	}
	if res.ChildCount != 1 || res.DescendantCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", res.ChildCount, res.DescendantCount)
	}
	want := "Parent is a convergence/node about root (organic, 1 child)"
	if res.Summary != want {
		t.Errorf("summary = %q, want %q", res.Summary, want)
	}

	g.Spawn("Child", "Grandchild")
	g.Spawn("Parent", "Sibling")
	res, _ = g.Query("Parent")
	if res.ChildCount != 2 || res.DescendantCount != 3 {
		t.Errorf("counts = %d/%d, want 2/3", res.ChildCount, res.DescendantCount)
	}
}

func TestQuerySurvivesCycle(t *testing.T) {
	g := newTestGraph()
	a := g.Create(KindNode, "A", nil, Organic)
	b, _ := g.Spawn("A", "B")
	b.Children = append(b.Children, a.ID)

	res, _ := g.Query("A")
	if res.DescendantCount != 1 {
		t.Errorf("descendants = %d, want 1", res.DescendantCount)
	}
}

func TestUpdateDriftClasses(t *testing.T) {
	tests := []struct {
		field    string
		class    DriftClass
		hasDrift bool
	}{
		{"horizon", DriftTelic, true},
		{"focus", DriftTelic, true},
		{"outcomes", DriftTelic, true},
		{"vector", DriftTelic, true},
		{"depends_on", DriftStructural, true},
		{"refines", DriftStructural, true},
		{"parent", DriftStructural, true},
		{"children", DriftStructural, true},
		{"context", DriftCosmetic, false},
		{"about", DriftCosmetic, false},
	}
	for _, tc := range tests {
		g := newTestGraph()
		g.Create(KindNode, "N", nil, Organic)
		res := g.Update("N", tc.field, value.String("new"))
		if res.DriftClass != tc.class || res.HasDrift != tc.hasDrift {
			t.Errorf("%s: got %s/%v, want %s/%v", tc.field, res.DriftClass, res.HasDrift, tc.class, tc.hasDrift)
		}
	}
}

func TestUpdateUnchangedIsNone(t *testing.T) {
	g := newTestGraph()
	g.Create(KindNode, "N", value.MapOf("horizon", 2, "tags", []any{"a", "b"}), Organic)

	for field, v := range map[string]value.Value{
		"horizon": value.Number(2),
		"tags":    value.Array(value.String("a"), value.String("b")),
	} {
		res := g.Update("N", field, v)
		if res.DriftClass != DriftNone || res.HasDrift {
			t.Errorf("%s: drift = %s/%v, want none/false", field, res.DriftClass, res.HasDrift)
		}
	}
}

func TestUpdateAlwaysAppendsAndWrites(t *testing.T) {
	g := newTestGraph()
	g.Create(KindNode, "N", value.MapOf("horizon", 3), Organic)

	g.Update("N", "horizon", value.Number(1))
	g.Update("N", "horizon", value.Number(1))
	g.Update("N", "label", value.String("x"))

	n, _ := g.Get("N")
	if len(n.History) != 4 {
		t.Errorf("history len = %d, want 4", len(n.History))
	}
	if h, _ := n.Field("horizon"); !value.Equal(h, value.Number(1)) {
		t.Errorf("telic update not applied: horizon = %s", h)
	}
	last := n.History[1]
	if last.OldValue == nil || !value.Equal(*last.OldValue, value.Number(3)) {
		t.Errorf("old value = %v", last.OldValue)
	}
	if last.Note != string(DriftTelic) {
		t.Errorf("note = %q", last.Note)
	}
	if n.History[3].OldValue != nil {
		t.Error("new field should have no old value")
	}
	for i := 1; i < len(n.History); i++ {
		if n.History[i].Timestamp.Before(n.History[i-1].Timestamp) {
			t.Fatalf("history out of order at %d", i)
		}
	}
}

func TestUpdateMissingNode(t *testing.T) {
	g := newTestGraph()
	res := g.Update("Ghost", "horizon", value.Number(1))
	if res.HasDrift || res.DriftClass != DriftNone || res.Message != "Node not found" {
		t.Errorf("result = %+v", res)
	}
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	times := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 2, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC),
	}
	i := 0
	g := New("test", WithClock(func() time.Time {
		t := times[i%len(times)]
		i++
		return t
	}))
	g.Create(KindNode, "N", nil, Organic)
	g.Update("N", "x", value.Number(1))

	n, _ := g.Get("N")
	if n.History[1].Timestamp.Before(n.History[0].Timestamp) {
		t.Errorf("timestamps regressed: %v then %v", n.History[0].Timestamp, n.History[1].Timestamp)
	}
}

func TestSnapshotAt(t *testing.T) {
	g := newTestGraph()
	g.Create(KindNode, "N", value.MapOf("horizon", 3), Organic)
	g.Update("N", "horizon", value.Number(2))
	g.Update("N", "horizon", value.Number(1))

	snap, ok := g.SnapshotAt("N", 0)
	if !ok {
		t.Fatal("snapshot failed")
	}
	if len(snap.History) != 1 {
		t.Errorf("history len = %d, want 1", len(snap.History))
	}
	// Fields are current, not replayed.
	if h, _ := snap.Field("horizon"); !value.Equal(h, value.Number(1)) {
		t.Errorf("horizon = %s, want current value 1", h)
	}

	snap.Fields.Set("horizon", value.Number(7))
	live, _ := g.Get("N")
	if h, _ := live.Field("horizon"); !value.Equal(h, value.Number(1)) {
		t.Error("snapshot shares fields with live node")
	}
	if len(live.History) != 3 {
		t.Errorf("live history len = %d, want 3", len(live.History))
	}

	if full, _ := g.SnapshotAt("N", 10); len(full.History) != 3 {
		t.Errorf("oversized version history len = %d", len(full.History))
	}
	if _, ok := g.SnapshotAt("N", -1); ok {
		t.Error("negative version should not resolve")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	g := newTestGraph()
	g.Create(KindNode, "Parent", value.MapOf("about", "root", "horizon", 2, "meta", map[string]any{"owner": "al"}), Organic)
	g.Spawn("Parent", "Child")
	g.Create(KindSignal, "Ping", nil, Hybrid)
	g.Update("Child", "horizon", value.Number(1))
	g.Update("Parent", "tags", value.Array(value.String("a"), value.Bool(true)))
	g.Update("Ping", "owner", value.Null())
	g.Update("Ping", "owner", value.Number(1))

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	back := New("")
	if err := json.Unmarshal(data, back); err != nil {
		t.Fatal(err)
	}

	if back.Namespace() != "test" {
		t.Errorf("namespace = %q", back.Namespace())
	}
	if diff := cmp.Diff(g.Document(), back.Document(), valueComparer); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	child, ok := back.Get("Child")
	if !ok {
		t.Fatal("child lost")
	}
	parent, _ := back.Get("Parent")
	if child.Parent != parent.ID {
		t.Error("parent link lost")
	}

	ping, _ := back.Get("Ping")
	set, reset := ping.History[1], ping.History[2]
	if set.OldValue != nil {
		t.Errorf("unset old value = %s, want absent", set.OldValue)
	}
	if set.NewValue == nil || !set.NewValue.IsNull() {
		t.Errorf("new value = %v, want null", set.NewValue)
	}
	if reset.OldValue == nil || !reset.OldValue.IsNull() {
		t.Errorf("old value = %v, want null", reset.OldValue)
	}
}

func TestRoundTripKeepsStampFloor(t *testing.T) {
	g := newTestGraph()
	g.Create(KindNode, "N", nil, Organic)
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	early := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	back, err := FromDocument(&doc, WithClock(func() time.Time { return early }))
	if err != nil {
		t.Fatal(err)
	}
	back.Update("N", "x", value.Number(1))
	n, _ := back.Get("N")
	if n.History[1].Timestamp.Before(n.History[0].Timestamp) {
		t.Error("update after load sorted before loaded history")
	}
}

func TestFromDocumentRejectsBadNodes(t *testing.T) {
	docs := []*Document{
		nil,
		{Nodes: []*Node{{Name: "NoID"}}},
		{Nodes: []*Node{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}},
	}
	for i, doc := range docs {
		if _, err := FromDocument(doc); err == nil {
			t.Errorf("doc %d: expected error", i)
		}
	}
}
