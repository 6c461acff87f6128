package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/xenoscript/value"
)

// Graph owns every node and edge of one namespace. Nodes live in a dense
// arena in creation order; parent and child links are node ids. A Graph is
// not safe for concurrent use.
type Graph struct {
	namespace string
	nodes     []*Node
	index     map[string]int    // id -> arena slot
	names     map[string]string // name -> id, last create wins
	edges     []Edge

	now  func() time.Time
	last time.Time // latest timestamp handed out
}

// Option configures a Graph.
type Option func(*Graph)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

// New creates an empty graph for namespace.
func New(namespace string, opts ...Option) *Graph {
	g := &Graph{
		namespace: namespace,
		index:     make(map[string]int),
		names:     make(map[string]string),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Namespace returns the namespace name.
func (g *Graph) Namespace() string { return g.namespace }

// Len returns the number of stored nodes, including ones whose name was
// taken over by a later declaration.
func (g *Graph) Len() int { return len(g.nodes) }

// stamp returns the current time, never earlier than a previous stamp, so
// history stays ordered even if the wall clock steps back.
func (g *Graph) stamp() time.Time {
	t := g.now()
	if t.Before(g.last) {
		t = g.last
	}
	g.last = t
	return t
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Get resolves an id first, then a name. The returned node is owned by the
// graph and must not be modified.
func (g *Graph) Get(idOrName string) (*Node, bool) {
	if slot, ok := g.index[idOrName]; ok {
		return g.nodes[slot], true
	}
	if id, ok := g.names[idOrName]; ok {
		return g.nodes[g.index[id]], true
	}
	return nil, false
}

// Nodes returns every node in creation order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Children returns the resolved children of n in order. Dangling ids are
// skipped.
func (g *Graph) Children(n *Node) []*Node {
	var out []*Node
	for _, id := range n.Children {
		if c, ok := g.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// Edges returns a copy of the edge list.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// EdgesFrom returns edges leaving id.
func (g *Graph) EdgesFrom(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

// Create stores a new node with a single "created" history entry. A name
// already in use is silently repointed at the new node; the earlier node
// stays reachable by id.
func (g *Graph) Create(kind Kind, name string, fields *value.Map, prov Provenance) *Node {
	return g.create(kind, name, fields.Clone(), prov)
}

func (g *Graph) create(kind Kind, name string, fields *value.Map, prov Provenance) *Node {
	at := g.stamp()
	n := &Node{
		ID:         g.newID(kind, name, at),
		Kind:       kind,
		Name:       name,
		Fields:     fields,
		Provenance: prov,
		Created:    at,
		History:    []HistoryEntry{{Timestamp: at, Action: ActionCreated}},
		Children:   []string{},
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.names[name] = n.ID
	return n
}

// newID derives an id from kind, name and creation instant. Ids are never
// reused: a collision gets a random suffix.
func (g *Graph) newID(kind Kind, name string, at time.Time) string {
	id := fmt.Sprintf("%s-%s-%d", slug(kind.Short()), slug(name), at.UnixMilli())
	if _, taken := g.index[id]; taken {
		id += "-" + uuid.NewString()[:8]
	}
	return id
}

func slug(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

// Spawn creates a child of the node named by parentIDOrName. The child
// takes the parent's kind and is always synthetic; only the parent records
// a "spawned" history entry. Returns false when the parent does not exist.
func (g *Graph) Spawn(parentIDOrName, childName string) (*Node, bool) {
	parent, ok := g.Get(parentIDOrName)
	if !ok {
		return nil, false
	}

	kind := parent.Kind
	if kind == "" {
		kind = KindNode
	}
	child := g.create(kind, childName, value.NewMap(), Synthetic)
	child.Parent = parent.ID
	parent.Children = append(parent.Children, child.ID)

	at := child.Created
	childID := value.String(child.ID)
	parent.History = append(parent.History, HistoryEntry{
		Timestamp: at,
		Action:    ActionSpawned,
		Field:     "children",
		NewValue:  &childID,
		Note:      childName,
	})
	g.edges = append(g.edges, Edge{
		ID:      "e_" + uuid.NewString(),
		From:    parent.ID,
		To:      child.ID,
		Type:    EdgeSpawned,
		Created: at,
	})
	return child, true
}

// Update overwrites one field and appends a history entry, whatever the
// drift class. Telic drift is reported, never blocked.
func (g *Graph) Update(idOrName, field string, v value.Value) DriftResult {
	n, ok := g.Get(idOrName)
	if !ok {
		return DriftResult{
			HasDrift:   false,
			DriftClass: DriftNone,
			Field:      field,
			Message:    "Node not found",
		}
	}

	var old *value.Value
	if cur, had := n.Fields.Get(field); had {
		c := cur.Clone()
		old = &c
	}
	next := v.Clone()
	res := Classify(field, old, next)

	n.History = append(n.History, HistoryEntry{
		Timestamp: g.stamp(),
		Action:    ActionUpdated,
		Field:     field,
		OldValue:  old,
		NewValue:  &next,
		Note:      string(res.DriftClass),
	})
	n.Fields.Set(field, v.Clone())
	return res
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// QueryResult summarizes a node and its subtree.
type QueryResult struct {
	Node            *Node
	ChildCount      int
	DescendantCount int
	Summary         string
}

// Query reports child and descendant counts plus a one-line summary.
func (g *Graph) Query(idOrName string) (QueryResult, bool) {
	n, ok := g.Get(idOrName)
	if !ok {
		return QueryResult{}, false
	}
	res := QueryResult{
		Node:            n,
		ChildCount:      len(n.Children),
		DescendantCount: g.descendants(n, map[string]bool{}),
	}
	res.Summary = summarize(n, res.ChildCount)
	return res, true
}

// descendants counts the subtree below n. The graph is expected to be a
// DAG; a node already on the current path is not descended into again.
func (g *Graph) descendants(n *Node, onPath map[string]bool) int {
	onPath[n.ID] = true
	defer delete(onPath, n.ID)

	total := 0
	for _, c := range g.Children(n) {
		if onPath[c.ID] {
			continue
		}
		total += 1 + g.descendants(c, onPath)
	}
	return total
}

func summarize(n *Node, childCount int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s is a %s", n.Name, n.Kind)
	for _, f := range []string{"about", "focus"} {
		if v, ok := n.Fields.Get(f); ok && !v.IsNull() {
			fmt.Fprintf(&sb, " about %s", v.Text())
			break
		}
	}
	fmt.Fprintf(&sb, " (%s, %s)", n.Provenance, Plural(childCount, "child", "children"))
	return sb.String()
}

// Plural formats a count with the matching noun.
func Plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// Snapshot returns a copy of the current node.
func (g *Graph) Snapshot(idOrName string) (*Node, bool) {
	n, ok := g.Get(idOrName)
	if !ok {
		return nil, false
	}
	return n.clone(), true
}

// SnapshotAt returns a copy whose history is cut to version+1 entries.
// Fields are not replayed: they hold current values, not the values as of
// that version.
func (g *Graph) SnapshotAt(idOrName string, version int) (*Node, bool) {
	if version < 0 {
		return nil, false
	}
	cp, ok := g.Snapshot(idOrName)
	if !ok {
		return nil, false
	}
	if version+1 < len(cp.History) {
		cp.History = cp.History[:version+1]
	}
	return cp, true
}
