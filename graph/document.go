package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/xenoscript/value"
)

// Document is the serialized form of a graph. Nodes appear in creation
// order; the name index is rebuilt from that order on load.
type Document struct {
	Namespace string  `json:"namespace" cbor:"namespace"`
	Nodes     []*Node `json:"nodes" cbor:"nodes"`
	Edges     []Edge  `json:"edges" cbor:"edges"`
}

// ErrInvalidDocument is returned when a document cannot be loaded.
var ErrInvalidDocument = errors.New("invalid graph document")

// Document returns a deep copy of the graph contents.
func (g *Graph) Document() *Document {
	doc := &Document{
		Namespace: g.namespace,
		Nodes:     make([]*Node, len(g.nodes)),
		Edges:     g.Edges(),
	}
	for i, n := range g.nodes {
		doc.Nodes[i] = n.clone()
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	return doc
}

// FromDocument rebuilds a graph. Later nodes win name collisions, matching
// what the original sequence of declarations produced.
func FromDocument(doc *Document, opts ...Option) (*Graph, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	g := New(doc.Namespace, opts...)
	for i, src := range doc.Nodes {
		if src == nil || src.ID == "" {
			return nil, fmt.Errorf("%w: node %d has no id", ErrInvalidDocument, i)
		}
		if _, dup := g.index[src.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalidDocument, src.ID)
		}
		n := src.clone()
		if n.Fields == nil {
			n.Fields = value.NewMap()
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
		g.names[n.Name] = n.ID
		g.observe(n.Created)
		for _, h := range n.History {
			g.observe(h.Timestamp)
		}
	}
	for _, e := range doc.Edges {
		g.edges = append(g.edges, e)
		g.observe(e.Created)
	}
	return g, nil
}

// observe advances the stamp floor so new entries sort after loaded ones.
func (g *Graph) observe(t time.Time) {
	if t.After(g.last) {
		g.last = t
	}
}

// MarshalJSON encodes the graph as a Document.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Document())
}

// UnmarshalJSON replaces the graph with the decoded document.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}
	now := g.now
	loaded, err := FromDocument(&doc)
	if err != nil {
		return err
	}
	if now != nil {
		loaded.now = now
	}
	*g = *loaded
	return nil
}

// UnmarshalJSON keeps a literal null old or new value apart from an
// absent one. A plain *value.Value field would decode both to nil.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	type entry HistoryEntry
	var raw struct {
		entry
		OldValue json.RawMessage `json:"oldValue"`
		NewValue json.RawMessage `json:"newValue"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = HistoryEntry(raw.entry)
	var err error
	if h.OldValue, err = rawValue(raw.OldValue); err != nil {
		return fmt.Errorf("oldValue: %w", err)
	}
	if h.NewValue, err = rawValue(raw.NewValue); err != nil {
		return fmt.Errorf("newValue: %w", err)
	}
	return nil
}

func rawValue(raw json.RawMessage) (*value.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		v := value.Null()
		return &v, nil
	}
	var v value.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
