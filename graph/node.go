// Package graph holds the semantic graph of one namespace: nodes, their
// append-only history, provenance, and the edges recorded between them.
package graph

import (
	"time"

	"github.com/chazu/xenoscript/value"
)

// Kind is a node kind.
type Kind string

const (
	KindNode       Kind = "convergence/node"
	KindRelation   Kind = "relation"
	KindConstraint Kind = "constraint"
	KindSignal     Kind = "signal"
)

// Short returns the last path segment of a kind: "convergence/node" -> "node".
func (k Kind) Short() string {
	s := string(k)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[i+1:]
		}
	}
	return s
}

// Provenance records who or what produced a node.
type Provenance string

const (
	Organic   Provenance = "organic"
	Synthetic Provenance = "synthetic"
	Hybrid    Provenance = "hybrid"
	Unknown   Provenance = "unknown"
)

// ParseProvenance maps a name to a Provenance, defaulting to Unknown.
func ParseProvenance(s string) Provenance {
	switch Provenance(s) {
	case Organic, Synthetic, Hybrid:
		return Provenance(s)
	}
	return Unknown
}

// Glyph is the single-character marker used in listings and trees.
func (p Provenance) Glyph() string {
	switch p {
	case Organic:
		return "◉"
	case Synthetic:
		return "○"
	case Hybrid:
		return "◐"
	}
	return "◌"
}

// Action is what a history entry records.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSpawned Action = "spawned"
)

// HistoryEntry is one immutable audit record. OldValue and NewValue are
// nil when not applicable, which is distinct from a null value.
type HistoryEntry struct {
	Timestamp time.Time    `json:"timestamp" cbor:"timestamp"`
	Action    Action       `json:"action" cbor:"action"`
	Field     string       `json:"field,omitempty" cbor:"field,omitempty"`
	OldValue  *value.Value `json:"oldValue,omitempty" cbor:"oldValue,omitempty"`
	NewValue  *value.Value `json:"newValue,omitempty" cbor:"newValue,omitempty"`
	Note      string       `json:"note,omitempty" cbor:"note,omitempty"`
}

// Node is a declared or spawned semantic entity.
type Node struct {
	ID         string         `json:"id" cbor:"id"`
	Kind       Kind           `json:"kind" cbor:"kind"`
	Name       string         `json:"name" cbor:"name"`
	Fields     *value.Map     `json:"fields" cbor:"fields"`
	Provenance Provenance     `json:"provenance" cbor:"provenance"`
	Created    time.Time      `json:"created" cbor:"created"`
	History    []HistoryEntry `json:"history" cbor:"history"`
	Parent     string         `json:"parent,omitempty" cbor:"parent,omitempty"`
	Children   []string       `json:"children" cbor:"children"`
}

// Field returns the named field value.
func (n *Node) Field(name string) (value.Value, bool) {
	return n.Fields.Get(name)
}

// Version is the index of the latest history entry.
func (n *Node) Version() int {
	return len(n.History) - 1
}

// clone copies the node so callers cannot reach graph-owned slices.
func (n *Node) clone() *Node {
	cp := *n
	cp.Fields = n.Fields.Clone()
	cp.History = append([]HistoryEntry(nil), n.History...)
	cp.Children = append([]string{}, n.Children...)
	return &cp
}

// Edge is a typed relation record.
type Edge struct {
	ID      string    `json:"id" cbor:"id"`
	From    string    `json:"from" cbor:"from"`
	To      string    `json:"to" cbor:"to"`
	Type    string    `json:"type" cbor:"type"`
	Created time.Time `json:"created" cbor:"created"`
}

// EdgeSpawned links a parent to a child created by Spawn.
const EdgeSpawned = "spawned"
