// Package projector renders a node and its reachable subgraph into a
// textual artifact. Every projector declares whether its rendering can be
// reversed (lossless) or drops information (lossy).
package projector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/xenoscript/graph"
)

// Lossiness states whether a projection keeps all node information.
type Lossiness string

const (
	Lossless Lossiness = "lossless"
	Lossy    Lossiness = "lossy"
)

// Output is the result of one projection.
type Output struct {
	Output          string    `json:"output"`
	Lossiness       Lossiness `json:"lossiness"`
	DiscardedFields []string  `json:"discardedFields,omitempty"`
	DiscardedEdges  []string  `json:"discardedEdges,omitempty"`
}

// Projector is a named renderer.
type Projector interface {
	Name() string
	Description() string
	Lossiness() Lossiness
	Project(g *graph.Graph, nodeID string) (Output, error)
}

var (
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("projector already registered")
	// ErrNodeNotFound is returned when the projected node does not exist.
	ErrNodeNotFound = errors.New("node not found")
)

// Registry maps projector names to implementations. It is built once at
// startup and passed to whoever needs it.
type Registry struct {
	byName map[string]Projector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Projector)}
}

// Default returns a registry holding the built-in projectors.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []Projector{TaskList{}, Tree{}, Questions{}, YAML{}} {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds p under its name.
func (r *Registry) Register(p Projector) error {
	if _, ok := r.byName[p.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, p.Name())
	}
	r.byName[p.Name()] = p
	return nil
}

// Get looks up a projector by name.
func (r *Registry) Get(name string) (Projector, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.byName[name]
	return p, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup resolves the node to project.
func lookup(g *graph.Graph, nodeID string) (*graph.Node, error) {
	n, ok := g.Get(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	return n, nil
}

// horizon reads the horizon field, falling back to def when absent or not
// numeric.
func horizon(n *graph.Node, def float64) (float64, bool) {
	v, ok := n.Field("horizon")
	if !ok {
		return def, false
	}
	if h, ok := v.AsNumber(); ok {
		return h, true
	}
	return def, false
}
