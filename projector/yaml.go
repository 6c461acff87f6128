package projector

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/value"
)

// YAML renders the subtree as a YAML document, fields in declaration order.
type YAML struct{}

func (YAML) Name() string { return "data/yaml" }

func (YAML) Description() string {
	return "YAML document of the subtree with fields in declaration order"
}

func (YAML) Lossiness() Lossiness { return Lossy }

func (p YAML) Project(g *graph.Graph, nodeID string) (Output, error) {
	n, err := lookup(g, nodeID)
	if err != nil {
		return Output{}, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(nodeYAML(g, n, map[string]bool{})); err != nil {
		return Output{}, fmt.Errorf("encode %s: %w", n.Name, err)
	}
	if err := enc.Close(); err != nil {
		return Output{}, fmt.Errorf("encode %s: %w", n.Name, err)
	}
	return Output{
		Output:          strings.TrimRight(buf.String(), "\n"),
		Lossiness:       p.Lossiness(),
		DiscardedFields: []string{"id", "created", "history"},
		DiscardedEdges:  []string{"spawned"},
	}, nil
}

func nodeYAML(g *graph.Graph, n *graph.Node, onPath map[string]bool) *yaml.Node {
	onPath[n.ID] = true
	defer delete(onPath, n.ID)

	m := &yaml.Node{Kind: yaml.MappingNode}
	addPair(m, "name", scalar("!!str", n.Name))
	addPair(m, "kind", scalar("!!str", string(n.Kind)))
	addPair(m, "provenance", scalar("!!str", string(n.Provenance)))
	if n.Fields.Len() > 0 {
		addPair(m, "fields", mapYAML(n.Fields))
	}

	var kids []*yaml.Node
	for _, c := range g.Children(n) {
		if !onPath[c.ID] {
			kids = append(kids, nodeYAML(g, c, onPath))
		}
	}
	if len(kids) > 0 {
		addPair(m, "children", &yaml.Node{Kind: yaml.SequenceNode, Content: kids})
	}
	return m
}

func addPair(m *yaml.Node, key string, v *yaml.Node) {
	m.Content = append(m.Content, scalar("!!str", key), v)
}

func scalar(tag, s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: s}
}

func mapYAML(fields *value.Map) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		addPair(m, k, valueYAML(v))
	}
	return m
}

func valueYAML(v value.Value) *yaml.Node {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		return scalar("!!str", s)
	case value.KindNumber:
		f, _ := v.AsNumber()
		s := value.FormatNumber(f)
		if strings.Contains(s, ".") {
			return scalar("!!float", s)
		}
		return scalar("!!int", s)
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return scalar("!!bool", "true")
		}
		return scalar("!!bool", "false")
	case value.KindArray:
		elems, _ := v.AsArray()
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, e := range elems {
			seq.Content = append(seq.Content, valueYAML(e))
		}
		return seq
	case value.KindObject:
		obj, _ := v.AsObject()
		return mapYAML(obj)
	}
	return scalar("!!null", "null")
}
