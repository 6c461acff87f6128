package graph

import (
	"fmt"

	"github.com/chazu/xenoscript/value"
)

// DriftClass is the semantic severity of a field mutation.
type DriftClass string

const (
	DriftNone       DriftClass = "none"
	DriftCosmetic   DriftClass = "cosmetic"
	DriftStructural DriftClass = "structural"
	DriftTelic      DriftClass = "telic"
)

// Fields whose change alters what a node is for.
var telicFields = map[string]bool{
	"focus":    true,
	"horizon":  true,
	"outcomes": true,
	"vector":   true,
}

// Fields whose change alters how nodes relate.
var structuralFields = map[string]bool{
	"depends_on": true,
	"refines":    true,
	"parent":     true,
	"children":   true,
}

// IsTelicField reports whether field carries project intent.
func IsTelicField(field string) bool { return telicFields[field] }

// IsStructuralField reports whether field carries relationships.
func IsStructuralField(field string) bool { return structuralFields[field] }

// DriftResult describes one classified mutation.
type DriftResult struct {
	HasDrift   bool         `json:"hasDrift"`
	DriftClass DriftClass   `json:"driftClass"`
	Field      string       `json:"field"`
	OldValue   *value.Value `json:"oldValue,omitempty"`
	NewValue   *value.Value `json:"newValue,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// ClassifyField maps a field name to its drift class, assuming the value
// changed.
func ClassifyField(field string) DriftClass {
	switch {
	case telicFields[field]:
		return DriftTelic
	case structuralFields[field]:
		return DriftStructural
	}
	return DriftCosmetic
}

// Classify computes the drift of setting field from old to next. old is
// nil when the field was absent. Only the field name and whether the value
// changed matter, never the content.
func Classify(field string, old *value.Value, next value.Value) DriftResult {
	nv := next
	res := DriftResult{Field: field, OldValue: old, NewValue: &nv}
	if old != nil && value.Equal(*old, next) {
		res.DriftClass = DriftNone
		res.Message = fmt.Sprintf("%s unchanged", field)
		return res
	}
	res.DriftClass = ClassifyField(field)
	res.HasDrift = res.DriftClass == DriftStructural || res.DriftClass == DriftTelic
	switch res.DriftClass {
	case DriftTelic:
		res.Message = fmt.Sprintf("%s changes the intent of the node", field)
	case DriftStructural:
		res.Message = fmt.Sprintf("%s changes how the node relates to others", field)
	default:
		res.Message = fmt.Sprintf("%s is a cosmetic change", field)
	}
	return res
}
