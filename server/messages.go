package server

import (
	"github.com/chazu/xenoscript/lint"
	"github.com/chazu/xenoscript/projector"
	"github.com/chazu/xenoscript/session"
)

// ServiceName is the Connect service path prefix.
const ServiceName = "xeno.v1.ExecutionService"

// Procedure paths.
const (
	OpenSessionProcedure  = "/" + ServiceName + "/OpenSession"
	ExecuteProcedure      = "/" + ServiceName + "/Execute"
	CheckSyntaxProcedure  = "/" + ServiceName + "/CheckSyntax"
	ProjectProcedure      = "/" + ServiceName + "/Project"
	ListNodesProcedure    = "/" + ServiceName + "/ListNodes"
	CloseSessionProcedure = "/" + ServiceName + "/CloseSession"
)

// OpenSessionRequest starts a session. With Load set the namespace is read
// from the server's store; otherwise it starts empty.
type OpenSessionRequest struct {
	Namespace  string `json:"namespace"`
	Provenance string `json:"provenance,omitempty"`
	Load       bool   `json:"load,omitempty"`
}

type OpenSessionResponse struct {
	SessionID string `json:"sessionId"`
	Namespace string `json:"namespace"`
	Nodes     int    `json:"nodes"`
}

// ExecuteRequest runs one or more statements.
type ExecuteRequest struct {
	SessionID string `json:"sessionId"`
	Source    string `json:"source"`
}

type ExecuteResponse struct {
	Success bool              `json:"success"`
	Results []session.Outcome `json:"results"`
}

type CheckSyntaxRequest struct {
	Source string `json:"source"`
}

type CheckSyntaxResponse struct {
	Valid       bool              `json:"valid"`
	Diagnostics []lint.Diagnostic `json:"diagnostics,omitempty"`
}

type ProjectRequest struct {
	SessionID string `json:"sessionId"`
	Node      string `json:"node"`
	Projector string `json:"projector"`
}

type ProjectResponse struct {
	projector.Output
	Projector string `json:"projector"`
}

type ListNodesRequest struct {
	SessionID string `json:"sessionId"`
}

// NodeSummary is one row of ListNodes.
type NodeSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Provenance string `json:"provenance"`
	Children   int    `json:"children"`
}

type ListNodesResponse struct {
	Namespace string        `json:"namespace"`
	Nodes     []NodeSummary `json:"nodes"`
}

// CloseSessionRequest ends a session, saving it first when Save is set.
type CloseSessionRequest struct {
	SessionID string `json:"sessionId"`
	Save      bool   `json:"save,omitempty"`
}

type CloseSessionResponse struct {
	Saved bool `json:"saved"`
}
