package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/lint"
	"github.com/chazu/xenoscript/projector"
	"github.com/chazu/xenoscript/session"
	"github.com/chazu/xenoscript/store"
)

// ExecService implements the ExecutionService Connect handlers.
type ExecService struct {
	worker     *Worker
	sessions   *SessionStore
	store      store.Store
	provenance graph.Provenance
}

// NewExecService creates an ExecService. st may be nil, in which case
// sessions cannot load or save.
func NewExecService(worker *Worker, sessions *SessionStore, st store.Store, prov graph.Provenance) *ExecService {
	return &ExecService{
		worker:     worker,
		sessions:   sessions,
		store:      st,
		provenance: prov,
	}
}

// Handlers returns the service's procedures keyed by path.
func (s *ExecService) Handlers(opts ...connect.HandlerOption) map[string]http.Handler {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	return map[string]http.Handler{
		OpenSessionProcedure:  connect.NewUnaryHandler(OpenSessionProcedure, s.OpenSession, opts...),
		ExecuteProcedure:      connect.NewUnaryHandler(ExecuteProcedure, s.Execute, opts...),
		CheckSyntaxProcedure:  connect.NewUnaryHandler(CheckSyntaxProcedure, s.CheckSyntax, opts...),
		ProjectProcedure:      connect.NewUnaryHandler(ProjectProcedure, s.Project, opts...),
		ListNodesProcedure:    connect.NewUnaryHandler(ListNodesProcedure, s.ListNodes, opts...),
		CloseSessionProcedure: connect.NewUnaryHandler(CloseSessionProcedure, s.CloseSession, opts...),
	}
}

// OpenSession creates a session, optionally loading its namespace.
func (s *ExecService) OpenSession(
	ctx context.Context,
	req *connect.Request[OpenSessionRequest],
) (*connect.Response[OpenSessionResponse], error) {
	ns := req.Msg.Namespace
	if err := store.ValidateName(ns); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	prov := s.provenance
	if req.Msg.Provenance != "" {
		prov = graph.ParseProvenance(req.Msg.Provenance)
		if prov == graph.Unknown && req.Msg.Provenance != string(graph.Unknown) {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown provenance %q", req.Msg.Provenance))
		}
	}

	sess := session.New(ns, prov, s.store)
	if req.Msg.Load {
		if err := sess.Load(ctx, ns); err != nil {
			return nil, storeError(err)
		}
	}
	added := s.sessions.Add(sess)
	log.Infof("session %s opened on %s", added.ID, ns)

	return connect.NewResponse(&OpenSessionResponse{
		SessionID: added.ID,
		Namespace: ns,
		Nodes:     sess.State.Graph.Len(),
	}), nil
}

// Execute runs source statements in a session.
func (s *ExecService) Execute(
	ctx context.Context,
	req *connect.Request[ExecuteRequest],
) (*connect.Response[ExecuteResponse], error) {
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	sess, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.worker.Do(func() interface{} {
		return sess.EvalSource(ctx, req.Msg.Source)
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &ExecuteResponse{Success: true, Results: result.([]session.Outcome)}
	for _, o := range resp.Results {
		if !o.Result.Success {
			resp.Success = false
		}
		if o.Result.ShouldExit {
			s.sessions.Destroy(sess.ID)
			log.Infof("session %s exited", sess.ID)
		}
	}
	return connect.NewResponse(resp), nil
}

// CheckSyntax lints source without executing it.
func (s *ExecService) CheckSyntax(
	ctx context.Context,
	req *connect.Request[CheckSyntaxRequest],
) (*connect.Response[CheckSyntaxResponse], error) {
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	diags := lint.Lint(req.Msg.Source, nil)
	return connect.NewResponse(&CheckSyntaxResponse{
		Valid:       !lint.HasErrors(diags),
		Diagnostics: diags,
	}), nil
}

// Project renders a node with a named projector.
func (s *ExecService) Project(
	ctx context.Context,
	req *connect.Request[ProjectRequest],
) (*connect.Response[ProjectResponse], error) {
	sess, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	name := req.Msg.Projector
	if name == "" {
		name = "task/list"
	}
	p, ok := sess.State.Projectors.Get(name)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("unknown projector %q", name))
	}

	result, err := s.worker.Do(func() interface{} {
		n, ok := sess.State.Graph.Get(req.Msg.Node)
		if !ok {
			return projector.ErrNodeNotFound
		}
		out, err := p.Project(sess.State.Graph, n.ID)
		if err != nil {
			return err
		}
		return out
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	switch v := result.(type) {
	case error:
		if errors.Is(v, projector.ErrNodeNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("node %q not found", req.Msg.Node))
		}
		return nil, connect.NewError(connect.CodeInternal, v)
	case projector.Output:
		return connect.NewResponse(&ProjectResponse{Output: v, Projector: name}), nil
	}
	return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("unexpected result %T", result))
}

// ListNodes summarizes every node in a session.
func (s *ExecService) ListNodes(
	ctx context.Context,
	req *connect.Request[ListNodesRequest],
) (*connect.Response[ListNodesResponse], error) {
	sess, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	result, err := s.worker.Do(func() interface{} {
		resp := &ListNodesResponse{Namespace: sess.Namespace(), Nodes: []NodeSummary{}}
		for _, n := range sess.State.Graph.Nodes() {
			resp.Nodes = append(resp.Nodes, NodeSummary{
				ID:         n.ID,
				Name:       n.Name,
				Kind:       string(n.Kind),
				Provenance: string(n.Provenance),
				Children:   len(n.Children),
			})
		}
		return resp
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*ListNodesResponse)), nil
}

// CloseSession ends a session.
func (s *ExecService) CloseSession(
	ctx context.Context,
	req *connect.Request[CloseSessionRequest],
) (*connect.Response[CloseSessionResponse], error) {
	sess, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	resp := &CloseSessionResponse{}
	if req.Msg.Save {
		result, err := s.worker.Do(func() interface{} {
			return sess.Save(ctx, sess.Namespace())
		})
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		if saveErr, _ := result.(error); saveErr != nil {
			return nil, storeError(saveErr)
		}
		resp.Saved = true
	}
	s.sessions.Destroy(sess.ID)
	log.Infof("session %s closed (saved: %t)", sess.ID, resp.Saved)
	return connect.NewResponse(resp), nil
}

func (s *ExecService) session(id string) (*Session, error) {
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session id is required"))
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return sess, nil
}

// storeError maps store failures onto Connect codes.
func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, store.ErrInvalidName):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, session.ErrNoStore):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
