package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/xenoscript/lint"
	"github.com/chazu/xenoscript/projector"
	"github.com/chazu/xenoscript/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	srv := New(st, WithSessionTTL(0, 0))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return NewClient(ts.Client(), ts.URL)
}

func openSession(t *testing.T, c *Client, req *OpenSessionRequest) string {
	t.Helper()
	resp, err := c.OpenSession(context.Background(), req)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("empty session id")
	}
	return resp.SessionID
}

func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Errorf("code = %s, want %s (%v)", got, code, err)
	}
}

func TestExecuteAndProject(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	id := openSession(t, c, &OpenSessionRequest{Namespace: "work"})

	exec, err := c.Execute(ctx, &ExecuteRequest{
		SessionID: id,
		Source:    "node Plan { horizon: 2 }\nPlan.spawn(\"Docs\")\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !exec.Success || len(exec.Results) != 2 {
		t.Fatalf("execute = %+v", exec)
	}
	if exec.Results[1].Line != 2 || !strings.Contains(exec.Results[1].Result.Output, "spawned from Plan") {
		t.Errorf("second result = %+v", exec.Results[1])
	}

	proj, err := c.Project(ctx, &ProjectRequest{SessionID: id, Node: "Plan", Projector: "graph/tree"})
	if err != nil {
		t.Fatal(err)
	}
	if proj.Lossiness != projector.Lossless || !strings.Contains(proj.Output.Output, "Docs") {
		t.Errorf("project = %+v", proj)
	}

	proj, err = c.Project(ctx, &ProjectRequest{SessionID: id, Node: "Plan"})
	if err != nil {
		t.Fatal(err)
	}
	if proj.Projector != "task/list" {
		t.Errorf("default projector = %q", proj.Projector)
	}

	nodes, err := c.ListNodes(ctx, &ListNodesRequest{SessionID: id})
	if err != nil {
		t.Fatal(err)
	}
	if nodes.Namespace != "work" || len(nodes.Nodes) != 2 || nodes.Nodes[0].Children != 1 {
		t.Errorf("list = %+v", nodes)
	}
}

func TestExecuteReportsFailures(t *testing.T) {
	c := newTestClient(t)
	id := openSession(t, c, &OpenSessionRequest{Namespace: "work"})

	exec, err := c.Execute(context.Background(), &ExecuteRequest{SessionID: id, Source: "Ghost.x = 1"})
	if err != nil {
		t.Fatal(err)
	}
	if exec.Success || exec.Results[0].Result.Output != "Node not found: Ghost" {
		t.Errorf("execute = %+v", exec)
	}

	exec, err = c.Execute(context.Background(), &ExecuteRequest{SessionID: id, Source: `run "x.xeno"`})
	if err != nil {
		t.Fatal(err)
	}
	if exec.Success {
		t.Error("run should not be available remotely")
	}
}

func TestSaveOnCloseAndReload(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	id := openSession(t, c, &OpenSessionRequest{Namespace: "work", Provenance: "hybrid"})

	if _, err := c.Execute(ctx, &ExecuteRequest{SessionID: id, Source: "node A\nnode B"}); err != nil {
		t.Fatal(err)
	}
	closed, err := c.CloseSession(ctx, &CloseSessionRequest{SessionID: id, Save: true})
	if err != nil {
		t.Fatal(err)
	}
	if !closed.Saved {
		t.Error("expected saved")
	}
	_, err = c.ListNodes(ctx, &ListNodesRequest{SessionID: id})
	wantCode(t, err, connect.CodeNotFound)

	reopened, err := c.OpenSession(ctx, &OpenSessionRequest{Namespace: "work", Load: true})
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Nodes != 2 {
		t.Errorf("reloaded nodes = %d, want 2", reopened.Nodes)
	}
	nodes, err := c.ListNodes(ctx, &ListNodesRequest{SessionID: reopened.SessionID})
	if err != nil {
		t.Fatal(err)
	}
	if nodes.Nodes[0].Provenance != "hybrid" {
		t.Errorf("provenance = %q", nodes.Nodes[0].Provenance)
	}
}

func TestExitClosesSession(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	id := openSession(t, c, &OpenSessionRequest{Namespace: "work"})

	exec, err := c.Execute(ctx, &ExecuteRequest{SessionID: id, Source: "exit"})
	if err != nil {
		t.Fatal(err)
	}
	if !exec.Results[0].Result.ShouldExit {
		t.Errorf("exit = %+v", exec)
	}
	_, err = c.Execute(ctx, &ExecuteRequest{SessionID: id, Source: "ls"})
	wantCode(t, err, connect.CodeNotFound)
}

func TestCheckSyntax(t *testing.T) {
	c := newTestClient(t)
	resp, err := c.CheckSyntax(context.Background(), &CheckSyntaxRequest{Source: "node A { horizon: 1 }\nGhost.x = 1\n"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Valid {
		t.Error("expected invalid")
	}
	found := false
	for _, d := range resp.Diagnostics {
		if d.Rule == lint.RuleUnknownTarget && d.Line == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v", resp.Diagnostics)
	}
}

func TestServiceErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.OpenSession(ctx, &OpenSessionRequest{Namespace: "../escape"})
	wantCode(t, err, connect.CodeInvalidArgument)

	_, err = c.OpenSession(ctx, &OpenSessionRequest{Namespace: "work", Provenance: "alien"})
	wantCode(t, err, connect.CodeInvalidArgument)

	_, err = c.OpenSession(ctx, &OpenSessionRequest{Namespace: "missing", Load: true})
	wantCode(t, err, connect.CodeNotFound)

	_, err = c.Execute(ctx, &ExecuteRequest{SessionID: "s-999", Source: "ls"})
	wantCode(t, err, connect.CodeNotFound)

	id := openSession(t, c, &OpenSessionRequest{Namespace: "work"})
	_, err = c.Execute(ctx, &ExecuteRequest{SessionID: id})
	wantCode(t, err, connect.CodeInvalidArgument)

	_, err = c.Project(ctx, &ProjectRequest{SessionID: id, Node: "Nope"})
	wantCode(t, err, connect.CodeNotFound)

	_, err = c.Project(ctx, &ProjectRequest{SessionID: id, Node: "Nope", Projector: "mind/map"})
	wantCode(t, err, connect.CodeNotFound)

	_, err = c.CheckSyntax(ctx, &CheckSyntaxRequest{})
	wantCode(t, err, connect.CodeInvalidArgument)
}
