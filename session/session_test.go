package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/store"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New("work", graph.Organic, st)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	s.Eval(ctx, `node Plan { focus: "ship" }`)
	res := s.Eval(ctx, "save")
	if !res.Success || res.Output != "Saved namespace work (1 node)" {
		t.Fatalf("save = %+v", res)
	}

	res = s.Eval(ctx, "save backup")
	if !res.Success {
		t.Fatalf("save backup = %+v", res)
	}
	if s.Namespace() != "work" {
		t.Errorf("namespace after save-as = %q", s.Namespace())
	}

	other := New("scratch", graph.Organic, s.Store)
	res = other.Eval(ctx, "load backup")
	if !res.Success || res.Output != "Loaded namespace backup (1 node)" {
		t.Fatalf("load = %+v", res)
	}
	if _, ok := other.State.Graph.Get("Plan"); !ok {
		t.Error("loaded graph is missing Plan")
	}
}

func TestLoadMissing(t *testing.T) {
	s := newSession(t)
	res := s.Eval(context.Background(), "load nowhere")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(res.Output, "load failed: ") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestNoStore(t *testing.T) {
	s := New("work", graph.Organic, nil)
	res := s.Eval(context.Background(), "save")
	if res.Success || !strings.Contains(res.Output, ErrNoStore.Error()) {
		t.Errorf("save without store = %+v", res)
	}
	if err := s.Load(context.Background(), "x"); !errors.Is(err, ErrNoStore) {
		t.Errorf("Load = %v", err)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	script := "node A { horizon: 2 }\nA.spawn(\"B\")\nGhost.x = 1\n"
	if err := os.WriteFile(filepath.Join(dir, "plan.xeno"), []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	s := newSession(t)
	res := s.Eval(context.Background(), `run "plan.xeno"`)
	if res.Success {
		t.Fatalf("run without AllowRun succeeded: %+v", res)
	}

	s.AllowRun = true
	s.Dir = dir
	res = s.Eval(context.Background(), `run "plan.xeno"`)
	if !res.Success {
		t.Fatalf("run = %+v", res)
	}
	want := "Ran " + filepath.Join(dir, "plan.xeno") + ": 3 statements, 2 nodes created, 1 error\n  line 3: Node not found: Ghost"
	if res.Output != want {
		t.Errorf("output =\n%s\nwant\n%s", res.Output, want)
	}
}

func TestRunRecursionBounded(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "loop.xeno"), []byte("run \"loop.xeno\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s := newSession(t)
	s.AllowRun = true
	s.Dir = dir
	res := s.Eval(context.Background(), `run "loop.xeno"`)
	if !res.Success {
		t.Fatalf("outer run = %+v", res)
	}
	if !strings.HasPrefix(res.Output, "Ran ") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestEvalSourceStopsOnExit(t *testing.T) {
	s := newSession(t)
	out := s.EvalSource(context.Background(), "node A\nexit\nnode B\n")
	if len(out) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(out))
	}
	if !out[1].Result.ShouldExit || out[1].Line != 2 {
		t.Errorf("second outcome = %+v", out[1])
	}
	if s.State.Graph.Len() != 1 {
		t.Errorf("nodes = %d", s.State.Graph.Len())
	}
}
