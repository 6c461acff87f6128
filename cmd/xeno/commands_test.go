package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/manifest"
	"github.com/chazu/xenoscript/session"
	"github.com/chazu/xenoscript/store"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "xeno" {
		t.Errorf("Use = %q, want xeno", rootCmd.Use)
	}
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"repl", "run", "lint", "fmt", "project", "ls", "rm", "export", "import", "serve", "lsp", "exec", "watch"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", want)
		}
	}
}

func TestFormatFile(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"canonical spacing",
			"node   A{horizon:2}\n",
			"node A { horizon: 2 }\n",
		},
		{
			"comments and blanks kept",
			"# plan\n\nnode A{horizon:2}\n\n\nA.horizon=3   \n",
			"# plan\n\nnode A { horizon: 2 }\n\n\nA.horizon = 3\n",
		},
		{
			"statement with comment left alone",
			"node A { horizon: 2 } # keep\n",
			"node A { horizon: 2 } # keep\n",
		},
		{
			"trailing blank lines collapse",
			"ls\n\n\n",
			"ls\n",
		},
	}
	for _, tc := range tests {
		got, err := formatFile(tc.in)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tc.name, diff)
		}
	}

	if _, err := formatFile("node A\nnode {\n}\n"); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 error, got %v", err)
	}
}

func TestHasComment(t *testing.T) {
	tests := map[string]bool{
		`node A # note`:             true,
		`node A { about: "#1" }`:    false,
		`node A { about: 'it\'s' }`: false,
		`node A`:                    false,
	}
	for in, want := range tests {
		if got := hasComment(in); got != want {
			t.Errorf("hasComment(%q) = %v, want %v", in, got, want)
		}
	}
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return session.New("work", graph.Organic, st)
}

func TestREPL(t *testing.T) {
	sess := newTestSession(t)
	in := strings.NewReader("node A {\n  about: \"x\"\n}\nA.label = \"y\"\nsave\nexit\nnode B\n")
	var out bytes.Buffer

	if err := repl(context.Background(), sess, in, &out, styles{}); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{
		"XenoScript (namespace work",
		"....> ",
		"✓ A.label = \"y\" (cosmetic)",
		"Saved namespace work (1 node)",
		"Goodbye.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if _, ok := sess.State.Graph.Get("B"); ok {
		t.Error("statements after exit were executed")
	}
}

func TestStylesResult(t *testing.T) {
	s := styles{}
	if got := s.result(session.New("x", graph.Organic, nil).Eval(context.Background(), "clear")); got != "" {
		t.Errorf("clear without a terminal = %q", got)
	}
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.xeno")
	if err := os.WriteFile(path, []byte("node A\nA.spawn(\"B\")\nGhost.x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sess := newTestSession(t)
	var out bytes.Buffer
	failed := runFiles(context.Background(), sess, []string{path, filepath.Join(dir, "missing.xeno")}, &out, true)
	if failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}
	if !strings.Contains(out.String(), path+":3: Node not found: Ghost") {
		t.Errorf("output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "spawned") {
		t.Error("quiet run printed successes")
	}
}

func TestDecodeGraph(t *testing.T) {
	g := graph.New("work")
	g.Create(graph.KindNode, "A", nil, graph.Organic)

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	image, err := store.EncodeImage(g)
	if err != nil {
		t.Fatal(err)
	}
	for name, in := range map[string][]byte{"json": data, "image": image} {
		back, err := decodeGraph(in)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if back.Namespace() != "work" || back.Len() != 1 {
			t.Errorf("%s: decoded %s with %d nodes", name, back.Namespace(), back.Len())
		}
	}
	if _, err := decodeGraph([]byte("not a graph")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestOpenStoreUsesConfig(t *testing.T) {
	dir := t.TempDir()
	cfg = manifest.Default(dir)
	t.Cleanup(func() { cfg = nil })

	st, err := openStore()
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	fs, ok := st.(*store.FileStore)
	if !ok || fs.Dir() != filepath.Join(dir, manifest.DefaultStorePath) {
		t.Errorf("store = %T %v", st, st)
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.xeno")
	if err := os.WriteFile(path, []byte("node A\n"), 0644); err != nil {
		t.Fatal(err)
	}

	runs := make(chan struct{}, 8)
	w := &watcher{
		path:     path,
		debounce: 20 * time.Millisecond,
		out:      &bytes.Buffer{},
		run:      func() { runs <- struct{}{} },
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.watch(ctx) }()

	wait := func(what string) {
		t.Helper()
		select {
		case <-runs:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", what)
		}
	}
	wait("initial run")
	if err := os.WriteFile(path, []byte("node A\nnode B\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wait("rerun after write")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch returned %v", err)
	}
}
