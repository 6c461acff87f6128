// Package session binds an executor state to a store and carries out the
// I/O requests builtins hand back (save, load, run).
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/xenoscript/executor"
	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/loader"
	"github.com/chazu/xenoscript/store"
)

var log = commonlog.GetLogger("xeno.session")

// maxRunDepth bounds nested `run` statements.
const maxRunDepth = 8

// ErrNoStore is reported by save and load when the session has no store.
var ErrNoStore = errors.New("no store configured")

// Session is one interactive or remote conversation with a graph.
type Session struct {
	State *executor.State
	Store store.Store

	// AllowRun enables the run builtin. Relative paths resolve against Dir.
	AllowRun bool
	Dir      string

	depth int
}

// New returns a session over an empty namespace. st may be nil.
func New(namespace string, prov graph.Provenance, st store.Store) *Session {
	return &Session{
		State: executor.NewState(namespace, prov),
		Store: st,
	}
}

// Namespace is the name of the graph currently loaded.
func (s *Session) Namespace() string {
	return s.State.Graph.Namespace()
}

// Eval executes one statement and performs any request it makes.
func (s *Session) Eval(ctx context.Context, line string) executor.Result {
	res := executor.Execute(s.State, line)
	if !res.Success || res.Request == nil {
		return res
	}
	return s.perform(ctx, res)
}

// Outcome is one block's result within EvalSource.
type Outcome struct {
	Line   int             `json:"line"`
	Result executor.Result `json:"result"`
}

// EvalSource splits src into statements and evaluates each in order,
// stopping after a statement that asks to exit.
func (s *Session) EvalSource(ctx context.Context, src string) []Outcome {
	var out []Outcome
	for _, b := range loader.Split(src) {
		if ctx.Err() != nil {
			out = append(out, Outcome{Line: b.Line, Result: executor.Result{Output: ctx.Err().Error()}})
			break
		}
		res := s.Eval(ctx, b.Text)
		out = append(out, Outcome{Line: b.Line, Result: res})
		if res.ShouldExit {
			break
		}
	}
	return out
}

func (s *Session) perform(ctx context.Context, res executor.Result) executor.Result {
	req := res.Request
	var err error
	switch req.Name {
	case "save":
		ns := s.Namespace()
		if len(req.Args) > 0 {
			ns = req.Args[0]
		}
		err = s.Save(ctx, ns)
		if err == nil {
			res.Output = fmt.Sprintf("Saved namespace %s (%s)", ns, graph.Plural(s.State.Graph.Len(), "node", "nodes"))
		}
	case "load":
		err = s.Load(ctx, req.Args[0])
		if err == nil {
			res.Output = fmt.Sprintf("Loaded namespace %s (%s)", s.Namespace(), graph.Plural(s.State.Graph.Len(), "node", "nodes"))
		}
	case "run":
		res.Output, err = s.Run(ctx, req.Args[0])
	default:
		err = fmt.Errorf("unsupported request %q", req.Name)
	}
	if err != nil {
		res.Success = false
		res.Output = fmt.Sprintf("%s failed: %v", req.Name, err)
	}
	return res
}

// Save writes the current graph under namespace. Saving under a new name
// stores a copy; the session keeps its current namespace.
func (s *Session) Save(ctx context.Context, namespace string) error {
	if s.Store == nil {
		return ErrNoStore
	}
	g := s.State.Graph
	if namespace != g.Namespace() {
		doc := g.Document()
		doc.Namespace = namespace
		var err error
		if g, err = graph.FromDocument(doc); err != nil {
			return err
		}
	}
	if err := s.Store.Save(ctx, g); err != nil {
		return err
	}
	log.Infof("saved %s (%d nodes)", namespace, g.Len())
	return nil
}

// Load replaces the session graph with the stored namespace.
func (s *Session) Load(ctx context.Context, namespace string) error {
	if s.Store == nil {
		return ErrNoStore
	}
	g, err := s.Store.Load(ctx, namespace)
	if err != nil {
		return err
	}
	s.State.Graph = g
	log.Infof("loaded %s (%d nodes)", namespace, g.Len())
	return nil
}

// Run evaluates a script file into the current graph and returns a
// summary naming the statements that failed.
func (s *Session) Run(ctx context.Context, path string) (string, error) {
	if !s.AllowRun {
		return "", errors.New("run is not available in this session")
	}
	if s.depth >= maxRunDepth {
		return "", fmt.Errorf("run nested deeper than %d files", maxRunDepth)
	}
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	s.depth++
	before := s.State.Graph.Len()
	outcomes := s.EvalSource(ctx, string(src))
	s.depth--

	var failed []string
	for _, o := range outcomes {
		if !o.Result.Success {
			failed = append(failed, loader.Error{Line: o.Line, Message: o.Result.Output}.String())
		}
	}
	log.Infof("ran %s: %d statements, %d failed", path, len(outcomes), len(failed))

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ran %s: %s, %s created, %s",
		path,
		graph.Plural(len(outcomes), "statement", "statements"),
		graph.Plural(s.State.Graph.Len()-before, "node", "nodes"),
		graph.Plural(len(failed), "error", "errors"))
	for _, f := range failed {
		sb.WriteString("\n  ")
		sb.WriteString(f)
	}
	return sb.String(), nil
}
