// Package loader splits .xeno source into statement blocks and runs them
// through the executor.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/xenoscript/executor"
	"github.com/chazu/xenoscript/graph"
)

var log = commonlog.GetLogger("xeno.loader")

// Block is one statement's source and the line it starts on.
type Block struct {
	Text string
	Line int
}

// Split breaks src into statement blocks. A block ends at the first line
// break where every brace, bracket and paren opened in it is closed;
// brackets inside strings and comments are ignored. Blank and comment-only
// lines between blocks are dropped.
func Split(src string) []Block {
	blocks, _ := split(src)
	return blocks
}

// Incomplete reports whether src ends inside an open bracket or string,
// so an interactive reader should keep accumulating lines.
func Incomplete(src string) bool {
	_, open := split(src)
	return open
}

func split(src string) ([]Block, bool) {
	var (
		blocks  []Block
		cur     []string
		start   int
		depth   int
		quote   rune
		escaped bool
	)
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if len(cur) == 0 && quote == 0 {
			if t := strings.TrimSpace(line); t == "" || strings.HasPrefix(t, "#") {
				continue
			}
			start = i + 1
		}
		cur = append(cur, line)

	scan:
		for _, r := range line {
			switch {
			case quote != 0:
				switch {
				case escaped:
					escaped = false
				case r == '\\':
					escaped = true
				case r == quote:
					quote = 0
				}
			case r == '"' || r == '\'':
				quote = r
			case r == '#':
				break scan
			case r == '{' || r == '[' || r == '(':
				depth++
			case r == '}' || r == ']' || r == ')':
				depth--
			}
		}

		if depth <= 0 && quote == 0 {
			blocks = append(blocks, Block{Text: strings.Join(cur, "\n"), Line: start})
			cur, depth = nil, 0
		}
	}
	open := len(cur) > 0
	if open {
		blocks = append(blocks, Block{Text: strings.Join(cur, "\n"), Line: start})
	}
	return blocks, open
}

// Error is a statement that failed to execute.
type Error struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e Error) String() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

// Result summarizes one load.
type Result struct {
	Graph        *graph.Graph
	Errors       []Error
	NodesCreated int
	Requests     []executor.Request
}

// Load runs every block of src against state, continuing past failures.
// Builtin I/O requests are collected, not performed.
func Load(state *executor.State, src string) *Result {
	res := &Result{Graph: state.Graph}
	before := state.Graph.Len()
	for _, b := range Split(src) {
		out := executor.Execute(state, b.Text)
		if !out.Success {
			res.Errors = append(res.Errors, Error{Line: b.Line, Message: out.Output})
			continue
		}
		if out.Request != nil {
			res.Requests = append(res.Requests, *out.Request)
		}
		if out.ShouldExit {
			break
		}
	}
	res.NodesCreated = state.Graph.Len() - before
	return res
}

// LoadFile runs a file into a fresh namespace named after the file.
func LoadFile(path string, prov graph.Provenance) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	st := executor.NewState(Namespace(path), prov)
	res := Load(st, string(src))
	log.Infof("loaded %s: %d nodes, %d errors", path, res.NodesCreated, len(res.Errors))
	for _, e := range res.Errors {
		log.Debugf("%s:%s", path, e)
	}
	return res, nil
}

// Namespace derives a namespace name from a file path: plans/q3.xeno -> q3.
func Namespace(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
