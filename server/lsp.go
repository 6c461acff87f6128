package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/xenoscript/executor"
	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/lint"
	"github.com/chazu/xenoscript/loader"
	"github.com/chazu/xenoscript/projector"
	"github.com/chazu/xenoscript/syntax"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "xeno-lsp"

// keywordDocs backs keyword completion and hover.
var keywordDocs = map[string]string{
	"node":       "Declare a convergence node: `node Name { field: value }`",
	"relation":   "Declare a relation node",
	"constraint": "Declare a constraint node",
	"signal":     "Declare a signal node",
	"history":    "Show a node's full history: `history Name`",
	"ls":         "List the nodes in the namespace",
	"save":       "Save the namespace: `save [name]`",
	"load":       "Replace the session graph with a saved namespace: `load name`",
	"run":        "Execute a script file: `run \"path.xeno\"`",
	"exit":       "End the session",
	"help":       "Show the statement reference",
	"clear":      "Clear the screen",
}

// lspDocument is one open file and what executing it produced.
type lspDocument struct {
	text  string
	graph *graph.Graph
	decls map[string]protocol.Range
	diags []lint.Diagnostic
}

// LspServer provides editor features for .xeno files. Each open document
// is executed into a private graph; nothing is persisted.
type LspServer struct {
	worker     *Worker
	projectors *projector.Registry
	provenance graph.Provenance

	mu   sync.Mutex
	docs map[string]*lspDocument // URI → analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates an LSP server.
func NewLSP(prov graph.Provenance) *LspServer {
	s := &LspServer{
		worker:     NewWorker(),
		projectors: projector.Default(),
		provenance: prov,
		docs:       make(map[string]*lspDocument),
		version:    "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "XenoScript LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", ">", "→", "?"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.DocumentSymbolProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update re-analyzes a document and publishes its diagnostics.
func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func() interface{} {
		return s.analyze(text)
	})
	if err != nil {
		log.Errorf("analyze %s: %s", uri, err)
		return
	}
	doc := result.(*lspDocument)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toProtocol(doc.diags),
	})
}

func (s *LspServer) document(uri protocol.DocumentUri) (*lspDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

// analyze lints text and executes it into a scratch graph.
func (s *LspServer) analyze(text string) *lspDocument {
	state := &executor.State{
		Graph:             graph.New("lsp"),
		SessionProvenance: s.provenance,
		Projectors:        s.projectors,
	}
	loader.Load(state, text)

	doc := &lspDocument{
		text:  text,
		graph: state.Graph,
		decls: make(map[string]protocol.Range),
		diags: lint.Lint(text, s.projectors),
	}
	lines := strings.Split(text, "\n")
	for _, b := range loader.Split(text) {
		parsed := syntax.Parse(b.Text)
		if !parsed.Success {
			continue
		}
		switch st := parsed.Statement.(type) {
		case *syntax.Declaration:
			doc.declare(lines, st.Name, b.Line-1)
		case *syntax.Command:
			if st.Method == "spawn" && len(st.Args) > 0 {
				if name, ok := st.Args[0].AsString(); ok {
					doc.declare(lines, name, b.Line-1)
				}
			}
		}
	}
	return doc
}

// declare records the first declaration of name, ranging over the name's
// first occurrence on line.
func (d *lspDocument) declare(lines []string, name string, line int) {
	if _, seen := d.decls[name]; seen || line < 0 || line >= len(lines) {
		return
	}
	col := strings.Index(lines[line], name)
	if col < 0 {
		col = 0
	}
	d.decls[name] = protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col + len(name))},
	}
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	line := lineAt(doc.text, params.Position)
	col := clampColumn(line, params.Position)
	return s.complete(doc, line[:col]), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	result, err := s.worker.Do(func() interface{} {
		return s.hover(doc, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	rng, ok := doc.decls[word]
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{URI: params.TextDocument.URI, Range: rng}}, nil
}

func (s *LspServer) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	result, err := s.worker.Do(func() interface{} {
		return s.symbols(doc)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// complete offers projector names after an arrow, fields and methods
// after "Name.", and otherwise keywords and node names.
func (s *LspServer) complete(doc *lspDocument, before string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	prefix := trailingIdent(before)
	rest := strings.TrimRight(strings.TrimSuffix(before, prefix), " \t")
	lower := strings.ToLower(prefix)
	matches := func(label string) bool { return strings.HasPrefix(strings.ToLower(label), lower) }

	switch {
	case strings.HasSuffix(rest, "→") || strings.HasSuffix(rest, "->"):
		for _, name := range s.projectors.Names() {
			if matches(name) {
				p, _ := s.projectors.Get(name)
				add(name, protocol.CompletionItemKindFunction, fmt.Sprintf("%s projector", p.Lossiness()))
			}
		}
		return items

	case strings.HasSuffix(rest, ".") && rest == strings.TrimSuffix(before, prefix):
		target := trailingIdent(strings.TrimSuffix(rest, "."))
		n, ok := doc.graph.Get(target)
		if !ok {
			return nil
		}
		if matches("spawn") {
			add("spawn", protocol.CompletionItemKindMethod, "create a synthetic child")
		}
		for _, key := range n.Fields.Keys() {
			if matches(key) {
				v, _ := n.Fields.Get(key)
				add(key, protocol.CompletionItemKindField, v.String())
			}
		}
		return items
	}

	if prefix == "" {
		return nil
	}
	keywords := make([]string, 0, len(keywordDocs))
	for kw := range keywordDocs {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	for _, kw := range keywords {
		if matches(kw) {
			add(kw, protocol.CompletionItemKindKeyword, "keyword")
		}
	}
	for _, n := range doc.graph.Nodes() {
		if matches(n.Name) {
			add(n.Name, protocol.CompletionItemKindVariable, n.Kind.Short())
		}
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func (s *LspServer) hover(doc *lspDocument, word string) *protocol.Hover {
	var b strings.Builder
	switch {
	case keywordDocs[word] != "":
		fmt.Fprintf(&b, "**%s**\n\n%s", word, keywordDocs[word])
	default:
		if p, ok := s.projectors.Get(word); ok {
			fmt.Fprintf(&b, "**%s** (%s)\n\n%s", p.Name(), p.Lossiness(), p.Description())
			break
		}
		q, ok := doc.graph.Query(word)
		if !ok {
			return nil
		}
		fmt.Fprintf(&b, "**%s** %s\n\n%s", q.Node.Name, q.Node.Kind, q.Summary)
		if keys := q.Node.Fields.Keys(); len(keys) > 0 {
			b.WriteString("\n\n")
			for _, key := range keys {
				v, _ := q.Node.Fields.Get(key)
				fmt.Fprintf(&b, "- `%s`: %s\n", key, v.String())
			}
		}
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// symbols outlines the document as its node tree.
func (s *LspServer) symbols(doc *lspDocument) []protocol.DocumentSymbol {
	var build func(n *graph.Node, onPath map[string]bool) protocol.DocumentSymbol
	build = func(n *graph.Node, onPath map[string]bool) protocol.DocumentSymbol {
		rng := doc.decls[n.Name]
		detail := fmt.Sprintf("%s %s", n.Provenance.Glyph(), n.Kind.Short())
		sym := protocol.DocumentSymbol{
			Name:           n.Name,
			Detail:         &detail,
			Kind:           protocol.SymbolKindObject,
			Range:          rng,
			SelectionRange: rng,
		}
		onPath[n.ID] = true
		for _, c := range doc.graph.Children(n) {
			if !onPath[c.ID] {
				sym.Children = append(sym.Children, build(c, onPath))
			}
		}
		delete(onPath, n.ID)
		return sym
	}

	var out []protocol.DocumentSymbol
	for _, n := range doc.graph.Nodes() {
		if n.Parent != "" {
			if _, ok := doc.graph.Get(n.Parent); ok {
				continue
			}
		}
		out = append(out, build(n, map[string]bool{}))
	}
	return out
}

// toProtocol converts lint findings to LSP diagnostics.
func toProtocol(diags []lint.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	source := lspName
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityInformation
		switch d.Severity {
		case lint.SeverityError:
			severity = protocol.DiagnosticSeverityError
		case lint.SeverityWarning:
			severity = protocol.DiagnosticSeverityWarning
		}
		line := d.Line - 1
		if line < 0 {
			line = 0
		}
		col := d.Column - 1
		if col < 0 {
			col = 0
		}
		code := protocol.IntegerOrString{Value: d.Rule}
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
				End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
			},
			Severity: &severity,
			Code:     &code,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// --- Text extraction helpers ---

func lineAt(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	return lines[pos.Line]
}

func clampColumn(line string, pos protocol.Position) int {
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return col
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '/'
}

// trailingIdent returns the identifier fragment at the end of s.
func trailingIdent(s string) string {
	start := len(s)
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	return s[start:]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line := lineAt(text, pos)
	col := clampColumn(line, pos)

	start := len(line[:col]) - len(trailingIdent(line[:col]))
	end := col
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}
	if start == end {
		return ""
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
