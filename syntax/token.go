package syntax

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the XenoScript lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenIdentifier // Foo, task/list, Foo@2
	TokenKeyword    // node, history, ls, ...
	TokenString     // "hello", 'hello'
	TokenNumber     // 42, -1.5
	TokenBoolean    // true, false
	TokenNull       // null

	// Punctuation
	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenRBracket // ]
	TokenLParen   // (
	TokenRParen   // )
	TokenColon    // :
	TokenComma    // ,
	TokenDot      // .
	TokenEquals   // =
	TokenArrow    // → or ->
	TokenQuestion // ?
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNewline:    "NEWLINE",
	TokenIdentifier: "IDENTIFIER",
	TokenKeyword:    "KEYWORD",
	TokenString:     "STRING",
	TokenNumber:     "NUMBER",
	TokenBoolean:    "BOOLEAN",
	TokenNull:       "NULL",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenColon:      ":",
	TokenComma:      ",",
	TokenDot:        ".",
	TokenEquals:     "=",
	TokenArrow:      "→",
	TokenQuestion:   "?",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a 1-based source location.
type Position struct {
	Offset int // byte offset
	Line   int
	Column int
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string // decoded text; for strings the unescaped content
	Pos     Position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenNewline:
		return "NEWLINE"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Declaration keywords mapped to the node kind they declare.
var declarationKinds = map[string]string{
	"node":       "convergence/node",
	"relation":   "relation",
	"constraint": "constraint",
	"signal":     "signal",
}

// Builtin command keywords.
var builtins = map[string]bool{
	"ls":    true,
	"save":  true,
	"load":  true,
	"run":   true,
	"exit":  true,
	"help":  true,
	"clear": true,
}

const keywordHistory = "history"

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool {
	_, decl := declarationKinds[word]
	return decl || builtins[word] || word == keywordHistory
}

// Keywords returns every reserved word, for completion.
func Keywords() []string {
	out := []string{keywordHistory}
	for k := range declarationKinds {
		out = append(out, k)
	}
	for k := range builtins {
		out = append(out, k)
	}
	return out
}

// KindForKeyword returns the node kind declared by a declaration keyword.
func KindForKeyword(kw string) (string, bool) {
	k, ok := declarationKinds[kw]
	return k, ok
}

// KeywordForKind is the inverse of KindForKeyword.
func KeywordForKind(kind string) (string, bool) {
	for kw, k := range declarationKinds {
		if k == kind {
			return kw, true
		}
	}
	return "", false
}
