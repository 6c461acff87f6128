package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for XenoScript statements
// ---------------------------------------------------------------------------

// Lexer tokenizes XenoScript source. It never fails: malformed input
// produces TokenError tokens that the parser rejects.
type Lexer struct {
	input   string
	pos     int  // offset of ch
	readPos int  // offset after ch
	ch      rune // current character, 0 at EOF
	line    int  // line of ch
	col     int  // column of ch

	nextLine int
	nextCol  int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:    input,
		nextLine: 1,
		nextCol:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	l.line, l.col = l.nextLine, l.nextCol
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	if r == '\n' {
		l.nextLine++
		l.nextCol = 1
	} else {
		l.nextCol++
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// single consumes one character and returns a punctuation token.
func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipSpaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return Token{Type: TokenEOF, Pos: pos}
	case l.ch == '\n':
		return l.single(TokenNewline, pos)
	case l.ch == '{':
		return l.single(TokenLBrace, pos)
	case l.ch == '}':
		return l.single(TokenRBrace, pos)
	case l.ch == '[':
		return l.single(TokenLBracket, pos)
	case l.ch == ']':
		return l.single(TokenRBracket, pos)
	case l.ch == '(':
		return l.single(TokenLParen, pos)
	case l.ch == ')':
		return l.single(TokenRParen, pos)
	case l.ch == ':':
		return l.single(TokenColon, pos)
	case l.ch == ',':
		return l.single(TokenComma, pos)
	case l.ch == '.':
		return l.single(TokenDot, pos)
	case l.ch == '=':
		return l.single(TokenEquals, pos)
	case l.ch == '?':
		return l.single(TokenQuestion, pos)
	case l.ch == '→':
		return l.single(TokenArrow, pos)
	case l.ch == '-' && l.peekChar() == '>':
		l.readChar()
		l.readChar()
		return Token{Type: TokenArrow, Literal: "->", Pos: pos}
	case l.ch == '"' || l.ch == '\'':
		return l.readString(pos)
	case isDigit(l.ch):
		return l.readNumber(pos)
	case l.ch == '-' && isDigit(l.peekChar()):
		return l.readNumber(pos)
	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)
	default:
		return l.single(TokenError, pos)
	}
}

// skipSpaceAndComments skips blanks and # line comments, stopping at newlines.
func (l *Lexer) skipSpaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

// readString reads a single- or double-quoted string literal.
func (l *Lexer) readString(pos Position) Token {
	quote := l.ch
	l.readChar() // consume opening quote

	var sb strings.Builder
	for {
		switch {
		case l.ch == 0 && l.pos >= len(l.input):
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		case l.ch == quote:
			l.readChar()
			return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
		case l.ch == '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"', '\'':
				sb.WriteRune(l.ch)
			case 0:
				return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
			default:
				sb.WriteByte('\\')
				sb.WriteRune(l.ch)
			}
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readNumber reads an integer or decimal, with optional leading minus.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads an identifier, keyword, boolean or null. Inner
// slashes are allowed (task/list) and a trailing @N names a history version.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for {
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		if l.ch == '/' && (isLetter(l.peekChar()) || l.peekChar() == '_') {
			l.readChar()
			continue
		}
		break
	}
	word := l.input[start:l.pos]

	if l.ch == '@' && isDigit(l.peekChar()) {
		l.readChar() // consume @
		for isDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenIdentifier, Literal: l.input[start:l.pos], Pos: pos}
	}

	switch {
	case word == "true" || word == "false":
		return Token{Type: TokenBoolean, Literal: word, Pos: pos}
	case word == "null":
		return Token{Type: TokenNull, Literal: word, Pos: pos}
	case IsKeyword(word):
		return Token{Type: TokenKeyword, Literal: word, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: word, Pos: pos}
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF. Runs of
// newlines collapse into a single newline token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == TokenNewline && len(tokens) > 0 && tokens[len(tokens)-1].Type == TokenNewline {
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
