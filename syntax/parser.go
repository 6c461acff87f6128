package syntax

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/xenoscript/value"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent, one statement per call
// ---------------------------------------------------------------------------

// Error is a parse failure at a source position.
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Parser parses one XenoScript statement.
type Parser struct {
	tokens    []Token
	pos       int
	curToken  Token
	peekToken Token
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{tokens: Tokenize(input)}
	p.pos = -1
	p.nextToken()
	return p
}

// nextToken advances to the next token. EOF repeats forever.
func (p *Parser) nextToken() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.curToken = p.tokens[p.pos]
	if p.pos+1 < len(p.tokens) {
		p.peekToken = p.tokens[p.pos+1]
	} else {
		p.peekToken = p.curToken
	}
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect consumes the current token if it matches, otherwise fails.
func (p *Parser) expect(t TokenType) error {
	if p.curTokenIs(t) {
		p.nextToken()
		return nil
	}
	return p.errorf("expected %s, got %s", t, describe(p.curToken))
}

// errorf builds a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) error {
	return &Error{Pos: p.curToken.Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// skipSeparators skips newlines and commas inside blocks and lists.
func (p *Parser) skipSeparators() {
	for p.curTokenIs(TokenNewline) || p.curTokenIs(TokenComma) {
		p.nextToken()
	}
}

func describe(t Token) string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenNewline:
		return "end of line"
	case TokenError:
		return fmt.Sprintf("invalid character %q", t.Literal)
	case TokenString:
		return fmt.Sprintf("string %q", t.Literal)
	case TokenIdentifier, TokenKeyword, TokenNumber, TokenBoolean, TokenNull:
		return fmt.Sprintf("%s %q", strings.ToLower(t.Type.String()), t.Literal)
	}
	return fmt.Sprintf("'%s'", t.Literal)
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseStatement parses the whole input as a single statement. It returns
// nil, nil when the input holds only blanks and comments.
func (p *Parser) ParseStatement() (Statement, error) {
	for _, tok := range p.tokens {
		if tok.Type == TokenError {
			if tok.Literal == "unterminated string" {
				return nil, &Error{Pos: tok.Pos, Msg: tok.Literal}
			}
			return nil, &Error{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected character %q", tok.Literal)}
		}
	}

	p.skipNewlines()

	var (
		stmt Statement
		err  error
	)
	switch {
	case p.curTokenIs(TokenEOF):
		return nil, nil
	case p.curTokenIs(TokenQuestion):
		stmt, err = p.parseQuery()
	case p.curTokenIs(TokenKeyword) && p.curToken.Literal == keywordHistory:
		stmt, err = p.parseHistory()
	case p.curTokenIs(TokenKeyword) && builtins[p.curToken.Literal]:
		stmt, err = p.parseBuiltin()
	case p.curTokenIs(TokenKeyword):
		stmt, err = p.parseDeclaration()
	case p.curTokenIs(TokenIdentifier):
		stmt, err = p.parseIdentifierStatement()
	default:
		return nil, p.errorf("unexpected %s at start of statement", describe(p.curToken))
	}
	if err != nil {
		return nil, err
	}

	p.skipNewlines()
	if !p.curTokenIs(TokenEOF) {
		return nil, p.errorf("unexpected %s after statement", describe(p.curToken))
	}
	return stmt, nil
}

// span closes a span at the token before the current one.
func (p *Parser) span(start Position) Span {
	end := p.curToken.Pos
	if p.pos > 0 {
		end = p.tokens[p.pos-1].Pos
	}
	return Span{Start: start, End: end}
}

// splitVersion separates Name@N into its name and version.
func splitVersion(lit string) (name string, version int, ok bool) {
	i := strings.LastIndexByte(lit, '@')
	if i < 0 {
		return lit, 0, false
	}
	v, err := strconv.Atoi(lit[i+1:])
	if err != nil {
		return lit, 0, false
	}
	return lit[:i], v, true
}

// plainName reads an identifier that may not carry a version suffix.
func (p *Parser) plainName(what string) (string, error) {
	if !p.curTokenIs(TokenIdentifier) {
		return "", p.errorf("expected %s, got %s", what, describe(p.curToken))
	}
	name, _, versioned := splitVersion(p.curToken.Literal)
	if versioned {
		return "", p.errorf("history version not allowed on %s %q", what, p.curToken.Literal)
	}
	p.nextToken()
	return name, nil
}

// ---------------------------------------------------------------------------
// Statement forms
// ---------------------------------------------------------------------------

// parseQuery parses ?, ?Name, ?Name@N, ?Name.member, ?drift and ?drift Name.
func (p *Parser) parseQuery() (Statement, error) {
	start := p.curToken.Pos
	p.nextToken() // consume ?

	q := &Query{Kind: QueryInfo}
	if p.curTokenIs(TokenIdentifier) && p.curToken.Literal == "drift" {
		q.Kind = QueryDrift
		p.nextToken()
		if p.curTokenIs(TokenIdentifier) {
			name, err := p.plainName("drift target")
			if err != nil {
				return nil, err
			}
			q.Target = name
		}
		q.SpanVal = p.span(start)
		return q, nil
	}

	if p.curTokenIs(TokenIdentifier) {
		q.Target, q.Version, q.HasVersion = splitVersion(p.curToken.Literal)
		p.nextToken()
		if p.curTokenIs(TokenDot) {
			p.nextToken()
			member, err := p.parseMember()
			if err != nil {
				return nil, err
			}
			q.Member = member
		}
	} else if !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenNewline) {
		return nil, p.errorf("expected node name after '?', got %s", describe(p.curToken))
	}
	q.SpanVal = p.span(start)
	return q, nil
}

// parseHistory parses: history Name
func (p *Parser) parseHistory() (Statement, error) {
	start := p.curToken.Pos
	p.nextToken() // consume history

	if !p.curTokenIs(TokenIdentifier) {
		return nil, p.errorf("expected node name after 'history', got %s", describe(p.curToken))
	}
	q := &Query{Kind: QueryHistory}
	q.Target, q.Version, q.HasVersion = splitVersion(p.curToken.Literal)
	p.nextToken()
	q.SpanVal = p.span(start)
	return q, nil
}

// parseBuiltin parses: ls | save [ns] | load ns | run file | exit | help | clear
func (p *Parser) parseBuiltin() (Statement, error) {
	start := p.curToken.Pos
	b := &Builtin{Name: p.curToken.Literal}
	p.nextToken()

	for p.curTokenIs(TokenIdentifier) || p.curTokenIs(TokenString) {
		b.Args = append(b.Args, p.curToken.Literal)
		p.nextToken()
	}
	if !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenNewline) {
		return nil, p.errorf("%s takes name or string arguments, got %s", b.Name, describe(p.curToken))
	}
	b.SpanVal = p.span(start)
	return b, nil
}

// parseDeclaration parses: <kind> Name { field: value, ... }
func (p *Parser) parseDeclaration() (Statement, error) {
	start := p.curToken.Pos
	kw := p.curToken.Literal
	kind, _ := KindForKeyword(kw)
	p.nextToken()

	name, err := p.plainName("node name")
	if err != nil {
		return nil, err
	}

	decl := &Declaration{Keyword: kw, Kind: kind, Name: name}
	switch {
	case p.curTokenIs(TokenLBrace):
		fields, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		decl.Fields = fields
	case p.curTokenIs(TokenEOF) || p.curTokenIs(TokenNewline):
		decl.Fields = value.NewMap()
	default:
		return nil, p.errorf("expected '{' after %s %s, got %s", kw, name, describe(p.curToken))
	}
	decl.SpanVal = p.span(start)
	return decl, nil
}

// parseIdentifierStatement disambiguates projection, assignment, command
// and info query forms that begin with a bare identifier.
func (p *Parser) parseIdentifierStatement() (Statement, error) {
	start := p.curToken.Pos
	lit := p.curToken.Literal
	target, version, versioned := splitVersion(lit)

	if versioned && !p.peekTokenIs(TokenEOF) && !p.peekTokenIs(TokenNewline) && !p.peekTokenIs(TokenDot) {
		return nil, p.errorf("history version is only valid in queries: %q", lit)
	}
	p.nextToken()

	switch {
	case p.curTokenIs(TokenArrow):
		p.nextToken()
		var projector string
		switch {
		case p.curTokenIs(TokenIdentifier), p.curTokenIs(TokenString), p.curTokenIs(TokenKeyword):
			projector = p.curToken.Literal
			p.nextToken()
		default:
			return nil, p.errorf("expected projector name after arrow, got %s", describe(p.curToken))
		}
		return &Projection{SpanVal: p.span(start), Target: target, Projector: projector}, nil

	case p.curTokenIs(TokenDot):
		p.nextToken()
		member, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		switch {
		case p.curTokenIs(TokenEquals):
			if versioned {
				return nil, p.errorf("cannot assign to a history version of %s", target)
			}
			p.nextToken()
			p.skipNewlines()
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			return &Assignment{SpanVal: p.span(start), Target: target, Member: member, Value: v}, nil
		case p.curTokenIs(TokenLParen):
			if versioned {
				return nil, p.errorf("cannot call %s on a history version of %s", member, target)
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &Command{SpanVal: p.span(start), Target: target, Method: member, Args: args}, nil
		}
		return &Query{SpanVal: p.span(start), Kind: QueryInfo, Target: target, Member: member, Version: version, HasVersion: versioned}, nil
	}

	return &Query{SpanVal: p.span(start), Kind: QueryInfo, Target: target, Version: version, HasVersion: versioned}, nil
}

// parseMember reads the name after a dot. Keywords are valid members.
func (p *Parser) parseMember() (string, error) {
	if !p.curTokenIs(TokenIdentifier) && !p.curTokenIs(TokenKeyword) {
		return "", p.errorf("expected member name after '.', got %s", describe(p.curToken))
	}
	m := p.curToken.Literal
	p.nextToken()
	return m, nil
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// parseValue parses a literal, array, object or bare reference.
func (p *Parser) parseValue() (value.Value, error) {
	tok := p.curToken
	switch tok.Type {
	case TokenString:
		p.nextToken()
		return value.String(tok.Literal), nil
	case TokenNumber:
		n, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return value.Value{}, p.errorf("invalid number %q", tok.Literal)
		}
		p.nextToken()
		return value.Number(n), nil
	case TokenBoolean:
		p.nextToken()
		return value.Bool(tok.Literal == "true"), nil
	case TokenNull:
		p.nextToken()
		return value.Null(), nil
	case TokenLBracket:
		return p.parseArray()
	case TokenLBrace:
		m, err := p.parseObject()
		if err != nil {
			return value.Value{}, err
		}
		return value.Object(m), nil
	case TokenIdentifier, TokenKeyword:
		// Bare names reference other nodes; resolution happens at use.
		p.nextToken()
		return value.String(tok.Literal), nil
	}
	return value.Value{}, p.errorf("expected value, got %s", describe(tok))
}

// parseObject parses { key: value (, key: value)* } with optional commas
// and insignificant newlines. Later duplicate keys overwrite earlier ones.
func (p *Parser) parseObject() (*value.Map, error) {
	open := p.curToken.Pos
	p.nextToken() // consume {

	m := value.NewMap()
	for {
		p.skipSeparators()
		switch {
		case p.curTokenIs(TokenRBrace):
			p.nextToken()
			return m, nil
		case p.curTokenIs(TokenEOF):
			return nil, &Error{Pos: open, Msg: "unterminated block: expected '}'"}
		case p.curTokenIs(TokenIdentifier), p.curTokenIs(TokenKeyword), p.curTokenIs(TokenString):
		default:
			return nil, p.errorf("expected field name, got %s", describe(p.curToken))
		}

		key := p.curToken.Literal
		p.nextToken()
		if err := p.expect(TokenColon); err != nil {
			return nil, err
		}
		p.skipNewlines()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		m.Set(key, v)

		switch p.curToken.Type {
		case TokenComma, TokenNewline, TokenRBrace:
		case TokenIdentifier, TokenKeyword, TokenString:
			// commas are optional: the next field may follow directly
		case TokenEOF:
			return nil, &Error{Pos: open, Msg: "unterminated block: expected '}'"}
		default:
			return nil, p.errorf("expected ',' or '}' after field %s, got %s", key, describe(p.curToken))
		}
	}
}

// parseArray parses [ value (, value)* ] with commas or newlines.
func (p *Parser) parseArray() (value.Value, error) {
	open := p.curToken.Pos
	p.nextToken() // consume [

	elems := []value.Value{}
	for {
		p.skipSeparators()
		if p.curTokenIs(TokenRBracket) {
			p.nextToken()
			return value.Array(elems...), nil
		}
		if p.curTokenIs(TokenEOF) {
			return value.Value{}, &Error{Pos: open, Msg: "unterminated array: expected ']'"}
		}
		v, err := p.parseValue()
		if err != nil {
			return value.Value{}, err
		}
		elems = append(elems, v)
		if !p.curTokenIs(TokenComma) && !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenRBracket) {
			if p.curTokenIs(TokenEOF) {
				return value.Value{}, &Error{Pos: open, Msg: "unterminated array: expected ']'"}
			}
			return value.Value{}, p.errorf("expected ',' or ']' in array, got %s", describe(p.curToken))
		}
	}
}

// parseArgs parses ( value (, value)* ).
func (p *Parser) parseArgs() ([]value.Value, error) {
	open := p.curToken.Pos
	p.nextToken() // consume (

	var args []value.Value
	for {
		p.skipSeparators()
		if p.curTokenIs(TokenRParen) {
			p.nextToken()
			return args, nil
		}
		if p.curTokenIs(TokenEOF) {
			return nil, &Error{Pos: open, Msg: "unterminated argument list: expected ')'"}
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if !p.curTokenIs(TokenComma) && !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenRParen) {
			if p.curTokenIs(TokenEOF) {
				return nil, &Error{Pos: open, Msg: "unterminated argument list: expected ')'"}
			}
			return nil, p.errorf("expected ',' or ')' in arguments, got %s", describe(p.curToken))
		}
	}
}

// ---------------------------------------------------------------------------
// Public entry point
// ---------------------------------------------------------------------------

// Result is the outcome of Parse. Statement is nil for blank input.
type Result struct {
	Success   bool
	Statement Statement
	Error     string
	Err       error
}

// Parse parses text as one statement. It never panics; every failure is
// reported in the result.
func Parse(text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Error: fmt.Sprintf("internal parser error: %v", r), Err: fmt.Errorf("internal parser error: %v", r)}
		}
	}()

	stmt, err := NewParser(text).ParseStatement()
	if err != nil {
		return Result{Error: err.Error(), Err: err}
	}
	return Result{Success: true, Statement: stmt}
}
