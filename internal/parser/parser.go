package parser

import (
	"fmt"
	"strconv"

	"github.com/quill-lang/quill/internal/ast"
	"github.com/quill-lang/quill/internal/lexer"
	"github.com/quill-lang/quill/internal/token"
)

// DefaultMaxExprDepth bounds expression nesting when no limit is configured.
const DefaultMaxExprDepth = 64

// ErrKind classifies parse errors.
type ErrKind int

const (
	ErrGeneral ErrKind = iota
	// ErrExprTooDeep is raised when expression nesting exceeds the limit.
	ErrExprTooDeep
)

// Error is a parse error with a source position.
type Error struct {
	Kind ErrKind
	Msg  string
	Pos  token.Position
}

func (e *Error) Error() string {
	if e.Pos.IsNone() {
		return e.Msg
	}
	return fmt.Sprintf("%s (line %d)", e.Msg, e.Pos.Line)
}

// Options configures a parse.
type Options struct {
	// MaxExprDepth limits expression nesting. Zero means DefaultMaxExprDepth.
	MaxExprDepth int
	// TokenMapper, when set, remaps every token before the parser sees it.
	TokenMapper func(token.Token) token.Token
}

type Parser struct {
	l        *lexer.Lexer
	cur      token.Token
	peek     token.Token
	maxDepth int
	depth    int
	anonSeq  int
	mapper   func(token.Token) token.Token

	functions []*ast.FuncDecl
	err       *Error
}

// Parse parses source text into a program.
func Parse(src string, opts Options) (*ast.Program, error) {
	maxDepth := opts.MaxExprDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxExprDepth
	}
	p := &Parser{l: lexer.New(src), maxDepth: maxDepth, mapper: opts.TokenMapper}
	p.next()
	p.next()

	prog := &ast.Program{}
	for p.cur.Type != token.EOF && p.err == nil {
		if stmt := p.parseStatement(); stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if p.err != nil {
			break
		}
		p.next()
	}
	if p.err != nil {
		return nil, p.err
	}
	prog.Functions = p.functions
	return prog, nil
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
	if p.mapper != nil && p.peek.Type != token.EOF {
		p.peek = p.mapper(p.peek)
	}
}

func (p *Parser) fail(pos token.Position, format string, args ...any) {
	if p.err == nil {
		p.err = &Error{Kind: ErrGeneral, Msg: fmt.Sprintf(format, args...), Pos: pos}
	}
}

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peek.Type == t {
		p.next()
		return true
	}
	p.fail(p.peek.Pos, "expected %q, found %q", t.Literal(), p.peek.Lit)
	return false
}

// Operator precedence levels.
const (
	lowest = iota
	assign
	logicalOr
	logicalAnd
	equality
	comparison
	sum
	product
	prefix
	postfix
)

func precedenceOf(t token.Type) int {
	switch t {
	case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN,
		token.STAR_ASSIGN, token.SLASH_ASSIGN, token.PERCENT_ASSIGN:
		return assign
	case token.OR:
		return logicalOr
	case token.AND:
		return logicalAnd
	case token.EQ, token.NEQ:
		return equality
	case token.LT, token.GT, token.LTE, token.GTE:
		return comparison
	case token.PLUS, token.MINUS:
		return sum
	case token.STAR, token.SLASH, token.PERCENT:
		return product
	case token.DOT, token.LBRACKET:
		return postfix
	}
	return lowest
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.cur.Type {
	case token.SEMICOLON:
		return nil
	case token.FN, token.PRIVATE:
		p.parseFuncDecl()
		return nil
	case token.LET:
		return p.parseLet(false)
	case token.CONST:
		return p.parseLet(true)
	case token.RETURN:
		return p.parseReturn()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.BREAK:
		s := &ast.BreakStmt{P: p.cur.Pos}
		p.skipOptionalSemicolon()
		return s
	case token.CONTINUE:
		s := &ast.ContinueStmt{P: p.cur.Pos}
		p.skipOptionalSemicolon()
		return s
	case token.IMPORT:
		return p.parseImport()
	case token.LBRACE:
		return p.parseBlock()
	default:
		e := p.parseExpression(lowest)
		if e == nil {
			return nil
		}
		p.skipOptionalSemicolon()
		return &ast.ExprStmt{E: e}
	}
}

func (p *Parser) skipOptionalSemicolon() {
	if p.peek.Type == token.SEMICOLON {
		p.next()
	}
}

func (p *Parser) parseFuncDecl() {
	access := ast.Public
	pos := p.cur.Pos
	if p.cur.Type == token.PRIVATE {
		access = ast.Private
		if !p.expectPeek(token.FN) {
			return
		}
	}
	if !p.expectPeek(token.IDENT) {
		return
	}
	name := p.cur.Lit
	if !p.expectPeek(token.LPAREN) {
		return
	}
	params := p.parseParamNames()
	if p.err != nil {
		return
	}
	if !p.expectPeek(token.LBRACE) {
		return
	}
	body := p.parseBlock()
	if p.err != nil {
		return
	}
	p.functions = append(p.functions, &ast.FuncDecl{
		P:      pos,
		Name:   name,
		Params: params,
		Body:   body,
		Access: access,
	})
}

func (p *Parser) parseParamNames() []string {
	var params []string
	if p.peek.Type == token.RPAREN {
		p.next()
		return params
	}
	for {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		params = append(params, p.cur.Lit)
		if p.peek.Type != token.COMMA {
			break
		}
		p.next()
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return params
}

func (p *Parser) parseLet(isConst bool) ast.Stmt {
	pos := p.cur.Pos
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	name := p.cur.Lit
	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.next()
	value := p.parseExpression(lowest)
	if value == nil {
		return nil
	}
	p.skipOptionalSemicolon()
	return &ast.LetStmt{P: pos, Name: name, Value: value, Const: isConst}
}

func (p *Parser) parseReturn() ast.Stmt {
	pos := p.cur.Pos
	if p.peek.Type == token.SEMICOLON || p.peek.Type == token.RBRACE || p.peek.Type == token.EOF {
		p.skipOptionalSemicolon()
		return &ast.ReturnStmt{P: pos}
	}
	p.next()
	value := p.parseExpression(lowest)
	if value == nil {
		return nil
	}
	p.skipOptionalSemicolon()
	return &ast.ReturnStmt{P: pos, Value: value}
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.cur.Pos
	p.next()
	cond := p.parseExpression(lowest)
	if cond == nil {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	then := p.parseBlock()
	if p.err != nil {
		return nil
	}
	stmt := &ast.IfStmt{P: pos, Cond: cond, Then: then}
	if p.peek.Type == token.ELSE {
		p.next()
		if p.peek.Type == token.IF {
			p.next()
			stmt.Else = p.parseIf()
		} else {
			if !p.expectPeek(token.LBRACE) {
				return nil
			}
			stmt.Else = p.parseBlock()
		}
	}
	return stmt
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.cur.Pos
	p.next()
	cond := p.parseExpression(lowest)
	if cond == nil {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	body := p.parseBlock()
	if p.err != nil {
		return nil
	}
	return &ast.WhileStmt{P: pos, Cond: cond, Body: body}
}

func (p *Parser) parseImport() ast.Stmt {
	pos := p.cur.Pos
	if !p.expectPeek(token.STRING) {
		return nil
	}
	path := p.cur.Lit
	if !p.expectPeek(token.AS) {
		return nil
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	alias := p.cur.Lit
	p.skipOptionalSemicolon()
	return &ast.ImportStmt{P: pos, Path: path, Alias: alias}
}

// parseBlock parses a brace-delimited block. The current token must be LBRACE.
func (p *Parser) parseBlock() *ast.BlockStmt {
	block := &ast.BlockStmt{P: p.cur.Pos}
	p.next()
	for p.cur.Type != token.RBRACE && p.cur.Type != token.EOF && p.err == nil {
		if stmt := p.parseStatement(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.err != nil {
			return nil
		}
		p.next()
	}
	if p.cur.Type != token.RBRACE {
		p.fail(p.cur.Pos, "expected \"}\"")
		return nil
	}
	return block
}

func (p *Parser) parseExpression(minPrec int) ast.Expr {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		if p.err == nil {
			p.err = &Error{Kind: ErrExprTooDeep, Msg: "expression nesting exceeds maximum depth", Pos: p.cur.Pos}
		}
		return nil
	}

	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for p.err == nil {
		prec := precedenceOf(p.peek.Type)
		if prec <= minPrec {
			break
		}
		switch {
		case p.peek.Type == token.DOT:
			p.next()
			left = p.parseDot(left)
		case p.peek.Type == token.LBRACKET:
			p.next()
			left = p.parseIndex(left)
		case p.peek.Type == token.ASSIGN || p.peek.Type.IsOpAssign():
			left = p.parseAssign(left)
		case p.peek.Type == token.AND:
			pos := p.peek.Pos
			p.next()
			p.next()
			right := p.parseExpression(logicalAnd)
			if right == nil {
				return nil
			}
			left = &ast.AndExpr{P: pos, L: left, R: right}
		case p.peek.Type == token.OR:
			pos := p.peek.Pos
			p.next()
			p.next()
			right := p.parseExpression(logicalOr)
			if right == nil {
				return nil
			}
			left = &ast.OrExpr{P: pos, L: left, R: right}
		default:
			left = p.parseBinary(left, prec)
		}
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parseBinary(left ast.Expr, prec int) ast.Expr {
	op := p.peek.Type
	pos := p.peek.Pos
	lit := op.Literal()
	p.next()
	p.next()
	right := p.parseExpression(prec)
	if right == nil {
		return nil
	}
	return &ast.FnCallExpr{P: pos, Name: lit, OpToken: op, Args: []ast.Expr{left, right}}
}

func (p *Parser) parseAssign(left ast.Expr) ast.Expr {
	switch left.(type) {
	case *ast.Ident, *ast.IndexExpr, *ast.PropertyExpr, *ast.ThisExpr:
	default:
		p.fail(p.peek.Pos, "invalid assignment target")
		return nil
	}
	op := p.peek.Type
	pos := p.peek.Pos
	p.next()
	p.next()
	right := p.parseExpression(lowest)
	if right == nil {
		return nil
	}
	return &ast.AssignExpr{P: pos, LHS: left, Op: op, RHS: right}
}

func (p *Parser) parseDot(target ast.Expr) ast.Expr {
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	name := p.cur.Lit
	pos := p.cur.Pos
	if p.peek.Type == token.LPAREN {
		p.next()
		args := p.parseCallArgs()
		if p.err != nil {
			return nil
		}
		return &ast.MethodCallExpr{P: pos, Target: target, Name: name, Args: args}
	}
	return &ast.PropertyExpr{P: pos, Target: target, Name: name}
}

func (p *Parser) parseIndex(target ast.Expr) ast.Expr {
	pos := p.cur.Pos
	p.next()
	idx := p.parseExpression(lowest)
	if idx == nil {
		return nil
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return &ast.IndexExpr{P: pos, Target: target, Index: idx}
}

func (p *Parser) parsePrefix() ast.Expr {
	pos := p.cur.Pos
	switch p.cur.Type {
	case token.INT:
		v, err := strconv.ParseInt(p.cur.Lit, 10, 64)
		if err != nil {
			p.fail(pos, "malformed integer literal %q", p.cur.Lit)
			return nil
		}
		return &ast.IntLit{P: pos, Value: v}
	case token.FLOAT:
		v, err := strconv.ParseFloat(p.cur.Lit, 64)
		if err != nil {
			p.fail(pos, "malformed float literal %q", p.cur.Lit)
			return nil
		}
		return &ast.FloatLit{P: pos, Value: v}
	case token.STRING:
		return &ast.StringLit{P: pos, Value: p.cur.Lit}
	case token.CHAR:
		runes := []rune(p.cur.Lit)
		if len(runes) != 1 {
			p.fail(pos, "malformed character literal %q", p.cur.Lit)
			return nil
		}
		return &ast.CharLit{P: pos, Value: runes[0]}
	case token.TRUE:
		return &ast.BoolLit{P: pos, Value: true}
	case token.FALSE:
		return &ast.BoolLit{P: pos, Value: false}
	case token.MINUS, token.BANG:
		op := p.cur.Type
		p.next()
		operand := p.parseExpression(prefix)
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{P: pos, Op: op, Operand: operand}
	case token.LPAREN:
		if p.peek.Type == token.RPAREN {
			p.next()
			return &ast.UnitLit{P: pos}
		}
		p.next()
		inner := p.parseExpression(lowest)
		if inner == nil {
			return nil
		}
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		return inner
	case token.LBRACKET:
		return p.parseArray(pos)
	case token.MAP_START:
		return p.parseMap(pos)
	case token.PIPE:
		return p.parseClosure(pos, false)
	case token.OR:
		// `||` in prefix position is an empty closure parameter list.
		return p.parseClosure(pos, true)
	case token.IDENT:
		return p.parseIdentExpr()
	default:
		p.fail(pos, "unexpected token %q", p.cur.Lit)
		return nil
	}
}

func (p *Parser) parseIdentExpr() ast.Expr {
	pos := p.cur.Pos
	name := p.cur.Lit

	if name == "this" {
		return &ast.ThisExpr{P: pos}
	}

	// Namespace-qualified path: alias::name or alias::sub::name.
	var namespace []string
	for p.peek.Type == token.DOUBLE_COLON {
		namespace = append(namespace, name)
		p.next()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		name = p.cur.Lit
	}

	captureScope := false
	if p.peek.Type == token.BANG {
		// `name!(...)` requests parent-scope capture.
		captureScope = true
		p.next()
		if !p.expectPeek(token.LPAREN) {
			return nil
		}
	} else if p.peek.Type == token.LPAREN {
		p.next()
	} else {
		if len(namespace) > 0 {
			p.fail(pos, "qualified names may only be used in call position")
			return nil
		}
		return &ast.Ident{P: pos, Name: name}
	}

	args := p.parseCallArgs()
	if p.err != nil {
		return nil
	}
	return &ast.FnCallExpr{P: pos, Namespace: namespace, Name: name, Args: args, CaptureScope: captureScope}
}

// parseCallArgs parses a parenthesized argument list. The current token must
// be LPAREN.
func (p *Parser) parseCallArgs() []ast.Expr {
	var args []ast.Expr
	if p.peek.Type == token.RPAREN {
		p.next()
		return args
	}
	for {
		p.next()
		arg := p.parseExpression(lowest)
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		if p.peek.Type != token.COMMA {
			break
		}
		p.next()
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return args
}

func (p *Parser) parseArray(pos token.Position) ast.Expr {
	arr := &ast.ArrayLit{P: pos}
	if p.peek.Type == token.RBRACKET {
		p.next()
		return arr
	}
	for {
		p.next()
		el := p.parseExpression(lowest)
		if el == nil {
			return nil
		}
		arr.Elems = append(arr.Elems, el)
		if p.peek.Type != token.COMMA {
			break
		}
		p.next()
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return arr
}

func (p *Parser) parseMap(pos token.Position) ast.Expr {
	m := &ast.MapLit{P: pos}
	if p.peek.Type == token.RBRACE {
		p.next()
		return m
	}
	for {
		p.next()
		if p.cur.Type != token.IDENT && p.cur.Type != token.STRING {
			p.fail(p.cur.Pos, "expected map key, found %q", p.cur.Lit)
			return nil
		}
		key := p.cur.Lit
		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.next()
		val := p.parseExpression(lowest)
		if val == nil {
			return nil
		}
		m.Keys = append(m.Keys, key)
		m.Values = append(m.Values, val)
		if p.peek.Type != token.COMMA {
			break
		}
		p.next()
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return m
}

// parseClosure desugars `|a, b| body` into an anonymous script function and
// a function-pointer literal referring to it.
func (p *Parser) parseClosure(pos token.Position, emptyParams bool) ast.Expr {
	var params []string
	if !emptyParams {
		for p.peek.Type != token.PIPE {
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			params = append(params, p.cur.Lit)
			if p.peek.Type == token.COMMA {
				p.next()
			}
		}
		p.next() // consume closing pipe
	}

	var body *ast.BlockStmt
	if p.peek.Type == token.LBRACE {
		p.next()
		body = p.parseBlock()
		if p.err != nil {
			return nil
		}
	} else {
		p.next()
		expr := p.parseExpression(lowest)
		if expr == nil {
			return nil
		}
		body = &ast.BlockStmt{P: pos, Stmts: []ast.Stmt{&ast.ExprStmt{E: expr}}}
	}

	name := fmt.Sprintf("%s%d", token.AnonymousPrefix, p.anonSeq)
	p.anonSeq++
	p.functions = append(p.functions, &ast.FuncDecl{
		P:      pos,
		Name:   name,
		Params: params,
		Body:   body,
		Access: ast.Private,
	})
	return &ast.FnPtrLit{P: pos, Name: name}
}
