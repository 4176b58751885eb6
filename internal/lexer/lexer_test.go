package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-lang/quill/internal/token"
)

func collect(src string) []token.Token {
	l := New(src)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestLexOperators(t *testing.T) {
	toks := collect(`+ - * / % == != < > <= >= && || ! = += -= :: . | #{`)
	want := []token.Type{
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE,
		token.AND, token.OR, token.BANG, token.ASSIGN,
		token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.DOUBLE_COLON,
		token.DOT, token.PIPE, token.MAP_START,
	}
	require.Len(t, toks, len(want))
	for i, w := range want {
		assert.Equal(t, w, toks[i].Type, "token %d", i)
	}
}

func TestLexLiteralsAndKeywords(t *testing.T) {
	toks := collect(`fn let const 42 3.14 "ab\ncd" 'x' true false ident_1`)
	types := []token.Type{
		token.FN, token.LET, token.CONST, token.INT, token.FLOAT,
		token.STRING, token.CHAR, token.TRUE, token.FALSE, token.IDENT,
	}
	require.Len(t, toks, len(types))
	for i, w := range types {
		assert.Equal(t, w, toks[i].Type)
	}
	assert.Equal(t, "ab\ncd", toks[5].Lit)
	assert.Equal(t, "x", toks[6].Lit)
	assert.Equal(t, "ident_1", toks[9].Lit)
}

func TestLexComments(t *testing.T) {
	toks := collect("1 // line comment\n 2 /* block\ncomment */ 3")
	require.Len(t, toks, 3)
	for _, tok := range toks {
		assert.Equal(t, token.INT, tok.Type)
	}
}

func TestLexPositions(t *testing.T) {
	toks := collect("a\n  b")
	require.Len(t, toks, 2)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 2, toks[1].Pos.Line)
	assert.Equal(t, 3, toks[1].Pos.Column)
}

func TestIdentifierValidity(t *testing.T) {
	assert.True(t, token.IsValidIdentifier("foo_1"))
	assert.False(t, token.IsValidIdentifier("1foo"))
	assert.False(t, token.IsValidIdentifier("fn"))
	assert.False(t, token.IsValidIdentifier(""))

	assert.True(t, token.IsValidFunctionName("anon$3"))
	assert.False(t, token.IsValidFunctionName("anon$"))
	assert.False(t, token.IsValidFunctionName("+"))
}
