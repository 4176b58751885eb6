package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-lang/quill/internal/ast"
	"github.com/quill-lang/quill/internal/token"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse(src, Options{})
	require.NoError(t, err)
	return prog
}

func TestParseFunctionDecls(t *testing.T) {
	prog := parse(t, `
		fn add(x, y) { x + y }
		private fn helper() { 0 }
		let a = 1;
	`)

	require.Len(t, prog.Functions, 2)
	assert.Equal(t, "add", prog.Functions[0].Name)
	assert.Equal(t, []string{"x", "y"}, prog.Functions[0].Params)
	assert.Equal(t, ast.Public, prog.Functions[0].Access)
	assert.Equal(t, ast.Private, prog.Functions[1].Access)
	require.Len(t, prog.Stmts, 1)
}

func TestParseBinaryOpsAsCalls(t *testing.T) {
	prog := parse(t, `1 + 2 * 3`)
	require.Len(t, prog.Stmts, 1)

	outer, ok := prog.Stmts[0].(*ast.ExprStmt).E.(*ast.FnCallExpr)
	require.True(t, ok)
	assert.Equal(t, "+", outer.Name)
	assert.Equal(t, token.PLUS, outer.OpToken)
	require.Len(t, outer.Args, 2)

	inner, ok := outer.Args[1].(*ast.FnCallExpr)
	require.True(t, ok, "* binds tighter than +")
	assert.Equal(t, "*", inner.Name)
}

func TestParseQualifiedCall(t *testing.T) {
	prog := parse(t, `m::sub::f(1)`)
	call := prog.Stmts[0].(*ast.ExprStmt).E.(*ast.FnCallExpr)
	assert.Equal(t, []string{"m", "sub"}, call.Namespace)
	assert.Equal(t, "f", call.Name)
}

func TestParseCaptureScopeCall(t *testing.T) {
	prog := parse(t, `f!(1, 2)`)
	call := prog.Stmts[0].(*ast.ExprStmt).E.(*ast.FnCallExpr)
	assert.True(t, call.CaptureScope)
	assert.Len(t, call.Args, 2)
}

func TestParseMethodCallAndProperty(t *testing.T) {
	prog := parse(t, `obj.field.method(1)`)
	call := prog.Stmts[0].(*ast.ExprStmt).E.(*ast.MethodCallExpr)
	assert.Equal(t, "method", call.Name)

	prop, ok := call.Target.(*ast.PropertyExpr)
	require.True(t, ok)
	assert.Equal(t, "field", prop.Name)
}

func TestParseClosureDesugaring(t *testing.T) {
	prog := parse(t, `let f = |x, y| x + y; let g = || { 42 };`)

	require.Len(t, prog.Functions, 2)
	assert.True(t, strings.HasPrefix(prog.Functions[0].Name, token.AnonymousPrefix))
	assert.Equal(t, []string{"x", "y"}, prog.Functions[0].Params)
	assert.Empty(t, prog.Functions[1].Params)

	let := prog.Stmts[0].(*ast.LetStmt)
	fnptr, ok := let.Value.(*ast.FnPtrLit)
	require.True(t, ok)
	assert.Equal(t, prog.Functions[0].Name, fnptr.Name)
}

func TestParseExprTooDeep(t *testing.T) {
	src := strings.Repeat("(", 40) + "1" + strings.Repeat(")", 40)
	_, err := Parse(src, Options{MaxExprDepth: 8})
	require.Error(t, err)
	pe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrExprTooDeep, pe.Kind)

	_, err = Parse(src, Options{MaxExprDepth: 64})
	assert.NoError(t, err)
}

func TestParseAssignTargets(t *testing.T) {
	prog := parse(t, `x = 1; a[0] = 2; m.k += 3;`)
	require.Len(t, prog.Stmts, 3)

	a2 := prog.Stmts[2].(*ast.ExprStmt).E.(*ast.AssignExpr)
	assert.Equal(t, token.PLUS_ASSIGN, a2.Op)
	_, ok := a2.LHS.(*ast.PropertyExpr)
	assert.True(t, ok)
}

func TestParseRejectsInvalidAssignTarget(t *testing.T) {
	_, err := Parse(`1 = 2;`, Options{})
	assert.Error(t, err)
}

func TestParseImport(t *testing.T) {
	prog := parse(t, `import "tools/math" as m;`)
	imp := prog.Stmts[0].(*ast.ImportStmt)
	assert.Equal(t, "tools/math", imp.Path)
	assert.Equal(t, "m", imp.Alias)
}

func TestParseTokenMapper(t *testing.T) {
	// Remap the identifier `plus` to the + operator token.
	mapper := func(tok token.Token) token.Token {
		if tok.Type == token.IDENT && tok.Lit == "plus" {
			return token.Token{Type: token.PLUS, Lit: "+", Pos: tok.Pos}
		}
		return tok
	}
	prog, err := Parse(`1 plus 2`, Options{TokenMapper: mapper})
	require.NoError(t, err)
	call := prog.Stmts[0].(*ast.ExprStmt).E.(*ast.FnCallExpr)
	assert.Equal(t, token.PLUS, call.OpToken)
}

func TestParseMapAndArrayLiterals(t *testing.T) {
	prog := parse(t, `let m = #{a: 1, "b": 2}; let l = [1, 2, 3];`)
	mlit := prog.Stmts[0].(*ast.LetStmt).Value.(*ast.MapLit)
	assert.Equal(t, []string{"a", "b"}, mlit.Keys)
	alit := prog.Stmts[1].(*ast.LetStmt).Value.(*ast.ArrayLit)
	assert.Len(t, alit.Elems, 3)
}
