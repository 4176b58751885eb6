package evaluator_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ev "github.com/quill-lang/quill/internal/evaluator"
	"github.com/quill-lang/quill/internal/packages"
	"github.com/quill-lang/quill/internal/parser"
)

func newTestEngine() *ev.Engine {
	e := ev.NewEngine()
	e.RegisterGlobalModule(packages.StandardPackage())
	return e
}

func runScript(t *testing.T, e *ev.Engine, src string) (ev.Dynamic, error) {
	t.Helper()
	program, err := e.Compile(src)
	require.NoError(t, err)
	return e.Run(ev.NewScope(), program)
}

func evalInt(t *testing.T, src string) int64 {
	t.Helper()
	result, err := runScript(t, newTestEngine(), src)
	require.NoError(t, err)
	n, ok := result.Int()
	require.True(t, ok, "expected int result, got %s", result.TypeName())
	return n
}

func evalBool(t *testing.T, src string) bool {
	t.Helper()
	result, err := runScript(t, newTestEngine(), src)
	require.NoError(t, err)
	b, ok := result.Bool()
	require.True(t, ok, "expected bool result, got %s", result.TypeName())
	return b
}

const callFnScript = `
	fn add(x, y)  { len(x) + y + foo }
	fn add1(x)    { len(x) + 1 + foo }
	fn bar()      { foo/2 }
	fn action(x)  { this += x; }
	fn decl(x)    { let hello = x; }
`

func TestCallFnScenarios(t *testing.T) {
	e := newTestEngine()
	program, err := e.Compile(callFnScript)
	require.NoError(t, err)

	scope := ev.NewScope()
	scope.Push("foo", ev.NewInt(42))

	result, err := e.CallFn(scope, program, "add", []ev.Dynamic{ev.NewString("abc"), ev.NewInt(123)})
	require.NoError(t, err)
	n, _ := result.Int()
	assert.Equal(t, int64(168), n)

	result, err = e.CallFn(scope, program, "add1", []ev.Dynamic{ev.NewString("abc")})
	require.NoError(t, err)
	n, _ = result.Int()
	assert.Equal(t, int64(46), n)

	result, err = e.CallFn(scope, program, "bar", nil)
	require.NoError(t, err)
	n, _ = result.Int()
	assert.Equal(t, int64(21), n)
}

func TestCallFnThisBinding(t *testing.T) {
	e := newTestEngine()
	program, err := e.Compile(callFnScript)
	require.NoError(t, err)

	scope := ev.NewScope()
	scope.Push("foo", ev.NewInt(42))

	this := ev.NewInt(1)
	result, err := e.CallFnRaw(scope, program, true, true, "action", &this, []ev.Dynamic{ev.NewInt(41)})
	require.NoError(t, err)
	assert.True(t, result.IsUnit())

	n, _ := this.Int()
	assert.Equal(t, int64(42), n)
}

func TestCallFnRewindScope(t *testing.T) {
	e := newTestEngine()
	program, err := e.Compile(callFnScript)
	require.NoError(t, err)

	scope := ev.NewScope()
	scope.Push("foo", ev.NewInt(42))

	// With rewind, the scope length is untouched.
	before := scope.Len()
	_, err = e.CallFnRaw(scope, program, true, true, "decl", nil, []ev.Dynamic{ev.NewInt(42)})
	require.NoError(t, err)
	assert.Equal(t, before, scope.Len())

	// Without rewind, variables declared by the body persist.
	_, err = e.CallFnRaw(scope, program, true, false, "decl", nil, []ev.Dynamic{ev.NewInt(42)})
	require.NoError(t, err)
	v, ok := scope.Get("hello")
	require.True(t, ok)
	n, _ := v.Int()
	assert.Equal(t, int64(42), n)
}

func TestCallFnNotFound(t *testing.T) {
	e := newTestEngine()
	program, err := e.Compile(callFnScript)
	require.NoError(t, err)

	_, err = e.CallFn(ev.NewScope(), program, "nope", nil)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrFunctionNotFound))

	// Arity participates in the lookup.
	_, err = e.CallFn(ev.NewScope(), program, "bar", []ev.Dynamic{ev.NewInt(1)})
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrFunctionNotFound))
}

func TestStackOverflow(t *testing.T) {
	e := newTestEngine()
	e.SetMaxCallLevels(8)
	program, err := e.Compile(`fn foo(n) { if n == 0 { 0 } else { n + foo(n-1) } }`)
	require.NoError(t, err)

	// Within the limit.
	result, err := e.CallFn(ev.NewScope(), program, "foo", []ev.Dynamic{ev.NewInt(3)})
	require.NoError(t, err)
	n, _ := result.Int()
	assert.Equal(t, int64(6), n)

	// One past the limit overflows.
	_, err = e.CallFn(ev.NewScope(), program, "foo", []ev.Dynamic{ev.NewInt(9)})
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrStackOverflow))
}

func TestExprTooDeep(t *testing.T) {
	e := newTestEngine()
	e.SetMaxExprDepth(16)

	src := "let x = " + strings.Repeat("(", 40) + "1" + strings.Repeat(")", 40) + ";"
	_, err := e.Compile(src)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrParse))

	var pe *parser.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, parser.ErrExprTooDeep, pe.Kind)
}

func TestTooManyOperations(t *testing.T) {
	e := newTestEngine()
	e.SetMaxOperations(50)
	_, err := runScript(t, e, `
		let i = 0;
		while true { i += 1; }
	`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrTooManyOperations))
}

func TestProgressTermination(t *testing.T) {
	e := newTestEngine()
	e.OnProgress(func(ops uint64) bool { return ops < 30 })
	_, err := runScript(t, e, `
		let i = 0;
		while true { i += 1; }
	`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrTerminated))
}

func TestPrintAndDebugRouting(t *testing.T) {
	e := newTestEngine()
	var printed, debugged []string
	e.OnPrint(func(text string) { printed = append(printed, text) })
	e.OnDebug(func(text, source string, pos ev.Position) { debugged = append(debugged, text) })

	result, err := runScript(t, e, `print("hello"); debug(42);`)
	require.NoError(t, err)
	assert.True(t, result.IsUnit(), "print and debug yield unit")
	assert.Equal(t, []string{"hello"}, printed)
	assert.Equal(t, []string{"42"}, debugged)
}

func TestSpecialForms(t *testing.T) {
	result, err := runScript(t, newTestEngine(), `type_of(1.5)`)
	require.NoError(t, err)
	s, _ := result.Str()
	assert.Equal(t, "float", s)

	assert.True(t, evalBool(t, `let x = 1; is_def_var("x")`))
	assert.False(t, evalBool(t, `let x = 1; is_def_var("y")`))

	assert.True(t, evalBool(t, `fn foo(a) { a } is_def_fn("foo", 1)`))
	assert.False(t, evalBool(t, `fn foo(a) { a } is_def_fn("foo", 2)`))
	assert.False(t, evalBool(t, `fn foo(a) { a } is_def_fn("foo", -1)`))

	assert.False(t, evalBool(t, `let x = 42; is_shared(x)`))
}

func TestIsSharedOnSharedArgument(t *testing.T) {
	e := newTestEngine()
	program, err := e.Compile(`fn check(x) { is_shared(x) }`)
	require.NoError(t, err)

	sharedVal := ev.NewInt(1)
	shared := sharedVal.IntoShared()
	result, err := e.CallFn(ev.NewScope(), program, "check", []ev.Dynamic{shared})
	require.NoError(t, err)
	b, _ := result.Bool()
	assert.True(t, b)
}

func TestFnSpecialForm(t *testing.T) {
	result, err := runScript(t, newTestEngine(), `let f = Fn("to_upper"); call(f, "abc")`)
	require.NoError(t, err)
	s, _ := result.Str()
	assert.Equal(t, "ABC", s)

	_, err = runScript(t, newTestEngine(), `Fn("not a name")`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrFunctionNotFound))
}

func TestCurryAndCall(t *testing.T) {
	assert.Equal(t, int64(6), evalInt(t, `
		fn add3(a, b, c) { a + b + c }
		let f = Fn("add3");
		let g = curry(f, 1, 2);
		call(g, 3)
	`))

	// curry is associative with respect to call behavior.
	assert.True(t, evalBool(t, `
		fn add3(a, b, c) { a + b + c }
		let f = Fn("add3");
		let g1 = curry(curry(f, 1), 2);
		let g2 = curry(f, 1, 2);
		call(g1, 3) == call(g2, 3)
	`))
}

func TestFnPtrMethodCall(t *testing.T) {
	assert.Equal(t, int64(21), evalInt(t, `
		fn triple(x) { x * 3 }
		let f = Fn("triple");
		f.call(7)
	`))
}

func TestClosureDesugaring(t *testing.T) {
	assert.Equal(t, int64(21), evalInt(t, `
		let f = |x| x * 3;
		f.call(7)
	`))
	assert.Equal(t, int64(10), evalInt(t, `
		let f = |a, b| { a + b };
		call(f, 4, 6)
	`))
}

func TestMapMethodCallThroughFnPtr(t *testing.T) {
	assert.Equal(t, int64(14), evalInt(t, `
		fn double(x) { x * 2 }
		let obj = #{ dbl: Fn("double") };
		obj.dbl(7)
	`))
}

func TestEvalSpecialForm(t *testing.T) {
	assert.Equal(t, int64(42), evalInt(t, `
		let x = 1;
		eval("let y = 41; x + y")
	`))

	// Variables declared by eval stay in the current scope.
	assert.Equal(t, int64(42), evalInt(t, `
		eval("let z = 42;");
		z
	`))

	_, err := runScript(t, newTestEngine(), `eval("fn nope() { 0 }")`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrInFunctionCall))
	assert.True(t, ev.IsKind(err, ev.ErrWrongFnDefinition))
}

func TestArgumentBackupProtectsCaller(t *testing.T) {
	e := newTestEngine()
	// A pure native that clobbers its first argument only ever sees the
	// scratch clone.
	e.GlobalNamespace().RegisterNative("clobber", []ev.TypeID{ev.TypeInt}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			old, _ := args[0].Int()
			*args[0] = ev.NewInt(-1)
			return ev.NewInt(old), nil
		})

	result, err := runScript(t, e, `
		let x = 7;
		let r = clobber(x);
		x + r
	`)
	require.NoError(t, err)
	n, _ := result.Int()
	assert.Equal(t, int64(14), n, "caller's x must be untouched")
}

func TestMethodMutatesReceiver(t *testing.T) {
	assert.Equal(t, int64(3), evalInt(t, `
		let a = [1, 2];
		a.push(9);
		len(a)
	`))
	assert.Equal(t, int64(9), evalInt(t, `
		let a = [1, 2];
		push(a, 9);
		a[2]
	`))
}

func TestNonPureMethodCallOnConstant(t *testing.T) {
	_, err := runScript(t, newTestEngine(), `
		const a = [1, 2];
		a.push(3);
	`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrNonPureMethodCallOnConstant))
}

func TestPureCallOnConstantSucceeds(t *testing.T) {
	assert.Equal(t, int64(3), evalInt(t, `
		const s = "abc";
		len(s)
	`))
	assert.Equal(t, int64(2), evalInt(t, `
		const a = [5, 6];
		len(a)
	`))
}

func TestAssignmentToConstant(t *testing.T) {
	_, err := runScript(t, newTestEngine(), `const k = 1; k = 2;`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrAssignmentToConstant))
}

func TestOpAssign(t *testing.T) {
	assert.Equal(t, int64(42), evalInt(t, `let x = 1; x += 41; x`))
	assert.Equal(t, int64(40), evalInt(t, `let x = 42; x -= 2; x`))

	result, err := runScript(t, newTestEngine(), `let s = "ab"; s += "cd"; s`)
	require.NoError(t, err)
	s, _ := result.Str()
	assert.Equal(t, "abcd", s)

	assert.Equal(t, int64(3), evalInt(t, `let a = [1, 2]; a += 9; len(a)`))
}

func TestIndexingAndProperties(t *testing.T) {
	assert.Equal(t, int64(2), evalInt(t, `let a = [1, 2, 3]; a[1]`))
	assert.Equal(t, int64(9), evalInt(t, `let a = [1, 2]; a[0] = 9; a[0]`))
	assert.Equal(t, int64(5), evalInt(t, `let m = #{ x: 5 }; m.x`))
	assert.Equal(t, int64(7), evalInt(t, `let m = #{ x: 5 }; m.x = 7; m.x`))
	assert.Equal(t, int64(8), evalInt(t, `let m = #{ x: 5 }; m["x"] = 8; m["x"]`))
	assert.Equal(t, int64(3), evalInt(t, `let m = #{ a: [1, 2] }; m.a.push(9); len(m.a)`))

	_, err := runScript(t, newTestEngine(), `let b = true; b[0]`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrIndexingType))

	_, err = runScript(t, newTestEngine(), `let n = 1; n.missing`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrDotExpr))
}

func TestFunctionNotFoundSignature(t *testing.T) {
	_, err := runScript(t, newTestEngine(), `nosuch(1, "a")`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrFunctionNotFound))
	assert.Contains(t, err.Error(), "nosuch (int, string)")
}

func TestScriptFnOverridesNative(t *testing.T) {
	assert.Equal(t, int64(999), evalInt(t, `
		fn len(x) { 999 }
		len("abc")
	`))
}

func TestQualifiedCallStaticModule(t *testing.T) {
	e := newTestEngine()
	m := ev.NewModule("math_mod")
	m.RegisterNative("triple", []ev.TypeID{ev.TypeInt}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			n, _ := args[0].Int()
			return ev.NewInt(n * 3), nil
		})
	e.RegisterStaticModule("mymath", m)

	result, err := runScript(t, e, `mymath::triple(5)`)
	require.NoError(t, err)
	n, _ := result.Int()
	assert.Equal(t, int64(15), n)
}

func TestQualifiedCallImportedModule(t *testing.T) {
	e := newTestEngine()

	libProgram, err := e.Compile(`fn quad(x) { x * 4 }`)
	require.NoError(t, err)
	m := ev.NewModule("quad_mod")
	def := libProgram.Lib().GetScriptFn("quad", 1)
	require.NotNil(t, def)
	def.Environ = &ev.EncapEnviron{Lib: libProgram.Lib()}
	m.SetScriptFn(def)

	e.SetModuleResolver(ev.StaticModuleResolver{"quads": m})

	result, err := runScript(t, e, `
		import "quads" as q;
		q::quad(6)
	`)
	require.NoError(t, err)
	n, _ := result.Int()
	assert.Equal(t, int64(24), n)
}

func TestQualifiedCallModuleNotFound(t *testing.T) {
	_, err := runScript(t, newTestEngine(), `ghost::f(1)`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrModuleNotFound))
}

func TestQualifiedCallFunctionNotFound(t *testing.T) {
	e := newTestEngine()
	e.RegisterStaticModule("empty_mod", ev.NewModule("empty_mod"))

	_, err := runScript(t, e, `empty_mod::nothing(1)`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrFunctionNotFound))
	assert.Contains(t, err.Error(), "empty_mod::nothing (int)")
}

func TestCaptureScopeCall(t *testing.T) {
	assert.Equal(t, int64(3), evalInt(t, `
		fn addem() { foo + bar }
		let foo = 1;
		let bar = 2;
		addem!()
	`))

	_, err := runScript(t, newTestEngine(), `
		fn addem() { foo + bar }
		let foo = 1;
		let bar = 2;
		addem()
	`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrVariableNotFound))
}

func TestClosureEnvironConstants(t *testing.T) {
	e := newTestEngine()
	program, err := e.Compile(`fn get_k() { k + 1 }`)
	require.NoError(t, err)

	def := program.Lib().GetScriptFn("get_k", 0)
	require.NotNil(t, def)
	def.Environ = &ev.EncapEnviron{
		Lib:       program.Lib(),
		Constants: map[string]ev.Dynamic{"k": ev.NewInt(41)},
	}

	result, err := e.CallFn(ev.NewScope(), program, "get_k", nil)
	require.NoError(t, err)
	n, _ := result.Int()
	assert.Equal(t, int64(42), n)
}

func TestWhileLoops(t *testing.T) {
	assert.Equal(t, int64(10), evalInt(t, `
		let sum = 0;
		let i = 0;
		while i < 5 {
			i += 1;
			if i == 3 { continue }
			if i == 5 { break }
			sum += i;
		}
		sum + 3
	`))
}

func TestFastOperatorsToggle(t *testing.T) {
	// A registered overload of + is shadowed by fast operators but wins once
	// they are disabled.
	src := `1 + 2`

	e := newTestEngine()
	e.GlobalNamespace().RegisterNative("+", []ev.TypeID{ev.TypeInt, ev.TypeInt}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			return ev.NewInt(100), nil
		})

	result, err := runScript(t, e, src)
	require.NoError(t, err)
	n, _ := result.Int()
	assert.Equal(t, int64(3), n)

	e.SetFastOperators(false)
	result, err = runScript(t, e, src)
	require.NoError(t, err)
	n, _ = result.Int()
	assert.Equal(t, int64(100), n)
}

func TestDivisionByZero(t *testing.T) {
	_, err := runScript(t, newTestEngine(), `1 / 0`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrRuntime))
}

func TestErrorInFunctionCallWrapping(t *testing.T) {
	_, err := runScript(t, newTestEngine(), `
		fn inner() { missing_var }
		fn outer() { inner() }
		outer()
	`)
	require.Error(t, err)
	assert.True(t, ev.IsKind(err, ev.ErrInFunctionCall))
	assert.True(t, ev.IsKind(err, ev.ErrVariableNotFound))
	assert.Contains(t, err.Error(), "inner")
}

func TestWildcardDispatchEndToEnd(t *testing.T) {
	assert.True(t, evalBool(t, `let a = [1, 2, 3]; contains(a, 2)`))
	assert.False(t, evalBool(t, `let a = [1, 2, 3]; contains(a, 9)`))
	assert.True(t, evalBool(t, `contains("hello", "ell")`))
}
