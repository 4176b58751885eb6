package quill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-lang/quill/internal/evaluator"
)

func TestCallFnTyped(t *testing.T) {
	e := New()
	program, err := e.Compile(`
		fn add(x, y)  { len(x) + y + foo }
		fn add1(x)    { len(x) + 1 + foo }
		fn bar()      { foo/2 }
	`)
	require.NoError(t, err)

	scope := NewScope()
	scope.Push("foo", NewInt(42))

	result, err := CallFn[int64](e, scope, program, "add", "abc", int64(123))
	require.NoError(t, err)
	assert.Equal(t, int64(168), result)

	result, err = CallFn[int64](e, scope, program, "add1", "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(46), result)

	result, err = CallFn[int64](e, scope, program, "bar")
	require.NoError(t, err)
	assert.Equal(t, int64(21), result)
}

func TestCallFnMismatchOutputType(t *testing.T) {
	e := New()
	program, err := e.Compile(`fn s() { "hello" }`)
	require.NoError(t, err)

	_, err = CallFn[int64](e, NewScope(), program, "s")
	require.Error(t, err)
	assert.True(t, evaluator.IsKind(err, evaluator.ErrMismatchOutputType))
	assert.Contains(t, err.Error(), "int64")
	assert.Contains(t, err.Error(), "string")
}

func TestCallFnDynamicResult(t *testing.T) {
	e := New()
	program, err := e.Compile(`fn v() { 41 + 1 }`)
	require.NoError(t, err)

	d, err := CallFn[Dynamic](e, NewScope(), program, "v")
	require.NoError(t, err)
	n, _ := d.Int()
	assert.Equal(t, int64(42), n)
}

func TestFnPtrCallThroughEngine(t *testing.T) {
	e := New()
	program, err := e.Compile(`fn foo(x, y) { len(x) + y }`)
	require.NoError(t, err)

	fp, err := NewFnPtr("foo")
	require.NoError(t, err)
	fp.SetCurry([]Dynamic{NewString("abc")})

	result, err := CallFnPtr[int64](e, fp, program, int64(39))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)
}

func TestFnPtrCallWithinContext(t *testing.T) {
	e := New()
	// A native host function that invokes a function pointer it receives.
	e.Core().GlobalNamespace().RegisterNative("apply_twice",
		[]TypeID{evaluator.TypeFnPtr, evaluator.TypeInt}, true,
		func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
			fp, _ := args[0].FnPtr()
			once, err := fp.CallWithinContext(ctx, []Dynamic{args[1].Clone()})
			if err != nil {
				return Unit(), err
			}
			return fp.CallWithinContext(ctx, []Dynamic{once})
		})

	program, err := e.Compile(`
		fn inc(x) { x + 1 }
		fn run(n) { apply_twice(Fn("inc"), n) }
	`)
	require.NoError(t, err)

	result, err := CallFn[int64](e, NewScope(), program, "run", int64(40))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)
}

func TestRegisterFn(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterFn("concat_rep", func(s string, n int64) string {
		out := ""
		for i := int64(0); i < n; i++ {
			out += s
		}
		return out
	}))

	got, err := e.Eval(NewScope(), `concat_rep("ab", 3)`)
	require.NoError(t, err)
	assert.Equal(t, "ababab", got)
}

func TestRegisterFnWithError(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterFn("fail_if_neg", func(n int64) (int64, error) {
		if n < 0 {
			return 0, RuntimeError("negative input %d", n)
		}
		return n, nil
	}))

	got, err := e.Eval(NewScope(), `fail_if_neg(5)`)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	_, err = e.Eval(NewScope(), `fail_if_neg(-5)`)
	require.Error(t, err)
}

func TestEvalFragment(t *testing.T) {
	e := New()
	scope := NewScope()

	got, err := e.Eval(scope, `let a = 40; a + 2`)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestMarshallerRoundTrips(t *testing.T) {
	m := NewMarshaller()

	tests := []any{
		int64(5),
		3.5,
		true,
		"hi",
	}
	for _, in := range tests {
		d, err := m.ToDynamic(in)
		require.NoError(t, err)
		out, err := m.FromDynamic(d, nil)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}

	d, err := m.ToDynamic([]any{int64(1), "a"})
	require.NoError(t, err)
	out, err := m.FromDynamic(d, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "a"}, out)

	d, err = m.ToDynamic(map[string]any{"k": int64(2)})
	require.NoError(t, err)
	out, err = m.FromDynamic(d, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": int64(2)}, out)

	d, err = m.ToDynamic(nil)
	require.NoError(t, err)
	assert.True(t, d.IsUnit())
}

func TestConfigParsing(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
limits:
  max_call_levels: 16
  max_operations: 1000
  max_string_size: 4096
fast_operators: false
`))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Limits.MaxCallLevels)
	assert.Equal(t, uint64(1000), cfg.Limits.MaxOperations)
	require.NotNil(t, cfg.FastOperators)
	assert.False(t, *cfg.FastOperators)

	e := New()
	e.ApplyConfig(cfg)
	assert.Equal(t, 16, e.Core().Limits().MaxCallLevels)
	assert.Equal(t, uint64(1000), e.Core().Limits().MaxOperations)
	assert.Equal(t, 4096, e.Core().Limits().MaxStringSize)
	assert.False(t, e.Core().FastOperators())
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig([]byte("no_such_option: 1\n"))
	assert.Error(t, err)
}

func TestConfigLimitsEnforced(t *testing.T) {
	e := New()
	e.ApplyConfig(&Config{Limits: LimitsConfig{MaxCallLevels: 4}})

	program, err := e.Compile(`fn f(n) { if n == 0 { 0 } else { f(n-1) } }`)
	require.NoError(t, err)

	_, err = CallFn[int64](e, NewScope(), program, "f", int64(10))
	require.Error(t, err)
	assert.True(t, evaluator.IsKind(err, evaluator.ErrStackOverflow))
}
