package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-lang/quill/internal/token"
)

func registerConstFn(m *Module, name string, params []TypeID, result int64) {
	m.RegisterNative(name, params, true,
		func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
			return NewInt(result), nil
		})
}

func TestResolveFnZeroHash(t *testing.T) {
	e := NewEngine()
	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	assert.Nil(t, e.resolveFn(global, caches, nil, 0, 0, nil, false, false))
}

func TestResolveFnByExactTypes(t *testing.T) {
	e := NewEngine()
	registerConstFn(e.GlobalNamespace(), "f", []TypeID{TypeInt, TypeInt}, 1)
	registerConstFn(e.GlobalNamespace(), "f", []TypeID{TypeInt, TypeString}, 2)

	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	hashBase := CalcFnHash(nil, "f", 2)

	a, b := NewInt(1), NewInt(2)
	entry := e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a, &b}, true, true)
	require.NotNil(t, entry)
	r1, _ := entry.Func.fn(nil, []*Dynamic{&a, &b})
	n, _ := r1.Int()
	assert.Equal(t, int64(1), n)

	s := NewString("x")
	entry = e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a, &s}, true, true)
	require.NotNil(t, entry)
	r2, _ := entry.Func.fn(nil, []*Dynamic{&a, &s})
	n, _ = r2.Int()
	assert.Equal(t, int64(2), n)
}

func TestResolveFnRepeatable(t *testing.T) {
	e := NewEngine()
	registerConstFn(e.GlobalNamespace(), "g", nil, 7)

	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	hashBase := CalcFnHash(nil, "g", 0)

	first := e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{}, true, true)
	require.NotNil(t, first)
	for i := 0; i < 10; i++ {
		entry := e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{}, true, true)
		require.NotNil(t, entry)
		assert.Same(t, first.Func, entry.Func)
	}
}

func TestCacheAdmissionSecondSighting(t *testing.T) {
	e := NewEngine()
	registerConstFn(e.GlobalNamespace(), "h", []TypeID{TypeInt}, 3)

	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	hashBase := CalcFnHash(nil, "h", 1)
	cache := caches.Current()

	a := NewInt(1)
	entry := e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true)
	require.NotNil(t, entry)
	assert.Equal(t, 0, cache.Len(), "first sighting stays out of the map")

	entry = e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true)
	require.NotNil(t, entry)
	assert.Equal(t, 1, cache.Len(), "second sighting is admitted")
}

func TestCacheAdmissionNegativeEntries(t *testing.T) {
	e := NewEngine()
	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	cache := caches.Current()

	hashBase := CalcFnHash(nil, "no_such_fn", 1)
	a := NewInt(1)

	assert.Nil(t, e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true))
	assert.Equal(t, 0, cache.Len(), "first negative sighting is not inserted")

	assert.Nil(t, e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true))
	assert.Equal(t, 1, cache.Len(), "second sighting caches the negative")

	// The cached negative replays without touching the search path.
	assert.Nil(t, e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true))
	assert.Equal(t, 1, cache.Len())
}

func TestCacheClearIsHarmless(t *testing.T) {
	e := NewEngine()
	registerConstFn(e.GlobalNamespace(), "k", []TypeID{TypeInt}, 9)

	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	hashBase := CalcFnHash(nil, "k", 1)
	a := NewInt(1)

	e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true)
	e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true)
	caches.Current().Clear()

	entry := e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true)
	require.NotNil(t, entry)
}

func TestWildcardFallbackOrder(t *testing.T) {
	// With both (int, wildcard) and (wildcard, int) registered, an (int, int)
	// call must pick (int, wildcard): bitmask 1 substitutes the right-most
	// parameter first.
	e := NewEngine()
	registerConstFn(e.GlobalNamespace(), "w", []TypeID{TypeInt, TypeDynamic}, 10)
	registerConstFn(e.GlobalNamespace(), "w", []TypeID{TypeDynamic, TypeInt}, 20)

	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	hashBase := CalcFnHash(nil, "w", 2)

	a, b := NewInt(1), NewInt(2)
	entry := e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a, &b}, true, true)
	require.NotNil(t, entry)
	r, _ := entry.Func.fn(nil, []*Dynamic{&a, &b})
	n, _ := r.Int()
	assert.Equal(t, int64(10), n)
}

func TestWildcardFallbackRequiresMarker(t *testing.T) {
	// Without a wildcard overload under the base hash, no permutations are
	// probed and resolution fails fast.
	e := NewEngine()
	registerConstFn(e.GlobalNamespace(), "v", []TypeID{TypeString}, 5)

	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	hashBase := CalcFnHash(nil, "v", 1)

	a := NewInt(1)
	assert.Nil(t, e.resolveFn(global, caches, nil, 0, hashBase, []*Dynamic{&a}, true, true))
}

func TestBuiltinOperatorFallback(t *testing.T) {
	e := NewEngine()
	global := NewGlobalRuntimeState(e)
	caches := NewCaches()

	hashBase := CalcFnHash(nil, "+", 2)
	a, b := NewInt(40), NewInt(2)
	entry := e.resolveFn(global, caches, nil, token.PLUS, hashBase, []*Dynamic{&a, &b}, true, true)
	require.NotNil(t, entry)

	r, err := entry.Func.fn(nil, []*Dynamic{&a, &b})
	require.NoError(t, err)
	n, _ := r.Int()
	assert.Equal(t, int64(42), n)
}

func TestRegisteredOverloadBeatsBuiltinOperator(t *testing.T) {
	e := NewEngine()
	registerConstFn(e.GlobalNamespace(), "+", []TypeID{TypeInt, TypeInt}, 999)

	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	hashBase := CalcFnHash(nil, "+", 2)

	a, b := NewInt(1), NewInt(2)
	entry := e.resolveFn(global, caches, nil, token.PLUS, hashBase, []*Dynamic{&a, &b}, true, true)
	require.NotNil(t, entry)
	r, _ := entry.Func.fn(nil, []*Dynamic{&a, &b})
	n, _ := r.Int()
	assert.Equal(t, int64(999), n)
}

func TestCacheStackRewind(t *testing.T) {
	caches := NewCaches()
	c0 := caches.Current()
	require.Equal(t, 1, caches.Len())

	caches.Push()
	caches.Push()
	assert.Equal(t, 3, caches.Len())

	caches.Rewind(1)
	assert.Equal(t, 1, caches.Len())
	assert.Same(t, c0, caches.Current())
}
