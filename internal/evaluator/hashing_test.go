package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcFnHashStable(t *testing.T) {
	h1 := CalcFnHash(nil, "foo", 2)
	h2 := CalcFnHash(nil, "foo", 2)
	assert.Equal(t, h1, h2)
	assert.NotZero(t, h1)
}

func TestCalcFnHashDiscriminates(t *testing.T) {
	base := CalcFnHash(nil, "foo", 2)
	assert.NotEqual(t, base, CalcFnHash(nil, "foo", 3), "arity must participate")
	assert.NotEqual(t, base, CalcFnHash(nil, "bar", 2), "name must participate")
}

func TestCalcFnHashSkipsFirstNamespaceComponent(t *testing.T) {
	// The first component of a qualified path is the import alias and is
	// excluded from identity.
	a := CalcFnHash([]string{"alias_a", "sub"}, "foo", 1)
	b := CalcFnHash([]string{"alias_b", "sub"}, "foo", 1)
	assert.Equal(t, a, b)

	c := CalcFnHash([]string{"alias_a", "other"}, "foo", 1)
	assert.NotEqual(t, a, c, "later components must participate")

	// A qualified hash is distinct from the plain hash even for a
	// single-component path, because the chain length participates.
	assert.NotEqual(t, CalcFnHash([]string{"alias"}, "foo", 1), CalcFnHash(nil, "foo", 1))
}

func TestCalcFnHashFull(t *testing.T) {
	base := CalcFnHash(nil, "foo", 2)

	h1 := CalcFnHashFull(base, []TypeID{TypeInt, TypeString})
	h2 := CalcFnHashFull(base, []TypeID{TypeInt, TypeString})
	require.Equal(t, h1, h2)

	assert.NotEqual(t, h1, CalcFnHashFull(base, []TypeID{TypeString, TypeInt}),
		"parameter order must participate")
	assert.NotEqual(t, h1, base)
	assert.NotEqual(t, h1, CalcFnHashFull(base, nil))
}

func TestHashesNativeOnly(t *testing.T) {
	h := CalcFnHash(nil, "foo", 1)
	assert.True(t, HashesFromNative(h).IsNativeOnly())
	assert.False(t, HashesFromHash(h).IsNativeOnly())
	assert.False(t, HashesFromAll(h, h).IsNativeOnly())
}
