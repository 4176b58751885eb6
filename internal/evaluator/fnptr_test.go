package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFnPtrValidatesName(t *testing.T) {
	fp, err := NewFnPtr("add")
	require.NoError(t, err)
	assert.Equal(t, "add", fp.FnName())
	assert.False(t, fp.IsCurried())
	assert.False(t, fp.IsAnonymous())

	for _, bad := range []string{"", "1abc", "a b", "+", "let", "a-b"} {
		_, err := NewFnPtr(bad)
		assert.Error(t, err, "name %q must be rejected", bad)
		assert.True(t, IsKind(err, ErrFunctionNotFound))
	}
}

func TestNewFnPtrAnonymousBypassesValidation(t *testing.T) {
	fp, err := NewFnPtr("anon$12")
	require.NoError(t, err)
	assert.True(t, fp.IsAnonymous())
}

func TestFnPtrCurryOps(t *testing.T) {
	fp, err := NewFnPtr("f")
	require.NoError(t, err)

	fp.AddCurry(NewInt(1))
	fp.AddCurry(NewInt(2))
	assert.True(t, fp.IsCurried())
	assert.Len(t, fp.Curry(), 2)

	fp.SetCurry([]Dynamic{NewInt(9)})
	assert.Len(t, fp.Curry(), 1)

	name, curry := fp.TakeData()
	assert.Equal(t, "f", name)
	assert.Len(t, curry, 1)
	assert.False(t, fp.IsCurried())
}

func TestArgBackupSwapRestore(t *testing.T) {
	orig := NewArray([]Dynamic{NewInt(1)})
	other := NewInt(2)
	args := []*Dynamic{&orig, &other}

	b := &argBackup{}
	b.swapFirst(args)

	assert.NotSame(t, &orig, args[0], "first slot must point at the clone")
	// Consuming the swapped slot does not disturb the caller's value.
	*args[0] = Unit()

	b.restoreFirst(args)
	b.assertRestored()

	assert.Same(t, &orig, args[0])
	elems, ok := orig.Array()
	require.True(t, ok)
	n, _ := elems[0].Int()
	assert.Equal(t, int64(1), n)
}

func TestArgBackupPanicsWhenNotRestored(t *testing.T) {
	v := NewInt(1)
	args := []*Dynamic{&v}
	b := &argBackup{}
	b.swapFirst(args)

	assert.Panics(t, func() { b.assertRestored() })
}

func TestEnsureNoDataRace(t *testing.T) {
	plain := NewInt(1)
	sharedVal := NewInt(2)
	shared := sharedVal.IntoShared()
	alias := shared.Clone()

	// Nothing locked: fine.
	require.NoError(t, ensureNoDataRace("f", []*Dynamic{&plain, &alias}, false))

	shared.lock()
	defer shared.unlock()

	err := ensureNoDataRace("f", []*Dynamic{&plain, &alias}, false)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrDataRace))
	assert.Contains(t, err.Error(), "argument #2 of function 'f'")

	// The mutable receiver slot is exempt.
	require.NoError(t, ensureNoDataRace("f", []*Dynamic{&alias, &plain}, true))
}
