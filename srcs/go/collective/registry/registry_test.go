package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fn func() string

var testTable = Table[fn]{
	{Name: `linear`, Fn: func() string { return `linear` }},
	{Name: `binomial_tree`, Fn: func() string { return `binomial_tree` }},
	{Name: `dissemination`, Fn: func() string { return `dissemination` }},
}

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection(`binomial_tree, linear:i32,dissemination:f64`)
	require.NoError(t, err)
	assert.Equal(t, `binomial_tree`, sel.Default)
	assert.Equal(t, `linear`, sel.For(`i32`))
	assert.Equal(t, `dissemination`, sel.For(`f64`))
	assert.Equal(t, `binomial_tree`, sel.For(`u8`))

	sel, err = ParseSelection(``)
	require.NoError(t, err)
	assert.Equal(t, ``, sel.For(`i32`))

	for _, s := range []string{`a,b`, `,`, `a:`, `:i32`, `a:i32,b:i32`} {
		_, err := ParseSelection(s)
		assert.ErrorIs(t, err, ErrInvalidSelection, s)
	}
}

func TestLookup(t *testing.T) {
	a, ok := testTable.Lookup(`dissemination_size`)
	require.True(t, ok)
	assert.Equal(t, `dissemination`, a.Fn())
	_, ok = testTable.Lookup(`ring`)
	assert.False(t, ok)
	assert.Equal(t, []string{`linear`, `binomial_tree`, `dissemination`}, testTable.Names())
}

func TestBind(t *testing.T) {
	env := map[string]string{
		`BARRIER_ALGO`: `linear,dissemination:f64`,
	}
	r := New(envOf(env))
	a, err := Bind(r, Barrier, `i32`, testTable, `binomial_tree`)
	require.NoError(t, err)
	assert.Equal(t, `linear`, a.Name)
	a, err = Bind(r, Barrier, `f64`, testTable, `binomial_tree`)
	require.NoError(t, err)
	assert.Equal(t, `dissemination`, a.Name)
	a, err = Bind(r, Sync, ``, testTable, `binomial_tree`)
	require.NoError(t, err)
	assert.Equal(t, `binomial_tree`, a.Name)

	// bindings are immutable once made
	env[`BARRIER_ALGO`] = `binomial_tree`
	a, err = Bind(r, Barrier, `i32`, testTable, `binomial_tree`)
	require.NoError(t, err)
	assert.Equal(t, `linear`, a.Name)

	assert.Equal(t, []Binding{
		{Op: Barrier, Type: `f64`, Name: `dissemination`},
		{Op: Barrier, Type: `i32`, Name: `linear`},
		{Op: Sync, Type: ``, Name: `binomial_tree`},
	}, r.Bindings())
}

func TestBindUnknown(t *testing.T) {
	r := New(envOf(map[string]string{`REDUCE_ALGO`: `fastest`}))
	_, err := Bind(r, Reduce, `i32`, testTable, `linear`)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	assert.Contains(t, err.Error(), `fastest`)
	assert.Empty(t, r.Bindings())

	r = New(envOf(map[string]string{`REDUCE_ALGO`: `a,b`}))
	_, err = Bind(r, Reduce, `i32`, testTable, `linear`)
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestDigest(t *testing.T) {
	bind := func(env map[string]string) [32]byte {
		r := New(envOf(env))
		_, err := Bind(r, Barrier, ``, testTable, `linear`)
		require.NoError(t, err)
		return r.Digest()
	}
	x := bind(nil)
	assert.Equal(t, x, bind(map[string]string{`BARRIER_ALGO`: `linear`}))
	assert.NotEqual(t, x, bind(map[string]string{`BARRIER_ALGO`: `dissemination`}))
	assert.NotEqual(t, x, New(envOf(nil)).Digest())
}

func TestOperation(t *testing.T) {
	for _, op := range Operations {
		p, err := ParseOperation(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, p)
		assert.NotEmpty(t, op.EnvKey())
	}
	assert.Equal(t, `ALLTOALLS_ALGO`, AllToAlls.EnvKey())
}
