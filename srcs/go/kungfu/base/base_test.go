package base

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	assert.Equal(t, U8, TypeOf[uint8]())
	assert.Equal(t, I32, TypeOf[int32]())
	assert.Equal(t, I64, TypeOf[int64]())
	assert.Equal(t, I64, TypeOf[time.Duration]())
	assert.Equal(t, F32, TypeOf[float32]())
	assert.Equal(t, F64, TypeOf[float64]())
	assert.Equal(t, 8, TypeOf[uint64]().Size())
	assert.Equal(t, "f64", F64.String())

	dt, err := ParseDataType("u16")
	require.NoError(t, err)
	assert.Equal(t, U16, dt)
	_, err = ParseDataType("f16")
	assert.Error(t, err)
}

func TestParseOP(t *testing.T) {
	for _, o := range OPs {
		p, err := ParseOP(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, p)
	}
	var o OP
	require.NoError(t, o.Set("xor"))
	assert.Equal(t, XOR, o)
	assert.Error(t, o.Set("avg"))
}

func TestOpFor(t *testing.T) {
	cases := []struct {
		op   OP
		x, y int32
		z    int32
	}{
		{SUM, 3, -5, -2},
		{PROD, 3, -5, -15},
		{MIN, 3, -5, -5},
		{MAX, 3, -5, 3},
		{AND, 6, 3, 2},
		{OR, 6, 3, 7},
		{XOR, 6, 3, 5},
		{AND, -1, 0x0f0f, 0x0f0f},
	}
	for _, c := range cases {
		op, err := OpFor[int32](c.op)
		require.NoError(t, err)
		assert.Equal(t, c.z, op.Fn(c.x, c.y), "%d %s %d", c.x, c.op, c.y)
	}
	u, err := OpFor[uint64](XOR)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-1), u.Fn(math.MaxUint64, 1))
}

func TestOpForRejectsBitwiseFloat(t *testing.T) {
	for _, o := range []OP{AND, OR, XOR} {
		_, err := OpFor[float64](o)
		assert.ErrorIs(t, err, errInvalidOP)
	}
	_, err := OpFor[float32](MAX)
	assert.NoError(t, err)
}

func TestFold(t *testing.T) {
	sum, _ := OpFor[float64](SUM)
	z := Fold(sum, []float64{1, 2}, []float64{10, 20}, []float64{100, 200})
	assert.Equal(t, []float64{111, 222}, z)

	y := []float64{1, 2}
	Transform(y, []float64{1, 1}, sum)
	assert.Equal(t, []float64{2, 3}, y)
	assert.Nil(t, Fold(sum))
}
