package base

import (
	"errors"
	"fmt"
	"strings"
)

type OP int

const (
	SUM OP = iota
	MIN
	MAX
	PROD
	AND
	OR
	XOR
)

var opNames = map[OP]string{
	SUM:  `SUM`,
	MIN:  `MIN`,
	MAX:  `MAX`,
	PROD: `PROD`,
	AND:  `AND`,
	OR:   `OR`,
	XOR:  `XOR`,
}

// OPs lists every reduction operator in declaration order.
var OPs = []OP{SUM, MIN, MAX, PROD, AND, OR, XOR}

func (o OP) String() string {
	return opNames[o]
}

// IsBitwise reports whether o is only defined on integers.
func (o OP) IsBitwise() bool {
	return o == AND || o == OR || o == XOR
}

// Set implements flag.Value::Set
func (o *OP) Set(val string) error {
	value, err := ParseOP(val)
	if err != nil {
		return err
	}
	*o = value
	return nil
}

// Type implements pflag.Value::Type
func (o *OP) Type() string {
	return "op"
}

var errInvalidOP = errors.New("invalid op")

func ParseOP(s string) (OP, error) {
	for k, v := range opNames {
		if strings.EqualFold(s, v) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errInvalidOP, s)
}

// Op is a typed associative and commutative reducer.
type Op[T Number] struct {
	OP OP
	Fn func(x, y T) T
}

// OpFor returns the reducer of o over T. Bitwise operators are rejected for
// floating point types.
func OpFor[T Number](o OP) (Op[T], error) {
	var fn func(x, y T) T
	switch o {
	case SUM:
		fn = func(x, y T) T { return x + y }
	case PROD:
		fn = func(x, y T) T { return x * y }
	case MIN:
		fn = func(x, y T) T { return min(x, y) }
	case MAX:
		fn = func(x, y T) T { return max(x, y) }
	case AND, OR, XOR:
		if !TypeOf[T]().IsInteger() {
			return Op[T]{}, fmt.Errorf("%w: %s on %s", errInvalidOP, o, TypeOf[T]())
		}
		fn = bitwise[T](o)
	default:
		return Op[T]{}, fmt.Errorf("%w: %d", errInvalidOP, int(o))
	}
	return Op[T]{OP: o, Fn: fn}, nil
}

// bitwise goes through int64, which preserves the bits of every integer type.
func bitwise[T Number](o OP) func(x, y T) T {
	switch o {
	case AND:
		return func(x, y T) T { return T(int64(x) & int64(y)) }
	case OR:
		return func(x, y T) T { return T(int64(x) | int64(y)) }
	default:
		return func(x, y T) T { return T(int64(x) ^ int64(y)) }
	}
}

// Transform performs y[i] = op(y[i], x[i]) for vectors y and x
func Transform[T Number](y, x []T, op Op[T]) {
	Transform2(y, y, x, op)
}

// Transform2 performs z[i] = op(x[i], y[i]) for vectors z and x, y.
func Transform2[T Number](z, x, y []T, op Op[T]) {
	x = x[:len(z)]
	y = y[:len(z)]
	for i := range z {
		z[i] = op.Fn(x[i], y[i])
	}
}

// Fold is the reference reduction: the element-wise fold of op over xs.
func Fold[T Number](op Op[T], xs ...[]T) []T {
	if len(xs) == 0 {
		return nil
	}
	z := make([]T, len(xs[0]))
	copy(z, xs[0])
	for _, x := range xs[1:] {
		Transform(z, x, op)
	}
	return z
}
