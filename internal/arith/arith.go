// Package arith provides checked unsigned arithmetic for fund accounting.
// Overflow is never silently wrapped or saturated; callers abort the whole
// instruction on error.
package arith

import (
	"errors"
	"math/bits"
)

var (
	ErrOverflow  = errors.New("arithmetic overflow")
	ErrUnderflow = errors.New("arithmetic underflow")
	ErrDivByZero = errors.New("division by zero")
)

func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// MulDiv computes floor(a * b / d) with a 128-bit intermediate product.
// The quotient must fit in 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		// bits.Div64 panics on quotient overflow; reject it as an
		// arithmetic fault instead.
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}
