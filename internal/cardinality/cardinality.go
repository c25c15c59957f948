// Package cardinality implements the four-element cardinality semilattice
// that every block of a BlockVector is declared against: how many values a
// single row's block may hold.
//
// Two independent bits form the lattice:
//
//	optional bit — 0 means at least one value is required, 1 means zero is allowed.
//	plural   bit — 0 means at most one value, 1 means more than one is allowed.
//
// Widening is bitwise OR, tightening is bitwise AND, exactly as in
// spec.md §3.1.
package cardinality

import "fmt"

// Cardinality is one of the four lattice elements.
type Cardinality uint8

const (
	optionalBit Cardinality = 1 << iota
	pluralBit
)

const (
	// X1to1 is the regular cardinality: exactly one value.
	X1to1 Cardinality = 0
	// X0to1 allows zero or one value.
	X0to1 = optionalBit
	// X1toN allows one or more values.
	X1toN = pluralBit
	// X0toN is unconstrained: zero or more values.
	X0toN = optionalBit | pluralBit
)

// IsOptional reports whether a block may be empty.
func (c Cardinality) IsOptional() bool { return c&optionalBit != 0 }

// IsPlural reports whether a block may hold more than one value.
func (c Cardinality) IsPlural() bool { return c&pluralBit != 0 }

// Widen returns the least upper bound of c and other (bitwise OR).
func (c Cardinality) Widen(other Cardinality) Cardinality { return c | other }

// Tighten returns the greatest lower bound of c and other (bitwise AND).
func (c Cardinality) Tighten(other Cardinality) Cardinality { return c & other }

// Fits reports whether a value of cardinality c can always be accepted
// where other is declared — i.e. c|other == other.
func (c Cardinality) Fits(other Cardinality) bool { return c.Widen(other) == other }

// FitsLength reports whether a concrete block length is consistent with c.
func (c Cardinality) FitsLength(n int) bool {
	if n == 0 {
		return c.IsOptional()
	}
	if n > 1 {
		return c.IsPlural()
	}
	return true
}

func (c Cardinality) String() string {
	switch c {
	case X1to1:
		return "x1to1"
	case X0to1:
		return "x0to1"
	case X1toN:
		return "x1toN"
	case X0toN:
		return "x0toN"
	default:
		return fmt.Sprintf("cardinality(%d)", uint8(c))
	}
}
