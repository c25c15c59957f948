// Package shape implements the structural type algebra that the assembler
// threads through a query: ValueOf/BlockOf/TupleOf core shapes plus the
// IsLabeled/IsFlow/IsScope decorators, and the fits/bound/ibound lattice
// operations over them (spec.md §3.3).
//
// The shape family is a small sealed set of variants with orthogonal
// decorators wrapping an inner shape, rather than a class hierarchy — the
// same tagged-variant shape used by typesystem.Kind in the corpus this
// engine is grounded on (a handful of struct variants implementing one
// interface, never subclassed).
package shape

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dataknots/dataknots/internal/cardinality"
)

// Shape is the sealed interface implemented by every shape variant.
type Shape interface {
	String() string
	isShape()
}

// AnyType is the wildcard element type: it fits, and is fit by, anything.
var AnyType reflect.Type

// ValueOf describes elements of a concrete scalar Go type.
type ValueOf struct {
	Type reflect.Type
}

func (v ValueOf) isShape() {}
func (v ValueOf) String() string {
	if v.Type == nil {
		return "Value(Any)"
	}
	return fmt.Sprintf("Value(%s)", v.Type)
}

// BlockOf describes a block vector: one ragged block per input row, each
// block's elements shaped like Elem, each block's length consistent with
// Card.
type BlockOf struct {
	Elem Shape
	Card cardinality.Cardinality
}

func (b BlockOf) isShape() {}
func (b BlockOf) String() string {
	return fmt.Sprintf("Block(%s, %s)", b.Elem, b.Card)
}

// TupleOf describes a tuple vector: parallel equal-length columns, each a
// shape of its own. Labels is empty for a positional tuple, otherwise it
// has one entry per column.
type TupleOf struct {
	Labels  []string
	Columns []Shape
}

func (t TupleOf) isShape() {}
func (t TupleOf) String() string {
	parts := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if i < len(t.Labels) && t.Labels[i] != "" {
			parts[i] = fmt.Sprintf("%s: %s", t.Labels[i], c)
		} else {
			parts[i] = c.String()
		}
	}
	return fmt.Sprintf("Tuple(%s)", strings.Join(parts, ", "))
}

// LabelOf returns the label at index i, or "" if the tuple is positional.
func (t TupleOf) LabelOf(i int) string {
	if i < len(t.Labels) {
		return t.Labels[i]
	}
	return ""
}

// ColumnIndex resolves a column by label, trying exact labels first and
// falling back to ordinal labels #A, #B, ... as spec.md §4.2.4 requires for
// Get and Record.
func (t TupleOf) ColumnIndex(name string) (int, bool) {
	for i, l := range t.Labels {
		if l == name {
			return i, true
		}
	}
	for i := range t.Columns {
		if OrdinalLabel(i) == name {
			return i, true
		}
	}
	return 0, false
}

// OrdinalLabel returns the ordinal label #A, #B, ... #Z, #AA, ... for index i.
func OrdinalLabel(i int) string {
	// #A..#Z then wrap to #AA style, matching spec.md's ":#A => :#Z" note.
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < len(letters) {
		return "#" + string(letters[i])
	}
	return fmt.Sprintf("#%s%s", string(letters[i/len(letters)-1]), string(letters[i%len(letters)]))
}

// --- decorators ---

// Labeled carries a symbol to be attributed to the surrounding container on
// output. It does not change runtime layout.
type Labeled struct {
	Name  string
	Inner Shape
}

func (l Labeled) isShape()     {}
func (l Labeled) String() string { return fmt.Sprintf("%s => %s", l.Name, l.Inner) }

// Flow marks a BlockOf as the current flow: the outermost block that
// scalar-level combinators implicitly iterate over.
type Flow struct {
	Inner Shape
}

func (f Flow) isShape()     {}
func (f Flow) String() string { return fmt.Sprintf("Flow(%s)", f.Inner) }

// ScopeShape marks a two-column TupleOf([subject, context]) whose second
// column is a parameter record available for Get-lookup. Named ScopeShape
// (not Scope) to avoid colliding with the IsScope constructor below.
type ScopeShape struct {
	Inner Shape
}

func (s ScopeShape) isShape()     {}
func (s ScopeShape) String() string { return fmt.Sprintf("Scope(%s)", s.Inner) }

// --- decorator constructors/accessors ---

// WithLabel wraps inner in a Labeled decorator, replacing any existing one.
// A name of "" strips the decorator (Label(nothing) in spec.md §4.2.4).
func WithLabel(name string, inner Shape) Shape {
	inner = StripLabel(inner)
	if name == "" {
		return inner
	}
	return Labeled{Name: name, Inner: inner}
}

// Label returns the outermost label, if any.
func Label(s Shape) (string, bool) {
	if l, ok := s.(Labeled); ok {
		return l.Name, true
	}
	return "", false
}

// StripLabel removes an outermost Labeled decorator, if present.
func StripLabel(s Shape) Shape {
	if l, ok := s.(Labeled); ok {
		return l.Inner
	}
	return s
}

// AsFlow marks s (a BlockOf, possibly Labeled) as the current flow.
func AsFlow(s Shape) Shape {
	return Flow{Inner: s}
}

// IsFlow reports whether s carries the Flow decorator anywhere before a
// Scope/core shape (i.e. ignoring an outer Labeled).
func IsFlow(s Shape) bool {
	_, ok := StripLabel(s).(Flow)
	return ok
}

// StripFlow removes an outermost (post-label) Flow decorator.
func StripFlow(s Shape) Shape {
	lbl, labeled := Label(s)
	inner := StripLabel(s)
	if f, ok := inner.(Flow); ok {
		inner = f.Inner
	}
	if labeled {
		return WithLabel(lbl, inner)
	}
	return inner
}

// AsScope marks s (a TupleOf([subject, context])) as a parameter scope.
func AsScope(s Shape) Shape {
	return ScopeShape{Inner: s}
}

// IsScope reports whether s carries the Scope decorator (ignoring an outer
// Labeled and/or Flow).
func IsScope(s Shape) bool {
	inner := StripFlow(StripLabel(s))
	_, ok := inner.(ScopeShape)
	return ok
}

// StripScope removes a Scope decorator wrapping the flow's element tuple.
func StripScope(s Shape) Shape {
	if sc, ok := s.(ScopeShape); ok {
		return sc.Inner
	}
	return s
}

// Base strips every decorator, returning the core ValueOf/BlockOf/TupleOf.
func Base(s Shape) Shape {
	for {
		switch t := s.(type) {
		case Labeled:
			s = t.Inner
		case Flow:
			s = t.Inner
		case ScopeShape:
			s = t.Inner
		default:
			return s
		}
	}
}

// FlowElem returns the element shape of the current flow — the shape
// scalar combinators see when they assemble against "the current flow".
// It requires s to be (optionally Labeled) Flow(BlockOf(...)).
func FlowElem(s Shape) (Shape, bool) {
	base := StripFlow(StripLabel(s))
	if !IsFlow(s) {
		return nil, false
	}
	if b, ok := base.(BlockOf); ok {
		return b.Elem, true
	}
	return nil, false
}

// FlowCard returns the declared cardinality of the current flow's blocks.
func FlowCard(s Shape) (cardinality.Cardinality, bool) {
	base := StripFlow(StripLabel(s))
	if b, ok := base.(BlockOf); ok {
		return b.Card, true
	}
	return 0, false
}
