package shape

import "reflect"

// Fits reports whether a value shaped a can always be substituted where b
// is expected — spec.md §3.1/§3.3: "two shapes fit iff one can be
// substituted for the other at every nested position." Decorators
// (Labeled/Flow/Scope) describe how a value is currently being used, not
// its runtime layout, so Fits compares the decorator-stripped core shapes;
// callers that care whether a pipeline's target is presently a flow/scope
// use IsFlow/IsScope directly instead.
func Fits(a, b Shape) bool {
	return fits(Base(a), Base(b))
}

func fits(a, b Shape) bool {
	switch bb := b.(type) {
	case ValueOf:
		av, ok := a.(ValueOf)
		if !ok {
			return false
		}
		return typeFits(av.Type, bb.Type)
	case BlockOf:
		ab, ok := a.(BlockOf)
		if !ok {
			return false
		}
		return ab.Card.Fits(bb.Card) && fits(Base(ab.Elem), Base(bb.Elem))
	case TupleOf:
		at, ok := a.(TupleOf)
		if !ok {
			return false
		}
		if len(at.Columns) != len(bb.Columns) {
			return false
		}
		for i := range at.Columns {
			if at.LabelOf(i) != bb.LabelOf(i) && at.LabelOf(i) != "" && bb.LabelOf(i) != "" {
				return false
			}
			if !fits(Base(at.Columns[i]), Base(bb.Columns[i])) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// typeFits reports whether a value of type a can be used where type b is
// expected. A nil type is the wildcard (spec.md's unit / "Any"): it fits,
// and is fit by, everything.
func typeFits(a, b reflect.Type) bool {
	if a == nil || b == nil {
		return true
	}
	if a == b {
		return true
	}
	return a.AssignableTo(b)
}

// Bound returns the least upper bound (widening join) of a and b: the
// tightest shape both a and b fit into. The assembler does not call it.
func Bound(a, b Shape) Shape {
	return bound(Base(a), Base(b))
}

func bound(a, b Shape) Shape {
	switch bb := b.(type) {
	case ValueOf:
		ab, ok := a.(ValueOf)
		if !ok {
			return ValueOf{}
		}
		if ab.Type == bb.Type {
			return ab
		}
		return ValueOf{}
	case BlockOf:
		ab, ok := a.(BlockOf)
		if !ok {
			return bb
		}
		return BlockOf{Elem: bound(Base(ab.Elem), Base(bb.Elem)), Card: ab.Card.Widen(bb.Card)}
	case TupleOf:
		at, ok := a.(TupleOf)
		if !ok || len(at.Columns) != len(bb.Columns) {
			return bb
		}
		cols := make([]Shape, len(bb.Columns))
		labels := make([]string, len(bb.Columns))
		for i := range cols {
			cols[i] = bound(Base(at.Columns[i]), Base(bb.Columns[i]))
			if at.LabelOf(i) == bb.LabelOf(i) {
				labels[i] = bb.LabelOf(i)
			}
		}
		return TupleOf{Labels: labels, Columns: cols}
	default:
		return b
	}
}

// IBound returns the greatest lower bound (tightening meet) of a and b.
func IBound(a, b Shape) Shape {
	return ibound(Base(a), Base(b))
}

func ibound(a, b Shape) Shape {
	switch bb := b.(type) {
	case BlockOf:
		ab, ok := a.(BlockOf)
		if !ok {
			return bb
		}
		return BlockOf{Elem: ibound(Base(ab.Elem), Base(bb.Elem)), Card: ab.Card.Tighten(bb.Card)}
	case TupleOf:
		at, ok := a.(TupleOf)
		if !ok || len(at.Columns) != len(bb.Columns) {
			return bb
		}
		cols := make([]Shape, len(bb.Columns))
		for i := range cols {
			cols[i] = ibound(Base(at.Columns[i]), Base(bb.Columns[i]))
		}
		return TupleOf{Labels: bb.Labels, Columns: cols}
	default:
		return a
	}
}
