package knots

import "github.com/dataknots/dataknots/internal/query"

// Query wraps a query.Node so combinators can be chained with method calls
// in place of the spec's >> operator (Go has no operator overloading — see
// DESIGN.md for the broadcasting note this applies to as well). Every
// combinator constructor in this file, and every method on Query, returns a
// query.Node or Query ready to hand to Run.
type Query struct {
	Node query.Node
}

// Q wraps a bare query.Node as a Query, accepting a native Go value too
// (lifted via query.Const) for call sites that mix literals and combinators
// freely, the way spec.md's combinator algebra does.
func Q(n interface{}) Query {
	if node, ok := n.(query.Node); ok {
		return Query{Node: node}
	}
	if q, ok := n.(Query); ok {
		return q
	}
	return Query{Node: query.Const{Value: n}}
}

// It is pass() against the current flow.
func It() Query { return Query{Node: query.It{}} }

// Dot extends a navigation path: It().Dot("a", "b") is It.a.b.
func (q Query) Dot(names ...string) Query {
	if len(names) == 0 {
		return q
	}
	if _, ok := q.Node.(query.It); ok {
		return Query{Node: query.Navigation{Path: append([]string{}, names...)}}
	}
	if nav, ok := q.Node.(query.Navigation); ok {
		return Query{Node: query.Navigation{Path: append(append([]string{}, nav.Path...), names...)}}
	}
	out := q
	for _, n := range names {
		out = Query{Node: query.Compose{Left: out.Node, Right: query.Get{Name: n}}}
	}
	return out
}

// Then is the >> combinator: assemble q, then rhs against q's result.
func (q Query) Then(rhs Query) Query {
	return Query{Node: query.Compose{Left: q.Node, Right: rhs.Node}}
}

// Get performs a structural lookup of name through the current target.
func Get(name string) Query { return Query{Node: query.Get{Name: name}} }

// Lift applies fn to the given argument queries, each coerced through Q.
func Lift(fn interface{}, args ...interface{}) Query {
	nodes := make([]query.Node, len(args))
	for i, a := range args {
		nodes[i] = Q(a).Node
	}
	return Query{Node: query.Lift{Fn: fn, Args: nodes}}
}

// Broadcast is spec.md §6.4's f.(X,Y) sugar: it is exactly Lift(fn, args...),
// spelled out separately only so call sites can read f.(X,Y)'s intent as
// "broadcast fn elementwise over X and Y" rather than "lift a scalar
// function" — Go has no operator overloading to spell a literal f.(X,Y).
func Broadcast(fn interface{}, args ...interface{}) Query { return Lift(fn, args...) }

// FieldSpec is one Record entry, built by Pair, or by Positional for an
// unlabeled field.
type FieldSpec struct {
	field query.Field
}

// Pair is spec.md §6.4's :name => query labeling sugar, used both as a
// Record field and as a Keep/Given binding.
func Pair(name string, value interface{}) FieldSpec {
	return FieldSpec{field: query.Field{Label: name, HasLabel: true, Value: Q(value).Node}}
}

// Positional wraps a value as an unlabeled Record field.
func Positional(value interface{}) FieldSpec {
	return FieldSpec{field: query.Field{Value: Q(value).Node}}
}

// Record bundles fields into a tuple, one column per field.
func Record(fields ...FieldSpec) Query {
	fs := make([]query.Field, len(fields))
	for i, f := range fields {
		fs[i] = f.field
	}
	return Query{Node: query.Record{Fields: fs}}
}

// Label renames the output of q; an empty name strips any existing label.
func Label(q Query, name string) Query {
	if name == "" {
		return Query{Node: query.Labeled{Inner: q.Node}}
	}
	return Query{Node: query.Labeled{Name: name, HasLabel: true, Inner: q.Node}}
}

// Tag attaches a display-only name to q; semantically identity.
func Tag(name string, q Query) Query {
	return Query{Node: query.Tag{Name: name, Inner: q.Node}}
}

// Each assembles inner against each element of the current flow, so an
// aggregate inside inner is computed per element rather than over the
// whole flow.
func Each(inner Query) Query { return Query{Node: query.Each{Inner: inner.Node}} }

// Filter keeps elements for which inner holds.
func Filter(inner Query) Query { return Query{Node: query.Filter{Inner: inner.Node}} }

// Take keeps the first n elements of each block (all but the last -n when
// n is negative).
func Take(n int) Query { return Query{Node: query.Take{StaticN: n, HasStaticN: true}} }

// TakeBy keeps a dynamic count of elements, n assembled against the run's
// root for each block.
func TakeBy(n Query) Query { return Query{Node: query.Take{DynamicN: n.Node}} }

// Drop removes the first n elements of each block (all but the last -n
// when n is negative, so only the last -n remain).
func Drop(n int) Query { return Query{Node: query.Take{StaticN: n, HasStaticN: true, Reverse: true}} }

// Count, Sum, Max, Min, and Mean are the aggregator combinators of spec.md
// §4.2.4, each reducing inner's current block.
func Count(inner Query) Query { return Query{Node: query.Agg{Kind: query.AggCount, Inner: inner.Node}} }
func Sum(inner Query) Query   { return Query{Node: query.Agg{Kind: query.AggSum, Inner: inner.Node}} }
func Max(inner Query) Query   { return Query{Node: query.Agg{Kind: query.AggMax, Inner: inner.Node}} }
func Min(inner Query) Query   { return Query{Node: query.Agg{Kind: query.AggMin, Inner: inner.Node}} }
func Mean(inner Query) Query  { return Query{Node: query.Agg{Kind: query.AggMean, Inner: inner.Node}} }

// Keep extends the current scope with new named bindings built from pairs.
func Keep(pairs ...FieldSpec) Query {
	bindings := make([]query.Binding, len(pairs))
	for i, p := range pairs {
		bindings[i] = query.Binding{Name: p.field.Label, Value: p.field.Value}
	}
	return Query{Node: query.Keep{Bindings: bindings}}
}

// Given is sugar for Keep(bindings) >> Each(body).
func Given(body Query, pairs ...FieldSpec) Query {
	bindings := make([]query.Binding, len(pairs))
	for i, p := range pairs {
		bindings[i] = query.Binding{Name: p.field.Label, Value: p.field.Value}
	}
	return Query{Node: query.Given{Bindings: bindings, Body: body.Node}}
}

// Unique dedupes a flow's elements, preserving first occurrence.
func Unique(inner Query) Query { return Query{Node: query.Unique{Inner: inner.Node}} }

// Rev reverses each block's elements in place.
func Rev(inner Query) Query { return Query{Node: query.Reverse{Inner: inner.Node}} }

// IsNull reports whether inner's (optional) block is empty.
func IsNull(inner Query) Query { return Query{Node: query.IsNull{Inner: inner.Node}} }

// Exists reports whether inner's (optional) block is non-empty.
func Exists(inner Query) Query { return Query{Node: query.Exists{Inner: inner.Node}} }
