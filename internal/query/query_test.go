package query

import "testing"

func TestComposeAllEmptyIsIt(t *testing.T) {
	if _, ok := ComposeAll().(It); !ok {
		t.Fatalf("ComposeAll() with no nodes should be It{}")
	}
}

func TestComposeAllSingleIsUnwrapped(t *testing.T) {
	g := Get{Name: "x"}
	if got := ComposeAll(g); got != Node(g) {
		t.Fatalf("ComposeAll(g) should return g unchanged, got %#v", got)
	}
}

func TestComposeAllChainsLeftToRight(t *testing.T) {
	a, b, c := Get{Name: "a"}, Get{Name: "b"}, Get{Name: "c"}
	got := ComposeAll(a, b, c)
	outer, ok := got.(Compose)
	if !ok {
		t.Fatalf("expected a Compose, got %#v", got)
	}
	if outer.Right != Node(c) {
		t.Fatalf("outermost Compose.Right should be the last node")
	}
	mid, ok := outer.Left.(Compose)
	if !ok {
		t.Fatalf("expected nested Compose, got %#v", outer.Left)
	}
	if mid.Left != Node(a) || mid.Right != Node(b) {
		t.Fatalf("inner Compose should chain a then b, got %#v", mid)
	}
}

func TestAggKindString(t *testing.T) {
	cases := map[AggKind]string{
		AggCount: "Count",
		AggSum:   "Sum",
		AggMax:   "Max",
		AggMin:   "Min",
		AggMean:  "Mean",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
