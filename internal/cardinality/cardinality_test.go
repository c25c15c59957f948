package cardinality

import "testing"

func TestLattice(t *testing.T) {
	if X1to1.Widen(X0to1) != X0to1 {
		t.Errorf("x1to1 | x0to1 should widen to x0to1")
	}
	if X1toN.Widen(X0to1) != X0toN {
		t.Errorf("x1toN | x0to1 should widen to x0toN")
	}
	if X0toN.Tighten(X0to1) != X0to1 {
		t.Errorf("x0toN & x0to1 should tighten to x0to1")
	}
	if !X1to1.Fits(X0toN) {
		t.Errorf("x1to1 should fit x0toN")
	}
	if X0toN.Fits(X1to1) {
		t.Errorf("x0toN should not fit x1to1")
	}
}

func TestFitsLength(t *testing.T) {
	cases := []struct {
		c    Cardinality
		n    int
		want bool
	}{
		{X1to1, 1, true},
		{X1to1, 0, false},
		{X1to1, 2, false},
		{X0to1, 0, true},
		{X0to1, 1, true},
		{X0to1, 2, false},
		{X1toN, 0, false},
		{X1toN, 3, true},
		{X0toN, 0, true},
		{X0toN, 5, true},
	}
	for _, c := range cases {
		if got := c.c.FitsLength(c.n); got != c.want {
			t.Errorf("%s.FitsLength(%d) = %v, want %v", c.c, c.n, got, c.want)
		}
	}
}

func TestString(t *testing.T) {
	for _, c := range []Cardinality{X1to1, X0to1, X1toN, X0toN} {
		if c.String() == "" {
			t.Errorf("empty string for %d", c)
		}
	}
}
