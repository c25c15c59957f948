package shape

import (
	"reflect"
	"testing"

	"github.com/dataknots/dataknots/internal/cardinality"
)

var intType = reflect.TypeOf(0)
var strType = reflect.TypeOf("")

func TestDecoratorsRoundTrip(t *testing.T) {
	base := BlockOf{Elem: ValueOf{Type: intType}, Card: cardinality.X1toN}
	flowed := AsFlow(base)

	if !IsFlow(flowed) {
		t.Fatalf("expected flow decorator")
	}
	if IsScope(flowed) {
		t.Fatalf("did not expect scope decorator")
	}
	if StripFlow(flowed) != base {
		t.Fatalf("StripFlow should recover the original BlockOf")
	}

	labeled := WithLabel("x", flowed)
	if lbl, ok := Label(labeled); !ok || lbl != "x" {
		t.Fatalf("expected label x, got %v %v", lbl, ok)
	}
	if !IsFlow(labeled) {
		t.Fatalf("flow decorator should survive past an outer label")
	}

	stripped := WithLabel("", labeled)
	if _, ok := Label(stripped); ok {
		t.Fatalf("expected label to be stripped")
	}
}

func TestScopeWrapping(t *testing.T) {
	subject := BlockOf{Elem: ValueOf{Type: intType}, Card: cardinality.X1to1}
	ctx := TupleOf{Labels: []string{"k"}, Columns: []Shape{ValueOf{Type: strType}}}
	pair := TupleOf{Columns: []Shape{subject, ctx}}
	scoped := AsScope(pair)
	flowed := AsFlow(scoped)

	if !IsScope(flowed) {
		t.Fatalf("expected scope decorator under flow")
	}
	if !IsFlow(flowed) {
		t.Fatalf("expected flow decorator")
	}
}

func TestFlowElem(t *testing.T) {
	base := BlockOf{Elem: ValueOf{Type: intType}, Card: cardinality.X0toN}
	flowed := AsFlow(base)
	elem, ok := FlowElem(flowed)
	if !ok {
		t.Fatalf("expected flow element")
	}
	if elem != (ValueOf{Type: intType}) {
		t.Fatalf("unexpected flow element: %v", elem)
	}
}

func TestFits(t *testing.T) {
	regular := BlockOf{Elem: ValueOf{Type: intType}, Card: cardinality.X1to1}
	optional := BlockOf{Elem: ValueOf{Type: intType}, Card: cardinality.X0to1}
	plural := BlockOf{Elem: ValueOf{Type: intType}, Card: cardinality.X1toN}

	if !Fits(regular, optional) {
		t.Errorf("x1to1 should fit x0to1")
	}
	if Fits(optional, regular) {
		t.Errorf("x0to1 should not fit x1to1")
	}
	if !Fits(regular, plural) {
		t.Errorf("x1to1 should fit x1toN")
	}
}

func TestFitsTuple(t *testing.T) {
	a := TupleOf{Labels: []string{"x", "y"}, Columns: []Shape{ValueOf{Type: intType}, ValueOf{Type: strType}}}
	b := TupleOf{Labels: []string{"x", "y"}, Columns: []Shape{ValueOf{Type: intType}, ValueOf{Type: strType}}}
	if !Fits(a, b) {
		t.Errorf("identical tuples should fit")
	}
	c := TupleOf{Labels: []string{"x", "z"}, Columns: []Shape{ValueOf{Type: intType}, ValueOf{Type: strType}}}
	if Fits(a, c) {
		t.Errorf("tuples with different labels should not fit")
	}
}

func TestBoundWidensCardinality(t *testing.T) {
	a := BlockOf{Elem: ValueOf{Type: intType}, Card: cardinality.X1to1}
	b := BlockOf{Elem: ValueOf{Type: intType}, Card: cardinality.X0to1}
	got := Bound(a, b).(BlockOf)
	if got.Card != cardinality.X0to1 {
		t.Errorf("bound cardinality = %s, want x0to1", got.Card)
	}
}

func TestOrdinalLabel(t *testing.T) {
	if OrdinalLabel(0) != "#A" {
		t.Errorf("OrdinalLabel(0) = %s, want #A", OrdinalLabel(0))
	}
	if OrdinalLabel(25) != "#Z" {
		t.Errorf("OrdinalLabel(25) = %s, want #Z", OrdinalLabel(25))
	}
}

func TestColumnIndexFallsBackToOrdinal(t *testing.T) {
	tup := TupleOf{Columns: []Shape{ValueOf{Type: intType}, ValueOf{Type: strType}}}
	idx, ok := tup.ColumnIndex("#B")
	if !ok || idx != 1 {
		t.Errorf("expected ordinal lookup #B -> 1, got %d %v", idx, ok)
	}
}
