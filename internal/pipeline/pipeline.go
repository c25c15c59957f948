// Package pipeline implements the vectorized execution primitives of
// spec.md §4.1 and the peephole optimizer of §4.1.1. A Primitive is a
// signature-annotated, vectorized transform: the execution unit the
// assembler composes query combinators into.
//
// The primitive family mirrors funvibe-funxy's internal/pipeline.Pipeline
// (a sequence of Processor stages run over a shared context) generalized
// from "stage does whatever it wants to a *PipelineContext" into "stage is
// a pure, signature-checked vector transform" — the teacher's run-the-
// stages-in-order shape survives in ChainOf.Run (primitives.go).
package pipeline

import (
	"fmt"

	"github.com/dataknots/dataknots/internal/signature"
	"github.com/dataknots/dataknots/internal/vector"
)

// Primitive is a vectorized transform with a fixed signature.
type Primitive interface {
	Signature() signature.Signature
	Run(in vector.Vector) (vector.Vector, error)
}

// Error is raised when a primitive's runtime contract is violated — an
// input vector that doesn't fit the declared source shape, or a scalar
// function application failure (spec.md §7 "function application
// failure").
type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("pipeline: %s: %s", e.Op, e.Msg) }

func errf(op, format string, args ...interface{}) error {
	return &Error{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// base embeds the signature every primitive carries, so concrete
// primitives only need to implement Run.
type base struct {
	sig signature.Signature
}

func (b base) Signature() signature.Signature { return b.sig }
