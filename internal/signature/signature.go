// Package signature pairs a pipeline's source and target shapes, the
// minimal piece of static information every primitive carries (spec.md
// §4.1).
package signature

import (
	"fmt"

	"github.com/dataknots/dataknots/internal/shape"
)

// Signature is the (source shape -> target shape) pair attached to a
// pipeline primitive.
type Signature struct {
	Source shape.Shape
	Target shape.Shape
}

func (s Signature) String() string {
	return fmt.Sprintf("%s -> %s", s.Source, s.Target)
}

// Of is a small constructor to keep call sites terse.
func Of(source, target shape.Shape) Signature {
	return Signature{Source: source, Target: target}
}
