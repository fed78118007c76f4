package program

import (
	"fmt"
)

// Operation is the architectural description of an operation.
type Operation struct {
	Name       string
	NumInputs  int
	NumOutputs int
}

// NewOperation creates an operation description.
func NewOperation(name string, inputs, outputs int) *Operation {
	return &Operation{Name: name, NumInputs: inputs, NumOutputs: outputs}
}

// IsInput returns true if the operand index names an input.
func (o *Operation) IsInput(operandIndex int) bool {
	return operandIndex >= 1 && operandIndex <= o.NumInputs
}

// Guard predicates a move on a guard register. A nil *Guard means the move
// is unconditional.
type Guard struct {
	Register string
	Inverted bool
}

// IsOpposite returns true if the guards read the same register with
// opposite polarity.
func (g *Guard) IsOpposite(other *Guard) bool {
	if g == nil || other == nil {
		return false
	}

	return g.Register == other.Register && g.Inverted != other.Inverted
}

// Not returns the guard with the opposite polarity.
func (g *Guard) Not() *Guard {
	return &Guard{Register: g.Register, Inverted: !g.Inverted}
}

// String returns "?reg" or "!reg".
func (g *Guard) String() string {
	if g == nil {
		return ""
	}
	if g.Inverted {
		return "!" + g.Register
	}

	return "?" + g.Register
}

// AnnotationKind identifies unit restrictions attached to moves.
type AnnotationKind int

const (
	// AnnCandidateUnitSrc restricts the unit read by the move.
	AnnCandidateUnitSrc AnnotationKind = iota
	// AnnCandidateUnitDst restricts the unit written by the move.
	AnnCandidateUnitDst
	// AnnAllowedUnitSrc further restricts the unit read by the move.
	AnnAllowedUnitSrc
	// AnnAllowedUnitDst further restricts the unit written by the move.
	AnnAllowedUnitDst
	// AnnRejectedUnitSrc excludes units from being read by the move.
	AnnRejectedUnitSrc
	// AnnRejectedUnitDst excludes units from being written by the move.
	AnnRejectedUnitDst
)

// Move is a data transport from a source terminal to a destination
// terminal, optionally guarded.
type Move struct {
	Source      Terminal
	Destination Terminal
	Guard       *Guard

	annotations map[AnnotationKind][]string
}

// NewMove creates an unconditional move.
func NewMove(src, dst Terminal) *Move {
	return &Move{Source: src, Destination: dst}
}

// IsUnconditional returns true if the move has no guard.
func (m *Move) IsUnconditional() bool {
	return m.Guard == nil
}

// Annotate attaches a unit name under the annotation kind.
func (m *Move) Annotate(kind AnnotationKind, unit string) {
	if m.annotations == nil {
		m.annotations = make(map[AnnotationKind][]string)
	}
	m.annotations[kind] = append(m.annotations[kind], unit)
}

// Annotations returns the unit names attached under the kind.
func (m *Move) Annotations(kind AnnotationKind) []string {
	return m.annotations[kind]
}

// HasAnnotations returns true if any unit is attached under the kind.
func (m *Move) HasAnnotations(kind AnnotationKind) bool {
	return len(m.annotations[kind]) > 0
}

// String returns "src -> dst" with the guard prefixed.
func (m *Move) String() string {
	s := fmt.Sprintf("%s -> %s", m.Source, m.Destination)
	if m.Guard != nil {
		return m.Guard.String() + " " + s
	}

	return s
}
