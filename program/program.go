// Package program models the moves being scheduled: move nodes, the
// program operations they belong to and the terminals they connect.
// Scheduling decisions are written into this model.
package program

import (
	"fmt"
	"math"

	"github.com/sarchlab/ttasched/mach"
)

// MoveNode is a schedulable move.
type MoveNode struct {
	ID   int
	Move *Move

	cycle     int
	scheduled bool

	srcPO *ProgramOperation
	dstPO *ProgramOperation
}

// NewMoveNode creates an unscheduled move node.
func NewMoveNode(id int, move *Move) *MoveNode {
	return &MoveNode{ID: id, Move: move}
}

// Cycle returns the cycle of the node. It is only meaningful when the
// node is scheduled.
func (n *MoveNode) Cycle() int {
	return n.cycle
}

// SetCycle places the node in a cycle.
func (n *MoveNode) SetCycle(cycle int) {
	n.cycle = cycle
	n.scheduled = true
}

// Unschedule removes the node from its cycle.
func (n *MoveNode) Unschedule() {
	n.cycle = 0
	n.scheduled = false
}

// Reset unschedules the node and drops the bindings of its port
// terminals, including bindings made before scheduling.
func (n *MoveNode) Reset() {
	n.Unschedule()
	n.Move.Source = n.Move.Source.Unbound()
	n.Move.Destination = n.Move.Destination.Unbound()
}

// IsScheduled returns true if the node is placed.
func (n *MoveNode) IsScheduled() bool {
	return n.scheduled
}

// IsSourceOperation returns true if the node reads a result.
func (n *MoveNode) IsSourceOperation() bool {
	return n.srcPO != nil
}

// IsDestinationOperation returns true if the node writes an operand.
func (n *MoveNode) IsDestinationOperation() bool {
	return n.dstPO != nil
}

// SourceOperation returns the operation whose result the node reads.
func (n *MoveNode) SourceOperation() *ProgramOperation {
	return n.srcPO
}

// DestinationOperation returns the operation whose operand the node writes.
func (n *MoveNode) DestinationOperation() *ProgramOperation {
	return n.dstPO
}

// Guard returns the guard of the move.
func (n *MoveNode) Guard() *Guard {
	return n.Move.Guard
}

// EarliestResultReadCycle returns the first cycle at which the result read
// by the node is available, or math.MaxInt if the trigger of the source
// operation is not placed.
func (n *MoveNode) EarliestResultReadCycle(hwOp *mach.HWOperation) int {
	if n.srcPO == nil {
		return math.MaxInt
	}

	trigger := n.srcPO.TriggeringMove()
	if trigger == nil || !trigger.IsScheduled() {
		return math.MaxInt
	}

	return trigger.Cycle() + hwOp.Latency(n.Move.Source.OperandIndex)
}

// String returns the id, the cycle and the move.
func (n *MoveNode) String() string {
	if n.scheduled {
		return fmt.Sprintf("%d:%s@%d", n.ID, n.Move, n.cycle)
	}

	return fmt.Sprintf("%d:%s", n.ID, n.Move)
}

// ProgramOperation is one execution of an operation: the moves writing
// its operands and the moves reading its results.
type ProgramOperation struct {
	ID        int
	Operation *Operation

	inputs  []*MoveNode
	outputs []*MoveNode
}

// NewProgramOperation creates an operation instance with no moves.
func NewProgramOperation(id int, op *Operation) *ProgramOperation {
	return &ProgramOperation{ID: id, Operation: op}
}

// AddInputNode adds an operand move.
func (po *ProgramOperation) AddInputNode(n *MoveNode) {
	n.dstPO = po
	po.inputs = append(po.inputs, n)
}

// AddOutputNode adds a result move.
func (po *ProgramOperation) AddOutputNode(n *MoveNode) {
	n.srcPO = po
	po.outputs = append(po.outputs, n)
}

// Reset resets every move of the operation.
func (po *ProgramOperation) Reset() {
	for _, n := range po.Moves() {
		n.Reset()
	}
}

// InputMoves returns the operand moves.
func (po *ProgramOperation) InputMoves() []*MoveNode {
	return po.inputs
}

// OutputMoves returns the result moves.
func (po *ProgramOperation) OutputMoves() []*MoveNode {
	return po.outputs
}

// Moves returns operand moves followed by result moves.
func (po *ProgramOperation) Moves() []*MoveNode {
	moves := make([]*MoveNode, 0, len(po.inputs)+len(po.outputs))
	moves = append(moves, po.inputs...)
	moves = append(moves, po.outputs...)

	return moves
}

// InputMove returns the move writing the operand index, or nil.
func (po *ProgramOperation) InputMove(operandIndex int) *MoveNode {
	for _, n := range po.inputs {
		if n.Move.Destination.OperandIndex == operandIndex {
			return n
		}
	}

	return nil
}

// IsComplete returns true if every operand is written and every result is
// read by at least one move.
func (po *ProgramOperation) IsComplete() bool {
	for i := 1; i <= po.Operation.NumInputs; i++ {
		if po.InputMove(i) == nil {
			return false
		}
	}

	for i := 1; i <= po.Operation.NumOutputs; i++ {
		idx := po.Operation.NumInputs + i
		found := false
		for _, n := range po.outputs {
			if n.Move.Source.OperandIndex == idx {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// TriggeringMove returns the operand move bound to a triggering port, or
// nil while operand terminals are abstract.
func (po *ProgramOperation) TriggeringMove() *MoveNode {
	for _, n := range po.inputs {
		if n.Move.Destination.IsTriggering() {
			return n
		}
	}

	return nil
}

// BoundUnits returns the distinct units that moves of the operation,
// other than exclude, are bound to.
func (po *ProgramOperation) BoundUnits(
	exclude *MoveNode,
) []*mach.FunctionUnit {
	var units []*mach.FunctionUnit
	seen := make(map[*mach.FunctionUnit]bool)

	add := func(t Terminal) {
		if !t.IsBound() || seen[t.Unit] {
			return
		}
		seen[t.Unit] = true
		units = append(units, t.Unit)
	}

	for _, n := range po.inputs {
		if n != exclude {
			add(n.Move.Destination)
		}
	}
	for _, n := range po.outputs {
		if n != exclude {
			add(n.Move.Source)
		}
	}

	return units
}

// LatestTriggerWriteCycle returns the last cycle the trigger can be
// written so that every placed result read still sees its result, or
// math.MaxInt if no result read is placed.
func (po *ProgramOperation) LatestTriggerWriteCycle(
	hwOp *mach.HWOperation,
) int {
	latest := math.MaxInt
	for _, n := range po.outputs {
		if !n.IsScheduled() {
			continue
		}

		c := n.Cycle() - hwOp.Latency(n.Move.Source.OperandIndex)
		if c < latest {
			latest = c
		}
	}

	return latest
}

// String returns the operation name and id.
func (po *ProgramOperation) String() string {
	return fmt.Sprintf("%s#%d", po.Operation.Name, po.ID)
}
