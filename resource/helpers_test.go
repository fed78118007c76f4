package resource_test

import (
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
	"github.com/sarchlab/ttasched/resource"
)

// twoInputOp is a program operation with two operands and one result,
// bound to a hardware operation: operand 1 is written by operand, the
// triggering operand 2 by trigger and result 3 is read by result.
type twoInputOp struct {
	po      *program.ProgramOperation
	operand *program.MoveNode
	trigger *program.MoveNode
	result  *program.MoveNode
}

func newTwoInputOp(
	id int,
	op *program.Operation,
	hwOp *mach.HWOperation,
	guard *program.Guard,
) twoInputOp {
	move := func(src, dst program.Terminal) *program.Move {
		mv := program.NewMove(src, dst)
		mv.Guard = guard
		return mv
	}

	o := twoInputOp{
		po: program.NewProgramOperation(id, op),
		operand: program.NewMoveNode(id*10+1, move(
			program.NewRegister("r1"),
			program.NewBoundFUPort(op, hwOp, 1))),
		trigger: program.NewMoveNode(id*10+2, move(
			program.NewRegister("r2"),
			program.NewBoundFUPort(op, hwOp, 2))),
		result: program.NewMoveNode(id*10+3, move(
			program.NewBoundFUPort(op, hwOp, 3),
			program.NewRegister("r3"))),
	}
	o.po.AddInputNode(o.operand)
	o.po.AddInputNode(o.trigger)
	o.po.AddOutputNode(o.result)

	return o
}

func canWrite(
	ep *resource.ExecutionPipelineResource,
	cycle int,
	n *program.MoveNode,
) bool {
	ok, err := ep.CanAssignDestination(cycle, n, n.Move.Destination.IsTriggering())
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	return ok
}

func canRead(
	ep *resource.ExecutionPipelineResource,
	cycle int,
	n *program.MoveNode,
) bool {
	ok, err := ep.CanAssignSource(cycle, n, nil)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	return ok
}

func write(
	ep *resource.ExecutionPipelineResource,
	cycle int,
	n *program.MoveNode,
) {
	n.SetCycle(cycle)
	ExpectWithOffset(1, ep.AssignDestination(cycle, n)).To(Succeed())
}

func read(
	ep *resource.ExecutionPipelineResource,
	cycle int,
	n *program.MoveNode,
) {
	n.SetCycle(cycle)
	ExpectWithOffset(1, ep.AssignSource(cycle, n)).To(Succeed())
}
