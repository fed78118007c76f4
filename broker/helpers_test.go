package broker_test

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ttasched/program"
)

type binaryOp struct {
	po  *program.ProgramOperation
	in1 *program.MoveNode
	in2 *program.MoveNode
	out *program.MoveNode
}

type programBuilder struct {
	next int
}

func (b *programBuilder) id() int {
	b.next++
	return b.next
}

func (b *programBuilder) node(src, dst program.Terminal) *program.MoveNode {
	return program.NewMoveNode(b.id(), program.NewMove(src, dst))
}

// binary builds r1 -> op.1, r2 -> op.2 and op.3 -> r3.
func (b *programBuilder) binary(op *program.Operation) binaryOp {
	o := binaryOp{
		po: program.NewProgramOperation(b.id(), op),
		in1: b.node(program.NewRegister("r1"),
			program.NewAbstractFUPort(op, 1)),
		in2: b.node(program.NewRegister("r2"),
			program.NewAbstractFUPort(op, 2)),
		out: b.node(program.NewAbstractFUPort(op, 3),
			program.NewRegister("r3")),
	}
	o.po.AddInputNode(o.in1)
	o.po.AddInputNode(o.in2)
	o.po.AddOutputNode(o.out)

	return o
}

func (o binaryOp) guard(g *program.Guard) binaryOp {
	for _, n := range o.po.Moves() {
		n.Move.Guard = g
	}

	return o
}

type countingHook struct {
	counts map[*sim.HookPos]int
}

func newCountingHook() *countingHook {
	return &countingHook{counts: make(map[*sim.HookPos]int)}
}

func (h *countingHook) Func(ctx sim.HookCtx) {
	h.counts[ctx.Pos]++
}

// orderHook records the names of the brokers that fire a hook position.
type orderHook struct {
	pos   *sim.HookPos
	names []string
}

func (h *orderHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != h.pos {
		return
	}

	h.names = append(h.names, ctx.Domain.(interface{ Name() string }).Name())
}
