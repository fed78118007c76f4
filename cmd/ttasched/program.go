package main

import (
	"github.com/sarchlab/ttasched/ddg"
	"github.com/sarchlab/ttasched/program"
)

// sampleProgram holds the moves of the sample program in the order the
// list scheduler visits them.
type sampleProgram struct {
	graph *ddg.Graph
	next  int
}

func (p *sampleProgram) move(
	src, dst program.Terminal,
	guard *program.Guard,
) *program.MoveNode {
	p.next++
	mv := program.NewMove(src, dst)
	mv.Guard = guard
	n := program.NewMoveNode(p.next, mv)
	p.graph.AddNode(n)

	return n
}

func (p *sampleProgram) operation(op *program.Operation) *program.ProgramOperation {
	p.next++
	return program.NewProgramOperation(p.next, op)
}

// newSampleProgram builds
//
//	r10 = (r1 + r2) * r3
//	r5  = load r4
//	r11 = b0 ? r5 - 1 : r5 ^ 1
//	r12 = return address
//	store r10 at r4
//
// with the ADD result forwarded to the multiplier without a register.
func newSampleProgram() *sampleProgram {
	p := &sampleProgram{graph: ddg.New()}
	b0 := &program.Guard{Register: "b0"}

	add := program.NewOperation("ADD", 2, 1)
	mul := program.NewOperation("MUL", 2, 1)
	ldw := program.NewOperation("LDW", 1, 1)
	sub := program.NewOperation("SUB", 2, 1)
	xor := program.NewOperation("XOR", 2, 1)
	stw := program.NewOperation("STW", 2, 0)

	addPO := p.operation(add)
	mulPO := p.operation(mul)
	a1 := p.move(program.NewRegister("r1"), program.NewAbstractFUPort(add, 1), nil)
	a2 := p.move(program.NewRegister("r2"), program.NewAbstractFUPort(add, 2), nil)
	fwd := p.move(program.NewAbstractFUPort(add, 3), program.NewAbstractFUPort(mul, 1), nil)
	m2 := p.move(program.NewRegister("r3"), program.NewAbstractFUPort(mul, 2), nil)
	mr := p.move(program.NewAbstractFUPort(mul, 3), program.NewRegister("r10"), nil)
	addPO.AddInputNode(a1)
	addPO.AddInputNode(a2)
	addPO.AddOutputNode(fwd)
	mulPO.AddInputNode(fwd)
	mulPO.AddInputNode(m2)
	mulPO.AddOutputNode(mr)
	p.graph.AddEdge(a1, a2, ddg.OperationEdge, 0)
	p.graph.AddEdge(a2, fwd, ddg.OperationEdge, 1)
	p.graph.AddEdge(fwd, m2, ddg.OperationEdge, 0)
	p.graph.AddEdge(m2, mr, ddg.OperationEdge, 3)

	ldwPO := p.operation(ldw)
	l1 := p.move(program.NewRegister("r4"), program.NewAbstractFUPort(ldw, 1), nil)
	lr := p.move(program.NewAbstractFUPort(ldw, 2), program.NewRegister("r5"), nil)
	ldwPO.AddInputNode(l1)
	ldwPO.AddOutputNode(lr)
	p.graph.AddEdge(l1, lr, ddg.OperationEdge, 3)

	for _, branch := range []struct {
		op    *program.Operation
		guard *program.Guard
	}{
		{sub, b0},
		{xor, b0.Not()},
	} {
		po := p.operation(branch.op)
		o1 := p.move(program.NewRegister("r5"),
			program.NewAbstractFUPort(branch.op, 1), branch.guard)
		o2 := p.move(program.NewImmediate(1),
			program.NewAbstractFUPort(branch.op, 2), branch.guard)
		res := p.move(program.NewAbstractFUPort(branch.op, 3),
			program.NewRegister("r11"), branch.guard)
		po.AddInputNode(o1)
		po.AddInputNode(o2)
		po.AddOutputNode(res)
		p.graph.AddEdge(lr, o1, ddg.RAW, 1)
		p.graph.AddEdge(o1, o2, ddg.OperationEdge, 0)
		p.graph.AddEdge(o2, res, ddg.OperationEdge, 1)
	}

	p.move(program.NewReturnAddress(), program.NewRegister("r12"), nil)

	stwPO := p.operation(stw)
	s2 := p.move(program.NewRegister("r10"), program.NewAbstractFUPort(stw, 2), nil)
	s1 := p.move(program.NewRegister("r4"), program.NewAbstractFUPort(stw, 1), nil)
	stwPO.AddInputNode(s2)
	stwPO.AddInputNode(s1)
	p.graph.AddEdge(mr, s2, ddg.RAW, 1)
	p.graph.AddEdge(s2, s1, ddg.OperationEdge, 0)

	return p
}
