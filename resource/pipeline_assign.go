package resource

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
)

// AssignDestination records the operand move node writing its port in the
// cycle. The node must already be placed in the cycle. A trigger also
// reserves the pipeline and the result ports of its operation.
func (ep *ExecutionPipelineResource) AssignDestination(
	cycle int,
	node *program.MoveNode,
) error {
	po, hwOp, idx, port, err := ep.resolveOperand(node)
	if err != nil {
		return err
	}
	if err := ep.checkAssignable(cycle, node, po, hwOp); err != nil {
		return err
	}
	if _, assigned := ep.operands[node]; assigned {
		return errors.Wrapf(ErrWrongUsage,
			"%s: %v is already assigned", ep.Name(), node)
	}

	st := ep.state(po, hwOp)
	if port.IsTriggering() && st.trigger != nil {
		return errors.Wrapf(ErrWrongUsage,
			"%s: %v is already triggered by %v", ep.Name(), po, st.trigger)
	}

	rec := &operandRecord{
		po:      po,
		hwOp:    hwOp,
		port:    port,
		index:   idx,
		cycle:   cycle,
		trigger: port.IsTriggering(),
	}
	ep.operands[node] = rec
	ep.portTable(ep.operandWritten, port).add(ep.InstructionIndex(cycle), node)

	if rec.trigger {
		ep.assignTrigger(cycle, node, st)
	} else {
		st.operands = append(st.operands, node)
		if st.trigger != nil {
			ep.addSpan(port, cycle, st.triggerCycle+hwOp.Slack(idx), node)
		}
	}

	ep.mutated(HookPosAssign, node, cycle)

	return nil
}

func (ep *ExecutionPipelineResource) assignTrigger(
	cycle int,
	node *program.MoveNode,
	st *opState,
) {
	hwOp := st.hwOp
	st.trigger = node
	st.triggerCycle = cycle

	for _, u := range hwOp.Usages() {
		table := ep.elementTable(u.Element)
		for d := 0; d < u.Duration; d++ {
			table.add(ep.InstructionIndex(cycle+u.Cycle+d), node)
		}
	}

	for _, n := range st.operands {
		rec := ep.operands[n]
		ep.addSpan(rec.port, rec.cycle, cycle+hwOp.Slack(rec.index), n)
	}

	po := ep.operands[node].po
	for _, n := range st.results {
		rec := ep.results[n]
		ep.resultPortTable(ep.resultWritten, rec.port).
			remove(ep.InstructionIndex(rec.cycle), po)
	}
	for _, k := range hwOp.OutputIndices() {
		ep.resultPortTable(ep.resultWritten, hwOp.Port(k)).
			add(ep.InstructionIndex(cycle+hwOp.Latency(k)), po)
	}
}

// UnassignDestination reverts AssignDestination.
func (ep *ExecutionPipelineResource) UnassignDestination(
	cycle int,
	node *program.MoveNode,
) error {
	rec, ok := ep.operands[node]
	if !ok {
		return errors.Wrapf(ErrWrongUsage,
			"%s: %v is not assigned", ep.Name(), node)
	}
	if rec.cycle != cycle {
		return errors.Wrapf(ErrWrongUsage,
			"%s: %v is assigned in cycle %d, not %d",
			ep.Name(), node, rec.cycle, cycle)
	}

	st := ep.ops[rec.po]
	if rec.trigger {
		ep.unassignTrigger(cycle, node, st)
	} else {
		if st.trigger != nil {
			ep.removeSpan(rec.port, cycle,
				st.triggerCycle+rec.hwOp.Slack(rec.index), node)
		}
		st.operands = removeNode(st.operands, node)
	}

	ep.operandWritten[rec.port].remove(ep.InstructionIndex(cycle), node)
	delete(ep.operands, node)
	ep.dropState(rec.po)

	ep.mutated(HookPosUnassign, node, cycle)

	return nil
}

func (ep *ExecutionPipelineResource) unassignTrigger(
	cycle int,
	node *program.MoveNode,
	st *opState,
) {
	hwOp := st.hwOp
	po := ep.operands[node].po

	for _, k := range hwOp.OutputIndices() {
		ep.resultWritten[hwOp.Port(k)].
			remove(ep.InstructionIndex(cycle+hwOp.Latency(k)), po)
	}
	for _, n := range st.results {
		rec := ep.results[n]
		ep.resultPortTable(ep.resultWritten, rec.port).
			add(ep.InstructionIndex(rec.cycle), po)
	}

	for _, n := range st.operands {
		rec := ep.operands[n]
		ep.removeSpan(rec.port, rec.cycle, cycle+hwOp.Slack(rec.index), n)
	}

	for _, u := range hwOp.Usages() {
		table := ep.elementTable(u.Element)
		for d := 0; d < u.Duration; d++ {
			table.remove(ep.InstructionIndex(cycle+u.Cycle+d), node)
		}
	}

	st.trigger = nil
	st.triggerCycle = 0
}

// AssignSource records the result move node reading its port in the
// cycle. The node must already be placed in the cycle.
func (ep *ExecutionPipelineResource) AssignSource(
	cycle int,
	node *program.MoveNode,
) error {
	po, hwOp, idx, port, err := ep.resolveResult(node)
	if err != nil {
		return err
	}
	if err := ep.checkAssignable(cycle, node, po, hwOp); err != nil {
		return err
	}
	if _, assigned := ep.results[node]; assigned {
		return errors.Wrapf(ErrWrongUsage,
			"%s: %v is already assigned", ep.Name(), node)
	}

	st := ep.state(po, hwOp)
	ep.results[node] = &resultRecord{
		po:    po,
		hwOp:  hwOp,
		port:  port,
		index: idx,
		cycle: cycle,
	}
	st.results = append(st.results, node)

	row := ep.InstructionIndex(cycle)
	ep.resultPortTable(ep.resultRead, port).add(row, po)
	if st.trigger == nil {
		ep.resultPortTable(ep.resultWritten, port).add(row, po)
	}

	ep.mutated(HookPosAssign, node, cycle)

	return nil
}

// UnassignSource reverts AssignSource.
func (ep *ExecutionPipelineResource) UnassignSource(
	cycle int,
	node *program.MoveNode,
) error {
	rec, ok := ep.results[node]
	if !ok {
		return errors.Wrapf(ErrWrongUsage,
			"%s: %v is not assigned", ep.Name(), node)
	}
	if rec.cycle != cycle {
		return errors.Wrapf(ErrWrongUsage,
			"%s: %v is assigned in cycle %d, not %d",
			ep.Name(), node, rec.cycle, cycle)
	}

	st := ep.ops[rec.po]
	row := ep.InstructionIndex(cycle)
	if st.trigger == nil {
		ep.resultWritten[rec.port].remove(row, rec.po)
	}
	ep.resultRead[rec.port].remove(row, rec.po)

	st.results = removeNode(st.results, node)
	delete(ep.results, node)
	ep.dropState(rec.po)

	ep.mutated(HookPosUnassign, node, cycle)

	return nil
}

func (ep *ExecutionPipelineResource) checkAssignable(
	cycle int,
	node *program.MoveNode,
	po *program.ProgramOperation,
	hwOp *mach.HWOperation,
) error {
	if hwOp == nil {
		return errors.Wrapf(ErrWrongUsage,
			"%s does not implement %s", ep.Name(), po.Operation.Name)
	}
	if !node.IsScheduled() || node.Cycle() != cycle {
		return errors.Wrapf(ErrWrongUsage,
			"%s: %v is not placed in cycle %d", ep.Name(), node, cycle)
	}

	return nil
}

func (ep *ExecutionPipelineResource) state(
	po *program.ProgramOperation,
	hwOp *mach.HWOperation,
) *opState {
	st, ok := ep.ops[po]
	if !ok {
		st = &opState{hwOp: hwOp}
		ep.ops[po] = st
	}

	return st
}

func (ep *ExecutionPipelineResource) dropState(po *program.ProgramOperation) {
	if st, ok := ep.ops[po]; ok && st.empty() {
		delete(ep.ops, po)
	}
}

// addSpan marks the port register as holding the operand of node after
// its write until its use.
func (ep *ExecutionPipelineResource) addSpan(
	port *mach.Port,
	write, use int,
	node *program.MoveNode,
) {
	t := ep.portTable(ep.operandUsed, port)
	for c := write + 1; c <= use; c++ {
		t.add(ep.InstructionIndex(c), node)
	}
}

func (ep *ExecutionPipelineResource) removeSpan(
	port *mach.Port,
	write, use int,
	node *program.MoveNode,
) {
	t := ep.operandUsed[port]
	for c := write + 1; c <= use; c++ {
		t.remove(ep.InstructionIndex(c), node)
	}
}

func removeNode(nodes []*program.MoveNode, n *program.MoveNode) []*program.MoveNode {
	for i, x := range nodes {
		if x == n {
			return append(nodes[:i], nodes[i+1:]...)
		}
	}

	panic("move node not in list")
}
