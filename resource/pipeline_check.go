package resource

import (
	"math"

	"github.com/pkg/errors"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
)

// placement is a move that is not yet assigned but should be taken into
// account when computing the trigger window.
type placement struct {
	index int
	cycle int
	input bool
	port  *mach.Port
}

// CanAssignDestination returns true if the operand move node can write its
// port in the cycle. triggers tells whether the port the broker picked is
// the triggering one.
func (ep *ExecutionPipelineResource) CanAssignDestination(
	cycle int,
	node *program.MoveNode,
	triggers bool,
) (bool, error) {
	po, hwOp, idx, port, err := ep.resolveOperand(node)
	if err != nil {
		return false, err
	}
	if hwOp == nil {
		return ep.reject(node, cycle, "operation not supported"), nil
	}
	if _, assigned := ep.operands[node]; assigned {
		return ep.reject(node, cycle, "already assigned"), nil
	}
	if port.IsTriggering() != triggers {
		return false, errors.Wrapf(ErrWrongUsage,
			"%s: port %s triggering mismatch for %v", ep.Name(), port, node)
	}

	if triggers {
		return ep.canAssignTrigger(cycle, node, po, hwOp, port), nil
	}

	return ep.canAssignOperand(cycle, node, po, hwOp, idx, port), nil
}

func (ep *ExecutionPipelineResource) canAssignOperand(
	cycle int,
	node *program.MoveNode,
	po *program.ProgramOperation,
	hwOp *mach.HWOperation,
	idx int,
	port *mach.Port,
) bool {
	row := ep.InstructionIndex(cycle)
	if ep.nodeRowConflict(ep.operandWritten[port], row, node, cycle) {
		return ep.reject(node, cycle, "operand port already written")
	}
	if ep.nodeRowConflict(ep.operandUsed[port], row, node, cycle) {
		return ep.reject(node, cycle, "would overwrite a waiting operand")
	}

	st := ep.ops[po]
	if st != nil && st.trigger != nil {
		use := st.triggerCycle + hwOp.Slack(idx)
		if !ep.operandTimingOK(cycle, use, port) {
			return ep.reject(node, cycle, "operand timing", "use", use)
		}
		if ep.spanConflict(port, cycle, use, node) {
			return ep.reject(node, cycle, "operand overwritten before use",
				"use", use)
		}

		return true
	}

	lo, hi := ep.triggerBounds(po, hwOp, &placement{
		index: idx,
		cycle: cycle,
		input: true,
		port:  port,
	})
	if lo > hi {
		return ep.reject(node, cycle, "no legal trigger cycle",
			"lo", lo, "hi", hi)
	}

	return true
}

func (ep *ExecutionPipelineResource) canAssignTrigger(
	cycle int,
	node *program.MoveNode,
	po *program.ProgramOperation,
	hwOp *mach.HWOperation,
	port *mach.Port,
) bool {
	st := ep.ops[po]
	if st != nil && st.trigger != nil {
		return ep.reject(node, cycle, "operation already triggered")
	}

	lo, hi := ep.triggerBounds(po, hwOp, nil)
	if latest := po.LatestTriggerWriteCycle(hwOp); latest < hi {
		hi = latest
	}
	if cycle < lo {
		return ep.reject(node, cycle, "trigger too early", "earliest", lo)
	}
	if cycle > hi {
		return ep.reject(node, cycle, "trigger too late", "latest", hi)
	}

	row := ep.InstructionIndex(cycle)
	if ep.nodeRowConflict(ep.operandWritten[port], row, node, cycle) {
		return ep.reject(node, cycle, "trigger port already written")
	}
	if ep.nodeRowConflict(ep.operandUsed[port], row, node, cycle) {
		return ep.reject(node, cycle, "would overwrite a waiting operand")
	}

	if st != nil {
		for _, n := range st.operands {
			rec := ep.operands[n]
			use := cycle + hwOp.Slack(rec.index)
			if ep.spanConflict(rec.port, rec.cycle, use, n) {
				return ep.reject(node, cycle, "operand overwritten before use",
					"operand", n.String())
			}
		}
	}

	if !ep.pipelineFree(cycle, node, hwOp) {
		return false
	}

	for _, k := range hwOp.OutputIndices() {
		if !ep.resultWriteFree(cycle, node, po, hwOp, k, st) {
			return false
		}
	}

	return true
}

// pipelineFree checks the whole reservation window of the operation
// template. A row claimed twice by the same trigger wraps around the
// initiation interval and conflicts with the next iteration.
func (ep *ExecutionPipelineResource) pipelineFree(
	cycle int,
	node *program.MoveNode,
	hwOp *mach.HWOperation,
) bool {
	claimed := make(map[string]map[int]bool)

	for _, u := range hwOp.Usages() {
		table := ep.elementTable(u.Element)
		if claimed[u.Element] == nil {
			claimed[u.Element] = make(map[int]bool)
		}

		for d := 0; d < u.Duration; d++ {
			c := cycle + u.Cycle + d
			row := ep.InstructionIndex(c)
			if claimed[u.Element][row] {
				return ep.reject(node, cycle, "pipeline overlaps next iteration",
					"element", u.Element)
			}
			claimed[u.Element][row] = true

			if ep.nodeRowConflict(table, row, node, cycle) {
				return ep.reject(node, cycle, "pipeline element busy",
					"element", u.Element, "at", c)
			}
		}
	}

	return true
}

// resultWriteFree checks that the result written by a trigger in cycle
// clobbers no result waiting to be read, and that no other result
// clobbers the already placed reads of this one.
func (ep *ExecutionPipelineResource) resultWriteFree(
	cycle int,
	node *program.MoveNode,
	po *program.ProgramOperation,
	hwOp *mach.HWOperation,
	index int,
	st *opState,
) bool {
	port := hwOp.Port(index)
	ready := cycle + hwOp.Latency(index)

	if ep.resultRowConflict(ep.resultWritten[port],
		ep.InstructionIndex(ready), po, node, cycle) {
		return ep.reject(node, cycle, "result port written", "ready", ready)
	}
	if ep.inOtherReadWindow(port, ready, po, node, cycle) {
		return ep.reject(node, cycle, "would overwrite a waiting result",
			"ready", ready)
	}

	if st == nil {
		return true
	}

	for _, n := range st.results {
		rec := ep.results[n]
		if rec.index != index {
			continue
		}
		if ep.resultOverwritten(port, ready, rec.cycle, po, node, cycle) {
			return ep.reject(node, cycle, "result overwritten before read",
				"read", rec.cycle)
		}
	}

	return true
}

// CanAssignSource returns true if the result move node can read its port
// in the cycle. resultPort, if not nil, must be the port the move reads.
func (ep *ExecutionPipelineResource) CanAssignSource(
	cycle int,
	node *program.MoveNode,
	resultPort *mach.Port,
) (bool, error) {
	po, hwOp, idx, port, err := ep.resolveResult(node)
	if err != nil {
		return false, err
	}
	if hwOp == nil {
		return ep.reject(node, cycle, "operation not supported"), nil
	}
	if resultPort != nil && resultPort != port {
		return false, errors.Wrapf(ErrWrongUsage,
			"%s: %v reads %s, not %s", ep.Name(), node, port, resultPort)
	}
	if _, assigned := ep.results[node]; assigned {
		return ep.reject(node, cycle, "already assigned"), nil
	}

	row := ep.InstructionIndex(cycle)
	if ep.resultRowConflict(ep.resultRead[port], row, po, node, cycle) {
		return ep.reject(node, cycle, "result port read by another operation"), nil
	}
	if ep.inOtherReadWindow(port, cycle, po, node, cycle) {
		return ep.reject(node, cycle, "port holds another result"), nil
	}

	st := ep.ops[po]
	if st != nil && st.trigger != nil {
		ready := st.triggerCycle + hwOp.Latency(idx)
		if cycle < ready {
			return ep.reject(node, cycle, "result not ready", "ready", ready), nil
		}
		if port.NoRegister() && cycle != ready {
			return ep.reject(node, cycle, "result gone from unbuffered port",
				"ready", ready), nil
		}
		if ep.ii > 0 && cycle-ready >= ep.ii {
			return ep.reject(node, cycle, "result overwritten by next iteration",
				"ready", ready), nil
		}
		if ep.resultOverwritten(port, ready, cycle, po, node, cycle) {
			return ep.reject(node, cycle, "result overwritten before read",
				"ready", ready), nil
		}

		return true, nil
	}

	lo, hi := ep.triggerBounds(po, hwOp, &placement{
		index: idx,
		cycle: cycle,
		port:  port,
	})
	if lo > hi {
		return ep.reject(node, cycle, "no legal trigger cycle",
			"lo", lo, "hi", hi), nil
	}
	if ep.resultRowConflict(ep.resultWritten[port], row, po, node, cycle) {
		return ep.reject(node, cycle, "result port written"), nil
	}

	return true, nil
}

// EarliestResultReadCycle returns the cycle the result read by node is
// ready, or math.MaxInt if its operation is not triggered on this unit.
func (ep *ExecutionPipelineResource) EarliestResultReadCycle(
	node *program.MoveNode,
) int {
	po := node.SourceOperation()
	if po == nil {
		return math.MaxInt
	}

	st := ep.ops[po]
	if st == nil || st.trigger == nil {
		return math.MaxInt
	}

	return st.triggerCycle + st.hwOp.Latency(node.Move.Source.OperandIndex)
}

// triggerBounds returns the range of trigger cycles that keeps every
// assigned move of the operation, plus extra, correctly timed.
func (ep *ExecutionPipelineResource) triggerBounds(
	po *program.ProgramOperation,
	hwOp *mach.HWOperation,
	extra *placement,
) (lo, hi int) {
	lo, hi = math.MinInt, math.MaxInt

	apply := func(p placement) {
		if p.input {
			base := p.cycle - hwOp.Slack(p.index)
			lo = max(lo, base)
			if p.port.NoRegister() {
				hi = min(hi, base)
			}
			if ep.ii > 0 {
				hi = min(hi, base+ep.ii-1)
			}

			return
		}

		base := p.cycle - hwOp.Latency(p.index)
		hi = min(hi, base)
		if p.port.NoRegister() {
			lo = max(lo, base)
		}
		if ep.ii > 0 {
			lo = max(lo, base-ep.ii+1)
		}
	}

	if st := ep.ops[po]; st != nil {
		for _, n := range st.operands {
			rec := ep.operands[n]
			apply(placement{
				index: rec.index, cycle: rec.cycle, input: true, port: rec.port,
			})
		}
		for _, n := range st.results {
			rec := ep.results[n]
			apply(placement{index: rec.index, cycle: rec.cycle, port: rec.port})
		}
	}
	if extra != nil {
		apply(*extra)
	}

	lo = max(lo, 0)

	return lo, hi
}

func (ep *ExecutionPipelineResource) operandTimingOK(
	write, use int,
	port *mach.Port,
) bool {
	if write > use {
		return false
	}
	if port.NoRegister() && write != use {
		return false
	}
	if ep.ii > 0 && use-write >= ep.ii {
		return false
	}

	return true
}

// nodeRowConflict returns true if node cannot join the cell.
func (ep *ExecutionPipelineResource) nodeRowConflict(
	t nodeTable,
	row int,
	node *program.MoveNode,
	cycle int,
) bool {
	s := t.at(row)
	if s == nil {
		return false
	}
	if s.full() {
		return true
	}

	for _, occ := range s.occupants() {
		if !ep.exclusiveMoves(occ, node, cycle) {
			return true
		}
	}

	return false
}

// resultRowConflict returns true if the operation of node cannot join the
// result cell.
func (ep *ExecutionPipelineResource) resultRowConflict(
	t resultTable,
	row int,
	po *program.ProgramOperation,
	node *program.MoveNode,
	cycle int,
) bool {
	s, ok := t[row]
	if !ok {
		return false
	}

	others := s.others(po)
	if len(others) == 0 {
		return false
	}
	if len(others) == s.n && s.n == 2 {
		return true
	}

	for _, o := range others {
		if !ep.exclusiveWithOperation(o, node, cycle) {
			return true
		}
	}

	return false
}

// spanConflict returns true if anyone else writes the port, or keeps a
// value in it, while the operand written in cycle write waits to be used.
func (ep *ExecutionPipelineResource) spanConflict(
	port *mach.Port,
	write, use int,
	node *program.MoveNode,
) bool {
	if ep.ii > 0 && use-write >= ep.ii {
		return true
	}

	for c := write + 1; c <= use; c++ {
		row := ep.InstructionIndex(c)
		if ep.nodeRowConflict(ep.operandWritten[port], row, node, write) {
			return true
		}
		if ep.nodeRowConflict(ep.operandUsed[port], row, node, write) {
			return true
		}
	}

	return false
}

// resultOverwritten returns true if another operation writes the result
// port in (ready, read].
func (ep *ExecutionPipelineResource) resultOverwritten(
	port *mach.Port,
	ready, read int,
	po *program.ProgramOperation,
	node *program.MoveNode,
	cycle int,
) bool {
	if ep.ii > 0 && read-ready >= ep.ii {
		return true
	}

	t := ep.resultWritten[port]
	for c := ready + 1; c <= read; c++ {
		for _, o := range t.others(ep.InstructionIndex(c), po) {
			if !ep.exclusiveWithOperation(o, node, cycle) {
				return true
			}
		}
	}

	return false
}

// inOtherReadWindow returns true if cycle falls between the ready cycle
// and a placed read of a result of another operation on the port. The
// ready cycle of an operation that is not triggered yet is taken to be
// the read cycle.
func (ep *ExecutionPipelineResource) inOtherReadWindow(
	port *mach.Port,
	cycle int,
	po *program.ProgramOperation,
	node *program.MoveNode,
	exclCycle int,
) bool {
	for _, rec := range ep.results {
		if rec.port != port || rec.po == po {
			continue
		}

		from := rec.cycle
		if st := ep.ops[rec.po]; st.trigger != nil {
			from = st.triggerCycle + rec.hwOp.Latency(rec.index)
		}

		if ep.inWindow(cycle, from, rec.cycle) &&
			!ep.exclusiveWithOperation(rec.po, node, exclCycle) {
			return true
		}
	}

	return false
}
