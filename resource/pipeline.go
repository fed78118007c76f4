package resource

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
)

// HookPosAssign marks a move being assigned to a pipeline resource.
var HookPosAssign = &sim.HookPos{Name: "Pipeline Assign"}

// HookPosUnassign marks a move being removed from a pipeline resource.
var HookPosUnassign = &sim.HookPos{Name: "Pipeline Unassign"}

// operandRecord remembers how an operand move was assigned so that the
// assignment can be undone exactly.
type operandRecord struct {
	po      *program.ProgramOperation
	hwOp    *mach.HWOperation
	port    *mach.Port
	index   int
	cycle   int
	trigger bool
}

type resultRecord struct {
	po    *program.ProgramOperation
	hwOp  *mach.HWOperation
	port  *mach.Port
	index int
	cycle int
}

// opState collects the moves of one program operation assigned to the
// unit.
type opState struct {
	hwOp         *mach.HWOperation
	trigger      *program.MoveNode
	triggerCycle int
	operands     []*program.MoveNode
	results      []*program.MoveNode
}

func (s *opState) empty() bool {
	return s.trigger == nil && len(s.operands) == 0 && len(s.results) == 0
}

// PipelineOption is a functional option for configuring the
// ExecutionPipelineResource.
type PipelineOption func(*ExecutionPipelineResource)

// WithLogger sets the logger. Rejections are logged at V(1) and
// assignments at V(2).
func WithLogger(log logr.Logger) PipelineOption {
	return func(ep *ExecutionPipelineResource) {
		ep.log = log
	}
}

// WithConservative disables sharing of table cells between moves with
// exclusive guards.
func WithConservative(conservative bool) PipelineOption {
	return func(ep *ExecutionPipelineResource) {
		ep.conservative = conservative
	}
}

// ExecutionPipelineResource keeps the reservation tables of one function
// unit: the internal pipeline elements, the operand ports and the result
// ports.
//
// Operand i of an operation triggered in cycle T is consumed in cycle
// T+slack(i). It must be written no later than that, and exactly then if
// the port has no register. Result k is ready in cycle T+latency(k). It
// must be read no earlier than that, and exactly then if the port has no
// register. While a value waits in a port register no other operation may
// overwrite it.
type ExecutionPipelineResource struct {
	Base
	*sim.HookableBase

	unit         *mach.FunctionUnit
	conservative bool
	ddg          ExclusivityOracle
	log          logr.Logger

	pipeline       map[string]nodeTable
	operandWritten map[*mach.Port]nodeTable
	operandUsed    map[*mach.Port]nodeTable
	resultWritten  map[*mach.Port]resultTable
	resultRead     map[*mach.Port]resultTable

	operands map[*program.MoveNode]*operandRecord
	results  map[*program.MoveNode]*resultRecord
	ops      map[*program.ProgramOperation]*opState

	cachedSize    int
	cachedHighest int
}

// NewExecutionPipelineResource creates the pipeline resource of a unit.
func NewExecutionPipelineResource(
	unit *mach.FunctionUnit,
	ii int,
	opts ...PipelineOption,
) *ExecutionPipelineResource {
	ep := &ExecutionPipelineResource{
		Base:         NewBase("ep_"+unit.Name, ii),
		HookableBase: sim.NewHookableBase(),
		unit:         unit,
		log:          logr.Discard(),
	}
	for _, opt := range opts {
		opt(ep)
	}
	ep.Clear()

	return ep
}

// Unit returns the function unit of the resource.
func (ep *ExecutionPipelineResource) Unit() *mach.FunctionUnit {
	return ep.unit
}

// SetDDG delegates guard exclusivity queries to the dependence graph.
// Passing nil restores the local guard comparison.
func (ep *ExecutionPipelineResource) SetDDG(ddg ExclusivityOracle) {
	ep.ddg = ddg
}

// Clear removes every assignment.
func (ep *ExecutionPipelineResource) Clear() {
	ep.pipeline = make(map[string]nodeTable)
	for _, e := range ep.unit.PipelineElements() {
		ep.pipeline[e] = make(nodeTable)
	}

	ep.operandWritten = make(map[*mach.Port]nodeTable)
	ep.operandUsed = make(map[*mach.Port]nodeTable)
	ep.resultWritten = make(map[*mach.Port]resultTable)
	ep.resultRead = make(map[*mach.Port]resultTable)

	ep.operands = make(map[*program.MoveNode]*operandRecord)
	ep.results = make(map[*program.MoveNode]*resultRecord)
	ep.ops = make(map[*program.ProgramOperation]*opState)

	ep.invalidate()
}

// IsInUse returns true if anything is recorded in the row of the cycle.
func (ep *ExecutionPipelineResource) IsInUse(cycle int) bool {
	row := ep.InstructionIndex(cycle)

	for _, t := range ep.pipeline {
		if _, ok := t[row]; ok {
			return true
		}
	}
	for _, tables := range []map[*mach.Port]nodeTable{
		ep.operandWritten, ep.operandUsed,
	} {
		for _, t := range tables {
			if _, ok := t[row]; ok {
				return true
			}
		}
	}
	for _, tables := range []map[*mach.Port]resultTable{
		ep.resultWritten, ep.resultRead,
	} {
		for _, t := range tables {
			if _, ok := t[row]; ok {
				return true
			}
		}
	}

	return false
}

// IsAvailable returns true if every operand port can take another write in
// the cycle and at least one operation can be triggered in it.
func (ep *ExecutionPipelineResource) IsAvailable(cycle int) bool {
	row := ep.InstructionIndex(cycle)

	for _, p := range ep.unit.InputPorts() {
		if s := ep.operandWritten[p].at(row); s != nil && s.full() {
			return false
		}
		if s := ep.operandUsed[p].at(row); s != nil && s.full() {
			return false
		}
	}

	if len(ep.unit.Operations()) == 0 {
		return true
	}

	for _, op := range ep.unit.Operations() {
		if ep.templateFits(op, cycle) {
			return true
		}
	}

	return false
}

func (ep *ExecutionPipelineResource) templateFits(
	op *mach.HWOperation,
	cycle int,
) bool {
	claimed := make(map[string]map[int]bool)
	for _, u := range op.Usages() {
		table := ep.elementTable(u.Element)
		if claimed[u.Element] == nil {
			claimed[u.Element] = make(map[int]bool)
		}

		for d := 0; d < u.Duration; d++ {
			row := ep.InstructionIndex(cycle + u.Cycle + d)
			if claimed[u.Element][row] {
				return false
			}
			claimed[u.Element][row] = true

			if s := table.at(row); s != nil && s.full() {
				return false
			}
		}
	}

	return true
}

// Size is the number of table rows up to the last occupied one.
func (ep *ExecutionPipelineResource) Size() int {
	if ep.cachedSize < 0 {
		ep.computeExtent()
	}

	return ep.cachedSize
}

// HighestKnownCycle is the last cycle in which anything assigned to the
// unit happens, or -1 if nothing is assigned.
func (ep *ExecutionPipelineResource) HighestKnownCycle() int {
	if ep.cachedSize < 0 {
		ep.computeExtent()
	}

	return ep.cachedHighest
}

func (ep *ExecutionPipelineResource) computeExtent() {
	size := 0
	grow := func(row int) {
		if row+1 > size {
			size = row + 1
		}
	}

	for _, t := range ep.pipeline {
		for row := range t {
			grow(row)
		}
	}
	for _, tables := range []map[*mach.Port]nodeTable{
		ep.operandWritten, ep.operandUsed,
	} {
		for _, t := range tables {
			for row := range t {
				grow(row)
			}
		}
	}
	for _, tables := range []map[*mach.Port]resultTable{
		ep.resultWritten, ep.resultRead,
	} {
		for _, t := range tables {
			for row := range t {
				grow(row)
			}
		}
	}

	highest := -1
	raise := func(c int) {
		if c > highest {
			highest = c
		}
	}
	for _, rec := range ep.operands {
		raise(rec.cycle)
	}
	for _, rec := range ep.results {
		raise(rec.cycle)
	}
	for _, st := range ep.ops {
		if st.trigger == nil {
			continue
		}

		raise(st.triggerCycle + st.hwOp.PipelineLength() - 1)
		for _, k := range st.hwOp.OutputIndices() {
			raise(st.triggerCycle + st.hwOp.Latency(k))
		}
	}

	ep.cachedSize = size
	ep.cachedHighest = highest
}

func (ep *ExecutionPipelineResource) invalidate() {
	ep.cachedSize = -1
}

func (ep *ExecutionPipelineResource) elementTable(element string) nodeTable {
	t, ok := ep.pipeline[element]
	if !ok {
		panic(fmt.Sprintf("%s: no pipeline element %q", ep.Name(), element))
	}

	return t
}

func (ep *ExecutionPipelineResource) portTable(
	tables map[*mach.Port]nodeTable,
	port *mach.Port,
) nodeTable {
	t, ok := tables[port]
	if !ok {
		t = make(nodeTable)
		tables[port] = t
	}

	return t
}

func (ep *ExecutionPipelineResource) resultPortTable(
	tables map[*mach.Port]resultTable,
	port *mach.Port,
) resultTable {
	t, ok := tables[port]
	if !ok {
		t = make(resultTable)
		tables[port] = t
	}

	return t
}

// resolveOperand finds the hardware operation and port an operand move
// writes on this unit. A nil operation means the unit does not implement
// it.
func (ep *ExecutionPipelineResource) resolveOperand(
	node *program.MoveNode,
) (*program.ProgramOperation, *mach.HWOperation, int, *mach.Port, error) {
	po := node.DestinationOperation()
	if po == nil {
		return nil, nil, 0, nil, errors.Wrapf(ErrWrongUsage,
			"%s: move %v does not write an operand", ep.Name(), node)
	}

	idx := node.Move.Destination.OperandIndex
	hwOp := ep.unit.Operation(po.Operation.Name)
	if hwOp == nil {
		return po, nil, idx, nil, nil
	}

	port := hwOp.Port(idx)
	if port == nil {
		return nil, nil, 0, nil, errors.Wrapf(ErrNotFound,
			"%s: operand %d of %s has no port", ep.Name(), idx, hwOp.Name)
	}

	return po, hwOp, idx, port, nil
}

// resolveResult finds the hardware operation and port a result move reads
// on this unit.
func (ep *ExecutionPipelineResource) resolveResult(
	node *program.MoveNode,
) (*program.ProgramOperation, *mach.HWOperation, int, *mach.Port, error) {
	po := node.SourceOperation()
	if po == nil {
		return nil, nil, 0, nil, errors.Wrapf(ErrWrongUsage,
			"%s: move %v does not read a result", ep.Name(), node)
	}

	idx := node.Move.Source.OperandIndex
	hwOp := ep.unit.Operation(po.Operation.Name)
	if hwOp == nil {
		return po, nil, idx, nil, nil
	}

	port := hwOp.Port(idx)
	if port == nil {
		return nil, nil, 0, nil, errors.Wrapf(ErrNotFound,
			"%s: result %d of %s has no port", ep.Name(), idx, hwOp.Name)
	}

	return po, hwOp, idx, port, nil
}

// exclusiveMoves returns true if mn1, which is placed, and mn2, to be
// placed in cycle, can share a table cell.
func (ep *ExecutionPipelineResource) exclusiveMoves(
	mn1, mn2 *program.MoveNode,
	cycle int,
) bool {
	return movesExclusive(ep.ddg, ep.conservative, mn1, mn2, cycle)
}

// movesExclusive is the sharing rule of every table keyed by cycle. A
// non-nil ddg replaces the comparison of guard registers.
func movesExclusive(
	ddg ExclusivityOracle,
	conservative bool,
	mn1, mn2 *program.MoveNode,
	cycle int,
) bool {
	if conservative {
		return false
	}
	if mn1 == nil || mn2 == nil || mn1 == mn2 {
		return false
	}
	if mn1.Move.IsUnconditional() || mn2.Move.IsUnconditional() {
		return false
	}

	if ddg != nil {
		return ddg.ExclusiveGuards(mn1, mn2)
	}

	if !mn1.Guard().IsOpposite(mn2.Guard()) {
		return false
	}

	// Guard values are only comparable within one cycle.
	if !mn1.IsScheduled() {
		return false
	}
	if mn2.IsScheduled() {
		return mn1.Cycle() == mn2.Cycle()
	}

	return mn1.Cycle() == cycle || cycle == math.MaxInt
}

// guardsExclusive compares guards regardless of cycles.
func (ep *ExecutionPipelineResource) guardsExclusive(
	mn1, mn2 *program.MoveNode,
) bool {
	if ep.conservative || mn1 == nil || mn2 == nil || mn1 == mn2 {
		return false
	}
	if ep.ddg != nil {
		return ep.ddg.ExclusiveGuards(mn1, mn2)
	}

	return mn1.Guard().IsOpposite(mn2.Guard())
}

// representative returns the move that stands for an operation in
// exclusivity queries: its trigger if placed, otherwise any placed move.
func (ep *ExecutionPipelineResource) representative(
	po *program.ProgramOperation,
) *program.MoveNode {
	st, ok := ep.ops[po]
	if !ok {
		return nil
	}

	switch {
	case st.trigger != nil:
		return st.trigger
	case len(st.operands) > 0:
		return st.operands[0]
	case len(st.results) > 0:
		return st.results[0]
	}

	return nil
}

func (ep *ExecutionPipelineResource) exclusiveWithOperation(
	po *program.ProgramOperation,
	node *program.MoveNode,
	cycle int,
) bool {
	return ep.exclusiveMoves(ep.representative(po), node, cycle)
}

// inWindow returns true if cycle falls into [from, to], modulo the
// initiation interval.
func (ep *ExecutionPipelineResource) inWindow(cycle, from, to int) bool {
	if ep.ii <= 0 {
		return cycle >= from && cycle <= to
	}
	if to-from+1 >= ep.ii {
		return true
	}

	d := (cycle - from) % ep.ii
	if d < 0 {
		d += ep.ii
	}

	return d <= to-from
}

func (ep *ExecutionPipelineResource) reject(
	node *program.MoveNode,
	cycle int,
	reason string,
	keysAndValues ...any,
) bool {
	if ep.log.V(1).Enabled() {
		kv := append([]any{
			"unit", ep.unit.Name,
			"cycle", cycle,
			"move", node.String(),
			"reason", reason,
		}, keysAndValues...)
		ep.log.V(1).Info("cannot assign", kv...)
	}

	return false
}

func (ep *ExecutionPipelineResource) mutated(
	pos *sim.HookPos,
	node *program.MoveNode,
	cycle int,
) {
	ep.invalidate()

	ep.log.V(2).Info(pos.Name, "unit", ep.unit.Name, "cycle", cycle,
		"move", node.String())

	if ep.NumHooks() > 0 {
		ep.InvokeHook(sim.HookCtx{
			Domain: ep,
			Pos:    pos,
			Item:   node,
			Detail: cycle,
		})
	}
}
