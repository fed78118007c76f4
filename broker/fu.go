package broker

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
	"github.com/sarchlab/ttasched/resource"
)

// fuBroker holds what the operand and result brokers share: the unit
// resources and the unit filtering rules.
type fuBroker struct {
	base
	machine *mach.Machine
}

// buildUnits creates one resource per unit, the control unit included.
func (b *fuBroker) buildUnits(
	m *mach.Machine,
	build func(fu *mach.FunctionUnit) resource.SchedulingResource,
) {
	b.machine = m
	for _, fu := range m.Units() {
		b.addResource(fu, build(fu))
	}
}

// linkUnits adds the sockets of each unit to dependent group 0 and its
// pipeline to dependent group 1.
func (b *fuBroker) linkUnits(
	mapper *Mapper,
	sockets func(fu *mach.FunctionUnit) []*mach.Socket,
) error {
	b.mapper = mapper

	for _, e := range b.parts {
		fu := e.part.(*mach.FunctionUnit)
		linker := e.res.(interface {
			AddToDependentGroup(group int, r resource.SchedulingResource)
		})

		for _, s := range sockets(fu) {
			ps, err := b.socketResource(s)
			if err != nil {
				return err
			}
			linker.AddToDependentGroup(resource.SocketGroup, ps)
		}

		ep, err := mapper.Pipeline(fu)
		if err != nil {
			return errors.Wrapf(err, "%s: linking unit %s", b.name, fu.Name)
		}
		linker.AddToDependentGroup(resource.PipelineGroup, ep)
	}

	return nil
}

// candidateUnits returns the units that may host node, in machine order.
//
// A unit already hosting another move of the operation is the only
// candidate; moves bound to different units leave no candidate. Otherwise
// the units implementing the operation are filtered by the unit
// annotations and by a unit the terminal is already bound to.
func (b *fuBroker) candidateUnits(
	node *program.MoveNode,
	po *program.ProgramOperation,
	own program.Terminal,
	annotated []*program.Move,
	candidateKind, allowedKind, rejectedKind program.AnnotationKind,
) []*mach.FunctionUnit {
	bound := po.BoundUnits(node)
	switch {
	case len(bound) > 1:
		b.log.V(1).Info("operation bound to several units",
			"move", node.String(), "operation", po.String())
		return nil
	case len(bound) == 1:
		return bound
	}

	candidates := make(map[string]bool)
	allowed := make(map[string]bool)
	rejected := make(map[string]bool)
	if b.respectAnnotations {
		for _, mv := range annotated {
			for _, name := range mv.Annotations(candidateKind) {
				candidates[name] = true
			}
			for _, name := range mv.Annotations(allowedKind) {
				allowed[name] = true
			}
			for _, name := range mv.Annotations(rejectedKind) {
				rejected[name] = true
			}
		}
	}

	if own.IsBound() && own.Unit.Kind == mach.RegularUnit {
		candidates = map[string]bool{own.Unit.Name: true}
	}

	var units []*mach.FunctionUnit
	for _, e := range b.parts {
		fu := e.part.(*mach.FunctionUnit)
		switch {
		case len(candidates) > 0 && !candidates[fu.Name]:
			continue
		case len(allowed) > 0 && !allowed[fu.Name]:
			continue
		case rejected[fu.Name]:
			continue
		case !fu.HasOperation(po.Operation.Name):
			continue
		}

		units = append(units, fu)
	}

	return units
}

func (b *fuBroker) hwOperation(
	fu *mach.FunctionUnit,
	po *program.ProgramOperation,
	index int,
) (*mach.HWOperation, *mach.Port, error) {
	hwOp := fu.Operation(po.Operation.Name)
	if hwOp == nil {
		return nil, nil, nil
	}

	port := hwOp.Port(index)
	if port == nil {
		return nil, nil, errors.Wrapf(resource.ErrNotFound,
			"%s: %s.%s has no port for operand %d",
			b.name, fu.Name, hwOp.Name, index)
	}

	return hwOp, port, nil
}

// InputFUBroker assigns operand writes to function units.
type InputFUBroker struct {
	fuBroker
}

// NewInputFUBroker creates an operand broker.
func NewInputFUBroker(name string, opts ...Option) *InputFUBroker {
	return &InputFUBroker{fuBroker{base: newBase(name, opts...)}}
}

// IsApplicable returns true for moves writing a function unit port.
func (b *InputFUBroker) IsApplicable(node *program.MoveNode) bool {
	dst := node.Move.Destination
	return dst.IsFUPort() && (dst.Special || node.IsDestinationOperation())
}

// BuildResources creates an InputFUResource per unit.
func (b *InputFUBroker) BuildResources(m *mach.Machine) error {
	b.buildUnits(m, func(fu *mach.FunctionUnit) resource.SchedulingResource {
		return resource.NewInputFUResource(fu, b.ii)
	})

	return nil
}

// SetupResourceLinks links each unit resource to its input sockets and
// its pipeline.
func (b *InputFUBroker) SetupResourceLinks(mapper *Mapper) error {
	return b.linkUnits(mapper, func(fu *mach.FunctionUnit) []*mach.Socket {
		var sockets []*mach.Socket
		for _, p := range fu.Ports() {
			if p.InputSocket != nil {
				sockets = append(sockets, p.InputSocket)
			}
		}
		return sockets
	})
}

// AllAvailableResources returns the units that can take the operand write
// in the cycle.
func (b *InputFUBroker) AllAvailableResources(
	cycle int,
	node *program.MoveNode,
) (*resource.Set, error) {
	if !b.IsApplicable(node) {
		return nil, wrongUsage(&b.base, node)
	}

	set := resource.NewSet()
	dst := node.Move.Destination

	if dst.Special {
		cu := b.machine.ControlUnit()
		if cu == nil {
			return nil, errors.Wrapf(resource.ErrNotFound,
				"%s: no control unit for %v", b.name, node)
		}

		ps, err := b.socketResource(cu.ReturnAddressPort().InputSocket)
		if err != nil {
			return nil, err
		}
		if ps.CanAssign(cycle, node) {
			set.Insert(b.resMap[cu])
		}

		return set, nil
	}

	po := node.DestinationOperation()
	units := b.candidateUnits(node, po, dst, annotatedInputs(po),
		program.AnnCandidateUnitDst,
		program.AnnAllowedUnitDst,
		program.AnnRejectedUnitDst)

	for _, fu := range units {
		_, port, err := b.hwOperation(fu, po, dst.OperandIndex)
		if err != nil {
			return nil, err
		}
		if port == nil {
			continue
		}

		ps, err := b.socketResource(port.InputSocket)
		if err != nil {
			return nil, err
		}

		res := b.resMap[fu].(*resource.InputFUResource)
		ok, err := res.CanAssign(cycle, node, ps, port.IsTriggering())
		if err != nil {
			return nil, errors.Wrapf(err, "%s: checking unit %s", b.name, fu.Name)
		}
		if ok {
			set.Insert(res)
		}
	}

	return set, nil
}

func annotatedInputs(po *program.ProgramOperation) []*program.Move {
	moves := make([]*program.Move, 0, len(po.InputMoves()))
	for _, n := range po.InputMoves() {
		moves = append(moves, n.Move)
	}

	return moves
}

// IsAnyResourceAvailable returns true if any unit can take the move.
func (b *InputFUBroker) IsAnyResourceAvailable(
	cycle int,
	node *program.MoveNode,
) (bool, error) {
	set, err := b.AllAvailableResources(cycle, node)
	if err != nil {
		return false, err
	}

	return set.Count() > 0, nil
}

// Assign binds the destination of node to the unit of res and records the
// operand write in the unit pipeline.
func (b *InputFUBroker) Assign(
	cycle int,
	node *program.MoveNode,
	res resource.SchedulingResource,
) error {
	if !b.IsApplicable(node) {
		return wrongUsage(&b.base, node)
	}

	fuRes, ok := res.(*resource.InputFUResource)
	if !ok || !b.owns(res) {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%s: resource %s does not belong to the broker", b.name, res.Name())
	}

	dst := node.Move.Destination
	a := &assignment{res: res, cycle: cycle, old: dst}
	unit := fuRes.Unit()

	if dst.Special {
		if !unit.HasSpecialRegisterPort() {
			return errors.Wrapf(resource.ErrWrongUsage,
				"%s: unit %s has no return-address port", b.name, unit.Name)
		}

		node.Move.Destination = program.NewBoundReturnAddress(unit)
		a.special = true
		b.assigned[node] = a
		b.invoke(HookPosBrokerAssign, node, cycle)

		return nil
	}

	po := node.DestinationOperation()
	hwOp, port, err := b.hwOperation(unit, po, dst.OperandIndex)
	if err != nil {
		return err
	}
	if port == nil {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%s: unit %s does not implement %s", b.name, unit.Name,
			po.Operation.Name)
	}

	node.Move.Destination = program.NewBoundFUPort(
		po.Operation, hwOp, dst.OperandIndex)
	if err := fuRes.Assign(cycle, node); err != nil {
		node.Move.Destination = dst
		return err
	}

	b.assigned[node] = a
	b.invoke(HookPosBrokerAssign, node, cycle)

	return nil
}

// Unassign restores the abstract destination of node and frees the unit
// pipeline. The return-address path has no pipeline bookkeeping.
func (b *InputFUBroker) Unassign(node *program.MoveNode) error {
	a, ok := b.assigned[node]
	if !ok {
		return nil
	}

	if !a.special {
		fuRes := a.res.(*resource.InputFUResource)
		if err := fuRes.Unassign(a.cycle, node); err != nil {
			return err
		}
	}

	node.Move.Destination = a.old
	delete(b.assigned, node)
	b.invoke(HookPosBrokerUnassign, node, a.cycle)

	return nil
}

// OutputFUBroker assigns result reads to function units.
type OutputFUBroker struct {
	fuBroker
}

// NewOutputFUBroker creates a result broker.
func NewOutputFUBroker(name string, opts ...Option) *OutputFUBroker {
	return &OutputFUBroker{fuBroker{base: newBase(name, opts...)}}
}

// IsApplicable returns true for moves reading a function unit port.
func (b *OutputFUBroker) IsApplicable(node *program.MoveNode) bool {
	src := node.Move.Source
	return src.IsFUPort() && (src.Special || node.IsSourceOperation())
}

// BuildResources creates an OutputFUResource per unit.
func (b *OutputFUBroker) BuildResources(m *mach.Machine) error {
	b.buildUnits(m, func(fu *mach.FunctionUnit) resource.SchedulingResource {
		return resource.NewOutputFUResource(fu, b.ii)
	})

	return nil
}

// SetupResourceLinks links each unit resource to its output sockets and
// its pipeline.
func (b *OutputFUBroker) SetupResourceLinks(mapper *Mapper) error {
	return b.linkUnits(mapper, func(fu *mach.FunctionUnit) []*mach.Socket {
		var sockets []*mach.Socket
		for _, p := range fu.Ports() {
			if p.OutputSocket != nil {
				sockets = append(sockets, p.OutputSocket)
			}
		}
		return sockets
	})
}

// AllAvailableResources returns the units the result can be read from in
// the cycle.
func (b *OutputFUBroker) AllAvailableResources(
	cycle int,
	node *program.MoveNode,
) (*resource.Set, error) {
	if !b.IsApplicable(node) {
		return nil, wrongUsage(&b.base, node)
	}

	set := resource.NewSet()
	src := node.Move.Source

	if src.Special {
		cu := b.machine.ControlUnit()
		if cu == nil {
			return nil, errors.Wrapf(resource.ErrNotFound,
				"%s: no control unit for %v", b.name, node)
		}

		ps, err := b.socketResource(cu.ReturnAddressPort().OutputSocket)
		if err != nil {
			return nil, err
		}
		if ps.CanAssign(cycle, node) {
			set.Insert(b.resMap[cu])
		}

		return set, nil
	}

	po := node.SourceOperation()
	units := b.candidateUnits(node, po, src, []*program.Move{node.Move},
		program.AnnCandidateUnitSrc,
		program.AnnAllowedUnitSrc,
		program.AnnRejectedUnitSrc)

	for _, fu := range units {
		_, port, err := b.hwOperation(fu, po, src.OperandIndex)
		if err != nil {
			return nil, err
		}
		if port == nil {
			continue
		}

		ps, err := b.socketResource(port.OutputSocket)
		if err != nil {
			return nil, err
		}

		res := b.resMap[fu].(*resource.OutputFUResource)
		ok, err := res.CanAssign(cycle, node, ps, port)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: checking unit %s", b.name, fu.Name)
		}
		if ok {
			set.Insert(res)
		}
	}

	return set, nil
}

// IsAnyResourceAvailable returns true if any unit can provide the result.
func (b *OutputFUBroker) IsAnyResourceAvailable(
	cycle int,
	node *program.MoveNode,
) (bool, error) {
	set, err := b.AllAvailableResources(cycle, node)
	if err != nil {
		return false, err
	}

	return set.Count() > 0, nil
}

// Assign binds the source of node to the unit of res and records the
// result read in the unit pipeline.
func (b *OutputFUBroker) Assign(
	cycle int,
	node *program.MoveNode,
	res resource.SchedulingResource,
) error {
	if !b.IsApplicable(node) {
		return wrongUsage(&b.base, node)
	}

	fuRes, ok := res.(*resource.OutputFUResource)
	if !ok || !b.owns(res) {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%s: resource %s does not belong to the broker", b.name, res.Name())
	}

	src := node.Move.Source
	a := &assignment{res: res, cycle: cycle, old: src}
	unit := fuRes.Unit()

	if src.Special {
		if !unit.HasSpecialRegisterPort() {
			return errors.Wrapf(resource.ErrWrongUsage,
				"%s: unit %s has no return-address port", b.name, unit.Name)
		}

		node.Move.Source = program.NewBoundReturnAddress(unit)
		a.special = true
		b.assigned[node] = a
		b.invoke(HookPosBrokerAssign, node, cycle)

		return nil
	}

	po := node.SourceOperation()
	hwOp, port, err := b.hwOperation(unit, po, src.OperandIndex)
	if err != nil {
		return err
	}
	if port == nil {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%s: unit %s does not implement %s", b.name, unit.Name,
			po.Operation.Name)
	}

	node.Move.Source = program.NewBoundFUPort(po.Operation, hwOp, src.OperandIndex)
	if err := fuRes.Assign(cycle, node); err != nil {
		node.Move.Source = src
		return err
	}

	b.assigned[node] = a
	b.invoke(HookPosBrokerAssign, node, cycle)

	return nil
}

// Unassign restores the abstract source of node and frees the unit
// pipeline. The return-address path has no pipeline bookkeeping.
func (b *OutputFUBroker) Unassign(node *program.MoveNode) error {
	a, ok := b.assigned[node]
	if !ok {
		return nil
	}

	if !a.special {
		fuRes := a.res.(*resource.OutputFUResource)
		if err := fuRes.Unassign(a.cycle, node); err != nil {
			return err
		}
	}

	node.Move.Source = a.old
	delete(b.assigned, node)
	b.invoke(HookPosBrokerUnassign, node, a.cycle)

	return nil
}
