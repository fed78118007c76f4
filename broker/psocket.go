package broker

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
	"github.com/sarchlab/ttasched/resource"
)

// PSocketBroker owns the socket resources of one direction. It is
// consulted after the unit brokers have bound the move terminals.
type PSocketBroker struct {
	base
	input bool
}

// NewInputPSocketBroker creates the broker of the sockets moves write.
func NewInputPSocketBroker(name string, opts ...Option) *PSocketBroker {
	return &PSocketBroker{base: newBase(name, opts...), input: true}
}

// NewOutputPSocketBroker creates the broker of the sockets moves read.
func NewOutputPSocketBroker(name string, opts ...Option) *PSocketBroker {
	return &PSocketBroker{base: newBase(name, opts...)}
}

// BuildResources creates a resource for each socket of the direction.
func (b *PSocketBroker) BuildResources(m *mach.Machine) error {
	for _, s := range m.Sockets() {
		switch {
		case b.input && s.Port.InputSocket == s:
			b.addResource(s,
				resource.NewInputPSocketResource(s, b.ii, b.conservative))
		case !b.input && s.Port.OutputSocket == s:
			b.addResource(s, resource.NewOutputPSocketResource(s, b.ii))
		}
	}

	return nil
}

// SetupResourceLinks only remembers the mapper.
func (b *PSocketBroker) SetupResourceLinks(mapper *Mapper) error {
	b.mapper = mapper
	return nil
}

// SetDDG passes the dependence graph to every socket resource.
func (b *PSocketBroker) SetDDG(ddg resource.ExclusivityOracle) {
	for _, e := range b.parts {
		e.res.(*resource.PSocketResource).SetDDG(ddg)
	}
}

func (b *PSocketBroker) terminal(node *program.MoveNode) program.Terminal {
	if b.input {
		return node.Move.Destination
	}

	return node.Move.Source
}

// IsApplicable returns true if the move reads or writes a unit port in the
// direction of the broker.
func (b *PSocketBroker) IsApplicable(node *program.MoveNode) bool {
	return b.terminal(node).IsFUPort()
}

func (b *PSocketBroker) socketOf(t program.Terminal) *mach.Socket {
	if !t.IsBound() {
		return nil
	}
	if b.input {
		return t.Port.InputSocket
	}

	return t.Port.OutputSocket
}

// AllAvailableResources returns the socket of the bound port if it is
// free in the cycle. Unbound terminals get no socket.
func (b *PSocketBroker) AllAvailableResources(
	cycle int,
	node *program.MoveNode,
) (*resource.Set, error) {
	if !b.IsApplicable(node) {
		return nil, wrongUsage(&b.base, node)
	}

	set := resource.NewSet()
	socket := b.socketOf(b.terminal(node))
	if socket == nil {
		return set, nil
	}

	res, ok := b.resMap[socket]
	if !ok {
		return nil, errors.Wrapf(resource.ErrNotFound,
			"%s: no resource for socket %s", b.name, socket.Name)
	}

	if res.(*resource.PSocketResource).CanAssign(cycle, node) {
		set.Insert(res)
	}

	return set, nil
}

// IsAnyResourceAvailable returns true if the socket of the move is free.
func (b *PSocketBroker) IsAnyResourceAvailable(
	cycle int,
	node *program.MoveNode,
) (bool, error) {
	set, err := b.AllAvailableResources(cycle, node)
	if err != nil {
		return false, err
	}

	return set.Count() > 0, nil
}

// Assign records node using the socket in the cycle.
func (b *PSocketBroker) Assign(
	cycle int,
	node *program.MoveNode,
	res resource.SchedulingResource,
) error {
	if !b.IsApplicable(node) {
		return wrongUsage(&b.base, node)
	}

	ps, ok := res.(*resource.PSocketResource)
	if !ok || !b.owns(res) {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%s: resource %s does not belong to the broker", b.name, res.Name())
	}
	if socket := b.socketOf(b.terminal(node)); socket != ps.Socket() {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%s: %v does not use socket %s", b.name, node, ps.Name())
	}

	ps.Assign(cycle, node)
	b.assigned[node] = &assignment{res: res, cycle: cycle}
	b.invoke(HookPosBrokerAssign, node, cycle)

	return nil
}

// Unassign frees the socket used by node. It does nothing if node was
// not assigned by the broker.
func (b *PSocketBroker) Unassign(node *program.MoveNode) error {
	a, ok := b.assigned[node]
	if !ok {
		return nil
	}

	if err := a.res.(*resource.PSocketResource).Unassign(a.cycle, node); err != nil {
		return err
	}

	delete(b.assigned, node)
	b.invoke(HookPosBrokerUnassign, node, a.cycle)

	return nil
}
