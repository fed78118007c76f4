// Package broker connects moves to scheduling resources. Each broker owns
// the resources of one kind of machine part, answers which of them could
// host a move in a cycle, and writes the chosen hardware binding into the
// move when the scheduler commits.
package broker

import (
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
	"github.com/sarchlab/ttasched/resource"
)

// HookPosBrokerAssign marks a broker binding a move to a resource.
var HookPosBrokerAssign = &sim.HookPos{Name: "Broker Assign"}

// HookPosBrokerUnassign marks a broker releasing a move.
var HookPosBrokerUnassign = &sim.HookPos{Name: "Broker Unassign"}

// Broker manages the resources of one kind of machine part.
type Broker interface {
	Name() string

	// AllAvailableResources returns the resources that can host node in
	// the cycle. It fails with resource.ErrWrongUsage if the broker does
	// not apply to node.
	AllAvailableResources(
		cycle int,
		node *program.MoveNode,
	) (*resource.Set, error)
	IsAnyResourceAvailable(cycle int, node *program.MoveNode) (bool, error)

	// IsApplicable tells whether the broker handles moves of the shape of
	// node.
	IsApplicable(node *program.MoveNode) bool

	// Assign binds node to res in the cycle.
	Assign(
		cycle int,
		node *program.MoveNode,
		res resource.SchedulingResource,
	) error

	// Unassign reverts Assign. It does nothing if node was not assigned
	// by this broker.
	Unassign(node *program.MoveNode) error

	IsAlreadyAssigned(cycle int, node *program.MoveNode) bool
	BuildResources(m *mach.Machine) error
	SetupResourceLinks(mapper *Mapper) error
	Resources() []resource.SchedulingResource
	Clear()

	entries() []entry
}

type entry struct {
	part any
	res  resource.SchedulingResource
}

type assignment struct {
	res     resource.SchedulingResource
	cycle   int
	old     program.Terminal
	special bool
}

// Option is a functional option for configuring brokers.
type Option func(*base)

// WithInitiationInterval sets the initiation interval of the resources
// the broker builds.
func WithInitiationInterval(ii int) Option {
	return func(b *base) {
		b.ii = ii
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(b *base) {
		b.log = log
	}
}

// WithConservative disables sharing of resources between moves with
// exclusive guards.
func WithConservative(conservative bool) Option {
	return func(b *base) {
		b.conservative = conservative
	}
}

// WithUnitAnnotations tells whether candidate, allowed and rejected unit
// annotations on moves restrict the units considered.
func WithUnitAnnotations(respect bool) Option {
	return func(b *base) {
		b.respectAnnotations = respect
	}
}

// base keeps the machine part to resource map and the assignments.
type base struct {
	*sim.HookableBase

	name               string
	ii                 int
	conservative       bool
	respectAnnotations bool
	log                logr.Logger

	parts    []entry
	resMap   map[any]resource.SchedulingResource
	owners   map[resource.SchedulingResource]any
	assigned map[*program.MoveNode]*assignment
	mapper   *Mapper
}

func newBase(name string, opts ...Option) base {
	b := base{
		HookableBase:       sim.NewHookableBase(),
		name:               name,
		respectAnnotations: true,
		log:                logr.Discard(),
		resMap:             make(map[any]resource.SchedulingResource),
		owners:             make(map[resource.SchedulingResource]any),
		assigned:           make(map[*program.MoveNode]*assignment),
	}
	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// Name returns the broker name.
func (b *base) Name() string {
	return b.name
}

func (b *base) addResource(part any, res resource.SchedulingResource) {
	b.parts = append(b.parts, entry{part: part, res: res})
	b.resMap[part] = res
	b.owners[res] = part
}

func (b *base) entries() []entry {
	return b.parts
}

// ResourceOf returns the resource of a machine part.
func (b *base) ResourceOf(part any) (resource.SchedulingResource, bool) {
	res, ok := b.resMap[part]
	return res, ok
}

// MachinePartOf returns the machine part of a resource.
func (b *base) MachinePartOf(res resource.SchedulingResource) (any, bool) {
	part, ok := b.owners[res]
	return part, ok
}

// Resources returns the resources in build order.
func (b *base) Resources() []resource.SchedulingResource {
	rs := make([]resource.SchedulingResource, 0, len(b.parts))
	for _, e := range b.parts {
		rs = append(rs, e.res)
	}

	return rs
}

// IsAlreadyAssigned returns true if node was assigned in the cycle.
func (b *base) IsAlreadyAssigned(cycle int, node *program.MoveNode) bool {
	a, ok := b.assigned[node]
	return ok && a.cycle == cycle
}

// Clear forgets every assignment and clears the resources.
func (b *base) Clear() {
	b.assigned = make(map[*program.MoveNode]*assignment)
	for _, e := range b.parts {
		e.res.Clear()
	}
}

func (b *base) owns(res resource.SchedulingResource) bool {
	_, ok := b.owners[res]
	return ok
}

func (b *base) requireMapper() error {
	if b.mapper == nil {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%s: resource links are not set up", b.name)
	}

	return nil
}

// socketResource finds the resource of a port socket through the mapper.
func (b *base) socketResource(
	socket *mach.Socket,
) (*resource.PSocketResource, error) {
	if err := b.requireMapper(); err != nil {
		return nil, err
	}
	if socket == nil {
		return nil, errors.Wrapf(resource.ErrNotFound,
			"%s: port has no socket", b.name)
	}

	res, err := b.mapper.ResourceOf(socket, 0)
	if err != nil {
		return nil, errors.Wrapf(err,
			"%s: finding resource for socket %s", b.name, socket.Name)
	}

	ps, ok := res.(*resource.PSocketResource)
	if !ok {
		return nil, errors.Wrapf(resource.ErrNotFound,
			"%s: resource of socket %s is not a socket resource",
			b.name, socket.Name)
	}

	return ps, nil
}

func (b *base) invoke(pos *sim.HookPos, node *program.MoveNode, cycle int) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(sim.HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   node,
		Detail: cycle,
	})
}

func wrongUsage(b *base, node *program.MoveNode) error {
	return errors.Wrapf(resource.ErrWrongUsage,
		"%s: broker does not apply to %v", b.name, node)
}

// Mapper finds the resources of machine parts across brokers.
type Mapper struct {
	brokers []Broker
	parts   map[any][]resource.SchedulingResource
}

// NewMapper creates an empty mapper.
func NewMapper() *Mapper {
	return &Mapper{parts: make(map[any][]resource.SchedulingResource)}
}

// AddBroker registers the resources of a broker.
func (m *Mapper) AddBroker(b Broker) {
	m.brokers = append(m.brokers, b)
	for _, e := range b.entries() {
		m.parts[e.part] = append(m.parts[e.part], e.res)
	}
}

// ResourceCount returns the number of resources of a machine part.
func (m *Mapper) ResourceCount(part any) int {
	return len(m.parts[part])
}

// ResourceOf returns the i-th resource of a machine part.
func (m *Mapper) ResourceOf(
	part any,
	i int,
) (resource.SchedulingResource, error) {
	rs := m.parts[part]
	if i < 0 || i >= len(rs) {
		return nil, errors.Wrapf(resource.ErrNotFound,
			"no resource %d for %s", i, partName(part))
	}

	return rs[i], nil
}

func partName(part any) string {
	switch p := part.(type) {
	case *mach.FunctionUnit:
		return "unit " + p.Name
	case *mach.Socket:
		return "socket " + p.Name
	case *mach.Port:
		return "port " + p.String()
	}

	return "unknown part"
}

// Pipeline finds the execution pipeline resource of a unit.
func (m *Mapper) Pipeline(
	unit *mach.FunctionUnit,
) (*resource.ExecutionPipelineResource, error) {
	for _, res := range m.parts[unit] {
		if ep, ok := res.(*resource.ExecutionPipelineResource); ok {
			return ep, nil
		}
	}

	return nil, errors.Wrapf(resource.ErrNotFound,
		"no execution pipeline for unit %s", unit.Name)
}
