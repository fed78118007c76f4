package broker

import (
	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
	"github.com/sarchlab/ttasched/resource"
)

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger. Brokers and pipelines log through
// named children of it.
func WithManagerLogger(log logr.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithDDG sets the dependence graph used for guard exclusivity.
func WithDDG(ddg resource.ExclusivityOracle) ManagerOption {
	return func(m *Manager) {
		m.ddg = ddg
	}
}

// Manager builds the brokers of a machine and places whole moves: it
// binds their unit terminals and reserves the sockets and pipelines they
// use.
type Manager struct {
	machine *mach.Machine
	config  *resource.SchedulerConfig
	log     logr.Logger
	ddg     resource.ExclusivityOracle

	mapper    *Mapper
	pipelines *ExecutionPipelineBroker
	inSockets *PSocketBroker
	outSocket *PSocketBroker
	inputs    *InputFUBroker
	outputs   *OutputFUBroker
}

// NewManager validates the machine and the configuration and builds the
// resources.
func NewManager(
	m *mach.Machine,
	cfg *resource.SchedulerConfig,
	opts ...ManagerOption,
) (*Manager, error) {
	if cfg == nil {
		cfg = resource.DefaultSchedulerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scheduler config")
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid machine %s", m.Name)
	}

	mgr := &Manager{
		machine: m,
		config:  cfg.Clone(),
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	common := func(name string) []Option {
		return []Option{
			WithInitiationInterval(cfg.InitiationInterval),
			WithConservative(cfg.Conservative),
			WithUnitAnnotations(cfg.RespectUnitAnnotations),
			WithLogger(mgr.log.WithName(name)),
		}
	}

	mgr.pipelines = NewExecutionPipelineBroker("pipelines", common("pipelines")...)
	mgr.inSockets = NewInputPSocketBroker("input_sockets", common("input_sockets")...)
	mgr.outSocket = NewOutputPSocketBroker("output_sockets", common("output_sockets")...)
	mgr.inputs = NewInputFUBroker("input_units", common("input_units")...)
	mgr.outputs = NewOutputFUBroker("output_units", common("output_units")...)

	mgr.mapper = NewMapper()
	for _, b := range mgr.brokers() {
		if err := b.BuildResources(m); err != nil {
			return nil, errors.Wrapf(err, "building %s", b.Name())
		}
		mgr.mapper.AddBroker(b)
	}
	for _, b := range mgr.brokers() {
		if err := b.SetupResourceLinks(mgr.mapper); err != nil {
			return nil, errors.Wrapf(err, "linking %s", b.Name())
		}
	}

	if mgr.ddg != nil {
		mgr.SetDDG(mgr.ddg)
	}

	return mgr, nil
}

func (m *Manager) brokers() []Broker {
	return []Broker{m.pipelines, m.inSockets, m.outSocket, m.inputs, m.outputs}
}

// unitBrokers are consulted before the socket brokers, which need bound
// terminals.
func (m *Manager) unitBrokers() []Broker {
	return []Broker{m.inputs, m.outputs}
}

func (m *Manager) socketBrokers() []Broker {
	return []Broker{m.inSockets, m.outSocket}
}

// Machine returns the machine the resources were built for.
func (m *Manager) Machine() *mach.Machine {
	return m.machine
}

// Mapper returns the part to resource mapper.
func (m *Manager) Mapper() *Mapper {
	return m.mapper
}

// Config returns a copy of the configuration.
func (m *Manager) Config() *resource.SchedulerConfig {
	return m.config.Clone()
}

// Pipeline returns the pipeline resource of the named unit.
func (m *Manager) Pipeline(
	unitName string,
) (*resource.ExecutionPipelineResource, error) {
	fu := m.machine.Unit(unitName)
	if fu == nil {
		return nil, errors.Wrapf(resource.ErrNotFound, "no unit %s", unitName)
	}

	return m.pipelines.Pipeline(fu)
}

// Pipelines returns every pipeline resource.
func (m *Manager) Pipelines() []*resource.ExecutionPipelineResource {
	return m.pipelines.Pipelines()
}

// SetDDG sets the dependence graph used for guard exclusivity by the
// pipelines and the sockets.
func (m *Manager) SetDDG(ddg resource.ExclusivityOracle) {
	m.ddg = ddg
	m.pipelines.SetDDG(ddg)
	m.inSockets.SetDDG(ddg)
	m.outSocket.SetDDG(ddg)
}

// AcceptHook registers a hook with every pipeline and broker.
func (m *Manager) AcceptHook(hook sim.Hook) {
	for _, ep := range m.pipelines.Pipelines() {
		ep.AcceptHook(hook)
	}
	for _, b := range []interface{ AcceptHook(sim.Hook) }{
		m.inSockets, m.outSocket, m.inputs, m.outputs,
	} {
		b.AcceptHook(hook)
	}
}

// CanAssign returns true if node can be placed in the cycle. Moves that
// touch no unit port need no resource.
func (m *Manager) CanAssign(cycle int, node *program.MoveNode) (bool, error) {
	if node.IsScheduled() {
		return false, nil
	}

	for _, b := range m.unitBrokers() {
		if !b.IsApplicable(node) {
			continue
		}

		ok, err := b.IsAnyResourceAvailable(cycle, node)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// Assign places node in the cycle and reserves its resources. On failure
// nothing stays reserved and the node is left unscheduled.
func (m *Manager) Assign(cycle int, node *program.MoveNode) error {
	if node.IsScheduled() {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%v is already scheduled", node)
	}

	node.SetCycle(cycle)

	var done []Broker
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if err := done[i].Unassign(node); err != nil {
				panic(errors.Wrapf(err, "rolling back %v", node))
			}
		}
		node.Unschedule()
	}

	for _, b := range append(m.unitBrokers(), m.socketBrokers()...) {
		if !b.IsApplicable(node) {
			continue
		}

		set, err := b.AllAvailableResources(cycle, node)
		if err != nil {
			rollback()
			return err
		}
		if set.Count() == 0 {
			rollback()
			return errors.Wrapf(resource.ErrWrongUsage,
				"%s: no resource for %v in cycle %d", b.Name(), node, cycle)
		}

		if err := b.Assign(cycle, node, set.Resources()[0]); err != nil {
			rollback()
			return err
		}
		done = append(done, b)
	}

	m.log.V(2).Info("assigned", "move", node.String(), "cycle", cycle)

	return nil
}

// Unassign releases the resources of node and unschedules it.
func (m *Manager) Unassign(node *program.MoveNode) error {
	if !node.IsScheduled() {
		return errors.Wrapf(resource.ErrWrongUsage,
			"%v is not scheduled", node)
	}

	cycle := node.Cycle()
	order := append(m.unitBrokers(), m.socketBrokers()...)
	for i := len(order) - 1; i >= 0; i-- {
		if err := order[i].Unassign(node); err != nil {
			return err
		}
	}

	node.Unschedule()
	m.log.V(2).Info("unassigned", "move", node.String(), "cycle", cycle)

	return nil
}

// Clear removes every assignment from every resource. Move nodes keep
// their cycles and bindings. Reset them with program.ProgramOperation.Reset
// or program.MoveNode.Reset before scheduling them again, since bound
// sibling terminals restrict the units of the other moves of an operation.
func (m *Manager) Clear() {
	for _, b := range m.brokers() {
		b.Clear()
	}
}

// HighestKnownCycle returns the last cycle used by any pipeline, or -1.
func (m *Manager) HighestKnownCycle() int {
	return m.pipelines.HighestKnownCycle()
}

// Size returns the largest pipeline table size.
func (m *Manager) Size() int {
	return m.pipelines.Size()
}

// Verify checks the tables of every pipeline.
func (m *Manager) Verify() error {
	var result *multierror.Error
	for _, ep := range m.pipelines.Pipelines() {
		if err := ep.Verify(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
