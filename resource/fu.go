package resource

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
)

// Dependent groups of the function unit resources.
const (
	// SocketGroup holds the port socket resources of the unit.
	SocketGroup = 0
	// PipelineGroup holds the execution pipeline resource of the unit.
	PipelineGroup = 1
)

// fuResource is the part shared by the operand and result views of a
// function unit.
type fuResource struct {
	Base
	unit *mach.FunctionUnit
}

// Unit returns the function unit.
func (r *fuResource) Unit() *mach.FunctionUnit {
	return r.unit
}

// Pipeline returns the linked execution pipeline resource.
func (r *fuResource) Pipeline() *ExecutionPipelineResource {
	for _, dep := range r.DependentResourceGroup(PipelineGroup) {
		if ep, ok := dep.(*ExecutionPipelineResource); ok {
			return ep
		}
	}

	return nil
}

func (r *fuResource) pipeline() (*ExecutionPipelineResource, error) {
	ep := r.Pipeline()
	if ep == nil {
		return nil, errors.Wrapf(ErrNotFound,
			"%s: no execution pipeline linked", r.Name())
	}

	return ep, nil
}

func (r *fuResource) ownsSocket(ps *PSocketResource) bool {
	for _, dep := range r.DependentResourceGroup(SocketGroup) {
		if dep == SchedulingResource(ps) {
			return true
		}
	}

	return false
}

// IsInUse returns true if the pipeline of the unit is used in the cycle.
func (r *fuResource) IsInUse(cycle int) bool {
	ep := r.Pipeline()
	return ep != nil && ep.IsInUse(cycle)
}

// IsAvailable returns true if the pipeline of the unit can take more moves
// in the cycle.
func (r *fuResource) IsAvailable(cycle int) bool {
	ep := r.Pipeline()
	return ep != nil && ep.IsAvailable(cycle)
}

// Clear has nothing to reset. The linked resources are cleared by their
// own brokers.
func (r *fuResource) Clear() {}

// InputFUResource is the operand side of a function unit.
type InputFUResource struct {
	fuResource
}

// NewInputFUResource creates the operand side resource of a unit.
func NewInputFUResource(unit *mach.FunctionUnit, ii int) *InputFUResource {
	return &InputFUResource{fuResource{
		Base: NewBase(unit.Name, ii),
		unit: unit,
	}}
}

// CanAssign returns true if node can write an operand of the unit in the
// cycle through the socket.
func (r *InputFUResource) CanAssign(
	cycle int,
	node *program.MoveNode,
	socket *PSocketResource,
	triggers bool,
) (bool, error) {
	if socket == nil || !r.ownsSocket(socket) {
		return false, nil
	}
	if !socket.CanAssign(cycle, node) {
		return false, nil
	}

	ep, err := r.pipeline()
	if err != nil {
		return false, err
	}

	return ep.CanAssignDestination(cycle, node, triggers)
}

// Assign records the operand write in the pipeline.
func (r *InputFUResource) Assign(cycle int, node *program.MoveNode) error {
	ep, err := r.pipeline()
	if err != nil {
		return err
	}

	return ep.AssignDestination(cycle, node)
}

// Unassign reverts Assign.
func (r *InputFUResource) Unassign(cycle int, node *program.MoveNode) error {
	ep, err := r.pipeline()
	if err != nil {
		return err
	}

	return ep.UnassignDestination(cycle, node)
}

// OutputFUResource is the result side of a function unit.
type OutputFUResource struct {
	fuResource
}

// NewOutputFUResource creates the result side resource of a unit.
func NewOutputFUResource(unit *mach.FunctionUnit, ii int) *OutputFUResource {
	return &OutputFUResource{fuResource{
		Base: NewBase(unit.Name, ii),
		unit: unit,
	}}
}

// CanAssign returns true if node can read a result of the unit in the
// cycle through the socket.
func (r *OutputFUResource) CanAssign(
	cycle int,
	node *program.MoveNode,
	socket *PSocketResource,
	resultPort *mach.Port,
) (bool, error) {
	if socket == nil || !r.ownsSocket(socket) {
		return false, nil
	}
	if !socket.CanAssign(cycle, node) {
		return false, nil
	}

	ep, err := r.pipeline()
	if err != nil {
		return false, err
	}

	return ep.CanAssignSource(cycle, node, resultPort)
}

// Assign records the result read in the pipeline.
func (r *OutputFUResource) Assign(cycle int, node *program.MoveNode) error {
	ep, err := r.pipeline()
	if err != nil {
		return err
	}

	return ep.AssignSource(cycle, node)
}

// Unassign reverts Assign.
func (r *OutputFUResource) Unassign(cycle int, node *program.MoveNode) error {
	ep, err := r.pipeline()
	if err != nil {
		return err
	}

	return ep.UnassignSource(cycle, node)
}
