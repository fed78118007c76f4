package broker

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
	"github.com/sarchlab/ttasched/resource"
)

// ExecutionPipelineBroker owns the pipeline resources of the units. It is
// never asked for resources directly. The unit brokers reach the
// pipelines through their dependent groups.
type ExecutionPipelineBroker struct {
	base
	pipelines []*resource.ExecutionPipelineResource
}

// NewExecutionPipelineBroker creates a pipeline broker.
func NewExecutionPipelineBroker(
	name string,
	opts ...Option,
) *ExecutionPipelineBroker {
	return &ExecutionPipelineBroker{base: newBase(name, opts...)}
}

// BuildResources creates one pipeline resource per unit.
func (b *ExecutionPipelineBroker) BuildResources(m *mach.Machine) error {
	for _, fu := range m.Units() {
		ep := resource.NewExecutionPipelineResource(fu, b.ii,
			resource.WithLogger(b.log.WithName("ep_"+fu.Name)),
			resource.WithConservative(b.conservative),
		)
		b.pipelines = append(b.pipelines, ep)
		b.addResource(fu, ep)
	}

	return nil
}

// SetupResourceLinks only remembers the mapper. Pipelines depend on
// nothing.
func (b *ExecutionPipelineBroker) SetupResourceLinks(mapper *Mapper) error {
	b.mapper = mapper
	return nil
}

// IsApplicable is always false.
func (b *ExecutionPipelineBroker) IsApplicable(*program.MoveNode) bool {
	return false
}

// AllAvailableResources fails with resource.ErrWrongUsage.
func (b *ExecutionPipelineBroker) AllAvailableResources(
	_ int,
	node *program.MoveNode,
) (*resource.Set, error) {
	return nil, wrongUsage(&b.base, node)
}

// IsAnyResourceAvailable fails with resource.ErrWrongUsage.
func (b *ExecutionPipelineBroker) IsAnyResourceAvailable(
	_ int,
	node *program.MoveNode,
) (bool, error) {
	return false, wrongUsage(&b.base, node)
}

// Assign fails with resource.ErrWrongUsage. Pipelines are assigned by the
// unit resources.
func (b *ExecutionPipelineBroker) Assign(
	_ int,
	node *program.MoveNode,
	_ resource.SchedulingResource,
) error {
	return wrongUsage(&b.base, node)
}

// Unassign does nothing.
func (b *ExecutionPipelineBroker) Unassign(*program.MoveNode) error {
	return nil
}

// Pipelines returns the pipeline resources in machine order.
func (b *ExecutionPipelineBroker) Pipelines() []*resource.ExecutionPipelineResource {
	return b.pipelines
}

// Pipeline returns the pipeline resource of a unit.
func (b *ExecutionPipelineBroker) Pipeline(
	unit *mach.FunctionUnit,
) (*resource.ExecutionPipelineResource, error) {
	res, ok := b.resMap[unit]
	if !ok {
		return nil, errors.Wrapf(resource.ErrNotFound,
			"%s: no pipeline for unit %s", b.name, unit.Name)
	}

	return res.(*resource.ExecutionPipelineResource), nil
}

// SetDDG passes the dependence graph to every pipeline.
func (b *ExecutionPipelineBroker) SetDDG(ddg resource.ExclusivityOracle) {
	for _, ep := range b.pipelines {
		ep.SetDDG(ddg)
	}
}

// HighestKnownCycle returns the highest cycle used by any pipeline, or -1.
func (b *ExecutionPipelineBroker) HighestKnownCycle() int {
	highest := -1
	for _, ep := range b.pipelines {
		highest = max(highest, ep.HighestKnownCycle())
	}

	return highest
}

// Size returns the largest table size over the pipelines.
func (b *ExecutionPipelineBroker) Size() int {
	size := 0
	for _, ep := range b.pipelines {
		size = max(size, ep.Size())
	}

	return size
}
