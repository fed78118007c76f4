// Package resource provides the scheduling resources of a TTA processor:
// the execution pipeline of every function unit, the operand and result
// views of the units and the port sockets. Resources keep cycle indexed
// reservation tables that can be modulo wrapped with an initiation
// interval.
package resource

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ttasched/program"
)

var (
	// ErrWrongUsage is returned when a caller breaks the contract of a
	// resource or broker.
	ErrWrongUsage = errors.New("wrong usage")

	// ErrNotFound is returned when the machine description lacks data the
	// resource model needs.
	ErrNotFound = errors.New("not found")
)

// SchedulingResource is a resource that moves can be assigned to.
type SchedulingResource interface {
	Name() string
	IsInUse(cycle int) bool
	IsAvailable(cycle int) bool
	Clear()

	DependentResourceGroupCount() int
	DependentResourceGroup(group int) []SchedulingResource
	RelatedResourceGroupCount() int
	RelatedResourceGroup(group int) []SchedulingResource
}

// ExclusivityOracle tells whether two moves are guarded by exclusive
// conditions.
type ExclusivityOracle interface {
	ExclusiveGuards(a, b *program.MoveNode) bool
}

// Base implements the naming, linking and cycle indexing shared by all
// resources.
type Base struct {
	name      string
	ii        int
	dependent [][]SchedulingResource
	related   [][]SchedulingResource
}

// NewBase creates a Base. An initiation interval <= 0 disables modulo
// wrapping.
func NewBase(name string, ii int) Base {
	return Base{name: name, ii: ii}
}

// Name returns the resource name.
func (b *Base) Name() string {
	return b.name
}

// InitiationInterval returns the initiation interval.
func (b *Base) InitiationInterval() int {
	return b.ii
}

// InstructionIndex maps a cycle to the table row that holds it.
func (b *Base) InstructionIndex(cycle int) int {
	if b.ii <= 0 {
		return cycle
	}

	idx := cycle % b.ii
	if idx < 0 {
		idx += b.ii
	}

	return idx
}

// AddToDependentGroup links a resource that must be assigned together
// with this one.
func (b *Base) AddToDependentGroup(group int, r SchedulingResource) {
	for len(b.dependent) <= group {
		b.dependent = append(b.dependent, nil)
	}
	b.dependent[group] = append(b.dependent[group], r)
}

// DependentResourceGroupCount returns the number of dependent groups.
func (b *Base) DependentResourceGroupCount() int {
	return len(b.dependent)
}

// DependentResourceGroup returns a dependent group.
func (b *Base) DependentResourceGroup(group int) []SchedulingResource {
	if group >= len(b.dependent) {
		return nil
	}

	return b.dependent[group]
}

// HasDependentResource returns true if r is in any dependent group.
func (b *Base) HasDependentResource(r SchedulingResource) bool {
	return inGroups(b.dependent, r)
}

// AddToRelatedGroup links a resource that constrains this one.
func (b *Base) AddToRelatedGroup(group int, r SchedulingResource) {
	for len(b.related) <= group {
		b.related = append(b.related, nil)
	}
	b.related[group] = append(b.related[group], r)
}

// RelatedResourceGroupCount returns the number of related groups.
func (b *Base) RelatedResourceGroupCount() int {
	return len(b.related)
}

// RelatedResourceGroup returns a related group.
func (b *Base) RelatedResourceGroup(group int) []SchedulingResource {
	if group >= len(b.related) {
		return nil
	}

	return b.related[group]
}

// HasRelatedResource returns true if r is in any related group.
func (b *Base) HasRelatedResource(r SchedulingResource) bool {
	return inGroups(b.related, r)
}

func inGroups(groups [][]SchedulingResource, r SchedulingResource) bool {
	for _, g := range groups {
		for _, x := range g {
			if x == r {
				return true
			}
		}
	}

	return false
}

// Set is an insertion ordered set of resources.
type Set struct {
	items []SchedulingResource
	index map[SchedulingResource]bool
}

// NewSet creates a set holding the given resources.
func NewSet(rs ...SchedulingResource) *Set {
	s := &Set{index: make(map[SchedulingResource]bool)}
	for _, r := range rs {
		s.Insert(r)
	}

	return s
}

// Insert adds r if it is not in the set.
func (s *Set) Insert(r SchedulingResource) {
	if s.index[r] {
		return
	}

	s.index[r] = true
	s.items = append(s.items, r)
}

// Has returns true if r is in the set.
func (s *Set) Has(r SchedulingResource) bool {
	return s.index[r]
}

// Count returns the number of resources.
func (s *Set) Count() int {
	return len(s.items)
}

// Resources returns the resources in insertion order.
func (s *Set) Resources() []SchedulingResource {
	return s.items
}

// Names returns the resource names in insertion order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.items))
	for _, r := range s.items {
		names = append(names, r.Name())
	}

	return names
}
