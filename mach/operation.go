package mach

import (
	"sort"
)

// ResourceUsage reserves an internal pipeline element of a function unit
// for Duration cycles, starting Cycle cycles after the trigger.
type ResourceUsage struct {
	Element  string
	Cycle    int
	Duration int
}

// HWOperation is the binding of one operation to a function unit. Operand
// indices start at 1. Inputs come first, outputs follow.
type HWOperation struct {
	Name string
	Unit *FunctionUnit

	bindings map[int]*Port
	latency  map[int]int
	slack    map[int]int
	usages   []ResourceUsage
}

// Bind binds an operand index to a port of the unit.
func (o *HWOperation) Bind(index int, port *Port) *HWOperation {
	o.bindings[index] = port
	return o
}

// SetLatency sets the number of cycles after the trigger at which the
// given output becomes readable.
func (o *HWOperation) SetLatency(index, cycles int) *HWOperation {
	o.latency[index] = cycles
	return o
}

// SetSlack sets how many cycles after the trigger the given input is
// consumed.
func (o *HWOperation) SetSlack(index, cycles int) *HWOperation {
	o.slack[index] = cycles
	return o
}

// Use adds a pipeline element reservation to the operation template.
func (o *HWOperation) Use(element string, cycle, duration int) *HWOperation {
	o.usages = append(o.usages, ResourceUsage{
		Element:  element,
		Cycle:    cycle,
		Duration: duration,
	})
	return o
}

// Port returns the port bound to the operand index, or nil.
func (o *HWOperation) Port(index int) *Port {
	return o.bindings[index]
}

// IsBound returns true if the operand index has a port.
func (o *HWOperation) IsBound(index int) bool {
	_, ok := o.bindings[index]
	return ok
}

// OperandIndex returns the lowest operand index bound to the port.
func (o *HWOperation) OperandIndex(port *Port) (int, bool) {
	for _, idx := range o.boundIndices() {
		if o.bindings[idx] == port {
			return idx, true
		}
	}

	return 0, false
}

// Latency returns the latency of an output operand.
func (o *HWOperation) Latency(index int) int {
	return o.latency[index]
}

// Slack returns the slack of an input operand.
func (o *HWOperation) Slack(index int) int {
	return o.slack[index]
}

// Usages returns the pipeline template.
func (o *HWOperation) Usages() []ResourceUsage {
	return o.usages
}

// InputIndices returns the sorted operand indices bound to input ports.
func (o *HWOperation) InputIndices() []int {
	var indices []int
	for _, idx := range o.boundIndices() {
		if o.bindings[idx].IsInput() && !o.isOutputIndex(idx) {
			indices = append(indices, idx)
		}
	}

	return indices
}

// OutputIndices returns the sorted operand indices that produce results.
func (o *HWOperation) OutputIndices() []int {
	var indices []int
	for _, idx := range o.boundIndices() {
		if o.isOutputIndex(idx) {
			indices = append(indices, idx)
		}
	}

	return indices
}

// TriggerIndex returns the operand index bound to a triggering port.
func (o *HWOperation) TriggerIndex() (int, bool) {
	for _, idx := range o.InputIndices() {
		if o.bindings[idx].IsTriggering() {
			return idx, true
		}
	}

	return 0, false
}

// PipelineLength is the number of cycles from the trigger until the last
// pipeline element reservation ends.
func (o *HWOperation) PipelineLength() int {
	length := 0
	for _, u := range o.usages {
		if end := u.Cycle + u.Duration; end > length {
			length = end
		}
	}

	return length
}

// MaxLatency is the longest output latency.
func (o *HWOperation) MaxLatency() int {
	maxLat := 0
	for _, lat := range o.latency {
		if lat > maxLat {
			maxLat = lat
		}
	}

	return maxLat
}

func (o *HWOperation) isOutputIndex(idx int) bool {
	_, ok := o.latency[idx]
	if ok {
		return true
	}

	p := o.bindings[idx]
	return p != nil && p.IsOutput() && !p.IsInput()
}

func (o *HWOperation) boundIndices() []int {
	indices := make([]int, 0, len(o.bindings))
	for idx := range o.bindings {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	return indices
}
