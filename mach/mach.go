// Package mach describes the static structure of a TTA processor: function
// units, their ports and sockets, and the operations they implement. The
// model is read-only once built.
package mach

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Machine is a set of function units with at most one control unit.
type Machine struct {
	Name string

	units   []*FunctionUnit
	control *FunctionUnit
}

// NewMachine creates an empty machine.
func NewMachine(name string) *Machine {
	return &Machine{Name: name}
}

// AddUnit adds a function unit. A control unit replaces any previously
// added one.
func (m *Machine) AddUnit(fu *FunctionUnit) {
	if fu.Kind == ControlUnit {
		m.control = fu
		return
	}

	m.units = append(m.units, fu)
}

// FunctionUnits returns the regular function units.
func (m *Machine) FunctionUnits() []*FunctionUnit {
	return m.units
}

// ControlUnit returns the control unit, or nil.
func (m *Machine) ControlUnit() *FunctionUnit {
	return m.control
}

// Units returns all units, the control unit last.
func (m *Machine) Units() []*FunctionUnit {
	units := make([]*FunctionUnit, 0, len(m.units)+1)
	units = append(units, m.units...)
	if m.control != nil {
		units = append(units, m.control)
	}

	return units
}

// Unit finds a unit by name.
func (m *Machine) Unit(name string) *FunctionUnit {
	for _, fu := range m.Units() {
		if fu.Name == name {
			return fu
		}
	}

	return nil
}

// Sockets returns every socket of every unit.
func (m *Machine) Sockets() []*Socket {
	var sockets []*Socket
	for _, fu := range m.Units() {
		for _, p := range fu.Ports() {
			if p.InputSocket != nil {
				sockets = append(sockets, p.InputSocket)
			}
			if p.OutputSocket != nil {
				sockets = append(sockets, p.OutputSocket)
			}
		}
	}

	return sockets
}

// Validate reports every inconsistency in the machine description.
func (m *Machine) Validate() error {
	var result *multierror.Error

	names := make(map[string]bool)
	for _, fu := range m.Units() {
		if names[fu.Name] {
			result = multierror.Append(result,
				fmt.Errorf("duplicate unit name %q", fu.Name))
		}
		names[fu.Name] = true

		for _, op := range fu.Operations() {
			if err := validateOperation(fu, op); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	return result.ErrorOrNil()
}

func validateOperation(fu *FunctionUnit, op *HWOperation) error {
	var result *multierror.Error

	elements := make(map[string]bool)
	for _, e := range fu.PipelineElements() {
		elements[e] = true
	}

	for _, idx := range op.boundIndices() {
		p := op.Port(idx)
		if p.Unit != fu {
			result = multierror.Append(result, fmt.Errorf(
				"%s.%s: operand %d bound to foreign port %s",
				fu.Name, op.Name, idx, p))
		}
	}

	triggers := 0
	for _, idx := range op.InputIndices() {
		if op.Port(idx).IsTriggering() {
			triggers++
		}
		if op.Slack(idx) < 0 {
			result = multierror.Append(result, fmt.Errorf(
				"%s.%s: negative slack on operand %d", fu.Name, op.Name, idx))
		}
	}
	if triggers != 1 {
		result = multierror.Append(result, fmt.Errorf(
			"%s.%s: expected one triggering operand, found %d",
			fu.Name, op.Name, triggers))
	}

	for _, idx := range op.OutputIndices() {
		if !op.IsBound(idx) || !op.Port(idx).IsOutput() {
			result = multierror.Append(result, fmt.Errorf(
				"%s.%s: output %d is not bound to a result port",
				fu.Name, op.Name, idx))
		}
		if op.Latency(idx) < 1 {
			result = multierror.Append(result, fmt.Errorf(
				"%s.%s: output %d latency must be > 0", fu.Name, op.Name, idx))
		}
	}

	for _, u := range op.Usages() {
		if !elements[u.Element] {
			result = multierror.Append(result, fmt.Errorf(
				"%s.%s: unknown pipeline element %q", fu.Name, op.Name, u.Element))
		}
		if u.Cycle < 0 || u.Duration < 1 {
			result = multierror.Append(result, fmt.Errorf(
				"%s.%s: invalid usage of %q at %d for %d cycles",
				fu.Name, op.Name, u.Element, u.Cycle, u.Duration))
		}
	}

	return result.ErrorOrNil()
}
