package mach

import (
	"strings"
)

// UnitKind distinguishes regular function units from the control unit.
type UnitKind int

const (
	// RegularUnit is an ordinary function unit.
	RegularUnit UnitKind = iota
	// ControlUnit executes control flow operations and owns the
	// return-address register.
	ControlUnit
)

// String returns the kind name.
func (k UnitKind) String() string {
	switch k {
	case ControlUnit:
		return "control"
	default:
		return "regular"
	}
}

// FunctionUnit is a hardware block that executes operations through its
// ports.
type FunctionUnit struct {
	Name string
	Kind UnitKind

	ports         []*Port
	operations    []*HWOperation
	opIndex       map[string]*HWOperation
	elements      []string
	returnAddress *Port
}

// NewFunctionUnit creates a regular function unit.
func NewFunctionUnit(name string) *FunctionUnit {
	return &FunctionUnit{
		Name:    name,
		Kind:    RegularUnit,
		opIndex: make(map[string]*HWOperation),
	}
}

// NewControlUnit creates a control unit with a return-address port.
func NewControlUnit(name, raPort string) *FunctionUnit {
	fu := NewFunctionUnit(name)
	fu.Kind = ControlUnit

	ra := &Port{Name: raPort, Unit: fu, specialRegister: true}
	ra.InputSocket = &Socket{Name: name + "." + raPort + ".i", Port: ra}
	ra.OutputSocket = &Socket{Name: name + "." + raPort + ".o", Port: ra}
	fu.ports = append(fu.ports, ra)
	fu.returnAddress = ra

	return fu
}

// AddInputPort adds an operand port.
func (fu *FunctionUnit) AddInputPort(name string, opts ...PortOption) *Port {
	p := &Port{Name: name, Unit: fu}
	for _, opt := range opts {
		opt(p)
	}
	p.InputSocket = &Socket{Name: fu.Name + "." + name + ".i", Port: p}
	fu.ports = append(fu.ports, p)

	return p
}

// AddOutputPort adds a result port.
func (fu *FunctionUnit) AddOutputPort(name string, opts ...PortOption) *Port {
	p := &Port{Name: name, Unit: fu}
	for _, opt := range opts {
		opt(p)
	}
	p.triggering = false
	p.opcodeSetting = false
	p.OutputSocket = &Socket{Name: fu.Name + "." + name + ".o", Port: p}
	fu.ports = append(fu.ports, p)

	return p
}

// AddPipelineElement adds an internal pipeline element.
func (fu *FunctionUnit) AddPipelineElement(name string) {
	fu.elements = append(fu.elements, name)
}

// AddOperation adds an operation binding. Operation names are matched
// case-insensitively.
func (fu *FunctionUnit) AddOperation(name string) *HWOperation {
	op := &HWOperation{
		Name:     strings.ToUpper(name),
		Unit:     fu,
		bindings: make(map[int]*Port),
		latency:  make(map[int]int),
		slack:    make(map[int]int),
	}
	fu.operations = append(fu.operations, op)
	fu.opIndex[strings.ToLower(name)] = op

	return op
}

// Operation looks up an operation by name, ignoring case.
func (fu *FunctionUnit) Operation(name string) *HWOperation {
	return fu.opIndex[strings.ToLower(name)]
}

// HasOperation returns true if the unit implements the operation.
func (fu *FunctionUnit) HasOperation(name string) bool {
	return fu.Operation(name) != nil
}

// Operations returns the operation bindings in insertion order.
func (fu *FunctionUnit) Operations() []*HWOperation {
	return fu.operations
}

// Ports returns all ports of the unit.
func (fu *FunctionUnit) Ports() []*Port {
	return fu.ports
}

// Port finds a port by name.
func (fu *FunctionUnit) Port(name string) *Port {
	for _, p := range fu.ports {
		if p.Name == name {
			return p
		}
	}

	return nil
}

// InputPorts returns the ports moves can write, excluding the
// return-address port.
func (fu *FunctionUnit) InputPorts() []*Port {
	var ports []*Port
	for _, p := range fu.ports {
		if p.IsInput() && !p.IsSpecialRegister() {
			ports = append(ports, p)
		}
	}

	return ports
}

// OutputPorts returns the ports moves can read, excluding the
// return-address port.
func (fu *FunctionUnit) OutputPorts() []*Port {
	var ports []*Port
	for _, p := range fu.ports {
		if p.IsOutput() && !p.IsSpecialRegister() {
			ports = append(ports, p)
		}
	}

	return ports
}

// PipelineElements returns the internal pipeline element names.
func (fu *FunctionUnit) PipelineElements() []string {
	return fu.elements
}

// HasSpecialRegisterPort returns true if the unit owns the
// return-address register.
func (fu *FunctionUnit) HasSpecialRegisterPort() bool {
	return fu.returnAddress != nil
}

// ReturnAddressPort returns the return-address port, or nil.
func (fu *FunctionUnit) ReturnAddressPort() *Port {
	return fu.returnAddress
}

// MaxLatency is the longest output latency or pipeline length over all
// operations.
func (fu *FunctionUnit) MaxLatency() int {
	maxLat := 0
	for _, op := range fu.operations {
		if l := op.MaxLatency(); l > maxLat {
			maxLat = l
		}
		if l := op.PipelineLength(); l > maxLat {
			maxLat = l
		}
	}

	return maxLat
}
