package mach

// Socket connects a port to the transport buses. The scheduler tracks
// socket occupancy per cycle.
type Socket struct {
	Name string
	Port *Port
}

// Port is an operand or result port of a function unit.
type Port struct {
	Name string
	Unit *FunctionUnit

	// InputSocket is set on ports that can be written by moves.
	InputSocket *Socket
	// OutputSocket is set on ports that can be read by moves.
	OutputSocket *Socket

	triggering      bool
	opcodeSetting   bool
	noRegister      bool
	specialRegister bool
}

// PortOption is a functional option for configuring a Port.
type PortOption func(*Port)

// Triggering marks the port as the one that starts an operation when
// written. A triggering port is also opcode setting.
func Triggering() PortOption {
	return func(p *Port) {
		p.triggering = true
		p.opcodeSetting = true
	}
}

// OpcodeSetting marks the port as selecting the operation.
func OpcodeSetting() PortOption {
	return func(p *Port) {
		p.opcodeSetting = true
	}
}

// NoRegister marks the port as unbuffered. A value on a register-less
// port exists only in the cycle it is written or produced.
func NoRegister() PortOption {
	return func(p *Port) {
		p.noRegister = true
	}
}

// IsInput returns true if moves can write the port.
func (p *Port) IsInput() bool {
	return p.InputSocket != nil
}

// IsOutput returns true if moves can read the port.
func (p *Port) IsOutput() bool {
	return p.OutputSocket != nil
}

// IsTriggering returns true if writing the port starts an operation.
func (p *Port) IsTriggering() bool {
	return p.triggering
}

// IsOpcodeSetting returns true if writing the port selects the operation.
func (p *Port) IsOpcodeSetting() bool {
	return p.opcodeSetting
}

// NoRegister returns true if the port does not hold its value.
func (p *Port) NoRegister() bool {
	return p.noRegister
}

// IsSpecialRegister returns true for the return-address port of the
// control unit.
func (p *Port) IsSpecialRegister() bool {
	return p.specialRegister
}

// String returns "unit.port".
func (p *Port) String() string {
	if p.Unit == nil {
		return p.Name
	}

	return p.Unit.Name + "." + p.Name
}
