package program

import (
	"fmt"
	"strings"

	"github.com/sarchlab/ttasched/mach"
)

// TerminalKind tells what a move reads or writes.
type TerminalKind int

const (
	// TerminalRegister is a general purpose register.
	TerminalRegister TerminalKind = iota
	// TerminalImmediate is a constant. It can only be a move source.
	TerminalImmediate
	// TerminalFUPort is an operand or result port of a function unit.
	TerminalFUPort
)

// Terminal is one end of a move.
//
// A function-unit port terminal is abstract while only its operation and
// operand index are known, and bound once a broker has picked the unit,
// the hardware operation and the port.
type Terminal struct {
	Kind TerminalKind

	Register string
	Value    int64

	Operation    *Operation
	OperandIndex int

	// Special marks the return-address register of the control unit.
	Special bool

	Unit        *mach.FunctionUnit
	HWOperation *mach.HWOperation
	Port        *mach.Port
}

// NewRegister creates a register terminal.
func NewRegister(name string) Terminal {
	return Terminal{Kind: TerminalRegister, Register: name}
}

// NewImmediate creates an immediate source terminal.
func NewImmediate(value int64) Terminal {
	return Terminal{Kind: TerminalImmediate, Value: value}
}

// NewAbstractFUPort creates an unbound operand or result terminal of the
// given operation.
func NewAbstractFUPort(op *Operation, operandIndex int) Terminal {
	return Terminal{
		Kind:         TerminalFUPort,
		Operation:    op,
		OperandIndex: operandIndex,
	}
}

// NewBoundFUPort creates a terminal bound to an operand of a hardware
// operation.
func NewBoundFUPort(
	op *Operation,
	hwOp *mach.HWOperation,
	operandIndex int,
) Terminal {
	return Terminal{
		Kind:         TerminalFUPort,
		Operation:    op,
		OperandIndex: operandIndex,
		Unit:         hwOp.Unit,
		HWOperation:  hwOp,
		Port:         hwOp.Port(operandIndex),
	}
}

// NewReturnAddress creates an unbound return-address terminal.
func NewReturnAddress() Terminal {
	return Terminal{Kind: TerminalFUPort, Special: true}
}

// NewBoundReturnAddress binds a return-address terminal to the control
// unit.
func NewBoundReturnAddress(cu *mach.FunctionUnit) Terminal {
	return Terminal{
		Kind:    TerminalFUPort,
		Special: true,
		Unit:    cu,
		Port:    cu.ReturnAddressPort(),
	}
}

// Unbound returns the abstract form of a bound port terminal. Other
// terminals are returned unchanged.
func (t Terminal) Unbound() Terminal {
	switch {
	case !t.IsFUPort():
		return t
	case t.Special:
		return NewReturnAddress()
	}

	return NewAbstractFUPort(t.Operation, t.OperandIndex)
}

// IsFUPort returns true for function-unit port terminals.
func (t Terminal) IsFUPort() bool {
	return t.Kind == TerminalFUPort
}

// IsBound returns true if the terminal refers to a concrete port.
func (t Terminal) IsBound() bool {
	return t.Port != nil
}

// IsTriggering returns true if the terminal is bound to a triggering port.
func (t Terminal) IsTriggering() bool {
	return t.Port != nil && t.Port.IsTriggering()
}

// IsOpcodeSetting returns true if the terminal is bound to an opcode
// setting port.
func (t Terminal) IsOpcodeSetting() bool {
	return t.Port != nil && t.Port.IsOpcodeSetting()
}

// String returns a readable form of the terminal.
func (t Terminal) String() string {
	switch t.Kind {
	case TerminalRegister:
		return t.Register
	case TerminalImmediate:
		return fmt.Sprintf("#%d", t.Value)
	}

	if t.Special {
		if t.Unit != nil {
			return t.Unit.Name + ".ra"
		}
		return "ra"
	}

	opName := "?"
	if t.Operation != nil {
		opName = strings.ToLower(t.Operation.Name)
	}
	if t.Port != nil {
		return fmt.Sprintf("%s.%s.%d", t.Unit.Name, opName, t.OperandIndex)
	}

	return fmt.Sprintf("%s.%d", opName, t.OperandIndex)
}
