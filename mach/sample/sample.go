// Package sample provides small machine descriptions used by tests and by
// the ttasched driver.
package sample

import (
	"fmt"

	"github.com/sarchlab/ttasched/mach"
)

// Option is a functional option for configuring the sample machine.
type Option func(*builder)

type builder struct {
	alus          int
	registerless  bool
	withDivider   bool
	withoutGCU    bool
	operandSlack  int
	addLatency    int
	multiplyStage int
}

// WithALUs sets the number of ALUs. Default: 2.
func WithALUs(n int) Option {
	return func(b *builder) {
		b.alus = n
	}
}

// WithRegisterlessALUs makes every ALU port unbuffered.
func WithRegisterlessALUs() Option {
	return func(b *builder) {
		b.registerless = true
	}
}

// WithOperandSlack sets the slack of the non-triggering ALU operand.
func WithOperandSlack(cycles int) Option {
	return func(b *builder) {
		b.operandSlack = cycles
	}
}

// WithADDLatency sets the ALU result latency. Default: 1.
func WithADDLatency(cycles int) Option {
	return func(b *builder) {
		b.addLatency = cycles
	}
}

// WithDivider adds a non-pipelined divider unit.
func WithDivider() Option {
	return func(b *builder) {
		b.withDivider = true
	}
}

// WithoutControlUnit omits the control unit.
func WithoutControlUnit() Option {
	return func(b *builder) {
		b.withoutGCU = true
	}
}

// NewMachine builds the sample machine: ALUs, a pipelined multiplier, a
// load-store unit and a control unit.
func NewMachine(opts ...Option) *mach.Machine {
	b := &builder{
		alus:          2,
		addLatency:    1,
		multiplyStage: 3,
	}
	for _, opt := range opts {
		opt(b)
	}

	m := mach.NewMachine("sample")
	for i := 0; i < b.alus; i++ {
		m.AddUnit(b.alu(fmt.Sprintf("ALU%d", i)))
	}
	m.AddUnit(b.multiplier())
	m.AddUnit(loadStoreUnit())
	if b.withDivider {
		m.AddUnit(divider())
	}
	if !b.withoutGCU {
		m.AddUnit(controlUnit())
	}

	return m
}

func (b *builder) alu(name string) *mach.FunctionUnit {
	var portOpts []mach.PortOption
	if b.registerless {
		portOpts = append(portOpts, mach.NoRegister())
	}

	fu := mach.NewFunctionUnit(name)
	in1 := fu.AddInputPort("in1", portOpts...)
	in2 := fu.AddInputPort("in2t", append(portOpts, mach.Triggering())...)
	out := fu.AddOutputPort("out1", portOpts...)
	fu.AddPipelineElement("adder")

	for _, opName := range []string{"ADD", "SUB", "AND", "IOR", "XOR", "EQ"} {
		fu.AddOperation(opName).
			Bind(1, in1).Bind(2, in2).Bind(3, out).
			SetSlack(1, b.operandSlack).
			SetLatency(3, b.addLatency).
			Use("adder", 0, 1)
	}

	return fu
}

func (b *builder) multiplier() *mach.FunctionUnit {
	fu := mach.NewFunctionUnit("MUL")
	in1 := fu.AddInputPort("in1")
	in2 := fu.AddInputPort("in2t", mach.Triggering())
	out := fu.AddOutputPort("out1")

	op := fu.AddOperation("MUL").
		Bind(1, in1).Bind(2, in2).Bind(3, out).
		SetLatency(3, b.multiplyStage)
	for i := 0; i < b.multiplyStage; i++ {
		stage := fmt.Sprintf("m%d", i)
		fu.AddPipelineElement(stage)
		op.Use(stage, i, 1)
	}

	return fu
}

func divider() *mach.FunctionUnit {
	fu := mach.NewFunctionUnit("DIV")
	in1 := fu.AddInputPort("in1")
	in2 := fu.AddInputPort("in2t", mach.Triggering())
	out := fu.AddOutputPort("out1")
	fu.AddPipelineElement("div")

	fu.AddOperation("DIV").
		Bind(1, in1).Bind(2, in2).Bind(3, out).
		SetLatency(3, 4).
		Use("div", 0, 4)

	return fu
}

func loadStoreUnit() *mach.FunctionUnit {
	fu := mach.NewFunctionUnit("LSU")
	addr := fu.AddInputPort("in1t", mach.Triggering())
	data := fu.AddInputPort("in2")
	out := fu.AddOutputPort("out1")
	fu.AddPipelineElement("mem")

	fu.AddOperation("LDW").
		Bind(1, addr).Bind(2, out).
		SetLatency(2, 3).
		Use("mem", 0, 1)
	fu.AddOperation("STW").
		Bind(1, addr).Bind(2, data).
		Use("mem", 0, 1)

	return fu
}

func controlUnit() *mach.FunctionUnit {
	fu := mach.NewControlUnit("gcu", "ra")
	pc := fu.AddInputPort("pc", mach.Triggering())

	fu.AddOperation("JUMP").Bind(1, pc)
	fu.AddOperation("CALL").Bind(1, pc)

	return fu
}
