package program_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/mach/sample"
	"github.com/sarchlab/ttasched/program"
)

var _ = Describe("Program", func() {
	var (
		m       *mach.Machine
		addOp   *program.Operation
		po      *program.ProgramOperation
		in1     *program.MoveNode
		in2     *program.MoveNode
		out     *program.MoveNode
		hwAdd   *mach.HWOperation
		nextID  int
		newNode func(src, dst program.Terminal) *program.MoveNode
	)

	BeforeEach(func() {
		m = sample.NewMachine(sample.WithADDLatency(2))
		hwAdd = m.Unit("ALU0").Operation("add")
		addOp = program.NewOperation("ADD", 2, 1)
		nextID = 0
		newNode = func(src, dst program.Terminal) *program.MoveNode {
			nextID++
			return program.NewMoveNode(nextID, program.NewMove(src, dst))
		}

		po = program.NewProgramOperation(1, addOp)
		in1 = newNode(program.NewRegister("r1"),
			program.NewAbstractFUPort(addOp, 1))
		in2 = newNode(program.NewImmediate(4),
			program.NewAbstractFUPort(addOp, 2))
		out = newNode(program.NewAbstractFUPort(addOp, 3),
			program.NewRegister("r3"))
	})

	Describe("ProgramOperation", func() {
		It("should not be complete without all moves", func() {
			po.AddInputNode(in1)
			po.AddInputNode(in2)
			Expect(po.IsComplete()).To(BeFalse())

			po.AddOutputNode(out)
			Expect(po.IsComplete()).To(BeTrue())
		})

		It("should link nodes back to the operation", func() {
			po.AddInputNode(in1)
			po.AddOutputNode(out)

			Expect(in1.IsDestinationOperation()).To(BeTrue())
			Expect(in1.DestinationOperation()).To(BeIdenticalTo(po))
			Expect(out.IsSourceOperation()).To(BeTrue())
			Expect(out.SourceOperation()).To(BeIdenticalTo(po))
			Expect(po.Moves()).To(Equal([]*program.MoveNode{in1, out}))
		})

		It("should find the trigger only once bound", func() {
			po.AddInputNode(in1)
			po.AddInputNode(in2)
			Expect(po.TriggeringMove()).To(BeNil())

			in2.Move.Destination = program.NewBoundFUPort(addOp, hwAdd, 2)
			Expect(po.TriggeringMove()).To(BeIdenticalTo(in2))
		})

		It("should collect bound units", func() {
			po.AddInputNode(in1)
			po.AddInputNode(in2)
			po.AddOutputNode(out)
			Expect(po.BoundUnits(nil)).To(BeEmpty())

			in1.Move.Destination = program.NewBoundFUPort(addOp, hwAdd, 1)
			Expect(po.BoundUnits(nil)).To(ConsistOf(hwAdd.Unit))
			Expect(po.BoundUnits(in1)).To(BeEmpty())

			other := m.Unit("ALU1").Operation("add")
			out.Move.Source = program.NewBoundFUPort(addOp, other, 3)
			Expect(po.BoundUnits(nil)).To(HaveLen(2))
		})

		It("should drop cycles and bindings on reset", func() {
			po.AddInputNode(in1)
			po.AddInputNode(in2)
			po.AddOutputNode(out)
			in1.Move.Destination = program.NewBoundFUPort(addOp, hwAdd, 1)
			out.Move.Source = program.NewBoundFUPort(addOp, hwAdd, 3)
			in1.SetCycle(2)
			out.SetCycle(5)

			po.Reset()

			Expect(po.BoundUnits(nil)).To(BeEmpty())
			Expect(in1.IsScheduled()).To(BeFalse())
			Expect(out.IsScheduled()).To(BeFalse())
			Expect(in1.Move.Destination).To(Equal(program.NewAbstractFUPort(addOp, 1)))
			Expect(out.Move.Source).To(Equal(program.NewAbstractFUPort(addOp, 3)))
			Expect(in1.Move.Source).To(Equal(program.NewRegister("r1")))
		})
	})

	Describe("Timing helpers", func() {
		BeforeEach(func() {
			po.AddInputNode(in1)
			po.AddInputNode(in2)
			po.AddOutputNode(out)
		})

		It("should report unknown cycles as MaxInt", func() {
			Expect(out.EarliestResultReadCycle(hwAdd)).To(Equal(math.MaxInt))
			Expect(po.LatestTriggerWriteCycle(hwAdd)).To(Equal(math.MaxInt))
		})

		It("should derive the result cycle from the trigger", func() {
			in2.Move.Destination = program.NewBoundFUPort(addOp, hwAdd, 2)
			in2.SetCycle(5)
			Expect(out.EarliestResultReadCycle(hwAdd)).To(Equal(7))
		})

		It("should derive the latest trigger from the reads", func() {
			out.SetCycle(10)
			Expect(po.LatestTriggerWriteCycle(hwAdd)).To(Equal(8))

			out.Unschedule()
			Expect(out.IsScheduled()).To(BeFalse())
			Expect(po.LatestTriggerWriteCycle(hwAdd)).To(Equal(math.MaxInt))
		})
	})

	Describe("Guard", func() {
		It("should detect opposite guards", func() {
			p := &program.Guard{Register: "b0"}
			Expect(p.IsOpposite(p.Not())).To(BeTrue())
			Expect(p.IsOpposite(&program.Guard{Register: "b0"})).To(BeFalse())
			Expect(p.IsOpposite(&program.Guard{Register: "b1", Inverted: true})).
				To(BeFalse())
			Expect(p.IsOpposite(nil)).To(BeFalse())
		})

		It("should print the polarity", func() {
			p := &program.Guard{Register: "b0"}
			Expect(p.String()).To(Equal("?b0"))
			Expect(p.Not().String()).To(Equal("!b0"))
		})
	})

	Describe("Move", func() {
		It("should keep annotations per kind", func() {
			mv := in1.Move
			Expect(mv.HasAnnotations(program.AnnCandidateUnitDst)).To(BeFalse())

			mv.Annotate(program.AnnCandidateUnitDst, "ALU1")
			Expect(mv.Annotations(program.AnnCandidateUnitDst)).
				To(Equal([]string{"ALU1"}))
			Expect(mv.HasAnnotations(program.AnnRejectedUnitDst)).To(BeFalse())
		})

		It("should print terminals", func() {
			Expect(in1.Move.String()).To(Equal("r1 -> add.1"))
			in1.Move.Guard = &program.Guard{Register: "b0", Inverted: true}
			Expect(in1.Move.String()).To(Equal("!b0 r1 -> add.1"))
		})
	})

	Describe("Terminal", func() {
		It("should bind to the hardware port", func() {
			t := program.NewBoundFUPort(addOp, hwAdd, 2)
			Expect(t.IsBound()).To(BeTrue())
			Expect(t.IsTriggering()).To(BeTrue())
			Expect(t.IsOpcodeSetting()).To(BeTrue())
			Expect(t.Unit.Name).To(Equal("ALU0"))
			Expect(t.String()).To(Equal("ALU0.add.2"))
		})

		It("should bind the return address to the control unit", func() {
			t := program.NewBoundReturnAddress(m.ControlUnit())
			Expect(t.Special).To(BeTrue())
			Expect(t.Port.IsSpecialRegister()).To(BeTrue())
			Expect(t.IsTriggering()).To(BeFalse())
		})

		It("should unbind to the abstract form", func() {
			Expect(program.NewBoundFUPort(addOp, hwAdd, 2).Unbound()).
				To(Equal(program.NewAbstractFUPort(addOp, 2)))
			Expect(program.NewBoundReturnAddress(m.ControlUnit()).Unbound()).
				To(Equal(program.NewReturnAddress()))
			Expect(program.NewImmediate(4).Unbound()).
				To(Equal(program.NewImmediate(4)))
		})
	})
})
