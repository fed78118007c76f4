package resource_test

import (
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ttasched/ddg"
	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/mach/sample"
	"github.com/sarchlab/ttasched/program"
	"github.com/sarchlab/ttasched/resource"
)

type recordingHook struct {
	positions []*sim.HookPos
	items     []any
}

func (h *recordingHook) Func(ctx sim.HookCtx) {
	h.positions = append(h.positions, ctx.Pos)
	h.items = append(h.items, ctx.Item)
}

var _ = Describe("ExecutionPipelineResource", func() {
	var (
		m     *mach.Machine
		alu   *mach.FunctionUnit
		hwAdd *mach.HWOperation
		addOp *program.Operation
		ep    *resource.ExecutionPipelineResource
	)

	useMachine := func(opts ...sample.Option) {
		m = sample.NewMachine(opts...)
		alu = m.Unit("ALU0")
		hwAdd = alu.Operation("ADD")
		ep = resource.NewExecutionPipelineResource(alu, 0)
	}

	newAdd := func(id int, guard *program.Guard) twoInputOp {
		return newTwoInputOp(id, addOp, hwAdd, guard)
	}

	BeforeEach(func() {
		addOp = program.NewOperation("ADD", 2, 1)
		useMachine()
	})

	It("should start empty", func() {
		Expect(ep.Name()).To(Equal("ep_ALU0"))
		Expect(ep.Unit()).To(BeIdenticalTo(alu))
		Expect(ep.Size()).To(Equal(0))
		Expect(ep.HighestKnownCycle()).To(Equal(-1))
		Expect(ep.IsInUse(0)).To(BeFalse())
		Expect(ep.IsAvailable(0)).To(BeTrue())
		Expect(ep.Snapshot()).To(BeEmpty())
	})

	Context("operand timing", func() {
		It("should accept an operand written before its trigger", func() {
			a := newAdd(1, nil)

			Expect(canWrite(ep, 0, a.operand)).To(BeTrue())
			write(ep, 0, a.operand)
			Expect(canWrite(ep, 1, a.trigger)).To(BeTrue())
			write(ep, 1, a.trigger)

			Expect(canRead(ep, 1, a.result)).To(BeFalse())
			Expect(canRead(ep, 2, a.result)).To(BeTrue())
			Expect(ep.EarliestResultReadCycle(a.result)).To(Equal(2))
		})

		It("should reject an operand written after its use", func() {
			a := newAdd(1, nil)
			write(ep, 1, a.trigger)

			Expect(canWrite(ep, 2, a.operand)).To(BeFalse())
			Expect(canWrite(ep, 1, a.operand)).To(BeTrue())
		})

		It("should let an operand lag the trigger within its slack", func() {
			useMachine(sample.WithOperandSlack(1))
			a := newAdd(1, nil)
			write(ep, 1, a.trigger)

			Expect(canWrite(ep, 2, a.operand)).To(BeTrue())
			Expect(canWrite(ep, 3, a.operand)).To(BeFalse())
		})

		It("should trigger an ADD with an operand written in cycle 6 no earlier than cycle 6", func() {
			useMachine(sample.WithADDLatency(2))
			a := newAdd(1, nil)
			write(ep, 6, a.operand)

			Expect(canWrite(ep, 5, a.trigger)).To(BeFalse())
			Expect(canWrite(ep, 6, a.trigger)).To(BeTrue())

			write(ep, 6, a.trigger)
			Expect(ep.EarliestResultReadCycle(a.result)).To(Equal(8))
		})

		It("should not let another operand overwrite a waiting one", func() {
			a := newAdd(1, nil)
			b := newAdd(2, nil)
			write(ep, 0, a.operand)
			write(ep, 2, a.trigger)

			Expect(canWrite(ep, 1, b.operand)).To(BeFalse())
			Expect(canWrite(ep, 2, b.operand)).To(BeFalse())
			Expect(canWrite(ep, 3, b.operand)).To(BeTrue())
		})
	})

	Context("with register-less ports", func() {
		BeforeEach(func() {
			useMachine(sample.WithRegisterlessALUs())
		})

		It("should require operands in their use cycle", func() {
			a := newAdd(1, nil)
			write(ep, 0, a.operand)

			Expect(canWrite(ep, 1, a.trigger)).To(BeFalse())
			Expect(canWrite(ep, 0, a.trigger)).To(BeTrue())
		})

		It("should pin the ADD trigger to cycle 5 for an operand written in cycle 6 with slack 1", func() {
			useMachine(sample.WithRegisterlessALUs(), sample.WithOperandSlack(1))
			a := newAdd(1, nil)
			write(ep, 6, a.operand)

			Expect(canWrite(ep, 6, a.trigger)).To(BeFalse())
			Expect(canWrite(ep, 4, a.trigger)).To(BeFalse())
			Expect(canWrite(ep, 5, a.trigger)).To(BeTrue())
		})

		It("should require results in their ready cycle", func() {
			a := newAdd(1, nil)
			write(ep, 9, a.trigger)

			Expect(ep.EarliestResultReadCycle(a.result)).To(Equal(10))
			Expect(canRead(ep, 9, a.result)).To(BeFalse())
			Expect(canRead(ep, 11, a.result)).To(BeFalse())
			Expect(canRead(ep, 10, a.result)).To(BeTrue())
		})
	})

	Context("results", func() {
		It("should bound the trigger by a placed result read", func() {
			a := newAdd(1, nil)
			Expect(canRead(ep, 5, a.result)).To(BeTrue())
			read(ep, 5, a.result)

			Expect(canWrite(ep, 5, a.trigger)).To(BeFalse())
			Expect(canWrite(ep, 4, a.trigger)).To(BeTrue())

			write(ep, 4, a.trigger)
			Expect(ep.HighestKnownCycle()).To(Equal(5))
			Expect(ep.Verify()).To(Succeed())
		})

		It("should not let another result overwrite a waiting one", func() {
			a := newAdd(1, nil)
			b := newAdd(2, nil)
			write(ep, 1, a.trigger)
			read(ep, 4, a.result)

			Expect(canWrite(ep, 2, b.trigger)).To(BeFalse())
			Expect(canWrite(ep, 3, b.trigger)).To(BeFalse())
			Expect(canWrite(ep, 4, b.trigger)).To(BeTrue())
		})

		It("should not read a port holding another result", func() {
			a := newAdd(1, nil)
			b := newAdd(2, nil)
			write(ep, 1, a.trigger)
			read(ep, 4, a.result)

			Expect(canRead(ep, 3, b.result)).To(BeFalse())
			Expect(canRead(ep, 5, b.result)).To(BeTrue())
		})
	})

	Context("guarded moves", func() {
		var guard *program.Guard

		BeforeEach(func() {
			guard = &program.Guard{Register: "b0"}
		})

		It("should share cells between opposite guards", func() {
			a := newAdd(1, guard)
			b := newAdd(2, guard.Not())
			write(ep, 1, a.trigger)

			Expect(canWrite(ep, 1, b.trigger)).To(BeTrue())
			write(ep, 1, b.trigger)
			Expect(ep.Verify()).To(Succeed())
		})

		It("should not share cells between equal guards", func() {
			a := newAdd(1, guard)
			b := newAdd(2, &program.Guard{Register: "b0"})
			write(ep, 1, a.trigger)

			Expect(canWrite(ep, 1, b.trigger)).To(BeFalse())
		})

		It("should not hold more than two occupants", func() {
			a := newAdd(1, guard)
			b := newAdd(2, guard.Not())
			c := newAdd(3, guard.Not())
			write(ep, 1, a.trigger)
			write(ep, 1, b.trigger)

			Expect(canWrite(ep, 1, c.trigger)).To(BeFalse())
			Expect(ep.IsAvailable(1)).To(BeFalse())
		})

		It("should not share cells in conservative mode", func() {
			ep = resource.NewExecutionPipelineResource(alu, 0,
				resource.WithConservative(true))
			a := newAdd(1, guard)
			b := newAdd(2, guard.Not())
			write(ep, 1, a.trigger)

			Expect(canWrite(ep, 1, b.trigger)).To(BeFalse())
		})

		It("should ask the dependence graph about exclusivity", func() {
			other := &program.Guard{Register: "b1"}
			a := newAdd(1, guard)
			b := newAdd(2, other)
			write(ep, 1, a.trigger)

			Expect(canWrite(ep, 1, b.trigger)).To(BeFalse())

			g := ddg.New()
			g.GuardOracle().AddExclusion(guard, other)
			ep.SetDDG(g)

			Expect(canWrite(ep, 1, b.trigger)).To(BeTrue())
		})
	})

	Context("with an initiation interval", func() {
		BeforeEach(func() {
			ep = resource.NewExecutionPipelineResource(alu, 4)
		})

		It("should wrap rows by the interval", func() {
			a := newAdd(1, nil)
			b := newAdd(2, nil)
			write(ep, 1, a.trigger)

			Expect(ep.IsInUse(5)).To(BeTrue())
			Expect(canWrite(ep, 5, b.trigger)).To(BeFalse())
			Expect(canWrite(ep, 6, b.trigger)).To(BeTrue())
		})

		It("should not wrap without an interval", func() {
			ep = resource.NewExecutionPipelineResource(alu, 0)
			a := newAdd(1, nil)
			b := newAdd(2, nil)
			write(ep, 1, a.trigger)

			Expect(canWrite(ep, 5, b.trigger)).To(BeTrue())
		})

		It("should keep a waiting operand from the next iterations", func() {
			a := newAdd(1, nil)
			b := newAdd(2, nil)
			write(ep, 0, a.operand)
			write(ep, 2, a.trigger)

			Expect(canWrite(ep, 4, b.operand)).To(BeFalse())
			Expect(canWrite(ep, 5, b.operand)).To(BeFalse())
			Expect(canWrite(ep, 6, b.operand)).To(BeFalse())
			Expect(canWrite(ep, 7, b.operand)).To(BeTrue())
		})

		It("should keep a waiting result from the next iterations", func() {
			a := newAdd(1, nil)
			b := newAdd(2, nil)
			write(ep, 1, a.trigger)
			read(ep, 4, a.result)

			Expect(canWrite(ep, 6, b.trigger)).To(BeFalse())
			Expect(canWrite(ep, 7, b.trigger)).To(BeFalse())
			Expect(canWrite(ep, 8, b.trigger)).To(BeTrue())
		})

		It("should limit how long a result waits", func() {
			a := newAdd(1, nil)
			write(ep, 1, a.trigger)

			Expect(canRead(ep, 6, a.result)).To(BeFalse())
			Expect(canRead(ep, 5, a.result)).To(BeTrue())
		})

		It("should reject a template longer than the interval", func() {
			m = sample.NewMachine(sample.WithDivider())
			div := m.Unit("DIV")
			divOp := program.NewOperation("DIV", 2, 1)
			d := newTwoInputOp(1, divOp, div.Operation("DIV"), nil)

			ep = resource.NewExecutionPipelineResource(div, 2)
			Expect(canWrite(ep, 0, d.trigger)).To(BeFalse())

			ep = resource.NewExecutionPipelineResource(div, 4)
			Expect(canWrite(ep, 0, d.trigger)).To(BeTrue())

			ep = resource.NewExecutionPipelineResource(div, 0)
			Expect(canWrite(ep, 0, d.trigger)).To(BeTrue())
		})
	})

	Context("unassigning", func() {
		var a twoInputOp

		BeforeEach(func() {
			a = newAdd(1, nil)
			write(ep, 0, a.operand)
			write(ep, 1, a.trigger)
			read(ep, 2, a.result)
		})

		It("should report the extent of the schedule", func() {
			Expect(ep.Size()).To(Equal(3))
			Expect(ep.HighestKnownCycle()).To(Equal(2))
			Expect(ep.IsInUse(1)).To(BeTrue())
			Expect(ep.IsInUse(3)).To(BeFalse())
		})

		It("should restore the tables", func() {
			before := ep.Snapshot()

			b := newAdd(2, nil)
			write(ep, 2, b.operand)
			write(ep, 2, b.trigger)
			read(ep, 3, b.result)
			Expect(ep.Verify()).To(Succeed())
			Expect(ep.HighestKnownCycle()).To(Equal(3))

			Expect(ep.UnassignSource(3, b.result)).To(Succeed())
			Expect(ep.UnassignDestination(2, b.trigger)).To(Succeed())
			Expect(ep.UnassignDestination(2, b.operand)).To(Succeed())

			Expect(cmp.Diff(before, ep.Snapshot())).To(BeEmpty())
			Expect(ep.HighestKnownCycle()).To(Equal(2))
		})

		It("should undo the trigger before its result read", func() {
			Expect(ep.UnassignDestination(1, a.trigger)).To(Succeed())
			Expect(ep.Snapshot()).To(ContainElement(resource.Occupancy{
				Table:     resource.TableResultWrite,
				Key:       "out1",
				Row:       2,
				Occupants: []int{1},
			}))

			Expect(ep.UnassignSource(2, a.result)).To(Succeed())
			Expect(ep.UnassignDestination(0, a.operand)).To(Succeed())

			Expect(ep.Snapshot()).To(BeEmpty())
			Expect(ep.Size()).To(Equal(0))
			Expect(ep.HighestKnownCycle()).To(Equal(-1))
		})

		It("should forget everything on clear", func() {
			ep.Clear()

			Expect(ep.Snapshot()).To(BeEmpty())
			Expect(canWrite(ep, 1, newAdd(2, nil).trigger)).To(BeTrue())
		})
	})

	Context("misuse", func() {
		It("should reject moves not placed in the cycle", func() {
			a := newAdd(1, nil)

			Expect(ep.AssignDestination(1, a.trigger)).
				To(MatchError(resource.ErrWrongUsage))
		})

		It("should reject a wrong triggering flag", func() {
			a := newAdd(1, nil)

			_, err := ep.CanAssignDestination(0, a.operand, true)
			Expect(err).To(MatchError(resource.ErrWrongUsage))
		})

		It("should reject moves that write no operand", func() {
			n := program.NewMoveNode(99, program.NewMove(
				program.NewRegister("r1"), program.NewRegister("r2")))

			_, err := ep.CanAssignDestination(0, n, false)
			Expect(err).To(MatchError(resource.ErrWrongUsage))
			_, err = ep.CanAssignSource(0, n, nil)
			Expect(err).To(MatchError(resource.ErrWrongUsage))
		})

		It("should reject unassigning a move that is not assigned", func() {
			a := newAdd(1, nil)
			Expect(ep.UnassignDestination(0, a.operand)).
				To(MatchError(resource.ErrWrongUsage))

			write(ep, 0, a.operand)
			Expect(ep.UnassignDestination(1, a.operand)).
				To(MatchError(resource.ErrWrongUsage))
		})

		It("should reject a second trigger of an operation", func() {
			a := newAdd(1, nil)
			write(ep, 1, a.trigger)

			Expect(canWrite(ep, 2, a.trigger)).To(BeFalse())
			Expect(ep.AssignDestination(1, a.trigger)).
				To(MatchError(resource.ErrWrongUsage))
		})

		It("should not accept operations the unit lacks", func() {
			mul := newTwoInputOp(1, program.NewOperation("MUL", 2, 1),
				m.Unit("MUL").Operation("MUL"), nil)

			Expect(canWrite(ep, 0, mul.trigger)).To(BeFalse())
		})

		It("should report operands without a port as not found", func() {
			fu := mach.NewFunctionUnit("X")
			t := fu.AddInputPort("t", mach.Triggering())
			fu.AddOperation("NEG").Bind(1, t)

			neg := program.NewOperation("NEG", 2, 1)
			po := program.NewProgramOperation(1, neg)
			n := program.NewMoveNode(1, program.NewMove(
				program.NewRegister("r1"),
				program.NewAbstractFUPort(neg, 2)))
			po.AddInputNode(n)

			ep = resource.NewExecutionPipelineResource(fu, 0)
			_, err := ep.CanAssignDestination(0, n, false)
			Expect(err).To(MatchError(resource.ErrNotFound))
		})
	})

	Context("hooks", func() {
		It("should report assignments", func() {
			hook := &recordingHook{}
			ep.AcceptHook(hook)
			a := newAdd(1, nil)

			write(ep, 0, a.operand)
			Expect(ep.UnassignDestination(0, a.operand)).To(Succeed())

			Expect(hook.positions).To(Equal([]*sim.HookPos{
				resource.HookPosAssign, resource.HookPosUnassign,
			}))
			Expect(hook.items).To(HaveEach(BeIdenticalTo(a.operand)))
		})
	})
})
