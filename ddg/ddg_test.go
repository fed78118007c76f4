package ddg_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ttasched/ddg"
	"github.com/sarchlab/ttasched/guard"
	"github.com/sarchlab/ttasched/program"
)

var _ = Describe("Graph", func() {
	var (
		g       *ddg.Graph
		a, b, c *program.MoveNode
	)

	BeforeEach(func() {
		g = ddg.New()
		a = program.NewMoveNode(1, program.NewMove(
			program.NewImmediate(1), program.NewRegister("r1")))
		b = program.NewMoveNode(2, program.NewMove(
			program.NewRegister("r1"), program.NewRegister("r2")))
		c = program.NewMoveNode(3, program.NewMove(
			program.NewRegister("r2"), program.NewRegister("r3")))
	})

	Describe("Edges", func() {
		BeforeEach(func() {
			g.AddEdge(a, b, ddg.RAW, 1)
			g.AddEdge(b, c, ddg.RAW, 2)
			g.AddEdge(a, c, ddg.WAR, 0)
		})

		It("should add nodes once", func() {
			Expect(g.Nodes()).To(Equal([]*program.MoveNode{a, b, c}))
		})

		It("should list neighbours", func() {
			Expect(g.Predecessors(c)).To(ConsistOf(a, b))
			Expect(g.Successors(a)).To(ConsistOf(b, c))
			Expect(g.InEdges(a)).To(BeEmpty())
			Expect(g.OutEdges(b)).To(HaveLen(1))
		})

		It("should compute the earliest cycle from scheduled predecessors", func() {
			Expect(g.IsReady(c)).To(BeFalse())
			Expect(g.EarliestCycle(c)).To(Equal(0))

			a.SetCycle(4)
			Expect(g.EarliestCycle(b)).To(Equal(5))
			Expect(g.EarliestCycle(c)).To(Equal(4))

			b.SetCycle(5)
			Expect(g.IsReady(c)).To(BeTrue())
			Expect(g.EarliestCycle(c)).To(Equal(7))
		})
	})

	Describe("ExclusiveGuards", func() {
		It("should compare guards", func() {
			p := &program.Guard{Register: "b0"}
			a.Move.Guard = p
			b.Move.Guard = p.Not()
			Expect(g.ExclusiveGuards(a, b)).To(BeTrue())
			Expect(g.ExclusiveGuards(a, a)).To(BeFalse())
			Expect(g.ExclusiveGuards(a, c)).To(BeFalse())
		})

		It("should use the oracle facts", func() {
			oracle := guard.NewOracle()
			g = ddg.New(ddg.WithGuardOracle(oracle))
			a.Move.Guard = &program.Guard{Register: "b0"}
			b.Move.Guard = &program.Guard{Register: "b1"}
			Expect(g.ExclusiveGuards(a, b)).To(BeFalse())

			oracle.AddExclusion(a.Move.Guard, b.Move.Guard)
			Expect(g.ExclusiveGuards(a, b)).To(BeTrue())
			Expect(g.GuardOracle()).To(BeIdenticalTo(oracle))
		})
	})
})
