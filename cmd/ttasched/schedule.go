package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ttasched/broker"
	"github.com/sarchlab/ttasched/ddg"
	"github.com/sarchlab/ttasched/mach/sample"
	"github.com/sarchlab/ttasched/program"
	"github.com/sarchlab/ttasched/resource"
)

// listScheduler places moves in graph order, each in the first cycle at or
// after its earliest cycle where the manager finds resources.
type listScheduler struct {
	mgr       *broker.Manager
	graph     *ddg.Graph
	maxCycles int
	log       logr.Logger
}

func (s *listScheduler) schedule() error {
	for _, n := range s.graph.Nodes() {
		if err := s.place(n); err != nil {
			return err
		}
	}

	return nil
}

func (s *listScheduler) place(n *program.MoveNode) error {
	start := s.graph.EarliestCycle(n)
	for cycle := start; cycle < start+s.maxCycles; cycle++ {
		ok, err := s.mgr.CanAssign(cycle, n)
		if err != nil {
			return errors.Wrapf(err, "checking %v in cycle %d", n, cycle)
		}
		if !ok {
			continue
		}

		if err := s.mgr.Assign(cycle, n); err != nil {
			return errors.Wrapf(err, "assigning %v in cycle %d", n, cycle)
		}

		s.log.V(1).Info("placed", "move", n.String(), "earliest", start)

		return nil
	}

	return errors.Errorf("no cycle for %v within %d cycles of cycle %d",
		n, s.maxCycles, start)
}

// hookCounter counts the hook invocations per position.
type hookCounter struct {
	counts map[string]int
}

func (h *hookCounter) Func(ctx sim.HookCtx) {
	h.counts[ctx.Pos.Name]++
}

type scheduleResult struct {
	moves []*program.MoveNode
	mgr   *broker.Manager
	hooks *hookCounter
}

// scheduleSample list-schedules the sample program on the sample machine.
func scheduleSample(
	cfg *resource.SchedulerConfig,
	alus int,
	log logr.Logger,
) (*scheduleResult, error) {
	prog := newSampleProgram()
	m := sample.NewMachine(sample.WithALUs(alus), sample.WithDivider())

	mgr, err := broker.NewManager(m, cfg,
		broker.WithManagerLogger(log.WithName("manager")),
		broker.WithDDG(prog.graph),
	)
	if err != nil {
		return nil, err
	}

	hooks := &hookCounter{counts: make(map[string]int)}
	mgr.AcceptHook(hooks)

	s := &listScheduler{
		mgr:       mgr,
		graph:     prog.graph,
		maxCycles: cfg.MaxCycles,
		log:       log.WithName("scheduler"),
	}
	if err := s.schedule(); err != nil {
		return nil, err
	}

	if err := mgr.Verify(); err != nil {
		return nil, errors.Wrap(err, "resource tables are inconsistent")
	}

	return &scheduleResult{
		moves: prog.graph.Nodes(),
		mgr:   mgr,
		hooks: hooks,
	}, nil
}

func (r *scheduleResult) report(w io.Writer) {
	moves := append([]*program.MoveNode(nil), r.moves...)
	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].Cycle() < moves[j].Cycle()
	})

	fmt.Fprintf(w, "%-6s %s\n", "cycle", "move")
	for _, n := range moves {
		fmt.Fprintf(w, "%-6d %d: %s\n", n.Cycle(), n.ID, n.Move)
	}

	fmt.Fprintf(w, "\nlast cycle: %d\n", r.mgr.HighestKnownCycle())
	fmt.Fprintf(w, "table size: %d\n", r.mgr.Size())

	names := make([]string, 0, len(r.hooks.counts))
	for name := range r.hooks.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %d\n", name, r.hooks.counts[name])
	}
}
