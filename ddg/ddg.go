// Package ddg provides the data dependence graph the scheduler consults.
// Besides dependence edges it answers whether two moves are guarded by
// exclusive conditions.
package ddg

import (
	"github.com/sarchlab/ttasched/guard"
	"github.com/sarchlab/ttasched/program"
)

// EdgeKind is the reason for a dependence.
type EdgeKind int

const (
	// RAW is a true dependence.
	RAW EdgeKind = iota
	// WAR is an anti dependence.
	WAR
	// WAW is an output dependence.
	WAW
	// OperationEdge orders the moves inside one operation.
	OperationEdge
)

// Edge is a dependence from Tail to Head. Head can be scheduled no earlier
// than Latency cycles after Tail.
type Edge struct {
	Tail    *program.MoveNode
	Head    *program.MoveNode
	Kind    EdgeKind
	Latency int
}

// Option is a functional option for configuring the Graph.
type Option func(*Graph)

// WithGuardOracle sets the oracle used for exclusivity queries.
func WithGuardOracle(o *guard.Oracle) Option {
	return func(g *Graph) {
		g.guards = o
	}
}

// Graph is a data dependence graph over move nodes.
type Graph struct {
	nodes []*program.MoveNode
	index map[*program.MoveNode]bool
	in    map[*program.MoveNode][]*Edge
	out   map[*program.MoveNode][]*Edge

	guards *guard.Oracle
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		index: make(map[*program.MoveNode]bool),
		in:    make(map[*program.MoveNode][]*Edge),
		out:   make(map[*program.MoveNode][]*Edge),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.guards == nil {
		g.guards = guard.NewOracle()
	}

	return g
}

// AddNode adds a node. Adding a node twice has no effect.
func (g *Graph) AddNode(n *program.MoveNode) {
	if g.index[n] {
		return
	}

	g.index[n] = true
	g.nodes = append(g.nodes, n)
}

// AddEdge adds a dependence, adding missing nodes.
func (g *Graph) AddEdge(
	tail, head *program.MoveNode,
	kind EdgeKind,
	latency int,
) *Edge {
	g.AddNode(tail)
	g.AddNode(head)

	e := &Edge{Tail: tail, Head: head, Kind: kind, Latency: latency}
	g.out[tail] = append(g.out[tail], e)
	g.in[head] = append(g.in[head], e)

	return e
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*program.MoveNode {
	return g.nodes
}

// InEdges returns the edges ending at n.
func (g *Graph) InEdges(n *program.MoveNode) []*Edge {
	return g.in[n]
}

// OutEdges returns the edges starting at n.
func (g *Graph) OutEdges(n *program.MoveNode) []*Edge {
	return g.out[n]
}

// Predecessors returns the tails of the edges ending at n.
func (g *Graph) Predecessors(n *program.MoveNode) []*program.MoveNode {
	preds := make([]*program.MoveNode, 0, len(g.in[n]))
	for _, e := range g.in[n] {
		preds = append(preds, e.Tail)
	}

	return preds
}

// Successors returns the heads of the edges starting at n.
func (g *Graph) Successors(n *program.MoveNode) []*program.MoveNode {
	succs := make([]*program.MoveNode, 0, len(g.out[n]))
	for _, e := range g.out[n] {
		succs = append(succs, e.Head)
	}

	return succs
}

// IsReady returns true if every predecessor of n is scheduled.
func (g *Graph) IsReady(n *program.MoveNode) bool {
	for _, e := range g.in[n] {
		if !e.Tail.IsScheduled() {
			return false
		}
	}

	return true
}

// EarliestCycle is the first cycle n can be placed in, considering only
// scheduled predecessors.
func (g *Graph) EarliestCycle(n *program.MoveNode) int {
	earliest := 0
	for _, e := range g.in[n] {
		if !e.Tail.IsScheduled() {
			continue
		}

		if c := e.Tail.Cycle() + e.Latency; c > earliest {
			earliest = c
		}
	}

	return earliest
}

// ExclusiveGuards returns true if the two moves never execute in the same
// cycle because their guards are exclusive.
func (g *Graph) ExclusiveGuards(a, b *program.MoveNode) bool {
	if a == nil || b == nil || a == b {
		return false
	}

	return g.guards.Exclusive(a.Guard(), b.Guard())
}

// GuardOracle returns the oracle answering exclusivity queries.
func (g *Graph) GuardOracle() *guard.Oracle {
	return g.guards
}
