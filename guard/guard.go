// Package guard decides whether two guards can never be true in the same
// cycle. Guards are boolean variables of a SAT instance. Facts about guard
// registers are added as clauses, and two guards are exclusive if their
// conjunction is unsatisfiable.
package guard

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/sarchlab/ttasched/program"
)

// Oracle answers guard exclusivity queries.
type Oracle struct {
	solver *gini.Gini
	vars   map[string]int
	cache  map[[2]z.Lit]bool
}

// NewOracle creates an oracle with no facts. Without facts only guards on
// the same register with opposite polarity are exclusive.
func NewOracle() *Oracle {
	return &Oracle{
		solver: gini.New(),
		vars:   make(map[string]int),
		cache:  make(map[[2]z.Lit]bool),
	}
}

// AddExclusion records that the two guards are never true together.
func (o *Oracle) AddExclusion(a, b *program.Guard) {
	o.addClause(o.lit(a).Not(), o.lit(b).Not())
}

// AddImplication records that a being true implies b being true.
func (o *Oracle) AddImplication(a, b *program.Guard) {
	o.addClause(o.lit(a).Not(), o.lit(b))
}

// Exclusive returns true if the guards cannot both hold. Unconditional
// moves are never exclusive with anything.
func (o *Oracle) Exclusive(a, b *program.Guard) bool {
	if a == nil || b == nil {
		return false
	}

	la, lb := o.lit(a), o.lit(b)
	if la == lb.Not() {
		return true
	}

	key := [2]z.Lit{la, lb}
	if lb < la {
		key = [2]z.Lit{lb, la}
	}
	if res, ok := o.cache[key]; ok {
		return res
	}

	o.solver.Assume(la, lb)
	res := o.solver.Solve() < 0
	o.cache[key] = res

	return res
}

func (o *Oracle) lit(g *program.Guard) z.Lit {
	v, ok := o.vars[g.Register]
	if !ok {
		v = len(o.vars) + 1
		o.vars[g.Register] = v

		// v or not v, so that the solver knows the variable.
		pos := z.Dimacs2Lit(v)
		o.addClause(pos, pos.Not())
	}

	l := z.Dimacs2Lit(v)
	if g.Inverted {
		return l.Not()
	}

	return l
}

func (o *Oracle) addClause(lits ...z.Lit) {
	for _, l := range lits {
		o.solver.Add(l)
	}
	o.solver.Add(z.LitNull)

	o.cache = make(map[[2]z.Lit]bool)
}
