package resource

import (
	"fmt"

	"github.com/sarchlab/ttasched/program"
)

// slot holds at most two occupants of a table cell. Removing the first
// occupant promotes the second.
type slot[T comparable] struct {
	first  T
	second T
	n      int
}

func (s *slot[T]) add(v T) {
	switch s.n {
	case 0:
		s.first = v
	case 1:
		s.second = v
	default:
		panic(fmt.Sprintf("slot already holds two occupants, adding %v", v))
	}
	s.n++
}

func (s *slot[T]) remove(v T) {
	var zero T

	switch {
	case s.n >= 1 && s.first == v:
		s.first = s.second
		s.second = zero
	case s.n == 2 && s.second == v:
		s.second = zero
	default:
		panic(fmt.Sprintf("%v is not an occupant of the slot", v))
	}
	s.n--
}

func (s *slot[T]) empty() bool {
	return s.n == 0
}

func (s *slot[T]) full() bool {
	return s.n == 2
}

func (s *slot[T]) occupants() []T {
	switch s.n {
	case 0:
		return nil
	case 1:
		return []T{s.first}
	default:
		return []T{s.first, s.second}
	}
}

// nodeTable maps table rows to move node slots.
type nodeTable map[int]*slot[*program.MoveNode]

func (t nodeTable) at(row int) *slot[*program.MoveNode] {
	return t[row]
}

func (t nodeTable) add(row int, n *program.MoveNode) {
	s, ok := t[row]
	if !ok {
		s = &slot[*program.MoveNode]{}
		t[row] = s
	}
	s.add(n)
}

func (t nodeTable) remove(row int, n *program.MoveNode) {
	s, ok := t[row]
	if !ok {
		panic(fmt.Sprintf("no occupants in row %d, removing %v", row, n))
	}

	s.remove(n)
	if s.empty() {
		delete(t, row)
	}
}

// resultEntry is a program operation holding a result register, counted
// once per bookkeeping reason.
type resultEntry struct {
	po    *program.ProgramOperation
	count int
}

// resultSlot holds the program operations whose results occupy a port in
// one row. An operation occupies a single entry however many reasons it
// has.
type resultSlot struct {
	entries [2]resultEntry
	n       int
}

func (s *resultSlot) add(po *program.ProgramOperation) {
	for i := 0; i < s.n; i++ {
		if s.entries[i].po == po {
			s.entries[i].count++
			return
		}
	}

	if s.n == 2 {
		panic(fmt.Sprintf("result slot already holds two operations, adding %v", po))
	}

	s.entries[s.n] = resultEntry{po: po, count: 1}
	s.n++
}

func (s *resultSlot) remove(po *program.ProgramOperation) {
	for i := 0; i < s.n; i++ {
		if s.entries[i].po != po {
			continue
		}

		s.entries[i].count--
		if s.entries[i].count > 0 {
			return
		}

		if i == 0 {
			s.entries[0] = s.entries[1]
		}
		s.entries[1] = resultEntry{}
		s.n--

		return
	}

	panic(fmt.Sprintf("%v does not occupy the result slot", po))
}

// others returns the operations in the slot other than po.
func (s *resultSlot) others(po *program.ProgramOperation) []*program.ProgramOperation {
	var others []*program.ProgramOperation
	for i := 0; i < s.n; i++ {
		if s.entries[i].po != po {
			others = append(others, s.entries[i].po)
		}
	}

	return others
}

// resultTable maps table rows to result slots.
type resultTable map[int]*resultSlot

func (t resultTable) add(row int, po *program.ProgramOperation) {
	s, ok := t[row]
	if !ok {
		s = &resultSlot{}
		t[row] = s
	}
	s.add(po)
}

func (t resultTable) remove(row int, po *program.ProgramOperation) {
	s, ok := t[row]
	if !ok {
		panic(fmt.Sprintf("no results in row %d, removing %v", row, po))
	}

	s.remove(po)
	if s.n == 0 {
		delete(t, row)
	}
}

func (t resultTable) others(
	row int,
	po *program.ProgramOperation,
) []*program.ProgramOperation {
	s, ok := t[row]
	if !ok {
		return nil
	}

	return s.others(po)
}
