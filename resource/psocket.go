package resource

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
)

// PSocketResource tracks the moves that use a port socket in each cycle.
// An input socket carries one value per cycle unless the writers in that
// cycle have exclusive guards. An output socket can be read by any number of moves as
// they all read the same port.
type PSocketResource struct {
	Base

	socket       *mach.Socket
	input        bool
	conservative bool
	ddg          ExclusivityOracle
	rows         nodeTable
	outputs      map[int][]*program.MoveNode
}

// NewInputPSocketResource creates the resource of an input socket.
func NewInputPSocketResource(
	socket *mach.Socket,
	ii int,
	conservative bool,
) *PSocketResource {
	return &PSocketResource{
		Base:         NewBase(socket.Name, ii),
		socket:       socket,
		input:        true,
		conservative: conservative,
		rows:         make(nodeTable),
		outputs:      make(map[int][]*program.MoveNode),
	}
}

// NewOutputPSocketResource creates the resource of an output socket.
func NewOutputPSocketResource(socket *mach.Socket, ii int) *PSocketResource {
	return &PSocketResource{
		Base:    NewBase(socket.Name, ii),
		socket:  socket,
		rows:    make(nodeTable),
		outputs: make(map[int][]*program.MoveNode),
	}
}

// Socket returns the socket.
func (r *PSocketResource) Socket() *mach.Socket {
	return r.socket
}

// SetDDG delegates guard exclusivity queries to the dependence graph.
func (r *PSocketResource) SetDDG(ddg ExclusivityOracle) {
	r.ddg = ddg
}

// IsInputSocket returns true for sockets written by moves.
func (r *PSocketResource) IsInputSocket() bool {
	return r.input
}

// IsInUse returns true if any move uses the socket in the cycle.
func (r *PSocketResource) IsInUse(cycle int) bool {
	row := r.InstructionIndex(cycle)
	if r.input {
		return r.rows.at(row) != nil
	}

	return len(r.outputs[row]) > 0
}

// IsAvailable returns true if another move could use the socket in the
// cycle.
func (r *PSocketResource) IsAvailable(cycle int) bool {
	if !r.input {
		return true
	}

	s := r.rows.at(r.InstructionIndex(cycle))
	if s == nil {
		return true
	}

	return !r.conservative && !s.full()
}

// CanAssign returns true if node can use the socket in the cycle.
func (r *PSocketResource) CanAssign(cycle int, node *program.MoveNode) bool {
	if !r.input {
		return true
	}

	s := r.rows.at(r.InstructionIndex(cycle))
	if s == nil {
		return true
	}
	if r.conservative || s.full() {
		return false
	}

	return s.first.Cycle() == cycle &&
		movesExclusive(r.ddg, r.conservative, s.first, node, cycle)
}

// Assign records node using the socket in the cycle.
func (r *PSocketResource) Assign(cycle int, node *program.MoveNode) {
	row := r.InstructionIndex(cycle)
	if r.input {
		r.rows.add(row, node)
		return
	}

	r.outputs[row] = append(r.outputs[row], node)
}

// Unassign reverts Assign.
func (r *PSocketResource) Unassign(cycle int, node *program.MoveNode) error {
	row := r.InstructionIndex(cycle)
	if r.input {
		s := r.rows.at(row)
		if s == nil || (s.first != node && s.second != node) {
			return errors.Wrapf(ErrWrongUsage,
				"%s: %v does not use the socket in cycle %d",
				r.Name(), node, cycle)
		}
		r.rows.remove(row, node)

		return nil
	}

	for i, n := range r.outputs[row] {
		if n == node {
			r.outputs[row] = append(r.outputs[row][:i], r.outputs[row][i+1:]...)
			if len(r.outputs[row]) == 0 {
				delete(r.outputs, row)
			}

			return nil
		}
	}

	return errors.Wrapf(ErrWrongUsage,
		"%s: %v does not use the socket in cycle %d", r.Name(), node, cycle)
}

// Clear removes every assignment.
func (r *PSocketResource) Clear() {
	r.rows = make(nodeTable)
	r.outputs = make(map[int][]*program.MoveNode)
}
