package resource

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/sarchlab/ttasched/mach"
	"github.com/sarchlab/ttasched/program"
)

// Table names used in snapshots.
const (
	TablePipeline     = "pipeline"
	TableOperandWrite = "operand-write"
	TableOperandUse   = "operand-use"
	TableResultWrite  = "result-write"
	TableResultRead   = "result-read"
)

// Occupancy is one non-empty cell of a reservation table. Occupants are
// move node ids for pipeline and operand tables and program operation ids
// for result tables.
type Occupancy struct {
	Table     string
	Key       string
	Row       int
	Occupants []int
}

// Snapshot lists every non-empty cell, sorted by table, key and row.
// Occupants of a cell are sorted, so two snapshots are equal when the
// tables hold the same assignments.
func (ep *ExecutionPipelineResource) Snapshot() []Occupancy {
	var cells []Occupancy

	for element, t := range ep.pipeline {
		cells = appendNodeCells(cells, TablePipeline, element, t)
	}
	for port, t := range ep.operandWritten {
		cells = appendNodeCells(cells, TableOperandWrite, port.Name, t)
	}
	for port, t := range ep.operandUsed {
		cells = appendNodeCells(cells, TableOperandUse, port.Name, t)
	}
	for port, t := range ep.resultWritten {
		cells = appendResultCells(cells, TableResultWrite, port.Name, t)
	}
	for port, t := range ep.resultRead {
		cells = appendResultCells(cells, TableResultRead, port.Name, t)
	}

	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i], cells[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.Row < b.Row
	})

	return cells
}

func appendNodeCells(
	cells []Occupancy,
	table, key string,
	t nodeTable,
) []Occupancy {
	for row, s := range t {
		ids := make([]int, 0, 2)
		for _, n := range s.occupants() {
			ids = append(ids, n.ID)
		}
		sort.Ints(ids)

		cells = append(cells, Occupancy{
			Table: table, Key: key, Row: row, Occupants: ids,
		})
	}

	return cells
}

func appendResultCells(
	cells []Occupancy,
	table, key string,
	t resultTable,
) []Occupancy {
	for row, s := range t {
		var ids []int
		for i := 0; i < s.n; i++ {
			for c := 0; c < s.entries[i].count; c++ {
				ids = append(ids, s.entries[i].po.ID)
			}
		}
		sort.Ints(ids)

		cells = append(cells, Occupancy{
			Table: table, Key: key, Row: row, Occupants: ids,
		})
	}

	return cells
}

// Verify checks that every cell holding two occupants holds moves with
// exclusive guards.
func (ep *ExecutionPipelineResource) Verify() error {
	var result *multierror.Error

	checkNodes := func(table, key string, t nodeTable) {
		for row, s := range t {
			if !s.full() {
				continue
			}
			if !ep.exclusiveMoves(s.first, s.second, s.second.Cycle()) {
				result = multierror.Append(result, fmt.Errorf(
					"%s: %s %s row %d holds %v and %v without exclusive guards",
					ep.Name(), table, key, row, s.first, s.second))
			}
		}
	}

	checkResults := func(table string, port *mach.Port, t resultTable) {
		for row, s := range t {
			if s.n < 2 {
				continue
			}

			a := ep.representative(s.entries[0].po)
			b := ep.representative(s.entries[1].po)
			if !ep.guardsExclusive(a, b) {
				result = multierror.Append(result, fmt.Errorf(
					"%s: %s %s row %d holds %v and %v without exclusive guards",
					ep.Name(), table, port.Name, row,
					s.entries[0].po, s.entries[1].po))
			}
		}
	}

	for element, t := range ep.pipeline {
		checkNodes(TablePipeline, element, t)
	}
	for port, t := range ep.operandWritten {
		checkNodes(TableOperandWrite, port.Name, t)
	}
	for port, t := range ep.operandUsed {
		checkNodes(TableOperandUse, port.Name, t)
	}
	for port, t := range ep.resultWritten {
		checkResults(TableResultWrite, port, t)
	}
	for port, t := range ep.resultRead {
		checkResults(TableResultRead, port, t)
	}

	for node, rec := range ep.operands {
		if err := ep.verifyOperand(node, rec); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// verifyOperand checks the operand timing of a triggered operation.
func (ep *ExecutionPipelineResource) verifyOperand(
	node *program.MoveNode,
	rec *operandRecord,
) error {
	st := ep.ops[rec.po]
	if rec.trigger || st.trigger == nil {
		return nil
	}

	use := st.triggerCycle + rec.hwOp.Slack(rec.index)
	if !ep.operandTimingOK(rec.cycle, use, rec.port) {
		return fmt.Errorf("%s: %v written in cycle %d but used in cycle %d",
			ep.Name(), node, rec.cycle, use)
	}

	return nil
}
