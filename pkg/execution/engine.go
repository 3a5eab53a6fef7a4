package execution

import (
	"fmt"

	"tinydb/pkg/catalog"
	"tinydb/pkg/parser"
	"tinydb/pkg/storage/heap"
	"tinydb/pkg/tuple"
	"tinydb/pkg/types"
)

// Engine executes parsed statements against the catalog and table heaps
// using sequential scans. One engine serves one database; statements run
// one at a time.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates an execution engine over the given catalog.
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

// Execute dispatches one statement and packages the outcome.
func (e *Engine) Execute(stmt parser.Statement) Result {
	switch s := stmt.(type) {
	case *parser.CreateTableStatement:
		return e.executeCreateTable(s)
	case *parser.InsertStatement:
		return e.executeInsert(s)
	case *parser.SelectStatement:
		return e.executeSelect(s)
	case *parser.DeleteStatement:
		return e.executeDelete(s)
	case *parser.UpdateStatement:
		return e.executeUpdate(s)
	default:
		return errorResult(fmt.Errorf("unsupported statement type %T", stmt))
	}
}

func (e *Engine) executeCreateTable(stmt *parser.CreateTableStatement) Result {
	if len(stmt.Columns) == 0 {
		return errorResult(fmt.Errorf("table %s needs at least one column", stmt.TableName))
	}

	seen := make(map[string]bool, len(stmt.Columns))
	columns := make([]tuple.Column, 0, len(stmt.Columns))
	for _, def := range stmt.Columns {
		if seen[def.Name] {
			return errorResult(fmt.Errorf("duplicate column name %s", def.Name))
		}
		seen[def.Name] = true

		colType, err := types.ParseType(def.TypeName)
		if err != nil {
			return errorResult(err)
		}
		columns = append(columns, tuple.NewColumn(def.Name, colType, def.MaxLength, def.Nullable))
	}

	if _, err := e.catalog.CreateTable(stmt.TableName, tuple.NewSchema(columns)); err != nil {
		return errorResult(err)
	}
	return Result{Success: true, Message: fmt.Sprintf("table %s created", stmt.TableName)}
}

func (e *Engine) executeInsert(stmt *parser.InsertStatement) Result {
	tableHeap, schema, err := e.lookup(stmt.TableName)
	if err != nil {
		return errorResult(err)
	}

	// Map each supplied expression position to its column index.
	positions, err := resolveInsertColumns(stmt, schema)
	if err != nil {
		return errorResult(err)
	}

	inserted := 0
	for _, row := range stmt.Rows {
		if len(row) != len(positions) {
			return errorResult(fmt.Errorf("expected %d values per row, got %d", len(positions), len(row)))
		}

		values := make([]types.Value, schema.ColumnCount())
		for i, expr := range row {
			colIdx := positions[i]
			col, _ := schema.Column(colIdx)
			value, err := evaluateInsertValue(expr, col)
			if err != nil {
				return errorResult(err)
			}
			values[colIdx] = value
		}

		data, err := schema.SerializeRecord(values)
		if err != nil {
			return errorResult(err)
		}
		if _, err := tableHeap.Insert(data); err != nil {
			return errorResult(fmt.Errorf("failed to insert into %s: %w", stmt.TableName, err))
		}
		inserted++
	}
	return successResult(inserted)
}

func (e *Engine) executeSelect(stmt *parser.SelectStatement) Result {
	tableHeap, schema, err := e.lookup(stmt.FromTable)
	if err != nil {
		return errorResult(err)
	}

	columns, err := selectColumnNames(stmt, schema)
	if err != nil {
		return errorResult(err)
	}

	var rows [][]types.Value
	err = e.scan(tableHeap, schema, stmt.Where, func(rid tuple.RecordID, values []types.Value) error {
		projected, err := projectRow(stmt, schema, values)
		if err != nil {
			return err
		}
		rows = append(rows, projected)
		return nil
	})
	if err != nil {
		return errorResult(err)
	}

	return Result{Success: true, Columns: columns, Rows: rows, RowsAffected: len(rows)}
}

func (e *Engine) executeDelete(stmt *parser.DeleteStatement) Result {
	tableHeap, schema, err := e.lookup(stmt.TableName)
	if err != nil {
		return errorResult(err)
	}

	// Collect first, mutate after: deleting mid-scan would have the
	// iterator observe its own writes.
	var rids []tuple.RecordID
	err = e.scan(tableHeap, schema, stmt.Where, func(rid tuple.RecordID, values []types.Value) error {
		rids = append(rids, rid)
		return nil
	})
	if err != nil {
		return errorResult(err)
	}

	for _, rid := range rids {
		if err := tableHeap.Delete(rid); err != nil {
			return errorResult(fmt.Errorf("failed to delete record %s: %w", rid, err))
		}
	}
	return successResult(len(rids))
}

func (e *Engine) executeUpdate(stmt *parser.UpdateStatement) Result {
	tableHeap, schema, err := e.lookup(stmt.TableName)
	if err != nil {
		return errorResult(err)
	}

	// Resolve SET targets once, up front.
	type assignment struct {
		colIdx int
		col    tuple.Column
		expr   parser.Expression
	}
	assignments := make([]assignment, 0, len(stmt.SetClauses))
	for _, clause := range stmt.SetClauses {
		idx, ok := schema.ColumnIndex(clause.Column)
		if !ok {
			return errorResult(fmt.Errorf("%w: %s", ErrUnknownColumn, clause.Column))
		}
		col, _ := schema.Column(idx)
		assignments = append(assignments, assignment{colIdx: idx, col: col, expr: clause.Value})
	}

	type pendingUpdate struct {
		rid  tuple.RecordID
		data []byte
	}
	var updates []pendingUpdate
	err = e.scan(tableHeap, schema, stmt.Where, func(rid tuple.RecordID, values []types.Value) error {
		newValues := make([]types.Value, len(values))
		copy(newValues, values)
		for _, a := range assignments {
			value, err := evaluate(a.expr, schema, values)
			if err != nil {
				return err
			}
			coerced, err := coerceValue(value, a.col)
			if err != nil {
				return err
			}
			newValues[a.colIdx] = coerced
		}

		data, err := schema.SerializeRecord(newValues)
		if err != nil {
			return err
		}
		updates = append(updates, pendingUpdate{rid: rid, data: data})
		return nil
	})
	if err != nil {
		return errorResult(err)
	}

	for _, u := range updates {
		if _, err := tableHeap.Update(u.rid, u.data); err != nil {
			return errorResult(fmt.Errorf("failed to update record %s: %w", u.rid, err))
		}
	}
	return successResult(len(updates))
}

// scan walks a heap, deserializes every live record and invokes fn for each
// row the WHERE clause accepts. A nil where accepts everything.
func (e *Engine) scan(tableHeap *heap.TableHeap, schema *tuple.Schema, where parser.Expression, fn func(tuple.RecordID, []types.Value) error) error {
	it := tableHeap.Iterator()
	for it.Next() {
		rec := it.Record()
		values, err := schema.DeserializeRecord(rec.Data)
		if err != nil {
			return fmt.Errorf("failed to deserialize record %s: %w", rec.RID, err)
		}

		if where != nil {
			matched, err := evaluate(where, schema, values)
			if err != nil {
				return err
			}
			if !isTruthy(matched) {
				continue
			}
		}

		if err := fn(rec.RID, values); err != nil {
			return err
		}
	}
	return it.Err()
}

// lookup fetches a table's heap and schema from the catalog.
func (e *Engine) lookup(name string) (*heap.TableHeap, *tuple.Schema, error) {
	tableHeap, err := e.catalog.GetTable(name)
	if err != nil {
		return nil, nil, err
	}
	schema, err := e.catalog.GetSchema(name)
	if err != nil {
		return nil, nil, err
	}
	return tableHeap, schema, nil
}

// resolveInsertColumns maps the i-th expression of every VALUES row to a
// column index. Without an explicit column list the mapping is positional
// over the full schema.
func resolveInsertColumns(stmt *parser.InsertStatement, schema *tuple.Schema) ([]int, error) {
	if len(stmt.Columns) == 0 {
		positions := make([]int, schema.ColumnCount())
		for i := range positions {
			positions[i] = i
		}
		return positions, nil
	}

	positions := make([]int, len(stmt.Columns))
	for i, name := range stmt.Columns {
		idx, ok := schema.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		positions[i] = idx
	}
	return positions, nil
}

// evaluateInsertValue resolves a VALUES expression (no row in scope) and
// coerces it to the target column's type.
func evaluateInsertValue(expr parser.Expression, col tuple.Column) (types.Value, error) {
	value, err := evaluate(expr, nil, nil)
	if err != nil {
		return types.NewNullValue(), err
	}
	return coerceValue(value, col)
}

// coerceValue converts a value to the column's type. NULL passes through;
// a VARCHAR that should be an INTEGER must parse as a number.
func coerceValue(v types.Value, col tuple.Column) (types.Value, error) {
	if v.IsNull() || v.Type() == col.Type {
		return v, nil
	}
	converted, err := types.ConvertLiteral(v.String(), col.Type)
	if err != nil {
		return types.NewNullValue(), fmt.Errorf("column %s: %w", col.Name, err)
	}
	return converted, nil
}

// selectColumnNames computes the result header. An empty select list means
// every schema column.
func selectColumnNames(stmt *parser.SelectStatement, schema *tuple.Schema) ([]string, error) {
	if len(stmt.SelectList) == 0 {
		names := make([]string, schema.ColumnCount())
		for i, col := range schema.Columns() {
			names[i] = col.Name
		}
		return names, nil
	}

	names := make([]string, len(stmt.SelectList))
	for i, expr := range stmt.SelectList {
		switch ex := expr.(type) {
		case *parser.IdentifierExpression:
			if _, ok := schema.ColumnIndex(ex.Name); !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, ex.Name)
			}
			names[i] = ex.Name
		case *parser.LiteralExpression:
			names[i] = ex.Text
		default:
			names[i] = "expr"
		}
	}
	return names, nil
}

// projectRow evaluates the select list against one row. An empty select
// list returns the row as-is.
func projectRow(stmt *parser.SelectStatement, schema *tuple.Schema, values []types.Value) ([]types.Value, error) {
	if len(stmt.SelectList) == 0 {
		return values, nil
	}

	projected := make([]types.Value, len(stmt.SelectList))
	for i, expr := range stmt.SelectList {
		value, err := evaluate(expr, schema, values)
		if err != nil {
			return nil, err
		}
		projected[i] = value
	}
	return projected, nil
}
