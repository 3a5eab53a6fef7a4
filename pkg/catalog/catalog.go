// Package catalog manages table metadata. The database describes its own
// tables: two system heaps hold one row per table and one row per column,
// and the catalog rebuilds its in-memory maps from them on every open.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"tinydb/pkg/buffer"
	"tinydb/pkg/logging"
	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/freespace"
	"tinydb/pkg/storage/heap"
	"tinydb/pkg/tuple"
	"tinydb/pkg/types"
)

var (
	// ErrDuplicateTable is returned by CreateTable for a name already in use.
	ErrDuplicateTable = errors.New("table already exists")

	// ErrTableNotFound is returned for lookups of unknown table names.
	ErrTableNotFound = errors.New("table not found")

	// ErrCorrupt is returned when an initialized database's catalog cannot
	// be reconstructed, e.g. the column table's row is missing.
	ErrCorrupt = errors.New("catalog corrupt")
)

// Catalog maps table names to heaps and schemas. The in-memory maps are a
// cache over the two on-disk system tables; they are rebuilt on open and
// kept in sync by CreateTable.
type Catalog struct {
	pool *buffer.PoolManager
	fsm  *freespace.Manager

	tableNames map[string]primitives.TableID
	tables     map[primitives.TableID]*heap.TableHeap
	schemas    map[primitives.TableID]*tuple.Schema

	tablesHeap  *heap.TableHeap
	columnsHeap *heap.TableHeap
	nextTableID primitives.TableID
}

// Open constructs the catalog on an initialized database file. A file whose
// header carries no catalog root is fresh: the two system heaps are created
// and seeded with their own descriptions. Otherwise the existing system
// tables are scanned and every user table is republished into memory.
func Open(pool *buffer.PoolManager, fsm *freespace.Manager) (*Catalog, error) {
	c := &Catalog{
		pool:        pool,
		fsm:         fsm,
		tableNames:  make(map[string]primitives.TableID),
		tables:      make(map[primitives.TableID]*heap.TableHeap),
		schemas:     make(map[primitives.TableID]*tuple.Schema),
		nextTableID: FirstUserTableID,
	}

	root, err := fsm.CatalogRoot()
	if err != nil {
		return nil, err
	}

	if root == primitives.InvalidPageID {
		if err := c.bootstrap(); err != nil {
			return nil, fmt.Errorf("catalog bootstrap failed: %w", err)
		}
		logging.WithComponent("catalog").Info("system tables bootstrapped")
		return c, nil
	}

	if err := c.load(root); err != nil {
		return nil, fmt.Errorf("catalog load failed: %w", err)
	}
	logging.WithComponent("catalog").Info("catalog loaded", "tables", len(c.tableNames))
	return c, nil
}

// bootstrap creates the system heaps on a fresh database and inserts the
// rows that describe them: each system table describes itself, and each of
// its columns is recorded.
func (c *Catalog) bootstrap() error {
	tablesRoot, tablesHeap, err := c.createHeap()
	if err != nil {
		return err
	}
	columnsRoot, columnsHeap, err := c.createHeap()
	if err != nil {
		return err
	}
	c.tablesHeap = tablesHeap
	c.columnsHeap = columnsHeap

	if err := c.fsm.SetCatalogRoot(tablesRoot); err != nil {
		return err
	}

	system := []struct {
		tid    primitives.TableID
		name   string
		root   primitives.PageID
		schema *tuple.Schema
	}{
		{TablesTableID, TablesTableName, tablesRoot, tablesSchema()},
		{ColumnsTableID, ColumnsTableName, columnsRoot, columnsSchema()},
	}

	for _, st := range system {
		if err := c.insertTableRow(st.tid, st.name, st.root); err != nil {
			return err
		}
		if err := c.insertColumnRows(st.tid, st.schema); err != nil {
			return err
		}
	}
	return nil
}

// load rebuilds the in-memory maps from the system tables of an existing
// database.
func (c *Catalog) load(tablesRoot primitives.PageID) error {
	c.tablesHeap = heap.NewTableHeap(c.pool, c.fsm, tablesRoot)

	// The tables heap knows where every table lives, including the columns
	// heap; find that one first.
	columnsRoot := primitives.InvalidPageID
	type userTable struct {
		tid  primitives.TableID
		name string
		root primitives.PageID
	}
	var userTables []userTable

	schema := tablesSchema()
	it := c.tablesHeap.Iterator()
	for it.Next() {
		rec := it.Record()
		values, err := schema.DeserializeRecord(rec.Data)
		if err != nil {
			return fmt.Errorf("%w: bad row in %s: %v", ErrCorrupt, TablesTableName, err)
		}

		tid, name, root, err := decodeTableRow(values)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		switch {
		case tid == ColumnsTableID:
			columnsRoot = root
		case tid >= FirstUserTableID:
			userTables = append(userTables, userTable{tid, name, root})
		}

		if tid >= c.nextTableID {
			c.nextTableID = tid + 1
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	if columnsRoot == primitives.InvalidPageID {
		return fmt.Errorf("%w: %s row not found in %s", ErrCorrupt, ColumnsTableName, TablesTableName)
	}
	c.columnsHeap = heap.NewTableHeap(c.pool, c.fsm, columnsRoot)

	for _, ut := range userTables {
		tableSchema, err := c.loadSchema(ut.tid)
		if err != nil {
			return err
		}
		c.tableNames[ut.name] = ut.tid
		c.tables[ut.tid] = heap.NewTableHeap(c.pool, c.fsm, ut.root)
		c.schemas[ut.tid] = tableSchema
	}
	return nil
}

// loadSchema gathers a table's rows from __catalog_columns and restores the
// column order by sorting on column_index.
func (c *Catalog) loadSchema(tid primitives.TableID) (*tuple.Schema, error) {
	type indexedColumn struct {
		index int
		col   tuple.Column
	}
	var cols []indexedColumn

	schema := columnsSchema()
	it := c.columnsHeap.Iterator()
	for it.Next() {
		values, err := schema.DeserializeRecord(it.Record().Data)
		if err != nil {
			return nil, fmt.Errorf("%w: bad row in %s: %v", ErrCorrupt, ColumnsTableName, err)
		}

		rowTid, col, index, err := decodeColumnRow(values)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if rowTid != tid {
			continue
		}
		cols = append(cols, indexedColumn{index: index, col: col})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no columns recorded for table %d", ErrCorrupt, tid)
	}

	sort.Slice(cols, func(i, j int) bool { return cols[i].index < cols[j].index })
	ordered := make([]tuple.Column, len(cols))
	for i, ic := range cols {
		ordered[i] = ic.col
	}
	return tuple.NewSchema(ordered), nil
}

// CreateTable registers a new user table: an empty first page is allocated,
// the heap wired, and the metadata rows inserted into both system tables.
// On any persistence failure the in-memory state is rolled back and the
// allocated page freed.
func (c *Catalog) CreateTable(name string, schema *tuple.Schema) (*heap.TableHeap, error) {
	if _, exists := c.tableNames[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTable, name)
	}

	firstPage, tableHeap, err := c.createHeap()
	if err != nil {
		return nil, err
	}

	tid := c.nextTableID
	c.tableNames[name] = tid
	c.tables[tid] = tableHeap
	c.schemas[tid] = schema

	rollback := func() {
		delete(c.tableNames, name)
		delete(c.tables, tid)
		delete(c.schemas, tid)
		c.pool.DeletePage(firstPage)
		c.fsm.DeallocatePage(firstPage)
	}

	if err := c.insertTableRow(tid, name, firstPage); err != nil {
		rollback()
		logging.WithError(err).Warn("table creation rolled back", "table", name)
		return nil, fmt.Errorf("failed to persist table metadata: %w", err)
	}
	if err := c.insertColumnRows(tid, schema); err != nil {
		rollback()
		logging.WithError(err).Warn("table creation rolled back", "table", name)
		return nil, fmt.Errorf("failed to persist column metadata: %w", err)
	}

	c.nextTableID++
	logging.WithTable(name).Info("table created",
		"table_id", int32(tid), "first_page", int32(firstPage), "columns", schema.ColumnCount())
	return tableHeap, nil
}

// GetTable returns the heap for a table name. The reference is owned by the
// catalog and shares its lifetime.
func (c *Catalog) GetTable(name string) (*heap.TableHeap, error) {
	tid, exists := c.tableNames[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return c.tables[tid], nil
}

// GetSchema returns the schema for a table name. The reference is owned by
// the catalog and shares its lifetime.
func (c *Catalog) GetSchema(name string) (*tuple.Schema, error) {
	tid, exists := c.tableNames[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return c.schemas[tid], nil
}

// TableNames lists the user tables in the catalog, sorted.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tableNames))
	for name := range c.tableNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// createHeap allocates one page, formats it as an empty table page and
// returns a heap rooted there.
func (c *Catalog) createHeap() (primitives.PageID, *heap.TableHeap, error) {
	pid, err := c.fsm.AllocatePage()
	if err != nil {
		return primitives.InvalidPageID, nil, fmt.Errorf("failed to allocate table page: %w", err)
	}

	frame, err := c.pool.NewPage(pid)
	if err != nil {
		c.fsm.DeallocatePage(pid)
		return primitives.InvalidPageID, nil, fmt.Errorf("failed to materialize table page %d: %w", pid, err)
	}

	heap.NewTablePage(frame).Init()
	if err := c.pool.UnpinPage(pid, true); err != nil {
		return primitives.InvalidPageID, nil, err
	}
	return pid, heap.NewTableHeap(c.pool, c.fsm, pid), nil
}

// insertTableRow appends one row to __catalog_tables.
func (c *Catalog) insertTableRow(tid primitives.TableID, name string, firstPage primitives.PageID) error {
	data, err := tablesSchema().SerializeRecord(tableRow(tid, name, firstPage))
	if err != nil {
		return err
	}
	_, err = c.tablesHeap.Insert(data)
	return err
}

// insertColumnRows appends one row per column to __catalog_columns.
func (c *Catalog) insertColumnRows(tid primitives.TableID, schema *tuple.Schema) error {
	for i, col := range schema.Columns() {
		data, err := columnsSchema().SerializeRecord(columnRow(tid, col, i))
		if err != nil {
			return err
		}
		if _, err := c.columnsHeap.Insert(data); err != nil {
			return err
		}
	}
	return nil
}

// decodeTableRow unpacks a __catalog_tables row.
func decodeTableRow(values []types.Value) (primitives.TableID, string, primitives.PageID, error) {
	if len(values) != 3 {
		return 0, "", primitives.InvalidPageID, fmt.Errorf("expected 3 fields, got %d", len(values))
	}
	tid, err := values[0].AsInt()
	if err != nil {
		return 0, "", primitives.InvalidPageID, err
	}
	name, err := values[1].AsString()
	if err != nil {
		return 0, "", primitives.InvalidPageID, err
	}
	root, err := values[2].AsInt()
	if err != nil {
		return 0, "", primitives.InvalidPageID, err
	}
	return primitives.TableID(tid), name, primitives.PageID(root), nil
}

// decodeColumnRow unpacks a __catalog_columns row.
func decodeColumnRow(values []types.Value) (primitives.TableID, tuple.Column, int, error) {
	if len(values) != 5 {
		return 0, tuple.Column{}, 0, fmt.Errorf("expected 5 fields, got %d", len(values))
	}
	tid, err := values[0].AsInt()
	if err != nil {
		return 0, tuple.Column{}, 0, err
	}
	name, err := values[1].AsString()
	if err != nil {
		return 0, tuple.Column{}, 0, err
	}
	colType, err := values[2].AsInt()
	if err != nil {
		return 0, tuple.Column{}, 0, err
	}
	length, err := values[3].AsInt()
	if err != nil {
		return 0, tuple.Column{}, 0, err
	}
	index, err := values[4].AsInt()
	if err != nil {
		return 0, tuple.Column{}, 0, err
	}

	col := tuple.NewColumn(name, types.Type(colType), uint32(length), true)
	return primitives.TableID(tid), col, int(index), nil
}
