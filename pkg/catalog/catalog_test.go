package catalog

import (
	"errors"
	"path/filepath"
	"testing"

	"tinydb/pkg/buffer"
	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/disk"
	"tinydb/pkg/storage/freespace"
	"tinydb/pkg/tuple"
	"tinydb/pkg/types"
)

type testEnv struct {
	catalog *Catalog
	pool    *buffer.PoolManager
	path    string
}

func openEnv(t *testing.T, path string) *testEnv {
	t.Helper()
	dm, err := disk.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { dm.Close() })

	pool := buffer.NewPoolManager(16, dm)
	fsm := freespace.NewManager(pool)
	if _, err := fsm.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	cat, err := Open(pool, fsm)
	if err != nil {
		t.Fatalf("catalog Open failed: %v", err)
	}
	return &testEnv{catalog: cat, pool: pool, path: path}
}

func newEnv(t *testing.T) *testEnv {
	return openEnv(t, filepath.Join(t.TempDir(), "test.db"))
}

// reopen flushes everything and opens a fresh stack on the same file.
func (e *testEnv) reopen(t *testing.T) *testEnv {
	t.Helper()
	if err := e.pool.FlushAll(); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	return openEnv(t, e.path)
}

func sampleSchema() *tuple.Schema {
	return tuple.NewSchema([]tuple.Column{
		tuple.NewColumn("id", types.IntegerType, 0, false),
		tuple.NewColumn("name", types.VarcharType, 50, true),
		tuple.NewColumn("age", types.IntegerType, 0, true),
	})
}

func TestCatalog_BootstrapAllocatesSystemPages(t *testing.T) {
	env := newEnv(t)

	// System heaps occupy the first two data pages.
	if env.catalog.tablesHeap.FirstPageID() != primitives.FirstDataPageID {
		t.Errorf("expected tables heap at page 2, got %d", env.catalog.tablesHeap.FirstPageID())
	}
	if env.catalog.columnsHeap.FirstPageID() != primitives.FirstDataPageID+1 {
		t.Errorf("expected columns heap at page 3, got %d", env.catalog.columnsHeap.FirstPageID())
	}

	if env.catalog.nextTableID != FirstUserTableID {
		t.Errorf("expected next table id %d, got %d", FirstUserTableID, env.catalog.nextTableID)
	}
}

func TestCatalog_CreateTableAndLookup(t *testing.T) {
	env := newEnv(t)

	created, err := env.catalog.CreateTable("users", sampleSchema())
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if created == nil {
		t.Fatal("CreateTable returned no heap")
	}

	got, err := env.catalog.GetTable("users")
	if err != nil {
		t.Fatalf("GetTable failed: %v", err)
	}
	if got != created {
		t.Error("GetTable must return the created heap")
	}

	schema, err := env.catalog.GetSchema("users")
	if err != nil {
		t.Fatalf("GetSchema failed: %v", err)
	}
	if schema.ColumnCount() != 3 {
		t.Errorf("expected 3 columns, got %d", schema.ColumnCount())
	}
}

func TestCatalog_DuplicateTableRejected(t *testing.T) {
	env := newEnv(t)

	if _, err := env.catalog.CreateTable("users", sampleSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := env.catalog.CreateTable("users", sampleSchema()); !errors.Is(err, ErrDuplicateTable) {
		t.Fatalf("expected ErrDuplicateTable, got %v", err)
	}
}

func TestCatalog_UnknownTableLookupFails(t *testing.T) {
	env := newEnv(t)

	if _, err := env.catalog.GetTable("ghost"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
	if _, err := env.catalog.GetSchema("ghost"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestCatalog_SchemaSurvivesRestart(t *testing.T) {
	env := newEnv(t)

	original := sampleSchema()
	if _, err := env.catalog.CreateTable("users", original); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	env2 := env.reopen(t)
	schema, err := env2.catalog.GetSchema("users")
	if err != nil {
		t.Fatalf("GetSchema after restart failed: %v", err)
	}

	if schema.ColumnCount() != original.ColumnCount() {
		t.Fatalf("expected %d columns, got %d", original.ColumnCount(), schema.ColumnCount())
	}
	for i := 0; i < original.ColumnCount(); i++ {
		want, _ := original.Column(i)
		got, _ := schema.Column(i)
		if got.Name != want.Name {
			t.Errorf("column %d: expected name %s, got %s", i, want.Name, got.Name)
		}
		if got.Type != want.Type {
			t.Errorf("column %d: expected type %v, got %v", i, want.Type, got.Type)
		}
		if got.MaxLength != want.MaxLength {
			t.Errorf("column %d: expected length %d, got %d", i, want.MaxLength, got.MaxLength)
		}
	}
}

func TestCatalog_DataSurvivesRestart(t *testing.T) {
	env := newEnv(t)

	schema := sampleSchema()
	tableHeap, err := env.catalog.CreateTable("users", schema)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	row := []types.Value{
		types.NewIntegerValue(1),
		types.NewVarcharValue("Alice"),
		types.NewIntegerValue(25),
	}
	data, err := schema.SerializeRecord(row)
	if err != nil {
		t.Fatalf("SerializeRecord failed: %v", err)
	}
	if _, err := tableHeap.Insert(data); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	env2 := env.reopen(t)
	reopened, err := env2.catalog.GetTable("users")
	if err != nil {
		t.Fatalf("GetTable after restart failed: %v", err)
	}
	reopenedSchema, err := env2.catalog.GetSchema("users")
	if err != nil {
		t.Fatalf("GetSchema after restart failed: %v", err)
	}

	it := reopened.Iterator()
	if !it.Next() {
		t.Fatalf("expected one row after restart (iterator error: %v)", it.Err())
	}
	values, err := reopenedSchema.DeserializeRecord(it.Record().Data)
	if err != nil {
		t.Fatalf("DeserializeRecord failed: %v", err)
	}
	for i := range row {
		if !row[i].Equals(values[i]) {
			t.Errorf("value %d: expected %v, got %v", i, row[i], values[i])
		}
	}
	if it.Next() {
		t.Error("expected exactly one row")
	}
}

func TestCatalog_MultipleTablesAndRestartCycles(t *testing.T) {
	env := newEnv(t)

	first := tuple.NewSchema([]tuple.Column{
		tuple.NewColumn("a", types.IntegerType, 0, false),
	})
	if _, err := env.catalog.CreateTable("t1", first); err != nil {
		t.Fatalf("CreateTable t1 failed: %v", err)
	}

	env2 := env.reopen(t)
	second := tuple.NewSchema([]tuple.Column{
		tuple.NewColumn("b", types.VarcharType, 10, true),
		tuple.NewColumn("c", types.IntegerType, 0, true),
	})
	if _, err := env2.catalog.CreateTable("t2", second); err != nil {
		t.Fatalf("CreateTable t2 after restart failed: %v", err)
	}

	env3 := env2.reopen(t)
	names := env3.catalog.TableNames()
	if len(names) != 2 || names[0] != "t1" || names[1] != "t2" {
		t.Fatalf("expected tables [t1 t2], got %v", names)
	}

	s1, err := env3.catalog.GetSchema("t1")
	if err != nil {
		t.Fatalf("GetSchema t1 failed: %v", err)
	}
	if s1.ColumnCount() != 1 {
		t.Errorf("t1 should have 1 column, got %d", s1.ColumnCount())
	}

	s2, err := env3.catalog.GetSchema("t2")
	if err != nil {
		t.Fatalf("GetSchema t2 failed: %v", err)
	}
	if s2.ColumnCount() != 2 {
		t.Errorf("t2 should have 2 columns, got %d", s2.ColumnCount())
	}

	// Table ids keep growing across restarts.
	if env3.catalog.nextTableID != FirstUserTableID+2 {
		t.Errorf("expected next table id %d, got %d", FirstUserTableID+2, env3.catalog.nextTableID)
	}
}
