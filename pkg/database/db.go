// Package database wires the storage stack together: disk manager, buffer
// pool, free-space manager, catalog and execution engine, behind a single
// Open/ExecuteQuery/Close surface.
package database

import (
	"fmt"
	"sync"

	"tinydb/pkg/buffer"
	"tinydb/pkg/catalog"
	"tinydb/pkg/execution"
	"tinydb/pkg/logging"
	"tinydb/pkg/parser"
	"tinydb/pkg/storage/disk"
	"tinydb/pkg/storage/freespace"
)

// DefaultPoolSize is the buffer pool's frame count when none is configured.
const DefaultPoolSize = 64

// Database is the engine's composition root. One Database owns one file.
type Database struct {
	path    string
	disk    *disk.Manager
	pool    *buffer.PoolManager
	fsm     *freespace.Manager
	catalog *catalog.Catalog
	engine  *execution.Engine

	mutex sync.Mutex
	stats Stats
}

// Stats tracks simple per-session counters.
type Stats struct {
	QueriesExecuted int64
	ErrorCount      int64
}

// QueryResult is the user-facing outcome of one statement: stringified rows
// for SELECT, a rows-affected count for mutations, and a message either way.
type QueryResult struct {
	Success      bool
	Columns      []string
	Rows         [][]string
	RowsAffected int
	Message      string
}

// Open opens (or creates) the database file at path with the given buffer
// pool size. A fresh file is initialized with the header, free-space map
// and self-describing catalog; an existing file has its catalog loaded.
func Open(path string, poolSize int) (*Database, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	log := logging.WithComponent("database")

	dm, err := disk.NewManager(path)
	if err != nil {
		return nil, err
	}

	pool := buffer.NewPoolManager(poolSize, dm)
	fsm := freespace.NewManager(pool)

	fresh, err := fsm.Initialize()
	if err != nil {
		dm.Close()
		return nil, fmt.Errorf("failed to initialize database file: %w", err)
	}

	cat, err := catalog.Open(pool, fsm)
	if err != nil {
		dm.Close()
		return nil, err
	}

	log.Info("database opened", "path", path, "fresh", fresh, "pool_size", poolSize)

	return &Database{
		path:    path,
		disk:    dm,
		pool:    pool,
		fsm:     fsm,
		catalog: cat,
		engine:  execution.NewEngine(cat),
	}, nil
}

// ExecuteQuery parses and executes one SQL statement.
func (db *Database) ExecuteQuery(sql string) QueryResult {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.stats.QueriesExecuted++

	stmt, err := parser.ParseStatement(sql)
	if err != nil {
		db.stats.ErrorCount++
		return QueryResult{Message: err.Error()}
	}

	result := db.engine.Execute(stmt)
	if !result.Success {
		db.stats.ErrorCount++
		logging.WithComponent("execution").Warn("statement failed",
			"statement", stmt.StatementType().String(), "error", result.Message)
	}
	return formatResult(stmt, result)
}

// Catalog exposes the catalog for callers that drive the storage API
// directly (tests, tooling).
func (db *Database) Catalog() *catalog.Catalog {
	return db.catalog
}

// TableNames lists the user tables currently in the catalog.
func (db *Database) TableNames() []string {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.catalog.TableNames()
}

// Stats returns a copy of the session counters.
func (db *Database) Stats() Stats {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.stats
}

// Path returns the database file path.
func (db *Database) Path() string {
	return db.path
}

// Close flushes every cached page and closes the file. The database is
// unusable afterwards.
func (db *Database) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if err := db.pool.FlushAll(); err != nil {
		db.disk.Close()
		return fmt.Errorf("failed to flush pages on close: %w", err)
	}

	logging.WithComponent("database").Info("database closed", "path", db.path)
	return db.disk.Close()
}
