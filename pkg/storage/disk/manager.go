// Package disk provides byte-level page I/O on the single database file.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/page"
)

// ErrPageNotFound is returned by ReadPage when the requested page lies beyond
// the end of the file. Absence is an ordinary control-flow signal for the
// buffer pool, not a failure.
var ErrPageNotFound = errors.New("page not found on disk")

// Manager owns the database file and serializes all page reads and writes
// behind a single mutex. It has no allocation policy; callers decide which
// page ids exist.
type Manager struct {
	file  *os.File
	path  string
	mutex sync.Mutex
}

// NewManager opens the database file at path, creating it if absent.
func NewManager(path string) (*Manager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open database file %s: %w", path, err)
	}

	return &Manager{file: file, path: path}, nil
}

// WritePage writes exactly one page of data at the page's file offset and
// syncs the file. data must be page.PageSize bytes.
func (m *Manager) WritePage(pid primitives.PageID, data []byte) error {
	if len(data) != page.PageSize {
		return fmt.Errorf("invalid page data size: expected %d, got %d", page.PageSize, len(data))
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	offset := int64(pid) * page.PageSize
	if _, err := m.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("failed to write page %d: %w", pid, err)
	}

	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync page %d: %w", pid, err)
	}
	return nil
}

// ReadPage reads one full page into data. A short read past end of file
// reports ErrPageNotFound; every other failure is an I/O error.
func (m *Manager) ReadPage(pid primitives.PageID, data []byte) error {
	if len(data) != page.PageSize {
		return fmt.Errorf("invalid page buffer size: expected %d, got %d", page.PageSize, len(data))
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	offset := int64(pid) * page.PageSize
	n, err := m.file.ReadAt(data, offset)
	if err != nil {
		if errors.Is(err, io.EOF) && n < page.PageSize {
			return ErrPageNotFound
		}
		return fmt.Errorf("failed to read page %d: %w", pid, err)
	}
	return nil
}

// FileSizeInPages reports how many whole pages the file currently holds.
func (m *Manager) FileSizeInPages() (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	info, err := m.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat database file: %w", err)
	}
	return info.Size() / page.PageSize, nil
}

// Path returns the database file path.
func (m *Manager) Path() string {
	return m.path
}

// Close closes the underlying file.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.file.Close()
}
