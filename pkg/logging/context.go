package logging

import (
	"log/slog"
)

// WithTable creates a logger with table context.
// Use this for catalog and table operations.
//
// Example:
//
//	log := logging.WithTable("users")
//	log.Info("table operation", "action", "create")
func WithTable(tableName string) *slog.Logger {
	return GetLogger().With("table", tableName)
}

// WithPage creates a logger with page context.
// Useful for buffer pool and storage operations.
//
// Example:
//
//	log := logging.WithPage(pageID)
//	log.Debug("page pinned", "dirty", isDirty)
func WithPage(pageID int) *slog.Logger {
	return GetLogger().With("page_id", pageID)
}

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("catalog")
//	log.Info("component initialized")
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with error context.
// Use this when logging errors to include the error in structured format.
//
// Example:
//
//	log := logging.WithError(err)
//	log.Error("operation failed", "operation", "insert")
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
