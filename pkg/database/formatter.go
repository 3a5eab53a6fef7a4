package database

import (
	"fmt"
	"strings"

	"tinydb/pkg/execution"
	"tinydb/pkg/parser"
)

// formatResult converts an execution result into the user-facing shape:
// values become strings and a human message is attached.
func formatResult(stmt parser.Statement, result execution.Result) QueryResult {
	if !result.Success {
		return QueryResult{Message: result.Message}
	}

	switch stmt.StatementType() {
	case parser.SelectType:
		rows := make([][]string, 0, len(result.Rows))
		for _, row := range result.Rows {
			formatted := make([]string, len(row))
			for i, v := range row {
				formatted[i] = v.String()
			}
			rows = append(rows, formatted)
		}
		return QueryResult{
			Success: true,
			Columns: result.Columns,
			Rows:    rows,
			Message: fmt.Sprintf("%d row(s) returned", len(rows)),
		}

	case parser.InsertType, parser.UpdateType, parser.DeleteType:
		return QueryResult{
			Success:      true,
			RowsAffected: result.RowsAffected,
			Message:      fmt.Sprintf("%d row(s) affected", result.RowsAffected),
		}

	default:
		msg := result.Message
		if msg == "" {
			msg = "query executed successfully"
		}
		return QueryResult{Success: true, Message: msg}
	}
}

// FormatTable renders a result set as an ASCII table, for the shell and for
// logs. Returns the message alone when there are no columns.
func FormatTable(result QueryResult) string {
	if len(result.Columns) == 0 {
		return result.Message
	}

	widths := make([]int, len(result.Columns))
	for i, col := range result.Columns {
		widths[i] = len(col)
	}
	for _, row := range result.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	writeSeparator := func() {
		for _, w := range widths {
			sb.WriteString("+")
			sb.WriteString(strings.Repeat("-", w+2))
		}
		sb.WriteString("+\n")
	}
	writeRow := func(cells []string) {
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(fmt.Sprintf("| %-*s ", w, cell))
		}
		sb.WriteString("|\n")
	}

	writeSeparator()
	writeRow(result.Columns)
	writeSeparator()
	for _, row := range result.Rows {
		writeRow(row)
	}
	writeSeparator()
	sb.WriteString(result.Message)
	return sb.String()
}
