package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"tinydb/pkg/database"
	"tinydb/pkg/logging"
	"tinydb/pkg/ui"
)

type Configuration struct {
	DatabasePath string
	PoolSize     int
	LogPath      string
	Verbose      bool
	DemoMode     bool
	ScriptFile   string
}

func main() {
	config := parseArguments()

	if err := logging.Setup(config.LogPath, config.Verbose); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Shutdown()

	db, err := database.Open(config.DatabasePath, config.PoolSize)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if config.DemoMode {
		if err := runDemoMode(db); err != nil {
			log.Fatalf("Demo mode failed: %v", err)
		}
	}

	if config.ScriptFile != "" {
		if err := runScript(db, config.ScriptFile); err != nil {
			log.Fatalf("Failed to run script: %v", err)
		}
		return
	}

	if err := startInteractiveMode(db); err != nil {
		log.Fatalf("Failed to start UI: %v", err)
	}
}

// parseArguments processes command-line flags
func parseArguments() Configuration {
	var config Configuration

	flag.StringVar(&config.DatabasePath, "db", "tinydb.db", "Database file path")
	flag.IntVar(&config.PoolSize, "pool", database.DefaultPoolSize, "Buffer pool size in pages")
	flag.StringVar(&config.LogPath, "log", "", "Log file path (empty for stdout)")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&config.DemoMode, "demo", false, "Seed the database with sample data")
	flag.StringVar(&config.ScriptFile, "script", "", "SQL file to execute, then exit")

	flag.Parse()

	return config
}

// runDemoMode seeds a small sample table for experimentation.
func runDemoMode(db *database.Database) error {
	statements := []string{
		"CREATE TABLE users (id INTEGER, name VARCHAR(64), age INTEGER)",
		"INSERT INTO users (id, name, age) VALUES (1, 'Alice', 25), (2, 'Bob', 32), (3, 'Charlie', 41)",
	}

	for _, stmt := range statements {
		result := db.ExecuteQuery(stmt)
		if !result.Success {
			// Re-running demo mode against an existing file hits the
			// duplicate table; that is fine.
			logging.WithComponent("demo").Warn("demo statement skipped", "error", result.Message)
		}
	}
	return nil
}

// runScript executes a file of semicolon-terminated statements and prints
// each result to stdout.
func runScript(db *database.Database, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			executeAndPrint(db, sb.String())
			sb.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if strings.TrimSpace(sb.String()) != "" {
		executeAndPrint(db, sb.String())
	}
	return nil
}

func executeAndPrint(db *database.Database, sql string) {
	result := db.ExecuteQuery(sql)
	if !result.Success {
		fmt.Printf("error: %s\n", result.Message)
		return
	}
	fmt.Println(database.FormatTable(result))
}

func startInteractiveMode(db *database.Database) error {
	program := tea.NewProgram(ui.NewModel(db), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
