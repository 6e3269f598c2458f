package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/api"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/config"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/db"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/handler"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/mcp"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/service"
	"github.com/hyalen-caldeira/mcp-server-blueprint/pkg/audit"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "initdb":
		cmdInitDB(os.Args[2:])
	case "seed":
		cmdSeed(os.Args[2:])
	case "version":
		fmt.Printf("mcp-server-blueprint %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mcp-server-blueprint — database-backed MCP tool registry

Usage:
  mcp-server-blueprint serve [--config config.toml] [--http :8080]
  mcp-server-blueprint initdb [--config config.toml]
  mcp-server-blueprint seed [--config config.toml]
  mcp-server-blueprint version
  mcp-server-blueprint help

Commands:
  serve     Register active tools and run the MCP server on stdio
            (--http additionally serves the admin REST API)
  initdb    Create the database schema
  seed      Insert the built-in echo and calculator_add tools
  version   Print version
  help      Show this help`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	httpAddr := fs.String("http", "", "admin API listen address (overrides config; empty disables)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}
	setupLogging(cfg)

	database, auditLog := mustOpen(cfg)
	defer database.Close()
	defer auditLog.Close()

	handlers := handler.NewRegistry()
	svc := service.New(database, handlers)

	srv := mcp.NewServer(cfg.App.Name, cfg.App.Version)
	count, err := mcp.RegisterActiveTools(srv, svc, auditLog)
	if err != nil {
		log.Fatalf("registering tools: %v", err)
	}

	// Logs go to stderr; stdout belongs to the stdio transport.
	log.Printf("mcp-server-blueprint %s: %d tools registered", version, count)
	log.Printf("database: %s", cfg.Database.Path)

	if *httpAddr != "" {
		apiHandler := api.New(svc, auditLog)
		mux := http.NewServeMux()
		apiHandler.RegisterRoutes(mux)
		go func() {
			log.Printf("admin API listening on %s", cfg.Server.Addr)
			if err := http.ListenAndServe(cfg.Server.Addr, api.SecurityHeaders(mux)); err != nil {
				log.Fatalf("admin API error: %v", err)
			}
		}()
	}

	if err := server.ServeStdio(srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func cmdInitDB(args []string) {
	fs := flag.NewFlagSet("initdb", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	database, auditLog := mustOpen(cfg)
	defer database.Close()
	defer auditLog.Close()

	log.Printf("database initialized: %s", cfg.Database.Path)
}

func cmdSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	database, auditLog := mustOpen(cfg)
	defer database.Close()
	defer auditLog.Close()

	svc := service.New(database, handler.NewRegistry())
	if err := mcp.SeedDefaultTools(database, svc); err != nil {
		log.Fatalf("seeding tools: %v", err)
	}
	log.Printf("seeding complete")
}

// setupLogging points slog at stderr with the configured level. stdout is
// reserved for the stdio transport.
func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.LogLevel() {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func mustOpen(cfg *config.Config) (*db.DB, *audit.SQLiteLogger) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	auditLog := audit.NewSQLiteLogger(database.DB)
	if err := auditLog.Init(); err != nil {
		log.Fatalf("initializing audit log: %v", err)
	}
	return database, auditLog
}
