package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/aidconnect/hub/hub"
	"github.com/aidconnect/hub/observability"
	"github.com/aidconnect/hub/server"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to hub config JSON file")
		prompt       = flag.String("prompt", "", "Message for a one-shot conversation turn")
		sessionID    = flag.String("session", "", "Session id to continue (one-shot mode)")
		systemPrompt = flag.String("system-prompt", "", "System prompt (overrides config)")
		serve        = flag.Bool("serve", false, "Run the HTTP API instead of a one-shot turn")
		addr         = flag.String("addr", "127.0.0.1:8000", "HTTP listen address (with -serve)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if !*serve && *prompt == "" {
		fmt.Fprintln(os.Stderr, "Usage: hub -prompt <text> | hub -serve [-addr host:port]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Optional .env for NV_API_KEY and friends; a missing file is fine.
	_ = godotenv.Load()

	var cfg *hub.Config
	if *configFile != "" {
		loaded, err := hub.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	} else {
		defaults := hub.DefaultConfig()
		cfg = &defaults
	}
	if *systemPrompt != "" {
		cfg.SystemPrompt = *systemPrompt
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	observer := observability.NewSlogObserver(logger)

	if err := run(cfg, observer, *serve, *addr, *sessionID, *prompt); err != nil {
		log.Fatalf("Hub failed: %v", err)
	}
}

// run owns the hub lifecycle so deferred teardown of spawned workers fires
// on every exit path; main only turns its error into an exit code.
func run(cfg *hub.Config, observer observability.Observer, serve bool, addr, sessionID, prompt string) error {
	h, err := hub.New(cfg, hub.WithObserver(observer))
	if err != nil {
		return fmt.Errorf("create hub: %w", err)
	}
	defer h.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if serve {
		srv := server.New(h, addr, server.WithObserver(observer))
		return srv.Run(ctx)
	}

	reply, err := h.Converse(ctx, sessionID, prompt)
	if err != nil {
		return fmt.Errorf("conversation turn: %w", err)
	}

	fmt.Printf("Session: %s\n", reply.SessionID)
	fmt.Printf("Reply: %s\n", reply.Text)

	if len(reply.ToolCalls) > 0 {
		fmt.Println("\nTool Calls:")
		for i, tc := range reply.ToolCalls {
			fmt.Printf("  [%d] %s(%v)\n", i+1, tc.Name, tc.Arguments)
			if tc.IsError {
				fmt.Printf("    error: %s\n", tc.Result)
			} else if len(tc.Result) > 200 {
				fmt.Printf("    -> %s...\n", tc.Result[:200])
			} else {
				fmt.Printf("    -> %s\n", tc.Result)
			}
		}
	}
	return nil
}
