// Package main is the entrypoint for the syncd daemon.
// The daemon accepts sync submissions over HTTP, runs them asynchronously
// under a bounded worker pool, and serves job status and run history.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmslabs/factsync/internal/config"
	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/errors"
	"github.com/tmslabs/factsync/internal/facts"
	"github.com/tmslabs/factsync/internal/jobs"
	"github.com/tmslabs/factsync/internal/merge"
	"github.com/tmslabs/factsync/internal/observability"
	"github.com/tmslabs/factsync/internal/orchestrator"
	"github.com/tmslabs/factsync/internal/schema"
	"github.com/tmslabs/factsync/internal/server"
	"github.com/tmslabs/factsync/internal/storage"
)

var (
	version = "0.1.0"
	commit  = ""
	date    = ""
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "syncd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "config file (default: ~/.factsync/config.yaml)")
		addr       = flag.String("addr", "", "HTTP listen address (overrides server.port)")
		workers    = flag.Int("workers", 0, "max concurrent sync jobs (overrides sync.workers)")
		showVer    = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("syncd %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Sync.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	defaultFrom, err := time.Parse("2006-01-02", cfg.Sync.DefaultDateFrom)
	if err != nil {
		return errors.NewConfiguration("sync.defaultDateFrom", "must be YYYY-MM-DD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	source, _, err := db.Connect(ctx, "source", cfg.Source)
	if err != nil {
		return err
	}
	defer source.Close()
	log.Printf("Connected to source (%s)", cfg.Source.Driver)

	target, dialect, err := db.Connect(ctx, "target", cfg.Target)
	if err != nil {
		return err
	}
	defer target.Close()
	log.Printf("Connected to target (%s)", cfg.Target.Driver)

	audit := storage.NewSyncLog(target, dialect)
	orch := orchestrator.New(
		facts.NewExtractor(source, defaultFrom),
		schema.NewGuard(target, dialect),
		merge.NewEngine(target, dialect),
		audit,
		observability.NewJSONLogger(os.Stderr),
	)
	runner := jobs.NewRunner(orch, cfg.Sync.Workers)

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.Server.Port)
	}
	httpServer := &http.Server{
		Addr:         listen,
		Handler:      server.New(runner, audit, version),
		ReadTimeout:  parseTimeout(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: parseTimeout(cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down syncd...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		close(done)
	}()

	log.Printf("syncd starting on %s", listen)
	log.Printf("Version: %s, Workers: %d", version, cfg.Sync.Workers)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	// Let in-flight sync runs finish before closing the connections.
	runner.Wait()
	log.Println("syncd stopped")
	return nil
}

func parseTimeout(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
