package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/Keeno5280/LectureLens/internal/config"
	"github.com/Keeno5280/LectureLens/internal/sm2"
	"github.com/Keeno5280/LectureLens/internal/storage"
	"github.com/Keeno5280/LectureLens/internal/syncer"
	"github.com/Keeno5280/LectureLens/internal/web"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := run(os.Args[1:]); err != nil {
		slog.Error("lecturelens failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("lecturelens", pflag.ExitOnError)
	configPath := flags.String("config", "lecturelens.yaml", "path to the YAML config file")
	flags.String("listen", "127.0.0.1:8080", "address for the HTTP API")
	flags.String("db", "lecturelens.db", "path to the SQLite database")
	flags.String("repos", "repos", "directory for git deck checkouts")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	sched, err := sm2.New(cfg.Sched.Params())
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	sync := syncer.New(db, sched, cfg.Repos)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd := flags.Arg(0); cmd {
	case "", "serve":
		return serve(ctx, cfg.Listen, web.NewServer(db, sched, sync))
	case "sync":
		return sync.Run(ctx)
	case "stats":
		return printStats(db)
	default:
		return fmt.Errorf("unknown command %q (expected serve, sync, or stats)", cmd)
	}
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func printStats(db *storage.DB) error {
	stats, err := db.Stats(time.Now())
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		t.SetStyle(table.StyleRounded)
	}
	t.AppendHeader(table.Row{"Phase", "Cards"})
	t.AppendRows([]table.Row{
		{"new", stats.New},
		{"learning", stats.Learning},
		{"reviewing", stats.Reviewing},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"due now", stats.Due},
		{"total reviews", stats.Reviews},
	})
	t.Render()
	return nil
}
