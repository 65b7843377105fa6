// Command jclserver serves the jcl transpile-compile-execute pipeline over
// HTTP.
//
// Configuration is read from jcl.toml (or the file named by -config), a .env
// file, and JCL_* environment variables. See internal/config.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/nevindra/jcl/internal/app"
	"github.com/nevindra/jcl/internal/config"
	"github.com/nevindra/jcl/internal/server"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[jclserver] ")

	configPath := flag.String("config", "", "path to TOML config (default jcl.toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := app.NewLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	opts := []server.Option{
		server.WithMaxConcurrent(cfg.Server.MaxConcurrent),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithLogger(logger),
	}
	if a.History != nil {
		opts = append(opts, server.WithHistory(a.History))
	}

	// Budgets bound every run, so a run can never outlive the write timeout.
	runBudget := cfg.Sandbox.CompileTimeout.Duration + cfg.Sandbox.RunTimeout.Duration
	srv := &http.Server{
		Handler:      server.New(a.Pipeline, opts...).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: runBudget + 30*time.Second,
		IdleTimeout:  30 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}

	go func() {
		log.Printf("listening on %s (sandbox=%s history=%q)", ln.Addr(), cfg.Sandbox.Backend, cfg.History.Driver)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := a.Close(shutCtx); err != nil {
		log.Printf("close error: %v", err)
	}
	log.Println("stopped")
}
