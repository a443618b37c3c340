package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
)

// runtimeConfig holds process settings. Environment variables seed the
// values and explicit flags override them.
type runtimeConfig struct {
	Addr          string `env:"EU_ADDR" envDefault:":8080"`
	DataDir       string `env:"EU_DATA_DIR" envDefault:"./data"`
	TuningPath    string `env:"EU_TUNING" envDefault:"./configs/tuning.yaml"`
	MaterialsPath string `env:"EU_MATERIALS"`
	ClaimBackend  string `env:"EU_CLAIM_BACKEND" envDefault:"yaml"`
	AuditLog      bool   `env:"EU_AUDIT_LOG" envDefault:"true"`
	EnableAdmin   bool   `env:"EU_ENABLE_ADMIN_HTTP" envDefault:"true"`
	EnablePprof   bool   `env:"EU_ENABLE_PPROF_HTTP" envDefault:"false"`
}

func loadRuntimeConfig(args []string) (runtimeConfig, error) {
	cfg, err := env.ParseAs[runtimeConfig]()
	if err != nil {
		return cfg, err
	}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "path to tuning.yaml")
	fs.StringVar(&cfg.MaterialsPath, "materials", cfg.MaterialsPath, "path to a materials catalog (default: built in)")
	fs.StringVar(&cfg.ClaimBackend, "claims", cfg.ClaimBackend, "claim store backend: yaml|sqlite|none")
	fs.BoolVar(&cfg.AuditLog, "audit_log", cfg.AuditLog, "write applied mutations to zstd jsonl")
	fs.BoolVar(&cfg.EnableAdmin, "admin", cfg.EnableAdmin, "serve loopback-only admin endpoints")
	fs.BoolVar(&cfg.EnablePprof, "pprof", cfg.EnablePprof, "serve /debug/pprof")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadRuntimeConfig(os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a.start()
	go func() {
		if err := a.world.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}
	a.shutdown()
	logger.Printf("stopped")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
