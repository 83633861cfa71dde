package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"railverse.dev/internal/command"
	"railverse.dev/internal/netsync"
	"railverse.dev/internal/persistence/cmdlog"
	"railverse.dev/internal/persistence/reportdb"
	"railverse.dev/internal/sim/world"
	"railverse.dev/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "", "session config yaml (defaults apply when empty)")
		addr       = flag.String("addr", "", "listen address (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		disableDB  = flag.Bool("disable_db", false, "disable the desync report database")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := netsync.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)

	w := world.New(world.Config{
		Width:         cfg.MapWidth,
		Height:        cfg.MapHeight,
		StartingFunds: command.Money(cfg.StartingFunds),
		MaxLoan:       command.Money(cfg.MaxLoan),
		Seed:          cfg.Seed,
	})
	disp := command.NewDispatcher(w.BuildRegistry(),
		command.NewLogRing(cfg.LogMain), command.NewLogRing(cfg.LogAux))
	sess := netsync.NewSession(cfg, w, disp, logger)

	sink := cmdlog.NewWriter(cfg.DataDir)
	defer sink.Close()
	sess.SetCommandSink(sink)

	var reports *reportdb.DB
	if !*disableDB {
		reports, err = reportdb.Open(filepath.Join(cfg.DataDir, "reports.db"))
		if err != nil {
			logger.Fatalf("open report db: %v", err)
		}
		defer reports.Close()
		sess.SetDesyncReporter(reports)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(sess, logger).Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (tick_rate=%dhz delay=%d lobby=%d)",
			cfg.Addr, cfg.TickRateHz, cfg.TickDelay, cfg.MinClients)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Printf("shutting down")
		cancel()
	}()

	err = sess.Run(ctx)

	// On a desync, dump both command rings next to the reports before
	// going down.
	if reports != nil && err != nil && ctx.Err() == nil {
		_ = reports.RecordDump(0, "main", disp.MainLog().Dump(disp.Registry()))
		_ = reports.RecordDump(0, "aux", disp.AuxLog().Dump(disp.Registry()))
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)

	if err != nil && err != context.Canceled {
		logger.Fatalf("session: %v", err)
	}
}
