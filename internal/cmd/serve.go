package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/937bb/937cms-sub001/internal/api"
	"github.com/937bb/937cms-sub001/internal/auth"
	"github.com/937bb/937cms-sub001/internal/episode"
	"github.com/937bb/937cms-sub001/internal/grpcserver"
	"github.com/937bb/937cms-sub001/internal/metrics"
	"github.com/937bb/937cms-sub001/internal/resync"
	synchub "github.com/937bb/937cms-sub001/internal/sync"
	"github.com/937bb/937cms-sub001/internal/telemetry"
	"github.com/937bb/937cms-sub001/internal/vod"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operator HTTP API, TCP progress feed and gRPC health server",
		Long: `Serve:
  - HTTP  (server.http_addr): /health /ready /auth/login POST /runs /runs/current
          /runs/last /videos/:id/sources /orphans /counts /metrics /ws
  - TCP   (server.tcp_addr):  newline-delimited JSON progress feed
  - gRPC  (server.grpc_addr): grpc.health.v1, service "vodsync.normalized"

Runs are only started on request (POST /runs).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.open()
			if err != nil {
				return err
			}
			defer e.Close()
			return serve(e)
		},
	}
}

func serve(e *env) error {
	cfg := e.cfg
	log := e.log

	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return err
	}
	if cfg.Auth.OperatorPasswordHash == "" {
		log.Warn("auth.operator_password_hash is empty, login is disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := synchub.NewHub(log)
	tracker := resync.NewTracker()
	health := grpcserver.NewServer(log)
	observers := []resync.Observer{
		resync.NewLogObserver(log),
		tracker,
		metrics.New(reg),
		hub,
		health,
	}

	enabled, err := telemetry.InitSentry(cfg.Telemetry, "vodsync")
	if err != nil {
		log.WithError(err).Warn("sentry disabled")
	}
	if enabled {
		defer telemetry.Flush()
		observers = append(observers, telemetry.NewObserver(nil))
	}

	orch, err := newOrchestrator(e, observers...)
	if err != nil {
		return err
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	d := e.dialect()
	apiSrv := &api.Server{
		DB:        e.db,
		Runner:    orch,
		Tracker:   tracker,
		Playlists: episode.NewRepo(e.db, d),
		Videos:    vod.NewRepo(e.db, d),
		Auth: auth.NewHandler(auth.Operator{
			Username:     cfg.Auth.OperatorUser,
			PasswordHash: cfg.Auth.OperatorPasswordHash,
		}, tokens, log),
		Hub:      hub,
		Gatherer: reg,
		Log:      log,
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           apiSrv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tcpSrv := synchub.NewServer(cfg.Server.TCPAddr, hub)

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := health.ListenAndServe(cfg.Server.GRPCAddr); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.WithField("addr", cfg.Server.HTTPAddr).Info("http api listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutdown signal received")
	case serveErr = <-errCh:
		log.WithError(serveErr).Error("server error")
	}

	if orch.Running() {
		log.Warn("shutting down during a run; the normalized tables are incomplete until the next full run")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := tcpSrv.Close(); err != nil {
		log.WithError(err).Warn("tcp shutdown")
	}
	hub.Close()
	health.Stop()

	wg.Wait()
	log.Info("servers stopped")
	return serveErr
}
