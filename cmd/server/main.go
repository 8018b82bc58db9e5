package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/dkeye/Signal/internal/adapters/http"
	"github.com/dkeye/Signal/internal/adapters/push"
	wsignal "github.com/dkeye/Signal/internal/adapters/signal"
	"github.com/dkeye/Signal/internal/app"
	"github.com/dkeye/Signal/internal/app/router"
	"github.com/dkeye/Signal/internal/app/signaling"
	"github.com/dkeye/Signal/internal/config"
	"github.com/dkeye/Signal/internal/core"
	"github.com/dkeye/Signal/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := storage.NewLedger(db)
	users := storage.NewUsers(db)

	var notifier core.Notifier = push.LogNotifier{}
	if cfg.Push.Enabled {
		fcm, err := push.NewFCMNotifier(ctx, cfg.Push.CredentialsFile)
		if err != nil {
			return err
		}
		notifier = fcm
	}

	hub := app.NewHub(app.SimplePolicy{})
	srv := router.NewServer(hub)
	if err := signaling.Register(srv, signaling.Deps{
		Ledger:         ledger,
		Users:          users,
		Notifier:       notifier,
		Limiter:        app.NewDialLimiter(cfg.Signal.DialLimit, cfg.Signal.DialInterval),
		Fabric:         hub,
		EndOfCallDelay: cfg.Signal.EndOfCallDelay,
	}); err != nil {
		return err
	}

	listener := wsignal.NewListener(wsignal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
	if err := srv.Start(ctx, listener); err != nil {
		return err
	}
	defer srv.Stop()

	r := httpadapter.SetupRouter(cfg, httpadapter.Deps{
		Signal:  listener.HandleSignal,
		Users:   users,
		History: ledger,
		Groups:  hub,
		Conns:   srv,
		DB:      db,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Signal server started")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})
	return g.Wait()
}
