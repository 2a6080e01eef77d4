package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"gitlab.com/tng-miniapp/ledger_api/actions"
	"gitlab.com/tng-miniapp/ledger_api/config"
	"gitlab.com/tng-miniapp/ledger_api/crons"
	"gitlab.com/tng-miniapp/ledger_api/featureflags"
	"gitlab.com/tng-miniapp/ledger_api/monitor"
	"gitlab.com/tng-miniapp/ledger_api/service"
)

// Server interface
type Server interface {
	Listen()
}

type server struct {
	config  config.Config
	actions *actions.Actions
	service *service.Service
	ctx     context.Context
	close   context.CancelFunc
	workers *sync.WaitGroup
	HTTP    *http.Server
}

// NewServer constructor
func NewServer(cfg config.Config) Server {
	ctx, close := context.WithCancel(context.Background())

	monitor.Init()
	dataServices, err := service.NewService(cfg)
	if err != nil {
		log.Fatal().Str("section", "server").Err(err).Msg("Unable to init services")
	}

	srv := &server{
		config:  cfg,
		service: dataServices,
		actions: actions.NewActions(cfg, dataServices),
		ctx:     ctx,
		close:   close,
		workers: &sync.WaitGroup{},
	}
	srv.HTTP = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.API.Port),
		Handler: NewRouter(srv.actions),
	}
	srv.HTTP.SetKeepAlivesEnabled(cfg.Server.API.KeepAlive)
	return srv
}

// Listen for requests until a termination signal is received
func (srv *server) Listen() {
	srv.service.Start(srv.ctx, srv.workers)
	if err := crons.Start(srv.ctx, srv.config.Crons, srv.service.Holds, srv.service.Assets); err != nil {
		log.Fatal().Str("section", "server").Err(err).Msg("Unable to schedule crons")
	}

	group, ctx := errgroup.WithContext(srv.ctx)
	group.Go(srv.ListenToRequests)
	group.Go(func() error {
		monitor.LoopProfilingServer(srv.config.Server.Monitoring)
		return nil
	})
	group.Go(func() error {
		return srv.stopOnSignal(ctx)
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Str("section", "server").Msg("Server stopped with error")
	}
}

func (srv *server) stopOnSignal(ctx context.Context) error {
	// listen for termination signals
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case sig := <-sigc:
		log.Info().Str("section", "server").Str("app_event", "terminate").Str("signal", sig.String()).Msg("Shutting down services")
	case <-ctx.Done():
		log.Info().Str("section", "server").Str("app_event", "terminate").Msg("A worker failed, shutting down services")
	}
	srv.closeApp(10 * time.Second)
	return nil
}

func (srv *server) closeApp(timeout time.Duration) {
	// define a timeout in which the graceful shutdown procedure should happen before forcing the shutdown
	timeoutFunc := time.AfterFunc(timeout, func() {
		log.Printf("timeout %d ms has been elapsed, force exit", timeout.Milliseconds())
		os.Exit(0)
	})
	defer timeoutFunc.Stop()

	monitor.ShutdownServer()
	if err := srv.HTTP.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Str("section", "server").Str("action", "terminate").Msg("Unable to shutdown HTTP server")
	}

	crons.Close()
	// stop the workers and wait for the pending notifications to be flushed
	srv.close()
	srv.workers.Wait()

	srv.service.Close()
	featureflags.Close()

	log.Info().Str("section", "server").Str("app_event", "terminate").Str("state", "complete").Msg("All workers terminated")
}
