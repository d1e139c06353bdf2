package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bd2kgenomics/spinnaker/internal/client"
	"github.com/bd2kgenomics/spinnaker/internal/config"
	handlers "github.com/bd2kgenomics/spinnaker/internal/handlers/v1alpha1"
	"github.com/bd2kgenomics/spinnaker/internal/service"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/bd2kgenomics/spinnaker/internal/validation"
	"github.com/bd2kgenomics/spinnaker/pkg/metrics"
	"github.com/bd2kgenomics/spinnaker/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	dispatcherStopTimeout   = 30 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
}

// New returns a new instance of a spinnaker server.
func New(
	cfg *config.Config,
	store store.Store,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
	}
}

// NewRouter mounts the submission api behind the common middlewares.
func NewRouter(srv *service.SubmissionService, metricMiddleware *metrics.Middleware) chi.Router {
	router := chi.NewRouter()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	handlers.NewServiceHandler(srv).RegisterRoutes(router)
	return router
}

func (s *Server) Run(ctx context.Context) error {
	logger := zap.S().Named("api_server")
	logger.Info("Initializing API server")

	storageCfg := s.cfg.Service.Storage
	if storageCfg.URL == "" {
		logger.Warn("no storage url configured, every receipt will fail validation")
	}
	engine := validation.NewEngine(client.NewStorageClient(storageCfg.URL, storageCfg.AccessKey, storageCfg.Timeout))

	producer := newEventProducer(s.cfg)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warnw("failed to close event producer", "error", err)
		}
	}()

	dispatcher, cleanup, err := newRunner(ctx, s.cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []service.SubmissionOption{service.WithEventWriter(producer)}
	if dispatcher != nil {
		opts = append(opts, service.WithDispatcher(dispatcher))
	}
	submissionSrv := service.NewSubmissionService(s.store, engine, opts...)

	if dispatcher != nil {
		// stopped explicitly so that running jobs can finish after the listener is closed
		if err := dispatcher.Start(context.WithoutCancel(ctx), submissionSrv); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), dispatcherStopTimeout)
			defer cancel()
			if err := dispatcher.Stop(stopCtx); err != nil {
				logger.Warnw("failed to stop dispatcher", "error", err)
			}
		}()
		logger.Infow("validation dispatcher started", "type", s.cfg.Service.Dispatcher.Type)
	} else {
		logger.Warn("no validation dispatcher configured, edits will not be validated")
	}

	// the stats read this run's store, later runs register their own
	defer registerScoped(metrics.NewSubmissionStatsCollector(s.store))()

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: NewRouter(submissionSrv, httpMetrics())}

	go func() {
		<-ctx.Done()
		logger.Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("api server terminated")
	}()

	logger.Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// register adds collectors to the default registry. Collectors already registered by a
// previous run are kept.
// httpMetrics is shared by every Run of the process so the exported request
// counters are the ones being incremented.
var httpMetrics = sync.OnceValue(func() *metrics.Middleware {
	m := metrics.NewMiddleware("api_server")
	for _, c := range m.Collectors() {
		registerScoped(c)
	}
	return m
})

// registerScoped registers c with the default registry and returns a func removing it
// again. The func is a no-op when c could not be registered.
func registerScoped(c prometheus.Collector) func() {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			zap.S().Named("api_server").Warnw("collector already registered, keeping the existing one", "error", err)
		} else {
			zap.S().Named("api_server").Warnw("failed to register collector", "error", err)
		}
		return func() {}
	}
	return func() { prometheus.Unregister(c) }
}
