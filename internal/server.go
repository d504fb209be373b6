package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/gymstats"
	"github.com/2beens/gymtracker/internal/gymstats/catalog"
	"github.com/2beens/gymtracker/internal/middleware"
	"github.com/2beens/gymtracker/internal/storage"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/multierr"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	apiToken          string // guards mutating requests, empty disables the check
	versionInfo       string

	config  *config.Config
	storage storage.Storage
	tracker *gymstats.Tracker

	// rate limiter backend, nil when no redis is configured
	redisClient     *redis.Client
	ownsRedisClient bool

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	Secrets                 storage.Secrets
	APIToken                string
	VersionInfo             string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	exercises, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Debugf("catalog loaded: %d exercises", exercises.Len())

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "gymtracker")
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, storage.NewParams{
		Config:         cfg,
		Secrets:        params.Secrets,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		otelShutdown()
		return nil, fmt.Errorf("new storage: %w", err)
	}

	var collectors []prometheus.Collector
	if pgStorage, ok := store.(*storage.PostgresStorage); ok {
		collectors = append(collectors, pgxpoolprometheus.NewCollector(
			pgStorage.Pool(),
			map[string]string{"db_name": cfg.PostgresDBName},
		))
	}
	promRegistry := metrics.SetupPrometheus(collectors...)
	metricsManager := metrics.NewManager("gymtracker", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	var (
		rdb             *redis.Client
		ownsRedisClient bool
	)
	switch redisStorage, ok := store.(*storage.RedisStorage); {
	case ok:
		rdb = redisStorage.Client()
	case cfg.RedisHost != "":
		rdb = storage.NewRedisClient(ctx, storage.NewRedisClientParams{
			Host:           cfg.RedisHost,
			Port:           cfg.RedisPort,
			Password:       params.Secrets.RedisPassword,
			DB:             cfg.RedisDB,
			TracingEnabled: params.HoneycombTracingEnabled,
		})
		ownsRedisClient = true
	default:
		log.Debugln("no redis configured, mutation rate limiting disabled")
	}

	tracker, err := gymstats.NewTracker(ctx, gymstats.TrackerParams{
		Catalog:          exercises,
		Storage:          store,
		FavoritesKey:     cfg.FavoritesKey,
		HistoryKey:       cfg.HistoryKey,
		WriteTimeout:     cfg.WriteTimeout.Duration,
		QueryCacheSizeMB: cfg.QueryCacheSizeMB,
		Metrics:          metricsManager,
	})
	if err != nil {
		otelShutdown()
		err = multierr.Append(err, store.Close())
		if ownsRedisClient {
			err = multierr.Append(err, rdb.Close())
		}
		return nil, fmt.Errorf("new tracker: %w", err)
	}

	return &Server{
		apiToken:        params.APIToken,
		versionInfo:     params.VersionInfo,
		config:          cfg,
		storage:         store,
		tracker:         tracker,
		redisClient:     rdb,
		ownsRedisClient: ownsRedisClient,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) Tracker() *gymstats.Tracker {
	return s.tracker
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("gymtracker-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, "gymtracker")
	}).Methods("GET").Name("root")
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	s.tracker.SetupRoutes(r)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.TokenAuth(s.apiToken))
	if s.redisClient != nil {
		r.Use(middleware.RateLimit(
			redis_rate.NewLimiter(s.redisClient),
			s.metricsManager,
			"api",
			s.config.MutationsAllowedPerMin,
		))
	}
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// Handler returns the api router, wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	return middleware.Cors(s.config.AllowedOrigins)(s.routerSetup())
}

func (s *Server) Serve(host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

// GracefulShutdown stops accepting requests first, then persists whatever
// the stores still have pending, and only then closes the storage.
func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")
	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if err := s.tracker.Close(ctx); err != nil {
		log.Errorf("failed to persist pending store writes: %s", err)
	} else {
		log.Debugln("stores flushed and closed")
	}

	if err := s.storage.Close(); err != nil {
		log.Errorf("failed to close storage: %s", err)
	}
	if s.ownsRedisClient {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}
