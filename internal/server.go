package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitlog/internal/auth"
	"github.com/2beens/fitlog/internal/config"
	"github.com/2beens/fitlog/internal/db"
	"github.com/2beens/fitlog/internal/gallery"
	"github.com/2beens/fitlog/internal/middleware"
	"github.com/2beens/fitlog/internal/telemetry/metrics"
	"github.com/2beens/fitlog/internal/telemetry/tracing"
	"github.com/2beens/fitlog/internal/users"
	"github.com/2beens/fitlog/internal/workouts"
	"github.com/2beens/fitlog/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	config            *config.Config
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	authService  *auth.Service
	loginChecker *auth.LoginChecker

	usersHandler    *users.Handler
	workoutsHandler *workouts.Handler
	galleryHandler  *gallery.Handler

	metricsManager *metrics.Manager
	promHandler    http.Handler

	// function to shutdown the opentelemetry stuff
	otelShutdown func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	dbPool, err := db.NewPool(ctx, db.PoolParams{
		Host:           cfg.PostgresHost,
		Port:           cfg.PostgresPort,
		Database:       cfg.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		// not a hard failure, the pool will reconnect
		log.Errorf("ping db pool: %s", err)
	}

	dbPoolCollector := pgxpoolprometheus.NewCollector(dbPool, map[string]string{"db_name": cfg.PostgresDBName})
	promRegistry := metrics.SetupPrometheus(dbPoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0,
	})
	if params.HoneycombTracingEnabled {
		rdb.AddHook(redisotel.NewTracingHook())
	}
	rdbStatus := rdb.Ping(ctx)
	log.Debugf("redis ping: %s", rdbStatus.Val())

	authService := auth.NewService(auth.DefaultTTL, rdb)
	loginChecker := auth.NewLoginChecker(auth.DefaultTTL, rdb)

	// periodically clean up expired sessions
	go func() {
		for range time.Tick(8 * time.Hour) {
			authService.ScanAndClean(ctx)
		}
	}()

	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fitlog-backend")
	if err != nil {
		return nil, fmt.Errorf("honeycomb setup: %w", err)
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   10 * time.Second,
	}
	welcomeNotifier := users.NewWelcomeNotifier(cfg.NotifierEndpoint, tracedHttpClient)

	usersHandler := users.NewHandler(
		users.NewRepo(dbPool),
		authService,
		loginChecker,
		welcomeNotifier,
		metricsManager,
	)
	workoutsHandler := workouts.NewHandler(workouts.NewRepo(dbPool), metricsManager)
	galleryHandler := gallery.NewHandler(gallery.NewRepo(dbPool), metricsManager)

	return &Server{
		config:          cfg,
		versionInfo:     params.VersionInfo,
		dbPool:          dbPool,
		redisClient:     rdb,
		authService:     authService,
		loginChecker:    loginChecker,
		usersHandler:    usersHandler,
		workoutsHandler: workoutsHandler,
		galleryHandler:  galleryHandler,
		metricsManager:  metricsManager,
		promHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		otelShutdown:    otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
	})
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	})

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	s.usersHandler.SetupRoutes(
		r,
		reqRateLimiter,
		s.config.LoginRateLimitAllowedPerMin,
		s.metricsManager,
	)
	s.workoutsHandler.SetupRoutes(r)
	s.galleryHandler.SetupRoutes(r)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Warnf("unknown path: %s", r.URL.Path)
		http.Error(w, "unknown path", http.StatusNotFound)
	})

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	// the order of these middleware functions is important
	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// Serve starts the main and the metrics listeners and returns, the
// caller is expected to block and call GracefulShutdown when done.
func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", s.promHandler)
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

func (s *Server) GracefulShutdown() {
	log.Debugln("graceful shutdown initiated ...")
	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.otelShutdown != nil {
		s.otelShutdown()
	}

	if err := s.redisClient.Close(); err != nil {
		log.Errorf("failed to close redis client connection: %s", err)
	}

	s.dbPool.Close()

	// flush buffered sentry events before the program terminates
	sentry.Flush(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Errorf("metrics server shutdown: %s", err)
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Fatalf("graceful shutdown failed: %s", err)
		}
	}

	log.Warnln("server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Inc()
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Dec()
	}
}
