package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/squadra-app/livetrack/internal/config"
	"github.com/squadra-app/livetrack/internal/geo"
	"github.com/squadra-app/livetrack/internal/ingest"
	"github.com/squadra-app/livetrack/internal/storage"
	"github.com/squadra-app/livetrack/internal/surface"
)

// Server is the tracking gateway: it implements the ride data service API the
// live screen polls, and hosts the websocket endpoint render surfaces connect
// to.
type Server struct {
	logger     *slog.Logger
	rides      *RideRegistry
	fixes      geo.RiderStore
	activities storage.ActivityStore
	producer   *ingest.KafkaProducer
	surfaces   *surface.WSRegistry
	staleAfter time.Duration
	router     *mux.Router
}

// Options carries the pluggable backends. Nil fields fall back to in-memory
// implementations; Producer may stay nil when Kafka is not configured.
type Options struct {
	Fixes      geo.RiderStore
	Activities storage.ActivityStore
	Producer   *ingest.KafkaProducer
	StaleAfter time.Duration
}

func NewServer(logger *slog.Logger, opts Options) *Server {
	if opts.Fixes == nil {
		opts.Fixes = geo.NewIndex()
	}
	if opts.Activities == nil {
		opts.Activities = storage.NewMemoryStore()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 120 * time.Second
	}
	s := &Server{
		logger:     logger,
		rides:      NewRideRegistry(),
		fixes:      opts.Fixes,
		activities: opts.Activities,
		producer:   opts.Producer,
		surfaces:   surface.NewWSRegistry(logger),
		staleAfter: opts.StaleAfter,
		router:     mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

// NewServerFromConfig wires backends from the gateway config: Redis and
// Postgres when addresses are present, in-memory otherwise.
func NewServerFromConfig(cfg config.GatewayConfig, logger *slog.Logger) *Server {
	opts := Options{StaleAfter: cfg.StaleAfter}
	if cfg.RedisAddr != "" {
		opts.Fixes = geo.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
	}
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			opts.Activities = ps
		} else {
			logger.Warn("postgres unavailable, using in-memory activity store", "error", err)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		opts.Producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	return NewServer(logger, opts)
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/rides", s.handleCreateRide).Methods("POST")
	s.router.HandleFunc("/api/v1/rides/{ride_id}/status", s.handleSetStatus).Methods("POST")
	s.router.HandleFunc("/api/v1/rides/{ride_id}/live", s.handleLiveData).Methods("GET")
	s.router.HandleFunc("/api/v1/rides/{ride_id}/location", s.handleLocation).Methods("POST")
	s.router.HandleFunc("/api/v1/rides/{ride_id}/alerts", s.handleAlert).Methods("POST")
	s.router.HandleFunc("/api/v1/rides/{ride_id}/activities", s.handleActivities).Methods("GET")
	s.router.HandleFunc("/ws/{screen_id}", s.handleSurfaceWS)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }
