package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/squadra-app/livetrack/internal/geo"
	"github.com/squadra-app/livetrack/internal/models"
)

var (
	fixesConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_fixes_consumed_total",
		Help: "Total rider fix messages consumed",
	})
	fixesInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_fixes_invalid_total",
		Help: "Total invalid messages received",
	})
	storeUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_store_updates_total",
		Help: "Total successful rider store updates",
	})
	storeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_store_errors_total",
		Help: "Total rider store errors",
	})
)

func init() {
	prometheus.MustRegister(fixesConsumed, fixesInvalid, storeUpdates, storeErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "rider-fixes"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "livetrack-consumer"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	prefix := os.Getenv("REDIS_PREFIX")
	if prefix == "" {
		prefix = "livetrack"
	}
	store := geo.NewRedisStore(redisAddr, os.Getenv("REDIS_PASSWORD"), prefix)

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := store.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
	}()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		fixesConsumed.Inc()

		var fix models.RiderFix
		if err := json.Unmarshal(m.Value, &fix); err != nil {
			fixesInvalid.Inc()
			log.Printf("invalid message: %v", err)
			continue
		}
		if fix.RideID == "" || fix.UserID == "" {
			fixesInvalid.Inc()
			log.Printf("fix missing ride or user id: key=%s", string(m.Key))
			continue
		}

		// Try updating the store with retries and small backoff
		if err := upsertWithRetry(ctx, store, fix, 3, 200*time.Millisecond); err != nil {
			storeErrors.Inc()
			log.Printf("store update failed for rider=%s: %v", fix.UserID, err)
			continue
		}
		storeUpdates.Inc()
	}
}

// FixUpserter is the small subset of the rider store we need for tests and
// production.
type FixUpserter interface {
	Upsert(ctx context.Context, fix models.RiderFix) error
}

// upsertWithRetry writes a fix through the FixUpserter with retry/backoff.
func upsertWithRetry(ctx context.Context, store FixUpserter, fix models.RiderFix, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.Upsert(ctx, fix); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
