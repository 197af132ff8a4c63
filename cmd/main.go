package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skathuria/modelgw/pkg/api"
	"github.com/skathuria/modelgw/pkg/backend"
	"github.com/skathuria/modelgw/pkg/backend/mock"
	"github.com/skathuria/modelgw/pkg/breaker"
	"github.com/skathuria/modelgw/pkg/cache"
	"github.com/skathuria/modelgw/pkg/config"
	"github.com/skathuria/modelgw/pkg/events"
	"github.com/skathuria/modelgw/pkg/gateway"
	"github.com/skathuria/modelgw/pkg/ledger"
	"github.com/skathuria/modelgw/pkg/middleware"
	"github.com/skathuria/modelgw/pkg/moderation"
	"github.com/skathuria/modelgw/pkg/retry"
	"github.com/skathuria/modelgw/pkg/storage"
)

func main() {
	// 1. Load Config with hot reload
	cfgStore, err := config.LoadAndWatch()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgStore.Get()
	if cfg == nil {
		log.Fatal("Config could not be read")
	}

	sink := events.LogSink{}

	// 2. Initialize Redis (if enabled)
	var rdb *cache.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		fmt.Println("✅ Connected to Redis successfully!")
	}

	// 3. Backend adapters. Real adapters are injected by the embedding
	// platform; the mock kind keeps local runs self-contained.
	adapters := make([]backend.Adapter, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		switch b.Kind {
		case "mock", "":
			adapters = append(adapters, mock.New(b.ID,
				mock.WithPayload(b.Payload),
				mock.WithCost(b.CostUSD),
			))
		default:
			log.Fatalf("Unknown backend kind %q for %s", b.Kind, b.ID)
		}
	}
	if len(adapters) == 0 {
		log.Fatal("No backends configured")
	}
	fmt.Printf("✅ %d backend(s) registered\n", len(adapters))

	// 4. Resilience and governance collaborators
	breakers, err := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		SweepInterval:    cfg.Breaker.SweepInterval,
	}, sink)
	if err != nil {
		log.Fatalf("Failed to create breaker registry: %v", err)
	}
	defer breakers.Stop()

	costLedger, err := ledger.New(ledger.Limits{
		DailyUSD:    cfg.Budget.DailyLimitUSD,
		MonthlyUSD:  cfg.Budget.MonthlyLimitUSD,
		WarnPercent: cfg.Budget.WarnPercent,
	}, sink)
	if err != nil {
		log.Fatalf("Failed to create cost ledger: %v", err)
	}

	var respCache cache.ResponseCache
	if rdb != nil {
		respCache = cache.NewRedisCache(rdb)
		fmt.Println("✅ Response cache: Redis")
	} else {
		respCache, err = cache.NewMemory(cfg.Cache.MaxEntries)
		if err != nil {
			log.Fatalf("Failed to create response cache: %v", err)
		}
		fmt.Printf("✅ Response cache: in-memory (%d entries)\n", cfg.Cache.MaxEntries)
	}

	// The moderation collaborator is provided by the platform; standalone
	// deployments run with a pass-through moderator.
	var gate *moderation.Gate
	if cfg.Moderation.Enabled {
		clean := moderation.Func(func(ctx context.Context, text string) (moderation.Verdict, error) {
			return moderation.Verdict{}, nil
		})
		gate, err = moderation.NewGate(clean, cfg.Moderation.ConfidenceThreshold)
		if err != nil {
			log.Fatalf("Failed to create moderation gate: %v", err)
		}
		fmt.Println("✅ Moderation gate enabled")
	}

	// 5. Router + facade
	router, err := gateway.NewRouter(gateway.RouterConfig{
		Adapters: adapters,
		Breakers: breakers,
		Retry:    retryPolicy(cfg),
		Ledger:   costLedger,
		Cache:    respCache,
		Gate:     gate,
		Pricing:  cfg.Pricing,
		CacheTTL: cfg.Cache.TTL,
		Sink:     sink,
	})
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	var store storage.Store
	if cfg.Logging.Enabled {
		if rdb != nil {
			retentionDays := cfg.Logging.RetentionDays
			if retentionDays == 0 {
				retentionDays = 30
			}
			store = storage.NewRedisStore(rdb, time.Duration(retentionDays)*24*time.Hour)
			fmt.Println("✅ Generation audit log: Redis")
		} else {
			store = storage.NewMemoryStore(10000)
			fmt.Println("✅ Generation audit log: in-memory")
		}
	}

	gw := gateway.New(router, store)

	// 6. Setup HTTP Server
	mux := http.NewServeMux()

	server := api.NewServer(gw, costLedger, breakers, store, cfgStore)
	server.RegisterRoutes(mux)

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Middleware (order matters: rate limiter inside, console logger outer-most)
	var handler http.Handler = mux
	handler = middleware.NewRateLimiter(rdb, cfgStore)(handler)
	if cfg.RateLimit.Enabled {
		fmt.Printf("✅ Rate limiting: %.1f req/s (burst: %d)\n",
			cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	handler = middleware.RequestLogger(handler)

	// 7. Start Server
	fmt.Println("\n🚀 Gateway Features Active:")
	fmt.Println("   - Generate:        http://localhost" + cfg.Server.Port + "/v1/generate")
	fmt.Println("   - Batch:           http://localhost" + cfg.Server.Port + "/v1/generate/batch")
	fmt.Println("   - Admin API:       http://localhost" + cfg.Server.Port + "/admin/*")
	fmt.Println("   - Metrics:         http://localhost" + cfg.Server.Port + "/metrics")
	fmt.Println("   - Health Check:    http://localhost" + cfg.Server.Port + "/health")
	fmt.Println("\n📊 Configuration can be hot-reloaded by editing configs/config.yaml")
	fmt.Printf("\n🎯 Server listening on %s\n", cfg.Server.Port)

	if err := http.ListenAndServe(cfg.Server.Port, handler); err != nil {
		log.Fatal("Server failed:", err)
	}
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
		Classify:   backend.IsRetryable,
	}
}
