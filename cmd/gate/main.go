package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/clawr-ai/gate/adapters/events"
	"github.com/clawr-ai/gate/adapters/facilitator"
	"github.com/clawr-ai/gate/adapters/store"
	"github.com/clawr-ai/gate/adapters/tokenizer"
	"github.com/clawr-ai/gate/config"
	"github.com/clawr-ai/gate/ports"
	"github.com/clawr-ai/gate/service"
	gatehttp "github.com/clawr-ai/gate/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if cfg.SessionSecretGenerated {
		logger.Warn("SESSION_SECRET not set, generated an ephemeral secret; sessions will not survive a restart")
	}

	// Telemetry always has the in-memory ledger; a Redis stream publisher is
	// added when Redis is configured.
	ledger := events.NewMemoryLedger(cfg.TelemetryMaxEvents)
	var sink ports.TelemetrySink = ledger

	challengeStore := ports.ChallengeStore(store.NewMemoryStore())
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		challengeStore = store.NewRedisStore(redisClient)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
		sink = events.NewFanoutSink(ledger, events.NewWatermillSink(publisher, logger))
	}

	authService := service.NewAuthService(challengeStore, tokenizer.NewJWTTokenizer(cfg.SessionSecret))

	facilitatorClient := facilitator.NewHTTPClient(cfg.FacilitatorURLs,
		facilitator.WithAPIKey(cfg.FacilitatorAPIKey))
	builder := service.NewChallengeBuilder(cfg.Network, cfg.PayTo)
	gateway := service.NewPaymentGateway(builder, facilitatorClient, sink, logger)

	router := gatehttp.SetupRouter(gatehttp.Deps{
		Auth:            authService,
		Gateway:         gateway,
		Ledger:          ledger,
		Network:         cfg.Network,
		PayTo:           cfg.PayTo,
		FacilitatorURLs: cfg.FacilitatorURLs,
		CookieName:      cfg.SessionCookieName,
		SecureCookies:   cfg.RuntimeEnv == config.EnvProd,
		AuthOrigin:      cfg.AuthOrigin,
		PaidRoutes: []gatehttp.PaidRoute{
			{
				Policy: service.RoutePolicy{
					Resource:    "/v1/reports/weekly",
					Price:       "0.001",
					Description: "Weekly usage report",
					MimeType:    "application/json",
				},
				Handler: func(c *gin.Context) {
					c.JSON(http.StatusOK, gin.H{
						"ok":        true,
						"report":    "weekly",
						"requestId": gatehttp.RequestIDFrom(c),
					})
				},
			},
		},
	})

	logger.Info("starting gateway",
		"env", string(cfg.RuntimeEnv),
		"network", cfg.Network,
		"facilitators", cfg.FacilitatorURLs,
		"addr", cfg.ListenAddr)

	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
