package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-relay/internal/auth"
	"dm-relay/internal/config"
	"dm-relay/internal/db"
	"dm-relay/internal/delivery"
	"dm-relay/internal/handlers"
	"dm-relay/internal/middleware"
	"dm-relay/internal/observability"
	"dm-relay/internal/rabbitmq"
	"dm-relay/internal/repositories"
	"dm-relay/internal/telemetry"
	"dm-relay/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.OTLPEndpoint, "dm-relay", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer(context.Background())

	if cfg.AMQPURL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("ws event publishing disabled: %v", err)
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit.dm", "dm-relay", cfg.Environment)

	tokens := auth.NewJWTManager(cfg.JWTSecret)

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()
	router := delivery.NewRouter(messageRepo, hub)
	receipts := delivery.NewReceiptTracker(messageRepo)

	authHandler := handlers.NewAuthHandler(userRepo, tokens, auditEmitter)
	messageHandler := handlers.NewMessageHandler(router, receipts, messageRepo, auditEmitter)
	realtime := ws.NewRealtimeHandler(hub, router, tokens)

	engine := gin.Default()
	engine.Use(otelgin.Middleware("dm-relay"))
	engine.Use(observability.HTTPMetricsMiddleware())

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "dm relay is running")
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/api/auth/register", authHandler.Register)
	engine.POST("/api/auth/login", authHandler.Login)

	authMiddleware := middleware.AuthMiddleware(tokens)
	engine.GET("/api/users", authMiddleware, authHandler.ListUsers)
	engine.POST("/api/messages", authMiddleware, messageHandler.SendMessage)
	engine.GET("/api/messages/:user_id", authMiddleware, messageHandler.GetConversation)
	engine.GET("/api/messages/:user_id/summary", authMiddleware, messageHandler.GetSummary)
	engine.PATCH("/api/messages/:user_id/seen", authMiddleware, messageHandler.MarkSeen)

	engine.GET("/ws", realtime.Handle)

	handlers.RegisterDebugRoutes(engine, auditEmitter, cfg.DebugRoutes)

	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
