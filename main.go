package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Folau1/WebApp/internal/auth"
	"github.com/Folau1/WebApp/internal/config"
	delivery "github.com/Folau1/WebApp/internal/delivery/http"
	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/messaging"
	"github.com/Folau1/WebApp/internal/messaging/kafka"
	"github.com/Folau1/WebApp/internal/notify"
	"github.com/Folau1/WebApp/internal/payment/yookassa"
	"github.com/Folau1/WebApp/internal/repository"
	"github.com/Folau1/WebApp/internal/repository/postgres"
	"github.com/Folau1/WebApp/internal/repository/redis"
	"github.com/Folau1/WebApp/internal/service"
	"github.com/Folau1/WebApp/internal/telemetry"
)

const serviceName = "storefront-api"

func main() {
	// hash-password prints a bcrypt hash for ADMIN_PASSWORD_HASH.
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if err := run(); err != nil {
		slog.Error("Service stopped with error", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Telemetry ---
	metrics, shutdownMetrics, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownMetrics(sctx); err != nil {
			slog.Warn("Failed to flush metrics", "err", err)
		}
	}()

	// --- Database ---
	db, err := postgres.InitDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.SeedDemo {
		if err := postgres.SeedCatalog(ctx, db); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}

	orderRepo := postgres.NewOrderRepository(db)
	productRepo := postgres.NewProductRepository(db)
	discountRepo := postgres.NewDiscountRepository(db)
	userRepo := postgres.NewUserRepository(db)
	eventStore := postgres.NewEventStore(db)

	// --- Redis ---
	var deduper repository.WebhookDeduper
	if cfg.RedisAddr != "" {
		rdb := redis.NewDeduper(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			slog.Warn("Redis unavailable, webhook deduplication relies on order state only", "addr", cfg.RedisAddr, "err", err)
		} else {
			deduper = rdb
		}
	}

	// --- Kafka ---
	broker := kafka.NewKafkaBroker(cfg.KafkaBrokers)
	defer broker.Close()

	// --- Services ---
	workflow, err := entity.WorkflowByName(cfg.OrderWorkflow)
	if err != nil {
		return err
	}

	gateway := yookassa.NewClient(yookassa.Config{
		ShopID:        cfg.YKShopID,
		SecretKey:     cfg.YKSecretKey,
		APIURL:        cfg.YKAPIURL,
		PaymentMethod: cfg.YKPaymentMethod,
		Timeout:       cfg.GatewayTimeout,
	})

	catalogSvc := service.NewCatalogService(productRepo, discountRepo)
	orderSvc := service.NewOrderService(orderRepo, productRepo, discountRepo, eventStore, workflow, metrics)
	paymentSvc := service.NewPaymentService(orderRepo, eventStore, gateway, broker, deduper, workflow, service.PaymentConfig{
		Currency:      cfg.Currency,
		ReturnURL:     cfg.YKReturnURL,
		WebhookSecret: []byte(cfg.YKWebhookSecret),
	}, metrics)

	// Consumer: orders.paid -> bot notification
	notifier := notify.NewBotNotifier(cfg.BotURL, cfg.BotSecret, cfg.GatewayTimeout, metrics)
	go broker.Consume(ctx, messaging.TopicOrdersPaid, messaging.GroupBotNotifier, notifier.HandleOrderPaid)

	// --- HTTP API ---
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, serviceName, cfg.JWTTTL)
	authn := delivery.NewAuthenticator(auth.NewTelegramValidator(cfg.BotToken), userRepo, jwtManager)
	handler := delivery.NewHandler(catalogSvc, orderSvc, paymentSvc, authn, jwtManager,
		delivery.AdminCredentials{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash},
		delivery.WithRateLimiter(delivery.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)),
		delivery.WithHealthCheck(db.PingContext),
	)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           delivery.EnableCORS(delivery.Instrument(metrics, mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr, "workflow", workflow.Name)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}

	slog.Info("Shutting down...")
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	return httpServer.Shutdown(sctx)
}
