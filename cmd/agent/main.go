package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/payops-agent-gateway/internal/audit"
	"github.com/xela07ax/payops-agent-gateway/internal/compliance"
	"github.com/xela07ax/payops-agent-gateway/internal/connectors"
	"github.com/xela07ax/payops-agent-gateway/internal/engine"
	"github.com/xela07ax/payops-agent-gateway/internal/infra"
	"github.com/xela07ax/payops-agent-gateway/internal/infra/auth"
	"github.com/xela07ax/payops-agent-gateway/internal/memory"
	"github.com/xela07ax/payops-agent-gateway/internal/policy"
	"github.com/xela07ax/payops-agent-gateway/internal/repository/postgres"
	"github.com/xela07ax/payops-agent-gateway/internal/risk"
	"github.com/xela07ax/payops-agent-gateway/internal/server"
	"github.com/xela07ax/payops-agent-gateway/internal/store"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Датасет и каталог политик. Ошибки здесь — фатальная конфигурация:
	// без валидных данных процесс не поднимаем.
	dataset, err := store.LoadDataset(cfg.Data.Dir)
	if err != nil {
		logger.Fatal("dataset load failed", zap.String("dir", cfg.Data.Dir), zap.Error(err))
	}
	records := store.NewRecordStore(dataset, logger)

	catalog := policy.NewCatalog(&dataset.Policies, logger)
	if err := catalog.Validate(); err != nil {
		logger.Fatal("policy catalog is invalid", zap.Error(err))
	}

	// 3. Redis (опционально): память тредов + watchlist
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(appCtx).Err(); err != nil {
			logger.Fatal("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	var mem memory.Store
	var watchlist *engine.Watchlist
	if rdb != nil {
		mem = memory.NewRedisStore(rdb, cfg.Redis.ThreadTTL, logger)
		watchlist = engine.NewWatchlist(rdb, logger)
		if err := watchlist.Init(appCtx); err != nil {
			logger.Fatal("failed to init watchlist", zap.Error(err))
		}
		go watchlist.StartListener(appCtx)
	} else {
		logger.Warn("redis is not configured: using in-process thread memory, watchlist disabled")
		mem = memory.NewMemStore()
	}

	// 4. След расследований: Postgres пачками либо структурный лог
	var sink audit.BatchSink
	if cfg.Database.URL != "" {
		repo, err := postgres.NewTrailRepo(cfg.Database.URL)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
		if err := repo.Ping(pingCtx); err != nil {
			logger.Fatal("postgres unreachable", zap.Error(err))
		}
		pingCancel()
		defer repo.Close()
		sink = repo
	} else {
		logger.Warn("postgres is not configured: investigation trail goes to log only")
		sink = &audit.LogSink{Logger: logger.Named("trail-sink")}
	}
	trail := audit.NewTrail(sink, logger)
	trail.Start()

	// 5. Метрики (отдельный реестр, отдельный порт)
	promReg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(promReg)
	trail.OnFill(func(n int) { metrics.TrailBufferFill.Set(float64(n)) })

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// 6. Канал доставки эскалаций: вебхук мессенджера либо локальный mock
	var messenger engine.Messenger
	if cfg.Notifier.Endpoint != "" {
		messenger = connectors.NewWebhookMessenger(cfg.Notifier.Endpoint, cfg.Notifier.Token, cfg.Notifier.Timeout, logger)
	} else {
		logger.Warn("notifier endpoint is not configured: escalations go to mock messenger")
		messenger = connectors.NewMockMessenger(logger)
	}
	delivery := engine.NewDeliveryWrapper(messenger, catalog.Escalation(), metrics, logger)
	router := engine.NewRouter(delivery, catalog.Escalation(), logger)

	// 7. Ядро: эвалуаторы + реестр операций + оркестратор
	registry := engine.NewRegistry(
		records,
		risk.NewEvaluator(records, catalog, logger),
		risk.NewSelector(records, logger),
		compliance.NewEvaluator(records, catalog, logger),
		policy.NewRetriever(catalog, logger),
		router,
		engine.NewTracker(),
		trail,
		metrics,
		logger,
		nil,
	)
	investigator := engine.NewInvestigator(registry, mem, watchlist, logger, nil)

	// 8. Auth: RS256 валидация + выдача токенов (если ключи сконфигурированы)
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("failed to parse public key", zap.Error(err))
		}
		validator = auth.NewBaseValidator(pubKey)
	}
	var tokens *auth.Service
	if len(cfg.Auth.PrivateKey) > 0 {
		privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
		if err != nil {
			logger.Fatal("failed to parse private key", zap.Error(err))
		}
		tokens = auth.NewService(privKey, cfg.Auth.Clients, cfg.Auth.TokenTTL, logger)
	}

	// 9. HTTP Server
	handler := server.NewHandler(investigator, registry, watchlist, tokens, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.New(handler, validator, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 10. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("payops agent gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutting down...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Останавливаем фоновые слушатели и дописываем след до конца
	cancel()
	trail.Stop()
	logger.Info("exited properly")
}
