package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"condor/internal/api"
	"condor/internal/bot"
	"condor/internal/config"
	"condor/internal/exchange"
	"condor/internal/models"
	"condor/internal/repository"
	"condor/internal/service"
	"condor/internal/websocket"
	"condor/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		utils.Error("failed to connect to database", utils.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	utils.Info("connected to database",
		utils.String("host", cfg.Database.Host),
		utils.String("name", cfg.Database.Name))

	// Инициализация репозиториев
	structureRepo := repository.NewStructureRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)

	// Настройки нужны до запуска ядра: в них лежат ключи биржи
	settingsService := service.NewSettingsService(settingsRepo, []byte(cfg.Security.EncryptionKey))

	// Подключение к бирже. Ключи берутся из БД (зашифрованы),
	// переменные окружения - fallback для первого запуска
	exch, err := connectExchange(cfg, settingsService)
	if err != nil {
		utils.Error("failed to connect to exchange", utils.Err(err))
		os.Exit(1)
	}
	defer exch.Close()

	// WebSocket hub для real-time обновлений дашборда
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Торговое ядро
	engine := bot.NewEngine(cfg, exch, wsHub)

	// Сервисный слой
	structureService := service.NewStructureService(structureRepo, orderRepo, engine)
	riskService := service.NewRiskService(engine)
	notificationService := service.NewNotificationService(notificationRepo, settingsRepo)
	notificationService.SetWebSocketHub(wsHub)
	statsService := service.NewStatsService(statsRepo)
	blacklistService := service.NewBlacklistService(blacklistRepo)

	// Связываем ядро с персистентностью и фильтрами
	engine.SetNotificationSink(func(notif *models.Notification) {
		if err := notificationService.CreateNotification(notif); err != nil {
			utils.Warn("failed to persist notification", utils.Err(err))
		}
	})
	engine.SetStructurePersist(func(c *models.Condor) {
		if err := structureService.PersistStructure(c); err != nil {
			utils.Error("failed to persist structure",
				utils.StructureID(c.ID), utils.Err(err))
		}
	})
	engine.SetOrderRecorder(func(order *models.LegOrderRecord) {
		if err := structureService.RecordOrder(order); err != nil {
			utils.Warn("failed to record leg order", utils.Err(err))
		}
	})
	engine.SetBlacklist(func(currency string, expiration time.Time) bool {
		blocked, err := blacklistService.IsBlacklisted(currency, models.ExpirationLabel(expiration))
		if err != nil {
			utils.Warn("blacklist check failed", utils.Currency(currency), utils.Err(err))
			return false
		}
		return blocked
	})

	// Запуск торгового ядра
	engineCtx, engineCancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(engineCtx); err != nil {
			utils.Error("engine exited with error", utils.Err(err))
		}
	}()

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		StructureService:    structureService,
		RiskService:         riskService,
		StatsService:        statsService,
		SettingsService:     settingsService,
		NotificationService: notificationService,
		BlacklistService:    blacklistService,
		WSHub:               wsHub,
		APIToken:            cfg.Security.APIToken,
	})

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		utils.Info("starting server", utils.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			utils.Error("server failed", utils.Err(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Info("shutting down")

	// Сначала останавливаем ядро: Run сохраняет снапшот при выходе
	engineCancel()
	select {
	case <-engineDone:
	case <-time.After(30 * time.Second):
		utils.Error("engine shutdown timed out")
	}

	wsHub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		utils.Error("server forced to shutdown", utils.Err(err))
		os.Exit(1)
	}

	utils.Info("server exited")
}

// connectExchange создает и подключает биржу.
//
// Приоритет источников ключей:
// 1. Зашифрованные ключи из БД (обновляются через PUT /settings/credentials)
// 2. Переменные окружения EXCHANGE_API_KEY / EXCHANGE_API_SECRET
func connectExchange(cfg *config.Config, settings *service.SettingsService) (exchange.Exchange, error) {
	name := cfg.Exchange.Name
	apiKey := cfg.Exchange.APIKey
	apiSecret := cfg.Exchange.APISecret

	dbName, dbKey, dbSecret, err := settings.GetDecryptedCredentials()
	if err != nil {
		utils.Warn("failed to load credentials from settings, using env", utils.Err(err))
	} else {
		if dbName != "" {
			name = dbName
		}
		if dbKey != "" && dbSecret != "" {
			apiKey = dbKey
			apiSecret = dbSecret
		}
	}

	exch, err := exchange.NewExchange(name)
	if err != nil {
		return nil, err
	}

	if err := exch.Connect(apiKey, apiSecret); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", name, err)
	}

	utils.Info("connected to exchange", utils.Exchange(name))
	return exch, nil
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
