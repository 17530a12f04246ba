package api

import (
	"net/http"
	_ "net/http/pprof"

	"condor/internal/api/handlers"
	"condor/internal/api/middleware"
	"condor/internal/service"
	"condor/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	StructureService    *service.StructureService
	RiskService         *service.RiskService
	StatsService        *service.StatsService
	SettingsService     *service.SettingsService
	NotificationService *service.NotificationService
	BlacklistService    *service.BlacklistService

	// WSHub раздает real-time обновления дашборду. Опционален.
	WSHub *websocket.Hub

	// APIToken - bearer токен операторского API (Security.APIToken).
	// Пустой токен закрывает доступ ко всем /api/v1 маршрутам.
	APIToken string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
// Организует версионирование API (v1).
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /structures/
//	│   ├── GET / - список структур
//	│   ├── GET /active - отслеживаемые структуры
//	│   ├── GET /{id} - получить структуру
//	│   ├── GET /{id}/orders - ордера ног структуры
//	│   ├── GET /{id}/pnl - текущий PnL
//	│   └── POST /{id}/close - принудительное закрытие
//	├── /risk/
//	│   ├── GET / - состояние риск-бюджета
//	│   ├── GET /status - флаги остановки и паузы
//	│   ├── POST /emergency-stop - аварийная остановка
//	│   └── POST /resume - возобновить торговлю
//	├── /scan/
//	│   ├── POST /pause - приостановить сканер
//	│   ├── POST /resume - возобновить сканер
//	│   └── POST /now - внеочередной цикл
//	├── /notifications/
//	│   ├── GET / - получить уведомления
//	│   └── DELETE / - очистить журнал
//	├── /stats/
//	│   └── GET / - получить статистику
//	├── /blacklist/
//	│   ├── GET / - получить черный список
//	│   ├── POST / - добавить экспирацию
//	│   └── DELETE /{id} - удалить запись
//	└── /settings/
//	    ├── GET / - получить настройки
//	    ├── PATCH / - обновить настройки
//	    ├── PUT /credentials - обновить API ключи биржи
//	    └── POST /reset - сброс к значениям по умолчанию
//
// /ws - WebSocket для real-time обновлений
// /health - проверка живости (без авторизации)
// /metrics - Prometheus метрики (без авторизации)
// /debug/pprof - профилирование (Basic Auth через DebugAuth)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (для всех /api/v1 маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var structureHandler *handlers.StructureHandler
	if deps != nil && deps.StructureService != nil {
		structureHandler = handlers.NewStructureHandler(deps.StructureService)
	}

	var riskHandler *handlers.RiskHandler
	if deps != nil && deps.RiskService != nil {
		riskHandler = handlers.NewRiskHandler(deps.RiskService)
	}

	// Stats handler с внедрением зависимости
	var statsHandler *handlers.StatsHandler
	if deps != nil && deps.StatsService != nil {
		statsHandler = handlers.NewStatsHandler(deps.StatsService)
	}

	// Settings handler с внедрением зависимости
	var settingsHandler *handlers.SettingsHandler
	if deps != nil && deps.SettingsService != nil {
		settingsHandler = handlers.NewSettingsHandler(deps.SettingsService)
	}

	// Notification handler с внедрением зависимости
	var notificationHandler *handlers.NotificationHandler
	if deps != nil && deps.NotificationService != nil {
		notificationHandler = handlers.NewNotificationHandler(deps.NotificationService)
	}

	// Blacklist handler с внедрением зависимости
	var blacklistHandler *handlers.BlacklistHandler
	if deps != nil && deps.BlacklistService != nil {
		blacklistHandler = handlers.NewBlacklistHandler(deps.BlacklistService)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Операторский API закрыт bearer токеном
	var apiToken string
	if deps != nil {
		apiToken = deps.APIToken
	}
	api.Use(middleware.Auth(apiToken))

	// Structure routes
	if structureHandler != nil {
		api.HandleFunc("/structures", structureHandler.GetStructures).Methods("GET")
		api.HandleFunc("/structures/active", structureHandler.GetActiveStructures).Methods("GET")
		api.HandleFunc("/structures/{id}", structureHandler.GetStructure).Methods("GET")
		api.HandleFunc("/structures/{id}/orders", structureHandler.GetStructureOrders).Methods("GET")
		api.HandleFunc("/structures/{id}/pnl", structureHandler.GetStructurePnl).Methods("GET")
		api.HandleFunc("/structures/{id}/close", structureHandler.ForceClose).Methods("POST")
	}

	// Risk / scan routes
	if riskHandler != nil {
		api.HandleFunc("/risk", riskHandler.GetRiskSummary).Methods("GET")
		api.HandleFunc("/risk/status", riskHandler.GetStatus).Methods("GET")
		api.HandleFunc("/risk/emergency-stop", riskHandler.EmergencyStop).Methods("POST")
		api.HandleFunc("/risk/resume", riskHandler.ResumeTrading).Methods("POST")
		api.HandleFunc("/scan/pause", riskHandler.PauseScan).Methods("POST")
		api.HandleFunc("/scan/resume", riskHandler.ResumeScan).Methods("POST")
		api.HandleFunc("/scan/now", riskHandler.ScanNow).Methods("POST")
	}

	// Notification routes
	if notificationHandler != nil {
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications", notificationHandler.ClearNotifications).Methods("DELETE")
	}

	// Stats routes
	if statsHandler != nil {
		api.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")
	}

	// Blacklist routes
	if blacklistHandler != nil {
		api.HandleFunc("/blacklist", blacklistHandler.GetBlacklist).Methods("GET")
		api.HandleFunc("/blacklist", blacklistHandler.AddToBlacklist).Methods("POST")
		api.HandleFunc("/blacklist/{id}", blacklistHandler.RemoveFromBlacklist).Methods("DELETE")
	}

	// Settings routes
	if settingsHandler != nil {
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
		api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods("PATCH")
		api.HandleFunc("/settings/credentials", settingsHandler.UpdateCredentials).Methods("PUT")
		api.HandleFunc("/settings/reset", settingsHandler.ResetSettings).Methods("POST")
	}

	// WebSocket route
	if deps != nil && deps.WSHub != nil {
		hub := deps.WSHub
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// pprof (импорт net/http/pprof регистрирует его на DefaultServeMux)
	router.PathPrefix("/debug/pprof/").Handler(middleware.DebugAuth(http.DefaultServeMux))

	return router
}
