package service

import (
	"context"
	"time"

	"condor/internal/models"
	"condor/internal/repository"
)

// StructureRepositoryInterface определяет интерфейс репозитория структур
type StructureRepositoryInterface interface {
	Create(c *models.Condor) error
	Upsert(c *models.Condor) error
	GetByID(id string) (*models.Condor, error)
	GetAll(limit int) ([]*models.Condor, error)
	GetByStatus(status string) ([]*models.Condor, error)
	GetActive() ([]*models.Condor, error)
	GetClosedInTimeRange(from, to time.Time) ([]*models.Condor, error)
	UpdateStatus(id, status string) error
	MarkClosed(id, reason string, pnl float64, closedAt time.Time) error
	Count() (int, error)
	CountByStatus(status string) (int, error)
	DeleteOlderThan(timestamp time.Time) (int64, error)
}

// OrderRepositoryInterface определяет интерфейс репозитория ордеров
type OrderRepositoryInterface interface {
	Create(order *models.LegOrderRecord) error
	GetByID(id int) (*models.LegOrderRecord, error)
	GetByStructureID(structureID string) ([]*models.LegOrderRecord, error)
	GetRecent(limit int) ([]*models.LegOrderRecord, error)
	GetByStatus(status string) ([]*models.LegOrderRecord, error)
	GetByPhase(phase string, limit int) ([]*models.LegOrderRecord, error)
	Count() (int, error)
	CountByStatus(status string) (int, error)
	DeleteByStructureID(structureID string) error
	DeleteOlderThan(timestamp time.Time) (int64, error)
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(n *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	GetByTypes(types []string, limit int) ([]*models.Notification, error)
	GetByStructureID(structureID string) ([]*models.Notification, error)
	GetSince(since time.Time) ([]*models.Notification, error)
	Count() (int, error)
	CountByType(notifType string) (int, error)
	KeepRecent(keepCount int) (int64, error)
	DeleteAll() error
	DeleteOlderThan(timestamp time.Time) (int64, error)
}

// SettingsRepositoryInterface определяет интерфейс репозитория настроек
type SettingsRepositoryInterface interface {
	Get() (*models.Settings, error)
	Update(s *models.Settings) error
	UpdateCredentials(exchange, apiKey, apiSecret string) error
	UpdateScanPaused(paused bool) error
	UpdateMaxOpenStructures(max *int) error
	UpdateNotificationPrefs(prefs models.NotificationPreferences) error
	GetNotificationPrefs() (*models.NotificationPreferences, error)
	ResetToDefaults() error
}

// BlacklistRepositoryInterface определяет интерфейс репозитория черного списка
type BlacklistRepositoryInterface interface {
	Create(entry *models.BlacklistEntry) error
	GetAll() ([]*models.BlacklistEntry, error)
	IsBlacklisted(currency, expiration string) (bool, error)
	Delete(id int) error
	Count() (int, error)
}

// StatsRepositoryInterface определяет интерфейс репозитория статистики
type StatsRepositoryInterface interface {
	GetStats() (*models.Stats, error)
	CountPartiallyClosed() (int, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ StructureRepositoryInterface = (*repository.StructureRepository)(nil)
var _ OrderRepositoryInterface = (*repository.OrderRepository)(nil)
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)
var _ SettingsRepositoryInterface = (*repository.SettingsRepository)(nil)
var _ BlacklistRepositoryInterface = (*repository.BlacklistRepository)(nil)
var _ StatsRepositoryInterface = (*repository.StatsRepository)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// StructureServiceInterface определяет интерфейс сервиса структур
type StructureServiceInterface interface {
	GetStructures(limit int) ([]*models.Condor, error)
	GetActiveStructures() ([]*models.Condor, error)
	GetStructure(id string) (*models.Condor, error)
	GetStructurePnl(ctx context.Context, id string) (float64, error)
	ForceClose(ctx context.Context, id string) error
	GetStructureOrders(id string) ([]*models.LegOrderRecord, error)
	GetCount() (int, error)
}

// RiskServiceInterface определяет интерфейс сервиса рисков
type RiskServiceInterface interface {
	GetRiskSummary(ctx context.Context) (*models.RiskSummary, error)
	EmergencyStop(ctx context.Context) error
	ResumeTrading() error
	IsStopped() (bool, error)
	PauseScan() error
	ResumeScan() error
	IsScanPaused() (bool, error)
	ScanNow(ctx context.Context) error
}

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	CreateNotification(notif *models.Notification) error
	GetNotifications(types []string, limit int) ([]*models.Notification, error)
	ClearNotifications() error
	GetNotificationCount() (int, error)
}

// SettingsServiceInterface определяет интерфейс сервиса настроек
type SettingsServiceInterface interface {
	GetSettings() (*models.Settings, error)
	UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error)
	UpdateCredentials(exchange, apiKey, apiSecret string) error
	ResetToDefaults() error
}

// StatsServiceInterface определяет интерфейс сервиса статистики
type StatsServiceInterface interface {
	GetStats() (*models.Stats, error)
	GetPartiallyClosedCount() (int, error)
}

// BlacklistServiceInterface определяет интерфейс сервиса черного списка
type BlacklistServiceInterface interface {
	AddToBlacklist(currency, expiration, reason string) (*models.BlacklistEntry, error)
	GetBlacklist() ([]*models.BlacklistEntry, error)
	RemoveFromBlacklist(id int) error
	IsBlacklisted(currency, expiration string) (bool, error)
	GetCount() (int, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ StructureServiceInterface = (*StructureService)(nil)
var _ RiskServiceInterface = (*RiskService)(nil)
var _ NotificationServiceInterface = (*NotificationService)(nil)
var _ SettingsServiceInterface = (*SettingsService)(nil)
var _ StatsServiceInterface = (*StatsService)(nil)
var _ BlacklistServiceInterface = (*BlacklistService)(nil)

// TradingEngine - интерфейс торгового ядра (internal/bot.Engine).
//
// Определён на стороне потребителя: сервисный слой видит только
// операции, нужные операторскому API, и в тестах подставляется mock
type TradingEngine interface {
	ForceClose(ctx context.Context, id string) error
	TrackedStructures() []*models.Condor
	GetStructure(id string) (*models.Condor, bool)
	GetPnl(ctx context.Context, id string) (float64, error)
	RiskSummary(ctx context.Context) *models.RiskSummary
	EmergencyStop(ctx context.Context) error
	ResumeTrading()
	IsStopped() bool
	PauseScan()
	ResumeScan()
	IsScanPaused() bool
	ScanNow(ctx context.Context)
}
