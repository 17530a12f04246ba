package handlers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"condor/internal/models"
	"condor/internal/service"
)

// ============ Mock Structure Service ============

// MockStructureService мок для StructureServiceInterface
type MockStructureService struct {
	structures map[string]*models.Condor
	tracked    map[string]bool
	orders     []*models.LegOrderRecord
	pnl        map[string]float64
	getErr     error
	closeErr   error
	mu         sync.RWMutex
}

// NewMockStructureService создает новый мок сервиса структур
func NewMockStructureService() *MockStructureService {
	return &MockStructureService{
		structures: make(map[string]*models.Condor),
		tracked:    make(map[string]bool),
		pnl:        make(map[string]float64),
	}
}

func (m *MockStructureService) GetStructures(limit int) ([]*models.Condor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	ids := make([]string, 0, len(m.structures))
	for id := range m.structures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]*models.Condor, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.structures[id])
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockStructureService) GetActiveStructures() ([]*models.Condor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	result := make([]*models.Condor, 0)
	for id, c := range m.structures {
		if m.tracked[id] {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockStructureService) GetStructure(id string) (*models.Condor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	if id == "" {
		return nil, service.ErrStructureIDEmpty
	}
	if c, ok := m.structures[id]; ok {
		return c, nil
	}
	return nil, service.ErrStructureNotFound
}

func (m *MockStructureService) GetStructurePnl(ctx context.Context, id string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.tracked[id] {
		return 0, service.ErrStructureNotActive
	}
	return m.pnl[id], nil
}

func (m *MockStructureService) ForceClose(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closeErr != nil {
		return m.closeErr
	}
	if id == "" {
		return service.ErrStructureIDEmpty
	}
	if !m.tracked[id] {
		return service.ErrStructureNotActive
	}
	delete(m.tracked, id)
	if c, ok := m.structures[id]; ok {
		c.Status = models.StatusClosed
	}
	return nil
}

func (m *MockStructureService) GetStructureOrders(id string) ([]*models.LegOrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	if id == "" {
		return nil, service.ErrStructureIDEmpty
	}

	result := make([]*models.LegOrderRecord, 0)
	for _, o := range m.orders {
		if o.StructureID == id {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockStructureService) GetCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return 0, m.getErr
	}
	return len(m.structures), nil
}

// AddStructure добавляет структуру напрямую (для настройки тестов)
func (m *MockStructureService) AddStructure(c *models.Condor, tracked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.structures[c.ID] = c
	if tracked {
		m.tracked[c.ID] = true
	}
}

// AddOrder добавляет запись об ордере напрямую (для настройки тестов)
func (m *MockStructureService) AddOrder(order *models.LegOrderRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders = append(m.orders, order)
}

// SetPnl устанавливает PnL структуры
func (m *MockStructureService) SetPnl(id string, pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pnl[id] = pnl
}

// SetError устанавливает ошибку для указанной операции
func (m *MockStructureService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "get":
		m.getErr = err
	case "close":
		m.closeErr = err
	}
}

// ============ Mock Risk Service ============

// MockRiskService мок для RiskServiceInterface
type MockRiskService struct {
	summary    *models.RiskSummary
	stopped    bool
	scanPaused bool
	scanCalls  int
	engineErr  error
	summaryErr error
	mu         sync.RWMutex
}

// NewMockRiskService создает новый мок сервиса рисков
func NewMockRiskService() *MockRiskService {
	return &MockRiskService{
		summary: &models.RiskSummary{
			Equity:           10000,
			RiskPerStructure: 100,
			MaxPortfolioRisk: 1000,
			CanOpenNew:       true,
		},
	}
}

func (m *MockRiskService) GetRiskSummary(ctx context.Context) (*models.RiskSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.engineErr != nil {
		return nil, m.engineErr
	}
	if m.summaryErr != nil {
		return nil, m.summaryErr
	}
	return m.summary, nil
}

func (m *MockRiskService) EmergencyStop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engineErr != nil {
		return m.engineErr
	}
	m.stopped = true
	return nil
}

func (m *MockRiskService) ResumeTrading() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engineErr != nil {
		return m.engineErr
	}
	m.stopped = false
	return nil
}

func (m *MockRiskService) IsStopped() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.engineErr != nil {
		return false, m.engineErr
	}
	return m.stopped, nil
}

func (m *MockRiskService) PauseScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engineErr != nil {
		return m.engineErr
	}
	m.scanPaused = true
	return nil
}

func (m *MockRiskService) ResumeScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engineErr != nil {
		return m.engineErr
	}
	m.scanPaused = false
	return nil
}

func (m *MockRiskService) IsScanPaused() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.engineErr != nil {
		return false, m.engineErr
	}
	return m.scanPaused, nil
}

func (m *MockRiskService) ScanNow(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engineErr != nil {
		return m.engineErr
	}
	m.scanCalls++
	return nil
}

// ScanCalls возвращает число внеочередных циклов
func (m *MockRiskService) ScanCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanCalls
}

// SetEngineUnavailable эмулирует незапущенное ядро
func (m *MockRiskService) SetEngineUnavailable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engineErr = service.ErrEngineUnavailable
}

// SetSummaryError устанавливает ошибку запроса риск-состояния
func (m *MockRiskService) SetSummaryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaryErr = err
}

// ============ Mock Notification Service ============

// MockNotificationService мок для NotificationServiceInterface
type MockNotificationService struct {
	notifications []*models.Notification
	createErr     error
	getErr        error
	clearErr      error
	nextID        int
	mu            sync.RWMutex
}

// NewMockNotificationService создает новый мок сервиса уведомлений
func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{
		notifications: make([]*models.Notification, 0),
		nextID:        1,
	}
}

func (m *MockNotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	result := make([]*models.Notification, 0, len(m.notifications))

	if len(types) == 0 {
		result = append(result, m.notifications...)
	} else {
		typeSet := make(map[string]bool)
		for _, t := range types {
			typeSet[strings.ToUpper(t)] = true
		}
		for _, n := range m.notifications {
			if typeSet[n.Type] {
				result = append(result, n)
			}
		}
	}

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (m *MockNotificationService) ClearNotifications() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.clearErr != nil {
		return m.clearErr
	}

	m.notifications = make([]*models.Notification, 0)
	return nil
}

func (m *MockNotificationService) CreateNotification(notif *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}

	notif.ID = m.nextID
	m.nextID++
	notif.Timestamp = time.Now()
	m.notifications = append(m.notifications, notif)
	return nil
}

func (m *MockNotificationService) GetNotificationCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return 0, m.getErr
	}
	return len(m.notifications), nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockNotificationService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "create":
		m.createErr = err
	case "get":
		m.getErr = err
	case "clear":
		m.clearErr = err
	}
}

// AddNotification добавляет уведомление напрямую (для настройки тестов)
func (m *MockNotificationService) AddNotification(notifType, severity, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifications = append(m.notifications, &models.Notification{
		ID:        m.nextID,
		Type:      notifType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	})
	m.nextID++
}

// ============ Mock Settings Service ============

// MockSettingsService мок для SettingsServiceInterface
type MockSettingsService struct {
	settings       *models.Settings
	getErr         error
	updateErr      error
	credentialsErr error
	mu             sync.RWMutex
}

// NewMockSettingsService создает новый мок сервиса настроек
func NewMockSettingsService() *MockSettingsService {
	return &MockSettingsService{
		settings: &models.Settings{
			ID:       1,
			Exchange: "deribit-testnet",
			NotificationPrefs: models.NotificationPreferences{
				Open:         true,
				Close:        true,
				TakeProfit:   true,
				StopLoss:     true,
				Expiry:       true,
				Rollback:     true,
				PartialClose: true,
				RiskDenied:   true,
				Emergency:    true,
				APIError:     true,
			},
			UpdatedAt: time.Now(),
		},
	}
}

func (m *MockSettingsService) GetSettings() (*models.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings, nil
}

func (m *MockSettingsService) UpdateSettings(req *service.UpdateSettingsRequest) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return nil, m.updateErr
	}

	if req.MaxOpenStructures != nil && *req.MaxOpenStructures < 1 {
		return nil, service.ErrInvalidMaxOpenStructures
	}

	if req.ScanPaused != nil {
		m.settings.ScanPaused = *req.ScanPaused
	}
	if req.MaxOpenStructures != nil {
		m.settings.MaxOpenStructures = req.MaxOpenStructures
	}
	if req.ClearMaxOpenStructures {
		m.settings.MaxOpenStructures = nil
	}
	if req.NotificationPrefs != nil {
		m.settings.NotificationPrefs = *req.NotificationPrefs
	}
	m.settings.UpdatedAt = time.Now()

	return m.settings, nil
}

func (m *MockSettingsService) UpdateCredentials(exchange, apiKey, apiSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.credentialsErr != nil {
		return m.credentialsErr
	}

	if exchange != "deribit" && exchange != "deribit-testnet" {
		return service.ErrInvalidExchange
	}
	if apiKey == "" || apiSecret == "" {
		return service.ErrCredentialsIncomplete
	}

	m.settings.Exchange = exchange
	m.settings.APIKey = apiKey
	m.settings.APISecret = apiSecret
	return nil
}

func (m *MockSettingsService) ResetToDefaults() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}

	m.settings.ScanPaused = false
	m.settings.MaxOpenStructures = nil
	m.settings.UpdatedAt = time.Now()
	return nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockSettingsService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "get":
		m.getErr = err
	case "update":
		m.updateErr = err
	case "credentials":
		m.credentialsErr = err
	}
}

// ============ Mock Stats Service ============

// MockStatsService мок для StatsServiceInterface
type MockStatsService struct {
	stats  *models.Stats
	getErr error
	mu     sync.RWMutex
}

// NewMockStatsService создает новый мок сервиса статистики
func NewMockStatsService() *MockStatsService {
	return &MockStatsService{
		stats: &models.Stats{
			StopLossEvents:     []models.StopLossEvent{},
			TopCurrenciesByPnl: []models.CurrencyStat{},
		},
	}
}

func (m *MockStatsService) GetStats() (*models.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stats, nil
}

func (m *MockStatsService) GetPartiallyClosedCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.stats.PartiallyClosed, nil
}

// SetError устанавливает ошибку сервиса
func (m *MockStatsService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// SetStats устанавливает статистику напрямую (для настройки тестов)
func (m *MockStatsService) SetStats(stats *models.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = stats
}

// ============ Mock Blacklist Service ============

// MockBlacklistService мок для BlacklistServiceInterface
type MockBlacklistService struct {
	entries map[int]*models.BlacklistEntry
	addErr  error
	getErr  error
	nextID  int
	mu      sync.RWMutex
}

// NewMockBlacklistService создает новый мок сервиса черного списка
func NewMockBlacklistService() *MockBlacklistService {
	return &MockBlacklistService{
		entries: make(map[int]*models.BlacklistEntry),
		nextID:  1,
	}
}

func (m *MockBlacklistService) AddToBlacklist(currency, expiration, reason string) (*models.BlacklistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.addErr != nil {
		return nil, m.addErr
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	expiration = strings.ToUpper(strings.TrimSpace(expiration))

	if currency == "" {
		return nil, service.ErrBlacklistCurrencyEmpty
	}
	if expiration == "" {
		return nil, service.ErrBlacklistExpirationEmpty
	}

	for _, e := range m.entries {
		if e.Currency == currency && e.Expiration == expiration {
			return nil, service.ErrBlacklistEntryExists
		}
	}

	entry := &models.BlacklistEntry{
		ID:         m.nextID,
		Currency:   currency,
		Expiration: expiration,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
	m.entries[entry.ID] = entry
	m.nextID++
	return entry, nil
}

func (m *MockBlacklistService) GetBlacklist() ([]*models.BlacklistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	result := make([]*models.BlacklistEntry, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockBlacklistService) RemoveFromBlacklist(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[id]; !exists {
		return service.ErrBlacklistEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MockBlacklistService) IsBlacklisted(currency, expiration string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return false, m.getErr
	}

	currency = strings.ToUpper(currency)
	expiration = strings.ToUpper(expiration)
	for _, e := range m.entries {
		if e.Currency == currency && e.Expiration == expiration {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockBlacklistService) GetCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return 0, m.getErr
	}
	return len(m.entries), nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockBlacklistService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "add":
		m.addErr = err
	case "get":
		m.getErr = err
	}
}

// ============ Helper errors for tests ============

var (
	ErrMockDatabase = errors.New("mock database error")
	ErrMockService  = errors.New("mock service error")
)

// ============ Проверяем, что моки реализуют интерфейсы ============

var _ service.StructureServiceInterface = (*MockStructureService)(nil)
var _ service.RiskServiceInterface = (*MockRiskService)(nil)
var _ service.NotificationServiceInterface = (*MockNotificationService)(nil)
var _ service.SettingsServiceInterface = (*MockSettingsService)(nil)
var _ service.StatsServiceInterface = (*MockStatsService)(nil)
var _ service.BlacklistServiceInterface = (*MockBlacklistService)(nil)
