package service

import (
	"context"
	"sort"
	"time"

	"condor/internal/models"
	"condor/internal/repository"
)

// ============ Mock StructureRepository ============

type MockStructureRepository struct {
	structures map[string]*models.Condor
	createErr  error
	getErr     error
	upsertErr  error
}

func NewMockStructureRepository() *MockStructureRepository {
	return &MockStructureRepository{
		structures: make(map[string]*models.Condor),
	}
}

func (m *MockStructureRepository) Create(c *models.Condor) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.structures[c.ID]; exists {
		return repository.ErrStructureExists
	}
	m.structures[c.ID] = c
	return nil
}

func (m *MockStructureRepository) Upsert(c *models.Condor) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.structures[c.ID] = c
	return nil
}

func (m *MockStructureRepository) GetByID(id string) (*models.Condor, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.structures[id]
	if !ok {
		return nil, repository.ErrStructureNotFound
	}
	return c, nil
}

func (m *MockStructureRepository) GetAll(limit int) ([]*models.Condor, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.Condor, 0, len(m.structures))
	for _, c := range m.structures {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EnteredAt.After(result[j].EnteredAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockStructureRepository) GetByStatus(status string) ([]*models.Condor, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Condor
	for _, c := range m.structures {
		if c.Status == status {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockStructureRepository) GetActive() ([]*models.Condor, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Condor
	for _, c := range m.structures {
		switch c.Status {
		case models.StatusOpen, models.StatusClosing, models.StatusPartiallyClosed:
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockStructureRepository) GetClosedInTimeRange(from, to time.Time) ([]*models.Condor, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Condor
	for _, c := range m.structures {
		if c.Status == models.StatusClosed && c.ClosedAt != nil &&
			!c.ClosedAt.Before(from) && !c.ClosedAt.After(to) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockStructureRepository) UpdateStatus(id, status string) error {
	c, ok := m.structures[id]
	if !ok {
		return repository.ErrStructureNotFound
	}
	c.Status = status
	return nil
}

func (m *MockStructureRepository) MarkClosed(id, reason string, pnl float64, closedAt time.Time) error {
	c, ok := m.structures[id]
	if !ok {
		return repository.ErrStructureNotFound
	}
	c.Status = models.StatusClosed
	c.CloseReason = reason
	c.RealizedPnl = pnl
	c.ClosedAt = &closedAt
	return nil
}

func (m *MockStructureRepository) Count() (int, error) {
	return len(m.structures), nil
}

func (m *MockStructureRepository) CountByStatus(status string) (int, error) {
	count := 0
	for _, c := range m.structures {
		if c.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *MockStructureRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	var deleted int64
	for id, c := range m.structures {
		if c.ClosedAt != nil && c.ClosedAt.Before(timestamp) {
			delete(m.structures, id)
			deleted++
		}
	}
	return deleted, nil
}

// ============ Mock OrderRepository ============

type MockOrderRepository struct {
	orders    []*models.LegOrderRecord
	createErr error
	getErr    error
	nextID    int
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{nextID: 1}
}

func (m *MockOrderRepository) Create(order *models.LegOrderRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	order.ID = m.nextID
	m.nextID++
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *MockOrderRepository) GetByID(id int) (*models.LegOrderRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepository) GetByStructureID(structureID string) ([]*models.LegOrderRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.LegOrderRecord
	for _, o := range m.orders {
		if o.StructureID == structureID {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockOrderRepository) GetRecent(limit int) ([]*models.LegOrderRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if len(m.orders) > limit {
		return m.orders[len(m.orders)-limit:], nil
	}
	return m.orders, nil
}

func (m *MockOrderRepository) GetByStatus(status string) ([]*models.LegOrderRecord, error) {
	var result []*models.LegOrderRecord
	for _, o := range m.orders {
		if o.Status == status {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockOrderRepository) GetByPhase(phase string, limit int) ([]*models.LegOrderRecord, error) {
	var result []*models.LegOrderRecord
	for _, o := range m.orders {
		if o.Phase == phase {
			result = append(result, o)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockOrderRepository) Count() (int, error) {
	return len(m.orders), nil
}

func (m *MockOrderRepository) CountByStatus(status string) (int, error) {
	count := 0
	for _, o := range m.orders {
		if o.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *MockOrderRepository) DeleteByStructureID(structureID string) error {
	var kept []*models.LegOrderRecord
	for _, o := range m.orders {
		if o.StructureID != structureID {
			kept = append(kept, o)
		}
	}
	m.orders = kept
	return nil
}

func (m *MockOrderRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	var kept []*models.LegOrderRecord
	var deleted int64
	for _, o := range m.orders {
		if o.CreatedAt.Before(timestamp) {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	m.orders = kept
	return deleted, nil
}

// ============ Mock NotificationRepository ============

type MockNotificationRepository struct {
	notifications []*models.Notification
	createErr     error
	getErr        error
	nextID        int
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{nextID: 1}
}

func (m *MockNotificationRepository) Create(n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = m.nextID
	m.nextID++
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MockNotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if len(m.notifications) > limit {
		return m.notifications[len(m.notifications)-limit:], nil
	}
	return m.notifications, nil
}

func (m *MockNotificationRepository) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	var result []*models.Notification
	for _, n := range m.notifications {
		if typeSet[n.Type] {
			result = append(result, n)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockNotificationRepository) GetByStructureID(structureID string) ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Notification
	for _, n := range m.notifications {
		if n.StructureID == structureID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *MockNotificationRepository) GetSince(since time.Time) ([]*models.Notification, error) {
	var result []*models.Notification
	for _, n := range m.notifications {
		if !n.Timestamp.Before(since) {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *MockNotificationRepository) Count() (int, error) {
	return len(m.notifications), nil
}

func (m *MockNotificationRepository) CountByType(notifType string) (int, error) {
	count := 0
	for _, n := range m.notifications {
		if n.Type == notifType {
			count++
		}
	}
	return count, nil
}

func (m *MockNotificationRepository) KeepRecent(keepCount int) (int64, error) {
	if len(m.notifications) <= keepCount {
		return 0, nil
	}
	deleted := int64(len(m.notifications) - keepCount)
	m.notifications = m.notifications[len(m.notifications)-keepCount:]
	return deleted, nil
}

func (m *MockNotificationRepository) DeleteAll() error {
	m.notifications = nil
	return nil
}

func (m *MockNotificationRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	var kept []*models.Notification
	var deleted int64
	for _, n := range m.notifications {
		if n.Timestamp.Before(timestamp) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	m.notifications = kept
	return deleted, nil
}

// ============ Mock SettingsRepository ============

type MockSettingsRepository struct {
	settings  *models.Settings
	getErr    error
	updateErr error
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		settings: &models.Settings{
			ID:       1,
			Exchange: "deribit-testnet",
			NotificationPrefs: models.NotificationPreferences{
				Open: true, Close: true, TakeProfit: true, StopLoss: true,
				Expiry: true, Rollback: true, PartialClose: true,
				RiskDenied: true, Emergency: true, APIError: true,
			},
			UpdatedAt: time.Now(),
		},
	}
}

func (m *MockSettingsRepository) Get() (*models.Settings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings, nil
}

func (m *MockSettingsRepository) Update(s *models.Settings) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings = s
	return nil
}

func (m *MockSettingsRepository) UpdateCredentials(exchange, apiKey, apiSecret string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.Exchange = exchange
	m.settings.APIKey = apiKey
	m.settings.APISecret = apiSecret
	return nil
}

func (m *MockSettingsRepository) UpdateScanPaused(paused bool) error {
	m.settings.ScanPaused = paused
	return nil
}

func (m *MockSettingsRepository) UpdateMaxOpenStructures(max *int) error {
	m.settings.MaxOpenStructures = max
	return nil
}

func (m *MockSettingsRepository) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.NotificationPrefs = prefs
	return nil
}

func (m *MockSettingsRepository) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &m.settings.NotificationPrefs, nil
}

func (m *MockSettingsRepository) ResetToDefaults() error {
	m.settings.ScanPaused = false
	m.settings.MaxOpenStructures = nil
	m.settings.NotificationPrefs = models.NotificationPreferences{
		Open: true, Close: true, TakeProfit: true, StopLoss: true,
		Expiry: true, Rollback: true, PartialClose: true,
		RiskDenied: true, Emergency: true, APIError: true,
	}
	return nil
}

// ============ Mock BlacklistRepository ============

type MockBlacklistRepository struct {
	entries   map[string]*models.BlacklistEntry
	createErr error
	getErr    error
	nextID    int
}

func NewMockBlacklistRepository() *MockBlacklistRepository {
	return &MockBlacklistRepository{
		entries: make(map[string]*models.BlacklistEntry),
		nextID:  1,
	}
}

func blacklistKey(currency, expiration string) string {
	return currency + "/" + expiration
}

func (m *MockBlacklistRepository) Create(entry *models.BlacklistEntry) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := blacklistKey(entry.Currency, entry.Expiration)
	if _, exists := m.entries[key]; exists {
		return repository.ErrBlacklistEntryExists
	}
	entry.ID = m.nextID
	m.nextID++
	entry.CreatedAt = time.Now()
	m.entries[key] = entry
	return nil
}

func (m *MockBlacklistRepository) GetAll() ([]*models.BlacklistEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.BlacklistEntry, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e)
	}
	return result, nil
}

func (m *MockBlacklistRepository) IsBlacklisted(currency, expiration string) (bool, error) {
	if m.getErr != nil {
		return false, m.getErr
	}
	_, exists := m.entries[blacklistKey(currency, expiration)]
	return exists, nil
}

func (m *MockBlacklistRepository) Delete(id int) error {
	for key, e := range m.entries {
		if e.ID == id {
			delete(m.entries, key)
			return nil
		}
	}
	return repository.ErrBlacklistEntryNotFound
}

func (m *MockBlacklistRepository) Count() (int, error) {
	return len(m.entries), nil
}

// ============ Mock StatsRepository ============

type MockStatsRepository struct {
	stats  *models.Stats
	getErr error
}

func NewMockStatsRepository() *MockStatsRepository {
	return &MockStatsRepository{stats: &models.Stats{}}
}

func (m *MockStatsRepository) GetStats() (*models.Stats, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stats, nil
}

func (m *MockStatsRepository) CountPartiallyClosed() (int, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.stats.PartiallyClosed, nil
}

// ============ Mock TradingEngine ============

type MockTradingEngine struct {
	tracked     map[string]*models.Condor
	pnl         map[string]float64
	summary     *models.RiskSummary
	stopped     bool
	scanPaused  bool
	scanCalls   int
	forceClosed []string
	closeErr    error
	pnlErr      error
}

func NewMockTradingEngine() *MockTradingEngine {
	return &MockTradingEngine{
		tracked: make(map[string]*models.Condor),
		pnl:     make(map[string]float64),
		summary: &models.RiskSummary{CanOpenNew: true},
	}
}

func (m *MockTradingEngine) ForceClose(ctx context.Context, id string) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	m.forceClosed = append(m.forceClosed, id)
	delete(m.tracked, id)
	return nil
}

func (m *MockTradingEngine) TrackedStructures() []*models.Condor {
	result := make([]*models.Condor, 0, len(m.tracked))
	for _, c := range m.tracked {
		result = append(result, c)
	}
	return result
}

func (m *MockTradingEngine) GetStructure(id string) (*models.Condor, bool) {
	c, ok := m.tracked[id]
	return c, ok
}

func (m *MockTradingEngine) GetPnl(ctx context.Context, id string) (float64, error) {
	if m.pnlErr != nil {
		return 0, m.pnlErr
	}
	return m.pnl[id], nil
}

func (m *MockTradingEngine) RiskSummary(ctx context.Context) *models.RiskSummary {
	return m.summary
}

func (m *MockTradingEngine) EmergencyStop(ctx context.Context) error {
	m.stopped = true
	return nil
}

func (m *MockTradingEngine) ResumeTrading() {
	m.stopped = false
}

func (m *MockTradingEngine) IsStopped() bool {
	return m.stopped
}

func (m *MockTradingEngine) PauseScan() {
	m.scanPaused = true
}

func (m *MockTradingEngine) ResumeScan() {
	m.scanPaused = false
}

func (m *MockTradingEngine) IsScanPaused() bool {
	return m.scanPaused
}

func (m *MockTradingEngine) ScanNow(ctx context.Context) {
	m.scanCalls++
}

// ============ Mock WebSocketBroadcaster ============

type MockBroadcaster struct {
	notifications []*models.Notification
}

func (m *MockBroadcaster) BroadcastNotification(notif *models.Notification) {
	m.notifications = append(m.notifications, notif)
}

// Проверяем соответствие интерфейсам
var _ StructureRepositoryInterface = (*MockStructureRepository)(nil)
var _ OrderRepositoryInterface = (*MockOrderRepository)(nil)
var _ NotificationRepositoryInterface = (*MockNotificationRepository)(nil)
var _ SettingsRepositoryInterface = (*MockSettingsRepository)(nil)
var _ BlacklistRepositoryInterface = (*MockBlacklistRepository)(nil)
var _ StatsRepositoryInterface = (*MockStatsRepository)(nil)
var _ TradingEngine = (*MockTradingEngine)(nil)
var _ WebSocketBroadcaster = (*MockBroadcaster)(nil)
