package bot

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"condor/internal/config"
	"condor/internal/exchange"
	"condor/internal/models"
	"condor/pkg/utils"
)

// WebSocketHub - интерфейс для отправки обновлений в UI
// Определён на стороне потребителя, чтобы bot не зависел от websocket
type WebSocketHub interface {
	BroadcastStructureUpdate(condor *models.Condor)
	BroadcastNotification(notif *models.Notification)
	BroadcastEquityUpdate(equityUSD float64)
	BroadcastIndexPrice(currency string, price float64)
}

// NotificationSink - приёмник уведомлений для персистентности
type NotificationSink func(notif *models.Notification)

// Engine - оркестратор торгового ядра
//
// Два независимых периодических цикла:
// - сканирование (грубое): поиск и открытие новых структур
// - мониторинг (частое): проверка условий выхода открытых структур
//
// Циклы никогда не работают с одной структурой одновременно: структура
// становится видна монитору только после полного открытия
type Engine struct {
	cfg  *config.Config
	exch exchange.Exchange

	strategy Strategy
	risk     *RiskManager
	monitor  *PositionMonitor
	executor *OrderExecutor
	vol      *VolatilityTracker
	store    *StateStore
	recovery *RecoveryManager

	notificationChan chan *models.Notification
	notifSink        NotificationSink
	persistFn        func(*models.Condor)
	wsHub            WebSocketHub

	scanPaused int32 // atomic

	wg sync.WaitGroup
	mu sync.RWMutex
}

// NewEngine собирает торговое ядро из конфигурации.
// Все коллабораторы создаются здесь и связываются явно
func NewEngine(cfg *config.Config, exch exchange.Exchange, wsHub WebSocketHub) *Engine {
	notifChan := make(chan *models.Notification, 256)

	selector := NewStrikeSelector(cfg.Strategy.DeltaTarget, cfg.Strategy.DeltaTolerance)
	builder := NewStructureBuilder(selector, cfg.Strategy.WingWidthPct, cfg.Risk.MinSize, cfg.Risk.MaxSize)
	executor := NewOrderExecutor(exch, cfg.Execution)
	monitor := NewPositionMonitor(exch, executor, cfg.Strategy, notifChan)
	risk := NewRiskManager(exch, cfg.Strategy.Currencies, cfg.Risk, notifChan)
	vol := NewVolatilityTracker(cfg.Strategy.MinIVPercentile)
	store := NewStateStore(cfg.Execution.StatePath)

	// Риск-менеджер выводит экспозицию вживую из монитора
	risk.SetExposureProvider(monitor.CurrentExposure)
	risk.SetCloseAllFn(monitor.CloseAll)

	e := &Engine{
		cfg:      cfg,
		exch:     exch,
		risk:     risk,
		monitor:  monitor,
		executor: executor,
		vol:      vol,
		store:    store,

		notificationChan: notifChan,
		wsHub:            wsHub,
	}

	e.strategy = NewIronCondorStrategy(exch, cfg.Strategy, risk, builder, executor, monitor, vol, notifChan)
	e.recovery = NewRecoveryManager(exch, store, monitor, vol, notifChan)

	monitor.SetUpdateCallback(e.onStructureUpdate)

	return e
}

// SetNotificationSink устанавливает приёмник уведомлений (персистентность)
func (e *Engine) SetNotificationSink(sink NotificationSink) {
	e.mu.Lock()
	e.notifSink = sink
	e.mu.Unlock()
}

// SetStructurePersist устанавливает приёмник изменений структур (запись в БД)
func (e *Engine) SetStructurePersist(fn func(*models.Condor)) {
	e.mu.Lock()
	e.persistFn = fn
	e.mu.Unlock()
}

// SetOrderRecorder устанавливает приёмник истории ордеров
func (e *Engine) SetOrderRecorder(fn func(*models.LegOrderRecord)) {
	e.executor.SetOrderRecorder(fn)
}

// SetBlacklist устанавливает фильтр чёрного списка экспираций
func (e *Engine) SetBlacklist(fn func(currency string, expiration time.Time) bool) {
	if ic, ok := e.strategy.(*IronCondorStrategy); ok {
		ic.SetBlacklist(fn)
	}
}

// Run запускает торговое ядро и блокируется до отмены контекста.
// При выходе сохраняет снапшот состояния
func (e *Engine) Run(ctx context.Context) error {
	utils.L().Info("engine starting",
		utils.String("strategy", e.strategy.Name()),
		utils.Exchange(e.exch.GetName()),
		utils.String("currencies", strings.Join(e.cfg.Strategy.Currencies, ",")))

	if _, err := e.recovery.Recover(ctx); err != nil {
		// Снапшот повреждён - продолжаем с чистого листа, но громко
		utils.L().Error("state recovery failed, starting clean", utils.Err(err))
	}

	UpdateExchangeStatus(true)

	// Живой поток индексных цен: метрика и дашборд обновляются push'ем,
	// торговые решения по-прежнему берут цену запросом в момент скана
	for _, currency := range e.cfg.Strategy.Currencies {
		if err := e.exch.SubscribeIndexPrice(currency, e.onIndexPrice); err != nil {
			utils.L().Warn("index price subscription failed, dashboard falls back to polling",
				utils.Currency(currency), utils.Err(err))
		}
	}

	e.wg.Add(4)
	go e.scanLoop(ctx)
	go e.monitorLoop(ctx)
	go e.notificationLoop(ctx)
	go e.periodicTasks(ctx)

	<-ctx.Done()
	e.wg.Wait()

	if err := e.SaveState(); err != nil {
		utils.L().Error("failed to save state on shutdown", utils.Err(err))
	}

	UpdateExchangeStatus(false)
	utils.L().Info("engine stopped")
	return nil
}

// scanLoop - грубый цикл поиска и открытия новых структур
func (e *Engine) scanLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Strategy.ScanInterval)
	defer ticker.Stop()

	// Первый скан сразу после старта, не дожидаясь тикера
	e.runScan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runScan(ctx)
		}
	}
}

// runScan выполняет один проход сканирования и открывает кандидатов
func (e *Engine) runScan(ctx context.Context) {
	if e.IsScanPaused() || e.risk.IsStopped() {
		return
	}

	candidates, err := e.strategy.Scan(ctx)
	if err != nil {
		utils.L().Warn("scan failed", utils.Err(err))
		return
	}

	for _, condor := range candidates {
		if err := e.strategy.ExecuteEntry(ctx, condor); err != nil {
			utils.L().Error("entry failed",
				utils.StructureID(condor.ID), utils.Err(err))
			continue
		}
		e.onStructureUpdate(condor)
	}

	if len(candidates) > 0 {
		if err := e.SaveState(); err != nil {
			utils.L().Warn("state save after scan failed", utils.Err(err))
		}
	}
}

// monitorLoop - частый цикл проверки условий выхода
func (e *Engine) monitorLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Strategy.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := e.strategy.ManagePositions(ctx)
			if err != nil {
				utils.L().Warn("monitor cycle failed", utils.Err(err))
				continue
			}
			if stats.ClosedTP+stats.ClosedSL+stats.ClosedExpiry > 0 {
				utils.L().Info("monitor cycle closed structures",
					utils.Int("take_profit", stats.ClosedTP),
					utils.Int("stop_loss", stats.ClosedSL),
					utils.Int("expiry", stats.ClosedExpiry),
					utils.PNL(stats.TotalPnl))

				if err := e.SaveState(); err != nil {
					utils.L().Warn("state save after close failed", utils.Err(err))
				}
			}
		}
	}
}

// notificationLoop доставляет уведомления: персистентность и WebSocket
func (e *Engine) notificationLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-e.notificationChan:
			e.mu.RLock()
			sink := e.notifSink
			e.mu.RUnlock()

			if sink != nil {
				sink(notif)
			}
			if e.wsHub != nil {
				e.wsHub.BroadcastNotification(notif)
			}
		}
	}
}

// periodicTasks - фоновые задачи для UI и метрик (не влияют на торговлю)
func (e *Engine) periodicTasks(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			equity := e.risk.TotalEquity(ctx)
			if e.wsHub != nil {
				e.wsHub.BroadcastEquityUpdate(equity)
			}

			RecordBufferBacklog("notification", cap(e.notificationChan), len(e.notificationChan))
			utils.L().Debug("periodic state",
				utils.Float64("equity_usd", equity),
				utils.Int("goroutines", runtime.NumGoroutine()))

			if err := e.SaveState(); err != nil {
				utils.L().Warn("periodic state save failed", utils.Err(err))
			}
		}
	}
}

// onIndexPrice принимает push-обновления индексной цены из WebSocket биржи
func (e *Engine) onIndexPrice(currency string, price float64) {
	UpdateIndexPrice(currency, price)
	if e.wsHub != nil {
		e.wsHub.BroadcastIndexPrice(currency, price)
	}
}

// onStructureUpdate вызывается при любом изменении структуры
func (e *Engine) onStructureUpdate(condor *models.Condor) {
	e.mu.RLock()
	persist := e.persistFn
	e.mu.RUnlock()

	if persist != nil {
		persist(condor)
	}
	if e.wsHub != nil {
		e.wsHub.BroadcastStructureUpdate(condor)
	}
}

// SaveState сохраняет снапшот отслеживаемых структур и истории IV
func (e *Engine) SaveState() error {
	snap := NewStateSnapshot()
	for _, c := range e.monitor.Tracked() {
		snap.Structures[c.ID] = c
	}
	snap.IVHistory = e.vol.History()
	return e.store.Save(snap)
}

// ============================================================
// Методы операторского API
// ============================================================

// ScanNow запускает внеплановый проход сканирования
func (e *Engine) ScanNow(ctx context.Context) {
	e.runScan(ctx)
}

// PauseScan приостанавливает открытие новых структур
// Мониторинг открытых продолжается
func (e *Engine) PauseScan() {
	atomic.StoreInt32(&e.scanPaused, 1)
	utils.L().Info("scanning paused")
}

// ResumeScan возобновляет открытие новых структур
func (e *Engine) ResumeScan() {
	atomic.StoreInt32(&e.scanPaused, 0)
	utils.L().Info("scanning resumed")
}

// IsScanPaused проверяет, приостановлено ли сканирование
func (e *Engine) IsScanPaused() bool {
	return atomic.LoadInt32(&e.scanPaused) == 1
}

// EmergencyStop аварийно останавливает торговлю
func (e *Engine) EmergencyStop(ctx context.Context) error {
	return e.risk.EmergencyStop(ctx)
}

// ResumeTrading снимает аварийную остановку
func (e *Engine) ResumeTrading() {
	e.risk.Resume()
}

// IsStopped проверяет аварийную остановку
func (e *Engine) IsStopped() bool {
	return e.risk.IsStopped()
}

// ForceClose закрывает структуру вручную
func (e *Engine) ForceClose(ctx context.Context, id string) error {
	return e.monitor.ForceClose(ctx, id)
}

// TrackedStructures возвращает снимок отслеживаемых структур
func (e *Engine) TrackedStructures() []*models.Condor {
	return e.monitor.Tracked()
}

// GetStructure возвращает отслеживаемую структуру по id
func (e *Engine) GetStructure(id string) (*models.Condor, bool) {
	return e.monitor.Get(id)
}

// RiskSummary возвращает текущую сводку рисков
func (e *Engine) RiskSummary(ctx context.Context) *models.RiskSummary {
	return e.risk.Summary(ctx)
}

// GetPnl возвращает живой PnL структуры
func (e *Engine) GetPnl(ctx context.Context, id string) (float64, error) {
	condor, ok := e.monitor.Get(id)
	if !ok {
		return 0, ErrPnlUnavailable
	}
	return e.monitor.GetPnl(ctx, condor)
}
