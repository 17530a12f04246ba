package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"condor/internal/config"
	"condor/internal/exchange"
	"condor/internal/models"
	"condor/pkg/utils"
)

// PositionMonitor держит множество открытых структур, пересчитывает живой
// PnL и проверяет условия выхода по расписанию
//
// Дисциплина единственного писателя: множество изменяется только циклом
// мониторинга (добавление при открытии, удаление при закрытии) под мьютексом.
// Структура либо "открывается" (монитору не видна), либо "открыта и
// отслеживается" - никогда оба состояния сразу
type PositionMonitor struct {
	exch     exchange.Exchange
	executor *OrderExecutor
	cfg      config.StrategyConfig

	tracked map[string]*models.Condor
	mu      sync.RWMutex

	notificationChan chan<- *models.Notification

	// Callback после изменения структуры (персистентность, WebSocket)
	onUpdate func(*models.Condor)
}

// NewPositionMonitor создаёт монитор позиций
func NewPositionMonitor(exch exchange.Exchange, executor *OrderExecutor, cfg config.StrategyConfig, notifChan chan<- *models.Notification) *PositionMonitor {
	return &PositionMonitor{
		exch:             exch,
		executor:         executor,
		cfg:              cfg,
		tracked:          make(map[string]*models.Condor),
		notificationChan: notifChan,
	}
}

// SetUpdateCallback устанавливает callback изменений структур
func (pm *PositionMonitor) SetUpdateCallback(fn func(*models.Condor)) {
	pm.mu.Lock()
	pm.onUpdate = fn
	pm.mu.Unlock()
}

// Track добавляет структуру в отслеживаемое множество
func (pm *PositionMonitor) Track(condor *models.Condor) {
	if condor == nil || !RequiresMonitoring(condor.Status) {
		return
	}

	pm.mu.Lock()
	pm.tracked[condor.ID] = condor
	count := len(pm.tracked)
	pm.mu.Unlock()

	UpdateOpenStructures(count)
	utils.L().Info("structure tracked",
		utils.StructureID(condor.ID), utils.Int("tracked", count))
}

// Untrack удаляет структуру из отслеживаемого множества
func (pm *PositionMonitor) Untrack(id string) {
	pm.mu.Lock()
	delete(pm.tracked, id)
	count := len(pm.tracked)
	pm.mu.Unlock()

	UpdateOpenStructures(count)
}

// Get возвращает отслеживаемую структуру по id
func (pm *PositionMonitor) Get(id string) (*models.Condor, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	c, ok := pm.tracked[id]
	return c, ok
}

// Tracked возвращает снимок отслеживаемых структур
func (pm *PositionMonitor) Tracked() []*models.Condor {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]*models.Condor, 0, len(pm.tracked))
	for _, c := range pm.tracked {
		out = append(out, c)
	}
	return out
}

// CurrentExposure возвращает суммарный max loss открытых структур в USD
// и их количество. Используется риск-менеджером как текущая экспозиция
func (pm *PositionMonitor) CurrentExposure() (float64, int) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	total := 0.0
	count := 0
	for _, c := range pm.tracked {
		if c.IsOpen() || c.Status == models.StatusPartiallyClosed {
			total += c.MaxLoss
			count++
		}
	}
	return total, count
}

// GetPnl пересчитывает живой PnL структуры в USD по текущим mark-ценам
// всех четырёх ног и текущему споту.
//
// Если хоть одна котировка недоступна - возвращается ошибка, не ноль:
// "нет данных" и "нулевой PnL" - принципиально разные ответы, и решения
// о выходе на отсутствующих данных не принимаются
func (pm *PositionMonitor) GetPnl(ctx context.Context, condor *models.Condor) (float64, error) {
	spot, err := pm.exch.GetIndexPrice(ctx, condor.Currency)
	if err != nil {
		return 0, fmt.Errorf("%w: index price: %v", ErrPnlUnavailable, err)
	}

	total := 0.0
	for _, leg := range condor.Legs() {
		quote, err := pm.exch.GetQuote(ctx, leg.Instrument)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrPnlUnavailable, leg.Instrument, err)
		}
		if quote.MarkPrice <= 0 {
			return 0, fmt.Errorf("%w: %s: stale mark price", ErrPnlUnavailable, leg.Instrument)
		}

		total += utils.CalculateLegPnl(leg.Side, leg.EntryMark, quote.MarkPrice, spot, condor.Size)
	}

	return total, nil
}

// checkExit определяет причину выхода для структуры.
// Приоритет: экспирация > take profit > stop loss. Проверка экспирации
// идёт ПЕРЕД расчётом PnL и не требует котировок
func (pm *PositionMonitor) checkExit(ctx context.Context, condor *models.Condor, now time.Time) (string, float64, error) {
	if utils.HoursToExpiryFrom(condor.Expiration, now) <= pm.cfg.CloseBeforeExpiryHours {
		// PnL для экспирации не обязателен: фиксируем что есть
		pnl, err := pm.GetPnl(ctx, condor)
		if err != nil {
			utils.L().Warn("pnl unavailable at expiry close, recording zero",
				utils.StructureID(condor.ID), utils.Err(err))
			pnl = 0
		}
		return models.CloseReasonExpiry, pnl, nil
	}

	pnl, err := pm.GetPnl(ctx, condor)
	if err != nil {
		return "", 0, err
	}

	if pnl >= condor.TakeProfitTarget {
		return models.CloseReasonTakeProfit, pnl, nil
	}
	if pnl <= condor.StopLossTarget {
		StopLossTriggered.WithLabelValues(condor.Currency).Inc()
		return models.CloseReasonStopLoss, pnl, nil
	}
	return "", pnl, nil
}

// MonitorOnce выполняет один цикл мониторинга: проверяет условия выхода
// каждой отслеживаемой структуры и закрывает помеченные.
// Ошибка одной структуры не мешает обработке остальных
func (pm *PositionMonitor) MonitorOnce(ctx context.Context) *models.MonitorStats {
	stats := &models.MonitorStats{}
	now := time.Now().UTC()

	for _, condor := range pm.Tracked() {
		if !RequiresMonitoring(condor.Status) {
			pm.Untrack(condor.ID)
			continue
		}
		stats.TotalMonitored++

		reason, pnl, err := pm.checkExit(ctx, condor, now)
		if err != nil {
			stats.Errors++
			MonitorErrors.Inc()
			utils.L().Warn("exit check failed, skipping structure",
				utils.StructureID(condor.ID), utils.Err(err))
			continue
		}
		if reason == "" {
			continue
		}

		if err := pm.CloseStructure(ctx, condor, reason, pnl); err != nil {
			stats.Errors++
			continue
		}

		switch reason {
		case models.CloseReasonTakeProfit:
			stats.ClosedTP++
		case models.CloseReasonStopLoss:
			stats.ClosedSL++
		case models.CloseReasonExpiry:
			stats.ClosedExpiry++
		}
		stats.TotalPnl += pnl
	}

	return stats
}

// CloseStructure закрывает структуру с указанной причиной.
// Частично закрытая структура остаётся в отслеживаемом множестве со
// статусом partially_closed: следующий цикл попробует закрыть остаток,
// а оператор получает явное уведомление
func (pm *PositionMonitor) CloseStructure(ctx context.Context, condor *models.Condor, reason string, pnl float64) error {
	condor.Status = models.StatusClosing
	pm.notifyUpdate(condor)

	failed := pm.executor.CloseStructure(ctx, condor)
	now := time.Now().UTC()

	if len(failed) > 0 {
		condor.Status = models.StatusPartiallyClosed
		condor.CloseReason = reason
		pm.notifyUpdate(condor)

		pm.notify(&models.Notification{
			Timestamp:   now,
			Type:        models.NotificationTypePartialClose,
			Severity:    models.SeverityError,
			StructureID: condor.ID,
			Message:     fmt.Sprintf("💥 Failed to close legs: %v - manual intervention required", failed),
			Meta:        map[string]interface{}{"failed_legs": failed, "reason": reason},
		})
		return fmt.Errorf("structure %s partially closed, failed legs: %v", condor.ID, failed)
	}

	condor.Status = models.StatusClosed
	condor.ClosedAt = &now
	condor.CloseReason = reason
	condor.RealizedPnl = pnl

	pm.Untrack(condor.ID)
	pm.notifyUpdate(condor)
	RecordStructureClosed(condor.Currency, reason, pnl)

	pm.notify(&models.Notification{
		Timestamp:   now,
		Type:        notificationTypeForReason(reason),
		Severity:    severityForReason(reason),
		StructureID: condor.ID,
		Message:     fmt.Sprintf("Structure closed (%s), PnL %.2f USD", reason, pnl),
		Meta:        map[string]interface{}{"pnl": pnl, "reason": reason},
	})

	utils.L().Info("structure closed",
		utils.StructureID(condor.ID),
		utils.State(reason),
		utils.PNL(pnl))
	return nil
}

// CloseAll безусловно закрывает все отслеживаемые структуры (аварийный путь).
// Best-effort: ошибки отдельных структур собираются, не прерывая остальных
func (pm *PositionMonitor) CloseAll(ctx context.Context) error {
	var firstErr error
	for _, condor := range pm.Tracked() {
		pnl, err := pm.GetPnl(ctx, condor)
		if err != nil {
			pnl = 0
		}
		if err := pm.CloseStructure(ctx, condor, models.CloseReasonEmergency, pnl); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ForceClose закрывает одну структуру вручную (операторский API)
func (pm *PositionMonitor) ForceClose(ctx context.Context, id string) error {
	condor, ok := pm.Get(id)
	if !ok {
		return fmt.Errorf("structure %s is not tracked", id)
	}

	pnl, err := pm.GetPnl(ctx, condor)
	if err != nil {
		pnl = 0
	}
	return pm.CloseStructure(ctx, condor, models.CloseReasonManual, pnl)
}

func (pm *PositionMonitor) notifyUpdate(condor *models.Condor) {
	pm.mu.RLock()
	fn := pm.onUpdate
	pm.mu.RUnlock()

	if fn != nil {
		fn(condor)
	}
}

func (pm *PositionMonitor) notify(notif *models.Notification) {
	if pm.notificationChan == nil {
		return
	}
	select {
	case pm.notificationChan <- notif:
	default:
		RecordBufferOverflow("notification")
	}
}

func notificationTypeForReason(reason string) string {
	switch reason {
	case models.CloseReasonTakeProfit:
		return models.NotificationTypeTP
	case models.CloseReasonStopLoss:
		return models.NotificationTypeSL
	case models.CloseReasonExpiry:
		return models.NotificationTypeExpiry
	default:
		return models.NotificationTypeClose
	}
}

func severityForReason(reason string) string {
	switch reason {
	case models.CloseReasonStopLoss, models.CloseReasonEmergency:
		return models.SeverityWarn
	default:
		return models.SeverityInfo
	}
}
