package bot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"condor/internal/config"
	"condor/internal/exchange"
	"condor/internal/models"
	"condor/pkg/utils"
)

// RiskManager - централизованный менеджер рисков
//
// Принцип: никакого внутреннего реестра. Все цифры выводятся вживую
// из биржи (equity) и монитора позиций (текущая экспозиция) при каждом
// вызове - так представление бота не расходится с реальным счётом.
//
// Функции:
// - Расчёт совокупного equity по всем валютам с fallback при недоступности
// - Бюджет риска на одну структуру
// - Портфельный гейт перед открытием новой структуры
// - Коридор допустимого риска сделки (validate_trade)
// - Аварийная остановка: отмена ордеров и закрытие всех структур
type RiskManager struct {
	exch       exchange.Exchange
	currencies []string
	cfg        config.RiskConfig

	// Поставщик текущей экспозиции (монитор позиций)
	exposureFn func() (exposure float64, openCount int)

	// Callback аварийного закрытия всех структур (устанавливает engine)
	closeAllFn func(ctx context.Context) error

	// Канал для уведомлений
	notificationChan chan<- *models.Notification

	// Флаг аварийной остановки
	stopped int32 // atomic

	mu sync.RWMutex
}

// NewRiskManager создает новый RiskManager
func NewRiskManager(exch exchange.Exchange, currencies []string, cfg config.RiskConfig, notifChan chan<- *models.Notification) *RiskManager {
	return &RiskManager{
		exch:             exch,
		currencies:       currencies,
		cfg:              cfg,
		notificationChan: notifChan,
	}
}

// SetExposureProvider устанавливает поставщика текущей экспозиции
func (rm *RiskManager) SetExposureProvider(fn func() (float64, int)) {
	rm.mu.Lock()
	rm.exposureFn = fn
	rm.mu.Unlock()
}

// SetCloseAllFn устанавливает callback аварийного закрытия
func (rm *RiskManager) SetCloseAllFn(fn func(ctx context.Context) error) {
	rm.mu.Lock()
	rm.closeAllFn = fn
	rm.mu.Unlock()
}

// TotalEquity возвращает суммарный equity счёта в USD по всем валютам.
// Equity валюты = equity на бирже (в базовом активе) * индексная цена.
// Если валюту получить не удалось - вместо неё подставляется настроенный
// baseline: деградация, не фатальная ошибка
func (rm *RiskManager) TotalEquity(ctx context.Context) float64 {
	total := 0.0

	for _, currency := range rm.currencies {
		summary, err := rm.exch.GetAccountSummary(ctx, currency)
		if err != nil {
			utils.L().Warn("equity unavailable, using configured baseline",
				utils.Currency(currency),
				utils.Float64("baseline", rm.cfg.InitialEquity), utils.Err(err))
			total += rm.cfg.InitialEquity
			continue
		}

		price, err := rm.exch.GetIndexPrice(ctx, currency)
		if err != nil {
			utils.L().Warn("index price unavailable, using configured baseline",
				utils.Currency(currency),
				utils.Float64("baseline", rm.cfg.InitialEquity), utils.Err(err))
			total += rm.cfg.InitialEquity
			continue
		}

		total += summary.Equity * price
	}

	UpdateEquity(total)
	return total
}

// StructureBudget возвращает бюджет риска одной структуры в USD
func (rm *RiskManager) StructureBudget(equity float64) float64 {
	return equity * rm.cfg.RiskPerStructure
}

// CanOpenNewPosition проверяет портфельный гейт перед открытием.
// Возвращает разрешение и человекочитаемую причину отказа.
// Отказ - это не ошибка, а ожидаемый исход контроля рисков
func (rm *RiskManager) CanOpenNewPosition(ctx context.Context) (bool, string) {
	if rm.IsStopped() {
		RecordRiskDenied("stopped")
		return false, "trading is stopped (emergency stop active)"
	}

	exposure, openCount := rm.currentExposure()

	if rm.cfg.MaxOpenStructures > 0 && openCount >= rm.cfg.MaxOpenStructures {
		RecordRiskDenied("max_structures")
		return false, fmt.Sprintf("open structures limit reached: %d/%d", openCount, rm.cfg.MaxOpenStructures)
	}

	equity := rm.TotalEquity(ctx)
	perStructure := equity * rm.cfg.RiskPerStructure
	portfolioLimit := equity * rm.cfg.MaxPortfolioRisk

	if exposure+perStructure > portfolioLimit {
		RecordRiskDenied("portfolio_limit")
		return false, fmt.Sprintf(
			"portfolio risk limit: exposure %.2f + new %.2f > limit %.2f USD",
			exposure, perStructure, portfolioLimit)
	}

	if portfolioLimit > 0 {
		UpdateRiskUtilization(exposure / portfolioLimit * 100)
	}

	return true, ""
}

// ValidateTrade проверяет, что риск конкретной сделки попадает в коридор
// [RiskBandMin, RiskBandMax] от номинального бюджета структуры.
// Клэмп размера может увести фактический риск от запрошенного - слишком
// большое расхождение отклоняется
func (rm *RiskManager) ValidateTrade(expectedMaxLoss, equity float64) error {
	budget := rm.StructureBudget(equity)
	if budget <= 0 {
		return fmt.Errorf("%w: structure budget is zero (equity %.2f)", ErrRiskDenied, equity)
	}

	low := budget * rm.cfg.RiskBandMin
	high := budget * rm.cfg.RiskBandMax

	if expectedMaxLoss < low || expectedMaxLoss > high {
		RecordRiskDenied("trade_band")
		return fmt.Errorf("%w: max loss %.2f outside band [%.2f, %.2f] USD",
			ErrRiskDenied, expectedMaxLoss, low, high)
	}
	return nil
}

// EmergencyStop останавливает торговлю: отменяет все ордера и закрывает
// все отслеживаемые структуры. Best-effort: отказ одной ноги не прерывает
// закрытие остальных. Повторный вызов безопасен
func (rm *RiskManager) EmergencyStop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&rm.stopped, 0, 1) {
		return nil // уже остановлено
	}

	EmergencyStops.Inc()
	utils.L().Error("EMERGENCY STOP: cancelling orders and closing all structures")

	rm.notify(&models.Notification{
		Timestamp: time.Now().UTC(),
		Type:      models.NotificationTypeEmergency,
		Severity:  models.SeverityError,
		Message:   "🛑 Trading stopped: cancelling orders and closing all structures",
	})

	var firstErr error
	for _, currency := range rm.currencies {
		if err := rm.exch.CancelAll(ctx, currency); err != nil {
			utils.L().Error("cancel all failed", utils.Currency(currency), utils.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	rm.mu.RLock()
	closeAll := rm.closeAllFn
	rm.mu.RUnlock()

	if closeAll != nil {
		if err := closeAll(ctx); err != nil {
			utils.L().Error("emergency close failed", utils.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Resume снимает аварийную остановку (только вручную оператором)
func (rm *RiskManager) Resume() {
	atomic.StoreInt32(&rm.stopped, 0)
	utils.L().Info("trading resumed after emergency stop")
}

// IsStopped проверяет, активна ли аварийная остановка
func (rm *RiskManager) IsStopped() bool {
	return atomic.LoadInt32(&rm.stopped) == 1
}

// Summary возвращает сводку рисков для операторского API
func (rm *RiskManager) Summary(ctx context.Context) *models.RiskSummary {
	equity := rm.TotalEquity(ctx)
	exposure, openCount := rm.currentExposure()
	portfolioLimit := equity * rm.cfg.MaxPortfolioRisk

	utilization := 0.0
	if portfolioLimit > 0 {
		utilization = exposure / portfolioLimit * 100
	}

	canOpen, reason := rm.CanOpenNewPosition(ctx)

	return &models.RiskSummary{
		Equity:             equity,
		RiskPerStructure:   equity * rm.cfg.RiskPerStructure,
		MaxPortfolioRisk:   portfolioLimit,
		CurrentExposure:    exposure,
		RiskUtilizationPct: utilization,
		OpenStructures:     openCount,
		CanOpenNew:         canOpen,
		Reason:             reason,
	}
}

func (rm *RiskManager) currentExposure() (float64, int) {
	rm.mu.RLock()
	fn := rm.exposureFn
	rm.mu.RUnlock()

	if fn == nil {
		return 0, 0
	}
	return fn()
}

func (rm *RiskManager) notify(notif *models.Notification) {
	rm.mu.RLock()
	ch := rm.notificationChan
	rm.mu.RUnlock()

	if ch != nil {
		select {
		case ch <- notif:
		default:
			RecordBufferOverflow("notification")
		}
	}
}
