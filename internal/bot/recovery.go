package bot

import (
	"context"
	"fmt"
	"time"

	"condor/internal/exchange"
	"condor/internal/models"
	"condor/pkg/utils"
)

// RecoveryManager восстанавливает состояние бота после перезапуска.
//
// Порядок:
// - Чтение снапшота состояния (отсутствие файла = чистый старт)
// - Восстановление истории IV
// - Сверка каждой сохранённой структуры с реальными позициями на бирже
// - Постановка подтверждённых структур на мониторинг
// - Уведомление оператора о расхождениях
//
// Сверка обязательна: пока бот лежал, позиции могли закрыться
// экспирацией или руками - слепое доверие снапшоту опасно
type RecoveryManager struct {
	exch    exchange.Exchange
	store   *StateStore
	monitor *PositionMonitor
	vol     *VolatilityTracker

	notificationChan chan<- *models.Notification
}

// NewRecoveryManager создаёт менеджер восстановления
func NewRecoveryManager(exch exchange.Exchange, store *StateStore, monitor *PositionMonitor, vol *VolatilityTracker, notifChan chan<- *models.Notification) *RecoveryManager {
	return &RecoveryManager{
		exch:             exch,
		store:            store,
		monitor:          monitor,
		vol:              vol,
		notificationChan: notifChan,
	}
}

// RecoveryResult - итоги восстановления
type RecoveryResult struct {
	Restored         []string // структуры возвращены на мониторинг
	PartiallyMissing []string // часть ног отсутствует на бирже
	ClosedExternally []string // ни одной ноги на бирже, помечены закрытыми
	Errors           []string
}

// Recover загружает снапшот и восстанавливает мониторинг структур
func (rm *RecoveryManager) Recover(ctx context.Context) (*RecoveryResult, error) {
	result := &RecoveryResult{}

	snap, err := rm.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	if rm.vol != nil {
		rm.vol.Restore(snap.IVHistory)
	}

	if len(snap.Structures) == 0 {
		utils.L().Info("no persisted structures, clean start")
		return result, nil
	}

	utils.L().Info("recovering persisted structures",
		utils.Int("count", len(snap.Structures)),
		utils.String("saved_at", snap.SavedAt.Format(time.RFC3339)))

	// Позиции запрашиваются один раз на валюту
	positionsByCurrency := make(map[string]map[string]bool)

	for id, condor := range snap.Structures {
		if condor == nil || !RequiresMonitoring(condor.Status) {
			continue
		}

		held, ok := positionsByCurrency[condor.Currency]
		if !ok {
			held, err = rm.fetchHeldInstruments(ctx, condor.Currency)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
				// Биржа недоступна - структуру всё равно мониторим,
				// потеря слежения хуже лишней проверки
				rm.monitor.Track(condor)
				result.Restored = append(result.Restored, id)
				continue
			}
			positionsByCurrency[condor.Currency] = held
		}

		present := 0
		for _, leg := range condor.Legs() {
			if held[leg.Instrument] {
				present++
			}
		}

		switch {
		case present == len(condor.Legs()):
			rm.monitor.Track(condor)
			result.Restored = append(result.Restored, id)

		case present == 0:
			// Все ноги исчезли: закрыта извне, PnL неизвестен
			now := time.Now().UTC()
			condor.Status = models.StatusClosed
			condor.ClosedAt = &now
			condor.CloseReason = models.CloseReasonManual
			result.ClosedExternally = append(result.ClosedExternally, id)

			rm.notify(&models.Notification{
				Timestamp:   now,
				Type:        models.NotificationTypeClose,
				Severity:    models.SeverityWarn,
				StructureID: id,
				Message:     "Structure was closed outside the bot, removed from monitoring",
			})

		default:
			condor.Status = models.StatusPartiallyClosed
			rm.monitor.Track(condor)
			result.PartiallyMissing = append(result.PartiallyMissing, id)

			rm.notify(&models.Notification{
				Timestamp:   time.Now().UTC(),
				Type:        models.NotificationTypePartialClose,
				Severity:    models.SeverityError,
				StructureID: id,
				Message: fmt.Sprintf("⚠️ Found %d of %d legs on exchange after restart - manual intervention required",
					present, len(condor.Legs())),
			})
		}
	}

	utils.L().Info("recovery complete",
		utils.Int("restored", len(result.Restored)),
		utils.Int("partial", len(result.PartiallyMissing)),
		utils.Int("closed_externally", len(result.ClosedExternally)),
		utils.Int("errors", len(result.Errors)))

	return result, nil
}

// fetchHeldInstruments возвращает множество инструментов с ненулевой
// позицией на бирже для валюты
func (rm *RecoveryManager) fetchHeldInstruments(ctx context.Context, currency string) (map[string]bool, error) {
	positions, err := rm.exch.GetPositions(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("positions for %s: %w", currency, err)
	}

	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		held[p.Instrument] = true
	}
	return held, nil
}

func (rm *RecoveryManager) notify(notif *models.Notification) {
	if rm.notificationChan == nil {
		return
	}
	select {
	case rm.notificationChan <- notif:
	default:
		RecordBufferOverflow("notification")
	}
}
