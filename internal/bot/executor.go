package bot

import (
	"context"
	"fmt"
	"time"

	"condor/internal/config"
	"condor/internal/exchange"
	"condor/internal/models"
	"condor/pkg/utils"
)

// OrderExecutor - исполнитель ордеров по ногам структуры
//
// Открытие: четыре ноги СТРОГО последовательно (long put → short put →
// short call → long call) агрессивными лимитками с проверкой исполнения.
// Если любая нога не исполнилась - уже открытые ноги закрываются в
// обратном порядке (компенсационный список), прежде чем вернуть ошибку:
// бот не должен остаться с голой частичной структурой.
//
// Закрытие: каждая нога независимо со своим бюджетом попыток; отказ
// одной ноги не блокирует остальные, незакрытые ноги явно возвращаются
// вызывающему
type OrderExecutor struct {
	exch exchange.Exchange
	cfg  config.ExecutionConfig

	// Необязательный callback для персистентности истории ордеров
	recordFn func(*models.LegOrderRecord)
}

// NewOrderExecutor создаёт исполнитель
func NewOrderExecutor(exch exchange.Exchange, cfg config.ExecutionConfig) *OrderExecutor {
	return &OrderExecutor{
		exch: exch,
		cfg:  cfg,
	}
}

// SetOrderRecorder устанавливает callback для записи истории ордеров
func (oe *OrderExecutor) SetOrderRecorder(fn func(*models.LegOrderRecord)) {
	oe.recordFn = fn
}

// AggressiveLimitPrice вычисляет цену агрессивной лимитки:
// покупка - ask с надбавкой slippage; продажа - bid, а при пустом bid
// ask со скидкой slippage/2. Цена округляется к шагу инструмента
func (oe *OrderExecutor) AggressiveLimitPrice(side string, q *exchange.Quote, tickSize float64) (float64, error) {
	if tickSize <= 0 {
		tickSize = oe.cfg.DefaultTickSize
	}

	var price float64
	switch side {
	case models.SideBuy:
		if q.AskPrice <= 0 {
			return 0, fmt.Errorf("%w: no ask for %s", ErrNoQuote, q.Instrument)
		}
		price = q.AskPrice * (1 + oe.cfg.Slippage)
	case models.SideSell:
		switch {
		case q.BidPrice > 0:
			price = q.BidPrice
		case q.AskPrice > 0:
			price = q.AskPrice * (1 - oe.cfg.Slippage/2)
		default:
			return 0, fmt.Errorf("%w: empty book for %s", ErrNoQuote, q.Instrument)
		}
	default:
		return 0, fmt.Errorf("invalid side: %s", side)
	}

	price = utils.RoundToTick(price, tickSize)
	if price <= 0 {
		return 0, fmt.Errorf("%w: price rounded to zero for %s", ErrNoQuote, q.Instrument)
	}
	return price, nil
}

// OpenStructure открывает все четыре ноги структуры.
// При отказе любой ноги выполняет откат уже исполненных и возвращает ошибку.
// Структура с успешным открытием переводится в статус open
func (oe *OrderExecutor) OpenStructure(ctx context.Context, condor *models.Condor) error {
	logger := utils.L().With(utils.StructureID(condor.ID), utils.Currency(condor.Currency))
	logger.Info("opening structure",
		utils.Float64("size", condor.Size),
		utils.Float64("credit", condor.Credit))

	legs := condor.Legs()
	roles := models.LegRoles()

	// Компенсационный список: успешно исполненные ноги для отката
	filled := make([]*models.Leg, 0, len(legs))
	filledRoles := make([]string, 0, len(legs))

	for i, leg := range legs {
		if i > 0 && oe.cfg.InterLegDelay > 0 {
			// Пауза между ногами, чтобы не упереться в rate limit биржи
			select {
			case <-ctx.Done():
				oe.rollback(context.Background(), condor, filled, filledRoles)
				return ctx.Err()
			case <-time.After(oe.cfg.InterLegDelay):
			}
		}

		order, err := oe.executeLeg(ctx, condor, leg, roles[i], models.OrderPhaseOpen)
		if err != nil {
			logger.Error("leg failed, rolling back filled legs",
				utils.Instrument(leg.Instrument),
				utils.Int("filled_legs", len(filled)),
				utils.Err(err))

			// Откат в фоновом контексте: отмена ctx не должна
			// оставить частичную структуру без компенсации
			oe.rollback(context.Background(), condor, filled, filledRoles)
			RecordStructureOpened(condor.Currency, "rollback")
			return fmt.Errorf("leg %s (%s): %w", roles[i], leg.Instrument, err)
		}

		logger.Info("leg filled",
			utils.Instrument(leg.Instrument),
			utils.Side(leg.Side),
			utils.Price(order.AveragePrice))

		filled = append(filled, leg)
		filledRoles = append(filledRoles, roles[i])
	}

	condor.Status = models.StatusOpen
	RecordStructureOpened(condor.Currency, "success")
	logger.Info("structure opened")
	return nil
}

// executeLeg размещает ордер одной ноги и дожидается исполнения.
// Размещение повторяется до OrderRetries раз; после размещения состояние
// опрашивается до FillPollAttempts раз. Неисполненный ордер отменяется
func (oe *OrderExecutor) executeLeg(ctx context.Context, condor *models.Condor, leg *models.Leg, role, phase string) (*exchange.Order, error) {
	side := leg.Side
	if phase != models.OrderPhaseOpen {
		side = leg.CloseSide()
	}

	var lastErr error
	for attempt := 1; attempt <= oe.cfg.OrderRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(oe.cfg.OrderRetryDelay):
			}
		}

		quote, err := oe.exch.GetQuote(ctx, leg.Instrument)
		if err != nil {
			lastErr = err
			continue
		}

		price, err := oe.AggressiveLimitPrice(side, quote, 0)
		if err != nil {
			lastErr = err
			continue
		}

		started := time.Now()
		order, err := oe.exch.PlaceOrder(ctx, leg.Instrument, side, condor.Size, &price)
		if err != nil {
			lastErr = err
			utils.L().Warn("order placement failed",
				utils.Instrument(leg.Instrument),
				utils.Int("attempt", attempt),
				utils.Err(err))
			continue
		}

		order, err = oe.waitForFill(ctx, order)
		RecordOrderLatency(side, phase, float64(time.Since(started).Milliseconds()))

		oe.record(condor, leg, role, phase, order, err)

		if err == nil {
			RecordLegOrder(role, models.OrderStatusFilled)
			return order, nil
		}
		lastErr = err

		// rejected не лечится повторной постановкой той же ноги
		if order != nil && order.State == exchange.OrderStateRejected {
			RecordLegOrder(role, models.OrderStatusRejected)
			return nil, fmt.Errorf("%w: %s", ErrOrderRejected, leg.Instrument)
		}
		RecordLegOrder(role, models.OrderStatusUnfilled)
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrOrderNotFilled, oe.cfg.OrderRetries, lastErr)
}

// waitForFill опрашивает состояние ордера ограниченное число раз.
// Неисполненный за отведённое время ордер отменяется
func (oe *OrderExecutor) waitForFill(ctx context.Context, order *exchange.Order) (*exchange.Order, error) {
	if order.IsFilled() {
		return order, nil
	}

	current := order
	for attempt := 0; attempt < oe.cfg.FillPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-time.After(oe.cfg.FillPollInterval):
		}

		updated, err := oe.exch.GetOrderState(ctx, order.ID)
		if err != nil {
			// Ошибка опроса не конец: ордер мог исполниться, проверяем дальше
			utils.L().Warn("order state poll failed", utils.OrderID(order.ID), utils.Err(err))
			continue
		}
		current = updated

		if updated.IsFilled() {
			return updated, nil
		}
		if updated.IsTerminal() {
			return updated, fmt.Errorf("%w: state %s", ErrOrderRejected, updated.State)
		}
	}

	// Бюджет опросов исчерпан: снимаем ордер, чтобы он не исполнился позже
	if err := oe.exch.CancelOrder(ctx, order.ID); err != nil {
		utils.L().Warn("failed to cancel unfilled order", utils.OrderID(order.ID), utils.Err(err))
	}
	return current, ErrOrderNotFilled
}

// rollback закрывает уже исполненные ноги в обратном порядке. Best-effort:
// отказ компенсации логируется, но не прерывает остальные - остановка
// оставила бы ещё худшую неуправляемую экспозицию
func (oe *OrderExecutor) rollback(ctx context.Context, condor *models.Condor, filled []*models.Leg, roles []string) {
	for i := len(filled) - 1; i >= 0; i-- {
		leg := filled[i]
		if err := oe.closeLeg(ctx, condor, leg, roles[i], models.OrderPhaseRollback); err != nil {
			utils.L().Error("rollback leg failed, manual intervention required",
				utils.StructureID(condor.ID),
				utils.Instrument(leg.Instrument),
				utils.Err(err))
		}
	}
	condor.Status = models.StatusRolledBack
}

// CloseStructure закрывает все ноги структуры независимо друг от друга.
// Возвращает инструменты ног, которые закрыть не удалось: частично
// закрытая структура - явное состояние для оператора, не тихий сбой
func (oe *OrderExecutor) CloseStructure(ctx context.Context, condor *models.Condor) []string {
	logger := utils.L().With(utils.StructureID(condor.ID), utils.Currency(condor.Currency))
	logger.Info("closing structure")

	legs := condor.Legs()
	roles := models.LegRoles()

	var failed []string
	for i, leg := range legs {
		if i > 0 && oe.cfg.InterLegDelay > 0 {
			select {
			case <-ctx.Done():
				failed = append(failed, legInstruments(legs[i:])...)
				return failed
			case <-time.After(oe.cfg.InterLegDelay):
			}
		}

		if err := oe.closeLeg(ctx, condor, leg, roles[i], models.OrderPhaseClose); err != nil {
			logger.Error("failed to close leg",
				utils.Instrument(leg.Instrument),
				utils.Err(err))
			failed = append(failed, leg.Instrument)
		}
	}

	return failed
}

// closeLeg закрывает одну ногу: сперва штатный close_position биржи,
// при отказе - рыночный ордер противоположной стороны вручную
func (oe *OrderExecutor) closeLeg(ctx context.Context, condor *models.Condor, leg *models.Leg, role, phase string) error {
	started := time.Now()

	order, err := oe.exch.ClosePosition(ctx, leg.Instrument)
	if err != nil {
		utils.L().Warn("close_position failed, falling back to market order",
			utils.Instrument(leg.Instrument), utils.Err(err))

		order, err = oe.exch.PlaceOrder(ctx, leg.Instrument, leg.CloseSide(), condor.Size, nil)
		if err != nil {
			oe.record(condor, leg, role, phase, nil, err)
			RecordLegOrder(role, models.OrderStatusUnfilled)
			return err
		}
	}

	order, err = oe.waitForFill(ctx, order)
	RecordOrderLatency(leg.CloseSide(), phase, float64(time.Since(started).Milliseconds()))
	oe.record(condor, leg, role, phase, order, err)

	if err != nil {
		RecordLegOrder(role, models.OrderStatusUnfilled)
		return err
	}
	RecordLegOrder(role, models.OrderStatusFilled)
	return nil
}

// record передаёт запись об ордере в callback персистентности
func (oe *OrderExecutor) record(condor *models.Condor, leg *models.Leg, role, phase string, order *exchange.Order, execErr error) {
	if oe.recordFn == nil {
		return
	}

	rec := &models.LegOrderRecord{
		StructureID: condor.ID,
		Instrument:  leg.Instrument,
		Role:        role,
		Phase:       phase,
		Amount:      condor.Size,
		CreatedAt:   time.Now().UTC(),
	}

	if phase == models.OrderPhaseOpen {
		rec.Side = leg.Side
	} else {
		rec.Side = leg.CloseSide()
	}

	if order != nil {
		rec.ExchangeID = order.ID
		rec.Price = order.Price
		rec.PriceAvg = order.AveragePrice
		rec.Status = order.State
		if order.IsFilled() {
			now := time.Now().UTC()
			rec.FilledAt = &now
		}
	}
	if execErr != nil {
		rec.ErrorMessage = execErr.Error()
		if rec.Status == "" {
			rec.Status = models.OrderStatusUnfilled
		}
	}

	oe.recordFn(rec)
}

func legInstruments(legs []*models.Leg) []string {
	out := make([]string, 0, len(legs))
	for _, l := range legs {
		out = append(out, l.Instrument)
	}
	return out
}
