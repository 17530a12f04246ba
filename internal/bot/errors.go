package bot

import "errors"

// Ошибки торгового ядра. Оборачиваются через fmt.Errorf("%w", ...)
// с контекстом, проверяются через errors.Is
var (
	// ErrNoMatchingStrike - не найден страйк с подходящей чувствительностью
	ErrNoMatchingStrike = errors.New("no strike within delta tolerance")

	// ErrNoProtectiveStrike - не найден защитный страйк за коротким
	ErrNoProtectiveStrike = errors.New("no protective strike beyond short strike")

	// ErrInvalidStructure - структура не проходит проверку страйков или премии
	ErrInvalidStructure = errors.New("invalid structure")

	// ErrRiskDenied - вход отклонён риск-менеджером
	ErrRiskDenied = errors.New("entry denied by risk manager")

	// ErrTradingStopped - торговля остановлена аварийно
	ErrTradingStopped = errors.New("trading is stopped")

	// ErrPnlUnavailable - PnL невозможно посчитать из-за отсутствия котировок.
	// Не путать с нулевым PnL: отсутствие данных не повод для решения
	ErrPnlUnavailable = errors.New("pnl unavailable")

	// ErrOrderNotFilled - ордер не исполнился за отведённое время
	ErrOrderNotFilled = errors.New("order not filled")

	// ErrOrderRejected - биржа отклонила ордер
	ErrOrderRejected = errors.New("order rejected")

	// ErrNoQuote - у инструмента нет пригодной котировки
	ErrNoQuote = errors.New("no usable quote")
)
