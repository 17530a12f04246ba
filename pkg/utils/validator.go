package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация данных
//
// Назначение:
// Проверка корректности входных данных до того, как они попадут
// в торговое ядро или в БД.
//
// Функции:
// - ValidateCurrency: проверка кода валюты (BTC, ETH)
// - ValidateInstrument: проверка имени опционного инструмента
// - ValidateRiskFractions: согласованность долей риска
// - ValidateDeltaTarget / ValidateDeltaTolerance: параметры выбора страйков
// - ValidateSizeRange: границы размера структуры
// - ValidateAPIKey / ValidateAPISecret: базовая проверка ключей
// - ValidateExchange: поддерживаемые биржи
// - ValidateStrategyConfig: агрегированная проверка конфигурации стратегии
//
// Возвращают error с описанием проблемы или nil

var (
	currencyRe = regexp.MustCompile(`^[A-Z0-9]{2,6}$`)

	// Формат Deribit: CCY-DDMMMYY-STRIKE-K, например BTC-28MAR25-45000-P
	instrumentRe = regexp.MustCompile(`^[A-Z0-9]{2,6}-\d{1,2}[A-Z]{3}\d{2}-\d+-[CP]$`)
)

// ValidateCurrency проверяет код валюты (BTC, ETH и т.п.)
func ValidateCurrency(currency string) error {
	if currency == "" {
		return fmt.Errorf("currency is empty")
	}
	if !currencyRe.MatchString(NormalizeCurrency(currency)) {
		return fmt.Errorf("invalid currency %q: expected 2-6 alphanumeric characters", currency)
	}
	return nil
}

// NormalizeCurrency приводит код валюты к каноническому виду (UPPER, без пробелов)
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateInstrument проверяет имя опционного инструмента.
// Ожидаемый формат: CCY-DDMMMYY-STRIKE-K (K = C или P).
func ValidateInstrument(name string) error {
	if name == "" {
		return fmt.Errorf("instrument name is empty")
	}
	if !instrumentRe.MatchString(name) {
		return fmt.Errorf("invalid instrument name %q: expected format like BTC-28MAR25-45000-P", name)
	}
	return nil
}

// ExtractInstrumentCurrency извлекает валюту из имени инструмента
func ExtractInstrumentCurrency(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) < 1 {
		return ""
	}
	return strings.ToUpper(parts[0])
}

// ExtractInstrumentKind извлекает тип опциона из имени инструмента
// ("call", "put" или пустая строка)
func ExtractInstrumentKind(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		return ""
	}
	switch parts[3] {
	case "C":
		return "call"
	case "P":
		return "put"
	default:
		return ""
	}
}

// ValidateFraction проверяет, что значение лежит в (0, 1]
func ValidateFraction(name string, value float64) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, value)
	}
	if value > 1 {
		return fmt.Errorf("%s must not exceed 1, got %v", name, value)
	}
	return nil
}

// ValidateRiskFractions проверяет согласованность долей риска:
// обе в (0, 1], и портфельный потолок не ниже доли на структуру
func ValidateRiskFractions(perStructure, portfolio float64) error {
	if err := ValidateFraction("risk_per_structure", perStructure); err != nil {
		return err
	}
	if err := ValidateFraction("max_portfolio_risk", portfolio); err != nil {
		return err
	}
	if portfolio < perStructure {
		return fmt.Errorf("max_portfolio_risk (%v) must be >= risk_per_structure (%v)", portfolio, perStructure)
	}
	return nil
}

// ValidateDeltaTarget проверяет целевую дельту коротких ног: (0, 1)
func ValidateDeltaTarget(target float64) error {
	if target <= 0 || target >= 1 {
		return fmt.Errorf("delta target must be in (0, 1), got %v", target)
	}
	return nil
}

// ValidateDeltaTolerance проверяет допуск по дельте: (0, 1)
func ValidateDeltaTolerance(tolerance float64) error {
	if tolerance <= 0 || tolerance >= 1 {
		return fmt.Errorf("delta tolerance must be in (0, 1), got %v", tolerance)
	}
	return nil
}

// ValidateSizeRange проверяет границы размера структуры
func ValidateSizeRange(minSize, maxSize float64) error {
	if minSize <= 0 {
		return fmt.Errorf("min size must be positive, got %v", minSize)
	}
	if maxSize < minSize {
		return fmt.Errorf("max size (%v) must be >= min size (%v)", maxSize, minSize)
	}
	return nil
}

// ValidateRatio проверяет положительность коэффициента (TP ratio, SL multiplier)
func ValidateRatio(name string, value float64) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, value)
	}
	return nil
}

// ValidateAPIKey выполняет базовую проверку API ключа
func ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("API key is empty")
	}
	if len(key) < 8 {
		return fmt.Errorf("API key is too short (min 8 characters)")
	}
	if strings.ContainsAny(key, " \t\n") {
		return fmt.Errorf("API key contains whitespace")
	}
	return nil
}

// ValidateAPISecret выполняет базовую проверку API секрета
func ValidateAPISecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("API secret is empty")
	}
	if len(secret) < 16 {
		return fmt.Errorf("API secret is too short (min 16 characters)")
	}
	if strings.ContainsAny(secret, " \t\n") {
		return fmt.Errorf("API secret contains whitespace")
	}
	return nil
}

// Поддерживаемые биржи
var supportedExchanges = []string{"deribit", "deribit-testnet"}

// ValidateExchange проверяет, что биржа поддерживается
func ValidateExchange(name string) error {
	normalized := NormalizeExchange(name)
	for _, e := range supportedExchanges {
		if normalized == e {
			return nil
		}
	}
	return fmt.Errorf("unsupported exchange %q (supported: %s)", name, strings.Join(supportedExchanges, ", "))
}

// NormalizeExchange приводит имя биржи к каноническому виду
func NormalizeExchange(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// GetSupportedExchanges возвращает список поддерживаемых бирж
func GetSupportedExchanges() []string {
	result := make([]string, len(supportedExchanges))
	copy(result, supportedExchanges)
	return result
}

// IsValidCurrency - булева обёртка над ValidateCurrency
func IsValidCurrency(currency string) bool {
	return ValidateCurrency(currency) == nil
}

// IsValidInstrument - булева обёртка над ValidateInstrument
func IsValidInstrument(name string) bool {
	return ValidateInstrument(name) == nil
}

// IsValidAPIKey - булева обёртка над ValidateAPIKey
func IsValidAPIKey(key string) bool {
	return ValidateAPIKey(key) == nil
}

// IsValidExchange - булева обёртка над ValidateExchange
func IsValidExchange(name string) bool {
	return ValidateExchange(name) == nil
}

// ============================================================
// Агрегированная валидация
// ============================================================

// ValidationErrors накапливает ошибки валидации конфигурации
type ValidationErrors struct {
	Errors []string
}

// Add добавляет ошибку по формату
func (v *ValidationErrors) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// AddError добавляет ошибку, если она не nil
func (v *ValidationErrors) AddError(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err.Error())
	}
}

// HasErrors возвращает true при наличии ошибок
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error реализует интерфейс error
func (v *ValidationErrors) Error() string {
	if !v.HasErrors() {
		return ""
	}
	return "validation failed: " + strings.Join(v.Errors, "; ")
}

// StrategyParams - параметры стратегии для агрегированной проверки
type StrategyParams struct {
	Currencies         []string
	DeltaTarget        float64
	DeltaTolerance     float64
	WingWidthFraction  float64
	TakeProfitRatio    float64
	StopLossMultiplier float64
	MinSize            float64
	MaxSize            float64
	RiskPerStructure   float64
	MaxPortfolioRisk   float64
}

// ValidateStrategyConfig проверяет полную конфигурацию стратегии.
// Возвращает *ValidationErrors со всеми найденными проблемами или nil.
func ValidateStrategyConfig(p StrategyParams) error {
	errs := &ValidationErrors{}

	if len(p.Currencies) == 0 {
		errs.Add("at least one currency is required")
	}
	for _, c := range p.Currencies {
		errs.AddError(ValidateCurrency(c))
	}

	errs.AddError(ValidateDeltaTarget(p.DeltaTarget))
	errs.AddError(ValidateDeltaTolerance(p.DeltaTolerance))
	errs.AddError(ValidateFraction("wing_width_fraction", p.WingWidthFraction))
	errs.AddError(ValidateRatio("take_profit_ratio", p.TakeProfitRatio))
	errs.AddError(ValidateRatio("stop_loss_multiplier", p.StopLossMultiplier))
	errs.AddError(ValidateSizeRange(p.MinSize, p.MaxSize))
	errs.AddError(ValidateRiskFractions(p.RiskPerStructure, p.MaxPortfolioRisk))

	if errs.HasErrors() {
		return errs
	}
	return nil
}
