package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Exchange  ExchangeConfig
	Strategy  StrategyConfig
	Risk      RiskConfig
	Execution ExecutionConfig
	Logging   LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	APIToken       string // bearer токен операторского API
	EncryptionKey  string // ключ AES-256 для шифрования API ключей биржи
	SessionTimeout int
}

// ExchangeConfig - настройки подключения к бирже
type ExchangeConfig struct {
	Name      string // deribit или deribit-testnet
	APIKey    string
	APISecret string
}

// StrategyConfig - параметры выбора структур
type StrategyConfig struct {
	Currencies []string // валюты для сканирования (BTC, ETH)

	// Выбор страйков
	DeltaTarget    float64 // целевая |delta| для коротких ног
	DeltaTolerance float64 // допустимое отклонение от цели
	WingWidthPct   float64 // ширина крыла как доля от spot

	// Окно экспираций
	MinDTE int // минимум дней до экспирации
	MaxDTE int // максимум дней до экспирации

	// Фильтр волатильности
	MinIVPercentile float64 // минимальный IV перцентиль для входа

	// Управление позициями
	TakeProfitRatio        float64 // доля полученной премии для take profit
	StopLossMultiplier     float64 // множитель премии для stop loss
	CloseBeforeExpiryHours float64 // закрывать за N часов до экспирации

	// Интервалы циклов
	ScanInterval    time.Duration
	MonitorInterval time.Duration
}

// RiskConfig - параметры риск-менеджмента
type RiskConfig struct {
	RiskPerStructure float64 // доля equity на одну структуру
	MaxPortfolioRisk float64 // доля equity на весь портфель
	RiskBandMin      float64 // нижняя граница коридора риска сделки
	RiskBandMax      float64 // верхняя граница коридора риска сделки
	MinSize          float64 // минимальный размер структуры
	MaxSize          float64 // максимальный размер структуры
	InitialEquity    float64 // fallback equity в USD, если биржа недоступна

	MaxOpenStructures int // максимум открытых структур (0 = без лимита)
}

// ExecutionConfig - параметры исполнения ордеров
type ExecutionConfig struct {
	Slippage         float64       // надбавка к цене для агрессивных лимиток
	InterLegDelay    time.Duration // пауза между ногами
	FillPollAttempts int           // сколько раз опрашивать состояние ордера
	FillPollInterval time.Duration // интервал между опросами
	OrderRetries     int           // попыток размещения одного ордера
	OrderRetryDelay  time.Duration
	DefaultTickSize  float64 // шаг цены, если биржа не сообщила свой

	StatePath string // путь к снапшоту состояния
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "condor"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			APIToken:       getEnv("API_TOKEN", ""),
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			SessionTimeout: getEnvAsInt("SESSION_TIMEOUT", 3600),
		},
		Exchange: ExchangeConfig{
			Name:      getEnv("EXCHANGE", "deribit-testnet"),
			APIKey:    getEnv("DERIBIT_API_KEY", ""),
			APISecret: getEnv("DERIBIT_API_SECRET", ""),
		},
		Strategy: StrategyConfig{
			Currencies: getEnvAsSlice("CURRENCIES", []string{"BTC"}),

			DeltaTarget:    getEnvAsFloat("DELTA_TARGET", 0.12),
			DeltaTolerance: getEnvAsFloat("DELTA_TOLERANCE", 0.05),
			WingWidthPct:   getEnvAsFloat("WING_WIDTH_PCT", 0.05),

			MinDTE: getEnvAsInt("MIN_DTE", 7),
			MaxDTE: getEnvAsInt("MAX_DTE", 10),

			MinIVPercentile: getEnvAsFloat("MIN_IV_PERCENTILE", 30),

			TakeProfitRatio:        getEnvAsFloat("TAKE_PROFIT_RATIO", 0.55),
			StopLossMultiplier:     getEnvAsFloat("STOP_LOSS_MULT", 1.2),
			CloseBeforeExpiryHours: getEnvAsFloat("CLOSE_BEFORE_EXPIRY_HOURS", 24),

			ScanInterval:    getEnvAsDuration("SCAN_INTERVAL", 5*time.Minute),
			MonitorInterval: getEnvAsDuration("MONITOR_INTERVAL", 1*time.Minute),
		},
		Risk: RiskConfig{
			RiskPerStructure: getEnvAsFloat("RISK_PER_STRUCTURE", 0.01),
			MaxPortfolioRisk: getEnvAsFloat("MAX_PORTFOLIO_RISK", 0.03),
			RiskBandMin:      getEnvAsFloat("RISK_BAND_MIN", 0.2),
			RiskBandMax:      getEnvAsFloat("RISK_BAND_MAX", 1.5),
			MinSize:          getEnvAsFloat("MIN_SIZE", 0.01),
			MaxSize:          getEnvAsFloat("MAX_SIZE", 10.0),
			InitialEquity:    getEnvAsFloat("INITIAL_EQUITY", 10000),

			MaxOpenStructures: getEnvAsInt("MAX_OPEN_STRUCTURES", 0), // 0 = без лимита
		},
		Execution: ExecutionConfig{
			Slippage:         getEnvAsFloat("SLIPPAGE", 0.10),
			InterLegDelay:    getEnvAsDuration("INTER_LEG_DELAY", 500*time.Millisecond),
			FillPollAttempts: getEnvAsInt("FILL_POLL_ATTEMPTS", 5),
			FillPollInterval: getEnvAsDuration("FILL_POLL_INTERVAL", 1*time.Second),
			OrderRetries:     getEnvAsInt("ORDER_RETRIES", 3),
			OrderRetryDelay:  getEnvAsDuration("ORDER_RETRY_DELAY", 1*time.Second),
			DefaultTickSize:  getEnvAsFloat("DEFAULT_TICK_SIZE", 0.0001),

			StatePath: getEnv("STATE_PATH", "data/state.json"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API ключей биржи
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	// API_TOKEN обязателен для доступа к операторскому API
	if c.Security.APIToken == "" {
		return fmt.Errorf("API_TOKEN is required for authentication")
	}

	if len(c.Security.APIToken) < 32 {
		return fmt.Errorf("API_TOKEN must be at least 32 characters for security")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Параметры выбора страйков
	if c.Strategy.DeltaTarget <= 0 || c.Strategy.DeltaTarget >= 1 {
		return fmt.Errorf("DELTA_TARGET must be in (0, 1), got %v", c.Strategy.DeltaTarget)
	}

	if c.Strategy.DeltaTolerance <= 0 || c.Strategy.DeltaTolerance >= 1 {
		return fmt.Errorf("DELTA_TOLERANCE must be in (0, 1), got %v", c.Strategy.DeltaTolerance)
	}

	if c.Strategy.WingWidthPct <= 0 || c.Strategy.WingWidthPct >= 1 {
		return fmt.Errorf("WING_WIDTH_PCT must be in (0, 1), got %v", c.Strategy.WingWidthPct)
	}

	if c.Strategy.MinDTE < 0 || c.Strategy.MaxDTE < c.Strategy.MinDTE {
		return fmt.Errorf("invalid DTE window: [%d, %d]", c.Strategy.MinDTE, c.Strategy.MaxDTE)
	}

	if c.Strategy.TakeProfitRatio <= 0 || c.Strategy.TakeProfitRatio >= 1 {
		return fmt.Errorf("TAKE_PROFIT_RATIO must be in (0, 1), got %v", c.Strategy.TakeProfitRatio)
	}

	if c.Strategy.StopLossMultiplier <= 0 {
		return fmt.Errorf("STOP_LOSS_MULT must be positive, got %v", c.Strategy.StopLossMultiplier)
	}

	// Риск-параметры: лимит портфеля не может быть меньше риска одной структуры
	if c.Risk.RiskPerStructure <= 0 || c.Risk.RiskPerStructure > 1 {
		return fmt.Errorf("RISK_PER_STRUCTURE must be in (0, 1], got %v", c.Risk.RiskPerStructure)
	}

	if c.Risk.MaxPortfolioRisk < c.Risk.RiskPerStructure {
		return fmt.Errorf("MAX_PORTFOLIO_RISK (%v) must be >= RISK_PER_STRUCTURE (%v)",
			c.Risk.MaxPortfolioRisk, c.Risk.RiskPerStructure)
	}

	if c.Risk.RiskBandMin <= 0 || c.Risk.RiskBandMax <= c.Risk.RiskBandMin {
		return fmt.Errorf("invalid risk band: [%v, %v]", c.Risk.RiskBandMin, c.Risk.RiskBandMax)
	}

	if c.Risk.MinSize <= 0 || c.Risk.MaxSize < c.Risk.MinSize {
		return fmt.Errorf("invalid size range: [%v, %v]", c.Risk.MinSize, c.Risk.MaxSize)
	}

	if c.Risk.MaxOpenStructures < 0 {
		return fmt.Errorf("MAX_OPEN_STRUCTURES cannot be negative, got %d", c.Risk.MaxOpenStructures)
	}

	// Параметры исполнения
	if c.Execution.Slippage < 0 || c.Execution.Slippage >= 1 {
		return fmt.Errorf("SLIPPAGE must be in [0, 1), got %v", c.Execution.Slippage)
	}

	if c.Execution.FillPollAttempts < 1 {
		return fmt.Errorf("FILL_POLL_ATTEMPTS must be at least 1, got %d", c.Execution.FillPollAttempts)
	}

	if c.Execution.OrderRetries < 1 || c.Execution.OrderRetries > 10 {
		return fmt.Errorf("ORDER_RETRIES must be between 1 and 10, got %d", c.Execution.OrderRetries)
	}

	// Валидация SessionTimeout
	if c.Security.SessionTimeout < 60 {
		return fmt.Errorf("SESSION_TIMEOUT must be at least 60 seconds, got %d", c.Security.SessionTimeout)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, strings.ToUpper(p))
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
