package utils

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - настройка структурированного логирования
//
// Назначение:
// Единая точка инициализации zap-логгера для всех компонентов.
// Обёртка Logger добавляет доменные конструкторы полей (инструмент,
// валюта, структура) и sugared-хелперы для форматированного вывода.
//
// Использование:
//   logger := utils.InitLogger(utils.LogConfig{Level: "info", Format: "json"})
//   logger.Info("structure opened", utils.StructureID("BTC-xxx"), utils.PNL(12.5))
//
// Глобальный логгер доступен через utils.L() / utils.Info() и т.д.
// для мест, где прокидывание логгера через конструктор избыточно.

// LogConfig - конфигурация логгера
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json, text
	Output      string // путь к файлу; пусто = stderr
	Development bool   // режим разработки (цветной вывод, caller)
}

// Logger оборачивает zap.Logger и его sugared-вариант
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// InitLogger создаёт логгер по конфигурации.
// Никогда не возвращает nil: при некорректной конфигурации
// применяются безопасные значения по умолчанию (info, json, stderr).
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		if cfg.Development {
			encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	// Вывод: файл или stderr. Недоступный файл - не повод падать,
	// логгер обязан работать всегда.
	var sink zapcore.WriteSyncer
	if cfg.Output != "" {
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			sink = zapcore.AddSync(os.Stderr)
		} else {
			sink = zapcore.AddSync(file)
		}
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}

	zl := zap.New(core, opts...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// parseLevel преобразует строковый уровень в zapcore.Level.
// Неизвестные значения трактуются как info.
func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ============================================================
// Методы Logger
// ============================================================

// With возвращает дочерний логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{
		Logger: child,
		sugar:  child.Sugar(),
	}
}

// WithComponent возвращает логгер с полем component
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(zap.String("component", name))
}

// WithExchange возвращает логгер с полем exchange
func (l *Logger) WithExchange(name string) *Logger {
	return l.With(zap.String("exchange", name))
}

// WithCurrency возвращает логгер с полем currency
func (l *Logger) WithCurrency(currency string) *Logger {
	return l.With(zap.String("currency", currency))
}

// WithStructureID возвращает логгер с полем structure_id
func (l *Logger) WithStructureID(id string) *Logger {
	return l.With(zap.String("structure_id", id))
}

// Sugar возвращает sugared-логгер для printf-style вызовов
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// Debugf логирует отформатированное сообщение уровня debug
func (l *Logger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}

// Infof логирует отформатированное сообщение уровня info
func (l *Logger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

// Warnf логирует отформатированное сообщение уровня warn
func (l *Logger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

// Errorf логирует отформатированное сообщение уровня error
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

// ============================================================
// Глобальный логгер
// ============================================================

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// InitGlobalLogger инициализирует глобальный логгер по конфигурации
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalLogger возвращает глобальный логгер, создавая его при
// первом обращении с конфигурацией по умолчанию
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас для GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// Debug логирует через глобальный логгер
func Debug(msg string, fields ...zap.Field) {
	L().Logger.Debug(msg, fields...)
}

// Info логирует через глобальный логгер
func Info(msg string, fields ...zap.Field) {
	L().Logger.Info(msg, fields...)
}

// Warn логирует через глобальный логгер
func Warn(msg string, fields ...zap.Field) {
	L().Logger.Warn(msg, fields...)
}

// Error логирует через глобальный логгер
func Error(msg string, fields ...zap.Field) {
	L().Logger.Error(msg, fields...)
}

// Debugf - форматированный debug через глобальный логгер
func Debugf(template string, args ...interface{}) {
	L().sugar.Debugf(template, args...)
}

// Infof - форматированный info через глобальный логгер
func Infof(template string, args ...interface{}) {
	L().sugar.Infof(template, args...)
}

// Warnf - форматированный warn через глобальный логгер
func Warnf(template string, args ...interface{}) {
	L().sugar.Warnf(template, args...)
}

// Errorf - форматированный error через глобальный логгер
func Errorf(template string, args ...interface{}) {
	L().sugar.Errorf(template, args...)
}

// ============================================================
// Доменные конструкторы полей
// ============================================================

// Exchange - поле с именем биржи
func Exchange(name string) zap.Field {
	return zap.String("exchange", name)
}

// Currency - поле с валютой (BTC, ETH)
func Currency(currency string) zap.Field {
	return zap.String("currency", currency)
}

// Instrument - поле с именем инструмента (BTC-28MAR25-45000-P)
func Instrument(name string) zap.Field {
	return zap.String("instrument", name)
}

// StructureID - поле с идентификатором структуры
func StructureID(id string) zap.Field {
	return zap.String("structure_id", id)
}

// OrderID - поле с идентификатором ордера
func OrderID(id string) zap.Field {
	return zap.String("order_id", id)
}

// Price - поле с ценой
func Price(price float64) zap.Field {
	return zap.Float64("price", price)
}

// Size - поле с размером позиции в контрактах
func Size(size float64) zap.Field {
	return zap.Float64("size", size)
}

// Delta - поле с дельтой опциона
func Delta(delta float64) zap.Field {
	return zap.Float64("delta", delta)
}

// PNL - поле с прибылью/убытком
func PNL(pnl float64) zap.Field {
	return zap.Float64("pnl", pnl)
}

// Side - поле с направлением (buy, sell)
func Side(side string) zap.Field {
	return zap.String("side", side)
}

// State - поле с состоянием
func State(state string) zap.Field {
	return zap.String("state", state)
}

// Latency - поле с латентностью в миллисекундах
func Latency(ms float64) zap.Field {
	return zap.Float64("latency_ms", ms)
}

// RequestID - поле с идентификатором запроса
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// Component - поле с именем компонента
func Component(name string) zap.Field {
	return zap.String("component", name)
}

// Переэкспорт стандартных конструкторов zap, чтобы вызывающему
// коду не требовался прямой импорт zap ради одного поля

// String - строковое поле
func String(key, value string) zap.Field { return zap.String(key, value) }

// Int - целочисленное поле
func Int(key string, value int) zap.Field { return zap.Int(key, value) }

// Int64 - поле int64
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }

// Float64 - поле float64
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }

// Bool - булево поле
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }

// Duration - поле с длительностью
func Duration(key string, value time.Duration) zap.Field { return zap.Duration(key, value) }

// Err - поле с ошибкой
func Err(err error) zap.Field { return zap.Error(err) }

// Any - поле произвольного типа
func Any(key string, value interface{}) zap.Field { return zap.Any(key, value) }

// fieldsToInterface конвертирует zap-поля в плоский слайс
// key/value пар для sugared-логгера
func fieldsToInterface(fields []zap.Field) []interface{} {
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)
		result = append(result, f.Key, enc.Fields[f.Key])
	}
	return result
}
