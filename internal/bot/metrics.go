package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах
// - Анализ поведения стратегии в production

// ============ Метрики сканирования ============

// ScanDuration - длительность одного цикла сканирования рынка
var ScanDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "scan_duration_seconds",
		Help:      "Duration of a single market scan cycle in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"currency"},
)

// CandidatesFound - обнаруженные кандидаты на вход
var CandidatesFound = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "candidates_found_total",
		Help:      "Number of entry candidates detected",
	},
	[]string{"currency", "accepted"}, // accepted: yes, no (rejected by filters)
)

// ============ Метрики сделок ============

// StructuresOpened - открытые структуры по результату исполнения
var StructuresOpened = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "structures_opened_total",
		Help:      "Total number of structure open attempts by result",
	},
	[]string{"currency", "result"}, // result: success, failed, rollback
)

// StructuresClosed - закрытые структуры по причине выхода
var StructuresClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "structures_closed_total",
		Help:      "Total number of closed structures by exit reason",
	},
	[]string{"currency", "reason"}, // reason: take_profit, stop_loss, expiry, emergency, manual
)

// RealizedPnl - накопленный реализованный PnL в USD
// Gauge, а не Counter: PnL бывает отрицательным
var RealizedPnl = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "realized_pnl_usd",
		Help:      "Cumulative realized PnL in USD",
	},
)

// LegOrdersTotal - ордера по ногам структур
var LegOrdersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "leg_orders_total",
		Help:      "Total number of leg orders by role and outcome",
	},
	[]string{"role", "status"}, // role: long_put, short_put, short_call, long_call
)

// OrderExecutionLatency - время исполнения ордера на бирже
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "order_execution_latency_ms",
		Help:      "Time to execute order on exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000, 10000},
	},
	[]string{"side", "phase"}, // phase: open, close, rollback
)

// ============ Метрики состояния ============

// OpenStructures - текущее количество открытых структур
var OpenStructures = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "open_structures",
		Help:      "Current number of open structures",
	},
)

// AccountEquity - текущий equity счёта в USD
var AccountEquity = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "condor",
		Subsystem: "exchange",
		Name:      "account_equity_usd",
		Help:      "Current account equity in USD",
	},
)

// IndexPrice - индексная цена базового актива
var IndexPrice = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "condor",
		Subsystem: "exchange",
		Name:      "index_price_usd",
		Help:      "Current index price of the underlying",
	},
	[]string{"currency"},
)

// ExchangeConnection - статус подключения к бирже
var ExchangeConnection = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "condor",
		Subsystem: "exchange",
		Name:      "connection_status",
		Help:      "Exchange connection status (1=connected, 0=disconnected)",
	},
)

// RiskUtilization - использование портфельного лимита риска, %
var RiskUtilization = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "condor",
		Subsystem: "risk",
		Name:      "portfolio_utilization_percent",
		Help:      "Share of the portfolio risk limit currently in use",
	},
)

// ============ Метрики риска ============

// RiskDenied - отклонённые риск-менеджером входы
var RiskDenied = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "risk",
		Name:      "entries_denied_total",
		Help:      "Number of entries denied by the risk manager",
	},
	[]string{"reason"}, // portfolio_limit, trade_band, max_structures, paused
)

// StopLossTriggered - срабатывания стоп-лосса
var StopLossTriggered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "risk",
		Name:      "stop_loss_triggered_total",
		Help:      "Number of stop loss triggers",
	},
	[]string{"currency"},
)

// EmergencyStops - аварийные остановки торговли
var EmergencyStops = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "risk",
		Name:      "emergency_stops_total",
		Help:      "Number of emergency stop activations",
	},
)

// ============ Метрики производительности ============

// MonitorErrors - ошибки цикла мониторинга позиций
var MonitorErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "monitor_errors_total",
		Help:      "Number of errors during position monitoring",
	},
)

// BufferOverflows - переполнения буферов каналов
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "buffer_overflows_total",
		Help:      "Number of channel buffer overflows (events dropped)",
	},
	[]string{"buffer"}, // notification, structure_update
)

// BufferBacklog - заполненность буферов каналов
var BufferBacklog = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "condor",
		Subsystem: "trading",
		Name:      "buffer_backlog",
		Help:      "Current fill level of channel buffers",
	},
	[]string{"buffer"},
)

// ============ Вспомогательные функции ============

// RecordScan записывает длительность цикла сканирования
func RecordScan(currency string, seconds float64) {
	ScanDuration.WithLabelValues(currency).Observe(seconds)
}

// RecordCandidate записывает обнаруженного кандидата
func RecordCandidate(currency string, accepted bool) {
	acceptedStr := "no"
	if accepted {
		acceptedStr = "yes"
	}
	CandidatesFound.WithLabelValues(currency, acceptedStr).Inc()
}

// RecordStructureOpened записывает результат открытия структуры
func RecordStructureOpened(currency, result string) {
	StructuresOpened.WithLabelValues(currency, result).Inc()
}

// RecordStructureClosed записывает закрытие структуры
func RecordStructureClosed(currency, reason string, pnl float64) {
	StructuresClosed.WithLabelValues(currency, reason).Inc()
	RealizedPnl.Add(pnl)
}

// RecordLegOrder записывает результат ордера по ноге
func RecordLegOrder(role, status string) {
	LegOrdersTotal.WithLabelValues(role, status).Inc()
}

// RecordOrderLatency записывает латентность исполнения ордера
func RecordOrderLatency(side, phase string, latencyMs float64) {
	OrderExecutionLatency.WithLabelValues(side, phase).Observe(latencyMs)
}

// RecordRiskDenied записывает отклонённый вход
func RecordRiskDenied(reason string) {
	RiskDenied.WithLabelValues(reason).Inc()
}

// RecordBufferOverflow записывает переполнение буфера
func RecordBufferOverflow(bufferName string) {
	BufferOverflows.WithLabelValues(bufferName).Inc()
}

// RecordBufferBacklog записывает заполненность буфера
func RecordBufferBacklog(bufferName string, capacity, length int) {
	if capacity > 0 {
		BufferBacklog.WithLabelValues(bufferName).Set(float64(length))
	}
}

// UpdateOpenStructures обновляет счётчик открытых структур
func UpdateOpenStructures(count int) {
	OpenStructures.Set(float64(count))
}

// UpdateEquity обновляет текущий equity счёта
func UpdateEquity(equityUSD float64) {
	AccountEquity.Set(equityUSD)
}

// UpdateIndexPrice обновляет индексную цену валюты
func UpdateIndexPrice(currency string, price float64) {
	IndexPrice.WithLabelValues(currency).Set(price)
}

// UpdateExchangeStatus обновляет статус подключения к бирже
func UpdateExchangeStatus(connected bool) {
	if connected {
		ExchangeConnection.Set(1)
	} else {
		ExchangeConnection.Set(0)
	}
}

// UpdateRiskUtilization обновляет использование лимита риска
func UpdateRiskUtilization(percent float64) {
	RiskUtilization.Set(percent)
}
