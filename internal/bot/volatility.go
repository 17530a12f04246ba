package bot

import (
	"fmt"
	"sort"
	"sync"

	"condor/internal/models"
	"condor/pkg/utils"
)

// Значения по умолчанию фильтра волатильности
const (
	// Сколько свежих точек IV хранить на валюту
	defaultIVHistoryDepth = 30

	// Минимум точек истории для осмысленного перцентиля
	minHistoryForPercentile = 5

	// Абсолютный порог IV (%), когда истории ещё мало
	absoluteIVThreshold = 50.0
)

// VolatilityTracker копит историю ATM IV по валютам и фильтрует вход:
// продавать премию имеет смысл только при достаточно высокой волатильности
type VolatilityTracker struct {
	mu      sync.RWMutex
	history map[string][]float64

	depth           int
	minPercentile   float64
	absoluteIVFloor float64
}

// NewVolatilityTracker создаёт трекер волатильности
func NewVolatilityTracker(minPercentile float64) *VolatilityTracker {
	return &VolatilityTracker{
		history:         make(map[string][]float64),
		depth:           defaultIVHistoryDepth,
		minPercentile:   minPercentile,
		absoluteIVFloor: absoluteIVThreshold,
	}
}

// ATMIV оценивает at-the-money implied volatility как среднее mark IV
// трёх страйков, ближайших к споту. Ошибка, если пригодных котировок нет
func ATMIV(chain []*models.OptionQuote, spot float64) (float64, error) {
	candidates := make([]*models.OptionQuote, 0, len(chain))
	for _, q := range chain {
		if q.MarkIV > 0 {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("%w: no quotes with IV", ErrNoQuote)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return utils.Abs(candidates[i].Strike-spot) < utils.Abs(candidates[j].Strike-spot)
	})

	n := 3
	if len(candidates) < n {
		n = len(candidates)
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += candidates[i].MarkIV
	}
	return sum / float64(n), nil
}

// Record добавляет точку IV в историю валюты, вытесняя самую старую
func (vt *VolatilityTracker) Record(currency string, iv float64) {
	if iv <= 0 {
		return
	}

	vt.mu.Lock()
	defer vt.mu.Unlock()

	h := append(vt.history[currency], iv)
	if len(h) > vt.depth {
		h = h[len(h)-vt.depth:]
	}
	vt.history[currency] = h
}

// Percentile возвращает долю точек истории ниже данного IV, 0..100
func (vt *VolatilityTracker) Percentile(currency string, iv float64) float64 {
	vt.mu.RLock()
	defer vt.mu.RUnlock()

	h := vt.history[currency]
	if len(h) == 0 {
		return 50
	}

	below := 0
	for _, v := range h {
		if v < iv {
			below++
		}
	}
	return float64(below) / float64(len(h)) * 100
}

// HistoryLen возвращает длину истории валюты
func (vt *VolatilityTracker) HistoryLen(currency string) int {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return len(vt.history[currency])
}

// History возвращает копию истории для снапшота состояния
func (vt *VolatilityTracker) History() map[string][]float64 {
	vt.mu.RLock()
	defer vt.mu.RUnlock()

	out := make(map[string][]float64, len(vt.history))
	for currency, h := range vt.history {
		out[currency] = append([]float64(nil), h...)
	}
	return out
}

// Restore загружает историю из снапшота состояния
func (vt *VolatilityTracker) Restore(history map[string][]float64) {
	if history == nil {
		return
	}

	vt.mu.Lock()
	defer vt.mu.Unlock()

	for currency, h := range history {
		if len(h) > vt.depth {
			h = h[len(h)-vt.depth:]
		}
		vt.history[currency] = append([]float64(nil), h...)
	}
}

// ShouldEnter решает, достаточна ли волатильность для входа.
// При короткой истории перцентиль ненадёжен - используется абсолютный
// порог IV как fallback
func (vt *VolatilityTracker) ShouldEnter(currency string, iv float64) (bool, string) {
	if iv <= 0 {
		return false, "iv is not available"
	}

	if vt.HistoryLen(currency) < minHistoryForPercentile {
		if iv >= vt.absoluteIVFloor {
			return true, fmt.Sprintf("short history, absolute IV %.1f%% >= %.1f%%", iv, vt.absoluteIVFloor)
		}
		return false, fmt.Sprintf("short history, absolute IV %.1f%% < %.1f%%", iv, vt.absoluteIVFloor)
	}

	pct := vt.Percentile(currency, iv)
	if pct >= vt.minPercentile {
		return true, fmt.Sprintf("IV percentile %.0f >= %.0f", pct, vt.minPercentile)
	}
	return false, fmt.Sprintf("IV percentile %.0f < %.0f", pct, vt.minPercentile)
}
