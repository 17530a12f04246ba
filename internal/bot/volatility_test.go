package bot

import (
	"testing"

	"condor/internal/models"
)

func TestATMIV(t *testing.T) {
	// Ближайшие к споту 50000 страйки с положительным IV:
	// 47500, 52500, 45000 - среднее их IV даёт ATM-оценку
	chain := []*models.OptionQuote{
		{Strike: 45000, MarkIV: 62},
		{Strike: 47500, MarkIV: 64},
		{Strike: 52500, MarkIV: 66},
		{Strike: 57500, MarkIV: 0}, // без IV - не участвует
	}

	iv, err := ATMIV(chain, 50000)
	if err != nil {
		t.Fatalf("ATMIV() error = %v", err)
	}
	if !almostEqual(iv, 64) {
		t.Errorf("iv = %v, want 64", iv)
	}
}

func TestATMIVNoUsableQuotes(t *testing.T) {
	chain := []*models.OptionQuote{
		{Strike: 50000, MarkIV: 0},
	}
	if _, err := ATMIV(chain, 50000); err == nil {
		t.Error("expected error without usable IV")
	}
}

func TestPercentile(t *testing.T) {
	vt := NewVolatilityTracker(30)
	for _, iv := range []float64{40, 45, 50, 55, 60, 65, 70, 75, 80, 85} {
		vt.Record("BTC", iv)
	}

	tests := []struct {
		iv   float64
		want float64
	}{
		{90, 100},
		{62, 50},
		{40, 0},
		{41, 10},
	}

	for _, tt := range tests {
		if got := vt.Percentile("BTC", tt.iv); !almostEqual(got, tt.want) {
			t.Errorf("Percentile(%v) = %v, want %v", tt.iv, got, tt.want)
		}
	}
}

func TestPercentileEmptyHistory(t *testing.T) {
	vt := NewVolatilityTracker(30)
	if got := vt.Percentile("BTC", 60); !almostEqual(got, 50) {
		t.Errorf("Percentile on empty history = %v, want 50", got)
	}
}

func TestRecordCapsHistory(t *testing.T) {
	vt := NewVolatilityTracker(30)
	for i := 0; i < 100; i++ {
		vt.Record("BTC", float64(10+i))
	}
	if got := vt.HistoryLen("BTC"); got != defaultIVHistoryDepth {
		t.Errorf("history length = %d, want %d", got, defaultIVHistoryDepth)
	}

	// Остались самые свежие точки
	if got := vt.Percentile("BTC", 200); !almostEqual(got, 100) {
		t.Errorf("percentile of max = %v, want 100", got)
	}
	if got := vt.Percentile("BTC", 80); !almostEqual(got, 0) {
		t.Errorf("percentile below window = %v, want 0", got)
	}
}

func TestRecordIgnoresNonPositive(t *testing.T) {
	vt := NewVolatilityTracker(30)
	vt.Record("BTC", 0)
	vt.Record("BTC", -5)
	if vt.HistoryLen("BTC") != 0 {
		t.Error("non-positive IV must not be recorded")
	}
}

func TestShouldEnterShortHistoryFallback(t *testing.T) {
	vt := NewVolatilityTracker(30)
	// Истории меньше пяти точек: решает абсолютный порог 50%
	vt.Record("BTC", 45)
	vt.Record("BTC", 48)

	if ok, _ := vt.ShouldEnter("BTC", 55); !ok {
		t.Error("IV 55 above absolute floor must pass with short history")
	}
	if ok, _ := vt.ShouldEnter("BTC", 45); ok {
		t.Error("IV 45 below absolute floor must be rejected with short history")
	}
}

func TestShouldEnterPercentileGate(t *testing.T) {
	vt := NewVolatilityTracker(30)
	for _, iv := range []float64{40, 45, 50, 55, 60, 65, 70, 75, 80, 85} {
		vt.Record("BTC", iv)
	}

	// Перцентиль 0 < 30 - отказ, даже при IV выше абсолютного порога
	if ok, _ := vt.ShouldEnter("BTC", 40); ok {
		t.Error("bottom-of-history IV must be rejected")
	}
	// Перцентиль 50 >= 30 - вход
	if ok, _ := vt.ShouldEnter("BTC", 62); !ok {
		t.Error("mid-history IV must pass")
	}
}

func TestShouldEnterNoIV(t *testing.T) {
	vt := NewVolatilityTracker(30)
	if ok, _ := vt.ShouldEnter("BTC", 0); ok {
		t.Error("missing IV must never pass the filter")
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	vt := NewVolatilityTracker(30)
	vt.Record("BTC", 60)
	vt.Record("ETH", 70)

	restored := NewVolatilityTracker(30)
	restored.Restore(vt.History())

	if restored.HistoryLen("BTC") != 1 || restored.HistoryLen("ETH") != 1 {
		t.Errorf("restored lengths = %d/%d, want 1/1",
			restored.HistoryLen("BTC"), restored.HistoryLen("ETH"))
	}
}
