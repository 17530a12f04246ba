package bot

import (
	"fmt"
	"time"

	"condor/internal/models"
	"condor/pkg/utils"
)

// StructureBuilder собирает четыре ноги в оценённую структуру с размером
// и целями выхода. Биржу не вызывает: цепочка котировок подаётся снаружи
type StructureBuilder struct {
	selector *StrikeSelector

	wingWidthPct float64
	minSize      float64
	maxSize      float64
}

// NewStructureBuilder создаёт билдер структур
func NewStructureBuilder(selector *StrikeSelector, wingWidthPct, minSize, maxSize float64) *StructureBuilder {
	return &StructureBuilder{
		selector:     selector,
		wingWidthPct: wingWidthPct,
		minSize:      minSize,
		maxSize:      maxSize,
	}
}

// BuildParams - входные данные для сборки структуры
type BuildParams struct {
	Currency   string
	Chain      []*models.OptionQuote // котировки одной экспирации
	Spot       float64
	Expiration time.Time

	RiskBudget         float64 // бюджет риска в USD
	TakeProfitRatio    float64
	StopLossMultiplier float64
}

// Build выбирает четыре ноги и собирает структуру:
// короткий пут и колл по целевой delta, защитные ноги на ширине крыла.
// Отказывает, если любая нога не находится, премия не положительна
// или максимальный убыток не положителен
func (b *StructureBuilder) Build(p BuildParams) (*models.Condor, error) {
	if p.Spot <= 0 {
		return nil, fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidStructure, p.Spot)
	}

	shortPut, err := b.selector.FindBySensitivity(p.Chain, models.KindPut)
	if err != nil {
		return nil, fmt.Errorf("short put: %w", err)
	}

	shortCall, err := b.selector.FindBySensitivity(p.Chain, models.KindCall)
	if err != nil {
		return nil, fmt.Errorf("short call: %w", err)
	}

	width := p.Spot * b.wingWidthPct

	longPut, err := b.selector.FindProtective(p.Chain, models.KindPut, shortPut.Strike, width)
	if err != nil {
		return nil, fmt.Errorf("long put: %w", err)
	}

	longCall, err := b.selector.FindProtective(p.Chain, models.KindCall, shortCall.Strike, width)
	if err != nil {
		return nil, fmt.Errorf("long call: %w", err)
	}

	creditPerUnit := utils.CalculateCreditPerUnit(
		shortPut.MarkPrice, shortCall.MarkPrice, longPut.MarkPrice, longCall.MarkPrice, p.Spot)
	if creditPerUnit <= 0 {
		return nil, fmt.Errorf("%w: credit per unit %.2f is not positive", ErrInvalidStructure, creditPerUnit)
	}

	putWidth := shortPut.Strike - longPut.Strike
	callWidth := longCall.Strike - shortCall.Strike
	maxLossPerUnit := utils.CalculateMaxLossPerUnit(putWidth, callWidth, creditPerUnit)
	if maxLossPerUnit <= 0 {
		return nil, fmt.Errorf("%w: max loss per unit %.2f is not positive", ErrInvalidStructure, maxLossPerUnit)
	}

	size := utils.CalculateStructureSize(p.RiskBudget, maxLossPerUnit, b.minSize, b.maxSize)
	if size <= 0 {
		return nil, fmt.Errorf("%w: computed size is zero", ErrInvalidStructure)
	}

	credit := creditPerUnit * size

	condor := &models.Condor{
		ID:         models.NewCondorID(p.Currency, time.Now().UTC()),
		Currency:   p.Currency,
		Expiration: p.Expiration,

		LongPut:   newLeg(longPut, models.SideBuy),
		ShortPut:  newLeg(shortPut, models.SideSell),
		ShortCall: newLeg(shortCall, models.SideSell),
		LongCall:  newLeg(longCall, models.SideBuy),

		EntrySpot: p.Spot,
		EnteredAt: time.Now().UTC(),

		Credit:    credit,
		MaxLoss:   maxLossPerUnit * size,
		MaxProfit: credit,
		Size:      size,

		TakeProfitTarget: credit * p.TakeProfitRatio,
		StopLossTarget:   -(credit * p.StopLossMultiplier),

		Status: models.StatusPending,
	}

	if err := condor.ValidateStrikes(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	return condor, nil
}

// newLeg строит ногу из котировки, фиксируя mark-цену момента выбора
func newLeg(q *models.OptionQuote, side string) models.Leg {
	return models.Leg{
		Instrument: q.Instrument,
		Strike:     q.Strike,
		Kind:       q.Kind,
		Side:       side,
		Delta:      q.Delta,
		EntryMark:  q.MarkPrice,
	}
}
