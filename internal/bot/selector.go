package bot

import (
	"fmt"
	"sort"

	"condor/internal/models"
	"condor/pkg/utils"
)

// StrikeSelector выбирает страйки для ног структуры по котировкам одной экспирации
//
// Два режима:
// - FindBySensitivity: короткие ноги по целевой |delta|
// - FindProtective: защитные ноги на заданной ширине крыла за коротким страйком
type StrikeSelector struct {
	deltaTarget    float64
	deltaTolerance float64
}

// NewStrikeSelector создаёт селектор страйков
func NewStrikeSelector(deltaTarget, deltaTolerance float64) *StrikeSelector {
	return &StrikeSelector{
		deltaTarget:    deltaTarget,
		deltaTolerance: deltaTolerance,
	}
}

// FindBySensitivity находит опцион заданного типа, чья |delta| ближе всего
// к целевой. Если лучший кандидат отклоняется больше допуска - ошибка:
// продавать ногу с непредсказуемой чувствительностью нельзя
func (s *StrikeSelector) FindBySensitivity(quotes []*models.OptionQuote, kind string) (*models.OptionQuote, error) {
	var best *models.OptionQuote
	bestDiff := -1.0

	for _, q := range quotes {
		if q.Kind != kind {
			continue
		}
		diff := utils.Abs(utils.Abs(q.Delta) - s.deltaTarget)
		if best == nil || diff < bestDiff {
			best = q
			bestDiff = diff
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no %s quotes", ErrNoMatchingStrike, kind)
	}
	if bestDiff > s.deltaTolerance {
		return nil, fmt.Errorf("%w: closest %s delta %.4f is off target %.2f by %.4f (tolerance %.2f)",
			ErrNoMatchingStrike, kind, best.Delta, s.deltaTarget, bestDiff, s.deltaTolerance)
	}
	return best, nil
}

// FindProtective находит защитный страйк: строго за коротким страйком
// (ниже для путов, выше для коллов) и ближайший к шорт-страйку ± width
func (s *StrikeSelector) FindProtective(quotes []*models.OptionQuote, kind string, shortStrike, width float64) (*models.OptionQuote, error) {
	var target float64
	if kind == models.KindPut {
		target = shortStrike - width
	} else {
		target = shortStrike + width
	}

	var best *models.OptionQuote
	bestDiff := -1.0

	for _, q := range quotes {
		if q.Kind != kind {
			continue
		}
		// Защита обязана быть строго за коротким страйком
		if kind == models.KindPut && q.Strike >= shortStrike {
			continue
		}
		if kind == models.KindCall && q.Strike <= shortStrike {
			continue
		}
		diff := utils.Abs(q.Strike - target)
		if best == nil || diff < bestDiff {
			best = q
			bestDiff = diff
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: %s beyond strike %.0f", ErrNoProtectiveStrike, kind, shortStrike)
	}
	return best, nil
}

// SortByStrike сортирует котировки по возрастанию страйка (in place)
func SortByStrike(quotes []*models.OptionQuote) {
	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].Strike < quotes[j].Strike
	})
}
