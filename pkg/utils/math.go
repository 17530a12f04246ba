package utils

import (
	"math"
)

// math.go - математические утилиты для опционной торговли
//
// Назначение:
// Вспомогательные математические функции для расчёта параметров
// четырёхногой структуры (iron condor) и её текущего PnL.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RoundToTick: округление цены до шага цены инструмента
// - CalculateCreditPerUnit: кредит структуры на единицу размера
// - CalculateMaxLossPerUnit: максимальный убыток на единицу размера
// - CalculateLegPnl: PnL одной ноги в валюте котировки
// - Clamp: ограничение размера границами биржи

// RoundToTick округляет цену к ближайшему кратному tickSize.
//
// Используется при выставлении лимитных ордеров: биржа отклоняет
// цены, не кратные шагу цены инструмента.
//
// Параметры:
//   - price: исходная цена
//   - tickSize: минимальный шаг цены инструмента
//
// Возвращает:
//   - Округлённую цену, кратную tickSize
//   - Если tickSize <= 0, возвращает исходную цену
//
// Примеры:
//   - RoundToTick(0.04372, 0.0005) = 0.0435
//   - RoundToTick(0.04378, 0.0005) = 0.044
func RoundToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	rounded := math.Round(price/tickSize) * tickSize
	// Повторное округление гасит двоичную погрешность вида 0.14500000000000002
	decimals := tickDecimals(tickSize)
	return RoundToDecimals(rounded, decimals)
}

// RoundToDecimals округляет значение до заданного числа знаков
// после запятой.
//
// Примеры:
//   - RoundToDecimals(0.123456, 4) = 0.1235
//   - RoundToDecimals(0.123456, 8) = 0.123456
func RoundToDecimals(value float64, decimals int) float64 {
	if decimals < 0 {
		return value
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(value*pow) / pow
}

// tickDecimals возвращает число значащих знаков после запятой у tickSize
func tickDecimals(tickSize float64) int {
	decimals := 0
	for tickSize < 1 && decimals < 10 {
		tickSize *= 10
		decimals++
	}
	return decimals
}

// CalculateCreditPerUnit расчитывает кредит структуры на единицу размера
// в валюте котировки (USD).
//
// Марки опционов котируются в единицах базового актива, поэтому
// сумма премий умножается на цену индекса.
//
// Формула:
//
//	credit = (short_put + short_call - long_put - long_call) × spot
//
// Параметры:
//   - shortPutMark, shortCallMark: марки продаваемых ног
//   - longPutMark, longCallMark: марки защитных ног
//   - spot: цена индекса базового актива
//
// Возвращает:
//   - Кредит в USD; отрицательное значение означает дебетовую
//     структуру (отклоняется при построении)
func CalculateCreditPerUnit(shortPutMark, shortCallMark, longPutMark, longCallMark, spot float64) float64 {
	return (shortPutMark + shortCallMark - longPutMark - longCallMark) * spot
}

// CalculateMaxLossPerUnit расчитывает максимальный убыток структуры
// на единицу размера.
//
// Худший сценарий - экспирация за пределами дальнего страйка одной
// из сторон, поэтому берётся большая из ширин спредов.
//
// Формула:
//
//	max_loss = max(put_width, call_width) - credit_per_unit
//
// Параметры:
//   - putWidth: ширина путового спреда (short_put_strike - long_put_strike)
//   - callWidth: ширина колового спреда (long_call_strike - short_call_strike)
//   - creditPerUnit: кредит на единицу размера в USD
//
// Возвращает:
//   - Максимальный убыток в USD; <= 0 означает некорректную структуру
func CalculateMaxLossPerUnit(putWidth, callWidth, creditPerUnit float64) float64 {
	return math.Max(putWidth, callWidth) - creditPerUnit
}

// CalculateLegPnl расчитывает PnL одной ноги в валюте котировки.
//
// Формулы:
//   - Проданная нога: PnL = (entry_mark - current_mark) × spot × size
//   - Купленная нога: PnL = (current_mark - entry_mark) × spot × size
//
// Параметры:
//   - side: "sell" или "buy"
//   - entryMark: марка на момент входа (в базовом активе)
//   - currentMark: текущая марка (в базовом активе)
//   - spot: цена индекса
//   - size: размер позиции в контрактах
//
// Возвращает:
//   - PnL ноги в USD; 0 для неизвестного side
func CalculateLegPnl(side string, entryMark, currentMark, spot, size float64) float64 {
	if size <= 0 {
		return 0
	}

	switch side {
	case "sell":
		// Продали премию: прибыль если марка упала
		return (entryMark - currentMark) * spot * size
	case "buy":
		// Купили защиту: прибыль если марка выросла
		return (currentMark - entryMark) * spot * size
	default:
		return 0
	}
}

// CalculateStructureSize расчитывает размер структуры из риск-бюджета.
//
// Параметры:
//   - riskBudget: допустимый риск в USD
//   - maxLossPerUnit: максимальный убыток на единицу размера в USD
//   - minSize, maxSize: границы размера биржи
//
// Возвращает:
//   - Размер, ограниченный [minSize, maxSize]
//   - 0 если maxLossPerUnit <= 0
func CalculateStructureSize(riskBudget, maxLossPerUnit, minSize, maxSize float64) float64 {
	if maxLossPerUnit <= 0 {
		return 0
	}
	return Clamp(riskBudget/maxLossPerUnit, minSize, maxSize)
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
