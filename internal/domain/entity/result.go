package entity

import "math"

// Имена метрик, которые пишутся в трекер и по которым выбирается лучшая эпоха.
const (
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricFBeta     = "f_beta"
)

// TrainResult — итог одной тренировочной эпохи.
type TrainResult struct {
	EpochLoss float64            // средний суммарный лосс по батчам
	Losses    map[string]float64 // средние значения компонент лосса
}

// EvalResult — итог одной оценочной эпохи.
type EvalResult struct {
	Scores  map[string]float64 // precision, recall, f_beta
	Results []Prediction       // сырые предсказания по каждому изображению
}

// MetricPoint — одно значение метрики на шаге (эпохе).
type MetricPoint struct {
	Step  int
	Value float64
}

// FBeta считает F-beta по precision и recall; при нулевом знаменателе — 0.
func FBeta(precision, recall, beta float64) float64 {
	b2 := beta * beta
	denom := b2*precision + recall
	if denom == 0 {
		return 0
	}
	return (1 + b2) * precision * recall / denom
}

// SafeDiv — деление с нулевым запасным значением при нулевом знаменателе.
func SafeDiv(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return num / denom
}

// IsFinite сообщает, что значение не NaN и не бесконечность.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
