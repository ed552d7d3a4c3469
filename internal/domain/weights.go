package domain

import "math"

// RankWeights maps each scoring factor to a weight in [0,1] summing to
// 1.0 within weightTolerance.
type RankWeights struct {
	Title     float64 `json:"title"`
	Abstract  float64 `json:"abstract"`
	Citations float64 `json:"citations"`
	Recency   float64 `json:"recency"`
}

const weightTolerance = 1e-6

// Sum returns the total of the four weights.
func (w RankWeights) Sum() float64 {
	return w.Title + w.Abstract + w.Citations + w.Recency
}

// Valid reports whether the weights sum to 1.0 within tolerance.
func (w RankWeights) Valid() bool {
	return math.Abs(w.Sum()-1.0) <= weightTolerance
}

// Intent is a query-intent preset name, selecting a RankWeights preset.
type Intent string

const (
	IntentReview   Intent = "review"
	IntentRecent   Intent = "recent"
	IntentMethod   Intent = "method"
	IntentDataset  Intent = "dataset"
	IntentBalanced Intent = "balanced"
)

// WeightsForIntent returns the fixed preset weights for an intent, per
// spec §4.4. Every preset sums to 1.0 by construction.
func WeightsForIntent(intent Intent) RankWeights {
	switch intent {
	case IntentReview:
		return RankWeights{Title: 0.30, Abstract: 0.20, Citations: 0.40, Recency: 0.10}
	case IntentRecent:
		return RankWeights{Title: 0.35, Abstract: 0.25, Citations: 0.05, Recency: 0.35}
	case IntentMethod:
		return RankWeights{Title: 0.30, Abstract: 0.30, Citations: 0.30, Recency: 0.10}
	case IntentDataset:
		return RankWeights{Title: 0.40, Abstract: 0.40, Citations: 0.05, Recency: 0.15}
	default:
		return RankWeights{Title: 0.40, Abstract: 0.30, Citations: 0.15, Recency: 0.15}
	}
}
