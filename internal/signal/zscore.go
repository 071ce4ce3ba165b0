package signal

import "math"

// ZScorer converts a sample into a clipped robust z-score against a
// median/MAD pair.
type ZScorer struct {
	MadScale float64
	Epsilon  float64
	Clip     float64
}

// Score returns clamp((value-median)/(MadScale*mad), ±Clip). A MAD below
// Epsilon, or any non-finite intermediate, scores 0.
func (z ZScorer) Score(value, median, mad float64) float64 {
	if math.IsNaN(mad) || mad < z.Epsilon {
		return 0
	}
	score := (value - median) / (z.MadScale * mad)
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(-z.Clip, math.Min(z.Clip, score))
}
