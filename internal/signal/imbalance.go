package signal

// Imbalance returns (bid-ask)/(bid+ask) in [-1,1]. Negative sizes count as
// zero and an empty book yields 0. The sum is taken in uint64 so it cannot
// overflow for any pair of int64 sizes.
func Imbalance(bidSize, askSize int64) float64 {
	bid := max(bidSize, 0)
	ask := max(askSize, 0)
	total := uint64(bid) + uint64(ask)
	if total == 0 {
		return 0
	}
	return (float64(bid) - float64(ask)) / float64(total)
}
