package entities

// QuorumRequiredWeight is the smallest counted weight that satisfies the
// quorum percentage, computed with integer ceiling so no float rounding can
// flip the threshold.
func QuorumRequiredWeight(eligibleWeight, quorumPercent int64) int64 {
	if eligibleWeight <= 0 || quorumPercent <= 0 {
		return 0
	}
	return (eligibleWeight*quorumPercent + 99) / 100
}
