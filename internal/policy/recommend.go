package policy

// Recommendation is the three-tier verdict shared by the policy engine and
// the command risk analyzer
type Recommendation string

const (
	RecommendAllow Recommendation = "allow"
	RecommendWarn  Recommendation = "warn"
	RecommendBlock Recommendation = "block"
)

// Default thresholds
const (
	DefaultWarnThreshold  = 0.6
	DefaultBlockThreshold = 0.9
)

// Recommend maps score onto allow/warn/block. Both bounds are inclusive.
func Recommend(score, warn, block float64) Recommendation {
	switch {
	case score >= block:
		return RecommendBlock
	case score >= warn:
		return RecommendWarn
	default:
		return RecommendAllow
	}
}
