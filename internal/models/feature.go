package models

// Feature is one of the AI operations exposed by the gateway.
type Feature string

const (
	FeatureExplain   Feature = "explain"
	FeatureGenerate  Feature = "generate"
	FeatureAnalyze   Feature = "analyze"
	FeatureSummarize Feature = "summarize"
)

// AllFeatures lists every supported feature in display order.
var AllFeatures = []Feature{FeatureExplain, FeatureGenerate, FeatureAnalyze, FeatureSummarize}

// IsValid reports whether f is a supported feature.
func (f Feature) IsValid() bool {
	for _, known := range AllFeatures {
		if f == known {
			return true
		}
	}
	return false
}
