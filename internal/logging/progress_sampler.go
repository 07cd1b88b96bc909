package logging

import "strings"

// ProgressSampler decides which workflow progress updates deserve an info
// level log line. Every update is still pushed remotely; the sampler only
// keeps long pipelines from flooding the console. It emits when the step id
// changes or the percent crosses a bucket boundary (default 10%).
type ProgressSampler struct {
	bucketSize float64
	lastStep   string
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket size.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether the update for stepID at percent should be
// logged at info level.
func (s *ProgressSampler) ShouldLog(stepID string, percent float64) bool {
	if s == nil {
		return true
	}
	stepID = strings.TrimSpace(stepID)
	emit := false
	if stepID != "" && stepID != s.lastStep {
		s.lastStep = stepID
		emit = true
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}
