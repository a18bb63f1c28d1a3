package logging

import (
	"strings"
	"sync"
)

// ProgressSampler suppresses repetitive progress logs per entity while
// keeping a line whenever the stage changes or the percentage crosses into a
// new bucket.
type ProgressSampler struct {
	bucketSize float64
	mu         sync.Mutex
	entries    map[string]progressMark
}

type progressMark struct {
	stage  string
	bucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the stage changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, entries: make(map[string]progressMark)}
}

// ShouldLog reports whether a progress event for key should be logged. A
// negative percent means unknown and only a stage change emits.
func (s *ProgressSampler) ShouldLog(key, stage string, percent float64) bool {
	if s == nil {
		return true
	}
	stage = strings.TrimSpace(stage)

	s.mu.Lock()
	defer s.mu.Unlock()
	mark, ok := s.entries[key]
	if !ok {
		mark = progressMark{bucket: -1}
	}
	emit := false
	if stage != "" && stage != mark.stage {
		mark.stage = stage
		mark.bucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		if bucket := int(percent / s.bucketSize); bucket > mark.bucket {
			mark.bucket = bucket
			emit = true
		}
	}
	s.entries[key] = mark
	return emit
}

// Forget drops the state for key, typically once its pipeline finishes.
func (s *ProgressSampler) Forget(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}
