package timing

import (
	"sync"
	"time"
)

// DefaultSampleLimit is the number of recent durations kept per stage.
const DefaultSampleLimit = 64

// stageStats keeps a bounded ring of recent samples plus running totals,
// so a tracker shared across any number of tiles holds constant memory.
type stageStats struct {
	recent []time.Duration
	next   int
	count  int64
	total  time.Duration
}

func (s *stageStats) add(d time.Duration, limit int) {
	s.count++
	s.total += d
	if len(s.recent) < limit {
		s.recent = append(s.recent, d)
		return
	}
	s.recent[s.next] = d
	s.next = (s.next + 1) % limit
}

// ordered returns the retained samples oldest first.
func (s *stageStats) ordered() []time.Duration {
	result := make([]time.Duration, 0, len(s.recent))
	result = append(result, s.recent[s.next:]...)
	return append(result, s.recent[:s.next]...)
}

// Tracker accumulates durations per named stage. It is safe for
// concurrent use.
type Tracker struct {
	stages  map[string]*stageStats
	limit   int
	mu      sync.RWMutex
	enabled bool
	now     func() time.Time
}

func NewTracker() *Tracker {
	return NewTrackerWithLimit(DefaultSampleLimit)
}

// NewTrackerWithLimit keeps at most limit recent samples per stage; limit < 1 means 1.
func NewTrackerWithLimit(limit int) *Tracker {
	return &Tracker{
		stages:  make(map[string]*stageStats),
		limit:   max(limit, 1),
		enabled: true,
		now:     time.Now,
	}
}

// Start begins timing stage and returns the function that records it.
func (tt *Tracker) Start(stage string) func() time.Duration {
	tt.mu.RLock()
	enabled := tt.enabled
	tt.mu.RUnlock()

	if !enabled {
		return func() time.Duration { return 0 }
	}

	start := tt.now()
	var once sync.Once
	var duration time.Duration

	return func() time.Duration {
		once.Do(func() {
			duration = tt.now().Sub(start)

			tt.mu.Lock()
			stats, ok := tt.stages[stage]
			if !ok {
				stats = &stageStats{}
				tt.stages[stage] = stats
			}
			stats.add(duration, tt.limit)
			tt.mu.Unlock()
		})
		return duration
	}
}

// GetTimings returns the most recent samples of stage, oldest first.
func (tt *Tracker) GetTimings(stage string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	stats, ok := tt.stages[stage]
	if !ok {
		return nil
	}
	return stats.ordered()
}

func (tt *Tracker) GetAllTimings() map[string][]time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	result := make(map[string][]time.Duration, len(tt.stages))
	for stage, stats := range tt.stages {
		result[stage] = stats.ordered()
	}
	return result
}

// Count reports how many times stage has been recorded since the last reset.
func (tt *Tracker) Count(stage string) int64 {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	if stats, ok := tt.stages[stage]; ok {
		return stats.count
	}
	return 0
}

// GetAverageTime averages every recorded sample, not only the retained ones.
func (tt *Tracker) GetAverageTime(stage string) time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	stats, ok := tt.stages[stage]
	if !ok || stats.count == 0 {
		return 0
	}
	return stats.total / time.Duration(stats.count)
}

func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}

// Reset clears one stage, or every stage when stage is empty.
func (tt *Tracker) Reset(stage string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if stage == "" {
		tt.stages = make(map[string]*stageStats)
	} else {
		delete(tt.stages, stage)
	}
}
