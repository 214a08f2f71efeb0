package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricOperation names what a counter measures
type MetricOperation string

const (
	OpPush    MetricOperation = "push"
	OpPop     MetricOperation = "pop"
	OpProcess MetricOperation = "process"
)

// LatencyStats accumulates durations
type LatencyStats struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func (s *LatencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if s.min == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

func (s *LatencyStats) average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return 0
	}
	return s.total / time.Duration(s.count)
}

// QueueMetrics counts queue operations
type QueueMetrics struct {
	pushed    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	errors    sync.Map // MetricOperation -> *atomic.Int64

	pushLatency    LatencyStats
	processLatency LatencyStats
}

// MetricsSnapshot is a point in time copy of QueueMetrics
type MetricsSnapshot struct {
	Pushed           int64            `json:"pushed"`
	Processed        int64            `json:"processed"`
	Failed           int64            `json:"failed"`
	Errors           map[string]int64 `json:"errors,omitempty"`
	AvgPushLatencyMs int64            `json:"avgPushLatencyMs"`
	AvgProcessMs     int64            `json:"avgProcessMs"`
}

// NewQueueMetrics creates an empty collector
func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{}
}

// RecordSuccess counts a successful operation
func (m *QueueMetrics) RecordSuccess(op MetricOperation) {
	switch op {
	case OpPush:
		m.pushed.Add(1)
	case OpProcess:
		m.processed.Add(1)
	}
}

// RecordError counts a failed operation
func (m *QueueMetrics) RecordError(op MetricOperation) {
	if op == OpProcess {
		m.failed.Add(1)
	}
	counter, _ := m.errors.LoadOrStore(op, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)
}

// RecordPushLatency records how long a push took
func (m *QueueMetrics) RecordPushLatency(d time.Duration) {
	m.pushLatency.record(d)
}

// RecordProcessingTime records how long a job took
func (m *QueueMetrics) RecordProcessingTime(d time.Duration) {
	m.processLatency.record(d)
}

// Snapshot copies the current counters
func (m *QueueMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Pushed:           m.pushed.Load(),
		Processed:        m.processed.Load(),
		Failed:           m.failed.Load(),
		AvgPushLatencyMs: m.pushLatency.average().Milliseconds(),
		AvgProcessMs:     m.processLatency.average().Milliseconds(),
	}
	m.errors.Range(func(key, value interface{}) bool {
		if s.Errors == nil {
			s.Errors = make(map[string]int64)
		}
		s.Errors[string(key.(MetricOperation))] = value.(*atomic.Int64).Load()
		return true
	})
	return s
}
