// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	// OpStream is one streamed conversation turn.
	OpStream = "stream"

	// OpStorageSave is one conversation write to the local store.
	OpStorageSave = "storage_save"

	// OpArchivePush is one conversation push to the SurrealDB archive.
	OpArchivePush = "archive_push"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for streamed turns)
	TotalOutputTokens int64

	// Time to first token (only for streamed turns)
	TotalFirstToken time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Stream-only stats; zero for non-stream operations.
	TotalOutputTokens int64
	AvgFirstTokenMs   float64
}

// Snapshot represents the full statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Stream        *OperationSnapshot
	StorageSave   *OperationSnapshot
	ArchivePush   *OperationSnapshot
}

// Collector aggregates in-memory runtime statistics.
// All methods are safe for concurrent use.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold the write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordStream records one streamed turn: total duration, time until the
// first text chunk arrived, and the number of output tokens reported or
// approximated for the turn.
func (c *Collector) RecordStream(duration, firstToken time.Duration, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(OpStream)
	m.Count++
	m.TotalTime += duration
	m.TotalFirstToken += firstToken
	m.TotalOutputTokens += outputTokens

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:             m.Count,
		TotalTimeMs:       m.TotalTime.Milliseconds(),
		AvgTimeMs:         float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:         m.MinTime.Milliseconds(),
		MaxTimeMs:         m.MaxTime.Milliseconds(),
		TotalOutputTokens: m.TotalOutputTokens,
		AvgFirstTokenMs:   float64(m.TotalFirstToken.Milliseconds()) / float64(m.Count),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Stream:        snapshotOp(c.ops[OpStream]),
		StorageSave:   snapshotOp(c.ops[OpStorageSave]),
		ArchivePush:   snapshotOp(c.ops[OpArchivePush]),
	}
}
