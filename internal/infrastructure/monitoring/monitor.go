package monitoring

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// Metrics 指标收集器
type Metrics struct {
	// 消息处理
	MessagesTotal    uint64
	KnowledgeReplies uint64
	GeneratedReplies uint64
	FallbackReplies  uint64
	DegradedTotal    uint64

	// 延迟 (纳秒)
	LatencySum   uint64
	LatencyCount uint64

	// 模型调用
	ModelCallsTotal  uint64
	ModelCallsFailed uint64
	ModelTokensUsed  uint64

	// 启动时间
	StartTime time.Time
}

// Monitor 性能监控器
type Monitor struct {
	metrics *Metrics
	logger  *zap.Logger

	mu                  sync.RWMutex
	persistenceFailures map[string]uint64 // step → count

	// 历史数据
	history      []MetricsSnapshot
	historyLimit int
}

// MetricsSnapshot 指标快照
type MetricsSnapshot struct {
	Timestamp         time.Time `json:"timestamp"`
	MessagesPerSecond float64   `json:"messages_per_second"`
	AvgLatencyMs      float64   `json:"avg_latency_ms"`
	DegradedTotal     uint64    `json:"degraded_total"`
	MemoryMB          float64   `json:"memory_mb"`
	Goroutines        int       `json:"goroutines"`
}

// NewMonitor 创建监控器
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		metrics: &Metrics{
			StartTime: time.Now(),
		},
		logger:              logger.With(zap.String("component", "monitor")),
		persistenceFailures: make(map[string]uint64),
		history:             make([]MetricsSnapshot, 0, 100),
		historyLimit:        100,
	}
}

// RecordPipeline 记录一次消息处理结果
func (m *Monitor) RecordPipeline(source valueobject.ResponseSource, degraded bool, latency time.Duration) {
	atomic.AddUint64(&m.metrics.MessagesTotal, 1)
	switch source {
	case valueobject.SourceKnowledgeBase:
		atomic.AddUint64(&m.metrics.KnowledgeReplies, 1)
	case valueobject.SourceAIGenerated:
		atomic.AddUint64(&m.metrics.GeneratedReplies, 1)
	default:
		atomic.AddUint64(&m.metrics.FallbackReplies, 1)
	}
	if degraded {
		atomic.AddUint64(&m.metrics.DegradedTotal, 1)
	}
	atomic.AddUint64(&m.metrics.LatencySum, uint64(latency.Nanoseconds()))
	atomic.AddUint64(&m.metrics.LatencyCount, 1)
}

// RecordPersistenceFailure 记录一次持久化失败
func (m *Monitor) RecordPersistenceFailure(step string) {
	m.mu.Lock()
	m.persistenceFailures[step]++
	m.mu.Unlock()
}

// RecordModelCall 记录一次模型调用
func (m *Monitor) RecordModelCall(tokens int, err error) {
	atomic.AddUint64(&m.metrics.ModelCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.metrics.ModelCallsFailed, 1)
		return
	}
	if tokens > 0 {
		atomic.AddUint64(&m.metrics.ModelTokensUsed, uint64(tokens))
	}
}

func (m *Monitor) avgLatencyMs() float64 {
	if count := atomic.LoadUint64(&m.metrics.LatencyCount); count > 0 {
		return float64(atomic.LoadUint64(&m.metrics.LatencySum)) / float64(count) / 1e6
	}
	return 0
}

// PersistenceFailures 返回各步骤的持久化失败次数（按步骤名排序）
func (m *Monitor) PersistenceFailures() []StepCount {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StepCount, 0, len(m.persistenceFailures))
	for step, n := range m.persistenceFailures {
		out = append(out, StepCount{Step: step, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// StepCount 单个步骤的计数
type StepCount struct {
	Step  string `json:"step"`
	Count uint64 `json:"count"`
}

// GetStats 获取当前统计
func (m *Monitor) GetStats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var persistence uint64
	for _, sc := range m.PersistenceFailures() {
		persistence += sc.Count
	}

	return map[string]interface{}{
		"uptime_seconds":       time.Since(m.metrics.StartTime).Seconds(),
		"messages_total":       atomic.LoadUint64(&m.metrics.MessagesTotal),
		"replies_knowledge":    atomic.LoadUint64(&m.metrics.KnowledgeReplies),
		"replies_generated":    atomic.LoadUint64(&m.metrics.GeneratedReplies),
		"replies_fallback":     atomic.LoadUint64(&m.metrics.FallbackReplies),
		"degraded_total":       atomic.LoadUint64(&m.metrics.DegradedTotal),
		"persistence_failures": persistence,
		"model_calls_total":    atomic.LoadUint64(&m.metrics.ModelCallsTotal),
		"model_calls_failed":   atomic.LoadUint64(&m.metrics.ModelCallsFailed),
		"model_tokens_used":    atomic.LoadUint64(&m.metrics.ModelTokensUsed),
		"avg_latency_ms":       m.avgLatencyMs(),
		"memory_mb":            float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":           runtime.NumGoroutine(),
	}
}

// Snapshot 创建快照并保存
func (m *Monitor) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.metrics.StartTime).Seconds()
	snapshot := MetricsSnapshot{
		Timestamp:         time.Now(),
		MessagesPerSecond: float64(atomic.LoadUint64(&m.metrics.MessagesTotal)) / uptime,
		AvgLatencyMs:      m.avgLatencyMs(),
		DegradedTotal:     atomic.LoadUint64(&m.metrics.DegradedTotal),
		MemoryMB:          float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:        runtime.NumGoroutine(),
	}

	m.mu.Lock()
	m.history = append(m.history, snapshot)
	if len(m.history) > m.historyLimit {
		m.history = m.history[1:]
	}
	m.mu.Unlock()

	return snapshot
}

// GetHistory 获取历史快照
func (m *Monitor) GetHistory() []MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]MetricsSnapshot, len(m.history))
	copy(result, m.history)
	return result
}

// StartCollector 启动定期收集，直到 ctx 结束
func (m *Monitor) StartCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := m.Snapshot()
			m.logger.Debug("Metrics snapshot",
				zap.Float64("avg_latency_ms", snap.AvgLatencyMs),
				zap.Uint64("degraded_total", snap.DegradedTotal),
			)
		}
	}
}

// DashboardData 仪表盘数据
type DashboardData struct {
	Stats   map[string]interface{} `json:"stats"`
	History []MetricsSnapshot      `json:"history"`
}

// GetDashboardData 获取仪表盘数据
func (m *Monitor) GetDashboardData() *DashboardData {
	return &DashboardData{
		Stats:   m.GetStats(),
		History: m.GetHistory(),
	}
}
