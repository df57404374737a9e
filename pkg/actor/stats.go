package actor

import (
	"sync"
	"sync/atomic"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// 节点统计信息
// ═══════════════════════════════════════════════════════════════════════════

// NodeStats 节点运行时统计信息
type NodeStats struct {
	// 消息计数
	MessagesReceived int64 // 从数据通道取出的消息数
	MessagesHandled  int64 // 转换成功的消息数
	Delivered        int64 // 成功投递给订阅者的次数
	Pruned           int64 // 因对端断开被移除的订阅者数
	Discarded        int64 // 终止时丢弃的缓冲消息数
	Panics           int64 // 转换 panic 次数

	// Subscribers 当前订阅者数
	Subscribers int64

	// 延迟统计
	TotalLatency   time.Duration
	AverageLatency time.Duration
	MaxLatency     time.Duration
	MinLatency     time.Duration

	// 时间戳
	StartedAt     time.Time
	StoppedAt     time.Time
	LastMessageAt time.Time
	LastPanicAt   time.Time

	// LastError 最后一个错误
	LastError error
}

// Clone 克隆统计信息
func (s *NodeStats) Clone() *NodeStats {
	c := *s
	return &c
}

// StatsRecorder 统计记录器
// 除 Stats 外的方法只会被节点自己的循环调用
type StatsRecorder interface {
	RecordStarted()
	RecordReceived()
	RecordHandled(latency time.Duration)
	RecordDelivered()
	RecordPruned()
	RecordDiscarded(n int)
	RecordPanic(err error)
	RecordSubscribers(n int)
	RecordStopped()

	// Stats 获取统计快照，可在任意 goroutine 调用
	Stats() *NodeStats
}

// ═══════════════════════════════════════════════════════════════════════════
// StatsCollector 统计收集器
// ═══════════════════════════════════════════════════════════════════════════

// StatsCollector 线程安全的统计收集器，记录完整的延迟分布
type StatsCollector struct {
	mu    sync.RWMutex
	stats NodeStats
}

// NewStatsCollector 创建统计收集器
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		stats: NodeStats{
			MinLatency: time.Duration(1<<63 - 1), // 最大值，确保第一次会被更新
		},
	}
}

// RecordStarted 记录启动
func (c *StatsCollector) RecordStarted() {
	c.mu.Lock()
	c.stats.StartedAt = time.Now()
	c.mu.Unlock()
}

// RecordReceived 记录取出消息
func (c *StatsCollector) RecordReceived() {
	c.mu.Lock()
	c.stats.MessagesReceived++
	c.stats.LastMessageAt = time.Now()
	c.mu.Unlock()
}

// RecordHandled 记录转换完成
func (c *StatsCollector) RecordHandled(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.MessagesHandled++
	c.stats.TotalLatency += latency
	c.stats.AverageLatency = c.stats.TotalLatency / time.Duration(c.stats.MessagesHandled)

	if latency > c.stats.MaxLatency {
		c.stats.MaxLatency = latency
	}
	if latency < c.stats.MinLatency {
		c.stats.MinLatency = latency
	}
}

// RecordDelivered 记录一次成功投递
func (c *StatsCollector) RecordDelivered() {
	c.mu.Lock()
	c.stats.Delivered++
	c.mu.Unlock()
}

// RecordPruned 记录移除一个订阅者
func (c *StatsCollector) RecordPruned() {
	c.mu.Lock()
	c.stats.Pruned++
	c.mu.Unlock()
}

// RecordDiscarded 记录丢弃的缓冲消息
func (c *StatsCollector) RecordDiscarded(n int) {
	c.mu.Lock()
	c.stats.Discarded += int64(n)
	c.mu.Unlock()
}

// RecordPanic 记录转换 panic
func (c *StatsCollector) RecordPanic(err error) {
	c.mu.Lock()
	c.stats.Panics++
	c.stats.LastError = err
	c.stats.LastPanicAt = time.Now()
	c.mu.Unlock()
}

// RecordSubscribers 记录当前订阅者数
func (c *StatsCollector) RecordSubscribers(n int) {
	c.mu.Lock()
	c.stats.Subscribers = int64(n)
	c.mu.Unlock()
}

// RecordStopped 记录停止
func (c *StatsCollector) RecordStopped() {
	c.mu.Lock()
	c.stats.StoppedAt = time.Now()
	c.mu.Unlock()
}

// Stats 获取统计快照
func (c *StatsCollector) Stats() *NodeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats.Clone()
	if s.MessagesHandled == 0 {
		s.MinLatency = 0
	}
	return s
}

// Reset 重置统计
func (c *StatsCollector) Reset() {
	c.mu.Lock()
	c.stats = NodeStats{
		StartedAt:  time.Now(),
		MinLatency: time.Duration(1<<63 - 1),
	}
	c.mu.Unlock()
}

// ═══════════════════════════════════════════════════════════════════════════
// 原子统计收集器（更高性能版本）
// ═══════════════════════════════════════════════════════════════════════════

// AtomicStatsCollector 使用原子操作的统计收集器
// 节点默认使用它，不记录最大/最小延迟
type AtomicStatsCollector struct {
	messagesReceived atomic.Int64
	messagesHandled  atomic.Int64
	delivered        atomic.Int64
	pruned           atomic.Int64
	discarded        atomic.Int64
	panics           atomic.Int64
	subscribers      atomic.Int64
	totalLatencyNs   atomic.Int64

	// 非原子字段，需要锁保护
	mu            sync.RWMutex
	startedAt     time.Time
	stoppedAt     time.Time
	lastMessageAt time.Time
	lastPanicAt   time.Time
	lastError     error
}

// NewAtomicStatsCollector 创建原子统计收集器
func NewAtomicStatsCollector() *AtomicStatsCollector {
	return &AtomicStatsCollector{}
}

// RecordStarted 记录启动
func (c *AtomicStatsCollector) RecordStarted() {
	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()
}

// RecordReceived 记录取出消息
func (c *AtomicStatsCollector) RecordReceived() {
	c.messagesReceived.Add(1)
	c.mu.Lock()
	c.lastMessageAt = time.Now()
	c.mu.Unlock()
}

// RecordHandled 记录转换完成
func (c *AtomicStatsCollector) RecordHandled(latency time.Duration) {
	c.messagesHandled.Add(1)
	c.totalLatencyNs.Add(int64(latency))
}

// RecordDelivered 记录一次成功投递
func (c *AtomicStatsCollector) RecordDelivered() {
	c.delivered.Add(1)
}

// RecordPruned 记录移除一个订阅者
func (c *AtomicStatsCollector) RecordPruned() {
	c.pruned.Add(1)
}

// RecordDiscarded 记录丢弃的缓冲消息
func (c *AtomicStatsCollector) RecordDiscarded(n int) {
	c.discarded.Add(int64(n))
}

// RecordPanic 记录转换 panic
func (c *AtomicStatsCollector) RecordPanic(err error) {
	c.panics.Add(1)
	c.mu.Lock()
	c.lastError = err
	c.lastPanicAt = time.Now()
	c.mu.Unlock()
}

// RecordSubscribers 记录当前订阅者数
func (c *AtomicStatsCollector) RecordSubscribers(n int) {
	c.subscribers.Store(int64(n))
}

// RecordStopped 记录停止
func (c *AtomicStatsCollector) RecordStopped() {
	c.mu.Lock()
	c.stoppedAt = time.Now()
	c.mu.Unlock()
}

// Stats 获取统计快照
func (c *AtomicStatsCollector) Stats() *NodeStats {
	handled := c.messagesHandled.Load()
	totalLatency := time.Duration(c.totalLatencyNs.Load())

	var avgLatency time.Duration
	if handled > 0 {
		avgLatency = totalLatency / time.Duration(handled)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return &NodeStats{
		MessagesReceived: c.messagesReceived.Load(),
		MessagesHandled:  handled,
		Delivered:        c.delivered.Load(),
		Pruned:           c.pruned.Load(),
		Discarded:        c.discarded.Load(),
		Panics:           c.panics.Load(),
		Subscribers:      c.subscribers.Load(),
		TotalLatency:     totalLatency,
		AverageLatency:   avgLatency,
		StartedAt:        c.startedAt,
		StoppedAt:        c.stoppedAt,
		LastMessageAt:    c.lastMessageAt,
		LastPanicAt:      c.lastPanicAt,
		LastError:        c.lastError,
	}
}
