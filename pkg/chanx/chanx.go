// Package chanx 提供带断开语义的多生产者单消费者通道
//
// Go 原生 channel 无法得知"所有发送者都已释放"，向已关闭的 channel 发送还会 panic。
// chanx 用引用计数的 [Sender] 和唯一的 [Receiver] 弥补这两点：
//   - 最后一个 Sender 释放且队列为空时，Receiver 收到 [ErrDisconnected]
//   - Receiver 关闭后，任何 Send 都返回 [ErrDisconnected]，而不是 panic
//
// [New] 创建无界队列（数据面），[NewBounded] 创建有界队列（控制面）。
package chanx

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/gammazero/deque"
)

var (
	// ErrEmpty 队列暂无数据，但仍有发送者
	ErrEmpty = errors.New("chanx: empty")
	// ErrDisconnected 对端已断开
	// 发送时表示接收端已关闭；接收时表示发送者全部释放且队列已空
	ErrDisconnected = errors.New("chanx: disconnected")
	// ErrClosed 当前 Sender 已经释放
	ErrClosed = errors.New("chanx: sender closed")
	// ErrFull 有界队列已满（仅 TrySend）
	ErrFull = errors.New("chanx: full")
)

// queue 两端共享的内部状态
type queue[T any] struct {
	mu       sync.Mutex
	items    deque.Deque[T]
	capacity int // 0 表示无界
	senders  int
	closed   bool

	// ready 容量为 1 的唤醒信号，每次入队、最后一个发送者释放、关闭时触发
	ready chan struct{}
	// space 有界队列腾出空间时关闭并替换，广播给所有阻塞的发送者
	space chan struct{}
}

func newQueue[T any](capacity int) *queue[T] {
	return &queue[T]{
		capacity: capacity,
		senders:  1,
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}),
	}
}

func (q *queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// wakeSenders 必须持锁调用
func (q *queue[T]) wakeSenders() {
	if q.capacity == 0 {
		return
	}
	close(q.space)
	q.space = make(chan struct{})
}

// New 创建无界通道，返回第一个发送端和唯一的接收端
func New[T any]() (*Sender[T], *Receiver[T]) {
	q := newQueue[T](0)
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// NewBounded 创建有界通道
// capacity 小于 1 时按 1 处理
func NewBounded[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		capacity = 1
	}
	q := newQueue[T](capacity)
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// ═══════════════════════════════════════════════════════════════════════════
// Sender
// ═══════════════════════════════════════════════════════════════════════════

// Sender 发送端
// 每个 Sender 持有队列的一个引用，用完必须 Close
type Sender[T any] struct {
	q        *queue[T]
	mu       sync.Mutex
	released bool
}

// Clone 复制一个独立的发送端
// 对已释放的 Sender 调用时返回同样已释放的 Sender
func (s *Sender[T]) Clone() *Sender[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return &Sender[T]{q: s.q, released: true}
	}

	s.q.mu.Lock()
	s.q.senders++
	s.q.mu.Unlock()
	return &Sender[T]{q: s.q}
}

// Close 释放当前发送端（幂等）
func (s *Sender[T]) Close() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	q := s.q
	q.mu.Lock()
	q.senders--
	last := q.senders == 0
	q.mu.Unlock()

	if last {
		q.notify()
	}
}

// Closed 当前 Sender 是否已释放
func (s *Sender[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Disconnected 接收端是否已关闭
func (s *Sender[T]) Disconnected() bool {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	return s.q.closed
}

// Send 发送一个值
// 无界队列从不阻塞；有界队列在满时阻塞，直到有空间或接收端关闭
func (s *Sender[T]) Send(v T) error {
	return s.SendContext(context.Background(), v)
}

// SendContext 带 context 的发送，仅在有界队列满时才会等待 ctx
func (s *Sender[T]) SendContext(ctx context.Context, v T) error {
	if s.Closed() {
		return ErrClosed
	}

	q := s.q
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrDisconnected
		}
		if q.capacity == 0 || q.items.Len() < q.capacity {
			q.items.PushBack(v)
			q.mu.Unlock()
			q.notify()
			return nil
		}
		space := q.space
		q.mu.Unlock()

		select {
		case <-space:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TrySend 非阻塞发送
// 有界队列已满时返回 ErrFull
func (s *Sender[T]) TrySend(v T) error {
	if s.Closed() {
		return ErrClosed
	}

	q := s.q
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrDisconnected
	}
	if q.capacity > 0 && q.items.Len() >= q.capacity {
		q.mu.Unlock()
		return ErrFull
	}
	q.items.PushBack(v)
	q.mu.Unlock()
	q.notify()
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Receiver
// ═══════════════════════════════════════════════════════════════════════════

// Receiver 接收端，只允许一个消费者使用
type Receiver[T any] struct {
	q *queue[T]
}

// TryRecv 非阻塞接收
// 队列为空时返回 ErrEmpty；发送者全部释放且队列为空时返回 ErrDisconnected
func (r *Receiver[T]) TryRecv() (T, error) {
	var zero T

	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() > 0 {
		v := q.items.PopFront()
		q.wakeSenders()
		return v, nil
	}
	if q.closed || q.senders == 0 {
		return zero, ErrDisconnected
	}
	return zero, ErrEmpty
}

// Recv 阻塞接收，直到有数据、断开或 ctx 取消
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	for {
		v, err := r.TryRecv()
		if !errors.Is(err, ErrEmpty) {
			return v, err
		}

		select {
		case <-r.q.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// All 返回阻塞迭代器，直到通道断开为止
//
//	for v := range rx.All() {
//		fmt.Println(v)
//	}
func (r *Receiver[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := r.Recv(context.Background())
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Ready 返回唤醒信号
// 信号只表示"状态可能变化"，收到后应重新 TryRecv
func (r *Receiver[T]) Ready() <-chan struct{} {
	return r.q.ready
}

// Len 当前缓冲的数量
func (r *Receiver[T]) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return r.q.items.Len()
}

// Close 关闭接收端，返回被丢弃的缓冲数据
// 关闭后所有 Send 返回 ErrDisconnected，阻塞中的有界发送者会被唤醒
func (r *Receiver[T]) Close() []T {
	q := r.q
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true

	dropped := make([]T, 0, q.items.Len())
	for q.items.Len() > 0 {
		dropped = append(dropped, q.items.PopFront())
	}
	if q.capacity > 0 {
		close(q.space)
	}
	q.mu.Unlock()

	q.notify()
	return dropped
}
