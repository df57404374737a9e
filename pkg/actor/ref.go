package actor

import (
	"context"
	"fmt"

	"github.com/lwmacct/251215-go-pkg-flow/pkg/chanx"
)

// Ref 节点句柄
// 外部代码与运行中节点交互的唯一方式，可任意 Clone 并在 goroutine 间共享。
// 句柄不再使用时应 Close，所有句柄和上游订阅都释放后节点自然退出。
type Ref[I, O any] struct {
	name    string
	data    *chanx.Sender[I]
	control *chanx.Sender[command]
}

// Name 返回节点名称
func (r *Ref[I, O]) Name() string {
	return r.name
}

// String 返回句柄的字符串表示
func (r *Ref[I, O]) String() string {
	return fmt.Sprintf("ref(%s)", r.name)
}

// Send 发送一条数据（从不阻塞）
// 节点已终止时返回 ErrTerminated
func (r *Ref[I, O]) Send(v I) error {
	return deliveryError(r.name, r.data.Send(v))
}

// Terminate 请求节点终止
// 节点在下一轮循环开始时退出，已缓冲的数据被丢弃。
// 节点已终止时返回 ErrTerminated，调用方可以忽略。
func (r *Ref[I, O]) Terminate() error {
	return r.TerminateContext(context.Background())
}

// TerminateContext 带 context 的 Terminate
// 控制通道满时等待，直到有空间或 ctx 取消
func (r *Ref[I, O]) TerminateContext(ctx context.Context) error {
	return deliveryError(r.name, r.control.SendContext(ctx, &terminate{}))
}

// Sync 等待此前入队的控制命令全部生效
//
// 链接是异步的，Link 返回时订阅可能尚未生效：
//
//	_ = actor.Link(a, b)
//	_ = a.Sync(ctx) // 此后 a 的输出一定会到达 b
func (r *Ref[I, O]) Sync(ctx context.Context) error {
	ack := make(chan error, 1)
	if err := r.control.SendContext(ctx, &syncBarrier{ack: ack}); err != nil {
		return deliveryError(r.name, err)
	}

	select {
	case err := <-ack:
		if err != nil {
			return fmt.Errorf("node %s: %w", r.name, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clone 复制一个指向同一节点的独立句柄
func (r *Ref[I, O]) Clone() *Ref[I, O] {
	return &Ref[I, O]{
		name:    r.name,
		data:    r.data.Clone(),
		control: r.control.Clone(),
	}
}

// Close 释放句柄（幂等）
// 释放后 Send 返回 ErrRefClosed
func (r *Ref[I, O]) Close() {
	r.data.Close()
	r.control.Close()
}
