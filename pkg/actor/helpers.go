package actor

import (
	"context"
	"fmt"

	"github.com/lwmacct/251215-go-pkg-flow/pkg/chanx"
)

// ═══════════════════════════════════════════════════════════════════════════
// 链接
// ═══════════════════════════════════════════════════════════════════════════

// Link 把 up 的输出接到 down 的输入
//
// 在 up 的控制通道上排入一条订阅命令，携带 down 数据发送端的克隆。
// 调用是异步的：命令生效前 up 产生的输出不会到达 down。
// 同一调用方的多条命令按入队顺序生效；需要确认生效时使用 Ref.Sync。
//
// 运行时不禁止成环，但环上的数据流必须由调用方保证有界。
func Link[A, B, C any](up *Ref[A, B], down *Ref[B, C]) error {
	return LinkContext(context.Background(), up, down)
}

// LinkContext 带 context 的 Link，控制通道满时可取消
func LinkContext[A, B, C any](ctx context.Context, up *Ref[A, B], down *Ref[B, C]) error {
	if down.data.Closed() {
		return fmt.Errorf("link %s -> %s: %w", up.name, down.name, ErrRefClosed)
	}
	return subscribe(ctx, up, down.data.Clone())
}

// LinkToSink 把 up 的输出接到外部汇通道
// sink 会被克隆，调用方仍需自行 Close 自己持有的 sink。
// sink 应由 chanx.New 创建；有界 sink 写满时会阻塞 up 的循环。
func LinkToSink[A, B any](up *Ref[A, B], sink *chanx.Sender[B]) error {
	return LinkToSinkContext(context.Background(), up, sink)
}

// LinkToSinkContext 带 context 的 LinkToSink
func LinkToSinkContext[A, B any](ctx context.Context, up *Ref[A, B], sink *chanx.Sender[B]) error {
	if sink.Closed() {
		return fmt.Errorf("link %s -> sink: %w", up.name, chanx.ErrClosed)
	}
	return subscribe(ctx, up, sink.Clone())
}

// subscribe 投递订阅命令，失败时释放已克隆的发送端
func subscribe[A, B any](ctx context.Context, up *Ref[A, B], sink *chanx.Sender[B]) error {
	if err := up.control.SendContext(ctx, &addSubscriber[B]{sink: sink}); err != nil {
		sink.Close()
		return deliveryError(up.name, err)
	}
	return nil
}
