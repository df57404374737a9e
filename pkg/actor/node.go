package actor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gopkg.in/tomb.v2"

	"github.com/lwmacct/251215-go-pkg-flow/pkg/chanx"
)

// Node 节点
// 持有数据通道和控制通道的接收端、转换状态以及订阅者列表。
// 订阅者列表和转换状态只被节点自己的循环读写，无需加锁。
type Node[I, O any] struct {
	name      string
	transform Transform[I, O]

	// 启动前持有的第一对发送端，Spawn 时移交给 Ref
	dataTx    *chanx.Sender[I]
	controlTx *chanx.Sender[command]

	data    *chanx.Receiver[I]
	control *chanx.Receiver[command]

	subscribers []*chanx.Sender[O]

	busyPoll     bool
	panicHandler func(node string, input any, err any)
	stats        StatsRecorder
	logger       *slog.Logger

	state   atomic.Int32
	spawned atomic.Bool
	tomb    tomb.Tomb
}

// New 创建节点（Created 状态）
func New[I, O any](t Transform[I, O], props *Props) *Node[I, O] {
	if props == nil {
		props = DefaultProps("")
	}

	name := props.Name
	if name == "" {
		name = uuid.NewString()
	}

	logger := props.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stats := props.Stats
	if stats == nil {
		stats = NewAtomicStatsCollector()
	}

	dataTx, data := chanx.New[I]()
	controlTx, control := chanx.NewBounded[command](props.ControlCapacity)

	return &Node[I, O]{
		name:         name,
		transform:    t,
		dataTx:       dataTx,
		controlTx:    controlTx,
		data:         data,
		control:      control,
		busyPoll:     props.BusyPoll,
		panicHandler: props.PanicHandler,
		stats:        stats,
		logger:       logger.With("node", name),
	}
}

// Spawn 创建并启动节点，返回它的第一个句柄
func Spawn[I, O any](t Transform[I, O], props *Props) *Ref[I, O] {
	ref, _ := New(t, props).Spawn()
	return ref
}

// SpawnFunc 用普通函数创建并启动节点
func SpawnFunc[I, O any](f func(I) O, props *Props) *Ref[I, O] {
	return Spawn[I, O](Func[I, O](f), props)
}

// Spawn 启动节点循环，立即返回句柄，不等待循环开始处理
// 每个节点只能启动一次
func (n *Node[I, O]) Spawn() (*Ref[I, O], error) {
	if !n.spawned.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("node %s: %w", n.name, ErrAlreadySpawned)
	}

	ref := &Ref[I, O]{
		name:    n.name,
		data:    n.dataTx,
		control: n.controlTx,
	}
	n.dataTx, n.controlTx = nil, nil

	n.state.Store(int32(StateRunning))
	n.stats.RecordStarted()
	n.tomb.Go(n.run)

	n.logger.Debug("node spawned", "busy_poll", n.busyPoll)
	return ref, nil
}

// Name 返回节点名称
func (n *Node[I, O]) Name() string {
	return n.name
}

// State 返回当前生命周期状态
func (n *Node[I, O]) State() State {
	return State(n.state.Load())
}

// Done 循环退出且资源释放后关闭
func (n *Node[I, O]) Done() <-chan struct{} {
	return n.tomb.Dead()
}

// Wait 等待循环退出
// 正常退出返回 nil，转换 panic 时返回 *TransformPanicError
func (n *Node[I, O]) Wait() error {
	return n.tomb.Wait()
}

// Stats 获取统计快照
func (n *Node[I, O]) Stats() *NodeStats {
	return n.stats.Stats()
}

// run 节点执行循环
//
// 每轮先非阻塞排空控制通道，再尝试取一条数据；
// 数据通道为空时等待任一通道就绪后回到第一步，因此控制命令总是先于下一条数据生效。
func (n *Node[I, O]) run() (err error) {
	defer func() {
		n.teardown(err)
	}()

	for {
		if n.drainControl() {
			return nil
		}

		in, rerr := n.data.TryRecv()
		if rerr != nil {
			if errors.Is(rerr, chanx.ErrDisconnected) {
				n.logger.Debug("data channel disconnected")
				return nil
			}
			n.idle()
			continue
		}

		out, aerr := n.apply(in)
		if aerr != nil {
			return aerr
		}
		n.fanOut(out)
	}
}

// drainControl 排空控制通道，返回是否需要退出
// 控制通道断开不是退出条件，只表示不会再有新命令
func (n *Node[I, O]) drainControl() bool {
	for {
		cmd, err := n.control.TryRecv()
		if err != nil {
			return false
		}

		switch c := cmd.(type) {
		case *addSubscriber[O]:
			n.subscribers = append(n.subscribers, c.sink)
			n.stats.RecordSubscribers(len(n.subscribers))
			n.logger.Debug("subscriber added", "subscribers", len(n.subscribers))

		case *terminate:
			n.logger.Debug("terminate received")
			return true

		case *syncBarrier:
			c.ack <- nil

		default:
			n.logger.Warn("unknown control command", "kind", cmd.Kind())
		}
	}
}

// idle 数据通道为空时的等待策略
func (n *Node[I, O]) idle() {
	if n.busyPoll {
		runtime.Gosched()
		return
	}

	select {
	case <-n.control.Ready():
	case <-n.data.Ready():
	}
}

// apply 调用转换，panic 转为 *TransformPanicError
func (n *Node[I, O]) apply(in I) (out O, err error) {
	n.stats.RecordReceived()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			perr := &TransformPanicError{Node: n.name, Value: r, Stack: stack}
			n.stats.RecordPanic(perr)

			if n.panicHandler != nil {
				n.panicHandler(n.name, in, r)
			} else {
				n.logger.Error("panic in transform",
					"error", r,
					"stack", string(stack))
			}
			err = perr
		}
	}()

	out = n.transform.Apply(in)
	n.stats.RecordHandled(time.Since(start))
	return out, nil
}

// fanOut 按订阅顺序投递输出，发送失败的订阅者被永久移除
func (n *Node[I, O]) fanOut(out O) {
	live := n.subscribers[:0]
	for _, sub := range n.subscribers {
		if err := sub.Send(out); err != nil {
			sub.Close()
			n.stats.RecordPruned()
			n.logger.Debug("subscriber pruned", "error", err)
			continue
		}
		n.stats.RecordDelivered()
		live = append(live, sub)
	}

	if pruned := len(n.subscribers) - len(live); pruned > 0 {
		clear(n.subscribers[len(live):])
		n.stats.RecordSubscribers(len(live))
	}
	n.subscribers = live
}

// teardown 释放节点持有的全部资源
func (n *Node[I, O]) teardown(cause error) {
	if dropped := n.data.Close(); len(dropped) > 0 {
		n.stats.RecordDiscarded(len(dropped))
		n.logger.Warn("buffered data discarded", "count", len(dropped))
	}

	// 尚未处理的控制命令里可能带着下游的发送端
	for _, cmd := range n.control.Close() {
		switch c := cmd.(type) {
		case *addSubscriber[O]:
			c.sink.Close()
		case *syncBarrier:
			c.ack <- ErrTerminated
		}
	}

	// 先标记终止：下游观察到断开时 State 必须已是 Terminated
	n.stats.RecordStopped()
	n.state.Store(int32(StateTerminated))

	for _, sub := range n.subscribers {
		sub.Close()
	}
	n.subscribers = nil
	n.stats.RecordSubscribers(0)

	n.logger.Debug("node stopped", "cause", cause)
}
