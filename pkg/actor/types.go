package actor

import (
	"log/slog"

	"github.com/lwmacct/251215-go-pkg-flow/pkg/chanx"
)

// Transform 转换接口
// 节点的计算单元，实现此接口即可被 Spawn 成节点
type Transform[I, O any] interface {
	// Apply 处理一个输入并产生恰好一个输出
	// 不得无限阻塞，否则整个节点及其下游都会停滞
	Apply(in I) O
}

// Func 函数式转换，便于用普通函数创建无状态节点
type Func[I, O any] func(in I) O

// Apply 实现 Transform 接口
func (f Func[I, O]) Apply(in I) O {
	return f(in)
}

// State 节点生命周期状态
type State int32

const (
	// StateCreated 已创建，尚未启动循环
	StateCreated State = iota
	// StateRunning 循环运行中
	StateRunning
	// StateTerminated 循环已退出，资源已释放
	StateTerminated
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// ============== 控制命令 ==============

// command 控制面命令，只在节点循环内部被处理
type command interface {
	Kind() string
}

// addSubscriber 追加订阅者
type addSubscriber[O any] struct {
	sink *chanx.Sender[O]
}

func (c *addSubscriber[O]) Kind() string { return "control.add_subscriber" }

// terminate 立即退出循环，缓冲中的数据全部丢弃
type terminate struct{}

func (c *terminate) Kind() string { return "control.terminate" }

// syncBarrier 屏障，循环处理到它时回复 ack
type syncBarrier struct {
	ack chan error
}

func (c *syncBarrier) Kind() string { return "control.sync" }

// ============== 节点属性 ==============

// Props 节点属性配置
type Props struct {
	// Name 节点名称，仅用于日志和统计，为空时自动生成
	Name string
	// ControlCapacity 控制通道容量，小于 1 按 1 处理
	ControlCapacity int
	// BusyPoll 空闲时自旋让出而不是阻塞等待
	BusyPoll bool
	// Logger 自定义日志器
	Logger *slog.Logger
	// Stats 统计记录器，为空时使用 AtomicStatsCollector
	Stats StatsRecorder
	// PanicHandler 转换 panic 时的回调，设置后不再输出默认错误日志
	PanicHandler func(node string, input any, err any)
}

// DefaultProps 默认属性
func DefaultProps(name string) *Props {
	return &Props{
		Name:            name,
		ControlCapacity: 1,
	}
}

// WithControlCapacity 设置控制通道容量
func (p *Props) WithControlCapacity(capacity int) *Props {
	p.ControlCapacity = capacity
	return p
}

// WithBusyPoll 设置是否自旋轮询
func (p *Props) WithBusyPoll(busy bool) *Props {
	p.BusyPoll = busy
	return p
}

// WithLogger 设置日志器
func (p *Props) WithLogger(logger *slog.Logger) *Props {
	p.Logger = logger
	return p
}

// WithStats 设置统计记录器
func (p *Props) WithStats(stats StatsRecorder) *Props {
	p.Stats = stats
	return p
}

// WithPanicHandler 设置 panic 回调
func (p *Props) WithPanicHandler(h func(node string, input any, err any)) *Props {
	p.PanicHandler = h
	return p
}
