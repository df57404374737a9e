package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lwmacct/251215-go-pkg-flow/pkg/chanx"
)

// Network 节点网络
// 管理一组节点的生命周期：统一终止、等待全部退出。
// Network 不是寻址注册表，节点之间仍只通过 Ref 和 Link 交互。
type Network struct {
	// 基本信息
	name string

	// 成员，退出后即被移除
	members   []*member
	membersMu sync.RWMutex

	// 成员的第一个非 nil 退出错误
	exitErr   error
	exitErrMu sync.Mutex

	isRunning atomic.Bool

	// 配置
	config *NetworkConfig

	// 日志
	logger *slog.Logger
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	// ControlCapacity 成员节点默认控制通道容量
	ControlCapacity int
	// BusyPoll 成员节点默认是否自旋轮询
	BusyPoll bool
	// ShutdownTimeout Shutdown 等待成员退出的时长
	ShutdownTimeout time.Duration
	// Logger 自定义日志器
	Logger *slog.Logger
}

// DefaultNetworkConfig 默认网络配置
func DefaultNetworkConfig() *NetworkConfig {
	return &NetworkConfig{
		ControlCapacity: 1,
		BusyPoll:        false,
		ShutdownTimeout: 30 * time.Second,
		Logger:          nil, // 使用默认 logger
	}
}

// member 网络成员
// 只持有控制发送端，不会让成员的数据通道保持存活
type member struct {
	name    string
	control *chanx.Sender[command]
	done    <-chan struct{}
	wait    func() error

	reaped sync.Once
}

func (m *member) alive() bool {
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// NewNetwork 创建节点网络
func NewNetwork(name string) *Network {
	return NewNetworkWithConfig(name, DefaultNetworkConfig())
}

// NewNetworkWithConfig 使用配置创建节点网络
func NewNetworkWithConfig(name string, config *NetworkConfig) *Network {
	if config == nil {
		config = DefaultNetworkConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nw := &Network{
		name:   name,
		config: config,
		logger: logger.With("network", name),
	}
	nw.isRunning.Store(true)

	nw.logger.Debug("network started")
	return nw
}

// SpawnIn 在网络中创建并启动节点
// props 为 nil 时使用网络的默认配置
func SpawnIn[I, O any](nw *Network, t Transform[I, O], props *Props) (*Ref[I, O], error) {
	if !nw.isRunning.Load() {
		return nil, fmt.Errorf("network %s: %w", nw.name, ErrNetworkStopped)
	}

	var p Props
	if props != nil {
		p = *props
	} else {
		p = Props{
			ControlCapacity: nw.config.ControlCapacity,
			BusyPoll:        nw.config.BusyPoll,
		}
	}
	if p.Logger == nil {
		p.Logger = nw.logger
	}

	node := New(t, &p)
	ref, err := node.Spawn()
	if err != nil {
		return nil, err
	}

	m := &member{
		name:    node.Name(),
		control: ref.control.Clone(),
		done:    node.Done(),
		wait:    node.Wait,
	}
	nw.membersMu.Lock()
	nw.members = append(nw.members, m)
	nw.membersMu.Unlock()

	go func() {
		<-m.done
		nw.reap(m)
	}()

	return ref, nil
}

// reap 移除已退出的成员并记录退出错误（每个成员只执行一次）
// 移除后网络不再引用该节点
func (nw *Network) reap(m *member) {
	m.reaped.Do(func() {
		if err := m.wait(); err != nil {
			nw.exitErrMu.Lock()
			if nw.exitErr == nil {
				nw.exitErr = err
			}
			nw.exitErrMu.Unlock()
			nw.logger.Warn("member exited with error", "node", m.name, "error", err)
		}
		m.control.Close()
		m.wait = nil

		nw.membersMu.Lock()
		for i, other := range nw.members {
			if other == m {
				nw.members = append(nw.members[:i], nw.members[i+1:]...)
				break
			}
		}
		nw.membersMu.Unlock()
	})
}

// Name 返回网络名称
func (nw *Network) Name() string {
	return nw.name
}

// IsRunning 检查网络是否运行中
func (nw *Network) IsRunning() bool {
	return nw.isRunning.Load()
}

// snapshot 复制成员列表
func (nw *Network) snapshot() []*member {
	nw.membersMu.RLock()
	defer nw.membersMu.RUnlock()

	members := make([]*member, len(nw.members))
	copy(members, nw.members)
	return members
}

// Count 返回仍在运行的成员数量
func (nw *Network) Count() int {
	n := 0
	for _, m := range nw.snapshot() {
		if m.alive() {
			n++
		}
	}
	return n
}

// Names 列出仍在运行的成员名称
func (nw *Network) Names() []string {
	names := make([]string, 0)
	for _, m := range nw.snapshot() {
		if m.alive() {
			names = append(names, m.name)
		}
	}
	return names
}

// Wait 等待所有成员退出，返回第一个非 nil 的退出错误
// 已经退出（包括 Shutdown 之前退出）的成员的错误同样会被返回
func (nw *Network) Wait() error {
	var eg errgroup.Group
	for _, m := range nw.snapshot() {
		eg.Go(func() error {
			<-m.done
			nw.reap(m)
			return nil
		})
	}
	_ = eg.Wait()
	return nw.ExitErr()
}

// ExitErr 返回成员的第一个非 nil 退出错误
func (nw *Network) ExitErr() error {
	nw.exitErrMu.Lock()
	defer nw.exitErrMu.Unlock()
	return nw.exitErr
}

// Shutdown 关闭网络
func (nw *Network) Shutdown() error {
	return nw.ShutdownWithTimeout(nw.config.ShutdownTimeout)
}

// ShutdownWithTimeout 带超时的关闭
// 向每个成员发送终止命令，等待全部退出后释放网络持有的控制发送端
func (nw *Network) ShutdownWithTimeout(timeout time.Duration) error {
	nw.logger.Info("network shutting down")
	nw.isRunning.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	members := nw.snapshot()
	for _, m := range members {
		err := m.control.SendContext(ctx, &terminate{})
		if err != nil && !errors.Is(err, chanx.ErrDisconnected) {
			nw.logger.Warn("terminate not delivered", "node", m.name, "error", err)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, m := range members {
		eg.Go(func() error {
			select {
			case <-m.done:
				nw.reap(m)
				return nil
			case <-ctx.Done():
				return fmt.Errorf("node %s: %w", m.name, ctx.Err())
			}
		})
	}
	err := eg.Wait()

	// 超时未退出的成员已收到终止命令，退出后由各自的回收 goroutine 移除
	for _, m := range members {
		m.control.Close()
	}

	if err != nil {
		nw.logger.Warn("network shutdown timeout", "error", err)
		return err
	}
	nw.logger.Info("network shutdown complete")
	return nil
}
