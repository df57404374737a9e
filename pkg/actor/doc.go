// Package actor 提供可在运行时重新连线的流式转换节点网络
//
// 每个节点是独立的 goroutine：
// • 从数据通道取值，调用 [Transform] 产生恰好一个输出
// • 把输出按顺序投递给所有订阅者（其他节点或外部汇通道）
// • 通过单独的控制通道接收订阅和终止命令
// • 订阅者列表和转换状态只属于节点自己，无需加锁
//
// # 核心组件
//
// [Node] 是节点本身，[New] 创建，[Node.Spawn] 启动循环并返回第一个句柄。
// [Spawn] 和 [SpawnFunc] 一步完成：
//
//	double := actor.SpawnFunc(func(x int) int { return x * 2 }, actor.DefaultProps("double"))
//	defer double.Close()
//
// [Ref] 是节点句柄，只暴露 [Ref.Send] 和 [Ref.Terminate]，可任意 [Ref.Clone]。
// Go 没有析构，不再使用的句柄需要 [Ref.Close]；节点的所有句柄和上游订阅都释放后，
// 数据通道断开，节点自然退出。
//
// [Link] 把一个节点的输出接到另一个节点，[LinkToSink] 接到外部汇通道（见 chanx 包）。
// 链接是异步的，需要确认生效时用 [Ref.Sync]。
//
// # 执行循环
//
// 每轮先非阻塞排空控制通道，再尝试取一条数据、转换、扇出：
//
// 1. 订阅命令追加到订阅者列表末尾；终止命令立即退出，缓冲中的数据被丢弃
// 2. 数据通道为空时等待任一通道就绪（或 [Props.BusyPoll] 时自旋），然后回到第 1 步
// 3. 数据通道断开（所有发送端释放）是正常退出路径
// 4. 投递失败的订阅者被永久移除，不影响其他订阅者
//
// 控制命令总是在下一条数据之前生效，已排出的终止命令之后不会再处理任何数据。
//
// # 错误
//
// 向已终止节点 Send 或 Terminate 返回 [ErrTerminated]；使用已释放的句柄返回
// [ErrRefClosed]。转换 panic 会被恢复并使节点退出，[Node.Wait] 返回
// [*TransformPanicError]。
//
// # 节点网络
//
// [Network] 管理一组节点的生命周期，[SpawnIn] 在网络中创建节点，
// [Network.Shutdown] 统一终止并等待全部退出。
//
// 完整使用示例请参考 example_test.go 或运行 go doc -all。
package actor
