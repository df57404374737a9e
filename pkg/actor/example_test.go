package actor_test

import (
	"context"
	"fmt"

	"github.com/lwmacct/251215-go-pkg-flow/pkg/actor"
	"github.com/lwmacct/251215-go-pkg-flow/pkg/chanx"
)

// Example_pipeline 演示 double → square → 汇通道
func Example_pipeline() {
	ctx := context.Background()

	double := actor.SpawnFunc(func(x int) int { return x * 2 }, actor.DefaultProps("double"))
	defer double.Close()
	square := actor.SpawnFunc(func(x int) int { return x * x }, actor.DefaultProps("square"))
	defer square.Close()

	sinkTx, sinkRx := chanx.New[int]()
	defer sinkTx.Close()

	_ = actor.Link(double, square)
	_ = actor.LinkToSink(square, sinkTx)

	// 链接是异步的，发送前确认订阅已生效
	_ = double.Sync(ctx)
	_ = square.Sync(ctx)

	for i := 1; i <= 3; i++ {
		_ = double.Send(i)
	}
	for i := 0; i < 3; i++ {
		v, _ := sinkRx.Recv(ctx)
		fmt.Println(v)
	}

	// Output:
	// 4
	// 16
	// 36
}

// counter 有状态转换
type counter struct {
	seen int
}

func (c *counter) Apply(word string) string {
	c.seen++
	return fmt.Sprintf("%d:%s", c.seen, word)
}

// Example_stateful 演示有状态转换
func Example_stateful() {
	ctx := context.Background()

	node := actor.New[string, string](&counter{}, actor.DefaultProps("counter"))
	ref, _ := node.Spawn()

	sinkTx, sinkRx := chanx.New[string]()
	_ = actor.LinkToSink(ref, sinkTx)
	sinkTx.Close()
	_ = ref.Sync(ctx)

	for _, w := range []string{"a", "b", "c"} {
		_ = ref.Send(w)
	}

	// 释放句柄后节点处理完缓冲数据退出，汇通道随之断开
	ref.Close()
	for v := range sinkRx.All() {
		fmt.Println(v)
	}
	fmt.Println(node.State())

	// Output:
	// 1:a
	// 2:b
	// 3:c
	// Terminated
}

// Example_terminate 演示向已终止节点发送
func Example_terminate() {
	node := actor.New[int, int](actor.Func[int, int](func(x int) int { return x }), nil)
	ref, _ := node.Spawn()
	defer ref.Close()

	_ = ref.Terminate()
	<-node.Done()

	err := ref.Send(1)
	fmt.Println(err != nil)

	// Output:
	// true
}
