package actor

import (
	"errors"
	"fmt"

	"github.com/lwmacct/251215-go-pkg-flow/pkg/chanx"
)

var (
	// ErrTerminated 目标节点已经终止
	ErrTerminated = errors.New("node terminated")
	// ErrRefClosed 句柄已经释放
	ErrRefClosed = errors.New("node ref closed")
	// ErrAlreadySpawned 节点已经启动过
	ErrAlreadySpawned = errors.New("node already spawned")
	// ErrNetworkStopped 网络已经关闭
	ErrNetworkStopped = errors.New("network stopped")
)

// TransformPanicError 转换 panic 错误
// 节点因转换 panic 退出时由 Node.Wait 返回
type TransformPanicError struct {
	Node  string
	Value any
	Stack []byte
}

// Error 实现 error 接口
func (e *TransformPanicError) Error() string {
	return fmt.Sprintf("transform panic in node %s: %v", e.Node, e.Value)
}

// deliveryError 把通道层错误翻译为节点层错误
func deliveryError(node string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chanx.ErrDisconnected):
		return fmt.Errorf("node %s: %w", node, ErrTerminated)
	case errors.Is(err, chanx.ErrClosed):
		return fmt.Errorf("node %s: %w", node, ErrRefClosed)
	default:
		return err
	}
}
