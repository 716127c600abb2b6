package xredis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// 错误分类
// =============================================================================

// Kind 是错误类别，决定调用器是否重建重试。
type Kind uint8

const (
	// KindNone 表示无错误。
	KindNone Kind = iota
	// KindConnection 传输层断开（broken pipe、connection reset 等），可重建后重放一次。
	KindConnection
	// KindOperation 逻辑失败（类型错误、认证被拒、参数错误），不重试。
	KindOperation
	// KindCrossShard 集群拓扑下跨槽多键命令，不重试。
	KindCrossShard
	// KindUnsupported 当前拓扑不支持的操作（集群事务）。
	KindUnsupported
	// KindUnavailable 重建后仍不可用，调用方不应再重试。
	KindUnavailable
)

// String 返回类别名称。
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConnection:
		return "connection"
	case KindOperation:
		return "operation"
	case KindCrossShard:
		return "cross-shard"
	case KindUnsupported:
		return "unsupported"
	case KindUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// 类别哨兵错误，用于 errors.Is 匹配 *Error。
var (
	ErrConnection  = errors.New("xredis: connection failure")
	ErrOperation   = errors.New("xredis: operation failed")
	ErrCrossShard  = errors.New("xredis: keys span multiple cluster slots")
	ErrUnsupported = errors.New("xredis: operation unsupported by topology")
	ErrUnavailable = errors.New("xredis: cache unavailable after reconnect")
)

// 通用错误。
var (
	// ErrClosed 表示客户端已关闭。
	ErrClosed = errors.New("xredis: client closed")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xredis: nil context")

	// ErrInvalidTarget 表示连接目标配置无效。
	ErrInvalidTarget = errors.New("xredis: invalid target")

	// ErrMissingPassword 表示要求密码的配置路径缺少 password。
	ErrMissingPassword = errors.New("xredis: password is required")

	// ErrTxDone 表示事务已提交、回滚或关闭。
	ErrTxDone = errors.New("xredis: transaction already finished")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindOperation:
		return ErrOperation
	case KindCrossShard:
		return ErrCrossShard
	case KindUnsupported:
		return ErrUnsupported
	case KindUnavailable:
		return ErrUnavailable
	default:
		return nil
	}
}

// Error 是 xredis 返回的类型化错误。
type Error struct {
	Kind Kind
	// Op 是命令名，例如 "get"、"sunion"。
	Op  string
	Err error
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("xredis: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("xredis: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap 返回底层错误。
func (e *Error) Unwrap() error {
	return e.Err
}

// Is 将类别映射到对应的哨兵错误。
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf 返回错误的类别。对 *Error 直接读取，其余错误交给 Classify。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(err)
}

// Classify 把 go-redis 和网络层错误归类。纯函数，无副作用。
//
// 只有传输层断开归为 KindConnection；超时、连接池耗尽和调用方取消
// 归为 KindOperation，重建连接池对它们没有帮助。
// READONLY 回复说明连接仍指向故障转移前的主节点，归为 KindConnection。
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	// TxFailedErr 同时满足 redis.Error，需要先判断。
	if errors.Is(err, redis.TxFailedErr) {
		return KindOperation
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindOperation
	}
	if errors.Is(err, redis.ErrPoolTimeout) || errors.Is(err, redis.ErrPoolExhausted) {
		return KindOperation
	}

	if redis.HasErrorPrefix(err, "CROSSSLOT") {
		return KindCrossShard
	}
	if redis.HasErrorPrefix(err, "READONLY") {
		return KindConnection
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return KindOperation
	}

	if isBrokenConnection(err) {
		return KindConnection
	}
	return KindOperation
}

func isBrokenConnection(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
