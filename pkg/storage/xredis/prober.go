package xredis

import (
	"context"
	"log/slog"
	"time"

	"github.com/omeyang/xredis/internal/storageopt"
	"github.com/omeyang/xredis/pkg/observability/xlog"
)

// prober 通过句柄发送 PING 判断可达性。
type prober struct {
	timeout time.Duration
	stats   storageopt.ProbeStats
	logger  *slog.Logger
}

// probe 返回句柄是否可达。任何失败都返回 false，不返回错误也不 panic。
func (p *prober) probe(ctx context.Context, h *Handle) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.stats.Record(false)
			p.logger.Warn("xredis: probe panicked", slog.Any("panic", r))
			ok = false
		}
	}()

	if h == nil || h.cmd == nil {
		return false
	}
	pctx, cancel := storageopt.Bounded(ctx, p.timeout)
	defer cancel()

	if err := h.cmd.Ping(pctx).Err(); err != nil {
		p.stats.Record(false)
		p.logger.Warn("xredis: probe failed", xlog.Err(err))
		return false
	}
	p.stats.Record(true)
	return true
}
