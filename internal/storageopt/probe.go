package storageopt

import (
	"sync/atomic"
	"time"
)

// ProbeStats 记录探活次数、失败次数和最近一次失败时间。零值可用。
type ProbeStats struct {
	total       atomic.Int64
	failures    atomic.Int64
	lastFailure atomic.Int64 // UnixNano，0 表示从未失败
}

// Record 记录一次探活结果。
func (s *ProbeStats) Record(ok bool) {
	s.total.Add(1)
	if !ok {
		s.failures.Add(1)
		s.lastFailure.Store(time.Now().UnixNano())
	}
}

// Total 返回探活次数。
func (s *ProbeStats) Total() int64 { return s.total.Load() }

// Failures 返回失败次数。
func (s *ProbeStats) Failures() int64 { return s.failures.Load() }

// LastFailure 返回最近一次失败的时间，从未失败返回零值。
func (s *ProbeStats) LastFailure() time.Time {
	n := s.lastFailure.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
