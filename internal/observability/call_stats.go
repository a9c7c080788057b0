package observability

import (
	"sync/atomic"
	"time"
)

// CallStats keeps process-local upstream counters for the readiness
// endpoint, next to the Prometheus series.
type CallStats struct {
	calls   atomic.Uint64
	failed  atomic.Uint64
	retried atomic.Uint64

	// duration stats (nanoseconds)
	durationTotal atomic.Int64
	durationMax   atomic.Int64

	lastErrorKind atomic.Value // string
}

func NewCallStats() *CallStats {
	return &CallStats{}
}

func (m *CallStats) IncRetried() {
	m.retried.Add(1)
}

// ObserveCall counts one logical call. errKind is empty for a success.
func (m *CallStats) ObserveCall(errKind string, d time.Duration) {
	m.calls.Add(1)
	if errKind != "" {
		m.failed.Add(1)
		m.lastErrorKind.Store(errKind)
	}

	ns := d.Nanoseconds()
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type CallStatsSnapshot struct {
	Calls           uint64        `json:"calls"`
	Failed          uint64        `json:"failed"`
	Retried         uint64        `json:"retried"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
	LastErrorKind   string        `json:"lastErrorKind,omitempty"`
}

func (m *CallStats) Snapshot() CallStatsSnapshot {
	count := m.calls.Load()
	total := m.durationTotal.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	lastKind, _ := m.lastErrorKind.Load().(string)

	return CallStatsSnapshot{
		Calls:           count,
		Failed:          m.failed.Load(),
		Retried:         m.retried.Load(),
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
		LastErrorKind:   lastKind,
	}
}
