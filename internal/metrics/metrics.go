package metrics

import "sync/atomic"

// MetricID identifies a single counter maintained by the engine.
type MetricID int

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterConflict
	MetricLoginSuccess
	MetricLoginFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshDenied
	MetricLogout
	MetricLogoutAll
	MetricSessionCreated
	MetricSessionRevoked
	MetricEmailVerifyRequest
	MetricEmailVerifySuccess
	MetricEmailVerifyFailure
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricEmailReminderRequest
	MetricLoginCodeSent
	MetricLoginCodeSuccess
	MetricLoginCodeFailure
	MetricAccountDeleted

	MetricIDCount
)

// Config controls metric collection. When Enabled is false all operations
// are no-ops.
type Config struct {
	Enabled bool
}

// Metrics holds one atomic counter per MetricID.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id < 0 || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Counters: make(map[MetricID]uint64, int(MetricIDCount)),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
