package vzauth

import (
	"sync/atomic"
	"time"
)

// MetricID names one session lifecycle counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced a stored session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins that failed for any reason other than an unconfirmed account.
	MetricLoginFailure
	// MetricLoginUnverified counts logins rejected because the account is not confirmed.
	MetricLoginUnverified
	// MetricRefreshSuccess counts refreshes that replaced the stored session.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refreshes that ended the session.
	MetricRefreshFailure
	// MetricRefreshSuperseded counts login or refresh results discarded after logout.
	MetricRefreshSuperseded
	// MetricLaunchStoredValid counts launch checks satisfied by the stored session.
	MetricLaunchStoredValid
	// MetricLaunchRefreshed counts launch checks that needed a refresh.
	MetricLaunchRefreshed
	// MetricLaunchLoggedOut counts launch checks that ended logged out.
	MetricLaunchLoggedOut
	// MetricSessionCleared counts stored credentials removed on failure.
	MetricSessionCleared
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricReloginRequired counts relogin notifications.
	MetricReloginRequired
	// MetricSchedulerStarted counts refresh schedules started.
	MetricSchedulerStarted
	// MetricSchedulerAlreadyRunning counts start requests ignored by the guard.
	MetricSchedulerAlreadyRunning
	// MetricProfileNetwork counts profiles served from the network.
	MetricProfileNetwork
	// MetricProfileCache counts profiles served from a fresh cache entry.
	MetricProfileCache
	// MetricProfileStale counts profiles served from a stale cache entry.
	MetricProfileStale
	// MetricProfileUnavailable counts profile requests that could not be served.
	MetricProfileUnavailable
	// MetricRegisterSuccess counts accounts created.
	MetricRegisterSuccess
	// MetricRegisterInvalid counts registrations rejected by local validation.
	MetricRegisterInvalid
	// MetricLoginLatency is the login round-trip latency histogram.
	MetricLoginLatency
	// MetricRefreshLatency is the refresh round-trip latency histogram.
	MetricRefreshLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of counters and fixed-bucket latency
// histograms. A nil *Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histogram buckets
// are not cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a metrics set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in histogram id. Non-histogram ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency is enabled, every
// histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, len(histogramIDs)),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range histogramIDs {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

var histogramIDs = []MetricID{MetricLoginLatency, MetricRefreshLatency}

func isHistogram(id MetricID) bool {
	return id == MetricLoginLatency || id == MetricRefreshLatency
}

// Upper bounds: 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
