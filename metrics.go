package syncedstore

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/synthlabs/tauri-svelte-synced-store/utils"
)

// Metrics is a prometheus collector for one Syncer. All counters are
// process-lifetime totals.
type Metrics struct {
	updates        atomic.Uint64
	notifies       atomic.Uint64
	emitsSkipped   atomic.Uint64
	emitFailures   atomic.Uint64
	decodeFailures atomic.Uint64
	payloadBytes   utils.AvgVal

	keys func() int

	updatesDesc        *prometheus.Desc
	notifiesDesc       *prometheus.Desc
	emitsSkippedDesc   *prometheus.Desc
	emitFailuresDesc   *prometheus.Desc
	decodeFailuresDesc *prometheus.Desc
	payloadBytesDesc   *prometheus.Desc
	keysDesc           *prometheus.Desc
}

func NewMetrics() *Metrics {
	return &Metrics{
		updatesDesc: prometheus.NewDesc(
			"syncedstore_updates_total",
			"Total number of value writes applied",
			nil, nil,
		),
		notifiesDesc: prometheus.NewDesc(
			"syncedstore_notifications_total",
			"Total number of updates published to the sink",
			nil, nil,
		),
		emitsSkippedDesc: prometheus.NewDesc(
			"syncedstore_emits_skipped_total",
			"Total number of publishes skipped by payload deduplication",
			nil, nil,
		),
		emitFailuresDesc: prometheus.NewDesc(
			"syncedstore_emit_failures_total",
			"Total number of sink publish failures",
			nil, nil,
		),
		decodeFailuresDesc: prometheus.NewDesc(
			"syncedstore_decode_failures_total",
			"Total number of malformed inbound payloads",
			nil, nil,
		),
		payloadBytesDesc: prometheus.NewDesc(
			"syncedstore_payload_bytes_avg",
			"Running average size of published payloads",
			nil, nil,
		),
		keysDesc: prometheus.NewDesc(
			"syncedstore_keys",
			"Number of keys currently registered",
			nil, nil,
		),
	}
}

// All bump methods tolerate a nil receiver so the Syncer can run
// without metrics configured.

func (m *Metrics) updateApplied() {
	if m != nil {
		m.updates.Add(1)
	}
}

func (m *Metrics) notified(payload string) {
	if m != nil {
		m.notifies.Add(1)
		m.payloadBytes.Add(float64(len(payload)))
	}
}

func (m *Metrics) emitSkipped() {
	if m != nil {
		m.emitsSkipped.Add(1)
	}
}

func (m *Metrics) emitFailed() {
	if m != nil {
		m.emitFailures.Add(1)
	}
}

func (m *Metrics) decodeFailed() {
	if m != nil {
		m.decodeFailures.Add(1)
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.updatesDesc
	ch <- m.notifiesDesc
	ch <- m.emitsSkippedDesc
	ch <- m.emitFailuresDesc
	ch <- m.decodeFailuresDesc
	ch <- m.payloadBytesDesc
	ch <- m.keysDesc
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(m.updatesDesc, prometheus.CounterValue, float64(m.updates.Load()))
	ch <- prometheus.MustNewConstMetric(m.notifiesDesc, prometheus.CounterValue, float64(m.notifies.Load()))
	ch <- prometheus.MustNewConstMetric(m.emitsSkippedDesc, prometheus.CounterValue, float64(m.emitsSkipped.Load()))
	ch <- prometheus.MustNewConstMetric(m.emitFailuresDesc, prometheus.CounterValue, float64(m.emitFailures.Load()))
	ch <- prometheus.MustNewConstMetric(m.decodeFailuresDesc, prometheus.CounterValue, float64(m.decodeFailures.Load()))
	ch <- prometheus.MustNewConstMetric(m.payloadBytesDesc, prometheus.GaugeValue, m.payloadBytes.Val())
	keys := 0
	if m.keys != nil {
		keys = m.keys()
	}
	ch <- prometheus.MustNewConstMetric(m.keysDesc, prometheus.GaugeValue, float64(keys))
}
