package service

import "github.com/prometheus/client_golang/prometheus"

const (
	resultCompleted = "completed"
	resultStale     = "stale"
	resultFailed    = "failed"
	resultSkipped   = "skipped"
)

var (
	_passMtc = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolsync_passes_total",
			Help: "Number of synchronization passes by result.",
		},
		[]string{"result"},
	)
	_passDurationMtc = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poolsync_pass_duration_seconds",
			Help:    "Duration of synchronization passes.",
			Buckets: prometheus.DefBuckets,
		},
	)
	_poolsMtc = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poolsync_tracked_pools",
			Help: "Number of tracked pools in the committed context.",
		},
	)
	_headMtc = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poolsync_observed_head",
			Help: "Highest block number observed on the ledger.",
		},
	)
	_resubscribeMtc = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poolsync_resubscriptions_total",
			Help: "Number of head subscription attempts after a failure.",
		},
	)
)

func init() {
	prometheus.MustRegister(_passMtc)
	prometheus.MustRegister(_passDurationMtc)
	prometheus.MustRegister(_poolsMtc)
	prometheus.MustRegister(_headMtc)
	prometheus.MustRegister(_resubscribeMtc)
}
