package spatial

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the sink notified of tree operations. It is injected with
// WithMetrics.
type Metrics interface {
	// Called after every Insert call.
	ObserveInsert(time.Duration)

	// Called after every Query call.
	ObserveQuery(time.Duration)

	// Called after a removal, with whether the parent merged back into a leaf
	// and how many stale sibling entities were evicted.
	ObserveRemove(merged bool, evicted int)

	// Called when a leaf at the given depth splits.
	ObserveSubdivide(depth int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveInsert(time.Duration) {}
func (noopMetrics) ObserveQuery(time.Duration)  {}
func (noopMetrics) ObserveRemove(bool, int)     {}
func (noopMetrics) ObserveSubdivide(int)        {}

const (
	treeLabel  = "tree"
	depthLabel = "depth"
)

var (
	treeInsertLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tree_insert_latency",
		Help:    "The time to insert an entity in a spatial tree.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	}, []string{
		treeLabel,
	})

	treeQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tree_query_latency",
		Help:    "The time to query the neighbors of an entity in a spatial tree.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	}, []string{
		treeLabel,
	})

	treeRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tree_removals",
		Help: "The number of entity removals from a spatial tree node.",
	}, []string{
		treeLabel,
	})

	treeMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tree_merges",
		Help: "The number of times sibling leaves merged back into their parent.",
	}, []string{
		treeLabel,
	})

	treeEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tree_evictions",
		Help: "The number of stale entities evicted from sibling leaves.",
	}, []string{
		treeLabel,
	})

	treeSubdivisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tree_subdivisions",
		Help: "The number of leaf subdivisions.",
	}, []string{
		treeLabel,
		depthLabel,
	})
)

// PrometheusMetrics reports tree operations to Prometheus, labeled with the
// tree name.
type PrometheusMetrics struct {
	Tree string
}

func (m PrometheusMetrics) ObserveInsert(d time.Duration) {
	treeInsertLatency.With(prometheus.Labels{
		treeLabel: m.Tree,
	}).Observe(d.Seconds())
}

func (m PrometheusMetrics) ObserveQuery(d time.Duration) {
	treeQueryLatency.With(prometheus.Labels{
		treeLabel: m.Tree,
	}).Observe(d.Seconds())
}

func (m PrometheusMetrics) ObserveRemove(merged bool, evicted int) {
	labels := prometheus.Labels{treeLabel: m.Tree}

	treeRemovals.With(labels).Inc()
	if merged {
		treeMerges.With(labels).Inc()
	}
	if evicted > 0 {
		treeEvictions.With(labels).Add(float64(evicted))
	}
}

func (m PrometheusMetrics) ObserveSubdivide(depth int) {
	treeSubdivisions.With(prometheus.Labels{
		treeLabel:  m.Tree,
		depthLabel: strconv.Itoa(depth),
	}).Inc()
}
