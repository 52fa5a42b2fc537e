package spatial

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Stats holds the running counters of a tree.
type Stats struct {
	InsertCount     int           `json:"insert_count"`
	TotalInsertTime time.Duration `json:"total_insert_time"`
	QueryCount      int           `json:"query_count"`
	TotalQueryTime  time.Duration `json:"total_query_time"`
	Subdivisions    int           `json:"subdivisions"`
	Merges          int           `json:"merges"`
	Evictions       int           `json:"evictions"`
}

// AverageInsertTime returns the mean duration of an insert, zero when nothing
// was inserted.
func (s Stats) AverageInsertTime() time.Duration {
	if s.InsertCount == 0 {
		return 0
	}
	return s.TotalInsertTime / time.Duration(s.InsertCount)
}

// AverageQueryTime returns the mean duration of a query, zero when nothing
// was queried.
func (s Stats) AverageQueryTime() time.Duration {
	if s.QueryCount == 0 {
		return 0
	}
	return s.TotalQueryTime / time.Duration(s.QueryCount)
}

// Stats returns a copy of the tree counters.
func (t *Tree) Stats() Stats {
	return t.stats
}

// LogSummary logs the average insert and query latencies. It is meant to be
// called when the tree owner shuts down.
func (t *Tree) LogSummary() {
	s := t.stats

	if s.QueryCount > 0 {
		logs.WithTag("tree", t.name).
			WithTag("average_query_time_ms", durationMillis(s.AverageQueryTime())).
			WithTag("query_count", s.QueryCount).
			Info("average query time")
	}

	if s.InsertCount > 0 {
		logs.WithTag("tree", t.name).
			WithTag("average_insert_time_ms", durationMillis(s.AverageInsertTime())).
			WithTag("insert_count", s.InsertCount).
			WithTag("subdivisions", s.Subdivisions).
			WithTag("merges", s.Merges).
			WithTag("evictions", s.Evictions).
			Info("average insert time")
	}
}

func (t *Tree) observeInsert(start time.Time) {
	d := time.Since(start)
	t.stats.InsertCount++
	t.stats.TotalInsertTime += d
	t.metrics.ObserveInsert(d)
}

func (t *Tree) observeQuery(start time.Time) {
	d := time.Since(start)
	t.stats.QueryCount++
	t.stats.TotalQueryTime += d
	t.metrics.ObserveQuery(d)
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
