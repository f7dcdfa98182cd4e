package evaluation

import (
	"fmt"
	"math"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
)

// TemporalMetrics is the Temporal stage report
type TemporalMetrics struct {
	CoverageDays          float64
	AvgAgeDays            float64
	MedianAgeDays         float64
	Buckets               map[string]int
	RecencyScore          float64
	ClusteringCoefficient float64
}

const recencyHalfLifeDays = 90.0

// ComputeTemporal 's Temporal stage: coverage
// (newest-oldest in days), average/median object age in days from now,
// ISO-week bucket counts, an exponential-decay recency score with a
// 90-day half-life, and a clustering coefficient derived from the
// coefficient of variation of bucket counts. Objects without
// timestamps.created_at are skipped. A single-bucket degenerate case
// returns clustering = 1,
func ComputeTemporal(objects []canonical.Object, now time.Time) TemporalMetrics {
	buckets := make(map[string]int)
	var times []time.Time
	var ages []float64

	for _, o := range objects {
		created, ok := o.CreatedAt()
		if !ok {
			continue
		}
		times = append(times, created)
		ages = append(ages, now.Sub(created).Hours()/24)
		buckets[isoWeekBucket(created)]++
	}

	metrics := TemporalMetrics{Buckets: buckets}
	if len(times) == 0 {
		return metrics
	}

	oldest, newest := times[0], times[0]
	for _, t := range times {
		if t.Before(oldest) {
			oldest = t
		}
		if t.After(newest) {
			newest = t
		}
	}
	metrics.CoverageDays = newest.Sub(oldest).Hours() / 24
	metrics.AvgAgeDays = mean(ages)
	metrics.MedianAgeDays = median(ages)

	var sumDecay float64
	for _, age := range ages {
		sumDecay += math.Exp(-math.Ln2 * age / recencyHalfLifeDays)
	}
	metrics.RecencyScore = sumDecay / float64(len(ages))

	if len(buckets) == 1 {
		metrics.ClusteringCoefficient = 1
	} else {
		counts := make([]float64, 0, len(buckets))
		for _, c := range buckets {
			counts = append(counts, float64(c))
		}
		metrics.ClusteringCoefficient = coefficientOfVariation(counts)
	}
	return metrics
}

// isoWeekBucket formats a timestamp as its ISO week bucket, YYYY-Www.
func isoWeekBucket(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
