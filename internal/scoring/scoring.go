// Package scoring computes outlier scores: how a post performed relative to
// the average of the batch it was fetched with.
//
// THE FORMULA:
//
//	V      = posts whose primary metric is > 0
//	avg    = sum(metric over V) / |V|
//	score  = round(metric / avg, 2)   for every post in the batch
//
// A score of 3.0 means "three times this creator's recent average". Posts
// with a zero metric still get a score (0), they just do not drag the
// average down. If V is empty the batch is degenerate and every score is 0;
// that is a normal outcome, not an error.
//
// The functions here are pure. There is no cache: every sync recomputes its
// batch from scratch.
package scoring

import (
	"math"
	"sort"

	"github.com/sakif/creator-outliers/internal/model"
)

// ScoreBatch returns a scored copy of posts, sorted by score descending.
// Ties keep their input order. The input slice is not modified.
func ScoreBatch(posts []model.Post) []model.Post {
	scored := make([]model.Post, len(posts))
	copy(scored, posts)

	avg, ok := Average(posts)
	benchmark := int64(0)
	if ok {
		benchmark = int64(math.RoundToEven(avg))
	}

	for i := range scored {
		scored[i].Benchmark = benchmark
		scored[i].OutlierScore = 0
		if ok {
			scored[i].OutlierScore = Round2(float64(scored[i].PrimaryMetric()) / avg)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].OutlierScore > scored[j].OutlierScore
	})
	return scored
}

// Average is the mean primary metric over posts with a positive metric.
// ok is false when there are none.
func Average(posts []model.Post) (avg float64, ok bool) {
	var (
		sum   float64
		valid int
	)
	for _, p := range posts {
		if m := p.PrimaryMetric(); m > 0 {
			sum += float64(m)
			valid++
		}
	}
	if valid == 0 {
		return 0, false
	}
	return sum / float64(valid), true
}

// Round2 rounds half away from zero to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Summary describes a scored batch for logs and sync reports.
type Summary struct {
	Count     int
	Valid     int
	Average   float64
	Benchmark int64
	MaxScore  float64
}

// Summarize reports on an already scored batch.
func Summarize(scored []model.Post) Summary {
	s := Summary{Count: len(scored)}
	for _, p := range scored {
		if p.PrimaryMetric() > 0 {
			s.Valid++
		}
		if p.OutlierScore > s.MaxScore {
			s.MaxScore = p.OutlierScore
		}
	}
	if avg, ok := Average(scored); ok {
		s.Average = avg
		s.Benchmark = int64(math.RoundToEven(avg))
	}
	return s
}
