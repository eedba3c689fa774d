// Package report implements spec.md §4.5: ranking, filtering, and
// summarizing a completed analysis Report. All sort/filter operations
// return pointers into the Report's own Pairs slice so a caller's
// BuildFragments cache (see similarity.Pair) survives across calls.
package report

import (
	"sort"

	"github.com/classifi/simguard/pkg/alg/stats"
	"github.com/classifi/simguard/pkg/similarity"
	"github.com/classifi/simguard/pkg/similarity/errs"
)

// Metric names a ranking dimension for PairsSortedBy.
type Metric int

// Supported ranking metrics.
const (
	MetricSimilarity Metric = iota
	MetricOverlap
	MetricLongest
)

// PairsSortedBy returns pointers to r's pairs ordered descending by metric.
// Ties are broken by PairID ascending to keep the ordering deterministic.
func PairsSortedBy(r *similarity.Report, metric Metric) []*similarity.Pair {
	out := pairPointers(r)

	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := metricValue(out[i], metric), metricValue(out[j], metric)
		if vi != vj {
			return vi > vj
		}

		return out[i].PairID < out[j].PairID
	})

	return out
}

// TopPairs returns the n highest-similarity pairs.
func TopPairs(r *similarity.Report, n int) []*similarity.Pair {
	sorted := PairsSortedBy(r, MetricSimilarity)
	if n < len(sorted) {
		sorted = sorted[:n]
	}

	return sorted
}

// PairsAbove returns every pair at or above the given similarity threshold,
// descending by similarity.
func PairsAbove(r *similarity.Report, threshold float64) []*similarity.Pair {
	sorted := PairsSortedBy(r, MetricSimilarity)

	out := make([]*similarity.Pair, 0, len(sorted))

	for _, p := range sorted {
		if p.Similarity >= threshold {
			out = append(out, p)
		}
	}

	return out
}

// FragmentsFor returns the matching fragments of the pair with the given
// ID, or nil if no such pair exists in this report.
func FragmentsFor(r *similarity.Report, pairID int) []similarity.Fragment {
	for i := range r.Pairs {
		if r.Pairs[i].PairID == pairID {
			return r.Pairs[i].BuildFragments()
		}
	}

	return nil
}

// Summary computes the aggregate view over r's pairs (spec.md §3's
// ReportSummary: total_files, total_pairs, flagged_pairs,
// average_similarity, max_similarity).
func Summary(r *similarity.Report, flagThreshold float64) similarity.ReportSummary {
	scores := make([]float64, len(r.Pairs))
	flagged := 0

	for i, p := range r.Pairs {
		scores[i] = p.Similarity

		if p.Similarity >= flagThreshold {
			flagged++
		}
	}

	avg, stddev := stats.MeanStdDev(scores)

	return similarity.ReportSummary{
		TotalFiles:        len(r.FileRefs),
		TotalPairs:        len(r.Pairs),
		FlaggedPairs:      flagged,
		AverageSimilarity: avg,
		StdDevSimilarity:  stddev,
		MaxSimilarity:     stats.Max(scores),
	}
}

// Warnings returns the file-scoped problems recorded during the run.
func Warnings(r *similarity.Report) []errs.FileOutcome {
	return r.Warnings
}

func pairPointers(r *similarity.Report) []*similarity.Pair {
	out := make([]*similarity.Pair, len(r.Pairs))
	for i := range r.Pairs {
		out[i] = &r.Pairs[i]
	}

	return out
}

func metricValue(p *similarity.Pair, metric Metric) float64 {
	switch metric {
	case MetricOverlap:
		return float64(p.Overlap)
	case MetricLongest:
		return float64(p.Longest)
	case MetricSimilarity:
		return p.Similarity
	default:
		return p.Similarity
	}
}
