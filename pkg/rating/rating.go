// Package rating aggregates review ratings into averages and star distributions.
//
// Every function here is pure: it reads the slice it is given and allocates its
// result, so callers may share one across goroutines without locking.
package rating

import (
	"math"
	"sort"
)

// Order selects how distribution buckets are sorted by rating value.
type Order int

const (
	// Descending lists the highest rating first (book pages).
	Descending Order = iota
	// Ascending lists the lowest rating first (global statistics).
	Ascending
)

// Bucket counts the reviews that share one rating value.
type Bucket struct {
	Rating     float64 `json:"rating"`
	Count      int     `json:"count"`
	Percentage int     `json:"percentage"`
}

// Summary is the aggregate view of a rating collection.
type Summary struct {
	Count        int      `json:"totalReviews"`
	Average      float64  `json:"averageRating"`
	Min          float64  `json:"minRating"`
	Max          float64  `json:"maxRating"`
	Distribution []Bucket `json:"ratingDistribution"`
}

// Summarize computes count, rounded average, extremes and the per-value
// distribution. An empty input yields a zero Summary with an empty, non-nil
// distribution.
func Summarize(ratings []float64, order Order) Summary {
	summary := Summary{
		Count:        len(ratings),
		Distribution: []Bucket{},
	}
	if len(ratings) == 0 {
		return summary
	}

	counts := make(map[float64]int)
	summary.Min = ratings[0]
	summary.Max = ratings[0]
	for _, r := range ratings {
		counts[r]++
		summary.Min = math.Min(summary.Min, r)
		summary.Max = math.Max(summary.Max, r)
	}
	summary.Average = Average(ratings)

	buckets := make([]Bucket, 0, len(counts))
	for value, count := range counts {
		buckets = append(buckets, Bucket{
			Rating:     value,
			Count:      count,
			Percentage: Percentage(count, len(ratings)),
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if order == Ascending {
			return buckets[i].Rating < buckets[j].Rating
		}
		return buckets[i].Rating > buckets[j].Rating
	})
	summary.Distribution = buckets
	return summary
}

// Average returns the arithmetic mean rounded half-up to one decimal place,
// or 0 for an empty collection.
func Average(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return RoundTenth(sum / float64(len(ratings)))
}

// Percentage returns part/total as a whole percent, rounded half-up.
// Buckets are rounded independently, so a distribution may not sum to 100.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(part)/float64(total)*100 + 0.5))
}

// RoundTenth rounds v half-up on the tenths digit.
func RoundTenth(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}
