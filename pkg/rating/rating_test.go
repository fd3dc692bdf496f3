package rating

import "testing"

func TestAverage(t *testing.T) {
	tests := []struct {
		name    string
		ratings []float64
		want    float64
	}{
		{name: "empty", ratings: nil, want: 0},
		{name: "all fives", ratings: []float64{5, 5, 5, 5}, want: 5.0},
		{name: "extremes", ratings: []float64{1, 5}, want: 3.0},
		{name: "rounds half up", ratings: []float64{3, 4, 4}, want: 3.7},
		{name: "rounds down", ratings: []float64{1, 1, 2}, want: 1.3},
		{name: "fractional ratings", ratings: []float64{4.5, 3.5}, want: 4.0},
		{name: "exact half", ratings: []float64{4, 4.5}, want: 4.3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Average(tc.ratings); got != tc.want {
				t.Fatalf("average(%v) = %v, want %v", tc.ratings, got, tc.want)
			}
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, Descending)
	if s.Count != 0 || s.Average != 0 {
		t.Fatalf("expected zero summary, got %+v", s)
	}
	if s.Distribution == nil || len(s.Distribution) != 0 {
		t.Fatalf("expected empty non-nil distribution, got %#v", s.Distribution)
	}
}

func TestSummarizeDistributionDescending(t *testing.T) {
	s := Summarize([]float64{5, 4, 5, 3, 5, 4}, Descending)
	if s.Count != 6 {
		t.Fatalf("count = %d, want 6", s.Count)
	}
	if s.Min != 3 || s.Max != 5 {
		t.Fatalf("min/max = %v/%v, want 3/5", s.Min, s.Max)
	}
	want := []Bucket{
		{Rating: 5, Count: 3, Percentage: 50},
		{Rating: 4, Count: 2, Percentage: 33},
		{Rating: 3, Count: 1, Percentage: 17},
	}
	if len(s.Distribution) != len(want) {
		t.Fatalf("distribution len = %d, want %d", len(s.Distribution), len(want))
	}
	for i := range want {
		if s.Distribution[i] != want[i] {
			t.Fatalf("bucket %d = %+v, want %+v", i, s.Distribution[i], want[i])
		}
	}
}

func TestSummarizeDistributionAscending(t *testing.T) {
	s := Summarize([]float64{2, 1, 5, 2}, Ascending)
	prev := 0.0
	for _, b := range s.Distribution {
		if b.Rating <= prev {
			t.Fatalf("distribution not ascending: %+v", s.Distribution)
		}
		prev = b.Rating
	}
}

func TestSummarizeInvariants(t *testing.T) {
	inputs := [][]float64{
		{1},
		{5, 5, 5},
		{1, 2, 3, 4, 5},
		{1.5, 2.5, 2.5, 4.5, 5, 1},
		{3, 3, 3, 4, 4, 1, 2, 2, 5, 5, 5, 5},
	}
	for _, in := range inputs {
		s := Summarize(in, Descending)
		if s.Average < 1 || s.Average > 5 {
			t.Fatalf("average %v out of range for %v", s.Average, in)
		}
		total := 0
		for _, b := range s.Distribution {
			total += b.Count
		}
		if total != len(in) {
			t.Fatalf("distribution counts sum to %d, want %d", total, len(in))
		}
	}
}

func TestPercentageIsNotNormalised(t *testing.T) {
	// three equal thirds round to 33 each.
	s := Summarize([]float64{1, 2, 3}, Ascending)
	sum := 0
	for _, b := range s.Distribution {
		sum += b.Percentage
	}
	if sum != 99 {
		t.Fatalf("percent sum = %d, want 99", sum)
	}
	if got := Percentage(1, 0); got != 0 {
		t.Fatalf("percentage with zero total = %d, want 0", got)
	}
}
