package pgd

import "fmt"

// A Range is a half-open interval [Start, End) of point
// indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of points in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Partition splits total points into contiguous ranges for
// the given number of workers.
//
// Every worker but the last gets ceil(total/workers)
// points and the last worker gets the remainder, which may
// be empty. Configurations where the remainder would be
// negative are rejected.
func Partition(total, workers int) ([]Range, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: worker count must be positive (got %d)", ErrConfiguration,
			workers)
	}
	if total < 1 {
		return nil, fmt.Errorf("%w: dataset is empty", ErrConfiguration)
	}
	perWorker := (total + workers - 1) / workers
	last := total - perWorker*(workers-1)
	if last < 0 {
		return nil, fmt.Errorf("%w: cannot split %d points across %d workers "+
			"(%d each leaves %d for the last worker)", ErrConfiguration, total, workers,
			perWorker, last)
	}
	res := make([]Range, workers)
	for i := range res {
		res[i] = Range{Start: i * perWorker, End: (i + 1) * perWorker}
	}
	res[workers-1].End = total
	return res, nil
}
