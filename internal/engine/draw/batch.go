package draw

import "github.com/Faultbox/quetoo-render/internal/engine/gpu"

// Range is a run of elements or vertices.
type Range struct {
	Start int
	Count int
}

// End returns the first index past r.
func (r Range) End() int { return r.Start + r.Count }

// Coalesce merges each range into its predecessor when it starts where the
// predecessor ends. Order is kept, empty ranges are dropped, and the result
// reuses the backing array of ranges.
func Coalesce(ranges []Range) []Range {
	out := ranges[:0]
	for _, r := range ranges {
		if r.Count <= 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].End() == r.Start {
			out[n-1].Count += r.Count
			continue
		}
		out = append(out, r)
	}
	return out
}

// Batch accumulates ranges for one draw state and flushes them as few
// draws as adjacency allows.
type Batch struct {
	Mode   gpu.Primitive
	ranges []Range
}

// Add appends a range, extending the last one when contiguous.
func (b *Batch) Add(start, count int) {
	if count <= 0 {
		return
	}
	if n := len(b.ranges); n > 0 && b.ranges[n-1].End() == start {
		b.ranges[n-1].Count += count
		return
	}
	b.ranges = append(b.ranges, Range{Start: start, Count: count})
}

// Len returns the number of pending draws.
func (b *Batch) Len() int { return len(b.ranges) }

// Flush draws every pending range and empties the batch.
func (b *Batch) Flush(d *Dispatcher) {
	for _, r := range b.ranges {
		d.Draw(b.Mode, r.Start, r.Count)
	}
	b.ranges = b.ranges[:0]
}
