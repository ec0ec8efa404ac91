package bsp

import (
	"sort"

	"github.com/Faultbox/quetoo-render/pkg/formats"
)

// Bucket is a render style partition of surfaces.
type Bucket uint8

// Primary buckets first; each surface is in exactly one of them.
const (
	BucketSky Bucket = iota
	BucketBlendWarp
	BucketBlend
	BucketOpaqueWarp
	BucketAlphaTest
	BucketOpaque

	// secondary buckets
	BucketMaterial
	BucketFlare
	BucketBack

	NumBuckets
)

var bucketNames = [NumBuckets]string{
	BucketSky:        "sky",
	BucketBlendWarp:  "blend_warp",
	BucketBlend:      "blend",
	BucketOpaqueWarp: "opaque_warp",
	BucketAlphaTest:  "alpha_test",
	BucketOpaque:     "opaque",
	BucketMaterial:   "material",
	BucketFlare:      "flare",
	BucketBack:       "back",
}

func (b Bucket) String() string {
	if b < NumBuckets {
		return bucketNames[b]
	}
	return "unknown"
}

// Buckets holds surface indices per bucket, each sorted by material.
type Buckets [NumBuckets][]int

// Total returns the number of bucket entries, counting secondary ones.
func (b *Buckets) Total() int {
	n := 0
	for _, s := range b {
		n += len(s)
	}
	return n
}

// classify calls fn with the primary bucket of s, then with each secondary
// bucket s joins.
func classify(s *Surface, fn func(Bucket)) {
	if s.Has(formats.SurfSky) {
		fn(BucketSky)
		return
	}

	warp := s.Has(formats.SurfWarp)
	switch {
	case s.Has(formats.SurfBlend33 | formats.SurfBlend66):
		if warp {
			fn(BucketBlendWarp)
		} else {
			fn(BucketBlend)
		}
	case warp:
		fn(BucketOpaqueWarp)
	case s.Has(formats.SurfAlphaTest):
		fn(BucketAlphaTest)
	default:
		fn(BucketOpaque)
	}

	if s.Material != nil && s.Material.Stages {
		fn(BucketMaterial)
	}
	if s.Material != nil && s.Material.Flare {
		fn(BucketFlare)
	}
	if !warp {
		fn(BucketBack)
	}
}

// SortSurfaces partitions surfaces[first:first+count] into buckets. Each
// bucket is sized by a counting pass before it is filled.
func SortSurfaces(surfaces []Surface, first, count int) Buckets {
	var counts [NumBuckets]int
	for i := first; i < first+count; i++ {
		classify(&surfaces[i], func(b Bucket) { counts[b]++ })
	}

	var out Buckets
	for b, n := range counts {
		if n > 0 {
			out[b] = make([]int, 0, n)
		}
	}
	for i := first; i < first+count; i++ {
		classify(&surfaces[i], func(b Bucket) { out[b] = append(out[b], i) })
	}

	for _, idx := range out {
		sort.SliceStable(idx, func(a, b int) bool {
			return materialID(&surfaces[idx[a]]) < materialID(&surfaces[idx[b]])
		})
	}
	return out
}

func materialID(s *Surface) int {
	if s.Material == nil {
		return -1
	}
	return s.Material.ID
}
