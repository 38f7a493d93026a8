package smile

import (
	"cmp"
	"math"
	"slices"
)

const (
	// DefaultThreshold is the score above which a mouth is classified as smiling.
	DefaultThreshold = 2.2

	fallbackMouthOpen = 0.03
	minMouthOpen      = 1e-4
	scoreEpsilon      = 1e-4
	minOpenSamples    = 4
)

// Scorer turns mouth landmark geometry into a smile decision.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	threshold float64
}

// NewScorer constructs a scorer with the given decision threshold.
func NewScorer(threshold float64) *Scorer {
	return &Scorer{threshold: threshold}
}

// Threshold returns the configured decision threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score computes the smile result for a face observation. A nil observation means no face.
func (s *Scorer) Score(obs *FaceObservation) InferResult {
	if obs == nil || (obs.OuterLips == nil && obs.InnerLips == nil) {
		return NoFace
	}

	outer := mapRegion(obs.OuterLips, obs.Box)
	inner := mapRegion(obs.InnerLips, obs.Box)

	mouth := make([]NormalizedPoint, 0, len(outer)+len(inner))
	mouth = append(mouth, outer...)
	mouth = append(mouth, inner...)

	// A face with too few mouth points is reported the same way as no face at all.
	if len(mouth) < 2 {
		return NoFace
	}

	left, right := horizontalExtremes(mouth)
	mouthWidth := distance(left, right)
	mouthOpen := estimateMouthOpen(outer)

	score := mouthWidth / (mouthOpen + scoreEpsilon)
	return InferResult{
		Smile:   score > s.threshold,
		Score:   score,
		HasFace: true,
	}
}

func mapRegion(region LandmarkRegion, box BoundingBox) []NormalizedPoint {
	if region == nil {
		return nil
	}
	mapped := make([]NormalizedPoint, 0, len(region))
	for _, p := range region {
		mapped = append(mapped, NormalizedPoint{
			X: box.OriginX + box.Width*p.X,
			Y: box.OriginY + box.Height*p.Y,
		})
	}
	return mapped
}

// horizontalExtremes returns the first point with minimum X and the first with maximum X.
func horizontalExtremes(points []NormalizedPoint) (NormalizedPoint, NormalizedPoint) {
	left, right := points[0], points[0]
	for _, p := range points[1:] {
		if p.X < left.X {
			left = p
		}
		if p.X > right.X {
			right = p
		}
	}
	return left, right
}

func estimateMouthOpen(outer []NormalizedPoint) float64 {
	if len(outer) < minOpenSamples {
		return fallbackMouthOpen
	}

	sorted := slices.Clone(outer)
	slices.SortStableFunc(sorted, func(a, b NormalizedPoint) int {
		return cmp.Compare(a.Y, b.Y)
	})

	n := max(1, len(sorted)/4)
	upper := centroid(sorted[:n])
	lower := centroid(sorted[len(sorted)-n:])
	return math.Max(distance(upper, lower), minMouthOpen)
}

func centroid(points []NormalizedPoint) NormalizedPoint {
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	count := float64(len(points))
	return NormalizedPoint{X: sx / count, Y: sy / count}
}

func distance(a, b NormalizedPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
