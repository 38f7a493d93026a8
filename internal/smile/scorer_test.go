package smile

import (
	"math"
	"testing"
)

var unitBox = BoundingBox{OriginX: 0, OriginY: 0, Width: 1, Height: 1}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestScoreWideClosedMouthIsSmile(t *testing.T) {
	obs := &FaceObservation{
		Box: unitBox,
		OuterLips: LandmarkRegion{
			{X: 0.00, Y: 0.50},
			{X: 0.10, Y: 0.50},
			{X: 0.05, Y: 0.49},
			{X: 0.05, Y: 0.51},
		},
	}

	result := NewScorer(DefaultThreshold).Score(obs)
	if !result.HasFace {
		t.Fatal("expected face to be reported")
	}
	if !result.Smile {
		t.Fatalf("expected smile, got score %f", result.Score)
	}
	if want := 0.10 / 0.0201; !approxEqual(result.Score, want) {
		t.Fatalf("expected score %f, got %f", want, result.Score)
	}
}

func TestScoreFallsBackWhenOuterLipsTooShort(t *testing.T) {
	cases := []struct {
		name string
		obs  *FaceObservation
	}{
		{
			name: "inner only",
			obs: &FaceObservation{
				Box:       unitBox,
				InnerLips: LandmarkRegion{{X: 0.2, Y: 0.5}, {X: 0.3, Y: 0.5}},
			},
		},
		{
			name: "three outer points",
			obs: &FaceObservation{
				Box:       unitBox,
				OuterLips: LandmarkRegion{{X: 0.2, Y: 0.5}, {X: 0.25, Y: 0.6}, {X: 0.3, Y: 0.5}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := NewScorer(DefaultThreshold).Score(tc.obs)
			want := 0.1 / 0.0301
			if !approxEqual(result.Score, want) {
				t.Fatalf("expected score %f, got %f", want, result.Score)
			}
			if !result.HasFace || !result.Smile {
				t.Fatalf("unexpected result %+v", result)
			}
		})
	}
}

func TestScoreTreatsMissingMouthAsNoFace(t *testing.T) {
	cases := []struct {
		name string
		obs  *FaceObservation
	}{
		{name: "nil observation", obs: nil},
		{name: "no regions", obs: &FaceObservation{Box: unitBox}},
		{name: "single point", obs: &FaceObservation{Box: unitBox, OuterLips: LandmarkRegion{{X: 0.5, Y: 0.5}}}},
		{name: "empty regions", obs: &FaceObservation{Box: unitBox, OuterLips: LandmarkRegion{}, InnerLips: LandmarkRegion{}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := NewScorer(DefaultThreshold).Score(tc.obs)
			if result != NoFace {
				t.Fatalf("expected %+v, got %+v", NoFace, result)
			}
		})
	}
}

func TestScoreMapsPointsThroughBoundingBox(t *testing.T) {
	obs := &FaceObservation{
		Box:       BoundingBox{OriginX: 0.2, OriginY: 0.4, Width: 0.5, Height: 0.25},
		InnerLips: LandmarkRegion{{X: 0, Y: 0}, {X: 1, Y: 0}},
	}

	result := NewScorer(DefaultThreshold).Score(obs)
	if want := 0.5 / 0.0301; !approxEqual(result.Score, want) {
		t.Fatalf("expected score %f, got %f", want, result.Score)
	}
}

func TestScoreUsesFirstCornerOnTies(t *testing.T) {
	obs := &FaceObservation{
		Box:       unitBox,
		InnerLips: LandmarkRegion{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}},
	}

	result := NewScorer(DefaultThreshold).Score(obs)
	if want := 1 / 0.0301; !approxEqual(result.Score, want) {
		t.Fatalf("expected score %f, got %f", want, result.Score)
	}
}

func TestScoreClampsMouthOpen(t *testing.T) {
	obs := &FaceObservation{
		Box: unitBox,
		OuterLips: LandmarkRegion{
			{X: 0.0, Y: 0.5},
			{X: 0.1, Y: 0.5},
			{X: 0.1, Y: 0.5},
			{X: 0.0, Y: 0.5},
		},
	}

	result := NewScorer(DefaultThreshold).Score(obs)
	if want := 0.1 / 0.0002; !approxEqual(result.Score, want) {
		t.Fatalf("expected score %f, got %f", want, result.Score)
	}
}

func TestScoreDecisionFollowsThreshold(t *testing.T) {
	obs := &FaceObservation{
		Box: unitBox,
		OuterLips: LandmarkRegion{
			{X: 0.30, Y: 0.60},
			{X: 0.40, Y: 0.55},
			{X: 0.50, Y: 0.60},
			{X: 0.40, Y: 0.68},
			{X: 0.35, Y: 0.66},
			{X: 0.45, Y: 0.66},
		},
		InnerLips: LandmarkRegion{{X: 0.33, Y: 0.61}, {X: 0.47, Y: 0.61}},
	}

	base := NewScorer(DefaultThreshold).Score(obs)
	for _, threshold := range []float64{0, 1, base.Score, base.Score - 1e-9, 100} {
		result := NewScorer(threshold).Score(obs)
		if result.Score != base.Score {
			t.Fatalf("score changed with threshold %f: %f != %f", threshold, result.Score, base.Score)
		}
		if result.Smile != (result.Score > threshold) {
			t.Fatalf("threshold %f: smile=%t for score %f", threshold, result.Smile, result.Score)
		}
		if result.Score < 0 {
			t.Fatalf("negative score %f", result.Score)
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	obs := &FaceObservation{
		Box: BoundingBox{OriginX: 0.1, OriginY: 0.1, Width: 0.6, Height: 0.7},
		OuterLips: LandmarkRegion{
			{X: 0.31, Y: 0.70}, {X: 0.42, Y: 0.66}, {X: 0.58, Y: 0.66},
			{X: 0.69, Y: 0.70}, {X: 0.58, Y: 0.78}, {X: 0.42, Y: 0.78},
		},
	}

	scorer := NewScorer(DefaultThreshold)
	first := scorer.Score(obs)
	for i := 0; i < 10; i++ {
		if got := scorer.Score(obs); got != first {
			t.Fatalf("run %d: expected %+v, got %+v", i, first, got)
		}
	}
}
