package smile

// NormalizedPoint is a coordinate in a normalized [0,1] frame.
type NormalizedPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkRegion is one mouth contour. A nil region means the provider did not report it.
type LandmarkRegion []NormalizedPoint

// BoundingBox locates a face in normalized image space.
type BoundingBox struct {
	OriginX float64 `json:"originX"`
	OriginY float64 `json:"originY"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// FaceObservation is the single face reported by a landmark provider.
// Lip points are relative to Box.
type FaceObservation struct {
	Box       BoundingBox    `json:"boundingBox"`
	OuterLips LandmarkRegion `json:"outerLips"`
	InnerLips LandmarkRegion `json:"innerLips"`
}

// InferResult is the response payload of the infer endpoint.
type InferResult struct {
	Smile   bool    `json:"smile"`
	Score   float64 `json:"score"`
	HasFace bool    `json:"hasFace"`
}

// NoFace is returned whenever no usable face was found.
var NoFace = InferResult{Smile: false, Score: 0, HasFace: false}
