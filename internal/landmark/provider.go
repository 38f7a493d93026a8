// Package landmark defines the face landmark provider boundary and the
// wrappers the service puts around whichever provider is configured.
package landmark

import (
	"context"
	"errors"

	"github.com/example/smile-overlay/internal/smile"
)

// ErrUndecodableImage is returned when the submitted bytes cannot be decoded as an image.
var ErrUndecodableImage = errors.New("image could not be decoded")

// Provider detects at most one face and its mouth landmarks.
// A nil observation with a nil error means the image decoded but no face was found.
type Provider interface {
	Detect(ctx context.Context, image []byte) (*smile.FaceObservation, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, image []byte) (*smile.FaceObservation, error)

// Detect calls f.
func (f ProviderFunc) Detect(ctx context.Context, image []byte) (*smile.FaceObservation, error) {
	return f(ctx, image)
}
