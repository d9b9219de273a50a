// Package image defines the collaborator contract for rendering a
// visualization of a generative opportunity.
package image

import (
	"context"

	"github.com/MrWong99/gaia/pkg/types"
)

// Provider turns a prompt into an image reference.
//
// Implementations must be safe for concurrent use. An error means the image
// is unavailable; callers report a null image URL.
type Provider interface {
	Generate(ctx context.Context, prompt string) (types.GeneratedImage, error)
}
