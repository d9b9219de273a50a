// Package placeholder provides an image.Provider that answers every prompt
// with a placeholder SVG reference instead of generating an image.
package placeholder

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrWong99/gaia/pkg/provider/image"
	"github.com/MrWong99/gaia/pkg/types"
)

const (
	defaultWidth  = 400
	defaultHeight = 300

	// labelRunes is how much of the prompt ends up in the placeholder label.
	labelRunes = 20
)

// Provider builds placeholder image URLs.
type Provider struct {
	base   string
	width  int
	height int
}

// Option configures a Provider.
type Option func(*Provider)

// WithBase sets the placeholder path (default "/placeholder.svg").
func WithBase(base string) Option {
	return func(p *Provider) { p.base = base }
}

// WithSize sets the requested placeholder dimensions.
func WithSize(width, height int) Option {
	return func(p *Provider) {
		p.width = width
		p.height = height
	}
}

// New returns a placeholder Provider.
func New(opts ...Option) *Provider {
	p := &Provider{base: "/placeholder.svg", width: defaultWidth, height: defaultHeight}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Generate returns the placeholder for prompt.
func (p *Provider) Generate(ctx context.Context, prompt string) (types.GeneratedImage, error) {
	if err := ctx.Err(); err != nil {
		return types.GeneratedImage{}, err
	}
	label := prompt
	if r := []rune(prompt); len(r) > labelRunes {
		label = string(r[:labelRunes])
	}
	return types.GeneratedImage{
		URL:         fmt.Sprintf("%s?height=%d&width=%d&text=%s", p.base, p.height, p.width, escapeComponent(label)),
		Description: "Generated visualization: " + prompt,
	}, nil
}

// escapeComponent percent-encodes s for use as a single query value, with
// spaces as %20 rather than '+'.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

var _ image.Provider = (*Provider)(nil)
