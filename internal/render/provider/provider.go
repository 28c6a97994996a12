package provider

import (
	"context"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
)

// Style is the provider-side rendering style
type Style string

const (
	Style3DModern      Style = "3d-modern"
	Style3DTraditional Style = "3d-traditional"
	Style3DIndustrial  Style = "3d-industrial"
	Style3DMinimalist  Style = "3d-minimalist"
	Style3DAfrican     Style = "3d-african"
)

// Request is one render call. Prompt and NegativePrompt are prebuilt by the
// caller; the remaining fields steer model selection and output size.
type Request struct {
	InputImage     string           `json:"input_image"`
	Style          Style            `json:"style"`
	ViewAngle      domain.ViewAngle `json:"view_angle"`
	TimeOfDay      domain.TimeOfDay `json:"time_of_day"`
	Quality        domain.Quality   `json:"quality"`
	VariationCount int              `json:"variation_count"`
	Model          domain.Model     `json:"model"`
	Prompt         string           `json:"prompt"`
	NegativePrompt string           `json:"negative_prompt"`
	Seed           int64            `json:"seed,omitempty"`
}

// Result is one image returned by the provider
type Result struct {
	ID           string  `json:"id"`
	ImageURL     string  `json:"image_url"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	CostUSD      float64 `json:"cost_usd"`
}

// Status values reported through Progress
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Progress is an intermediate update from a running render
type Progress struct {
	Status     string  `json:"status"`
	Percent    float64 `json:"percent"`
	Message    string  `json:"message"`
	ETASeconds int     `json:"eta_seconds"`
}

// ProgressFunc receives progress updates. It may be nil.
type ProgressFunc func(Progress)

// Generator renders images. Implementations must honour ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, req Request, onProgress ProgressFunc) ([]Result, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, req Request, onProgress ProgressFunc) ([]Result, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request, onProgress ProgressFunc) ([]Result, error) {
	return f(ctx, req, onProgress)
}

// LegacyStyle maps an architectural style to the provider style set
func LegacyStyle(style domain.ArchitecturalStyle) Style {
	switch style {
	case domain.StyleModern, domain.StyleContemporary:
		return Style3DModern
	case domain.StyleTraditional, domain.StyleMediterranean, domain.StyleClassic:
		return Style3DTraditional
	case domain.StyleIndustrial:
		return Style3DIndustrial
	case domain.StyleMinimalist:
		return Style3DMinimalist
	default:
		return Style3DModern
	}
}

// LegacyQuality folds the tiers above hd into hd
func LegacyQuality(q domain.Quality) domain.Quality {
	switch q {
	case domain.Quality4K, domain.Quality8K:
		return domain.QualityHD
	case domain.QualityDraft, domain.QualityStandard, domain.QualityHD:
		return q
	default:
		return domain.QualityStandard
	}
}

func report(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}
