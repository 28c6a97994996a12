package pipeline

import (
	"log/slog"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/budget"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/variant"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/viewspec"
)

// PlanRequest describes what to render for one project
type PlanRequest struct {
	Analysis            domain.Analysis             `json:"analysis"`
	PageClassifications []domain.PageClassification `json:"page_classifications"`
	SelectedPages       []int                       `json:"selected_pages"`
	Quality             domain.Quality              `json:"quality,omitempty"`
	IncludeVariants     *bool                       `json:"include_variants,omitempty"`
	GenerateInteriors   *bool                       `json:"generate_interiors,omitempty"`
	GenerateExteriors   *bool                       `json:"generate_exteriors,omitempty"`
	Variants            *domain.VariantSettings     `json:"variants,omitempty"`
	Limits              budget.Limits               `json:"limits"`
	Optimize            bool                        `json:"optimize"`
}

// Options resolves the generator options, defaulting unset flags to true
func (r PlanRequest) Options() viewspec.Options {
	opts := viewspec.DefaultOptions()
	if r.Quality != "" {
		opts.Quality = r.Quality
	}
	if r.IncludeVariants != nil {
		opts.IncludeVariants = *r.IncludeVariants
	}
	if r.GenerateInteriors != nil {
		opts.GenerateInteriors = *r.GenerateInteriors
	}
	if r.GenerateExteriors != nil {
		opts.GenerateExteriors = *r.GenerateExteriors
	}
	return opts
}

// Plan is a budget-checked list of specs ready for the orchestrator
type Plan struct {
	Views           []domain.ViewSpec           `json:"views"`
	BaseViews       int                         `json:"base_views"`
	GlobalSettings  domain.GlobalRenderSettings `json:"global_settings"`
	VariantSettings domain.VariantSettings      `json:"variant_settings"`
	Estimate        budget.Estimate             `json:"estimate"`
	Check           budget.Check                `json:"check"`
	Removed         []domain.ViewSpec           `json:"removed,omitempty"`
	SavingsUSD      float64                     `json:"savings_usd,omitempty"`
	Skipped         []domain.ViewSpec           `json:"skipped,omitempty"`
}

// BatchRequest is the queued form of a batch: a plan request plus the page
// images the jobs render from. Force runs the plan even when it breaks the
// limits. Views, when set, replaces the planned views and skips the limit
// check; it carries the failed views of an earlier attempt.
type BatchRequest struct {
	RequestID   string            `json:"request_id"`
	Plan        PlanRequest       `json:"plan"`
	InputImages map[int]string    `json:"input_images"`
	Force       bool              `json:"force,omitempty"`
	Views       []domain.ViewSpec `json:"views,omitempty"`
	Attempt     int               `json:"attempt,omitempty"`
}

// Planner chains view generation, variant expansion and the budget guardrail
type Planner struct {
	generator *viewspec.Generator
	expander  *variant.Expander
	guardrail *budget.Guardrail
	logger    *slog.Logger
}

// NewPlanner creates a new Planner
func NewPlanner(generator *viewspec.Generator, expander *variant.Expander, guardrail *budget.Guardrail, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{
		generator: generator,
		expander:  expander,
		guardrail: guardrail,
		logger:    logger,
	}
}

// Guardrail exposes the guardrail used for estimates
func (p *Planner) Guardrail() *budget.Guardrail {
	return p.guardrail
}

// Expander exposes the expander used for variants
func (p *Planner) Expander() *variant.Expander {
	return p.expander
}

// Generator exposes the view spec generator
func (p *Planner) Generator() *viewspec.Generator {
	return p.generator
}

// Plan generates base views, expands variants when enabled and, if asked,
// trims the result to the limits. Views without a page, or whose page has no
// entry in a non-nil images map, are skipped before pricing so the limits
// only count jobs that render. Over-budget plans are returned with
// Check.Allowed false; the guardrail is advisory.
func (p *Planner) Plan(req PlanRequest, images map[int]string) Plan {
	return p.plan(req, func(v domain.ViewSpec) bool {
		if v.PageIndex == nil {
			return false
		}
		return images == nil || images[*v.PageIndex] != ""
	})
}

func (p *Planner) plan(req PlanRequest, renderable func(domain.ViewSpec) bool) Plan {
	opts := req.Options()
	generated := p.generator.Generate(req.Analysis, req.PageClassifications, req.SelectedPages, opts)

	policy := generated.VariantSettings
	if req.Variants != nil {
		policy = *req.Variants
	}

	views := generated.Views
	if opts.IncludeVariants {
		views = p.expander.ExpandAll(views, policy)
	}

	plan := Plan{
		BaseViews:       len(generated.Views),
		GlobalSettings:  generated.GlobalSettings,
		VariantSettings: policy,
	}

	views, plan.Skipped = partition(views, renderable)

	if req.Optimize {
		opt := p.guardrail.Optimize(views, req.Limits)
		views = opt.Optimized
		plan.Removed = opt.Removed
		plan.SavingsUSD = opt.SavingsUSD
	}

	plan.Views = views
	plan.Estimate = p.guardrail.EstimateBatch(views)
	plan.Check = p.guardrail.CheckLimits(views, req.Limits)

	p.logger.Info("Render batch planned",
		slog.Int("base_views", plan.BaseViews),
		slog.Int("views", len(plan.Views)),
		slog.Int("removed", len(plan.Removed)),
		slog.Int("skipped", len(plan.Skipped)),
		slog.Float64("cost_usd", plan.Estimate.CostUSD),
		slog.Bool("allowed", plan.Check.Allowed),
	)

	return plan
}

// partition splits views into those keep accepts and the rest, keeping order
func partition(views []domain.ViewSpec, keep func(domain.ViewSpec) bool) (kept, dropped []domain.ViewSpec) {
	kept = make([]domain.ViewSpec, 0, len(views))
	for _, v := range views {
		if keep(v) {
			kept = append(kept, v)
		} else {
			dropped = append(dropped, v)
		}
	}
	return kept, dropped
}
