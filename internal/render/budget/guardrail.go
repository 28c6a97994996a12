package budget

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
)

// Limits bounds a batch. Zero fields fall back to the guardrail defaults.
type Limits struct {
	MaxCostUSD         float64 `json:"max_cost_usd" yaml:"max_cost_usd"`
	MaxViews           int     `json:"max_views" yaml:"max_views"`
	MaxDurationSeconds int     `json:"max_duration_seconds" yaml:"max_duration_seconds"`
	WarnThresholdUSD   float64 `json:"warn_threshold_usd" yaml:"warn_threshold_usd"`
}

// Config holds the static pricing tables. Figures are approximations kept as
// configuration; they are not live provider prices.
type Config struct {
	ModelCosts         map[domain.Model]float64
	DefaultModelCost   float64
	QualityMultipliers map[domain.Quality]float64
	SecondsPerView     int
	Concurrency        int
	DisplayCurrency    string
	DisplayRate        float64
	Limits             Limits
}

// DefaultConfig returns the built-in pricing tables and limits
func DefaultConfig() Config {
	return Config{
		ModelCosts: map[domain.Model]float64{
			domain.ModelFlux11Pro: 0.005,
			domain.ModelFluxPro:   0.004,
			domain.ModelImagen4:   0.004,
			domain.ModelSeedream4: 0.003,
			domain.ModelSDXL:      0.002,
		},
		DefaultModelCost: 0.004,
		QualityMultipliers: map[domain.Quality]float64{
			domain.QualityDraft:    0.5,
			domain.QualityStandard: 1.0,
			domain.QualityHD:       1.5,
			domain.Quality4K:       2.0,
			domain.Quality8K:       3.0,
		},
		SecondsPerView:  60,
		Concurrency:     2,
		DisplayCurrency: "XOF",
		DisplayRate:     655,
		Limits: Limits{
			MaxCostUSD:         1.0,
			MaxViews:           50,
			MaxDurationSeconds: 3600,
			WarnThresholdUSD:   0.5,
		},
	}
}

// Bucket is the count and cost of one slice of a batch
type Bucket struct {
	Count   int     `json:"count"`
	CostUSD float64 `json:"cost_usd"`
}

type Breakdown struct {
	Exteriors Bucket `json:"exteriors"`
	Interiors Bucket `json:"interiors"`
	Variants  Bucket `json:"variants"`
}

// Estimate is derived on demand and never stored
type Estimate struct {
	TotalViews      int       `json:"total_views"`
	CostUSD         float64   `json:"cost_usd"`
	CostDisplay     float64   `json:"cost_display"`
	DisplayCurrency string    `json:"display_currency"`
	DurationSeconds int       `json:"duration_seconds"`
	Breakdown       Breakdown `json:"breakdown"`
	Warnings        []string  `json:"warnings"`

	cost Micros
}

// Check is the result of a limit gate
type Check struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons"`
}

// Optimization partitions a batch into kept and dropped views
type Optimization struct {
	Optimized  []domain.ViewSpec `json:"optimized"`
	Removed    []domain.ViewSpec `json:"removed"`
	SavingsUSD float64           `json:"savings_usd"`
}

// Guardrail estimates batch cost and duration and trims batches to limits
type Guardrail struct {
	cfg         Config
	modelCosts  map[domain.Model]Micros
	defaultCost Micros
	logger      *slog.Logger
}

// NewGuardrail creates a Guardrail. Missing table entries are filled from
// DefaultConfig.
func NewGuardrail(cfg Config, logger *slog.Logger) *Guardrail {
	def := DefaultConfig()
	if cfg.ModelCosts == nil {
		cfg.ModelCosts = def.ModelCosts
	}
	if cfg.DefaultModelCost <= 0 {
		cfg.DefaultModelCost = def.DefaultModelCost
	}
	if cfg.QualityMultipliers == nil {
		cfg.QualityMultipliers = def.QualityMultipliers
	}
	if cfg.SecondsPerView <= 0 {
		cfg.SecondsPerView = def.SecondsPerView
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.DisplayCurrency == "" {
		cfg.DisplayCurrency = def.DisplayCurrency
	}
	if cfg.DisplayRate <= 0 {
		cfg.DisplayRate = def.DisplayRate
	}
	cfg.Limits = mergeLimits(def.Limits, cfg.Limits)

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	costs := make(map[domain.Model]Micros, len(cfg.ModelCosts))
	for model, usd := range cfg.ModelCosts {
		costs[model] = FromUSD(usd)
	}

	return &Guardrail{
		cfg:         cfg,
		modelCosts:  costs,
		defaultCost: FromUSD(cfg.DefaultModelCost),
		logger:      logger,
	}
}

// Limits returns the effective default limits
func (g *Guardrail) Limits() Limits {
	return g.cfg.Limits
}

// ViewCost is the per-model base cost times the per-quality multiplier
func (g *Guardrail) ViewCost(view domain.ViewSpec) Micros {
	base, ok := g.modelCosts[view.Model]
	if !ok {
		base = g.defaultCost
	}
	mult, ok := g.cfg.QualityMultipliers[view.Quality]
	if !ok {
		mult = 1.0
	}
	return Micros(math.Round(float64(base) * mult))
}

// EstimateViewCost returns ViewCost in dollars
func (g *Guardrail) EstimateViewCost(view domain.ViewSpec) float64 {
	return g.ViewCost(view).USD()
}

// EstimateBatch sums bucket costs and attaches threshold warnings. Buckets
// are disjoint: a variant is counted only in the variant bucket.
func (g *Guardrail) EstimateBatch(views []domain.ViewSpec) Estimate {
	var ext, inter, vars Micros
	var b Breakdown

	for _, v := range views {
		cost := g.ViewCost(v)
		switch {
		case IsVariant(v):
			b.Variants.Count++
			vars += cost
		case v.IsExterior():
			b.Exteriors.Count++
			ext += cost
		default:
			b.Interiors.Count++
			inter += cost
		}
	}
	b.Exteriors.CostUSD = ext.USD()
	b.Interiors.CostUSD = inter.USD()
	b.Variants.CostUSD = vars.USD()

	total := ext + inter + vars
	duration := g.Duration(len(views))

	warnings := make([]string, 0)
	if total > FromUSD(g.cfg.Limits.WarnThresholdUSD) {
		warnings = append(warnings, fmt.Sprintf("High cost: %.2f USD (%s)", total.USD(), g.FormatDisplay(total.USD())))
	}
	if len(views) > g.cfg.Limits.MaxViews {
		warnings = append(warnings, fmt.Sprintf("High view count: %d views", len(views)))
	}
	if duration > g.cfg.Limits.MaxDurationSeconds {
		warnings = append(warnings, fmt.Sprintf("Long estimated duration: %s", FormatDuration(duration)))
	}

	return Estimate{
		TotalViews:      len(views),
		CostUSD:         total.USD(),
		CostDisplay:     total.USD() * g.cfg.DisplayRate,
		DisplayCurrency: g.cfg.DisplayCurrency,
		DurationSeconds: duration,
		Breakdown:       b,
		Warnings:        warnings,
		cost:            total,
	}
}

// Duration is ceil(count * secondsPerView / concurrency)
func (g *Guardrail) Duration(count int) int {
	total := count * g.cfg.SecondsPerView
	return (total + g.cfg.Concurrency - 1) / g.cfg.Concurrency
}

// CheckLimits is a pure gate. Zero fields in limits take the defaults.
func (g *Guardrail) CheckLimits(views []domain.ViewSpec, limits Limits) Check {
	limits = mergeLimits(g.cfg.Limits, limits)
	est := g.EstimateBatch(views)

	reasons := make([]string, 0)
	if est.cost > FromUSD(limits.MaxCostUSD) {
		reasons = append(reasons, fmt.Sprintf("Cost too high: %.2f USD > %.2f USD limit", est.CostUSD, limits.MaxCostUSD))
	}
	if est.TotalViews > limits.MaxViews {
		reasons = append(reasons, fmt.Sprintf("Too many views: %d > %d limit", est.TotalViews, limits.MaxViews))
	}
	if est.DurationSeconds > limits.MaxDurationSeconds {
		reasons = append(reasons, fmt.Sprintf("Duration too long: %s > %s limit",
			FormatDuration(est.DurationSeconds), FormatDuration(limits.MaxDurationSeconds)))
	}

	return Check{Allowed: len(reasons) == 0, Reasons: reasons}
}

// Optimize returns views unchanged when they already fit. Otherwise it walks
// views in priority order and keeps each one that still fits under the cost
// and count ceilings.
func (g *Guardrail) Optimize(views []domain.ViewSpec, limits Limits) Optimization {
	limits = mergeLimits(g.cfg.Limits, limits)

	if g.CheckLimits(views, limits).Allowed {
		return Optimization{
			Optimized: append([]domain.ViewSpec(nil), views...),
			Removed:   []domain.ViewSpec{},
		}
	}

	maxCost := FromUSD(limits.MaxCostUSD)
	optimized := make([]domain.ViewSpec, 0, len(views))
	removed := make([]domain.ViewSpec, 0)
	var kept, dropped Micros

	for _, v := range Prioritize(views) {
		cost := g.ViewCost(v)
		if kept+cost <= maxCost && len(optimized) < limits.MaxViews {
			optimized = append(optimized, v)
			kept += cost
			continue
		}
		removed = append(removed, v)
		dropped += cost
	}

	g.logger.Info("Batch optimized to fit budget",
		slog.Int("kept", len(optimized)),
		slog.Int("removed", len(removed)),
		slog.Float64("savings_usd", dropped.USD()),
	)

	return Optimization{
		Optimized:  optimized,
		Removed:    removed,
		SavingsUSD: dropped.USD(),
	}
}

// SuggestOptimizations returns advisory hints. It has no side effects.
func (g *Guardrail) SuggestOptimizations(views []domain.ViewSpec) []string {
	var suggestions []string

	var highQuality, variants, premium int
	for _, v := range views {
		if v.Quality == domain.QualityHD || v.Quality == domain.Quality4K || v.Quality == domain.Quality8K {
			highQuality++
		}
		if IsVariant(v) {
			variants++
		}
		if v.Model == domain.ModelFlux11Pro || v.Model == domain.ModelImagen4 {
			premium++
		}
	}

	if highQuality > 10 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Lower %d high-definition views to standard quality to save about %.2f USD",
			highQuality, float64(highQuality)*0.002))
	}
	if variants > 10 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Reduce variants from %d to 5-10 to save about %.2f USD",
			variants, float64(variants)*0.002))
	}
	if premium > 15 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Use %s or %s for %d views to save about %.2f USD",
			domain.ModelFluxPro, domain.ModelSeedream4, premium, float64(premium)*0.001))
	}
	suggestions = append(suggestions, "Keep the render cache enabled to avoid paying for identical renders twice")

	return suggestions
}

// FormatDisplay renders a dollar amount in the display currency
func (g *Guardrail) FormatDisplay(usd float64) string {
	amount := int64(math.Round(usd * g.cfg.DisplayRate))
	return fmt.Sprintf("%s %s", groupThousands(amount), g.cfg.DisplayCurrency)
}

// FormatDuration renders seconds as "45s", "3 min" or "1h 5min"
func FormatDuration(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%d min", (seconds+59)/60)
	default:
		hours := seconds / 3600
		minutes := (seconds%3600 + 59) / 60
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	}
}

// variantMarkers are the id suffixes the expander appends to twins
var variantMarkers = func() []string {
	markers := []string{
		string(domain.TimeNight), string(domain.TimeSunset),
		string(domain.SeasonSpring), string(domain.SeasonSummer),
		string(domain.SeasonAutumn), string(domain.SeasonWinter),
	}
	for _, s := range domain.AllDecorationStyles {
		markers = append(markers, string(s))
	}
	for _, m := range domain.AllLightingModes {
		markers = append(markers, string(m))
	}
	return markers
}()

// IsVariant reports whether the view id carries a variant marker suffix
func IsVariant(v domain.ViewSpec) bool {
	for _, marker := range variantMarkers {
		if strings.HasSuffix(v.ID, "-"+marker) {
			return true
		}
	}
	return false
}

// Prioritize returns a stably sorted copy: base before variant, exterior
// before interior, main facade first, wide interior shots before details.
func Prioritize(views []domain.ViewSpec) []domain.ViewSpec {
	out := append([]domain.ViewSpec(nil), views...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i]) < rank(out[j])
	})
	return out
}

func rank(v domain.ViewSpec) int {
	r := 0
	if IsVariant(v) {
		r += 8
	}
	if !v.IsExterior() {
		r += 4
	}
	if v.Type != domain.ViewFacadeMain {
		r += 2
	}
	if v.Type == domain.ViewInteriorDetail {
		r++
	}
	return r
}

func mergeLimits(base, override Limits) Limits {
	if override.MaxCostUSD > 0 {
		base.MaxCostUSD = override.MaxCostUSD
	}
	if override.MaxViews > 0 {
		base.MaxViews = override.MaxViews
	}
	if override.MaxDurationSeconds > 0 {
		base.MaxDurationSeconds = override.MaxDurationSeconds
	}
	if override.WarnThresholdUSD > 0 {
		base.WarnThresholdUSD = override.WarnThresholdUSD
	}
	return base
}
