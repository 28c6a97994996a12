package variant

import (
	"fmt"
	"math"
	"strings"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
)

// Policy controls which twins are derived from a base view. A
// MaxVariantsPerView of zero or less leaves the list uncapped.
type Policy = domain.VariantSettings

// vegetationSeasons are the seasons offered for views showing greenery
var vegetationSeasons = []domain.Season{domain.SeasonSummer, domain.SeasonWinter}

// Expander derives temporal and stylistic twins from base views
type Expander struct {
	defaultCap int
}

// NewExpander creates an Expander. defaultCap applies when a policy leaves
// MaxVariantsPerView unset.
func NewExpander(defaultCap int) *Expander {
	return &Expander{defaultCap: defaultCap}
}

// Expand returns base first, followed by its twins in policy order
func (e *Expander) Expand(base domain.ViewSpec, policy Policy) []domain.ViewSpec {
	var views []domain.ViewSpec
	if base.IsExterior() {
		views = exteriorTwins(base, policy)
	} else {
		views = interiorTwins(base, policy)
	}
	return truncate(views, e.cap(policy))
}

// ExpandAll expands every base view and concatenates the results
func (e *Expander) ExpandAll(bases []domain.ViewSpec, policy Policy) []domain.ViewSpec {
	var out []domain.ViewSpec
	for _, base := range bases {
		out = append(out, e.Expand(base, policy)...)
	}
	return out
}

// Count returns how many views ExpandAll would produce
func (e *Expander) Count(bases []domain.ViewSpec, policy Policy) int {
	total := 0
	for _, base := range bases {
		total += len(e.Expand(base, policy))
	}
	return total
}

// EstimateCostUSD multiplies the expanded count by a flat unit cost
func (e *Expander) EstimateCostUSD(bases []domain.ViewSpec, policy Policy, costPerView float64) float64 {
	return float64(e.Count(bases, policy)) * costPerView
}

// EstimateDurationSeconds is ceil(count * secondsPerView / concurrency)
func (e *Expander) EstimateDurationSeconds(bases []domain.ViewSpec, policy Policy, secondsPerView float64, concurrency int) int {
	if concurrency <= 0 {
		concurrency = 1
	}
	n := float64(e.Count(bases, policy))
	return int(math.Ceil(n * secondsPerView / float64(concurrency)))
}

// Grid returns every decoration x lighting combination of an interior base.
// It is uncapped and only meant for explicit side-by-side comparisons.
// Exterior bases come back unchanged.
func (e *Expander) Grid(base domain.ViewSpec, styles []domain.DecorationStyle, modes []domain.LightingMode) []domain.ViewSpec {
	if base.IsExterior() {
		return []domain.ViewSpec{base}
	}

	subject := baseSubject(base.Subject)
	views := make([]domain.ViewSpec, 0, len(styles)*len(modes))
	for _, style := range styles {
		for _, mode := range modes {
			v := base.Clone()
			v.ID = fmt.Sprintf("%s-%s-%s", base.ID, style, mode)
			v.DecorationStyle = style
			v.LightingMode = mode
			v.Subject = fmt.Sprintf("%s (%s, %s)", subject, style, mode)
			views = append(views, v)
		}
	}
	return views
}

// Smart is the light-weight expansion: exteriors get a night twin only,
// interiors get at most one alternate decoration and one alternate lighting.
func (e *Expander) Smart(bases []domain.ViewSpec, policy Policy) []domain.ViewSpec {
	var out []domain.ViewSpec
	for _, base := range bases {
		out = append(out, base)

		if base.IsExterior() {
			if policy.GenerateDayNight && base.TimeOfDay == domain.TimeDay {
				out = append(out, timeTwin(base, domain.TimeNight))
			}
			continue
		}

		for _, style := range policy.DecorationStyles {
			if style != base.DecorationStyle {
				out = append(out, decorationTwin(base, style))
				break
			}
		}
		for _, mode := range policy.LightingModes {
			if mode != base.LightingMode {
				out = append(out, lightingTwin(base, mode))
				break
			}
		}
	}
	return out
}

// FilterByBudget keeps the leading views a flat unit cost can pay for
func FilterByBudget(views []domain.ViewSpec, maxCostUSD, costPerView float64) []domain.ViewSpec {
	if costPerView <= 0 {
		return views
	}
	n := int(math.Floor(maxCostUSD/costPerView + 1e-9))
	if n <= 0 {
		return nil
	}
	return truncate(views, n)
}

func (e *Expander) cap(policy Policy) int {
	if policy.MaxVariantsPerView > 0 {
		return policy.MaxVariantsPerView
	}
	return e.defaultCap
}

func exteriorTwins(base domain.ViewSpec, policy Policy) []domain.ViewSpec {
	views := []domain.ViewSpec{base}

	if policy.GenerateDayNight {
		if base.TimeOfDay == domain.TimeDay {
			views = append(views, timeTwin(base, domain.TimeNight))
		}
		if base.TimeOfDay != domain.TimeSunset {
			views = append(views, timeTwin(base, domain.TimeSunset))
		}
	}

	if policy.GenerateSeasons && base.Type.HasVegetation() {
		for _, season := range vegetationSeasons {
			if season == base.Season {
				continue
			}
			v := base.Clone()
			v.ID = fmt.Sprintf("%s-%s", base.ID, season)
			v.Season = season
			v.Subject = fmt.Sprintf("%s (%s)", base.Subject, season)
			views = append(views, v)
		}
	}

	return views
}

func interiorTwins(base domain.ViewSpec, policy Policy) []domain.ViewSpec {
	views := []domain.ViewSpec{base}

	for _, style := range policy.DecorationStyles {
		if style != base.DecorationStyle {
			views = append(views, decorationTwin(base, style))
		}
	}
	for _, mode := range policy.LightingModes {
		if mode != base.LightingMode {
			views = append(views, lightingTwin(base, mode))
		}
	}

	return views
}

func timeTwin(base domain.ViewSpec, t domain.TimeOfDay) domain.ViewSpec {
	v := base.Clone()
	v.ID = fmt.Sprintf("%s-%s", base.ID, t)
	v.TimeOfDay = t
	v.Subject = fmt.Sprintf("%s (%s)", base.Subject, t)
	return v
}

func decorationTwin(base domain.ViewSpec, style domain.DecorationStyle) domain.ViewSpec {
	v := base.Clone()
	v.ID = fmt.Sprintf("%s-%s", base.ID, style)
	v.DecorationStyle = style
	v.Subject = fmt.Sprintf("%s (%s)", baseSubject(base.Subject), style)
	return v
}

func lightingTwin(base domain.ViewSpec, mode domain.LightingMode) domain.ViewSpec {
	v := base.Clone()
	v.ID = fmt.Sprintf("%s-%s", base.ID, mode)
	v.LightingMode = mode
	v.Subject = fmt.Sprintf("%s (%s)", baseSubject(base.Subject), mode)
	return v
}

// baseSubject drops a trailing parenthesised annotation
func baseSubject(subject string) string {
	if i := strings.Index(subject, "("); i >= 0 {
		return strings.TrimSpace(subject[:i])
	}
	return subject
}

func truncate(views []domain.ViewSpec, limit int) []domain.ViewSpec {
	if limit <= 0 || len(views) <= limit {
		return views
	}
	return views[:limit]
}
