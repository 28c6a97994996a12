package variant

import (
	"testing"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aerialDay() domain.ViewSpec {
	page := 0
	return domain.ViewSpec{
		ID:        "ext-aerial-oblique",
		Type:      domain.ViewAerialOblique,
		Category:  domain.CategoryExterior,
		PageIndex: &page,
		Subject:   "Aerial view",
		TimeOfDay: domain.TimeDay,
	}
}

func livingRoom() domain.ViewSpec {
	return domain.ViewSpec{
		ID:              "int-r1-wide",
		Type:            domain.ViewInteriorWide,
		Category:        domain.CategoryInterior,
		Subject:         "Living room (wide)",
		TimeOfDay:       domain.TimeDay,
		DecorationStyle: domain.DecorationModern,
		LightingMode:    domain.LightingNatural,
	}
}

func ids(views []domain.ViewSpec) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestExpander_Expand(t *testing.T) {
	tests := []struct {
		name   string
		base   domain.ViewSpec
		policy Policy
		cap    int
		want   []string
	}{
		{
			name: "exterior with no policy is just the base",
			base: aerialDay(),
			want: []string{"ext-aerial-oblique"},
		},
		{
			name:   "exterior day gets night and sunset",
			base:   aerialDay(),
			policy: Policy{GenerateDayNight: true},
			want:   []string{"ext-aerial-oblique", "ext-aerial-oblique-night", "ext-aerial-oblique-sunset"},
		},
		{
			name:   "vegetation view gets seasons",
			base:   aerialDay(),
			policy: Policy{GenerateDayNight: true, GenerateSeasons: true},
			want: []string{
				"ext-aerial-oblique", "ext-aerial-oblique-night", "ext-aerial-oblique-sunset",
				"ext-aerial-oblique-summer", "ext-aerial-oblique-winter",
			},
		},
		{
			name: "facade gets no seasons",
			base: domain.ViewSpec{
				ID: "ext-facade-main", Type: domain.ViewFacadeMain,
				Category: domain.CategoryExterior, TimeOfDay: domain.TimeDay,
			},
			policy: Policy{GenerateSeasons: true},
			want:   []string{"ext-facade-main"},
		},
		{
			name: "sunset base gets no sunset twin",
			base: domain.ViewSpec{
				ID: "ext-landscaping", Type: domain.ViewLandscaping,
				Category: domain.CategoryExterior, TimeOfDay: domain.TimeSunset, Season: domain.SeasonSummer,
			},
			policy: Policy{GenerateDayNight: true, GenerateSeasons: true},
			want:   []string{"ext-landscaping", "ext-landscaping-winter"},
		},
		{
			name: "interior skips its own style and lighting",
			base: livingRoom(),
			policy: Policy{
				DecorationStyles: []domain.DecorationStyle{domain.DecorationModern, domain.DecorationCozy},
				LightingModes:    []domain.LightingMode{domain.LightingNatural, domain.LightingLED},
			},
			want: []string{"int-r1-wide", "int-r1-wide-cozy", "int-r1-wide-led"},
		},
		{
			name: "policy cap wins over the default",
			base: aerialDay(),
			policy: Policy{
				GenerateDayNight: true, GenerateSeasons: true, MaxVariantsPerView: 2,
			},
			cap:  4,
			want: []string{"ext-aerial-oblique", "ext-aerial-oblique-night"},
		},
		{
			name:   "default cap applies when the policy has none",
			base:   aerialDay(),
			policy: Policy{GenerateDayNight: true, GenerateSeasons: true},
			cap:    3,
			want:   []string{"ext-aerial-oblique", "ext-aerial-oblique-night", "ext-aerial-oblique-sunset"},
		},
		{
			name:   "cap of one keeps the base",
			base:   livingRoom(),
			policy: Policy{DecorationStyles: domain.AllDecorationStyles, MaxVariantsPerView: 1},
			want:   []string{"int-r1-wide"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewExpander(tt.cap).Expand(tt.base, tt.policy)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, tt.base, got[0], "base view comes first, untouched")
		})
	}
}

func TestExpander_TwinFields(t *testing.T) {
	e := NewExpander(0)

	t.Run("time twin", func(t *testing.T) {
		views := e.Expand(aerialDay(), Policy{GenerateDayNight: true})
		require.Len(t, views, 3)
		night := views[1]
		assert.Equal(t, domain.TimeNight, night.TimeOfDay)
		assert.Equal(t, "Aerial view (night)", night.Subject)
		require.NotNil(t, night.PageIndex)
		assert.NotSame(t, views[0].PageIndex, night.PageIndex, "twins do not share pointers with the base")
	})

	t.Run("decoration twin strips the annotation", func(t *testing.T) {
		views := e.Expand(livingRoom(), Policy{DecorationStyles: []domain.DecorationStyle{domain.DecorationLuxury}})
		require.Len(t, views, 2)
		assert.Equal(t, domain.DecorationLuxury, views[1].DecorationStyle)
		assert.Equal(t, domain.LightingNatural, views[1].LightingMode)
		assert.Equal(t, "Living room (luxury)", views[1].Subject)
	})
}

func TestExpander_ExpandAllAndEstimates(t *testing.T) {
	e := NewExpander(0)
	bases := []domain.ViewSpec{aerialDay(), livingRoom()}
	policy := Policy{
		GenerateDayNight: true,
		DecorationStyles: []domain.DecorationStyle{domain.DecorationCozy, domain.DecorationLuxury},
	}

	all := e.ExpandAll(bases, policy)
	assert.Equal(t, []string{
		"ext-aerial-oblique", "ext-aerial-oblique-night", "ext-aerial-oblique-sunset",
		"int-r1-wide", "int-r1-wide-cozy", "int-r1-wide-luxury",
	}, ids(all))

	assert.Equal(t, 6, e.Count(bases, policy))
	assert.InDelta(t, 0.024, e.EstimateCostUSD(bases, policy, 0.004), 1e-9)
	assert.Equal(t, 180, e.EstimateDurationSeconds(bases, policy, 60, 2))
	assert.Equal(t, 360, e.EstimateDurationSeconds(bases, policy, 60, 0))
	assert.Equal(t, 90, e.EstimateDurationSeconds(bases, policy, 45, 3))

	assert.Empty(t, e.ExpandAll(nil, policy))
}

func TestExpander_Grid(t *testing.T) {
	e := NewExpander(1)

	styles := []domain.DecorationStyle{domain.DecorationCozy, domain.DecorationLuxury}
	modes := []domain.LightingMode{domain.LightingSpots, domain.LightingAmbient, domain.LightingDramatic}

	grid := e.Grid(livingRoom(), styles, modes)
	require.Len(t, grid, 6, "grid is not capped")
	assert.Equal(t, "int-r1-wide-cozy-spots", grid[0].ID)
	assert.Equal(t, "Living room (cozy, spots)", grid[0].Subject)
	assert.Equal(t, "int-r1-wide-luxury-dramatic", grid[5].ID)
	assert.Equal(t, domain.DecorationLuxury, grid[5].DecorationStyle)
	assert.Equal(t, domain.LightingDramatic, grid[5].LightingMode)

	ext := e.Grid(aerialDay(), styles, modes)
	assert.Equal(t, []domain.ViewSpec{aerialDay()}, ext)
}

func TestExpander_Smart(t *testing.T) {
	e := NewExpander(0)
	bases := []domain.ViewSpec{aerialDay(), livingRoom()}
	policy := Policy{
		GenerateDayNight: true,
		GenerateSeasons:  true,
		DecorationStyles: []domain.DecorationStyle{domain.DecorationModern, domain.DecorationCozy, domain.DecorationLuxury},
		LightingModes:    []domain.LightingMode{domain.LightingNatural, domain.LightingLED, domain.LightingSpots},
	}

	got := e.Smart(bases, policy)
	assert.Equal(t, []string{
		"ext-aerial-oblique", "ext-aerial-oblique-night",
		"int-r1-wide", "int-r1-wide-cozy", "int-r1-wide-led",
	}, ids(got))

	night := aerialDay()
	night.TimeOfDay = domain.TimeNight
	assert.Len(t, e.Smart([]domain.ViewSpec{night}, policy), 1)
}

func TestFilterByBudget(t *testing.T) {
	views := NewExpander(0).Expand(aerialDay(), Policy{GenerateDayNight: true, GenerateSeasons: true})
	require.Len(t, views, 5)

	tests := []struct {
		name        string
		maxCost     float64
		costPerView float64
		want        int
	}{
		{"exact multiple", 0.012, 0.004, 3},
		{"rounds down", 0.011, 0.004, 2},
		{"budget above total", 1, 0.004, 5},
		{"budget below one view", 0.001, 0.004, 0},
		{"free views pass through", 0, 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByBudget(views, tt.maxCost, tt.costPerView)
			assert.Len(t, got, tt.want)
			if tt.want > 0 {
				assert.Equal(t, views[:tt.want], got)
			}
		})
	}
}
