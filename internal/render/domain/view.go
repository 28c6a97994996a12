package domain

// ViewType identifies the kind of shot a render produces.
type ViewType string

const (
	ViewFacadeMain          ViewType = "facade-main"
	ViewFacadeSecondary     ViewType = "facade-secondary"
	ViewFacadeRear          ViewType = "facade-rear"
	ViewFacadeSide          ViewType = "facade-side"
	ViewAerialOblique       ViewType = "aerial-oblique"
	ViewAerialFrontal       ViewType = "aerial-frontal"
	ViewPerspective3D       ViewType = "perspective-3d"
	ViewLandscaping         ViewType = "landscaping"
	ViewInteriorWide        ViewType = "interior-wide"
	ViewInteriorDetail      ViewType = "interior-detail"
	ViewInteriorCirculation ViewType = "interior-circulation"
)

// IsFacade reports whether the view is one of the facade elevations.
func (t ViewType) IsFacade() bool {
	switch t {
	case ViewFacadeMain, ViewFacadeSecondary, ViewFacadeRear, ViewFacadeSide:
		return true
	}
	return false
}

// IsAerial reports whether the view is shot from above.
func (t ViewType) IsAerial() bool {
	return t == ViewAerialOblique || t == ViewAerialFrontal
}

// HasVegetation reports whether seasons visibly change the render.
func (t ViewType) HasVegetation() bool {
	return t.IsAerial() || t == ViewLandscaping
}

type Category string

const (
	CategoryExterior Category = "exterior"
	CategoryInterior Category = "interior"
)

type ViewAngle string

const (
	AngleFrontFacade   ViewAngle = "front-facade"
	AngleAerial        ViewAngle = "aerial-view"
	AnglePerspective3D ViewAngle = "3d-perspective"
	AngleInterior      ViewAngle = "interior"
)

// Model is the provider model a view is rendered with.
type Model string

const (
	ModelFlux11Pro Model = "flux-1.1-pro"
	ModelFluxPro   Model = "flux-pro"
	ModelSeedream4 Model = "seedream-4"
	ModelImagen4   Model = "imagen-4"
	ModelSDXL      Model = "sdxl"
)

type Quality string

const (
	QualityDraft    Quality = "draft"
	QualityStandard Quality = "standard"
	QualityHD       Quality = "hd"
	Quality4K       Quality = "4k"
	Quality8K       Quality = "8k"
)

type TimeOfDay string

const (
	TimeDay    TimeOfDay = "day"
	TimeSunset TimeOfDay = "sunset"
	TimeNight  TimeOfDay = "night"
)

type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

type DecorationStyle string

const (
	DecorationMinimalist DecorationStyle = "minimalist"
	DecorationCozy       DecorationStyle = "cozy"
	DecorationLuxury     DecorationStyle = "luxury"
	DecorationModern     DecorationStyle = "modern"
	DecorationClassic    DecorationStyle = "classic"
	DecorationIndustrial DecorationStyle = "industrial"
)

// AllDecorationStyles lists every decoration style in display order.
var AllDecorationStyles = []DecorationStyle{
	DecorationMinimalist, DecorationCozy, DecorationLuxury,
	DecorationModern, DecorationClassic, DecorationIndustrial,
}

type LightingMode string

const (
	LightingNatural  LightingMode = "natural"
	LightingSpots    LightingMode = "spots"
	LightingLED      LightingMode = "led"
	LightingAmbient  LightingMode = "ambient"
	LightingDramatic LightingMode = "dramatic"
)

// AllLightingModes lists every lighting mode in display order.
var AllLightingModes = []LightingMode{
	LightingNatural, LightingSpots, LightingLED, LightingAmbient, LightingDramatic,
}

// Camera describes framing hints passed through to the prompt.
type Camera struct {
	Distance string `json:"distance,omitempty"` // close, medium, far
	Angle    string `json:"angle,omitempty"`    // low, eye-level, high
	Focus    string `json:"focus,omitempty"`
}

// ViewSpec describes one desired render. Values are treated as immutable
// once produced; derived specs are built from copies.
type ViewSpec struct {
	ID              string          `json:"id"`
	Type            ViewType        `json:"type"`
	Category        Category        `json:"category"`
	PageIndex       *int            `json:"page_index,omitempty"`
	ViewAngle       ViewAngle       `json:"view_angle"`
	Camera          Camera          `json:"camera"`
	Subject         string          `json:"subject,omitempty"`
	RoomID          string          `json:"room_id,omitempty"`
	RoomType        RoomType        `json:"room_type,omitempty"`
	FacadeType      FacadeType      `json:"facade_type,omitempty"`
	Model           Model           `json:"model"`
	Quality         Quality         `json:"quality"`
	TimeOfDay       TimeOfDay       `json:"time_of_day"`
	Season          Season          `json:"season,omitempty"`
	DecorationStyle DecorationStyle `json:"decoration_style,omitempty"`
	LightingMode    LightingMode    `json:"lighting_mode,omitempty"`
}

// Clone returns a copy that shares no pointers with v.
func (v ViewSpec) Clone() ViewSpec {
	if v.PageIndex != nil {
		idx := *v.PageIndex
		v.PageIndex = &idx
	}
	return v
}

// IsExterior is a shorthand for the category check.
func (v ViewSpec) IsExterior() bool {
	return v.Category == CategoryExterior
}

// VariantSettings is the policy used to derive twins from base views.
type VariantSettings struct {
	GenerateDayNight   bool              `json:"generate_day_night"`
	GenerateSeasons    bool              `json:"generate_seasons"`
	DecorationStyles   []DecorationStyle `json:"decoration_styles"`
	LightingModes      []LightingMode    `json:"lighting_modes"`
	MaxVariantsPerView int               `json:"max_variants_per_view"`
}
