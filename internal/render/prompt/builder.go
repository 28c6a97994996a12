package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
)

var viewTypeFragments = map[domain.ViewType]string{
	domain.ViewFacadeMain:          "Main facade architectural elevation, front view",
	domain.ViewFacadeSecondary:     "Secondary facade elevation, side view",
	domain.ViewFacadeRear:          "Rear facade elevation, back view",
	domain.ViewFacadeSide:          "Side facade elevation, lateral view",
	domain.ViewAerialOblique:       "Oblique aerial view, birds eye perspective, site context",
	domain.ViewAerialFrontal:       "Frontal aerial view, top-down perspective, building massing",
	domain.ViewPerspective3D:       "3D perspective view, three-quarter angle, volumetric rendering",
	domain.ViewLandscaping:         "Landscape architectural rendering, outdoor spaces, garden and terraces",
	domain.ViewInteriorWide:        "Interior wide shot, full room view, spatial composition",
	domain.ViewInteriorDetail:      "Interior detail view, close-up composition, focused perspective",
	domain.ViewInteriorCirculation: "Interior circulation space, hallway or corridor view",
}

var styleFragments = map[domain.ArchitecturalStyle]string{
	domain.StyleModern:        "modern contemporary architecture, clean lines, minimalist design",
	domain.StyleContemporary:  "contemporary architecture, innovative forms, bold design",
	domain.StyleMediterranean: "Mediterranean architecture, warm tones, traditional elements",
	domain.StyleTraditional:   "traditional architecture, classic proportions, cultural heritage",
	domain.StyleIndustrial:    "industrial architecture, exposed materials, raw aesthetic",
	domain.StyleMinimalist:    "minimalist architecture, simple forms, essential design",
	domain.StyleClassic:       "classical architecture, symmetry, refined details",
}

var roomFragments = map[domain.RoomType]string{
	domain.RoomLivingRoom: "living room with comfortable seating, modern furniture",
	domain.RoomKitchen:    "kitchen with functional layout, contemporary appliances",
	domain.RoomDiningRoom: "dining room with table and chairs, elegant setting",
	domain.RoomBedroom:    "bedroom with bed and storage, cozy atmosphere",
	domain.RoomBathroom:   "bathroom with fixtures, clean modern design",
	domain.RoomOffice:     "office space with desk and storage, professional setting",
	domain.RoomHall:       "entrance hall, welcoming space",
	domain.RoomCorridor:   "corridor with good circulation, well-lit",
}

var decorationFragments = map[domain.DecorationStyle]string{
	domain.DecorationMinimalist: "minimalist decor, clean lines, neutral tones, uncluttered",
	domain.DecorationCozy:       "cozy atmosphere, warm textures, comfortable furnishings, inviting",
	domain.DecorationLuxury:     "luxurious finishes, high-end materials, elegant furniture, refined",
	domain.DecorationModern:     "modern furniture, contemporary design, sleek finishes",
	domain.DecorationClassic:    "classic furniture, traditional elements, timeless style",
	domain.DecorationIndustrial: "industrial style, exposed elements, raw materials",
}

var lightingFragments = map[domain.LightingMode]string{
	domain.LightingNatural:  "natural daylight, soft shadows, ambient light",
	domain.LightingSpots:    "spot lighting, focused illumination, dramatic accents",
	domain.LightingLED:      "LED lighting, modern fixtures, even illumination",
	domain.LightingAmbient:  "ambient lighting, soft glow, atmospheric",
	domain.LightingDramatic: "dramatic lighting, strong contrasts, mood lighting",
}

var timeFragments = map[domain.TimeOfDay]string{
	domain.TimeDay:    "bright daylight, clear sky, natural lighting",
	domain.TimeSunset: "golden hour, warm sunset lighting, dramatic sky",
	domain.TimeNight:  "night scene, artificial lighting, ambient illumination, starry sky",
}

var seasonFragments = map[domain.Season]string{
	domain.SeasonSummer: "summer season, lush vegetation, bright atmosphere",
	domain.SeasonWinter: "winter season, bare trees, soft light",
	domain.SeasonSpring: "spring season, blooming flowers, fresh greenery",
	domain.SeasonAutumn: "autumn season, warm colors, falling leaves",
}

var qualityFragments = map[domain.Quality]string{
	domain.QualityDraft:    "512px resolution",
	domain.QualityStandard: "768px resolution",
	domain.QualityHD:       "1024px resolution",
	domain.Quality4K:       "4K resolution, ultra detailed",
	domain.Quality8K:       "8K resolution, hyper detailed",
}

const negativeBase = "blurry, low quality, distorted, deformed, ugly, bad anatomy, bad proportions, " +
	"watermark, text, signature, cartoon, sketch, draft, unfinished, amateur, " +
	"oversaturated, unrealistic, fantasy, sci-fi"

// Build assembles the positive prompt for a view. The view id and subject
// never reach the prompt, so twins that differ only by id share a prompt.
func Build(view domain.ViewSpec, analysis domain.Analysis, settings domain.GlobalRenderSettings) string {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(lookup(viewTypeFragments, view.Type, "Architectural rendering"))

	style := settings.Anchor.Style
	if style == "" {
		style = analysis.Project.Style
	}
	add(lookup(styleFragments, style, "architectural design"))

	if len(settings.Anchor.Materials) > 0 {
		add("materials: " + strings.Join(settings.Anchor.Materials, ", "))
	}
	if len(settings.Anchor.ColorPalette) > 0 {
		add("color palette: " + strings.Join(settings.Anchor.ColorPalette, ", "))
	}

	if view.IsExterior() {
		addExterior(add, view, analysis)
	} else {
		addInterior(add, view, analysis)
	}

	add(timeFragments[view.TimeOfDay])
	add(seasonFragments[view.Season])

	add("photorealistic, high quality, detailed, professional photography")
	add(qualityFragments[view.Quality])
	if settings.RespectDimensions {
		add("accurate proportions from architectural plan")
	}
	if settings.RespectOpenings {
		add("precise window and door placement")
	}
	if settings.RespectMaterials {
		add("faithful material representation")
	}
	add("architectural visualization")

	return strings.Join(parts, ", ")
}

// Negative assembles the negative prompt for a view
func Negative(view domain.ViewSpec) string {
	parts := []string{negativeBase}

	if view.IsExterior() {
		parts = append(parts, "indoor", "interior", "furniture")
	} else {
		parts = append(parts, "outdoor", "exterior", "sky", "clouds")
	}

	switch view.TimeOfDay {
	case domain.TimeDay:
		parts = append(parts, "night", "dark", "moonlight")
	case domain.TimeNight:
		parts = append(parts, "bright daylight", "noon", "harsh shadows")
	}

	return strings.Join(parts, ", ")
}

func addExterior(add func(string), view domain.ViewSpec, analysis domain.Analysis) {
	windows := 0
	for _, f := range analysis.Facades {
		if view.FacadeType == "" || f.Type == view.FacadeType {
			windows += f.Windows
		}
	}
	if windows > 0 {
		add(fmt.Sprintf("%d windows with accurate placement", windows))
	}
	if view.Type == domain.ViewLandscaping && len(analysis.Landscaping.Features) > 0 {
		add("landscaping features: " + strings.Join(analysis.Landscaping.Features, ", "))
	}
	add("realistic site context, accurate proportions from plan")
}

func addInterior(add func(string), view domain.ViewSpec, analysis domain.Analysis) {
	for _, room := range analysis.Rooms {
		if room.ID != view.RoomID {
			continue
		}
		add(lookup(roomFragments, room.Type, "interior space"))
		if room.AreaM2 > 0 {
			add(strconv.FormatFloat(room.AreaM2, 'f', -1, 64) + "m² space")
		}
		if len(room.Features) > 0 {
			add("features: " + strings.Join(room.Features, ", "))
		}
		break
	}
	if view.Camera.Focus != "" {
		add("focus on " + view.Camera.Focus)
	}
	add(decorationFragments[view.DecorationStyle])
	add(lightingFragments[view.LightingMode])
}

func lookup[K comparable](m map[K]string, key K, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}
