package viewspec

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/cespare/xxhash/v2"
)

// Options tunes which views are produced
type Options struct {
	Quality           domain.Quality
	IncludeVariants   bool
	GenerateInteriors bool
	GenerateExteriors bool
}

// DefaultOptions returns hd quality with every view family enabled
func DefaultOptions() Options {
	return Options{
		Quality:           domain.QualityHD,
		IncludeVariants:   true,
		GenerateInteriors: true,
		GenerateExteriors: true,
	}
}

// Result is the output of a generation pass
type Result struct {
	Views           []domain.ViewSpec           `json:"views"`
	GlobalSettings  domain.GlobalRenderSettings `json:"global_settings"`
	VariantSettings domain.VariantSettings      `json:"variant_settings"`
}

// Generator maps an architectural analysis to base view specs
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a new Generator instance
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{logger: logger}
}

var facadeViewTypes = map[domain.FacadeType]domain.ViewType{
	domain.FacadeMain:      domain.ViewFacadeMain,
	domain.FacadeSecondary: domain.ViewFacadeSecondary,
	domain.FacadeRear:      domain.ViewFacadeRear,
	domain.FacadeSide:      domain.ViewFacadeSide,
}

// rooms that get a wide shot, and the subset that also gets a detail shot
var (
	wideRooms = map[domain.RoomType]bool{
		domain.RoomLivingRoom: true,
		domain.RoomKitchen:    true,
		domain.RoomBedroom:    true,
		domain.RoomBathroom:   true,
	}
	detailFocus = map[domain.RoomType]string{
		domain.RoomLivingRoom: "seating area",
		domain.RoomKitchen:    "countertop",
		domain.RoomBedroom:    "headboard",
	}
)

var roomLabels = map[domain.RoomType]string{
	domain.RoomLivingRoom: "Living room",
	domain.RoomKitchen:    "Kitchen",
	domain.RoomDiningRoom: "Dining room",
	domain.RoomBedroom:    "Bedroom",
	domain.RoomBathroom:   "Bathroom",
	domain.RoomToilet:     "Toilet",
	domain.RoomHall:       "Hall",
	domain.RoomEntrance:   "Entrance",
	domain.RoomCorridor:   "Corridor",
	domain.RoomOffice:     "Office",
	domain.RoomStorage:    "Storage",
	domain.RoomGarage:     "Garage",
	domain.RoomTerrace:    "Terrace",
	domain.RoomBalcony:    "Balcony",
}

// RoomLabel returns a readable name for a room type
func RoomLabel(t domain.RoomType) string {
	if label, ok := roomLabels[t]; ok {
		return label
	}
	return string(t)
}

// Generate builds the base view list. It never fails: when nothing qualifies
// the view list is empty.
func (g *Generator) Generate(
	analysis domain.Analysis,
	classifications []domain.PageClassification,
	selectedPages []int,
	opts Options,
) Result {
	if opts.Quality == "" {
		opts.Quality = domain.QualityHD
	}

	pages := newPageIndex(classifications, selectedPages)

	views := make([]domain.ViewSpec, 0)
	if opts.GenerateExteriors {
		views = append(views, g.exteriorViews(analysis, pages, opts.Quality)...)
	}
	if opts.GenerateInteriors {
		views = append(views, g.interiorViews(analysis, pages, opts.Quality)...)
	}

	anchor := domain.ProjectAnchor{
		Style:        analysis.Project.Style,
		Materials:    append([]string(nil), analysis.Project.Materials...),
		ColorPalette: append([]string(nil), analysis.Project.ColorPalette...),
	}
	anchor.SharedSeed = SharedSeed(anchor)

	variants := domain.VariantSettings{
		GenerateDayNight: opts.IncludeVariants,
		GenerateSeasons:  false,
	}
	if opts.IncludeVariants {
		variants.DecorationStyles = []domain.DecorationStyle{
			domain.DecorationMinimalist, domain.DecorationCozy, domain.DecorationLuxury,
		}
		variants.LightingModes = []domain.LightingMode{
			domain.LightingNatural, domain.LightingSpots,
		}
	}

	g.logger.Debug("Generated view specs",
		slog.Int("views", len(views)),
		slog.Int("facades", len(analysis.Facades)),
		slog.Int("rooms", len(analysis.Rooms)),
	)

	return Result{
		Views: views,
		GlobalSettings: domain.GlobalRenderSettings{
			Anchor:            anchor,
			DefaultQuality:    opts.Quality,
			DefaultModel:      domain.ModelFlux11Pro,
			RespectDimensions: true,
			RespectOpenings:   true,
			RespectMaterials:  true,
		},
		VariantSettings: variants,
	}
}

func (g *Generator) exteriorViews(analysis domain.Analysis, pages pageIndex, quality domain.Quality) []domain.ViewSpec {
	var views []domain.ViewSpec

	facadePage := pages.lookup(domain.PageFacade)
	for _, facade := range analysis.Facades {
		viewType, ok := facadeViewTypes[facade.Type]
		if !ok {
			viewType = domain.ViewFacadeMain
		}
		views = append(views, domain.ViewSpec{
			ID:         fmt.Sprintf("ext-facade-%s-day", facade.Type),
			Type:       viewType,
			Category:   domain.CategoryExterior,
			PageIndex:  facadePage.Clone(),
			ViewAngle:  domain.AngleFrontFacade,
			Camera:     domain.Camera{Distance: "medium", Angle: "eye-level"},
			Subject:    fmt.Sprintf("Facade %s", facade.Type),
			FacadeType: facade.Type,
			Model:      domain.ModelFlux11Pro,
			Quality:    quality,
			TimeOfDay:  domain.TimeDay,
		})
	}

	// aerial and landscaping views only exist with a plan page to render from
	aerialPage := pages.lookup(domain.PageFloorPlan, domain.PageSitePlan)
	if len(analysis.Facades) > 0 && aerialPage.ok {
		views = append(views,
			domain.ViewSpec{
				ID:        "ext-aerial-oblique-day",
				Type:      domain.ViewAerialOblique,
				Category:  domain.CategoryExterior,
				PageIndex: aerialPage.Clone(),
				ViewAngle: domain.AngleAerial,
				Camera:    domain.Camera{Distance: "far", Angle: "high"},
				Subject:   "Aerial oblique view",
				Model:     domain.ModelFluxPro,
				Quality:   quality,
				TimeOfDay: domain.TimeDay,
			},
			domain.ViewSpec{
				ID:        "ext-aerial-frontal-day",
				Type:      domain.ViewAerialFrontal,
				Category:  domain.CategoryExterior,
				PageIndex: aerialPage.Clone(),
				ViewAngle: domain.AngleAerial,
				Camera:    domain.Camera{Distance: "medium", Angle: "high"},
				Subject:   "Aerial frontal view",
				Model:     domain.ModelFluxPro,
				Quality:   quality,
				TimeOfDay: domain.TimeDay,
			},
		)
	}

	sitePage := pages.lookup(domain.PageSitePlan)
	if len(analysis.Landscaping.Features) > 0 && sitePage.ok {
		views = append(views, domain.ViewSpec{
			ID:        "ext-landscaping-day",
			Type:      domain.ViewLandscaping,
			Category:  domain.CategoryExterior,
			PageIndex: sitePage.Clone(),
			ViewAngle: domain.AnglePerspective3D,
			Camera:    domain.Camera{Distance: "medium", Angle: "eye-level"},
			Subject:   "Outdoor landscaping",
			Model:     domain.ModelSeedream4,
			Quality:   quality,
			TimeOfDay: domain.TimeDay,
		})
	}

	return views
}

func (g *Generator) interiorViews(analysis domain.Analysis, pages pageIndex, quality domain.Quality) []domain.ViewSpec {
	var views []domain.ViewSpec

	for _, room := range analysis.Rooms {
		if !wideRooms[room.Type] {
			continue
		}
		label := RoomLabel(room.Type)

		views = append(views, domain.ViewSpec{
			ID:              fmt.Sprintf("int-%s-wide", room.ID),
			Type:            domain.ViewInteriorWide,
			Category:        domain.CategoryInterior,
			PageIndex:       pages.first(domain.PageInteriorPlan, domain.PageFloorPlan),
			ViewAngle:       domain.AngleInterior,
			Camera:          domain.Camera{Distance: "medium", Angle: "eye-level"},
			Subject:         label + " - wide view",
			RoomID:          room.ID,
			RoomType:        room.Type,
			Model:           domain.ModelImagen4,
			Quality:         quality,
			TimeOfDay:       domain.TimeDay,
			DecorationStyle: domain.DecorationModern,
			LightingMode:    domain.LightingNatural,
		})

		focus, ok := detailFocus[room.Type]
		if !ok {
			continue
		}
		views = append(views, domain.ViewSpec{
			ID:              fmt.Sprintf("int-%s-detail", room.ID),
			Type:            domain.ViewInteriorDetail,
			Category:        domain.CategoryInterior,
			PageIndex:       pages.first(domain.PageInteriorPlan, domain.PageFloorPlan),
			ViewAngle:       domain.AngleInterior,
			Camera:          domain.Camera{Distance: "close", Angle: "eye-level", Focus: focus},
			Subject:         label + " - detail",
			RoomID:          room.ID,
			RoomType:        room.Type,
			Model:           domain.ModelImagen4,
			Quality:         quality,
			TimeOfDay:       domain.TimeDay,
			DecorationStyle: domain.DecorationModern,
			LightingMode:    domain.LightingNatural,
		})
	}

	return views
}

// SharedSeed derives a stable seed from the project anchor so that repeated
// generations of the same project stay visually consistent.
func SharedSeed(anchor domain.ProjectAnchor) int64 {
	d := xxhash.New()
	_, _ = d.WriteString(string(anchor.Style))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strings.Join(anchor.Materials, ","))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strings.Join(anchor.ColorPalette, ","))
	// keep it positive and within the range providers accept
	return int64(d.Sum64() & 0x7fffffff)
}
