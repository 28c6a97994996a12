package domain

type ArchitecturalStyle string

const (
	StyleModern        ArchitecturalStyle = "modern"
	StyleContemporary  ArchitecturalStyle = "contemporary"
	StyleMediterranean ArchitecturalStyle = "mediterranean"
	StyleTraditional   ArchitecturalStyle = "traditional"
	StyleIndustrial    ArchitecturalStyle = "industrial"
	StyleMinimalist    ArchitecturalStyle = "minimalist"
	StyleClassic       ArchitecturalStyle = "classic"
)

type FacadeType string

const (
	FacadeMain      FacadeType = "main"
	FacadeSecondary FacadeType = "secondary"
	FacadeRear      FacadeType = "rear"
	FacadeSide      FacadeType = "side"
)

type RoomType string

const (
	RoomLivingRoom RoomType = "living-room"
	RoomKitchen    RoomType = "kitchen"
	RoomDiningRoom RoomType = "dining-room"
	RoomBedroom    RoomType = "bedroom"
	RoomBathroom   RoomType = "bathroom"
	RoomToilet     RoomType = "toilet"
	RoomHall       RoomType = "hall"
	RoomEntrance   RoomType = "entrance"
	RoomCorridor   RoomType = "corridor"
	RoomOffice     RoomType = "office"
	RoomStorage    RoomType = "storage"
	RoomGarage     RoomType = "garage"
	RoomTerrace    RoomType = "terrace"
	RoomBalcony    RoomType = "balcony"
	RoomOther      RoomType = "other"
)

type PageType string

const (
	PageFloorPlan       PageType = "floor-plan"
	PageFacade          PageType = "facade"
	PageSection         PageType = "section"
	PageTechnicalDetail PageType = "technical-detail"
	PageInteriorPlan    PageType = "interior-plan"
	PageSitePlan        PageType = "site-plan"
	PageCover           PageType = "cover"
	PageUnknown         PageType = "unknown"
)

// Analysis is the structured reading of an architectural plan set.
type Analysis struct {
	Project     ProjectInfo     `json:"project"`
	Facades     []Facade        `json:"facades"`
	Rooms       []Room          `json:"rooms"`
	Landscaping Landscaping     `json:"landscaping"`
	Technical   TechnicalDetail `json:"technical"`
}

type ProjectInfo struct {
	Style        ArchitecturalStyle `json:"style"`
	Materials    []string           `json:"materials"`
	ColorPalette []string           `json:"color_palette"`
	Description  string             `json:"description,omitempty"`
}

type Facade struct {
	Type      FacadeType `json:"type"`
	Materials []string   `json:"materials,omitempty"`
	Windows   int        `json:"windows"`
	Doors     int        `json:"doors"`
	Features  []string   `json:"features,omitempty"`
}

type Room struct {
	ID       string   `json:"id"`
	Type     RoomType `json:"type"`
	Name     string   `json:"name,omitempty"`
	Level    string   `json:"level,omitempty"`
	AreaM2   float64  `json:"area_m2,omitempty"`
	Features []string `json:"features,omitempty"`
}

type Landscaping struct {
	Features    []string `json:"features"`
	TotalAreaM2 float64  `json:"total_area_m2,omitempty"`
}

type TechnicalDetail struct {
	TotalAreaM2 float64 `json:"total_area_m2,omitempty"`
	Floors      int     `json:"floors"`
}

// PageClassification tags one page of the source document.
type PageClassification struct {
	PageIndex  int      `json:"page_index"`
	Type       PageType `json:"type"`
	Confidence float64  `json:"confidence"`
}

// ProjectAnchor carries the fields that keep every view of a project
// visually consistent.
type ProjectAnchor struct {
	Style        ArchitecturalStyle `json:"style"`
	Materials    []string           `json:"materials"`
	ColorPalette []string           `json:"color_palette"`
	SharedSeed   int64              `json:"shared_seed"`
}

type GlobalRenderSettings struct {
	Anchor            ProjectAnchor `json:"anchor"`
	DefaultQuality    Quality       `json:"default_quality"`
	DefaultModel      Model         `json:"default_model"`
	RespectDimensions bool          `json:"respect_dimensions"`
	RespectOpenings   bool          `json:"respect_openings"`
	RespectMaterials  bool          `json:"respect_materials"`
}
