package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/provider"
	"github.com/cespare/xxhash/v2"
)

// hashKey lists the fields that change what the provider draws. Ids,
// subjects, page indexes and timestamps are not part of it. Field order is
// fixed by the struct so the JSON is canonical.
type hashKey struct {
	Type            domain.ViewType        `json:"type"`
	Category        domain.Category        `json:"category"`
	ViewAngle       domain.ViewAngle       `json:"view_angle"`
	Camera          domain.Camera          `json:"camera"`
	Model           domain.Model           `json:"model"`
	Quality         domain.Quality         `json:"quality"`
	TimeOfDay       domain.TimeOfDay       `json:"time_of_day"`
	Season          domain.Season          `json:"season"`
	DecorationStyle domain.DecorationStyle `json:"decoration_style"`
	LightingMode    domain.LightingMode    `json:"lighting_mode"`
	Style           provider.Style         `json:"style"`
	Prompt          string                 `json:"prompt"`
	NegativePrompt  string                 `json:"negative_prompt"`
	VariationCount  int                    `json:"variation_count"`
	Seed            int64                  `json:"seed"`
	Image           string                 `json:"image"`
}

// Fingerprint returns a short stable digest of an input image payload
func Fingerprint(image string) string {
	return strconv.FormatUint(xxhash.Sum64String(image), 16)
}

// Hash derives the content address of a render. An empty fingerprint is
// computed from the request's input image. The model is the one the request
// is sent to, which can differ from the view spec when it leaves the model empty.
func Hash(spec domain.ViewSpec, req provider.Request, fingerprint string) string {
	if fingerprint == "" {
		fingerprint = Fingerprint(req.InputImage)
	}

	model := req.Model
	if model == "" {
		model = spec.Model
	}

	variations := req.VariationCount
	if variations <= 0 {
		variations = 1
	}

	key := hashKey{
		Type:            spec.Type,
		Category:        spec.Category,
		ViewAngle:       spec.ViewAngle,
		Camera:          spec.Camera,
		Model:           model,
		Quality:         spec.Quality,
		TimeOfDay:       spec.TimeOfDay,
		Season:          spec.Season,
		DecorationStyle: spec.DecorationStyle,
		LightingMode:    spec.LightingMode,
		Style:           req.Style,
		Prompt:          req.Prompt,
		NegativePrompt:  req.NegativePrompt,
		VariationCount:  variations,
		Seed:            req.Seed,
		Image:           fingerprint,
	}

	// marshalling a struct of strings and ints cannot fail
	data, _ := json.Marshal(key)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
