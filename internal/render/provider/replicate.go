package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
)

const defaultReplicateURL = "https://api.replicate.com"

// ReplicateOptions configures the predictions client
type ReplicateOptions struct {
	BaseURL          string
	APIToken         string
	HTTPClient       *http.Client
	RequestTimeout   time.Duration
	PollInterval     time.Duration
	ExpectedDuration time.Duration
	Logger           *slog.Logger
}

// Replicate talks to a predictions-style HTTP API: create a prediction, then
// poll it until it leaves the starting/processing states.
type Replicate struct {
	httpClient       *http.Client
	baseURL          string
	token            string
	pollInterval     time.Duration
	expectedDuration time.Duration
	logger           *slog.Logger
}

var modelIDs = map[domain.Model]string{
	domain.ModelFlux11Pro: "black-forest-labs/flux-1.1-pro",
	domain.ModelFluxPro:   "black-forest-labs/flux-pro",
	domain.ModelSeedream4: "bytedance/seedream-4",
	domain.ModelImagen4:   "google/imagen-4",
	domain.ModelSDXL:      "stability-ai/sdxl",
}

// NewReplicate creates a new Replicate client
func NewReplicate(opts ReplicateOptions) *Replicate {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultReplicateURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	expected := opts.ExpectedDuration
	if expected <= 0 {
		expected = 75 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Replicate{
		httpClient:       client,
		baseURL:          base,
		token:            strings.TrimSpace(opts.APIToken),
		pollInterval:     poll,
		expectedDuration: expected,
		logger:           logger,
	}
}

type predictionInput struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Image             string  `json:"image,omitempty"`
	NumOutputs        int     `json:"num_outputs"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Seed              int64   `json:"seed,omitempty"`
}

type predictionRequest struct {
	Model string          `json:"model"`
	Input predictionInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// Generate implements Generator
func (r *Replicate) Generate(ctx context.Context, req Request, onProgress ProgressFunc) ([]Result, error) {
	if r.token == "" {
		return nil, errors.New("replicate: API token is missing")
	}

	start := time.Now()
	report(onProgress, Progress{Status: StatusQueued, Percent: 0, Message: "Preparing render", ETASeconds: int(r.expectedDuration.Seconds())})

	quality := LegacyQuality(req.Quality)
	size := outputSize(quality)
	variations := req.VariationCount
	if variations <= 0 {
		variations = 1
	}

	model, ok := modelIDs[req.Model]
	if !ok {
		model = modelIDs[domain.ModelFlux11Pro]
	}

	body := predictionRequest{
		Model: model,
		Input: predictionInput{
			Prompt:            req.Prompt,
			NegativePrompt:    req.NegativePrompt,
			Image:             req.InputImage,
			NumOutputs:        variations,
			NumInferenceSteps: inferenceSteps(quality),
			GuidanceScale:     7.5,
			Width:             size,
			Height:            size,
			Seed:              req.Seed,
		},
	}

	report(onProgress, Progress{Status: StatusProcessing, Percent: 25, Message: "Rendering"})

	var pred prediction
	if err := r.do(ctx, http.MethodPost, "/v1/predictions", body, &pred); err != nil {
		return nil, err
	}

	r.logger.Debug("Prediction created",
		slog.String("prediction_id", pred.ID),
		slog.String("model", model),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for pred.Status == "starting" || pred.Status == "processing" {
		elapsed := time.Since(start)
		report(onProgress, r.interpolate(elapsed))

		select {
		case <-ctx.Done():
			r.cancelPrediction(pred.ID)
			return nil, fmt.Errorf("replicate: prediction %s: %w", pred.ID, ctx.Err())
		case <-ticker.C:
		}

		id := pred.ID
		if err := r.do(ctx, http.MethodGet, "/v1/predictions/"+id, nil, &pred); err != nil {
			if ctx.Err() != nil {
				r.cancelPrediction(id)
				return nil, fmt.Errorf("replicate: prediction %s: %w", id, ctx.Err())
			}
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("replicate: prediction %s %s: %v", pred.ID, pred.Status, pred.Error)
	}

	urls, err := decodeOutput(pred.Output)
	if err != nil {
		return nil, fmt.Errorf("replicate: prediction %s: %w", pred.ID, err)
	}
	if len(urls) == 0 {
		return nil, domain.ErrNoOutput
	}

	report(onProgress, Progress{Status: StatusCompleted, Percent: 100, Message: "Render complete"})

	results := make([]Result, len(urls))
	for i, u := range urls {
		results[i] = Result{
			ID:       fmt.Sprintf("%s-%d", pred.ID, i),
			ImageURL: u,
		}
	}
	return results, nil
}

// interpolate maps elapsed time onto the 25-90 percent band
func (r *Replicate) interpolate(elapsed time.Duration) Progress {
	frac := elapsed.Seconds() / r.expectedDuration.Seconds()
	percent := math.Min(90, 25+frac*65)
	eta := math.Max(5, r.expectedDuration.Seconds()-elapsed.Seconds())
	return Progress{
		Status:     StatusProcessing,
		Percent:    percent,
		Message:    "Rendering",
		ETASeconds: int(eta),
	}
}

// cancelPrediction is best-effort; the caller's context is already done
func (r *Replicate) cancelPrediction(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.do(ctx, http.MethodPost, "/v1/predictions/"+id+"/cancel", nil, nil); err != nil {
		r.logger.Warn("Failed to cancel prediction",
			slog.String("prediction_id", id),
			slog.Any("error", err),
		)
	}
}

func (r *Replicate) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("replicate: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("replicate: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("replicate: API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("replicate: failed to decode response: %w", err)
	}
	return nil
}

// decodeOutput accepts either a list of URLs or a single URL
func decodeOutput(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("unexpected output format: %w", err)
	}
	return []string{single}, nil
}

func inferenceSteps(q domain.Quality) int {
	switch q {
	case domain.QualityDraft:
		return 20
	case domain.QualityHD:
		return 50
	default:
		return 30
	}
}

func outputSize(q domain.Quality) int {
	switch q {
	case domain.QualityDraft:
		return 512
	case domain.QualityHD:
		return 1024
	default:
		return 768
	}
}
