package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/genserve/internal/config"
	"github.com/phrazzld/genserve/internal/generation"
	"github.com/phrazzld/genserve/internal/redact"
	"google.golang.org/genai"
)

// OutputMIMEType is requested from the model so stored artifacts match
// their .png file names.
const OutputMIMEType = "image/png"

// ImageModels is the subset of *genai.Models used by the generator.
type ImageModels interface {
	GenerateImages(
		ctx context.Context,
		model string,
		prompt string,
		config *genai.GenerateImagesConfig,
	) (*genai.GenerateImagesResponse, error)
}

// ImagenGenerator implements generation.Generator using an Imagen model.
type ImagenGenerator struct {
	models ImageModels
	model  string
	logger *slog.Logger
}

var _ generation.Generator = (*ImagenGenerator)(nil)

// NewImagenGenerator creates a generator with a Gemini API client.
func NewImagenGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*ImagenGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ImageModel == "" {
		return nil, fmt.Errorf("%w: image model cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, redact.Error(err))
	}

	return NewImagenGeneratorWithModels(client.Models, cfg.ImageModel, logger), nil
}

// NewImagenGeneratorWithModels creates a generator over an existing models
// service.
func NewImagenGeneratorWithModels(models ImageModels, model string, logger *slog.Logger) *ImagenGenerator {
	return &ImagenGenerator{
		models: models,
		model:  model,
		logger: logger.With("component", "imagen_generator", "model", model),
	}
}

// Generate implements generation.Generator.
func (g *ImagenGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, generation.ErrEmptyPrompt
	}

	g.logger.DebugContext(ctx, "requesting image", "prompt_length", len(prompt))

	resp, err := g.models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		OutputMIMEType: OutputMIMEType,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.logger.ErrorContext(ctx, "image model call failed", "error", redact.Error(err))
		return nil, fmt.Errorf("%w: %s", generation.ErrGenerationFailed, redact.Error(err))
	}

	return g.extract(ctx, resp)
}

func (g *ImagenGenerator) extract(ctx context.Context, resp *genai.GenerateImagesResponse) ([]byte, error) {
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("%w: no images returned", generation.ErrContentBlocked)
	}

	var filtered string
	for _, img := range resp.GeneratedImages {
		if img == nil {
			continue
		}
		if img.RAIFilteredReason != "" {
			filtered = img.RAIFilteredReason
			continue
		}
		if img.Image != nil && len(img.Image.ImageBytes) > 0 {
			return img.Image.ImageBytes, nil
		}
	}

	if filtered != "" {
		g.logger.WarnContext(ctx, "image filtered by model", "reason", filtered)
		return nil, fmt.Errorf("%w: %s", generation.ErrContentBlocked, filtered)
	}
	return nil, fmt.Errorf("%w: image payload empty", generation.ErrInvalidResponse)
}

// NewGenerator returns an Imagen generator when an API key is configured
// and the synthetic renderer otherwise.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("gemini api key missing, using synthetic image generation")
		return generation.Synthetic{}, nil
	}
	return NewImagenGenerator(ctx, logger, cfg)
}
