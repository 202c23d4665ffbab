package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/postforge/postforge/internal/models"
)

// styleDescriptors expand the preset style identifiers into full prompt
// fragments. Anything not in the map (a custom style) is passed through
// as the user typed it.
var styleDescriptors = map[string]string{
	"realism":    "Photorealistic rendering: highly believable, detailed materials and textures, natural light and shadow",
	"cartoon":    "Bold cartoon style in the spirit of Pixar: saturated colors, soft shapes, clean outlines, exaggerated emotion",
	"watercolor": "Classic watercolor: soft transitions, washes, translucent layers, gentle palette, paper texture, no hard digital lines",
	"cyberpunk":  "Cyberpunk: vivid neon, futuristic atmosphere, techno architecture, holograms, digital noise",
}

// imageSuffix is appended to every image prompt.
const imageSuffix = "Emotional, warm, high quality, no text in the image, professional composition."

// buildImagePrompt assembles the final prompt from the description, style,
// and organization context.
func buildImagePrompt(description, style string, profile models.OrgProfile) string {
	prompt := ""
	if profile.Name != "" {
		prompt = fmt.Sprintf("For the nonprofit organization %q. ", profile.Name)
	}
	prompt += description
	if style != "" {
		desc, ok := styleDescriptors[style]
		if !ok {
			desc = style
		}
		prompt += ". " + desc
	}
	return prompt + ". " + imageSuffix
}

// GenerateImage renders an image for the description in the given style and
// returns its raw bytes.
func (c *Client) GenerateImage(ctx context.Context, description, style string, profile models.OrgProfile) ([]byte, error) {
	prompt := buildImagePrompt(description, style, profile)
	slog.Debug("GenerateImage invoked", "style", style, "promptLen", len(prompt))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          c.imageModel,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		slog.Error("GenerateImage failed", "error", err)
		return nil, fmt.Errorf("failed to generate image: %w", classifyErr(err))
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no image returned")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return data, nil
}
