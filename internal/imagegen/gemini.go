package imagegen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-2.5-flash-image"

// Gemini calls a Gemini image model through the generative-ai-go client.
type Gemini struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, log *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model, log: log}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (*Image, error) {
	parts, err := buildGeminiParts(req)
	if err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	img, err := imageFromResponse(resp)
	if err != nil {
		g.log.Warn("gemini returned no image", "model", g.model, "candidates", len(resp.Candidates))
		return nil, err
	}
	return img, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

// buildGeminiParts puts the source image, when present, ahead of the prompt.
// The aspect ratio travels as an instruction in the prompt text.
func buildGeminiParts(req Request) ([]genai.Part, error) {
	var parts []genai.Part
	if req.BaseImage != "" {
		base, err := DecodeBaseImage(req.BaseImage)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.Blob{MIMEType: base.MIMEType, Data: base.Data})
	}
	prompt := fmt.Sprintf("%s\n\nAspect ratio: %s", req.Prompt, normalizeAspect(req.AspectRatio))
	parts = append(parts, genai.Text(prompt))
	return parts, nil
}

// imageFromResponse returns the first inline image among the candidates.
func imageFromResponse(resp *genai.GenerateContentResponse) (*Image, error) {
	if resp == nil {
		return nil, ErrNoImageReturned
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch p := part.(type) {
			case genai.Blob:
				if len(p.Data) > 0 {
					return &Image{MIMEType: p.MIMEType, Data: p.Data}, nil
				}
			case *genai.Blob:
				if p != nil && len(p.Data) > 0 {
					return &Image{MIMEType: p.MIMEType, Data: p.Data}, nil
				}
			}
		}
	}
	return nil, ErrNoImageReturned
}
