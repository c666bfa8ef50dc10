package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient reads page images with Google's Gemini models
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiClient creates a Gemini client. Call Close when done.
func NewGeminiClient(ctx context.Context, apiKey, model, baseURL string, maxTokens int) (*GeminiClient, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string, img Image) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetMaxOutputTokens(int32(c.maxTokens))

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData(imageFormat(img.MediaType), img.Data),
	)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	return candidateText(resp)
}

// Close releases the underlying connection
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// imageFormat turns "image/png" into the "png" form genai.ImageData wants
func imageFormat(mediaType string) string {
	return strings.TrimPrefix(mediaType, "image/")
}

func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no response candidates or content", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: candidate has no text parts", ErrEmptyResponse)
	}
	return sb.String(), nil
}
