package geo

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini answers the in-region question with a Google Gemini model and, like
// Claude, delegates country code extraction to a geocoder.
type Gemini struct {
	client   *genai.Client
	model    string
	region   string
	geocoder Resolver
}

func NewGemini(ctx context.Context, apiKey, model, region string, geocoder Resolver) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model, region: region, geocoder: geocoder}, nil
}

func (g *Gemini) InRegion(ctx context.Context, location string) (bool, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(regionPrompt(location, g.region)), nil)
	if err != nil {
		return false, fmt.Errorf("gemini region check: %w", err)
	}
	return isYes(resp.Text()), nil
}

func (g *Gemini) Resolve(ctx context.Context, location string) (string, error) {
	return g.geocoder.Resolve(ctx, location)
}
