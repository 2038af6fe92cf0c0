package geo

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-3-haiku-20240307"

// regionPrompt asks for a bare yes/no so the answer parses without any
// response-format plumbing.
func regionPrompt(location, region string) string {
	return fmt.Sprintf(
		"Given the user's location: '%s', determine whether they are located in %s. Respond only with 'Yes' or 'No'.",
		location, region,
	)
}

func isYes(answer string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "yes")
}

// Claude answers the in-region question with an Anthropic model. Country
// code extraction is not a job for a chat model, so Resolve delegates to a
// geocoder.
type Claude struct {
	client   sdk.Client
	model    string
	region   string
	geocoder Resolver
}

func NewClaude(apiKey, model, region string, geocoder Resolver) *Claude {
	if model == "" {
		model = defaultClaudeModel
	}
	return &Claude{
		client:   sdk.NewClient(option.WithAPIKey(apiKey)),
		model:    model,
		region:   region,
		geocoder: geocoder,
	}
}

func (c *Claude) InRegion(ctx context.Context, location string) (bool, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 10,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(regionPrompt(location, c.region))),
		},
	})
	if err != nil {
		return false, fmt.Errorf("claude region check: %w", err)
	}
	for _, block := range msg.Content {
		if block.Text != "" {
			return isYes(block.Text), nil
		}
	}
	return false, nil
}

func (c *Claude) Resolve(ctx context.Context, location string) (string, error) {
	return c.geocoder.Resolve(ctx, location)
}
