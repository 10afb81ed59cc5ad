// Package gemini reviews spoken patient answers with the Gemini API:
// validation against the asked question, structured extraction of medical
// details from free text, and follow-up question generation.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"medhistory-skill/internal/domain"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// generativeAPI is the minimal Gemini surface required by Client.
// Defined here for testability.
type generativeAPI interface {
	GenerateContent(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// sdkAPI adapts *genai.Client to generativeAPI.
type sdkAPI struct {
	client *genai.Client
}

func (s *sdkAPI) GenerateContent(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	return s.client.GenerativeModel(model).GenerateContent(ctx, parts...)
}

// Client is a focused Gemini client for answer review. The API key is fetched
// from SSM on the first call and the SDK client is reused for the lifetime of
// the process.
type Client struct {
	getter      Getter
	paramPrefix string
	model       string

	apiOnce sync.Once
	api     generativeAPI
	apiErr  error
}

type Option func(*Client)

// WithModel overrides the generative model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = strings.TrimSpace(model)
		}
	}
}

// WithAPI injects a generativeAPI implementation, bypassing the SSM-backed
// SDK construction. Used by tests.
func WithAPI(api generativeAPI) Option {
	return func(c *Client) {
		c.api = api
	}
}

// NewClient creates a Client backed by the given paramstore Getter for API
// key retrieval.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("gemini: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("gemini: parameter prefix must not be empty")
	}
	c := &Client{
		getter:      ps,
		paramPrefix: paramPrefix,
		model:       DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/gemini-token"
}

// resolveAPI builds the SDK client on the first call and returns the cached
// result on every subsequent call within the same process lifetime.
func (c *Client) resolveAPI(ctx context.Context) (generativeAPI, error) {
	if c.api != nil {
		return c.api, nil
	}
	c.apiOnce.Do(func() {
		key, err := fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
		if err != nil {
			c.apiErr = err
			return
		}
		client, err := genai.NewClient(ctx, option.WithAPIKey(key))
		if err != nil {
			c.apiErr = fmt.Errorf("gemini: create client: %w", err)
			return
		}
		c.api = &sdkAPI{client: client}
	})
	return c.api, c.apiErr
}

// Validate asks Gemini whether the answer actually addresses the question.
// The wire protocol follows the review prompt contract: "VALID",
// "VALID|<formatted value>", or "INVALID|<reworded question>". Unexpected
// output is treated as valid with the original value, so a misbehaving model
// never blocks the interview.
func (c *Client) Validate(ctx context.Context, slotName, value, question string) (domain.ValidationResult, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return domain.ValidationResult{}, err
	}

	resp, err := api.GenerateContent(ctx, c.model, genai.Text(validationPrompt(slotName, value, question)))
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("gemini: validate: %w", err)
	}
	raw := strings.TrimSpace(firstText(resp))
	if raw == "" {
		return domain.ValidationResult{}, errors.New("gemini: validate: empty response")
	}
	return parseValidation(raw, value), nil
}

// Extract condenses a free-text answer into concise structured details,
// e.g. "I have high blood pressure and diabetes" into "hypertension,
// diabetes". An empty model response falls back to the original answer.
func (c *Client) Extract(ctx context.Context, question, response string) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.GenerateContent(ctx, c.model, genai.Text(extractionPrompt(question, response)))
	if err != nil {
		return "", fmt.Errorf("gemini: extract: %w", err)
	}
	text := strings.TrimSpace(firstText(resp))
	if text == "" {
		return response, nil
	}
	return text, nil
}

// FollowUp generates a dynamic follow-up question from the previous exchange.
func (c *Client) FollowUp(ctx context.Context, question, answer string) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.GenerateContent(ctx, c.model, genai.Text(followUpPrompt(question, answer)))
	if err != nil {
		return "", fmt.Errorf("gemini: follow-up: %w", err)
	}
	text := strings.TrimSpace(firstText(resp))
	if text == "" {
		return "", errors.New("gemini: follow-up: empty response")
	}
	return text, nil
}

// parseValidation decodes the VALID/INVALID protocol. original is returned
// when the model answers VALID without a formatted value, or when the output
// does not match the protocol at all.
func parseValidation(raw, original string) domain.ValidationResult {
	switch {
	case strings.HasPrefix(raw, "VALID|"):
		return domain.ValidationResult{Valid: true, Value: strings.TrimSpace(strings.TrimPrefix(raw, "VALID|"))}
	case strings.HasPrefix(raw, "INVALID|"):
		return domain.ValidationResult{Valid: false, Value: strings.TrimSpace(strings.TrimPrefix(raw, "INVALID|"))}
	case strings.HasPrefix(raw, "VALID"):
		return domain.ValidationResult{Valid: true, Value: original}
	default:
		return domain.ValidationResult{Valid: true, Value: original}
	}
}

// firstText concatenates the text parts of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("gemini: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("gemini: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("gemini: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("gemini: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("gemini: API token is empty")
	}
	return tp.Token, nil
}
