// Package openai classifies concierge utterances with the Chat Completions
// API. It is the alternative to the Lex runtime for environments without a
// deployed bot.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"dining-concierge/internal/domain"
)

const defaultModel = "gpt-4o-mini"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaConfig `json:"json_schema"`
}

type jsonSchemaConfig struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	Choices []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// intentPayload is the structured content the model must return.
type intentPayload struct {
	Intent string `json:"intent"`
	Value  string `json:"value"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Classifier maps an utterance to a concierge intent and, for slot answers,
// the normalized value.
type Classifier struct {
	baseURL     string
	model       string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Classifier)

func WithBaseURL(baseURL string) Option {
	return func(c *Classifier) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithModel(model string) Option {
	return func(c *Classifier) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Classifier) {
		c.httpClient = httpClient
	}
}

// NewClassifier creates a Classifier whose API key is read from SSM on the
// first call and reused for the lifetime of the process.
func NewClassifier(ps Getter, paramPrefix string, opts ...Option) (*Classifier, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Classifier{
		baseURL:     "https://api.openai.com/v1",
		model:       defaultModel,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Classifier) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
	})
	return c.apiKey, c.keyErr
}

func (c *Classifier) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

func (c *Classifier) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Classify asks the model for one of the concierge intents. The expected slot
// is part of the prompt so short answers like "4" or "tomorrow" resolve to a
// slot value rather than small talk.
func (c *Classifier) Classify(ctx context.Context, in domain.ClassifyRequest) (domain.Classification, error) {
	utterance := strings.TrimSpace(in.Utterance)
	if utterance == "" {
		return domain.Classification{}, errors.New("openai: utterance must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return domain.Classification{}, err
	}

	temperature := 0.0
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(in.ExpectedSlot)},
			{Role: "user", Content: utterance},
		},
		Temperature:    &temperature,
		ResponseFormat: intentResponseFormat(),
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return domain.Classification{}, fmt.Errorf("openai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("openai: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.Classification{}, fmt.Errorf("openai: decode response: %w", decErr)
	}
	if len(payload.Choices) == 0 {
		return domain.Classification{}, errors.New("openai: no choices in response")
	}

	var result intentPayload
	if decErr := json.Unmarshal([]byte(payload.Choices[0].Message.Content), &result); decErr != nil {
		return domain.Classification{}, fmt.Errorf("openai: decode intent: %w", decErr)
	}
	intent, ok := intentNames[result.Intent]
	if !ok {
		return domain.Classification{}, fmt.Errorf("openai: unknown intent %q", result.Intent)
	}
	out := domain.Classification{Intent: intent}
	if intent == domain.IntentProvideSlotValue {
		out.Value = strings.TrimSpace(result.Value)
	}
	return out, nil
}

var intentNames = map[string]domain.Intent{
	"greeting":            domain.IntentGreeting,
	"thanks":              domain.IntentThanks,
	"provide_slot_value":  domain.IntentProvideSlotValue,
	"request_suggestions": domain.IntentRequestSuggestions,
}

func systemPrompt(expected domain.Slot) string {
	var b strings.Builder
	b.WriteString("You classify messages sent to a restaurant recommendation concierge. ")
	b.WriteString("Reply with intent greeting for hellos, thanks for thank-yous, ")
	b.WriteString("request_suggestions when the user asks for dining suggestions without giving details, ")
	b.WriteString("and provide_slot_value for anything that answers the current question. ")
	if expected != "" {
		fmt.Fprintf(&b, "The concierge is currently asking for the %s. ", expected)
		b.WriteString("For provide_slot_value put only that answer in value, without rewording it. ")
	}
	b.WriteString("Leave value empty for the other intents.")
	return b.String()
}

func intentResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "concierge_intent",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"intent":{"type":"string","enum":["greeting","thanks","provide_slot_value","request_suggestions"]},
					"value":{"type":"string"}
				},
				"required":["intent","value"]
			}`),
		},
	}
}

func (c *Classifier) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("openai: API token is empty")
	}
	return tp.Token, nil
}
