// Package openai implements [model.Model] on the OpenAI chat-completions API
// using github.com/sashabaranov/go-openai. Any OpenAI-compatible endpoint
// works by overriding the base URL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/leofalp/stategraph/core/overview"
	"github.com/leofalp/stategraph/providers/model"
)

const (
	// DefaultModel is used when neither an option nor STATEGRAPH_MODEL names one.
	DefaultModel = "gpt-4o-mini"

	schemaName = "output"
)

// Client calls the chat-completions endpoint.
type Client struct {
	client       *goopenai.Client
	model        string
	systemPrompt string
	temperature  float32
	maxTokens    int
}

type settings struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	temperature  float32
	maxTokens    int
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*settings)

// WithAPIKey sets the API key. Default: OPENAI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(current *settings) { current.apiKey = apiKey }
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
// Default: OPENAI_API_BASE_URL, then the public API.
func WithBaseURL(baseURL string) Option {
	return func(current *settings) { current.baseURL = baseURL }
}

// WithModel sets the model identifier. Default: STATEGRAPH_MODEL, then [DefaultModel].
func WithModel(name string) Option {
	return func(current *settings) { current.model = name }
}

// WithSystemPrompt prepends a system message to complete and extract calls.
func WithSystemPrompt(prompt string) Option {
	return func(current *settings) { current.systemPrompt = prompt }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float32) Option {
	return func(current *settings) { current.temperature = temperature }
}

// WithMaxTokens caps completion tokens per call.
func WithMaxTokens(maxTokens int) Option {
	return func(current *settings) { current.maxTokens = maxTokens }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(current *settings) { current.httpClient = httpClient }
}

// New creates a Client. It does not contact the API.
func New(opts ...Option) *Client {
	current := settings{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: os.Getenv("OPENAI_API_BASE_URL"),
		model:   os.Getenv("STATEGRAPH_MODEL"),
	}
	for _, opt := range opts {
		opt(&current)
	}
	if current.model == "" {
		current.model = DefaultModel
	}

	config := goopenai.DefaultConfig(current.apiKey)
	if current.baseURL != "" {
		config.BaseURL = current.baseURL
	}
	if current.httpClient != nil {
		config.HTTPClient = current.httpClient
	}

	return &Client{
		client:       goopenai.NewClientWithConfig(config),
		model:        current.model,
		systemPrompt: current.systemPrompt,
		temperature:  current.temperature,
		maxTokens:    current.maxTokens,
	}
}

// ModelName implements [model.Namer].
func (client *Client) ModelName() string {
	return client.model
}

// Complete implements [model.Completer].
func (client *Client) Complete(ctx context.Context, prompt string) (string, error) {
	request := client.newRequest(client.promptMessages(prompt))
	reply, err := client.send(ctx, model.OperationComplete, request)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// Extract implements [model.Extractor] with a strict JSON-schema response format.
func (client *Client) Extract(ctx context.Context, prompt string, schema *jsonschema.Definition, target any) error {
	request := client.newRequest(client.promptMessages(prompt))
	if schema != nil {
		request.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		}
	} else {
		request.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	reply, err := client.send(ctx, model.OperationExtract, request)
	if err != nil {
		return err
	}
	if reply.Refusal != "" {
		return fmt.Errorf("model refused to answer: %s", reply.Refusal)
	}
	return model.DecodeReply(reply.Content, target)
}

// Chat implements [model.Chatter]. The configured system prompt is not
// added; callers own the whole conversation.
func (client *Client) Chat(ctx context.Context, messages []model.Message) (model.Message, error) {
	converted := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, message := range messages {
		converted = append(converted, goopenai.ChatCompletionMessage{Role: string(message.Role), Content: message.Content})
	}

	reply, err := client.send(ctx, model.OperationChat, client.newRequest(converted))
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{Role: model.Role(reply.Role), Content: reply.Content}, nil
}

func (client *Client) promptMessages(prompt string) []goopenai.ChatCompletionMessage {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if client.systemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: client.systemPrompt})
	}
	return append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: prompt})
}

func (client *Client) newRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model:               client.model,
		Messages:            messages,
		Temperature:         client.temperature,
		MaxCompletionTokens: client.maxTokens,
	}
}

// send performs the request and records usage on the overview in ctx.
func (client *Client) send(ctx context.Context, operation model.Operation, request goopenai.ChatCompletionRequest) (goopenai.ChatCompletionMessage, error) {
	start := time.Now()
	response, err := client.client.CreateChatCompletion(ctx, request)

	call := overview.Call{Model: client.model, Kind: string(operation), Duration: time.Since(start)}
	if err != nil {
		err = convertError(err)
		call.Err = err.Error()
		overview.FromContext(ctx).Record(call)
		return goopenai.ChatCompletionMessage{}, fmt.Errorf("openai %s: %w", operation, err)
	}

	call.Usage = overview.Usage{
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
		TotalTokens:      response.Usage.TotalTokens,
	}
	if details := response.Usage.PromptTokensDetails; details != nil {
		call.Usage.CachedTokens = details.CachedTokens
	}
	if details := response.Usage.CompletionTokensDetails; details != nil {
		call.Usage.ReasoningTokens = details.ReasoningTokens
	}
	overview.FromContext(ctx).Record(call)

	if len(response.Choices) == 0 {
		return goopenai.ChatCompletionMessage{}, fmt.Errorf("openai %s: response has no choices", operation)
	}
	return response.Choices[0].Message, nil
}

// convertError exposes HTTP status codes as [model.StatusError] so the retry
// middleware can classify them.
func convertError(err error) error {
	var apiError *goopenai.APIError
	if errors.As(err, &apiError) && apiError.HTTPStatusCode != 0 {
		return &model.StatusError{StatusCode: apiError.HTTPStatusCode, Err: err}
	}
	var requestError *goopenai.RequestError
	if errors.As(err, &requestError) && requestError.HTTPStatusCode != 0 {
		return &model.StatusError{StatusCode: requestError.HTTPStatusCode, Err: err}
	}
	return err
}
