package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/stategraph/core/overview"
	"github.com/leofalp/stategraph/providers/model"
)

// recordedRequest mirrors the request fields under test. The schema is kept
// raw since the client type holds it behind an interface.
type recordedRequest struct {
	Model          string                           `json:"model"`
	Messages       []goopenai.ChatCompletionMessage `json:"messages"`
	Temperature    float32                          `json:"temperature"`
	ResponseFormat *struct {
		Type       goopenai.ChatCompletionResponseFormatType `json:"type"`
		JSONSchema *struct {
			Name   string          `json:"name"`
			Strict bool            `json:"strict"`
			Schema json.RawMessage `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

type fakeServer struct {
	mutex    sync.Mutex
	requests []recordedRequest
	reply    string
	status   int
}

func (server *fakeServer) handle(writer http.ResponseWriter, request *http.Request) {
	if request.URL.Path != "/v1/chat/completions" {
		http.NotFound(writer, request)
		return
	}

	var decoded recordedRequest
	if err := json.NewDecoder(request.Body).Decode(&decoded); err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	server.mutex.Lock()
	server.requests = append(server.requests, decoded)
	server.mutex.Unlock()

	writer.Header().Set("Content-Type", "application/json")
	if server.status != 0 {
		writer.WriteHeader(server.status)
		_, _ = writer.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit_exceeded"}}`))
		return
	}

	_ = json.NewEncoder(writer).Encode(goopenai.ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: decoded.Model,
		Choices: []goopenai.ChatCompletionChoice{{
			Message:      goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: server.reply},
			FinishReason: goopenai.FinishReasonStop,
		}},
		Usage: goopenai.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
	})
}

func newTestClient(t *testing.T, server *fakeServer, opts ...Option) *Client {
	t.Helper()
	httpServer := httptest.NewServer(http.HandlerFunc(server.handle))
	t.Cleanup(httpServer.Close)

	return New(append([]Option{
		WithAPIKey("test-key"),
		WithBaseURL(httpServer.URL + "/v1"),
		WithModel("gpt-test"),
	}, opts...)...)
}

func TestComplete(t *testing.T) {
	server := &fakeServer{reply: "Paris"}
	client := newTestClient(t, server, WithSystemPrompt("Be terse."), WithTemperature(0.2))

	ctx := context.Background()
	usage := overview.OverviewFromContext(&ctx)

	reply, err := client.Complete(ctx, "Capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", reply)

	require.Len(t, server.requests, 1)
	request := server.requests[0]
	assert.Equal(t, "gpt-test", request.Model)
	require.Len(t, request.Messages, 2)
	assert.Equal(t, goopenai.ChatMessageRoleSystem, request.Messages[0].Role)
	assert.Equal(t, "Capital of France?", request.Messages[1].Content)
	assert.InDelta(t, 0.2, request.Temperature, 1e-6)

	assert.Equal(t, 15, usage.TotalUsage().TotalTokens)
	assert.Equal(t, 15, usage.UsageByModel()["gpt-test"].TotalTokens)
	assert.Equal(t, "gpt-test", client.ModelName())
}

func TestExtract_SendsJSONSchema(t *testing.T) {
	type sentiment struct {
		Sentiment string `json:"sentiment" enum:"positive,negative"`
	}
	server := &fakeServer{reply: `{"sentiment":"positive"}`}
	client := newTestClient(t, server)

	result, err := model.ExtractAs[sentiment](context.Background(), client, "Great product!")
	require.NoError(t, err)
	assert.Equal(t, "positive", result.Sentiment)

	require.Len(t, server.requests, 1)
	format := server.requests[0].ResponseFormat
	require.NotNil(t, format)
	assert.Equal(t, goopenai.ChatCompletionResponseFormatTypeJSONSchema, format.Type)
	require.NotNil(t, format.JSONSchema)
	assert.Equal(t, "output", format.JSONSchema.Name)
	assert.True(t, format.JSONSchema.Strict)
	assert.Contains(t, string(format.JSONSchema.Schema), `"enum":["positive","negative"]`)
}

func TestExtract_WithoutSchemaUsesJSONObject(t *testing.T) {
	server := &fakeServer{reply: `{"score": 7}`}
	client := newTestClient(t, server)

	var target map[string]int
	require.NoError(t, client.Extract(context.Background(), "score it", nil, &target))
	assert.Equal(t, 7, target["score"])
	assert.Equal(t, goopenai.ChatCompletionResponseFormatTypeJSONObject, server.requests[0].ResponseFormat.Type)
}

func TestChat(t *testing.T) {
	server := &fakeServer{reply: "Hello Ada"}
	client := newTestClient(t, server, WithSystemPrompt("ignored in chat"))

	reply, err := client.Chat(context.Background(), []model.Message{
		model.UserMessage("Hi, I'm Ada"),
		model.AssistantMessage("Hi!"),
		model.UserMessage("Say my name"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello Ada", reply.Content)

	require.Len(t, server.requests[0].Messages, 3)
	assert.Equal(t, "assistant", server.requests[0].Messages[1].Role)
}

func TestStatusErrorsAreRetryable(t *testing.T) {
	server := &fakeServer{status: http.StatusTooManyRequests}
	client := newTestClient(t, server)

	ctx := context.Background()
	usage := overview.OverviewFromContext(&ctx)

	_, err := client.Complete(ctx, "anything")
	require.Error(t, err)

	var statusError *model.StatusError
	require.True(t, errors.As(err, &statusError))
	assert.Equal(t, http.StatusTooManyRequests, statusError.StatusCode)
	assert.True(t, model.DefaultRetryable(err))
	assert.Equal(t, 1, usage.Summary().Failures)
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("STATEGRAPH_MODEL", "")
	assert.Equal(t, DefaultModel, New(WithAPIKey("x")).ModelName())

	t.Setenv("STATEGRAPH_MODEL", "gpt-env")
	assert.Equal(t, "gpt-env", New().ModelName())
	assert.Equal(t, "gpt-option", New(WithModel("gpt-option")).ModelName())
}
