package model

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// UserMessage returns a message authored by the user.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns a message authored by the model.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Completer answers a single prompt with free text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Extractor answers a prompt with JSON matching schema and decodes it into
// target, which must be a non-nil pointer.
type Extractor interface {
	Extract(ctx context.Context, prompt string, schema *jsonschema.Definition, target any) error
}

// Chatter continues a conversation and returns the model's reply.
type Chatter interface {
	Chat(ctx context.Context, messages []Message) (Message, error)
}

// Model is a backend able to serve every collaborator role.
type Model interface {
	Completer
	Extractor
	Chatter
}

// Namer is implemented by models that can report the model identifier they
// call. Middleware uses it for log and metric attributes.
type Namer interface {
	ModelName() string
}

// NameOf returns the model identifier of m, or "unknown".
func NameOf(m any) string {
	if namer, ok := m.(Namer); ok {
		return namer.ModelName()
	}
	return "unknown"
}

// Operation is the kind of collaborator call.
type Operation string

const (
	OperationComplete Operation = "complete"
	OperationExtract  Operation = "extract"
	OperationChat     Operation = "chat"
)

// Call describes a collaborator call as seen by middleware.
type Call struct {
	Operation Operation
	Model     string
	// Prompt is the prompt for complete and extract calls, and the content of
	// the last message for chat calls.
	Prompt   string
	Messages []Message
}

// Invoke performs the wrapped call. It may be called more than once.
type Invoke func(ctx context.Context) error

// Interceptor surrounds a call. It must call invoke to reach the wrapped
// model and return its error, possibly transformed.
type Interceptor func(ctx context.Context, call Call, invoke Invoke) error

// Intercept returns a Model that routes every call of next through interceptor.
func Intercept(next Model, interceptor Interceptor) Model {
	return &interceptedModel{next: next, interceptor: interceptor}
}

type interceptedModel struct {
	next        Model
	interceptor Interceptor
}

func (intercepted *interceptedModel) ModelName() string {
	return NameOf(intercepted.next)
}

func (intercepted *interceptedModel) Complete(ctx context.Context, prompt string) (string, error) {
	var reply string
	call := Call{Operation: OperationComplete, Model: intercepted.ModelName(), Prompt: prompt}
	err := intercepted.interceptor(ctx, call, func(ctx context.Context) error {
		var err error
		reply, err = intercepted.next.Complete(ctx, prompt)
		return err
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (intercepted *interceptedModel) Extract(ctx context.Context, prompt string, schema *jsonschema.Definition, target any) error {
	call := Call{Operation: OperationExtract, Model: intercepted.ModelName(), Prompt: prompt}
	return intercepted.interceptor(ctx, call, func(ctx context.Context) error {
		return intercepted.next.Extract(ctx, prompt, schema, target)
	})
}

func (intercepted *interceptedModel) Chat(ctx context.Context, messages []Message) (Message, error) {
	var reply Message
	call := Call{Operation: OperationChat, Model: intercepted.ModelName(), Messages: messages}
	if len(messages) > 0 {
		call.Prompt = messages[len(messages)-1].Content
	}
	err := intercepted.interceptor(ctx, call, func(ctx context.Context) error {
		var err error
		reply, err = intercepted.next.Chat(ctx, messages)
		return err
	})
	if err != nil {
		return Message{}, err
	}
	return reply, nil
}
