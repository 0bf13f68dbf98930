// Package fake provides a scripted, deterministic [model.Model] for tests
// and offline runs. Replies are chosen by matching prompt substrings in
// registration order.
package fake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/leofalp/stategraph/core/overview"
	"github.com/leofalp/stategraph/providers/model"
	"github.com/leofalp/stategraph/providers/observability"
)

// ErrNoReply is returned when no rule matches a prompt and no default is set.
var ErrNoReply = errors.New("fake model: no scripted reply")

// Name is the model identifier reported by the fake.
const Name = "fake"

type rule struct {
	match     string
	reply     string
	err       error
	remaining int // failures left; -1 means unlimited
}

// Model replies from a script. It is safe for concurrent use.
type Model struct {
	mutex        sync.Mutex
	rules        []*rule
	defaultReply *string
	calls        []model.Call
}

// New returns a Model with an empty script.
func New() *Model {
	return &Model{}
}

// On replies with reply to prompts containing match.
func (fake *Model) On(match, reply string) *Model {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.rules = append(fake.rules, &rule{match: match, reply: reply})
	return fake
}

// Fail returns err for the next times prompts containing match, then lets
// later rules answer. A negative times fails forever.
func (fake *Model) Fail(match string, err error, times int) *Model {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	if times < 0 {
		times = -1
	}
	fake.rules = append(fake.rules, &rule{match: match, err: err, remaining: times})
	return fake
}

// Default replies with reply when nothing else matches.
func (fake *Model) Default(reply string) *Model {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.defaultReply = &reply
	return fake
}

// ModelName implements [model.Namer].
func (fake *Model) ModelName() string {
	return Name
}

// Calls returns the calls received so far, in arrival order.
func (fake *Model) Calls() []model.Call {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return append([]model.Call(nil), fake.calls...)
}

// CallCount returns how many received prompts contained match.
func (fake *Model) CallCount(match string) int {
	count := 0
	for _, call := range fake.Calls() {
		if strings.Contains(call.Prompt, match) {
			count++
		}
	}
	return count
}

// Complete implements [model.Completer].
func (fake *Model) Complete(ctx context.Context, prompt string) (string, error) {
	return fake.respond(ctx, model.Call{Operation: model.OperationComplete, Model: Name, Prompt: prompt})
}

// Extract implements [model.Extractor]. The scripted reply is decoded into target.
func (fake *Model) Extract(ctx context.Context, prompt string, _ *jsonschema.Definition, target any) error {
	reply, err := fake.respond(ctx, model.Call{Operation: model.OperationExtract, Model: Name, Prompt: prompt})
	if err != nil {
		return err
	}
	return model.DecodeReply(reply, target)
}

// Chat implements [model.Chatter]. Rules match against the last message.
func (fake *Model) Chat(ctx context.Context, messages []model.Message) (model.Message, error) {
	call := model.Call{Operation: model.OperationChat, Model: Name, Messages: append([]model.Message(nil), messages...)}
	if len(messages) > 0 {
		call.Prompt = messages[len(messages)-1].Content
	}
	reply, err := fake.respond(ctx, call)
	if err != nil {
		return model.Message{}, err
	}
	return model.AssistantMessage(reply), nil
}

func (fake *Model) respond(ctx context.Context, call model.Call) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reply, err := fake.lookup(call)
	usage := overview.Usage{PromptTokens: len(strings.Fields(call.Prompt))}
	if err == nil {
		usage.CompletionTokens = len(strings.Fields(reply))
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	recorded := overview.Call{Model: Name, Kind: string(call.Operation), Usage: usage}
	if err != nil {
		recorded.Err = err.Error()
	}
	overview.FromContext(ctx).Record(recorded)

	return reply, err
}

func (fake *Model) lookup(call model.Call) (string, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	fake.calls = append(fake.calls, call)
	for _, current := range fake.rules {
		if !strings.Contains(call.Prompt, current.match) {
			continue
		}
		if current.err != nil {
			if current.remaining == 0 {
				continue
			}
			if current.remaining > 0 {
				current.remaining--
			}
			return "", current.err
		}
		return current.reply, nil
	}

	if fake.defaultReply != nil {
		return *fake.defaultReply, nil
	}
	return "", fmt.Errorf("%w for %s prompt %q", ErrNoReply, call.Operation, observability.TruncateString(call.Prompt, 80))
}
