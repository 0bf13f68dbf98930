package model

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/leofalp/stategraph/core/parse"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// SchemaFor derives the JSON schema of T from its json, description, enum
// and required struct tags.
func SchemaFor[T any]() (*jsonschema.Definition, error) {
	var zero T
	schema, err := jsonschema.GenerateSchemaForType(zero)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %T: %w", zero, err)
	}
	return schema, nil
}

// ExtractAs asks extractor for a reply shaped like T, then validates the
// decoded value with its `validate` struct tags.
//
// Example:
//
//	type Sentiment struct {
//	    Sentiment string `json:"sentiment" validate:"oneof=positive negative"`
//	}
//	result, err := model.ExtractAs[Sentiment](ctx, llm, "Classify: "+review)
func ExtractAs[T any](ctx context.Context, extractor Extractor, prompt string) (T, error) {
	var result T

	schema, err := SchemaFor[T]()
	if err != nil {
		return result, err
	}

	if err := extractor.Extract(ctx, prompt, schema, &result); err != nil {
		return result, fmt.Errorf("extract %T: %w", result, err)
	}

	if err := Validate(result); err != nil {
		return result, err
	}
	return result, nil
}

// Validate checks value against its `validate` struct tags. Values that are
// not structs, or pointers to structs, pass unchecked.
func Validate(value any) error {
	reflected := reflect.ValueOf(value)
	for reflected.Kind() == reflect.Pointer {
		if reflected.IsNil() {
			return nil
		}
		reflected = reflected.Elem()
	}
	if reflected.Kind() != reflect.Struct {
		return nil
	}

	if err := structValidator().Struct(reflected.Interface()); err != nil {
		return fmt.Errorf("invalid %s: %w", reflected.Type(), err)
	}
	return nil
}

// DecodeReply decodes a model reply into target. Fenced, wrapped and
// malformed JSON is recovered with [parse.ParseStringAs] before decoding.
func DecodeReply(reply string, target any) error {
	reflected := reflect.ValueOf(target)
	if reflected.Kind() != reflect.Pointer || reflected.IsNil() {
		return fmt.Errorf("%w, got %T", ErrInvalidTarget, target)
	}

	raw, err := parse.ParseStringAs[json.RawMessage](reply)
	if err != nil {
		return fmt.Errorf("failed to parse reply: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode reply into %T: %w", target, err)
	}
	return nil
}
