package model_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/leofalp/stategraph/providers/model"
	"github.com/leofalp/stategraph/providers/model/fake"
)

type evaluation struct {
	Feedback string `json:"feedback" description:"Detailed feedback"`
	Score    int    `json:"score" validate:"min=0,max=10" description:"Score out of 10"`
}

type sentiment struct {
	Sentiment string `json:"sentiment" validate:"oneof=positive negative" enum:"positive,negative"`
}

func TestExtractAs(t *testing.T) {
	backend := fake.New().On("language quality", "```json\n{\"feedback\": \"Clear and precise.\", \"score\": 8}\n```")

	result, err := model.ExtractAs[evaluation](context.Background(), backend, "Evaluate the language quality")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 8 || result.Feedback != "Clear and precise." {
		t.Errorf("result = %+v", result)
	}
}

func TestExtractAs_RepairsMalformedJSON(t *testing.T) {
	backend := fake.New().Default(`{'sentiment': 'negative'}`)

	result, err := model.ExtractAs[sentiment](context.Background(), backend, "Classify")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sentiment != "negative" {
		t.Errorf("sentiment = %q", result.Sentiment)
	}
}

func TestExtractAs_ValidationFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		run   func(model.Extractor) error
	}{
		{
			name:  "score out of range",
			reply: `{"feedback": "x", "score": 42}`,
			run: func(extractor model.Extractor) error {
				_, err := model.ExtractAs[evaluation](context.Background(), extractor, "p")
				return err
			},
		},
		{
			name:  "unknown sentiment",
			reply: `{"sentiment": "neutral"}`,
			run: func(extractor model.Extractor) error {
				_, err := model.ExtractAs[sentiment](context.Background(), extractor, "p")
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(fake.New().Default(tt.reply))
			var validationErrors validator.ValidationErrors
			if !errors.As(err, &validationErrors) {
				t.Fatalf("expected validation errors, got %v", err)
			}
		})
	}
}

func TestExtractAs_PropagatesBackendError(t *testing.T) {
	_, err := model.ExtractAs[sentiment](context.Background(), fake.New(), "unscripted")
	if !errors.Is(err, fake.ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
}

func TestSchemaFor(t *testing.T) {
	schema, err := model.SchemaFor[evaluation]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Type != jsonschema.Object {
		t.Errorf("schema type = %v", schema.Type)
	}
	score, ok := schema.Properties["score"]
	if !ok || score.Type != jsonschema.Integer || score.Description != "Score out of 10" {
		t.Errorf("score property = %+v", score)
	}
	if strings.Join(schema.Required, ",") != "feedback,score" {
		t.Errorf("required = %v", schema.Required)
	}
}

func TestDecodeReply(t *testing.T) {
	var target map[string]any
	if err := model.DecodeReply(`Result: {"a": 1} done`, &target); err != nil || target["a"] != 1.0 {
		t.Errorf("DecodeReply = %v, %v", target, err)
	}

	if err := model.DecodeReply(`{}`, target); !errors.Is(err, model.ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget for a non-pointer, got %v", err)
	}
	var nilPointer *map[string]any
	if err := model.DecodeReply(`{}`, nilPointer); !errors.Is(err, model.ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget for a nil pointer, got %v", err)
	}
}

func TestValidate_SkipsNonStructs(t *testing.T) {
	if err := model.Validate(42); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	var missing *sentiment
	if err := model.Validate(missing); err != nil {
		t.Errorf("unexpected error for nil pointer: %v", err)
	}
	if err := model.Validate(&sentiment{Sentiment: "positive"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
