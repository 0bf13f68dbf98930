package parse

import (
	"reflect"
	"testing"
)

type feedback struct {
	Feedback string `json:"feedback"`
	Score    int    `json:"score"`
}

func TestParseStringAs_Primitives(t *testing.T) {
	if got, err := ParseStringAs[int](" 8 \n"); err != nil || got != 8 {
		t.Errorf("int = %d, %v", got, err)
	}
	if got, err := ParseStringAs[float64]("22.86"); err != nil || got != 22.86 {
		t.Errorf("float = %v, %v", got, err)
	}
	if got, err := ParseStringAs[bool]("true"); err != nil || !got {
		t.Errorf("bool = %v, %v", got, err)
	}
	if got, err := ParseStringAs[uint8]("200"); err != nil || got != 200 {
		t.Errorf("uint8 = %v, %v", got, err)
	}
	if got, err := ParseStringAs[string]("  keep spacing "); err != nil || got != "  keep spacing " {
		t.Errorf("string = %q, %v", got, err)
	}
}

func TestParseStringAs_PrimitiveErrors(t *testing.T) {
	tests := []struct {
		name  string
		parse func() error
	}{
		{"bool", func() error { _, err := ParseStringAs[bool]("yes"); return err }},
		{"int", func() error { _, err := ParseStringAs[int]("eight"); return err }},
		{"int overflow", func() error { _, err := ParseStringAs[int8]("300"); return err }},
		{"negative uint", func() error { _, err := ParseStringAs[uint]("-1"); return err }},
		{"float", func() error { _, err := ParseStringAs[float64]("1.2.3"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.parse(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseStringAs_CodeFence(t *testing.T) {
	if got, err := ParseStringAs[int]("```\n8\n```"); err != nil || got != 8 {
		t.Errorf("fenced int = %d, %v", got, err)
	}

	got, err := ParseStringAs[feedback]("```json\n{\"feedback\": \"clear\", \"score\": 7}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (feedback{Feedback: "clear", Score: 7}) {
		t.Errorf("got %+v", got)
	}
}

func TestParseStringAs_Struct(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    feedback
	}{
		{"valid", `{"feedback":"clear","score":8}`, feedback{"clear", 8}},
		{"narrative", `Here is my evaluation: {"feedback":"clear","score":8} Let me know.`, feedback{"clear", 8}},
		{"single quotes", `{'feedback': 'clear', 'score': 8}`, feedback{"clear", 8}},
		{"trailing comma", `{"feedback":"clear","score":8,}`, feedback{"clear", 8}},
		{"truncated", `{"feedback":"clear","score":8`, feedback{"clear", 8}},
		{
			"schema wrapped",
			`{"feedback":{"type":"string","value":"clear"},"score":{"type":"integer","value":8}}`,
			feedback{"clear", 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringAs[feedback](tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseStringAs_CollectionsAndPointers(t *testing.T) {
	scores, err := ParseStringAs[[]int]("[7, 8, 9]")
	if err != nil || !reflect.DeepEqual(scores, []int{7, 8, 9}) {
		t.Errorf("slice = %v, %v", scores, err)
	}

	record, err := ParseStringAs[map[string]float64](`{"strike_rate": 125}`)
	if err != nil || record["strike_rate"] != 125 {
		t.Errorf("map = %v, %v", record, err)
	}

	pointer, err := ParseStringAs[*feedback](`{"feedback":"ok","score":5}`)
	if err != nil || pointer == nil || pointer.Score != 5 {
		t.Errorf("pointer = %+v, %v", pointer, err)
	}
}

func TestParseStringAs_SchemaWrappedPrimitives(t *testing.T) {
	if got, err := ParseStringAs[string](`{"type":"string","value":"positive"}`); err != nil || got != "positive" {
		t.Errorf("string = %q, %v", got, err)
	}
	if got, err := ParseStringAs[int](`{"type":"integer","value":8}`); err != nil || got != 8 {
		t.Errorf("int = %d, %v", got, err)
	}
	if got, err := ParseStringAs[bool](`{"type":"boolean","value":false}`); err != nil || got {
		t.Errorf("bool = %v, %v", got, err)
	}

	// Objects with more fields than type and value are data, not wrappers.
	type typed struct {
		Type  string `json:"type"`
		Value string `json:"value"`
		Extra int    `json:"extra"`
	}
	got, err := ParseStringAs[typed](`{"type":"note","value":"x","extra":1}`)
	if err != nil || got.Type != "note" || got.Extra != 1 {
		t.Errorf("legitimate type/value fields = %+v, %v", got, err)
	}
}

func TestParseStringAs_TypeMismatch(t *testing.T) {
	if _, err := ParseStringAs[feedback](`[1, 2, 3]`); err == nil {
		t.Error("expected an error decoding an array into a struct")
	}
	if _, err := ParseStringAs[[]int](`{"a": 1}`); err == nil {
		t.Error("expected an error decoding an object into a slice")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"plain":                       "plain",
		"  padded  ":                  "padded",
		"```json\n{\"a\":1}\n```":     `{"a":1}`,
		"```\n[1]\n```":               "[1]",
		"```yaml\nkey: value\n```\n ": "key: value",
	}
	for input, want := range tests {
		if got := stripCodeFence(input); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtractJSONCandidate(t *testing.T) {
	tests := map[string]string{
		`no json here`:                     "",
		`prefix {"a": {"b": 1}} suffix`:    `{"a": {"b": 1}}`,
		`list: [1, 2] done`:                `[1, 2]`,
		`cut off {"a": 1`:                  `{"a": 1`,
		`{"a": 1} and then {"b": 2} again`: `{"a": 1} and then {"b": 2}`,
	}
	for input, want := range tests {
		if got := extractJSONCandidate(input); got != want {
			t.Errorf("extractJSONCandidate(%q) = %q, want %q", input, got, want)
		}
	}
}
