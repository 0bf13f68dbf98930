package parse

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStringAs converts a model reply into T.
//
// Primitive kinds (string, bool, int, uint, float) are converted directly after
// trimming whitespace. Every other kind is decoded as JSON. Replies wrapped in
// a Markdown code fence are unwrapped first, malformed JSON is repaired with
// jsonrepair, and as a last resort schema-like {"type": ..., "value": ...}
// wrappers are flattened, since models sometimes answer with the schema shape.
//
// Example:
//
//	type Feedback struct {
//	    Feedback string `json:"feedback"`
//	    Score    int    `json:"score"`
//	}
//
//	// Valid JSON
//	feedback, err := parse.ParseStringAs[Feedback](`{"feedback":"clear","score":8}`)
//
//	// Fenced, single-quoted JSON (repaired)
//	feedback, err := parse.ParseStringAs[Feedback]("```json\n{feedback: 'clear', score: 8}\n```")
//
//	// Primitives
//	score, err := parse.ParseStringAs[int](" 8 ")
func ParseStringAs[T any](content string) (T, error) {
	var result T
	target := reflect.ValueOf(&result).Elem()

	switch target.Kind() {
	case reflect.String:
		// A JSON object may carry a schema-wrapped string.
		if trimmed := strings.TrimSpace(content); strings.HasPrefix(trimmed, "{") {
			if unwrapped, err := tryUnwrapPrimitive(trimmed); err == nil {
				target.SetString(unwrapped)
				return result, nil
			}
		}
		target.SetString(content)
		return result, nil

	case reflect.Bool, reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		err := setPrimitive(target, stripCodeFence(content))
		if err == nil {
			return result, nil
		}
		if unwrapped, unwrapErr := tryUnwrapPrimitive(stripCodeFence(content)); unwrapErr == nil {
			if retryErr := setPrimitive(target, unwrapped); retryErr == nil {
				return result, nil
			}
		}
		return result, err

	default:
		return result, decodeJSON(stripCodeFence(content), &result)
	}
}

// setPrimitive parses text into the primitive value pointed to by target.
func setPrimitive(target reflect.Value, text string) error {
	text = strings.TrimSpace(text)

	switch target.Kind() {
	case reflect.Bool:
		parsed, err := strconv.ParseBool(text)
		if err != nil {
			return fmt.Errorf("failed to parse content as bool: %w", err)
		}
		target.SetBool(parsed)

	case reflect.Float32, reflect.Float64:
		parsed, err := strconv.ParseFloat(text, target.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to parse content as float: %w", err)
		}
		target.SetFloat(parsed)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(text, 10, target.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to parse content as int: %w", err)
		}
		target.SetInt(parsed)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseUint(text, 10, target.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to parse content as uint: %w", err)
		}
		target.SetUint(parsed)

	default:
		return fmt.Errorf("unsupported primitive kind %s", target.Kind())
	}
	return nil
}

// decodeJSON unmarshals content into out, repairing it when needed.
func decodeJSON(content string, out any) error {
	err := json.Unmarshal([]byte(content), out)
	if err == nil {
		return nil
	}

	// Replies often wrap the payload in prose.
	if candidate := extractJSONCandidate(content); candidate != "" && candidate != content {
		if candidateErr := json.Unmarshal([]byte(candidate), out); candidateErr == nil {
			return nil
		}
		content = candidate
	}

	repairedJSON, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return fmt.Errorf("failed to unmarshal content as %T and failed to repair JSON: unmarshal error: %w, repair error: %v", out, err, repairErr)
	}

	err = json.Unmarshal([]byte(repairedJSON), out)
	if err == nil {
		return nil
	}

	// Models sometimes confuse the JSON schema with the data.
	if unwrapped, unwrapErr := unwrapSchemaValues(repairedJSON); unwrapErr == nil {
		if retryErr := json.Unmarshal([]byte(unwrapped), out); retryErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to unmarshal repaired JSON as %T: %w (original content: %s, repaired: %s)", out, err, content, repairedJSON)
}

// stripCodeFence removes a surrounding Markdown code fence such as
// "```json ... ```". Content without a fence is returned trimmed.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		// Drop the language tag on the opening line.
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// extractJSONCandidate returns the span from the first opening brace or
// bracket to the last matching closer, or "" when there is none.
func extractJSONCandidate(content string) string {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if content[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(content, closer)
	if end <= start {
		// Truncated reply, let jsonrepair close it.
		return content[start:]
	}
	return content[start : end+1]
}

// tryUnwrapPrimitive unwraps {"type": ..., "value": ...} and returns the
// value as text.
func tryUnwrapPrimitive(content string) (string, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return "", err
	}

	if _, hasType := data["type"]; hasType {
		if value, hasValue := data["value"]; hasValue && len(data) == 2 {
			switch typed := value.(type) {
			case string:
				return typed, nil
			case float64, bool:
				return fmt.Sprintf("%v", typed), nil
			default:
				encoded, err := json.Marshal(typed)
				if err != nil {
					return "", err
				}
				return string(encoded), nil
			}
		}
	}

	return "", fmt.Errorf("not a schema-wrapped value")
}

// unwrapSchemaValues flattens schema-like wrappers at any depth.
//
// Example input:
//
//	{"feedback": {"type": "string", "value": "clear"}, "score": {"type": "integer", "value": 8}}
//
// Example output:
//
//	{"feedback": "clear", "score": 8}
func unwrapSchemaValues(jsonText string) (string, error) {
	var data any
	if err := json.Unmarshal([]byte(jsonText), &data); err != nil {
		return "", err
	}

	encoded, err := json.Marshal(recursiveUnwrap(data))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func recursiveUnwrap(data any) any {
	switch typed := data.(type) {
	case map[string]any:
		if _, hasType := typed["type"]; hasType {
			if value, hasValue := typed["value"]; hasValue && len(typed) == 2 {
				return recursiveUnwrap(value)
			}
		}
		result := make(map[string]any, len(typed))
		for key, value := range typed {
			result[key] = recursiveUnwrap(value)
		}
		return result

	case []any:
		result := make([]any, len(typed))
		for index, value := range typed {
			result[index] = recursiveUnwrap(value)
		}
		return result

	default:
		return data
	}
}
