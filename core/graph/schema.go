package graph

import (
	"errors"
	"fmt"
	"reflect"
)

// FieldType is the semantic type of a state field.
type FieldType string

const (
	TypeAny    FieldType = "any"
	TypeNumber FieldType = "number"
	TypeText   FieldType = "text"
	TypeBool   FieldType = "bool"
	TypeList   FieldType = "list"
	TypeRecord FieldType = "record"
)

// ReducerKind selects how concurrent writes to a field are combined.
type ReducerKind string

const (
	// ReduceOverwrite replaces the value. Two different values written in the
	// same superstep are a conflict.
	ReduceOverwrite ReducerKind = "overwrite"

	// ReduceAppend concatenates incoming values onto the current list.
	ReduceAppend ReducerKind = "append"

	// ReduceCustom folds incoming values with a user function.
	ReduceCustom ReducerKind = "custom"
)

// ReducerFunc folds one incoming value into the current one. current is nil
// the first time the field is written.
type ReducerFunc func(current, incoming any) (any, error)

// Field declares a single state field.
type Field struct {
	Name    string
	Type    FieldType
	Reducer ReducerKind
	Custom  ReducerFunc
}

func Number(name string) Field { return Field{Name: name, Type: TypeNumber, Reducer: ReduceOverwrite} }
func Text(name string) Field   { return Field{Name: name, Type: TypeText, Reducer: ReduceOverwrite} }
func Bool(name string) Field   { return Field{Name: name, Type: TypeBool, Reducer: ReduceOverwrite} }
func List(name string) Field   { return Field{Name: name, Type: TypeList, Reducer: ReduceOverwrite} }
func Record(name string) Field { return Field{Name: name, Type: TypeRecord, Reducer: ReduceOverwrite} }
func Any(name string) Field    { return Field{Name: name, Type: TypeAny, Reducer: ReduceOverwrite} }

// Append switches the field to the append reducer. Nodes may write a single
// element or a slice; both are flattened onto the accumulated list.
func (field Field) Append() Field {
	field.Reducer = ReduceAppend
	field.Custom = nil
	return field
}

// Reduce switches the field to a custom reducer.
func (field Field) Reduce(fn ReducerFunc) Field {
	field.Reducer = ReduceCustom
	field.Custom = fn
	return field
}

// Schema is the fixed set of fields a graph's state may hold.
//
// Example:
//
//	schema := graph.MustSchema(
//	    graph.Number("value"),
//	    graph.List("results").Append(),
//	)
type Schema struct {
	fields map[string]Field
	order  []string
}

// NewSchema validates the field declarations and returns a Schema.
func NewSchema(fields ...Field) (*Schema, error) {
	schema := &Schema{
		fields: make(map[string]Field, len(fields)),
		order:  make([]string, 0, len(fields)),
	}

	var problems []error
	for _, field := range fields {
		if err := validateField(field); err != nil {
			problems = append(problems, err)
			continue
		}
		if _, exists := schema.fields[field.Name]; exists {
			problems = append(problems, fmt.Errorf("duplicate state field %q", field.Name))
			continue
		}
		if field.Reducer == "" {
			field.Reducer = ReduceOverwrite
		}
		if field.Type == "" {
			field.Type = TypeAny
		}
		schema.fields[field.Name] = field
		schema.order = append(schema.order, field.Name)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid schema: %w", errors.Join(problems...))
	}
	return schema, nil
}

// MustSchema is NewSchema that panics on error. Intended for package-level
// declarations of known-good schemas.
func MustSchema(fields ...Field) *Schema {
	schema, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return schema
}

func validateField(field Field) error {
	if field.Name == "" {
		return fmt.Errorf("state field name must not be empty")
	}
	if field.Name == Start || field.Name == End {
		return fmt.Errorf("state field name %q is reserved", field.Name)
	}
	switch field.Type {
	case "", TypeAny, TypeNumber, TypeText, TypeBool, TypeList, TypeRecord:
	default:
		return fmt.Errorf("state field %q has unknown type %q", field.Name, field.Type)
	}
	switch field.Reducer {
	case "", ReduceOverwrite:
	case ReduceAppend:
		if field.Type != TypeList && field.Type != TypeAny && field.Type != "" {
			return fmt.Errorf("state field %q: append reducer requires a list field, got %s", field.Name, field.Type)
		}
	case ReduceCustom:
		if field.Custom == nil {
			return fmt.Errorf("state field %q: custom reducer function is nil", field.Name)
		}
	default:
		return fmt.Errorf("state field %q has unknown reducer %q", field.Name, field.Reducer)
	}
	return nil
}

// Field returns the declaration for name. A nil schema accepts every field
// with an overwrite reducer.
func (schema *Schema) Field(name string) (Field, bool) {
	if schema == nil {
		return Field{Name: name, Type: TypeAny, Reducer: ReduceOverwrite}, true
	}
	field, exists := schema.fields[name]
	return field, exists
}

// Fields returns the declarations in declaration order.
func (schema *Schema) Fields() []Field {
	if schema == nil {
		return nil
	}
	fields := make([]Field, 0, len(schema.order))
	for _, name := range schema.order {
		fields = append(fields, schema.fields[name])
	}
	return fields
}

// validateValues checks every key of values against the schema. node names
// the writer for error reporting.
func (schema *Schema) validateValues(node string, values map[string]any) error {
	if schema == nil {
		return nil
	}
	for _, key := range sortedKeys(values) {
		field, exists := schema.fields[key]
		if !exists {
			return &InvalidUpdateError{Node: node, Field: key, Reason: "field is not declared in the state schema"}
		}
		value := values[key]
		// Append writes may be a single element or a slice of elements.
		if field.Reducer != ReduceOverwrite || value == nil {
			continue
		}
		if !matchesType(field.Type, value) {
			return &InvalidUpdateError{
				Node:   node,
				Field:  key,
				Reason: fmt.Sprintf("expected %s, got %T", field.Type, value),
			}
		}
	}
	return nil
}

// matchesType reports whether value is acceptable for a field of the given type.
func matchesType(fieldType FieldType, value any) bool {
	switch fieldType {
	case TypeNumber:
		_, isNumber := toFloat64(value)
		return isNumber
	case TypeText:
		return reflect.ValueOf(value).Kind() == reflect.String
	case TypeBool:
		return reflect.ValueOf(value).Kind() == reflect.Bool
	case TypeList:
		kind := reflect.ValueOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	case TypeRecord:
		reflected := reflect.ValueOf(value)
		if reflected.Kind() == reflect.Map {
			return reflected.Type().Key().Kind() == reflect.String
		}
		if reflected.Kind() == reflect.Pointer {
			reflected = reflected.Elem()
		}
		return reflected.Kind() == reflect.Struct
	default:
		return true
	}
}

// reduce applies field's reducer to fold incoming into current.
func (field Field) reduce(current any, hasCurrent bool, incoming any) (any, error) {
	switch field.Reducer {
	case ReduceAppend:
		if incoming == nil && hasCurrent {
			return current, nil
		}
		accumulated := []any{}
		if hasCurrent && current != nil {
			existing, isList := toList(current)
			if !isList {
				existing = []any{current}
			}
			accumulated = make([]any, 0, len(existing)+1)
			accumulated = append(accumulated, existing...)
		}
		if incoming == nil {
			return accumulated, nil
		}
		if incomingList, isList := toList(incoming); isList {
			return append(accumulated, incomingList...), nil
		}
		return append(accumulated, incoming), nil
	case ReduceCustom:
		if !hasCurrent {
			current = nil
		}
		reduced, err := field.Custom(current, incoming)
		if err != nil {
			return nil, fmt.Errorf("reducer for field %q: %w", field.Name, err)
		}
		return reduced, nil
	default:
		return incoming, nil
	}
}
