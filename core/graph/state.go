package graph

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// State is the shared record flowing through a graph: field name to value.
// The executor never shares a State between concurrently running nodes; each
// node and router receives its own shallow copy.
type State map[string]any

// Clone returns a shallow copy of the state. A nil state clones to an empty one.
func (state State) Clone() State {
	cloned := make(State, len(state))
	for key, value := range state {
		cloned[key] = value
	}
	return cloned
}

// Get returns the raw value of key and whether it is present.
func (state State) Get(key string) (any, bool) {
	value, exists := state[key]
	return value, exists
}

// Number returns key as a float64. Every Go integer and float kind is accepted.
func (state State) Number(key string) (float64, error) {
	value, err := state.require(key)
	if err != nil {
		return 0, err
	}
	number, isNumber := toFloat64(value)
	if !isNumber {
		return 0, &FieldError{Field: key, Want: TypeNumber, Got: value}
	}
	return number, nil
}

// Int returns key as an int. Floats are accepted only when they hold a whole number.
func (state State) Int(key string) (int, error) {
	number, err := state.Number(key)
	if err != nil {
		return 0, err
	}
	if number != math.Trunc(number) {
		return 0, &FieldError{Field: key, Want: TypeNumber, Got: state[key], Reason: "not a whole number"}
	}
	return int(number), nil
}

// Text returns key as a string.
func (state State) Text(key string) (string, error) {
	value, err := state.require(key)
	if err != nil {
		return "", err
	}
	reflected := reflect.ValueOf(value)
	if reflected.Kind() != reflect.String {
		return "", &FieldError{Field: key, Want: TypeText, Got: value}
	}
	return reflected.String(), nil
}

// Bool returns key as a bool.
func (state State) Bool(key string) (bool, error) {
	value, err := state.require(key)
	if err != nil {
		return false, err
	}
	reflected := reflect.ValueOf(value)
	if reflected.Kind() != reflect.Bool {
		return false, &FieldError{Field: key, Want: TypeBool, Got: value}
	}
	return reflected.Bool(), nil
}

// List returns key as a []any. Typed slices are converted element by element.
// A field that was never written is reported as missing, not as an empty list.
func (state State) List(key string) ([]any, error) {
	value, err := state.require(key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	list, isList := toList(value)
	if !isList {
		return nil, &FieldError{Field: key, Want: TypeList, Got: value}
	}
	return list, nil
}

// Record returns key as a map[string]any. Maps with string keys of any value
// type are converted.
func (state State) Record(key string) (map[string]any, error) {
	value, err := state.require(key)
	if err != nil {
		return nil, err
	}
	if record, isRecord := value.(map[string]any); isRecord {
		return record, nil
	}
	reflected := reflect.ValueOf(value)
	if reflected.Kind() != reflect.Map || reflected.Type().Key().Kind() != reflect.String {
		return nil, &FieldError{Field: key, Want: TypeRecord, Got: value}
	}
	record := make(map[string]any, reflected.Len())
	iterator := reflected.MapRange()
	for iterator.Next() {
		record[iterator.Key().String()] = iterator.Value().Interface()
	}
	return record, nil
}

// ValueAs returns key asserted to T.
func ValueAs[T any](state State, key string) (T, error) {
	var zero T
	value, err := state.require(key)
	if err != nil {
		return zero, err
	}
	typed, isType := value.(T)
	if !isType {
		return zero, &FieldError{Field: key, Want: FieldType(fmt.Sprintf("%T", zero)), Got: value}
	}
	return typed, nil
}

// ListOf returns key as a []T, asserting every element. A missing field yields
// an empty slice so accumulating fields can be read before their first write.
func ListOf[T any](state State, key string) ([]T, error) {
	if _, exists := state[key]; !exists {
		return []T{}, nil
	}
	list, err := state.List(key)
	if err != nil {
		return nil, err
	}
	typed := make([]T, 0, len(list))
	for index, element := range list {
		value, isType := element.(T)
		if !isType {
			var zero T
			return nil, &FieldError{
				Field:  key,
				Want:   FieldType(fmt.Sprintf("%T", zero)),
				Got:    element,
				Reason: fmt.Sprintf("element %d", index),
			}
		}
		typed = append(typed, value)
	}
	return typed, nil
}

func (state State) require(key string) (any, error) {
	value, exists := state[key]
	if !exists {
		return nil, &FieldError{Field: key, Missing: true}
	}
	return value, nil
}

// toFloat64 converts any Go numeric kind to float64.
func toFloat64(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(reflected.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(reflected.Uint()), true
	case reflect.Float32, reflect.Float64:
		return reflected.Float(), true
	default:
		return 0, false
	}
}

// toList converts slices and arrays to []any.
func toList(value any) ([]any, bool) {
	if list, isList := value.([]any); isList {
		return list, true
	}
	reflected := reflect.ValueOf(value)
	if reflected.Kind() != reflect.Slice && reflected.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, reflected.Len())
	for index := range list {
		list[index] = reflected.Index(index).Interface()
	}
	return list, true
}

// sortedKeys returns the keys of a string-keyed map in lexical order.
func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
