package graph

import (
	"errors"
	"reflect"
	"testing"
)

func TestState_Number(testCase *testing.T) {
	state := State{
		"int":     15,
		"int8":    int8(3),
		"uint":    uint(4),
		"float":   1.75,
		"float32": float32(0.5),
		"text":    "x",
	}

	for key, expected := range map[string]float64{"int": 15, "int8": 3, "uint": 4, "float": 1.75, "float32": 0.5} {
		got, err := state.Number(key)
		if err != nil {
			testCase.Fatalf("Number(%q) returned error: %v", key, err)
		}
		if got != expected {
			testCase.Errorf("Number(%q) = %v, want %v", key, got, expected)
		}
	}

	var fieldError *FieldError
	if _, err := state.Number("text"); !errors.As(err, &fieldError) || fieldError.Want != TypeNumber {
		testCase.Errorf("expected FieldError for text, got %v", err)
	}
	if _, err := state.Number("missing"); !errors.Is(err, ErrMissingField) {
		testCase.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestState_Int(testCase *testing.T) {
	state := State{"whole": 3.0, "fraction": 2.5}
	if got, err := state.Int("whole"); err != nil || got != 3 {
		testCase.Errorf("Int(whole) = %d, %v", got, err)
	}
	if _, err := state.Int("fraction"); err == nil {
		testCase.Error("expected error for fractional value")
	}
}

func TestState_TextAndBool(testCase *testing.T) {
	type sentiment string
	state := State{"text": "hello", "named": sentiment("positive"), "flag": true}

	if got, _ := state.Text("text"); got != "hello" {
		testCase.Errorf("Text = %q", got)
	}
	if got, _ := state.Text("named"); got != "positive" {
		testCase.Errorf("named string type = %q", got)
	}
	if got, _ := state.Bool("flag"); !got {
		testCase.Error("Bool = false")
	}
	if _, err := state.Bool("text"); err == nil {
		testCase.Error("expected type error for Bool(text)")
	}
}

func TestState_ListAndRecord(testCase *testing.T) {
	state := State{
		"strings": []string{"a", "b"},
		"record":  map[string]float64{"sr": 125},
		"scalar":  1,
	}

	list, err := state.List("strings")
	if err != nil || !reflect.DeepEqual(list, []any{"a", "b"}) {
		testCase.Errorf("List = %v, %v", list, err)
	}
	if _, err := state.List("scalar"); err == nil {
		testCase.Error("expected List(scalar) to fail")
	}

	record, err := state.Record("record")
	if err != nil || record["sr"] != 125.0 {
		testCase.Errorf("Record = %v, %v", record, err)
	}
}

func TestListOf(testCase *testing.T) {
	state := State{"scores": []any{7, 8}, "mixed": []any{1, "x"}}

	scores, err := ListOf[int](state, "scores")
	if err != nil || !reflect.DeepEqual(scores, []int{7, 8}) {
		testCase.Errorf("ListOf = %v, %v", scores, err)
	}

	empty, err := ListOf[int](state, "missing")
	if err != nil || len(empty) != 0 {
		testCase.Errorf("missing list = %v, %v", empty, err)
	}

	if _, err := ListOf[int](state, "mixed"); err == nil {
		testCase.Error("expected element type error")
	}
}

func TestValueAs(testCase *testing.T) {
	type feedback struct{ Score int }
	state := State{"feedback": feedback{Score: 8}}

	got, err := ValueAs[feedback](state, "feedback")
	if err != nil || got.Score != 8 {
		testCase.Errorf("ValueAs = %v, %v", got, err)
	}
	if _, err := ValueAs[string](state, "feedback"); err == nil {
		testCase.Error("expected type mismatch")
	}
}

func TestState_CloneIsShallowCopy(testCase *testing.T) {
	original := State{"a": 1}
	cloned := original.Clone()
	cloned["a"] = 2
	cloned["b"] = 3
	if original["a"] != 1 || len(original) != 1 {
		testCase.Errorf("original modified: %v", original)
	}

	var nilState State
	if cloned := nilState.Clone(); cloned == nil {
		testCase.Error("cloning a nil state should return an empty state")
	}
}

func TestField_AppendReduce(testCase *testing.T) {
	field := List("results").Append()

	reduced, err := field.reduce(nil, false, []string{"a"})
	if err != nil || !reflect.DeepEqual(reduced, []any{"a"}) {
		testCase.Fatalf("first append = %v, %v", reduced, err)
	}

	reduced, err = field.reduce(reduced, true, "b")
	if err != nil || !reflect.DeepEqual(reduced, []any{"a", "b"}) {
		testCase.Fatalf("single element append = %v, %v", reduced, err)
	}

	reduced, err = field.reduce(reduced, true, nil)
	if err != nil || !reflect.DeepEqual(reduced, []any{"a", "b"}) {
		testCase.Fatalf("nil append = %v, %v", reduced, err)
	}
}

func TestMatchesType(testCase *testing.T) {
	type essay struct{ Text string }
	cases := []struct {
		fieldType FieldType
		value     any
		expected  bool
	}{
		{TypeNumber, 3, true},
		{TypeNumber, "3", false},
		{TypeText, "x", true},
		{TypeBool, false, true},
		{TypeList, []int{1}, true},
		{TypeList, "x", false},
		{TypeRecord, map[string]int{}, true},
		{TypeRecord, map[int]int{}, false},
		{TypeRecord, essay{}, true},
		{TypeRecord, &essay{}, true},
		{TypeAny, struct{}{}, true},
	}
	for _, current := range cases {
		if got := matchesType(current.fieldType, current.value); got != current.expected {
			testCase.Errorf("matchesType(%s, %#v) = %v, want %v", current.fieldType, current.value, got, current.expected)
		}
	}
}
