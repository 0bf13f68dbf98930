package graph

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	return types
}

func TestStream_EventSequence(testCase *testing.T) {
	workflow := newParallelWorkflow(testCase)

	final, events, err := workflow.Stream(context.Background(), State{"value": 42}, WithThreadID("t-1")).Collect()
	if err != nil {
		testCase.Fatalf("unexpected error: %v", err)
	}

	expected := []EventType{
		EventRunStart,
		EventStepStart,
		EventNodeComplete,
		EventNodeComplete,
		EventStepComplete,
		EventRunComplete,
	}
	if !reflect.DeepEqual(eventTypes(events), expected) {
		testCase.Fatalf("event types = %v, want %v", eventTypes(events), expected)
	}

	if events[2].Node != "big" || events[3].Node != "small" {
		testCase.Errorf("node events not in registration order: %s, %s", events[2].Node, events[3].Node)
	}
	if !reflect.DeepEqual(events[1].Nodes, []string{"big", "small"}) {
		testCase.Errorf("step_start frontier = %v", events[1].Nodes)
	}
	if len(events[4].Nodes) != 0 {
		testCase.Errorf("expected empty next frontier, got %v", events[4].Nodes)
	}

	runID := events[0].RunID
	for _, event := range events {
		if event.RunID != runID || event.ThreadID != "t-1" {
			testCase.Errorf("event %s has run %q thread %q", event.Type, event.RunID, event.ThreadID)
		}
	}

	results, _ := ListOf[string](final, "results")
	if len(results) != 2 {
		testCase.Errorf("final results = %v", results)
	}
}

func TestStream_MatchesInvoke(testCase *testing.T) {
	workflow := newLoopWorkflow(testCase)
	initial := State{"value": 5, "iteration": 0, "max_iterations": 3}

	invoked, err := workflow.Invoke(context.Background(), initial)
	if err != nil {
		testCase.Fatalf("invoke: %v", err)
	}
	streamed, events, err := workflow.Stream(context.Background(), initial).Collect()
	if err != nil {
		testCase.Fatalf("stream: %v", err)
	}
	if !reflect.DeepEqual(invoked, streamed) {
		testCase.Errorf("stream final %v differs from invoke %v", streamed, invoked)
	}

	steps := 0
	for _, event := range events {
		if event.Type == EventStepComplete {
			steps++
		}
	}
	if steps != 6 {
		testCase.Errorf("supersteps = %d, want 6", steps)
	}
}

func TestStream_ErrorIsLastElement(testCase *testing.T) {
	workflow := mustCompile(testCase, NewBuilder(nil).
		AddNode("broken", failingNode(errors.New("boom"))).
		AddEdge(Start, "broken"))

	var sawError error
	count := 0
	for event, err := range workflow.Stream(context.Background(), State{}).Iter() {
		count++
		if err != nil {
			sawError = err
			if event.Type != "" {
				testCase.Errorf("error element should carry a zero event, got %v", event.Type)
			}
		}
	}
	if !errors.Is(sawError, ErrNodeExecution) {
		testCase.Fatalf("expected node error, got %v", sawError)
	}
	if count != 3 {
		testCase.Errorf("expected run_start, step_start and the error, got %d elements", count)
	}
}

func TestStream_BreakStopsRun(testCase *testing.T) {
	var ran []string
	workflow := mustCompile(testCase, NewBuilder(nil).
		AddNode("first", func(context.Context, State) (Update, error) {
			ran = append(ran, "first")
			return nil, nil
		}).
		AddNode("second", func(context.Context, State) (Update, error) {
			ran = append(ran, "second")
			return nil, nil
		}).
		AddEdge(Start, "first").
		AddEdge("first", "second"))

	for event, err := range workflow.Stream(context.Background(), State{}).Iter() {
		if err != nil {
			testCase.Fatalf("unexpected error: %v", err)
		}
		if event.Type == EventStepComplete {
			break
		}
	}

	if strings.Join(ran, ",") != "first" {
		testCase.Errorf("ran = %v, want only first", ran)
	}
}

func TestStream_RunIDOverride(testCase *testing.T) {
	workflow := newParallelWorkflow(testCase)
	stream := workflow.Stream(context.Background(), State{"value": 1}, WithRunID("run-42"))
	if stream.RunID() != "run-42" {
		testCase.Errorf("RunID = %q", stream.RunID())
	}

	_, events, err := stream.Collect()
	if err != nil {
		testCase.Fatalf("Collect: %v", err)
	}
	if events[0].RunID != "run-42" {
		testCase.Errorf("event RunID = %q, want run-42", events[0].RunID)
	}
}

func TestStream_EachRunGetsItsOwnID(testCase *testing.T) {
	workflow := newParallelWorkflow(testCase)
	stream := workflow.Stream(context.Background(), State{"value": 1})
	if stream.RunID() != "" {
		testCase.Errorf("RunID before the first run = %q, want empty", stream.RunID())
	}

	_, firstEvents, err := stream.Collect()
	if err != nil {
		testCase.Fatalf("first Collect: %v", err)
	}
	firstID := stream.RunID()

	_, secondEvents, err := stream.Collect()
	if err != nil {
		testCase.Fatalf("second Collect: %v", err)
	}
	secondID := stream.RunID()

	if firstID == "" || firstID == secondID {
		testCase.Errorf("run ids = %q and %q, want two distinct ids", firstID, secondID)
	}
	if firstEvents[0].RunID != firstID || secondEvents[0].RunID != secondID {
		testCase.Errorf("event run ids = %q, %q; want %q, %q",
			firstEvents[0].RunID, secondEvents[0].RunID, firstID, secondID)
	}
}
