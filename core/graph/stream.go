package graph

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a streaming event emitted during an invocation.
type EventType string

const (
	// EventRunStart is emitted once, before the first frontier is computed.
	// State carries the validated initial state.
	EventRunStart EventType = "run_start"

	// EventStepStart is emitted when a superstep begins. Nodes is the frontier.
	EventStepStart EventType = "step_start"

	// EventNodeComplete is emitted once per node after its superstep merged,
	// in registration order. Update and Duration describe the node's run.
	EventNodeComplete EventType = "node_complete"

	// EventStepComplete is emitted after the merge. State is the merged
	// state and Nodes the next frontier.
	EventStepComplete EventType = "step_complete"

	// EventRunComplete is emitted once when the frontier is empty. State is
	// the final state and Duration the whole run.
	EventRunComplete EventType = "run_complete"
)

// Event is one step of a streamed invocation.
type Event struct {
	Type     EventType     `json:"type"`
	RunID    string        `json:"run_id"`
	ThreadID string        `json:"thread_id,omitempty"`
	Step     int           `json:"step"`
	Node     string        `json:"node,omitempty"`
	Nodes    []string      `json:"nodes,omitempty"`
	Update   Update        `json:"update,omitempty"`
	State    State         `json:"state,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Stream is a lazily started invocation whose progress is observed event by
// event. Each call to Iter or Collect starts a new run with the same input
// and, unless WithRunID was given, a fresh run id.
type Stream struct {
	workflow *Workflow
	ctx      context.Context
	initial  State
	config   invokeConfig

	mu        sync.Mutex
	lastRunID string
}

// Stream prepares a streamed invocation. Nothing runs until Iter or Collect.
//
// Example:
//
//	for event, err := range workflow.Stream(ctx, initial).Iter() {
//	    if err != nil {
//	        return err
//	    }
//	    if event.Type == graph.EventNodeComplete {
//	        fmt.Printf("%s wrote %v\n", event.Node, event.Update)
//	    }
//	}
func (workflow *Workflow) Stream(ctx context.Context, initial State, opts ...InvokeOption) *Stream {
	return &Stream{
		workflow: workflow,
		ctx:      ctx,
		initial:  initial.Clone(),
		config:   workflow.resolveInvokeConfig(opts),
	}
}

// RunID returns the id given with WithRunID, otherwise the id of the most
// recently started run. It is empty before the first run.
func (stream *Stream) RunID() string {
	if stream.config.runID != "" {
		return stream.config.runID
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return stream.lastRunID
}

// Iter returns an iterator over the events of a new run. A run error is
// yielded once as the final element with a zero Event. Breaking out of the
// loop stops the run at the next event boundary.
func (stream *Stream) Iter() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		config := stream.config
		if config.runID == "" {
			config.runID = uuid.NewString()
		}
		stream.mu.Lock()
		stream.lastRunID = config.runID
		stream.mu.Unlock()

		stopped := false
		_, err := stream.workflow.run(stream.ctx, stream.initial, config, func(event Event) bool {
			if !yield(event, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped && !errors.Is(err, errConsumerStopped) {
			yield(Event{}, err)
		}
	}
}

// Collect runs to completion and returns the final state together with every
// event. On error the events emitted before the failure are still returned.
func (stream *Stream) Collect() (State, []Event, error) {
	events := make([]Event, 0)
	var final State

	for event, err := range stream.Iter() {
		if err != nil {
			return nil, events, err
		}
		events = append(events, event)
		if event.Type == EventRunComplete {
			final = event.State
		}
	}

	return final, events, nil
}
