package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrGraphValidation = errors.New("graph validation failed")
	ErrDuplicateNode   = errors.New("duplicate node")
	ErrUnknownNode     = errors.New("unknown node")
	ErrRouting         = errors.New("routing failed")
	ErrConflict        = errors.New("conflicting state updates")
	ErrRecursionLimit  = errors.New("recursion limit exceeded")
	ErrNodeExecution   = errors.New("node execution failed")
	ErrInvalidUpdate   = errors.New("invalid state update")
	ErrMissingField    = errors.New("missing state field")
)

// GraphValidationError collects every structural problem found by Compile.
type GraphValidationError struct {
	Problems []error
}

func (err *GraphValidationError) Error() string {
	messages := make([]string, 0, len(err.Problems))
	for _, problem := range err.Problems {
		messages = append(messages, problem.Error())
	}
	return fmt.Sprintf("graph validation failed: %s", strings.Join(messages, "; "))
}

// Unwrap exposes each problem so errors.As finds the individual typed errors.
func (err *GraphValidationError) Unwrap() []error { return err.Problems }

func (err *GraphValidationError) Is(target error) bool { return target == ErrGraphValidation }

// DuplicateNodeError reports a node name registered more than once.
type DuplicateNodeError struct {
	Node string
}

func (err *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node %q", err.Node)
}

func (err *DuplicateNodeError) Is(target error) bool { return target == ErrDuplicateNode }

// UnknownNodeError reports a reference to a node that was never registered.
// Reference describes where the name was used, e.g. "edge source".
type UnknownNodeError struct {
	Node      string
	Reference string
}

func (err *UnknownNodeError) Error() string {
	if err.Reference == "" {
		return fmt.Sprintf("unknown node %q", err.Node)
	}
	return fmt.Sprintf("unknown node %q referenced by %s", err.Node, err.Reference)
}

func (err *UnknownNodeError) Is(target error) bool { return target == ErrUnknownNode }

// RoutingError reports a router that failed or returned an unusable value.
type RoutingError struct {
	Source string
	Router string
	Value  string
	Cause  error
}

func (err *RoutingError) Error() string {
	switch {
	case err.Cause != nil && err.Value != "":
		return fmt.Sprintf("router %q on %q returned %q: %v", err.Router, err.Source, err.Value, err.Cause)
	case err.Cause != nil:
		return fmt.Sprintf("router %q on %q failed: %v", err.Router, err.Source, err.Cause)
	default:
		return fmt.Sprintf("router %q on %q returned unknown destination %q", err.Router, err.Source, err.Value)
	}
}

func (err *RoutingError) Unwrap() error { return err.Cause }

func (err *RoutingError) Is(target error) bool { return target == ErrRouting }

// ConflictError reports two or more nodes writing different values to an
// overwrite field in the same superstep.
type ConflictError struct {
	Field string
	Nodes []string
	Step  int
}

func (err *ConflictError) Error() string {
	return fmt.Sprintf("superstep %d: nodes %v wrote different values to field %q", err.Step, err.Nodes, err.Field)
}

func (err *ConflictError) Is(target error) bool { return target == ErrConflict }

// RecursionLimitError reports a run that needed more supersteps than allowed.
type RecursionLimitError struct {
	Limit    int
	Frontier []string
}

func (err *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit of %d supersteps reached with pending nodes %v", err.Limit, err.Frontier)
}

func (err *RecursionLimitError) Is(target error) bool { return target == ErrRecursionLimit }

// NodeExecutionError wraps the failure of a node body. State is the snapshot
// the node was given.
type NodeExecutionError struct {
	Node  string
	Step  int
	State State
	Cause error
}

func (err *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed in superstep %d: %v", err.Node, err.Step, err.Cause)
}

func (err *NodeExecutionError) Unwrap() error { return err.Cause }

func (err *NodeExecutionError) Is(target error) bool { return target == ErrNodeExecution }

// InvalidUpdateError reports an update, or the initial state, that does not
// fit the schema.
type InvalidUpdateError struct {
	Node   string
	Field  string
	Reason string
	Cause  error
}

func (err *InvalidUpdateError) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("invalid update from %q to field %q: %s: %v", err.Node, err.Field, err.Reason, err.Cause)
	}
	return fmt.Sprintf("invalid update from %q to field %q: %s", err.Node, err.Field, err.Reason)
}

func (err *InvalidUpdateError) Unwrap() error { return err.Cause }

func (err *InvalidUpdateError) Is(target error) bool { return target == ErrInvalidUpdate }

// FieldError is returned by the typed State accessors.
type FieldError struct {
	Field   string
	Want    FieldType
	Got     any
	Missing bool
	Reason  string
}

func (err *FieldError) Error() string {
	if err.Missing {
		return fmt.Sprintf("state field %q is not set", err.Field)
	}
	message := fmt.Sprintf("state field %q: want %s, got %T", err.Field, err.Want, err.Got)
	if err.Reason != "" {
		message += " (" + err.Reason + ")"
	}
	return message
}

func (err *FieldError) Unwrap() error {
	if err.Missing {
		return ErrMissingField
	}
	return nil
}
