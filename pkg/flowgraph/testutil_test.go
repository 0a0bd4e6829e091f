package flowgraph

import (
	"context"
)

// Test state types used across tests

// Counter is a simple state for testing incrementing and routing.
type Counter struct {
	Value int
	Trail []string
	Input string
}

// Delta is the update type for Counter.
type Delta struct {
	Add   int
	Mark  string
	Input *string
}

// mergeCounter folds a Delta into a Counter without sharing the Trail slice.
func mergeCounter(s Counter, d Delta) Counter {
	s.Value += d.Add
	if d.Mark != "" {
		trail := make([]string, 0, len(s.Trail)+1)
		trail = append(trail, s.Trail...)
		s.Trail = append(trail, d.Mark)
	}
	if d.Input != nil {
		s.Input = *d.Input
	}
	return s
}

func newCounterGraph() *Graph[Counter, Delta] {
	return NewGraph(mergeCounter)
}

// Helper node functions

// increment is a node that increments the counter.
func increment(ctx Context, s Counter) (Command[Delta], error) {
	return Update(Delta{Add: 1}), nil
}

// passthrough returns no changes.
func passthrough(ctx Context, s Counter) (Command[Delta], error) {
	return Command[Delta]{}, nil
}

// makeTrackingNode creates a node that records its execution.
func makeTrackingNode(name string) NodeFunc[Counter, Delta] {
	return func(ctx Context, s Counter) (Command[Delta], error) {
		return Update(Delta{Mark: name}), nil
	}
}

// makeFailingNode creates a node that returns the given error along with a mark.
func makeFailingNode(name string, err error) NodeFunc[Counter, Delta] {
	return func(ctx Context, s Counter) (Command[Delta], error) {
		return Update(Delta{Mark: name}), err
	}
}

// makePanicNode creates a node that panics with the given value.
func makePanicNode(value any) NodeFunc[Counter, Delta] {
	return func(ctx Context, s Counter) (Command[Delta], error) {
		panic(value)
	}
}

// makeAskNode creates a node that requests input and stores the answer.
func makeAskNode(prompt string) NodeFunc[Counter, Delta] {
	return func(ctx Context, s Counter) (Command[Delta], error) {
		v, err := RequestInput(ctx, map[string]string{"type": "approval", "message": prompt})
		if err != nil {
			return Command[Delta]{}, err
		}
		answer, ok := v.(string)
		if !ok {
			return Command[Delta]{}, ErrInvalidResume
		}
		return Update(Delta{Input: &answer, Mark: "answered"}), nil
	}
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
