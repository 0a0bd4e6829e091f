/*
Package flowgraph provides a resumable graph executor for long-running,
human-in-the-loop workflows.

# Overview

A graph is a set of nodes joined by default edges and declared branches.
Each node receives the current state and returns a Command: a partial
update that is merged into the state, and optionally the next node to
visit. Any node may pause the workflow to ask its caller for input; the
session is checkpointed and resumed later, possibly by another process.

# Basic Usage

	type State struct {
	    Draft    string
	    Approved bool
	}

	type Patch struct {
	    Draft    *string
	    Approved *bool
	}

	func merge(s State, p Patch) State {
	    if p.Draft != nil {
	        s.Draft = *p.Draft
	    }
	    if p.Approved != nil {
	        s.Approved = *p.Approved
	    }
	    return s
	}

	compiled, err := flowgraph.NewGraph(merge).
	    AddNode("draft", draft).
	    AddNode("review", review).
	    AddEdge("draft", "review").
	    AddBranches("review", "draft").
	    AddEdge("review", flowgraph.END).
	    SetEntry("draft").
	    Compile()

# Routing

A node follows its default edge unless its Command names a Goto target.
Goto targets must be declared with AddBranches; END is always allowed.

	func review(ctx flowgraph.Context, s State) (flowgraph.Command[Patch], error) {
	    if !s.Approved {
	        return flowgraph.Goto("draft", Patch{}), nil
	    }
	    return flowgraph.Update(Patch{}), nil
	}

Loops are bounded by WithMaxIterations (default 1000).

# Requesting Input

RequestInput suspends the session. When the caller resumes it, the node
runs again from the start and the same call returns the resume value:

	func approve(ctx flowgraph.Context, s State) (flowgraph.Command[Patch], error) {
	    v, err := flowgraph.RequestInput(ctx, map[string]string{"type": "approval"})
	    if err != nil {
	        return flowgraph.Command[Patch]{}, err
	    }
	    ok, _ := v.(bool)
	    return flowgraph.Update(Patch{Approved: &ok}), nil
	}

Code before RequestInput must be safe to run twice. A node may request input
once per execution.

# Sessions

Invoke advances a persisted session by one call:

	store, _ := checkpoint.NewSQLiteStore("./sessions.db")
	defer store.Close()

	out, err := compiled.Invoke(ctx, store, "task-1a2b3c4d", flowgraph.StartWith(State{}))
	// out.Status == flowgraph.StatusSuspended, out.Interrupt.Payload holds the prompt

	out, err = compiled.Invoke(ctx, store, "task-1a2b3c4d", flowgraph.ResumeWith[State](true))

A checkpoint is written after every node, on suspension, on completion and
on failure. Calls for the same session are serialized. Stage failures come
back as an Outcome with StatusFailed; Invoke only returns an error when the
request was rejected or could not be recorded.

# Observability

	out, err := compiled.Invoke(ctx, store, id, req,
	    flowgraph.WithObservabilityLogger(logger),
	    flowgraph.WithMetrics(true),
	    flowgraph.WithTracing(true))

Logs carry session_id, node_id and attempt. Metrics and spans go through the
global OpenTelemetry providers.

# Thread Safety

  - Graph is NOT safe for concurrent use during construction
  - CompiledGraph IS safe for concurrent use
  - Store implementations are safe for concurrent use

# Subpackages

  - checkpoint: session checkpoint storage (memory, SQLite)
  - observability: logging, metrics, and tracing helpers
  - config: layered configuration loading
*/
package flowgraph
