package agent

import (
	"context"
	"log/slog"
	"time"
)

// minConfidence is the routing threshold: below it the executor reports
// no match instead of guessing.
const minConfidence = 0.3

// noMatchMessage is the soft result for queries no agent can serve.
const noMatchMessage = "No matching agent in this step."

// ActResult is the outcome of one routed execution. Soft failures (no
// agent, handler errors) land in Message or Result["error"], never as
// Go errors: the caller always gets a well-formed result.
type ActResult struct {
	Intent     string         `json:"intent,omitempty"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// Executor routes a query and runs the selected agent.
type Executor struct {
	registry *Registry
	router   *Router
}

// NewExecutor builds an executor.
func NewExecutor(registry *Registry, router *Router) *Executor {
	return &Executor{registry: registry, router: router}
}

// Act routes the query, merges caller-supplied parameter overrides on
// top of the extracted ones, and executes the agent.
func (e *Executor) Act(ctx context.Context, query string, overrides map[string]any) (*ActResult, error) {
	intent, err := e.router.Route(ctx, query)
	if err != nil {
		return nil, err
	}

	if intent.Name == "" || intent.Confidence < minConfidence {
		return &ActResult{Confidence: intent.Confidence, Message: noMatchMessage}, nil
	}

	params := make(map[string]any, len(intent.Params)+len(overrides))
	for k, v := range intent.Params {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	resolveDateWindow(params, time.Now().UTC())

	a, ok := e.registry.Get(intent.Name)
	if !ok {
		return &ActResult{Confidence: intent.Confidence, Message: noMatchMessage}, nil
	}

	out := &ActResult{Intent: intent.Name, Confidence: intent.Confidence, Params: params}
	result, err := a.Handler(ctx, params)
	if err != nil {
		// Agent failures are part of the response, not transport errors.
		slog.Warn("agent execution failed", "agent", intent.Name, "error", err)
		out.Result = map[string]any{"error": err.Error()}
		return out, nil
	}
	out.Result = result
	return out, nil
}

// resolveDateWindow converts a relative date_window_days parameter to
// an absolute date_from bound. An explicit date_from wins.
func resolveDateWindow(params map[string]any, now time.Time) {
	days := paramInt(params, "date_window_days", 0)
	delete(params, "date_window_days")
	if days <= 0 {
		return
	}
	if paramString(params, "date_from") != "" {
		return
	}
	params["date_from"] = now.AddDate(0, 0, -clampInt(days, 1, 365)).Format("2006-01-02")
}
