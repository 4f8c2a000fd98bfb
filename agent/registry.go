// Package agent provides the named-capability layer: a registry of
// agents, an LLM-backed intent router that picks one for a free-text
// query, and the agents themselves.
package agent

import (
	"context"
	"fmt"
	"sort"
)

// Handler executes one agent call. Params arrive validated and clamped
// by the router; the returned map is the agent's structured result.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// Agent is one registered capability.
type Agent struct {
	Name        string
	Description string
	// ParamDoc describes the accepted parameters for the router prompt.
	ParamDoc string
	Handler  Handler
}

// Registry maps agent names to agents. It is populated once at startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	agents map[string]Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent. Duplicate names are a programming error.
func (r *Registry) Register(a Agent) error {
	if a.Name == "" {
		return fmt.Errorf("agent: empty name")
	}
	if a.Handler == nil {
		return fmt.Errorf("agent %q: nil handler", a.Name)
	}
	if _, exists := r.agents[a.Name]; exists {
		return fmt.Errorf("agent %q already registered", a.Name)
	}
	r.agents[a.Name] = a
	return nil
}

// Get looks up an agent by name.
func (r *Registry) Get(name string) (Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// List returns all agents sorted by name.
func (r *Registry) List() []Agent {
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
