package flow

import (
	"fmt"
	"log/slog"
)

// Registry is the static table of flow definitions. It is populated once
// at startup, validated, and read-only afterwards, so it needs no locking.
type Registry struct {
	flows map[string]*Definition
}

// NewRegistry validates and indexes the given definitions. Validation
// catches the graph defects that would otherwise surface as ErrUnknownStep
// mid-conversation: a missing entry step, a NextID pointing nowhere, or a
// step whose ID disagrees with its map key.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{flows: make(map[string]*Definition, len(defs))}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("flow definition with empty id")
		}
		if _, dup := r.flows[def.ID]; dup {
			return nil, fmt.Errorf("duplicate flow definition %q", def.ID)
		}
		if _, ok := def.Steps[def.Entry]; !ok {
			return nil, fmt.Errorf("flow %q: entry step %q not defined", def.ID, def.Entry)
		}
		for id, st := range def.Steps {
			if st.ID != id {
				return nil, fmt.Errorf("flow %q: step keyed %q has id %q", def.ID, id, st.ID)
			}
			if st.NextID != "" && st.NextID != StepTerminal {
				if _, ok := def.Steps[st.NextID]; !ok {
					return nil, fmt.Errorf("flow %q: step %q points at undefined step %q", def.ID, id, st.NextID)
				}
			}
			if st.Kind == KindChoice && len(st.Choices) == 0 {
				return nil, fmt.Errorf("flow %q: choice step %q has no choices", def.ID, id)
			}
		}
		r.flows[def.ID] = def
	}
	slog.Debug("flow registry built", "flows", len(r.flows))
	return r, nil
}

// Definition returns the flow definition for the given id.
func (r *Registry) Definition(flowID string) (*Definition, error) {
	def, ok := r.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, flowID)
	}
	return def, nil
}

// Step resolves a (flow, step) pair. A miss is graph corruption, not a
// user-facing condition.
func (r *Registry) Step(flowID, stepID string) (*Step, error) {
	def, err := r.Definition(flowID)
	if err != nil {
		return nil, err
	}
	st, ok := def.Steps[stepID]
	if !ok {
		return nil, fmt.Errorf("%w: %q in flow %q", ErrUnknownStep, stepID, flowID)
	}
	return st, nil
}
