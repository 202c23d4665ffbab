// Package flow implements the dialogue state machine every bot feature is
// built from. A Flow is a static directed graph of Steps; the Engine
// interprets the graph against a per-user Session, handling validation,
// back-navigation, skip/clear, and terminal-action hand-off uniformly.
package flow

import (
	"github.com/postforge/postforge/internal/session"
)

// Kind classifies what input a step accepts.
type Kind string

const (
	// KindFreeText accepts any non-empty text, optionally validated.
	KindFreeText Kind = "free_text"
	// KindChoice accepts only one of the step's fixed choices.
	KindChoice Kind = "choice"
)

// StepTerminal is the marker a Next resolver returns when all required
// values are collected and the flow's terminal action should run.
const StepTerminal = "__terminal__"

// Choice maps a button label to the value stored when it is selected.
type Choice struct {
	Label string
	Value string
}

// Step is one question or decision point in a flow. Steps are pure
// configuration: built once at startup, never mutated.
type Step struct {
	ID   string
	Kind Kind

	// Prompt is the message shown when the step becomes current. PromptFunc
	// takes precedence when set and may interpolate session values.
	Prompt     string
	PromptFunc func(s *session.Session) string

	// Choices lists the valid inputs for KindChoice steps, in display order.
	Choices []Choice

	// Field names the destination for the collected value. Scratch routes
	// it to the session's ephemeral scratch area instead of Fields.
	Field   string
	Scratch bool

	// Skippable steps accept the skip command, substituting SkipValue.
	Skippable bool
	SkipValue string

	// Transform normalizes a valid free-text value before storage.
	Transform func(string) string

	// Validate rejects free-text input with an *InputError to re-prompt.
	// It may consult previously collected session values.
	Validate func(s *session.Session, input string) error

	// Next resolves the successor step from the session and the just
	// collected value. When nil, NextID is used; NextID == "" means the
	// terminal marker.
	Next   func(s *session.Session, value string) string
	NextID string
}

// PromptFor renders the step's prompt against the session.
func (st *Step) PromptFor(s *session.Session) string {
	if st.PromptFunc != nil {
		return st.PromptFunc(s)
	}
	return st.Prompt
}

// resolveNext computes the successor step id or the terminal marker.
func (st *Step) resolveNext(s *session.Session, value string) string {
	if st.Next != nil {
		return st.Next(s, value)
	}
	if st.NextID == "" {
		return StepTerminal
	}
	return st.NextID
}

// choiceValue looks up the stored value for a choice label.
func (st *Step) choiceValue(label string) (string, bool) {
	for _, c := range st.Choices {
		if c.Label == label {
			return c.Value, true
		}
	}
	return "", false
}

// Definition is a named flow: a step graph with one entry step and the
// identifier of the terminal action invoked when the graph completes.
type Definition struct {
	ID     string
	Entry  string
	Action string
	Steps  map[string]*Step
}
