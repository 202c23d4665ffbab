package flow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/postforge/postforge/internal/session"
)

// Control commands intercepted by the engine before step logic. They match
// the reply-keyboard button labels the engine itself emits.
const (
	CmdMainMenu = "🏠 Back to main menu"
	CmdBack     = "🔙 Back"
	CmdSkip     = "⏭️ Skip"
	CmdClear    = "🧹 Clear"
)

// ScratchEditMode marks a session running an intake flow in edit mode,
// which unlocks the clear command.
const ScratchEditMode = "edit_mode"

// HintPickOption is the re-prompt hint for a rejected fixed-choice input.
const HintPickOption = "👇 Pick an option below"

// Engine interprets flow definitions against per-user sessions. It owns
// every session mutation; callers serialize access per user.
type Engine struct {
	registry *Registry
	store    session.Store
}

// NewEngine creates an engine over the given registry and session store.
func NewEngine(registry *Registry, store session.Store) *Engine {
	return &Engine{registry: registry, store: store}
}

// StartFlow abandons any in-progress flow and places the user at the entry
// step of flowID. seed pre-populates scratch (e.g. the edit-mode flag).
func (e *Engine) StartFlow(ctx context.Context, userID, flowID string, seed map[string]string) (Result, error) {
	def, err := e.registry.Definition(flowID)
	if err != nil {
		return Result{}, err
	}
	sess, err := e.store.Get(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	sess.Reset()
	sess.ActiveFlow = def.ID
	sess.CurrentStep = def.Entry
	maps.Copy(sess.Scratch, seed)
	if err := e.store.Put(ctx, sess); err != nil {
		return Result{}, fmt.Errorf("failed to save session for %s: %w", userID, err)
	}
	slog.Debug("Engine flow started", "userID", userID, "flow", flowID)
	return e.promptResult(def, def.Steps[def.Entry], sess, ""), nil
}

// Handle resolves one inbound input against the user's session. On a
// registry miss (graph corruption) the session is cleared and the error is
// returned for the dispatcher to report; user input problems never surface
// as errors, they re-prompt.
func (e *Engine) Handle(ctx context.Context, userID, input string) (Result, error) {
	sess, err := e.store.Get(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	if sess.Idle() {
		return Result{Kind: ResultIdle}, nil
	}

	def, err := e.registry.Definition(sess.ActiveFlow)
	if err != nil {
		return e.failInteraction(ctx, sess, err)
	}
	step, err := e.registry.Step(sess.ActiveFlow, sess.CurrentStep)
	if err != nil {
		return e.failInteraction(ctx, sess, err)
	}

	input = strings.TrimSpace(input)
	slog.Debug("Engine handling input", "userID", userID, "flow", def.ID, "step", step.ID)

	// Global commands come before step logic. Skip and clear fall through
	// to ordinary input handling on steps where they are not legal.
	switch {
	case input == CmdMainMenu:
		return e.clearToMenu(ctx, sess)
	case input == CmdBack:
		return e.back(ctx, def, sess)
	case input == CmdSkip && step.Skippable:
		return e.advance(ctx, def, step, sess, step.SkipValue)
	case input == CmdClear && step.Skippable && sess.Scratch[ScratchEditMode] != "":
		return e.advance(ctx, def, step, sess, "")
	}

	value, inErr := e.acceptInput(step, sess, input)
	if inErr != nil {
		slog.Debug("Engine input rejected", "userID", userID, "step", step.ID, "hint", inErr.Hint)
		return e.promptResult(def, step, sess, inErr.Hint), nil
	}
	return e.advance(ctx, def, step, sess, value)
}

// FinishFlow clears the session after a terminal action completed. The
// dispatcher calls it only on success so a failed action can be retried.
func (e *Engine) FinishFlow(ctx context.Context, userID string) error {
	slog.Debug("Engine finishing flow", "userID", userID)
	return e.store.Clear(ctx, userID)
}

// acceptInput validates raw input against the step kind and returns the
// value to store.
func (e *Engine) acceptInput(step *Step, sess *session.Session, input string) (string, *InputError) {
	switch step.Kind {
	case KindChoice:
		value, ok := step.choiceValue(input)
		if !ok {
			return "", &InputError{Hint: HintPickOption}
		}
		return value, nil
	default:
		if step.Validate != nil {
			if err := step.Validate(sess, input); err != nil {
				if ie, ok := err.(*InputError); ok {
					return "", ie
				}
				return "", &InputError{Hint: err.Error()}
			}
		}
		if step.Transform != nil {
			return step.Transform(input), nil
		}
		return input, nil
	}
}

// advance stores the value, pushes history, and moves to the resolved next
// step. A terminal resolution leaves the session untouched and returns an
// action result built from a snapshot with the final value applied.
func (e *Engine) advance(ctx context.Context, def *Definition, step *Step, sess *session.Session, value string) (Result, error) {
	next := step.resolveNext(sess, value)
	if next == StepTerminal {
		return e.actionResult(def, step, sess, value), nil
	}

	nextStep, err := e.registry.Step(def.ID, next)
	if err != nil {
		return e.failInteraction(ctx, sess, err)
	}

	storeValue(step, sess, value)
	sess.PushHistory(step.ID)
	sess.CurrentStep = next
	if err := e.store.Put(ctx, sess); err != nil {
		return Result{}, fmt.Errorf("failed to save session for %s: %w", sess.UserID, err)
	}
	slog.Debug("Engine advanced", "userID", sess.UserID, "flow", def.ID, "from", step.ID, "to", next)
	return e.promptResult(def, nextStep, sess, ""), nil
}

// back pops history and re-emits the popped step's prompt. With exhausted
// history it behaves as cancel-to-main-menu, which also covers the entry
// step of every flow.
func (e *Engine) back(ctx context.Context, def *Definition, sess *session.Session) (Result, error) {
	prev, ok := sess.PopHistory()
	if !ok {
		return e.clearToMenu(ctx, sess)
	}
	prevStep, err := e.registry.Step(def.ID, prev)
	if err != nil {
		return e.failInteraction(ctx, sess, err)
	}
	sess.CurrentStep = prev
	if err := e.store.Put(ctx, sess); err != nil {
		return Result{}, fmt.Errorf("failed to save session for %s: %w", sess.UserID, err)
	}
	slog.Debug("Engine moved back", "userID", sess.UserID, "flow", def.ID, "to", prev)
	return e.promptResult(def, prevStep, sess, ""), nil
}

// clearToMenu resets the session and signals a main-menu return.
func (e *Engine) clearToMenu(ctx context.Context, sess *session.Session) (Result, error) {
	if err := e.store.Clear(ctx, sess.UserID); err != nil {
		return Result{}, fmt.Errorf("failed to clear session for %s: %w", sess.UserID, err)
	}
	slog.Debug("Engine cleared to menu", "userID", sess.UserID)
	return Result{Kind: ResultMenu}, nil
}

// failInteraction handles graph corruption: log, clear the session so the
// user is not stuck, and surface the error to the dispatcher.
func (e *Engine) failInteraction(ctx context.Context, sess *session.Session, cause error) (Result, error) {
	slog.Error("Engine flow graph failure", "error", cause, "userID", sess.UserID, "flow", sess.ActiveFlow, "step", sess.CurrentStep)
	if err := e.store.Clear(ctx, sess.UserID); err != nil {
		slog.Error("Engine failed to clear corrupt session", "error", err, "userID", sess.UserID)
	}
	return Result{Kind: ResultMenu}, cause
}

// actionResult snapshots the collected values with the final input applied
// and signals the terminal action. The live session stays as it was before
// the call so a failed action leaves the user on the same step.
func (e *Engine) actionResult(def *Definition, step *Step, sess *session.Session, value string) Result {
	fields := maps.Clone(sess.Fields)
	scratch := maps.Clone(sess.Scratch)
	if step.Field != "" {
		if step.Scratch {
			scratch[step.Field] = value
		} else {
			fields[step.Field] = value
		}
	}
	allEmpty := true
	for _, v := range fields {
		if strings.TrimSpace(v) != "" {
			allEmpty = false
			break
		}
	}
	slog.Debug("Engine terminal action", "userID", sess.UserID, "flow", def.ID, "action", def.Action, "allEmpty", allEmpty)
	return Result{
		Kind:     ResultAction,
		Flow:     def.ID,
		Step:     step.ID,
		Action:   def.Action,
		Fields:   fields,
		Scratch:  scratch,
		AllEmpty: allEmpty,
	}
}

// storeValue routes a collected value to fields or scratch.
func storeValue(step *Step, sess *session.Session, value string) {
	if step.Field == "" {
		return
	}
	if step.Scratch {
		sess.Scratch[step.Field] = value
	} else {
		sess.Fields[step.Field] = value
	}
}

// promptResult renders a step's prompt and keyboard.
func (e *Engine) promptResult(def *Definition, step *Step, sess *session.Session, hint string) Result {
	return Result{
		Kind:     ResultPrompt,
		Flow:     def.ID,
		Step:     step.ID,
		Prompt:   step.PromptFor(sess),
		Hint:     hint,
		Keyboard: buildKeyboard(step, sess),
	}
}

// buildKeyboard lays out choice buttons two per row, then the control rows:
// skip (and clear in edit mode) when the step allows it, and the
// back/main-menu row that every step carries.
func buildKeyboard(step *Step, sess *session.Session) [][]string {
	var rows [][]string
	for i := 0; i < len(step.Choices); i += 2 {
		row := []string{step.Choices[i].Label}
		if i+1 < len(step.Choices) {
			row = append(row, step.Choices[i+1].Label)
		}
		rows = append(rows, row)
	}
	if step.Skippable {
		control := []string{CmdSkip}
		if sess.Scratch[ScratchEditMode] != "" {
			control = append(control, CmdClear)
		}
		rows = append(rows, control)
	}
	rows = append(rows, []string{CmdBack, CmdMainMenu})
	return rows
}
