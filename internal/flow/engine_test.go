package flow

import (
	"context"
	"testing"

	"github.com/postforge/postforge/internal/session"
)

func newTestEngine(t *testing.T) (*Engine, *session.InMemoryStore) {
	t.Helper()
	reg, err := NewRegistry(Definitions()...)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	st := session.NewInMemoryStore()
	return NewEngine(reg, st), st
}

func mustPrompt(t *testing.T, res Result, err error, step string) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultPrompt {
		t.Fatalf("expected prompt result, got kind %d", res.Kind)
	}
	if res.Step != step {
		t.Fatalf("expected step %q, got %q", step, res.Step)
	}
}

func TestHandleIdleSession(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.Handle(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultIdle {
		t.Errorf("expected idle result, got kind %d", res.Kind)
	}
}

func TestStartFlowEmitsEntryPrompt(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.StartFlow(context.Background(), "u1", FlowImage, nil)
	mustPrompt(t, res, err, "description")
	if res.Prompt == "" {
		t.Error("expected non-empty entry prompt")
	}
}

func TestCancelToMainMenuClearsSession(t *testing.T) {
	ctx := context.Background()
	for _, flowID := range []string{FlowProfile, FlowTextCreate, FlowTextEdit, FlowImage, FlowPlan} {
		e, st := newTestEngine(t)
		if _, err := e.StartFlow(ctx, "u1", flowID, nil); err != nil {
			t.Fatalf("%s: start failed: %v", flowID, err)
		}
		// From the entry step.
		res, err := e.Handle(ctx, "u1", CmdMainMenu)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", flowID, err)
		}
		if res.Kind != ResultMenu {
			t.Errorf("%s: expected menu result, got kind %d", flowID, res.Kind)
		}
		sess, _ := st.Get(ctx, "u1")
		if !sess.Idle() || len(sess.Fields) != 0 || len(sess.History) != 0 {
			t.Errorf("%s: session not fully cleared: %+v", flowID, sess)
		}
	}
}

func TestCancelFromDeepStep(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowImage, nil)
	mustAdvance(t, e, "u1", "a sunny playground", "style")

	res, err := e.Handle(ctx, "u1", CmdMainMenu)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultMenu {
		t.Fatalf("expected menu result, got kind %d", res.Kind)
	}
	sess, _ := st.Get(ctx, "u1")
	if !sess.Idle() || len(sess.Fields) != 0 || len(sess.History) != 0 {
		t.Errorf("session not fully cleared: %+v", sess)
	}
}

func mustAdvance(t *testing.T, e *Engine, userID, input, wantStep string) Result {
	t.Helper()
	res, err := e.Handle(context.Background(), userID, input)
	mustPrompt(t, res, err, wantStep)
	return res
}

func TestBackFromEntryReturnsToMenu(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowProfile, nil)

	res, err := e.Handle(ctx, "u1", CmdBack)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultMenu {
		t.Fatalf("expected menu result, got kind %d", res.Kind)
	}
	sess, _ := st.Get(ctx, "u1")
	if !sess.Idle() {
		t.Error("expected idle session after back from entry step")
	}
}

func TestBackThenForwardIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowProfile, nil)
	mustAdvance(t, e, "u1", "Fund Alpha", "activities")

	before, _ := st.Get(ctx, "u1")

	res, err := e.Handle(ctx, "u1", CmdBack)
	mustPrompt(t, res, err, "name")
	sess, _ := st.Get(ctx, "u1")
	if len(sess.History) != 0 {
		t.Fatalf("expected empty history after back, got %v", sess.History)
	}

	res, err = e.Handle(ctx, "u1", "Fund Alpha")
	mustPrompt(t, res, err, "activities")
	after, _ := st.Get(ctx, "u1")
	if after.CurrentStep != before.CurrentStep {
		t.Errorf("step drifted: %q vs %q", after.CurrentStep, before.CurrentStep)
	}
	if after.Fields["name"] != before.Fields["name"] {
		t.Errorf("field drifted: %q vs %q", after.Fields["name"], before.Fields["name"])
	}
	if len(after.History) != len(before.History) {
		t.Errorf("history depth drifted: %d vs %d", len(after.History), len(before.History))
	}
}

func TestRepeatedBackExhaustsHistoryThenMenus(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowProfile, nil)
	mustAdvance(t, e, "u1", "Fund Alpha", "activities")
	mustAdvance(t, e, "u1", "tutoring", "audience")

	res, err := e.Handle(ctx, "u1", CmdBack)
	mustPrompt(t, res, err, "activities")
	res, err = e.Handle(ctx, "u1", CmdBack)
	mustPrompt(t, res, err, "name")
	res, err = e.Handle(ctx, "u1", CmdBack)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultMenu {
		t.Errorf("expected menu after exhausting history, got kind %d", res.Kind)
	}
}

func TestSkipOnNonSkippableChoiceStepIsOrdinaryInput(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowTextCreate, nil)

	res, err := e.Handle(ctx, "u1", CmdSkip)
	mustPrompt(t, res, err, "mode")
	if res.Hint != HintPickOption {
		t.Errorf("expected choice rejection hint, got %q", res.Hint)
	}
	sess, _ := st.Get(ctx, "u1")
	if sess.CurrentStep != "mode" || len(sess.History) != 0 {
		t.Errorf("rejected input must not advance state: %+v", sess)
	}
}

func TestSkipOnNonSkippableFreeTextStepIsOrdinaryInput(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowImage, nil)

	// The description step is not skippable, so the skip command is just
	// text and becomes the description value.
	mustAdvance(t, e, "u1", CmdSkip, "style")
	sess, _ := st.Get(ctx, "u1")
	if sess.Fields["description"] != CmdSkip {
		t.Errorf("expected literal command stored, got %q", sess.Fields["description"])
	}
}

func TestClearRequiresEditMode(t *testing.T) {
	ctx := context.Background()

	// Without edit mode the clear command is ordinary free text.
	e, st := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowProfile, nil)
	mustAdvance(t, e, "u1", CmdClear, "activities")
	sess, _ := st.Get(ctx, "u1")
	if sess.Fields["name"] != CmdClear {
		t.Errorf("expected literal command stored, got %q", sess.Fields["name"])
	}

	// With edit mode it empties the field and advances like skip.
	e, st = newTestEngine(t)
	e.StartFlow(ctx, "u2", FlowProfile, map[string]string{ScratchEditMode: "1"})
	mustAdvance(t, e, "u2", CmdClear, "activities")
	sess, _ = st.Get(ctx, "u2")
	if sess.Fields["name"] != "" {
		t.Errorf("expected cleared field, got %q", sess.Fields["name"])
	}
	if len(sess.History) != 1 {
		t.Errorf("clear must push history like a forward transition, got %v", sess.History)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowProfile, nil)

	mustAdvance(t, e, "u1", "Fund Alpha", "activities")
	mustAdvance(t, e, "u1", CmdSkip, "audience")
	mustAdvance(t, e, "u1", "Students", "website")

	res, err := e.Handle(ctx, "u1", "https://www.fundalpha.org/about?utm=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultAction || res.Action != ActionSaveProfile {
		t.Fatalf("expected save_profile action, got %+v", res)
	}
	want := map[string]string{
		"name":       "Fund Alpha",
		"activities": "",
		"audience":   "Students",
		"website":    "fundalpha.org",
	}
	for k, v := range want {
		if res.Fields[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, res.Fields[k])
		}
	}
	if res.AllEmpty {
		t.Error("expected AllEmpty=false with populated fields")
	}

	// The action has not completed yet, so the session is still live.
	sess, _ := st.Get(ctx, "u1")
	if sess.Idle() {
		t.Fatal("session must stay live until the action succeeds")
	}
	if err := e.FinishFlow(ctx, "u1"); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	sess, _ = st.Get(ctx, "u1")
	if !sess.Idle() {
		t.Error("expected idle session after finish")
	}
}

func TestProfileAllFieldsSkipped(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowProfile, nil)

	mustAdvance(t, e, "u1", CmdSkip, "activities")
	mustAdvance(t, e, "u1", CmdSkip, "audience")
	mustAdvance(t, e, "u1", CmdSkip, "website")
	res, err := e.Handle(ctx, "u1", CmdSkip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultAction {
		t.Fatalf("skip on the last field must finalize, got kind %d", res.Kind)
	}
	if !res.AllEmpty {
		t.Error("expected AllEmpty=true when every field was skipped")
	}
}

func TestFailedActionLeavesSessionForRetry(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	e.StartFlow(ctx, "u1", FlowImage, nil)
	mustAdvance(t, e, "u1", "volunteers planting trees", "style")

	before, _ := st.Get(ctx, "u1")
	res, err := e.Handle(ctx, "u1", "💧 Watercolor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultAction || res.Action != ActionGenerateImage {
		t.Fatalf("expected generate_image action, got %+v", res)
	}
	if res.Scratch[ScratchStyle] != "watercolor" {
		t.Errorf("expected style in snapshot, got %q", res.Scratch[ScratchStyle])
	}

	// The dispatcher saw the capability fail and did not call FinishFlow:
	// the same style can be resubmitted without restarting.
	after, _ := st.Get(ctx, "u1")
	if after.CurrentStep != before.CurrentStep {
		t.Fatalf("failed action moved the step: %q vs %q", after.CurrentStep, before.CurrentStep)
	}
	res2, err := e.Handle(ctx, "u1", "💧 Watercolor")
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if res2.Kind != ResultAction || res2.Scratch[ScratchStyle] != "watercolor" {
		t.Errorf("retry produced a different result: %+v", res2)
	}
}

func TestKeyboardCarriesControls(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	res, err := e.StartFlow(ctx, "u1", FlowProfile, map[string]string{ScratchEditMode: "1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	var sawSkip, sawClear, sawBack bool
	for _, row := range res.Keyboard {
		for _, b := range row {
			switch b {
			case CmdSkip:
				sawSkip = true
			case CmdClear:
				sawClear = true
			case CmdBack:
				sawBack = true
			}
		}
	}
	if !sawSkip || !sawClear || !sawBack {
		t.Errorf("edit-mode keyboard missing controls: %v", res.Keyboard)
	}
}
