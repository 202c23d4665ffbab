package flow

import (
	"context"
	"testing"
)

func startCustomPlan(t *testing.T, e *Engine, userID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.StartFlow(ctx, userID, FlowPlan, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	mustAdvance(t, e, userID, "winter fundraising", "period")
	mustAdvance(t, e, userID, "📊 Custom period", "start_date")
}

func TestPlanFixedPeriodsSelectFrequencySet(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	e.StartFlow(ctx, "u1", FlowPlan, nil)
	mustAdvance(t, e, "u1", "spring campaign", "period")
	mustAdvance(t, e, "u1", "📅 Week", "freq_week")

	e.StartFlow(ctx, "u2", FlowPlan, nil)
	mustAdvance(t, e, "u2", "spring campaign", "period")
	mustAdvance(t, e, "u2", "📆 Month", "freq_month")
}

func TestPlanDateFormatRejected(t *testing.T) {
	e, st := newTestEngine(t)
	startCustomPlan(t, e, "u1")

	res, err := e.Handle(context.Background(), "u1", "2025-12-01")
	mustPrompt(t, res, err, "start_date")
	if res.Hint == "" {
		t.Error("expected a format hint on bad date input")
	}
	sess, _ := st.Get(context.Background(), "u1")
	if sess.CurrentStep != "start_date" {
		t.Errorf("bad date must not advance, at %q", sess.CurrentStep)
	}
}

func TestPlanEndDateMustFollowStart(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		end  string
	}{
		{"equal dates", "01.12.2025"},
		{"end before start", "30.11.2025"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, st := newTestEngine(t)
			startCustomPlan(t, e, "u1")
			mustAdvance(t, e, "u1", "01.12.2025", "end_date")

			before, _ := st.Get(ctx, "u1")
			res, err := e.Handle(ctx, "u1", tc.end)
			mustPrompt(t, res, err, "end_date")
			if res.Hint == "" {
				t.Error("expected a rejection hint")
			}
			after, _ := st.Get(ctx, "u1")
			if after.CurrentStep != before.CurrentStep || len(after.History) != len(before.History) {
				t.Errorf("rejected end date mutated state: %+v", after)
			}
		})
	}
}

func TestPlanShortSpanGetsWeeklyFrequencies(t *testing.T) {
	e, _ := newTestEngine(t)
	startCustomPlan(t, e, "u1")
	mustAdvance(t, e, "u1", "01.12.2025", "end_date")
	res := mustAdvance(t, e, "u1", "07.12.2025", "freq_week")
	for _, row := range res.Keyboard {
		for _, b := range row {
			if b == "🔄 Twice a month" {
				t.Error("weekly set must not offer twice-a-month")
			}
		}
	}
}

func TestPlanLongSpanGetsMonthlyFrequencies(t *testing.T) {
	e, _ := newTestEngine(t)
	startCustomPlan(t, e, "u1")
	mustAdvance(t, e, "u1", "01.12.2025", "end_date")
	res := mustAdvance(t, e, "u1", "21.12.2025", "freq_month")
	var sawMonthly bool
	for _, row := range res.Keyboard {
		for _, b := range row {
			if b == "🔄 Twice a month" {
				sawMonthly = true
			}
		}
	}
	if !sawMonthly {
		t.Error("monthly set must offer twice-a-month")
	}
}

func TestPlanCompletesWithAction(t *testing.T) {
	e, _ := newTestEngine(t)
	startCustomPlan(t, e, "u1")
	mustAdvance(t, e, "u1", "01.12.2025", "end_date")
	mustAdvance(t, e, "u1", "07.12.2025", "freq_week")

	res, err := e.Handle(context.Background(), "u1", "🔄 Twice a week")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResultAction || res.Action != ActionGeneratePlan {
		t.Fatalf("expected generate_plan action, got %+v", res)
	}
	if res.Fields[FieldPlanTheme] != "winter fundraising" {
		t.Errorf("theme missing from snapshot: %+v", res.Fields)
	}
	if res.Scratch[ScratchFrequency] != "2_per_week" {
		t.Errorf("frequency missing from snapshot: %+v", res.Scratch)
	}
	if res.Scratch[ScratchPeriod] != "custom" {
		t.Errorf("period missing from snapshot: %+v", res.Scratch)
	}
}

func TestSpanDays(t *testing.T) {
	cases := []struct {
		start, end string
		want       int
	}{
		{"01.12.2025", "01.12.2025", 0},
		{"01.12.2025", "08.12.2025", 7},
		{"01.12.2025", "10.12.2025", 9},
		{"25.12.2025", "03.01.2026", 9},
	}
	for _, tc := range cases {
		if got := spanDays(tc.start, tc.end); got != tc.want {
			t.Errorf("spanDays(%s, %s) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}
