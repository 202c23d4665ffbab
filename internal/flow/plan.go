package flow

import (
	"time"

	"github.com/postforge/postforge/internal/session"
)

// DateFormat is the user-facing date layout for custom plan periods.
const DateFormat = "02.01.2006"

// weeklySpanDays is the longest custom span that still gets the weekly
// frequency choice set.
const weeklySpanDays = 7

// Field names the planning terminal action reads.
const (
	FieldPlanTheme = "theme"
	FieldPlanStart = "start_date"
	FieldPlanEnd   = "end_date"
)

var weeklyFrequencies = []Choice{
	{Label: "🔄 Once a day", Value: "daily"},
	{Label: "🔄 Twice a week", Value: "2_per_week"},
	{Label: "🔄 3 times a week", Value: "3_per_week"},
	{Label: "🔄 Once a week", Value: "weekly"},
}

var monthlyFrequencies = append(append([]Choice(nil), weeklyFrequencies...),
	Choice{Label: "🔄 Twice a month", Value: "2_per_month"})

// PlanFlow collects a theme and a period. Fixed periods go straight to a
// frequency choice; the custom period collects a validated date pair and
// the day span decides whether the weekly or the monthly frequency set is
// offered next.
func PlanFlow() *Definition {
	return &Definition{
		ID:     FlowPlan,
		Entry:  "theme",
		Action: ActionGeneratePlan,
		Steps: map[string]*Step{
			"theme": {
				ID:     "theme",
				Kind:   KindFreeText,
				Prompt: "📅 What is the content plan about?",
				Field:  FieldPlanTheme,
				NextID: "period",
			},
			"period": {
				ID:     "period",
				Kind:   KindChoice,
				Prompt: "📆 Pick a planning period:",
				Choices: []Choice{
					{Label: "📅 Week", Value: "week"},
					{Label: "📆 Month", Value: "month"},
					{Label: "📊 Custom period", Value: "custom"},
				},
				Field:   ScratchPeriod,
				Scratch: true,
				Next: func(s *session.Session, value string) string {
					switch value {
					case "week":
						return "freq_week"
					case "month":
						return "freq_month"
					default:
						return "start_date"
					}
				},
			},
			"start_date": {
				ID:       "start_date",
				Kind:     KindFreeText,
				Prompt:   "📅 Start date (dd.mm.yyyy, e.g. 15.11.2025):",
				Field:    FieldPlanStart,
				Validate: validateStartDate,
				NextID:   "end_date",
			},
			"end_date": {
				ID:       "end_date",
				Kind:     KindFreeText,
				Prompt:   "📅 End date (dd.mm.yyyy, e.g. 30.11.2025):",
				Field:    FieldPlanEnd,
				Validate: validateEndDate,
				Next: func(s *session.Session, value string) string {
					if spanDays(s.Fields[FieldPlanStart], value) <= weeklySpanDays {
						return "freq_week"
					}
					return "freq_month"
				},
			},
			"freq_week": {
				ID:      "freq_week",
				Kind:    KindChoice,
				Prompt:  "🔄 How often do you publish?",
				Choices: weeklyFrequencies,
				Field:   ScratchFrequency,
				Scratch: true,
			},
			"freq_month": {
				ID:      "freq_month",
				Kind:    KindChoice,
				Prompt:  "🔄 How often do you publish?",
				Choices: monthlyFrequencies,
				Field:   ScratchFrequency,
				Scratch: true,
			},
		},
	}
}

func validateStartDate(_ *session.Session, input string) error {
	if _, err := time.Parse(DateFormat, input); err != nil {
		return inputErrorf("❌ Invalid date. Format: dd.mm.yyyy, e.g. 15.11.2025")
	}
	return nil
}

// validateEndDate requires a parsable date strictly after the recorded
// start date.
func validateEndDate(s *session.Session, input string) error {
	end, err := time.Parse(DateFormat, input)
	if err != nil {
		return inputErrorf("❌ Invalid date. Format: dd.mm.yyyy, e.g. 30.11.2025")
	}
	start, err := time.Parse(DateFormat, s.Fields[FieldPlanStart])
	if err != nil {
		// Unreachable with a validated start step; reject rather than trust it.
		return inputErrorf("❌ Start date missing, go back and enter it again")
	}
	if !end.After(start) {
		return inputErrorf("❌ The end date must be after the start date")
	}
	return nil
}

// spanDays returns the whole days between two stored dates (end - start).
func spanDays(startRaw, endRaw string) int {
	start, err1 := time.Parse(DateFormat, startRaw)
	end, err2 := time.Parse(DateFormat, endRaw)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}
