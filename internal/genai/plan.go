package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/postforge/postforge/internal/models"
)

// Plan period identifiers.
const (
	PeriodWeek   = "week"
	PeriodMonth  = "month"
	PeriodCustom = "custom"
)

// Publication frequency identifiers.
const (
	FreqDaily      = "daily"
	Freq2PerWeek   = "2_per_week"
	Freq3PerWeek   = "3_per_week"
	FreqWeekly     = "weekly"
	Freq2PerMonth  = "2_per_month"
	defaultPerPlan = 4
)

// frequencyLabels render frequency identifiers for the prompt.
var frequencyLabels = map[string]string{
	FreqDaily:     "once a day",
	Freq2PerWeek:  "twice a week",
	Freq3PerWeek:  "three times a week",
	FreqWeekly:    "once a week",
	Freq2PerMonth: "twice a month",
}

// PlanRequest describes a content-plan request. StartDate and EndDate are
// only set for the custom period; fixed periods derive them from today.
type PlanRequest struct {
	Profile   models.OrgProfile
	Theme     string
	Period    string
	Frequency string
	StartDate time.Time
	EndDate   time.Time
}

// planDates resolves the request into a concrete date range and its length
// in days (inclusive).
func planDates(req PlanRequest, now time.Time) (start, end time.Time, totalDays int, err error) {
	start = req.StartDate
	if start.IsZero() {
		start = now
	}
	switch req.Period {
	case PeriodWeek:
		end = start.AddDate(0, 0, 6)
		totalDays = 7
	case PeriodMonth:
		end = start.AddDate(0, 0, 29)
		totalDays = 30
	case PeriodCustom:
		end = req.EndDate
		if end.IsZero() {
			return start, end, 0, fmt.Errorf("custom period requires an end date")
		}
		totalDays = int(end.Sub(start).Hours()/24) + 1
	default:
		return start, end, 0, fmt.Errorf("unknown plan period %q", req.Period)
	}
	return start, end, totalDays, nil
}

// postCount converts a frequency and a day span into the number of posts
// the plan should hold. Partial weeks round up, and the count never
// exceeds one post per day.
func postCount(frequency string, totalDays int) int {
	var n int
	switch frequency {
	case FreqDaily:
		n = totalDays
	case FreqWeekly:
		n = max(1, (totalDays+6)/7)
	case Freq2PerWeek:
		n = max(1, (totalDays*2+6)/7)
	case Freq3PerWeek:
		n = max(1, (totalDays*3+6)/7)
	case Freq2PerMonth:
		n = 2
	default:
		n = defaultPerPlan
	}
	return min(n, totalDays)
}

// GeneratePlan produces a dated content plan for the requested period.
func (c *Client) GeneratePlan(ctx context.Context, req PlanRequest) (string, error) {
	start, end, totalDays, err := planDates(req, time.Now())
	if err != nil {
		return "", err
	}
	numPosts := postCount(req.Frequency, totalDays)
	slog.Debug("GeneratePlan invoked", "period", req.Period, "frequency", req.Frequency, "posts", numPosts)

	freqLabel, ok := frequencyLabels[req.Frequency]
	if !ok {
		freqLabel = req.Frequency
	}

	var b strings.Builder
	b.WriteString(profileContext(req.Profile))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Build a social media content plan from %s to %s.\n",
		start.Format("02.01.2006"), end.Format("02.01.2006"))
	fmt.Fprintf(&b, "Publication frequency: %s. The plan must contain exactly %d posts.\n", freqLabel, numPosts)
	if req.Theme != "" {
		fmt.Fprintf(&b, "Plan theme: %s\n", req.Theme)
	}
	b.WriteString("For each post give the date, a short title, and a one-sentence description of what to publish. " +
		"Spread the dates evenly across the period.")

	text, err := c.complete(ctx, systemPrompt, b.String())
	if err != nil {
		slog.Error("GeneratePlan failed", "error", err)
		return "", fmt.Errorf("failed to generate content plan: %w", err)
	}
	return text, nil
}
