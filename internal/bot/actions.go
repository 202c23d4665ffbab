package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/postforge/postforge/internal/flow"
	"github.com/postforge/postforge/internal/genai"
	"github.com/postforge/postforge/internal/models"
)

// executeAction runs the terminal action a completed flow resolved to and
// returns the text to deliver. Image results are sent directly and return
// no text.
func (d *Dispatcher) executeAction(ctx context.Context, key, chatID string, res flow.Result) (string, error) {
	switch res.Action {
	case flow.ActionSaveProfile:
		return d.saveProfile(ctx, key, res)
	case flow.ActionGenerateText:
		return d.generateText(ctx, key, res)
	case flow.ActionEditText:
		return d.editText(ctx, key, res)
	case flow.ActionGenerateImage:
		return d.generateImage(ctx, key, chatID, res)
	case flow.ActionGeneratePlan:
		return d.generatePlan(ctx, key, res)
	default:
		return "", fmt.Errorf("unknown flow action %q", res.Action)
	}
}

// saveProfile persists the collected organization fields. Skipping every
// field still saves (clearing the profile) but gets a different
// confirmation so the user knows nothing was recorded.
func (d *Dispatcher) saveProfile(ctx context.Context, key string, res flow.Result) (string, error) {
	p := models.ProfileFromFields(key, res.Fields)
	if err := d.profiles.Save(ctx, p); err != nil {
		return "", fmt.Errorf("failed to save profile: %w", err)
	}
	if res.AllEmpty {
		return "💾 Saved. You skipped every field, so I'll write without organization context for now.", nil
	}
	return "✅ Saved!\n\n" + formatProfile(p), nil
}

func (d *Dispatcher) generateText(ctx context.Context, key string, res flow.Result) (string, error) {
	p, err := d.profiles.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	return d.generator.GenerateText(ctx, genai.TextRequest{
		Profile:  p,
		PostType: res.Scratch[flow.ScratchPostType],
		Request:  res.Fields["request"],
		Style:    res.Scratch[flow.ScratchStyle],
	})
}

func (d *Dispatcher) editText(ctx context.Context, key string, res flow.Result) (string, error) {
	p, err := d.profiles.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	return d.generator.EditText(ctx, genai.EditRequest{
		Profile: p,
		Text:    res.Fields["text"],
		Action:  res.Scratch[flow.ScratchAction],
		Style:   res.Scratch[flow.ScratchStyle],
	})
}

// generateImage produces and delivers the image. Empty bytes without an
// error is the model declining the description: the flow completes with a
// failure message instead of an image.
func (d *Dispatcher) generateImage(ctx context.Context, key, chatID string, res flow.Result) (string, error) {
	p, err := d.profiles.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	data, err := d.generator.GenerateImage(ctx, res.Fields["description"], res.Scratch[flow.ScratchStyle], p)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "😔 I couldn't create an image for that description. Try describing it differently.", nil
	}
	if err := d.msgr.SendImage(ctx, chatID, "🎨 Here's your image!", data); err != nil {
		return "", fmt.Errorf("failed to deliver image: %w", err)
	}
	return "", nil
}

func (d *Dispatcher) generatePlan(ctx context.Context, key string, res flow.Result) (string, error) {
	p, err := d.profiles.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	req := genai.PlanRequest{
		Profile:   p,
		Theme:     res.Fields[flow.FieldPlanTheme],
		Period:    res.Scratch[flow.ScratchPeriod],
		Frequency: res.Scratch[flow.ScratchFrequency],
	}
	if req.Period == genai.PeriodCustom {
		start, err := time.Parse(flow.DateFormat, res.Fields[flow.FieldPlanStart])
		if err != nil {
			return "", fmt.Errorf("invalid start date: %w", err)
		}
		end, err := time.Parse(flow.DateFormat, res.Fields[flow.FieldPlanEnd])
		if err != nil {
			return "", fmt.Errorf("invalid end date: %w", err)
		}
		req.StartDate = start
		req.EndDate = end
	}
	return d.generator.GeneratePlan(ctx, req)
}
