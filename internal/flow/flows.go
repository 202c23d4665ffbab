package flow

import (
	"github.com/postforge/postforge/internal/session"
	"github.com/postforge/postforge/internal/util"
)

// Flow identifiers.
const (
	FlowProfile    = "profile"
	FlowTextCreate = "text_create"
	FlowTextEdit   = "text_edit"
	FlowImage      = "image"
	FlowPlan       = "plan"
)

// Terminal action identifiers the dispatcher maps to capabilities.
const (
	ActionSaveProfile   = "save_profile"
	ActionGenerateText  = "generate_text"
	ActionEditText      = "edit_text"
	ActionGenerateImage = "generate_image"
	ActionGeneratePlan  = "generate_plan"
)

// Scratch keys shared between flow definitions and the dispatcher.
const (
	ScratchMode      = "mode"
	ScratchPostType  = "post_type"
	ScratchStyle     = "style"
	ScratchAction    = "action"
	ScratchPeriod    = "period"
	ScratchFrequency = "frequency"
)

// Text style choices shared by the creation and editing flows. The empty
// value means "no style hint".
var styleChoices = []Choice{
	{Label: "💬 Conversational", Value: "conversational, friendly"},
	{Label: "🏢 Formal", Value: "formal, official"},
	{Label: "🎭 Artistic", Value: "poetic, artistic"},
	{Label: "⚪ No style", Value: ""},
}

// Definitions returns the five flows the bot ships with, ready for the
// registry.
func Definitions() []*Definition {
	return []*Definition{
		ProfileFlow(),
		TextCreateFlow(),
		TextEditFlow(),
		ImageFlow(),
		PlanFlow(),
	}
}

// ProfileFlow collects the four organization fields in order. Every step
// is skippable with an empty default; the website value is reduced to its
// bare domain before storage. In edit mode the intro changes and the clear
// command becomes available.
func ProfileFlow() *Definition {
	return &Definition{
		ID:     FlowProfile,
		Entry:  "name",
		Action: ActionSaveProfile,
		Steps: map[string]*Step{
			"name": {
				ID:   "name",
				Kind: KindFreeText,
				PromptFunc: func(s *session.Session) string {
					if s.Scratch[ScratchEditMode] != "" {
						return "📝 Let's update your organization info.\n\nOrganization name:"
					}
					return "👋 Let's fill in your organization info!\n\n" +
						"It helps me write better posts and images for you.\n\n" +
						"Organization name:"
				},
				Field:     "name",
				Skippable: true,
				NextID:    "activities",
			},
			"activities": {
				ID:        "activities",
				Kind:      KindFreeText,
				Prompt:    "⚙️ What does the organization do? (e.g. helping children, ecology, elder care)",
				Field:     "activities",
				Skippable: true,
				NextID:    "audience",
			},
			"audience": {
				ID:        "audience",
				Kind:      KindFreeText,
				Prompt:    "👥 Who is your audience? (children, students, volunteers, retirees...)",
				Field:     "audience",
				Skippable: true,
				NextID:    "website",
			},
			"website": {
				ID:        "website",
				Kind:      KindFreeText,
				Prompt:    "🌐 Website, if any? (e.g. https://example.org)",
				Field:     "website",
				Skippable: true,
				Transform: util.CleanURL,
			},
		},
	}
}

// TextCreateFlow asks for a mode first; the structured branch inserts a
// post-type step whose value the generator prefixes onto the request. The
// branch is plain data: the mode scratch value picks the successor.
func TextCreateFlow() *Definition {
	return &Definition{
		ID:     FlowTextCreate,
		Entry:  "mode",
		Action: ActionGenerateText,
		Steps: map[string]*Step{
			"mode": {
				ID:   "mode",
				Kind: KindChoice,
				Prompt: "📝 How would you like to describe the post?",
				Choices: []Choice{
					{Label: "✍️ Free text", Value: "free"},
					{Label: "📋 Structured form", Value: "structured"},
				},
				Field:   ScratchMode,
				Scratch: true,
				Next: func(s *session.Session, value string) string {
					if value == "structured" {
						return "post_type"
					}
					return "request"
				},
			},
			"post_type": {
				ID:     "post_type",
				Kind:   KindChoice,
				Prompt: "📋 What kind of post is it?",
				Choices: []Choice{
					{Label: "📣 Announcement", Value: "announcement"},
					{Label: "📰 News", Value: "news"},
					{Label: "🗣 Call to action", Value: "call to action"},
					{Label: "📊 Report", Value: "report"},
				},
				Field:   ScratchPostType,
				Scratch: true,
				NextID:  "request",
			},
			"request": {
				ID:     "request",
				Kind:   KindFreeText,
				Prompt: "📝 What is the post about? (an idea in 1-2 sentences)",
				Field:  "request",
				NextID: "style",
			},
			"style": {
				ID:      "style",
				Kind:    KindChoice,
				Prompt:  "🎨 Pick a style:",
				Choices: styleChoices,
				Field:   ScratchStyle,
				Scratch: true,
			},
		},
	}
}

// TextEditFlow collects the original text and an edit action; only the
// change-style action inserts the style step before the terminal.
func TextEditFlow() *Definition {
	return &Definition{
		ID:     FlowTextEdit,
		Entry:  "text",
		Action: ActionEditText,
		Steps: map[string]*Step{
			"text": {
				ID:     "text",
				Kind:   KindFreeText,
				Prompt: "✏️ Send the text to edit (or attach a photo or document with it):",
				Field:  "text",
				NextID: "action",
			},
			"action": {
				ID:     "action",
				Kind:   KindChoice,
				Prompt: "🛠 What should I do with it?",
				Choices: []Choice{
					{Label: "📈 Expand", Value: "expand"},
					{Label: "📉 Shorten", Value: "shorten"},
					{Label: "✅ Fix mistakes", Value: "fix"},
					{Label: "🔁 Rephrase", Value: "rephrase"},
					{Label: "🎨 Change style", Value: "restyle"},
				},
				Field:   ScratchAction,
				Scratch: true,
				Next: func(s *session.Session, value string) string {
					if value == "restyle" {
						return "style"
					}
					return StepTerminal
				},
			},
			"style": {
				ID:      "style",
				Kind:    KindChoice,
				Prompt:  "🎨 Pick the target style:",
				Choices: styleChoices,
				Field:   ScratchStyle,
				Scratch: true,
			},
		},
	}
}

// ImageFlow collects a description and a style; picking the custom style
// inserts a free-text style step whose value replaces the marker.
func ImageFlow() *Definition {
	return &Definition{
		ID:     FlowImage,
		Entry:  "description",
		Action: ActionGenerateImage,
		Steps: map[string]*Step{
			"description": {
				ID:     "description",
				Kind:   KindFreeText,
				Prompt: "🎨 Describe the image:",
				Field:  "description",
				NextID: "style",
			},
			"style": {
				ID:     "style",
				Kind:   KindChoice,
				Prompt: "🖌 Pick an image style:",
				Choices: []Choice{
					{Label: "🎨 Realism", Value: "realism"},
					{Label: "🦄 Cartoon", Value: "cartoon"},
					{Label: "💧 Watercolor", Value: "watercolor"},
					{Label: "🌃 Cyberpunk", Value: "cyberpunk"},
					{Label: "✳️ Custom style", Value: "custom"},
				},
				Field:   ScratchStyle,
				Scratch: true,
				Next: func(s *session.Session, value string) string {
					if value == "custom" {
						return "custom_style"
					}
					return StepTerminal
				},
			},
			"custom_style": {
				ID:      "custom_style",
				Kind:    KindFreeText,
				Prompt:  "✳️ Describe your style:",
				Field:   ScratchStyle,
				Scratch: true,
			},
		},
	}
}
