package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/postforge/postforge/internal/flow"
	"github.com/postforge/postforge/internal/models"
)

// Main menu button labels.
const (
	menuCreatePost  = "📝 Create post"
	menuEditText    = "✏️ Edit text"
	menuCreateImage = "🎨 Create image"
	menuContentPlan = "📅 Content plan"
	menuProfile     = "🏢 Organization info"
	menuShowProfile = "ℹ️ My info"
)

const welcomeText = "👋 Hi! I'm PostForge — a content assistant for nonprofits.\n\n" +
	"I can write social media posts, edit your texts, draw images, and build " +
	"content plans. Fill in your organization info first so the results fit you better."

const helpText = "Here's what I can do:\n\n" +
	"📝 Create post — draft a new post from your idea\n" +
	"✏️ Edit text — expand, shorten, fix, rephrase, or restyle a text\n" +
	"🎨 Create image — generate an image for a post\n" +
	"📅 Content plan — a dated publishing plan for a period\n" +
	"🏢 Organization info — tell me about your organization\n\n" +
	"In a group chat, send /activate first so I know who to listen to."

// menuFlows maps menu buttons to the flows they start.
var menuFlows = map[string]string{
	menuCreatePost:  flow.FlowTextCreate,
	menuEditText:    flow.FlowTextEdit,
	menuCreateImage: flow.FlowImage,
	menuContentPlan: flow.FlowPlan,
	menuProfile:     flow.FlowProfile,
}

// menuOptions returns the main menu keyboard.
func menuOptions() models.ReplyOptions {
	return models.ReplyOptions{Keyboard: [][]string{
		{menuCreatePost, menuEditText},
		{menuCreateImage, menuContentPlan},
		{menuProfile, menuShowProfile},
	}}
}

// sendMenu shows the main menu.
func (d *Dispatcher) sendMenu(ctx context.Context, chatID string) {
	d.send(ctx, chatID, "👇 What shall we do?", menuOptions())
}

// menuTarget resolves a menu button press to a flow start. The profile
// button runs the intake in edit mode when a profile already exists, which
// changes the intro and unlocks per-field clearing.
func (d *Dispatcher) menuTarget(ctx context.Context, key, input string) (flowID string, seed map[string]string, ok bool) {
	flowID, ok = menuFlows[input]
	if !ok {
		return "", nil, false
	}
	if flowID == flow.FlowProfile {
		p, err := d.profiles.Get(ctx, key)
		if err != nil {
			slog.Error("Dispatcher failed to load profile for menu", "error", err, "userID", key)
		} else if p.HasData() {
			seed = map[string]string{flow.ScratchEditMode: "1"}
		}
	}
	return flowID, seed, true
}

// showProfile renders the saved organization profile.
func (d *Dispatcher) showProfile(ctx context.Context, key, chatID string, log *slog.Logger) {
	p, err := d.profiles.Get(ctx, key)
	if err != nil {
		log.Error("Dispatcher failed to load profile", "error", err)
		d.send(ctx, chatID, "⚠️ Couldn't load your info. Please try again.")
		return
	}
	if !p.HasData() {
		d.send(ctx, chatID, "🏢 No organization info yet. Pick \""+menuProfile+"\" to fill it in.", menuOptions())
		return
	}
	d.send(ctx, chatID, formatProfile(p), menuOptions())
}

// formatProfile renders a profile for display, dashing out empty fields.
func formatProfile(p models.OrgProfile) string {
	var b strings.Builder
	b.WriteString("🏢 Your organization:\n\n")
	b.WriteString("Name: " + orDash(p.Name) + "\n")
	b.WriteString("Activities: " + orDash(p.Activities) + "\n")
	b.WriteString("Audience: " + orDash(p.Audience) + "\n")
	b.WriteString("Website: " + orDash(p.Website))
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
