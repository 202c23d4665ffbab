package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/postforge/postforge/internal/models"
)

// systemPrompt frames every text operation. Posts are for nonprofit social
// media, so the register is warm and concrete rather than corporate.
const systemPrompt = "You are a social media content assistant for nonprofit organizations. " +
	"Write engaging, sincere posts that highlight the organization's mission and invite the reader to act. " +
	"Keep the language warm and concrete. Reply with the post text only, no commentary."

// Edit actions supported by EditText.
const (
	ActionExpand   = "expand"
	ActionShorten  = "shorten"
	ActionFix      = "fix"
	ActionRephrase = "rephrase"
	ActionRestyle  = "restyle"
)

// TextRequest describes a post-drafting request.
type TextRequest struct {
	Profile  models.OrgProfile
	PostType string // optional structured-mode post category
	Request  string // the user's description of what to write
	Style    string // optional style hint, empty for neutral
}

// GenerateText drafts a new post from the request, profile context, and
// optional style hint.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	slog.Debug("GenerateText invoked", "postType", req.PostType, "style_set", req.Style != "")

	var b strings.Builder
	b.WriteString(profileContext(req.Profile))
	b.WriteString("\n")
	if req.PostType != "" {
		fmt.Fprintf(&b, "Post type: %s\n", req.PostType)
	}
	if req.Style != "" {
		fmt.Fprintf(&b, "Style: %s\n", req.Style)
	}
	fmt.Fprintf(&b, "Request: %s", req.Request)

	text, err := c.complete(ctx, systemPrompt, b.String())
	if err != nil {
		slog.Error("GenerateText failed", "error", err)
		return "", fmt.Errorf("failed to generate text: %w", err)
	}
	return text, nil
}

// EditRequest describes a post-editing request.
type EditRequest struct {
	Profile models.OrgProfile
	Text    string
	Action  string // one of the Action* constants
	Style   string // target style, only used by ActionRestyle
}

// editInstructions maps each action to the instruction placed before the
// user's text. The restyle instruction is built separately because it
// carries the target style.
var editInstructions = map[string]string{
	ActionExpand:   "Expand this nonprofit social media post: add detail and emotion, make it more vivid, and end with a call to action.",
	ActionShorten:  "Shorten this nonprofit social media post while keeping its key message and warmth.",
	ActionFix:      "Fix spelling, grammar, and punctuation in this nonprofit social media post without changing its meaning or tone.",
	ActionRephrase: "Rephrase this nonprofit social media post with fresh wording while keeping its meaning.",
}

// EditText applies the requested edit action to the text. Unknown actions
// fall back to a general polish instruction rather than failing.
func (c *Client) EditText(ctx context.Context, req EditRequest) (string, error) {
	slog.Debug("EditText invoked", "action", req.Action)

	instruction, ok := editInstructions[req.Action]
	if req.Action == ActionRestyle {
		style := req.Style
		if style == "" {
			style = "neutral"
		}
		instruction = fmt.Sprintf("Rewrite this nonprofit social media post in a %s style while keeping its meaning.", style)
	} else if !ok {
		instruction = "Edit and improve this nonprofit social media post."
	}

	prompt := fmt.Sprintf("%s\n\n%s\n\nThe result must be the edited text of the user's post, nothing else.\n\n%s",
		profileContext(req.Profile), instruction, req.Text)

	text, err := c.complete(ctx, systemPrompt, prompt)
	if err != nil {
		slog.Error("EditText failed", "error", err, "action", req.Action)
		return "", fmt.Errorf("failed to edit text: %w", err)
	}
	return text, nil
}
