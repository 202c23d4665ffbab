// Package messaging provides pluggable message delivery backends for
// PostForge. A Service carries outbound text and images and surfaces
// inbound messages and delivery receipts on channels the dispatcher
// consumes.
package messaging

import (
	"context"
	"errors"
	"regexp"

	"github.com/postforge/postforge/internal/models"
)

// ErrServiceStopped is returned by send operations after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything but digits during recipient
// canonicalization.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
// It supports sending messages and provides channels for receipt and
// inbound message events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	// This allows each service to implement its own recipient validation rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient. Presentation hints
	// (reply keyboards, quoting) are optional and best-effort.
	SendMessage(ctx context.Context, to string, body string, opts ...models.ReplyOptions) error

	// SendImage sends raw image bytes with an optional caption.
	SendImage(ctx context.Context, to string, caption string, data []byte) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Messages returns a channel of incoming messages.
	Messages() <-chan models.Message
}

// canonicalizePhone removes all non-numeric characters and validates the
// result has at least 6 digits. Shared by the phone-number backends.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found in recipient")
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid phone number: too short (minimum 6 digits required)")
	}
	return canonical, nil
}
