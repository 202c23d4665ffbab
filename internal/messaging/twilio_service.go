package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/postforge/postforge/internal/models"
	"github.com/postforge/postforge/internal/twilio"
)

// MediaPublisher hosts raw image bytes and returns a public URL Twilio can
// fetch them from.
type MediaPublisher interface {
	Publish(data []byte, mimeType string) (string, error)
}

// TwilioService implements the Service interface using the Twilio API.
// Twilio delivers WhatsApp media by URL only, so SendImage requires a
// MediaPublisher to host the bytes.
type TwilioService struct {
	client   twilio.Sender
	media    MediaPublisher
	receipts chan models.Receipt
	messages chan models.Message
	mu       sync.RWMutex
	stopped  bool
}

// NewTwilioService creates a new TwilioService. media may be nil, in which
// case image sends fail with a configuration error.
func NewTwilioService(client twilio.Sender, media MediaPublisher) *TwilioService {
	return &TwilioService{
		client:   client,
		media:    media,
		receipts: make(chan models.Receipt, DefaultChannelBufferSize),
		messages: make(chan models.Message, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number by stripping non-digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalizePhone(recipient)
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op for Twilio (inbound messages arrive via webhook, which
// is outside this service).
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service. The delayed close lets emits
// that passed the stopped check finish before the channels go away.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.receipts)
		close(s.messages)
	}()

	return nil
}

// SendMessage sends a message via Twilio and emits a sent receipt.
// Keyboards are rendered as option lines because Twilio's WhatsApp API has
// no interactive buttons; it has no quoting either, so any reply ref in the
// options is ignored.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string, opts ...models.ReplyOptions) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}

	if len(opts) > 0 && len(opts[0].Keyboard) > 0 {
		body = body + "\n\n" + renderKeyboard(opts[0].Keyboard)
	}

	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}

	s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.StatusTypeSent, Time: time.Now().Unix()})
	return nil
}

// SendImage hosts the image bytes via the media publisher and sends the
// resulting URL as a Twilio media message.
func (s *TwilioService) SendImage(ctx context.Context, to string, caption string, data []byte) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	if s.media == nil {
		return fmt.Errorf("image delivery not configured: no media publisher")
	}

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendImage validation error", "error", err, "to", to)
		return err
	}

	url, err := s.media.Publish(data, "image/png")
	if err != nil {
		slog.Error("TwilioService failed to publish media", "error", err, "to", canonicalTo)
		return fmt.Errorf("failed to publish media: %w", err)
	}

	if err := s.client.SendMediaURL(ctx, canonicalTo, caption, url); err != nil {
		return err
	}

	s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.StatusTypeSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns a channel of receipt events.
func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Messages returns a channel of incoming messages.
func (s *TwilioService) Messages() <-chan models.Message {
	return s.messages
}

// safeEmitReceipt emits a receipt unless the service has stopped.
func (s *TwilioService) safeEmitReceipt(r models.Receipt) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.receipts <- r:
	default:
		slog.Warn("TwilioService receipts channel full, dropping receipt", "to", r.To)
	}
}

var _ Service = (*TwilioService)(nil)
