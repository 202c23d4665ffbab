package messaging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/postforge/postforge/internal/models"
	"github.com/postforge/postforge/internal/whatsapp"
)

// Constants for WhatsAppService configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and message channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // Access to underlying client for event handling
	receipts chan models.Receipt
	messages chan models.Message
	done     chan struct{}
	mu       sync.RWMutex
	stopped  bool
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:   client,
		receipts: make(chan models.Receipt, DefaultChannelBufferSize),
		messages: make(chan models.Message, DefaultChannelBufferSize),
		done:     make(chan struct{}),
	}

	// If the client is a full Client (not just an interface), store it for event handling
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient validates a recipient. Group JIDs pass
// through untouched; bare identifiers are canonicalized as phone numbers.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if strings.ContainsRune(recipient, '@') {
		return recipient, nil
	}
	canonical, err := canonicalizePhone(recipient)
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("WhatsAppService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start begins background processing (e.g., event polling).
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")

	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
	}

	return nil
}

// Stop stops background processing. Emitters check the done channel before
// touching the outbound channels, so the delayed close lets in-flight emits
// finish without sending on a closed channel.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	slog.Info("WhatsAppService Stop invoked")
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.receipts)
		close(s.messages)
	}()
	return nil
}

// SendMessage sends a message and emits a sent receipt. WhatsApp has no
// interactive reply keyboards, so keyboard rows are rendered as option
// lines under the message body. A reply ref in the options quotes the
// referenced message.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string, opts ...models.ReplyOptions) error {
	slog.Debug("WhatsAppService SendMessage invoked", "to", to, "body_length", len(body))
	var opt models.ReplyOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if len(opt.Keyboard) > 0 {
		body = body + "\n\n" + renderKeyboard(opt.Keyboard)
	}

	var err error
	if opt.ReplyToID != "" {
		err = s.client.SendReply(ctx, to, body, opt.ReplyToID, opt.ReplyToSender)
	} else {
		err = s.client.SendMessage(ctx, to, body)
	}
	if err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", to)
		return err
	}
	s.emitReceipt(models.Receipt{To: to, Status: models.StatusTypeSent, Time: time.Now().Unix()})
	return nil
}

// SendImage sends raw image bytes with an optional caption.
func (s *WhatsAppService) SendImage(ctx context.Context, to string, caption string, data []byte) error {
	slog.Debug("WhatsAppService SendImage invoked", "to", to, "size", len(data))
	err := s.client.SendImage(ctx, to, caption, data)
	if err != nil {
		slog.Error("WhatsAppService SendImage error", "error", err, "to", to)
		return err
	}
	s.emitReceipt(models.Receipt{To: to, Status: models.StatusTypeSent, Time: time.Now().Unix()})
	return nil
}

// renderKeyboard flattens keyboard rows into one option line per button.
func renderKeyboard(rows [][]string) string {
	var lines []string
	for _, row := range rows {
		for _, label := range row {
			lines = append(lines, "• "+label)
		}
	}
	return strings.Join(lines, "\n")
}

// Receipts returns a channel of receipt events.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Messages returns a channel of incoming messages.
func (s *WhatsAppService) Messages() <-chan models.Message {
	return s.messages
}

// handleEvents processes WhatsApp events and feeds them into the appropriate channels
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(ctx, v)
		case *events.Receipt:
			s.handleMessageReceipt(v)
		default:
			// Ignore other event types
		}
	})

	slog.Debug("WhatsAppService event handler registered")

	// Keep handler running until context is cancelled
	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage converts an inbound WhatsApp event into a Message.
// Text arrives in the body; images and documents are downloaded and carried
// as attachments so the extractor can resolve them to text.
func (s *WhatsAppService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	msg := models.Message{
		From:      senderNumber(evt.Info.Sender.User),
		ChatID:    evt.Info.Chat.String(),
		ChatType:  models.ChatTypeDirect,
		MessageID: evt.Info.ID,
		Time:      evt.Info.Timestamp.Unix(),
	}
	if evt.Info.IsGroup {
		msg.ChatType = models.ChatTypeGroup
	} else {
		msg.ChatID = evt.Info.Sender.User
	}

	switch {
	case evt.Message.Conversation != nil:
		msg.Body = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		msg.Body = *evt.Message.ExtendedTextMessage.Text
	case evt.Message.ImageMessage != nil:
		img := evt.Message.ImageMessage
		data, err := s.waClient.GetClient().Download(ctx, img)
		if err != nil {
			slog.Error("WhatsAppService failed to download image", "error", err, "from", msg.From)
			return
		}
		msg.Body = img.GetCaption()
		msg.Attachment = &models.AttachmentRef{
			ID:       evt.Info.ID,
			MimeType: img.GetMimetype(),
			FileName: "photo" + extForMime(img.GetMimetype()),
			Data:     data,
		}
	case evt.Message.DocumentMessage != nil:
		doc := evt.Message.DocumentMessage
		data, err := s.waClient.GetClient().Download(ctx, doc)
		if err != nil {
			slog.Error("WhatsAppService failed to download document", "error", err, "from", msg.From)
			return
		}
		msg.Body = doc.GetCaption()
		msg.Attachment = &models.AttachmentRef{
			ID:       evt.Info.ID,
			MimeType: doc.GetMimetype(),
			FileName: doc.GetFileName(),
			Data:     data,
		}
	default:
		slog.Debug("WhatsAppService ignoring unsupported message type", "from", msg.From)
		return
	}

	slog.Debug("WhatsAppService processing incoming message",
		"from", msg.From, "chat_type", msg.ChatType, "body_length", len(msg.Body), "has_attachment", msg.Attachment != nil)

	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	select {
	case s.messages <- msg:
	case <-s.done:
		slog.Debug("WhatsAppService stopped, discarding inbound message", "from", msg.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService messages channel blocked, dropping message", "from", msg.From, "timeout", DefaultChannelTimeout)
	}
}

// handleMessageReceipt processes delivery and read receipts
func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	toNumber := senderNumber(evt.MessageSource.Sender.User)

	var status models.StatusType
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.StatusTypeDelivered
	case events.ReceiptTypeRead:
		status = models.StatusTypeRead
	case events.ReceiptTypeReadSelf:
		// Skip self-read receipts
		return
	default:
		slog.Debug("WhatsAppService ignoring receipt type", "type", evt.Type, "to", toNumber)
		return
	}

	s.emitReceipt(models.Receipt{To: toNumber, Status: status, Time: evt.Timestamp.Unix()})
}

// emitReceipt forwards a receipt without blocking the event handler.
// Receipts are advisory: when nobody keeps up with the channel the receipt
// is dropped rather than stalling sends.
func (s *WhatsAppService) emitReceipt(r models.Receipt) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	select {
	case s.receipts <- r:
	default:
		slog.Warn("WhatsAppService receipts channel full, dropping receipt", "to", r.To)
	}
}

// senderNumber converts a JID user part to E.164-ish form.
func senderNumber(user string) string {
	if !strings.HasPrefix(user, "+") {
		return "+" + user
	}
	return user
}

// extForMime picks a file extension for a downloaded image.
func extForMime(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

var _ Service = (*WhatsAppService)(nil)
