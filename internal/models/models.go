// Package models defines the shared data types exchanged between the
// transport layer, the dispatcher, and the flow engine.
package models

// StatusType represents the delivery status of an outbound message.
type StatusType string

// Receipt status constants.
const (
	StatusTypeSent      StatusType = "sent"
	StatusTypeDelivered StatusType = "delivered"
	StatusTypeRead      StatusType = "read"
)

// ChatType distinguishes direct chats from shared group chats.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// AttachmentRef points at an inbound attachment without carrying its bytes.
// The extractor resolves it to text (or to the defined nil outcome).
type AttachmentRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name,omitempty"`
	Data     []byte `json:"-"`
}

// Message is one inbound event handed to the dispatcher. Exactly one of
// Body and Attachment carries the payload; a message may carry both when
// an attachment arrives with a caption.
type Message struct {
	From       string         `json:"from"`     // stable user identity key
	ChatID     string         `json:"chat_id"`  // chat scope the message arrived in
	ChatType   ChatType       `json:"chat_type"`
	Body       string         `json:"body,omitempty"`
	Attachment *AttachmentRef `json:"attachment,omitempty"`
	MessageID  string         `json:"message_id,omitempty"` // for reply quoting in groups
	Time       int64          `json:"time"`
}

// Receipt records a delivery status change for an outbound message.
type Receipt struct {
	To     string     `json:"to"`
	Status StatusType `json:"status"`
	Time   int64      `json:"time"`
}

// ReplyOptions carries presentation hints for an outbound message.
type ReplyOptions struct {
	Keyboard      [][]string `json:"keyboard,omitempty"`        // reply keyboard rows
	ReplyToID     string     `json:"reply_to,omitempty"`        // quote this message (group chats)
	ReplyToSender string     `json:"reply_to_sender,omitempty"` // author of the quoted message
}

// OrgProfile is the persisted organization profile collected by the
// profile intake flow and consumed read-only by the generation flows.
type OrgProfile struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Activities string `json:"activities"`
	Audience   string `json:"audience"`
	Website    string `json:"website"`
}

// HasData reports whether at least one profile field is non-empty.
func (p OrgProfile) HasData() bool {
	return p.Name != "" || p.Activities != "" || p.Audience != "" || p.Website != ""
}

// Fields returns the profile as an ordered field map, the shape the flow
// engine collects and the generation context consumes.
func (p OrgProfile) Fields() map[string]string {
	return map[string]string{
		"name":       p.Name,
		"activities": p.Activities,
		"audience":   p.Audience,
		"website":    p.Website,
	}
}

// ProfileFromFields builds an OrgProfile from collected flow fields.
func ProfileFromFields(userID string, fields map[string]string) OrgProfile {
	return OrgProfile{
		UserID:     userID,
		Name:       fields["name"],
		Activities: fields["activities"],
		Audience:   fields["audience"],
		Website:    fields["website"],
	}
}
