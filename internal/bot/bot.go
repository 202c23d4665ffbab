// Package bot contains the PostForge dispatcher: it consumes inbound
// messages from a messaging service, serializes them per chat, drives the
// flow engine, and executes the terminal actions flows resolve to.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/postforge/postforge/internal/extract"
	"github.com/postforge/postforge/internal/flow"
	"github.com/postforge/postforge/internal/genai"
	"github.com/postforge/postforge/internal/messaging"
	"github.com/postforge/postforge/internal/models"
	"github.com/postforge/postforge/internal/profile"
	"github.com/postforge/postforge/internal/session"
	"github.com/postforge/postforge/internal/util"
)

// Generator is the content-generation capability the dispatcher needs.
// *genai.Client satisfies it; tests substitute a mock.
type Generator interface {
	GenerateText(ctx context.Context, req genai.TextRequest) (string, error)
	EditText(ctx context.Context, req genai.EditRequest) (string, error)
	GenerateImage(ctx context.Context, description, style string, p models.OrgProfile) ([]byte, error)
	GeneratePlan(ctx context.Context, req genai.PlanRequest) (string, error)
}

// Extractor resolves attachments to text.
type Extractor interface {
	ExtractText(ctx context.Context, att models.AttachmentRef) (string, error)
}

// DefaultChatQueueSize bounds how many messages one chat can have waiting
// while an earlier one is still being handled.
const DefaultChatQueueSize = 64

// replyRef identifies the inbound message outbound replies should quote.
type replyRef struct {
	id     string
	sender string
}

// Dispatcher routes inbound messages through the flow engine and runs the
// resulting actions.
type Dispatcher struct {
	engine    *flow.Engine
	sessions  session.Store
	profiles  profile.Store
	generator Generator
	extractor Extractor
	msgr      messaging.Service
	queueCap  int

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	queues  map[string]chan models.Message
	replies map[string]replyRef
}

// NewDispatcher wires the dispatcher. extractor may be nil, which disables
// attachment handling.
func NewDispatcher(engine *flow.Engine, sessions session.Store, profiles profile.Store,
	generator Generator, extractor Extractor, msgr messaging.Service) *Dispatcher {
	return &Dispatcher{
		engine:    engine,
		sessions:  sessions,
		profiles:  profiles,
		generator: generator,
		extractor: extractor,
		msgr:      msgr,
		queueCap:  util.ParseIntEnv("POSTFORGE_CHAT_QUEUE", DefaultChatQueueSize),
		locks:     make(map[string]*sync.Mutex),
		queues:    make(map[string]chan models.Message),
		replies:   make(map[string]replyRef),
	}
}

// Run consumes the messaging service's inbound channel until it closes or
// the context is cancelled. Messages are handed to one worker per chat, so
// a chat's messages are handled strictly in arrival order while distinct
// chats proceed in parallel.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher running")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopping: context cancelled")
			return
		case msg, ok := <-d.msgr.Messages():
			if !ok {
				slog.Info("Dispatcher stopping: message channel closed")
				return
			}
			d.enqueue(ctx, msg)
		}
	}
}

// enqueue hands the message to its chat's worker, starting the worker on
// first use. The Run loop is the only writer, so queue order is arrival
// order.
func (d *Dispatcher) enqueue(ctx context.Context, msg models.Message) {
	key := sessionKey(msg)
	d.mu.Lock()
	q, ok := d.queues[key]
	if !ok {
		q = make(chan models.Message, d.queueCap)
		d.queues[key] = q
		go d.chatWorker(ctx, q)
	}
	d.mu.Unlock()

	select {
	case q <- msg:
	default:
		slog.Warn("Dispatcher chat queue full, dropping message", "chat", msg.ChatID, "from", msg.From)
	}
}

// chatWorker drains one chat's queue sequentially.
func (d *Dispatcher) chatWorker(ctx context.Context, q <-chan models.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q:
			d.OnMessage(ctx, msg)
		}
	}
}

// chatLock returns the mutex serializing one chat's handling.
func (d *Dispatcher) chatLock(key string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	return l
}

// OnMessage handles a single inbound message end to end. Concurrent
// messages for the same chat are serialized so a slow generation cannot be
// interleaved with (and lose) a later update.
func (d *Dispatcher) OnMessage(ctx context.Context, msg models.Message) {
	corrID := uuid.NewString()
	log := slog.With("corrID", corrID, "from", msg.From, "chat", msg.ChatID, "chatType", msg.ChatType)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Dispatcher panic recovered", "panic", r)
			d.send(ctx, msg.ChatID, "⚠️ Something went wrong. Please try again.")
		}
	}()

	key := sessionKey(msg)
	lock := d.chatLock(key)
	lock.Lock()
	defer lock.Unlock()

	log.Debug("Dispatcher handling message", "body_length", len(msg.Body), "has_attachment", msg.Attachment != nil)

	// In groups every reply quotes the triggering message, so bystanders can
	// tell whose request the bot is answering. Serialization per chat means
	// at most one ref per key is live.
	if msg.ChatType == models.ChatTypeGroup && msg.MessageID != "" {
		d.mu.Lock()
		d.replies[key] = replyRef{id: msg.MessageID, sender: msg.From}
		d.mu.Unlock()
		defer func() {
			d.mu.Lock()
			delete(d.replies, key)
			d.mu.Unlock()
		}()
	}

	if msg.ChatType == models.ChatTypeGroup {
		proceed, err := d.gateGroup(ctx, key, msg)
		if err != nil {
			log.Error("Dispatcher group gating failed", "error", err)
			return
		}
		if !proceed {
			return
		}
	}

	input := strings.TrimSpace(msg.Body)

	if msg.Attachment != nil {
		var handled bool
		var err error
		input, handled, err = d.resolveAttachment(ctx, key, msg)
		if err != nil {
			log.Error("Dispatcher attachment handling failed", "error", err)
			d.send(ctx, msg.ChatID, "⚠️ I could not read the attachment. Please try again.")
			return
		}
		if handled {
			return
		}
	}

	// Personal data never reaches the generation prompts.
	scrubbed, changes := util.ScrubPII(input)
	if len(changes) > 0 {
		log.Debug("Dispatcher scrubbed PII from input", "changes", changes)
		d.send(ctx, msg.ChatID, "🔒 I removed personal data from your message before processing: "+strings.Join(changes, ", "))
		input = scrubbed
	}

	d.route(ctx, key, msg.ChatID, input, log)
}

// route interprets one text input: slash commands, menu buttons, then the
// active flow.
func (d *Dispatcher) route(ctx context.Context, key, chatID, input string, log *slog.Logger) {
	switch strings.ToLower(firstWord(input)) {
	case "/start":
		d.send(ctx, chatID, welcomeText, menuOptions())
		return
	case "/help":
		d.send(ctx, chatID, helpText, menuOptions())
		return
	case "/menu":
		d.sendMenu(ctx, chatID)
		return
	}

	if flowID, seed, ok := d.menuTarget(ctx, key, input); ok {
		res, err := d.engine.StartFlow(ctx, key, flowID, seed)
		if err != nil {
			log.Error("Dispatcher failed to start flow", "error", err, "flow", flowID)
			d.send(ctx, chatID, "⚠️ Something went wrong. Please try again.")
			return
		}
		d.deliver(ctx, key, chatID, res, log)
		return
	}

	if input == menuShowProfile {
		d.showProfile(ctx, key, chatID, log)
		return
	}

	res, err := d.engine.Handle(ctx, key, input)
	if err != nil {
		log.Error("Dispatcher flow interaction failed", "error", err)
		d.send(ctx, chatID, "⚠️ Something went wrong, let's start over.")
		d.sendMenu(ctx, chatID)
		return
	}
	d.deliver(ctx, key, chatID, res, log)
}

// deliver turns an engine result into outbound messages, running the
// terminal action when the flow completed.
func (d *Dispatcher) deliver(ctx context.Context, key, chatID string, res flow.Result, log *slog.Logger) {
	switch res.Kind {
	case flow.ResultIdle:
		d.send(ctx, chatID, "🤔 I didn't catch that. Pick an option below:", menuOptions())
	case flow.ResultMenu:
		d.sendMenu(ctx, chatID)
	case flow.ResultPrompt:
		body := res.Prompt
		if res.Hint != "" {
			body = res.Hint + "\n\n" + body
		}
		d.send(ctx, chatID, body, models.ReplyOptions{Keyboard: res.Keyboard})
	case flow.ResultAction:
		d.runAction(ctx, key, chatID, res, log)
	}
}

// runAction executes a flow's terminal action. Only success finishes the
// flow; a failed action leaves the session where it was so the user can
// retry by resubmitting their last input.
func (d *Dispatcher) runAction(ctx context.Context, key, chatID string, res flow.Result, log *slog.Logger) {
	log.Debug("Dispatcher running action", "action", res.Action, "flow", res.Flow)

	text, err := d.executeAction(ctx, key, chatID, res)
	if err != nil {
		log.Error("Dispatcher action failed", "error", err, "action", res.Action)
		if errors.Is(err, genai.ErrUnavailable) {
			d.send(ctx, chatID, "⏳ The generation service is busy right now. Send your last answer again in a minute to retry.")
		} else {
			d.send(ctx, chatID, "⚠️ That didn't work. Send your last answer again to retry, or go back to the menu.")
		}
		return
	}

	if err := d.engine.FinishFlow(ctx, key); err != nil {
		log.Error("Dispatcher failed to finish flow", "error", err)
	}
	if text != "" {
		for _, chunk := range util.SplitMessage(text, util.DefaultMessageLimit) {
			d.send(ctx, chatID, chunk)
		}
	}
	d.sendMenu(ctx, chatID)
}

// sessionKey scopes sessions: direct chats by user, group chats by chat so
// the group shares one conversation driven by its operator.
func sessionKey(msg models.Message) string {
	if msg.ChatType == models.ChatTypeGroup {
		return msg.ChatID
	}
	return msg.From
}

// firstWord returns the first whitespace-separated token of s.
func firstWord(s string) string {
	if i := strings.IndexAny(s, " \n\t"); i >= 0 {
		return s[:i]
	}
	return s
}

// send delivers one outbound message, logging rather than propagating
// failures: there is nobody upstream to hand the error to. Group replies
// pick up the quote ref recorded for the chat's in-flight message.
func (d *Dispatcher) send(ctx context.Context, chatID, body string, opts ...models.ReplyOptions) {
	var opt models.ReplyOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	d.mu.Lock()
	if ref, ok := d.replies[chatID]; ok && opt.ReplyToID == "" {
		opt.ReplyToID = ref.id
		opt.ReplyToSender = ref.sender
	}
	d.mu.Unlock()
	if err := d.msgr.SendMessage(ctx, chatID, body, opt); err != nil {
		slog.Error("Dispatcher failed to send message", "error", err, "chat", chatID)
	}
}

// resolveAttachment extracts text from the attachment and decides what to
// do with it. Returns the input to feed the engine, or handled=true when
// the message was fully dealt with here.
func (d *Dispatcher) resolveAttachment(ctx context.Context, key string, msg models.Message) (input string, handled bool, err error) {
	sess, err := d.sessions.Get(ctx, key)
	if err != nil {
		return "", false, err
	}

	// Image and planning flows collect descriptions, not documents.
	if sess.ActiveFlow == flow.FlowImage || sess.ActiveFlow == flow.FlowPlan {
		d.send(ctx, msg.ChatID, "📎 Attachments aren't used in this flow. Please answer in text.")
		return "", true, nil
	}

	if d.extractor == nil {
		d.send(ctx, msg.ChatID, "📎 Attachments aren't supported here. Please send text.")
		return "", true, nil
	}

	text, err := d.extractor.ExtractText(ctx, *msg.Attachment)
	if errors.Is(err, extract.ErrUnsupportedFormat) {
		d.send(ctx, msg.ChatID, "📎 I can't read this format. Send a photo, a TXT file, or plain text.")
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(text) == "" {
		d.send(ctx, msg.ChatID, "📎 I couldn't find any text in the attachment.")
		return "", true, nil
	}

	if caption := strings.TrimSpace(msg.Body); caption != "" {
		text = caption + "\n" + text
	}

	// An attachment outside any flow means "here is my text, edit it":
	// start the editing flow and feed the extracted text into its first step.
	if sess.Idle() {
		if _, err := d.engine.StartFlow(ctx, key, flow.FlowTextEdit, nil); err != nil {
			return "", false, err
		}
	}
	return text, false, nil
}

// gateGroup enforces group-chat activation. The first user to /activate
// becomes the group's operator; only the operator's messages drive the bot
// until /deactivate.
func (d *Dispatcher) gateGroup(ctx context.Context, key string, msg models.Message) (bool, error) {
	sess, err := d.sessions.Get(ctx, key)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(firstWord(strings.TrimSpace(msg.Body))) {
	case "/activate":
		if sess.Operator != "" && sess.Operator != msg.From {
			d.send(ctx, msg.ChatID, "🔒 I'm already active here with another operator.")
			return false, nil
		}
		sess.Operator = msg.From
		if err := d.sessions.Put(ctx, sess); err != nil {
			return false, err
		}
		d.send(ctx, msg.ChatID, "✅ Activated! I'll respond to you in this group now.", menuOptions())
		return false, nil
	case "/deactivate":
		if sess.Operator == "" || sess.Operator != msg.From {
			return false, nil
		}
		sess.Operator = ""
		sess.Reset()
		if err := d.sessions.Put(ctx, sess); err != nil {
			return false, err
		}
		d.send(ctx, msg.ChatID, "👋 Deactivated. Send /activate to start again.")
		return false, nil
	}

	// Without an operator, stay silent in the group.
	if sess.Operator == "" || sess.Operator != msg.From {
		return false, nil
	}
	return true, nil
}
