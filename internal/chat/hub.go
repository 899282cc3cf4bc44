package chat

import (
	"context"
	"log"
	"time"

	"github.com/mdmrafi/vartalap/internal/delivery"
	"github.com/mdmrafi/vartalap/internal/model"
	"github.com/mdmrafi/vartalap/internal/presence"
	"github.com/mdmrafi/vartalap/internal/storage"
	"github.com/mdmrafi/vartalap/internal/typing"
)

// Hub routes message intents through the delivery state machine and
// fans resulting events out to live connections. It owns the presence
// registry and typing coordinator; both reset on process restart.
type Hub struct {
	store    *storage.Store
	delivery *delivery.Service
	presence *presence.Registry
	typing   *typing.Coordinator

	register   chan *Client
	unregister chan *Client
}

func NewHub(store *storage.Store, svc *delivery.Service, reg *presence.Registry, typingIdle time.Duration) *Hub {
	h := &Hub{
		store:      store,
		delivery:   svc,
		presence:   reg,
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
	h.typing = typing.NewCoordinator(typingIdle, h.pushTyping)
	return h
}

// Run serializes join/leave handling. Must run in its own goroutine
// before any client connects.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if client.joined {
				continue
			}
			client.joined = true
			// Best-effort liveness touch; a storage failure must not
			// fail the join.
			_ = h.store.TouchLastSeen(context.Background(), client.UserID, time.Now().UTC())
			h.presence.Join(client.UserID, client)
			h.broadcastStatus(client.UserID, "online", nil)
		case client := <-h.unregister:
			if client.joined {
				if userID, ok := h.presence.Leave(client); ok {
					now := time.Now().UTC()
					_ = h.store.TouchLastSeen(context.Background(), userID, now)
					h.typing.CancelSender(userID)
					h.broadcastStatus(userID, "offline", &now)
				}
			}
			client.close()
		}
	}
}

// SendMessage validates and persists a message, opportunistically
// advancing it to delivered when the recipient is online. The live
// push and the status mutation travel as one payload, so the
// recipient never sees a separate sent-then-delivered pair. Both
// pushes are fire-and-forget.
func (h *Hub) SendMessage(ctx context.Context, from, to, text, mediaURL string, kind model.MessageKind) (*model.Message, error) {
	msg, err := h.delivery.Create(ctx, from, to, text, mediaURL, kind)
	if err != nil {
		return nil, err
	}

	if _, online := h.presence.Lookup(to); online {
		if err := h.delivery.MarkDelivered(ctx, msg.ID); err != nil {
			log.Printf("[hub] mark delivered %s: %v", msg.ID, err)
		} else {
			msg.Status = model.StatusDelivered
		}
		h.pushTo(to, EventMessageReceived, msg)
	}

	// Echo the final persisted state to the sender's own handle.
	h.pushTo(from, EventMessageSent, msg)
	return msg, nil
}

// MarkRead transitions one message to read and notifies the sender's
// live handle if reachable.
func (h *Hub) MarkRead(ctx context.Context, messageID, actor string) (*model.Message, error) {
	msg, err := h.delivery.MarkRead(ctx, messageID, actor)
	if err != nil {
		return nil, err
	}
	if msg.ReadAt != nil {
		h.pushTo(msg.FromUserID, EventMessageReadNotif, readNotifPayload{
			MessageID: msg.ID,
			ReadAt:    *msg.ReadAt,
		})
	}
	return msg, nil
}

// MarkConversationRead bulk-reads all unread messages from partner
// and notifies the partner's live handle.
func (h *Hub) MarkConversationRead(ctx context.Context, partner, actor string) (int64, error) {
	n, at, err := h.delivery.MarkConversationRead(ctx, partner, actor)
	if err != nil {
		return 0, err
	}
	h.pushTo(partner, EventConversationRead, conversationReadNotif{UserID: actor, ReadAt: at})
	return n, nil
}

// EditMessage applies an edit and pushes the updated record to the
// counterparty.
func (h *Hub) EditMessage(ctx context.Context, messageID, actor, text string) (*model.Message, error) {
	msg, err := h.delivery.Edit(ctx, messageID, actor, text)
	if err != nil {
		return nil, err
	}
	h.pushTo(msg.ToUserID, EventMessageEdited, msg)
	return msg, nil
}

// DeleteMessage soft-deletes for the actor. Deletion emits no live
// event; the counterparty observes it on next fetch.
func (h *Hub) DeleteMessage(ctx context.Context, messageID, actor string) (*model.Message, error) {
	return h.delivery.SoftDelete(ctx, messageID, actor)
}

func (h *Hub) DeleteConversation(ctx context.Context, partner, actor string) (int64, error) {
	return h.delivery.HardDeleteConversation(ctx, partner, actor)
}

// Typing relays a debounced typing signal.
func (h *Hub) Typing(from, to string) {
	h.typing.Notify(from, to)
}

// UserStatus re-broadcasts an explicit status change from the user.
func (h *Hub) UserStatus(ctx context.Context, userID, status string) {
	now := time.Now().UTC()
	_ = h.store.TouchLastSeen(ctx, userID, now)
	h.broadcastStatus(userID, status, &now)
}

func (h *Hub) Online(userID string) bool {
	_, ok := h.presence.Lookup(userID)
	return ok
}

func (h *Hub) pushTo(userID, event string, data any) bool {
	handle, ok := h.presence.Lookup(userID)
	if !ok {
		return false
	}
	payload, err := marshalEvent(event, data)
	if err != nil {
		log.Printf("[hub] marshal %s: %v", event, err)
		return false
	}
	handle.Push(payload)
	return true
}

func (h *Hub) pushTyping(from, to string, isTyping bool) bool {
	return h.pushTo(to, EventUserTyping, typingPayload{
		FromUserID: from,
		ToUserID:   to,
		IsTyping:   isTyping,
	})
}

func (h *Hub) broadcastStatus(userID, status string, lastSeen *time.Time) {
	payload, err := marshalEvent(EventUserStatusChanged, statusChangedPayload{
		UserID:      userID,
		Status:      status,
		ActiveUsers: h.presence.Snapshot(),
		LastSeen:    lastSeen,
	})
	if err != nil {
		log.Printf("[hub] marshal status broadcast: %v", err)
		return
	}
	for _, handle := range h.presence.Handles() {
		handle.Push(payload)
	}
}
