package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mdmrafi/vartalap/internal/model"
)

// Store is the slice of the message store the state machine needs.
type Store interface {
	UserExists(ctx context.Context, id string) (bool, error)
	InsertMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkConversationRead(ctx context.Context, partner, actor string, at time.Time) (int64, error)
	EditMessage(ctx context.Context, id, text, original string, setOriginal bool, at time.Time) error
	RecordDeletion(ctx context.Context, messageID, userID string) ([]string, bool, error)
	DeleteConversationFor(ctx context.Context, actor, partner string) (int64, error)
	ConversationPage(ctx context.Context, actor, partner string, limit, offset int) ([]*model.Message, error)
	ListConversations(ctx context.Context, actor string) ([]*model.ConversationSummary, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// Service drives a message through its sent -> delivered -> read
// lifecycle and owns edit and soft-delete rules. Status never
// regresses; every mutation is a read-modify-write on one record.
type Service struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates and persists a new message with status sent.
func (s *Service) Create(ctx context.Context, from, to, text, mediaURL string, kind model.MessageKind) (*model.Message, error) {
	if to == "" {
		return nil, fmt.Errorf("%w: recipient id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" && mediaURL == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if kind == "" {
		kind = model.KindText
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, kind)
	}

	exists, err := s.store.UserExists(ctx, to)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: recipient", ErrNotFound)
	}

	m := &model.Message{
		ID:         uuid.NewString(),
		FromUserID: from,
		ToUserID:   to,
		Text:       text,
		MediaURL:   mediaURL,
		Kind:       kind,
		Status:     model.StatusSent,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkDelivered advances sent -> delivered. Only called as a side
// effect of a successful live push at send time; delivered is
// best-effort, never mandatory.
func (s *Service) MarkDelivered(ctx context.Context, id string) error {
	return s.store.MarkDelivered(ctx, id)
}

// MarkRead transitions a message to read. Only the recipient may do
// this; marking an already read message is a no-op.
func (s *Service) MarkRead(ctx context.Context, id, actor string) (*model.Message, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.ToUserID != actor {
		return nil, ErrUnauthorized
	}
	if m.Status == model.StatusRead {
		return m, nil
	}
	at := s.now()
	if err := s.store.MarkRead(ctx, id, at); err != nil {
		return nil, err
	}
	m.Status = model.StatusRead
	m.IsRead = true
	m.ReadAt = &at
	return m, nil
}

// MarkConversationRead bulk-reads every unread message from partner
// to actor, returning the count and the read timestamp applied.
func (s *Service) MarkConversationRead(ctx context.Context, partner, actor string) (int64, time.Time, error) {
	at := s.now()
	n, err := s.store.MarkConversationRead(ctx, partner, actor, at)
	return n, at, err
}

// Edit replaces the text of a text/video message. The pre-first-edit
// text is preserved in original_text exactly once.
func (s *Service) Edit(ctx context.Context, id, actor, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is required", ErrInvalidInput)
	}
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.FromUserID != actor {
		return nil, ErrUnauthorized
	}
	if m.Kind == model.KindImage {
		return nil, fmt.Errorf("%w: cannot edit image messages", ErrInvalidInput)
	}

	at := s.now()
	firstEdit := m.EditedAt == nil
	original := m.Text
	if err := s.store.EditMessage(ctx, id, text, original, firstEdit, at); err != nil {
		return nil, err
	}
	if firstEdit {
		m.OriginalText = original
	}
	m.Text = text
	m.EditedAt = &at
	return m, nil
}

// SoftDelete hides a message from the acting party. Once both parties
// have deleted it, the message becomes a tombstone invisible to all.
func (s *Service) SoftDelete(ctx context.Context, id, actor string) (*model.Message, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != m.FromUserID && actor != m.ToUserID {
		return nil, ErrUnauthorized
	}
	deletedFor, tombstoned, err := s.store.RecordDeletion(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	m.DeletedFor = deletedFor
	m.IsDeleted = tombstoned
	return m, nil
}

// HardDeleteConversation soft-deletes, for the actor, every message
// exchanged with partner that the actor has not already deleted.
func (s *Service) HardDeleteConversation(ctx context.Context, partner, actor string) (int64, error) {
	return s.store.DeleteConversationFor(ctx, actor, partner)
}

// GetConversation returns one page of the pair's messages visible to
// actor, oldest first, plus a has-more hint for the pager.
func (s *Service) GetConversation(ctx context.Context, actor, partner string, page, pageSize int) ([]*model.Message, bool, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 30
	}
	msgs, err := s.store.ConversationPage(ctx, actor, partner, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(msgs) == pageSize
	// Fetched newest-first for pagination; callers want oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, hasMore, nil
}

func (s *Service) ListConversations(ctx context.Context, actor string) ([]*model.ConversationSummary, error) {
	return s.store.ListConversations(ctx, actor)
}

func (s *Service) UnreadCount(ctx context.Context, actor string) (int64, error) {
	return s.store.UnreadCount(ctx, actor)
}

func (s *Service) get(ctx context.Context, id string) (*model.Message, error) {
	m, err := s.store.GetMessage(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
