package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mdmrafi/vartalap/internal/model"
)

// visibleTo filters out tombstoned messages and messages the given
// user has individually deleted. Placeholders: one user id.
const visibleTo = `
	m.is_deleted = FALSE
	AND NOT EXISTS (
		SELECT 1 FROM message_deletions d
		WHERE d.message_id = m.id AND d.user_id = ?
	)`

// ConversationPage returns one page of the pair's messages visible to
// actor, newest first.
func (s *Store) ConversationPage(ctx context.Context, actor, partner string, limit, offset int) ([]*model.Message, error) {
	query := s.db.Rebind(`
		SELECT m.id, m.from_user_id, m.to_user_id, m.text, m.media_url, m.message_type,
		       m.status, m.is_read, m.read_at, m.is_deleted, m.edited_at, m.original_text, m.created_at
		FROM messages m
		WHERE ((m.from_user_id = ? AND m.to_user_id = ?) OR (m.from_user_id = ? AND m.to_user_id = ?))
		  AND ` + visibleTo + `
		ORDER BY m.created_at DESC
		LIMIT ? OFFSET ?`)
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, query, actor, partner, partner, actor, actor, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

type conversationRow struct {
	PartnerID string `db:"partner_id"`
	LastAt    int64  `db:"last_at"`
	Unread    int    `db:"unread"`
}

// ListConversations groups the user's visible messages by
// counterparty, ordered by last-message recency descending.
func (s *Store) ListConversations(ctx context.Context, actor string) ([]*model.ConversationSummary, error) {
	query := s.db.Rebind(`
		SELECT CASE WHEN m.from_user_id = ? THEN m.to_user_id ELSE m.from_user_id END AS partner_id,
		       MAX(m.created_at) AS last_at,
		       SUM(CASE WHEN m.to_user_id = ? AND m.status <> 'read' THEN 1 ELSE 0 END) AS unread
		FROM messages m
		WHERE (m.from_user_id = ? OR m.to_user_id = ?)
		  AND ` + visibleTo + `
		GROUP BY partner_id
		ORDER BY last_at DESC`)
	var rows []conversationRow
	err := s.db.SelectContext(ctx, &rows, query, actor, actor, actor, actor, actor)
	if err != nil {
		return nil, err
	}

	out := make([]*model.ConversationSummary, 0, len(rows))
	for _, r := range rows {
		last, err := s.lastMessageBetween(ctx, actor, r.PartnerID)
		if err != nil {
			return nil, err
		}
		user, err := s.GetUser(ctx, r.PartnerID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		out = append(out, &model.ConversationSummary{
			PartnerID:   r.PartnerID,
			User:        user,
			LastMessage: last,
			UnreadCount: r.Unread,
		})
	}
	return out, nil
}

func (s *Store) lastMessageBetween(ctx context.Context, actor, partner string) (*model.Message, error) {
	msgs, err := s.ConversationPage(ctx, actor, partner, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

// UnreadFromPartner counts unread messages from one partner visible
// to the actor.
func (s *Store) UnreadFromPartner(ctx context.Context, actor, partner string) (int64, error) {
	query := s.db.Rebind(`
		SELECT COUNT(1) FROM messages m
		WHERE m.from_user_id = ? AND m.to_user_id = ? AND m.status <> 'read'
		  AND ` + visibleTo)
	var n int64
	if err := s.db.GetContext(ctx, &n, query, partner, actor, actor); err != nil {
		return 0, err
	}
	return n, nil
}
