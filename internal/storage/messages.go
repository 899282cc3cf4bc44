package storage

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mdmrafi/vartalap/internal/model"
)

type messageRow struct {
	ID           string        `db:"id"`
	FromUserID   string        `db:"from_user_id"`
	ToUserID     string        `db:"to_user_id"`
	Text         string        `db:"text"`
	MediaURL     string        `db:"media_url"`
	Kind         string        `db:"message_type"`
	Status       string        `db:"status"`
	IsRead       bool          `db:"is_read"`
	ReadAt       sql.NullInt64 `db:"read_at"`
	IsDeleted    bool          `db:"is_deleted"`
	EditedAt     sql.NullInt64 `db:"edited_at"`
	OriginalText string        `db:"original_text"`
	CreatedAt    int64         `db:"created_at"`
}

var messageColumns = []string{
	"id", "from_user_id", "to_user_id", "text", "media_url", "message_type",
	"status", "is_read", "read_at", "is_deleted", "edited_at", "original_text", "created_at",
}

func (r messageRow) toModel() *model.Message {
	m := &model.Message{
		ID:           r.ID,
		FromUserID:   r.FromUserID,
		ToUserID:     r.ToUserID,
		Text:         r.Text,
		MediaURL:     r.MediaURL,
		Kind:         model.MessageKind(r.Kind),
		Status:       model.DeliveryStatus(r.Status),
		IsRead:       r.IsRead,
		IsDeleted:    r.IsDeleted,
		OriginalText: r.OriginalText,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.ReadAt.Valid {
		t := time.UnixMilli(r.ReadAt.Int64).UTC()
		m.ReadAt = &t
	}
	if r.EditedAt.Valid {
		t := time.UnixMilli(r.EditedAt.Int64).UTC()
		m.EditedAt = &t
	}
	return m
}

func (s *Store) InsertMessage(ctx context.Context, m *model.Message) error {
	query, args, err := s.sb.Insert("messages").
		Columns("id", "from_user_id", "to_user_id", "text", "media_url",
			"message_type", "status", "is_read", "created_at").
		Values(m.ID, m.FromUserID, m.ToUserID, m.Text, m.MediaURL,
			string(m.Kind), string(m.Status), m.IsRead, m.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	query, args, err := s.sb.Select(messageColumns...).
		From("messages").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var row messageRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}
	m := row.toModel()
	deletedFor, err := s.deletionsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	m.DeletedFor = deletedFor
	return m, nil
}

func (s *Store) deletionsFor(ctx context.Context, messageID string) ([]string, error) {
	query, args, err := s.sb.Select("user_id").
		From("message_deletions").Where(sq.Eq{"message_id": messageID}).
		OrderBy("user_id").ToSql()
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	query, args, err := s.sb.Update("messages").
		Set("status", string(model.StatusDelivered)).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": string(model.StatusSent)}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) MarkRead(ctx context.Context, id string, at time.Time) error {
	query, args, err := s.sb.Update("messages").
		Set("status", string(model.StatusRead)).
		Set("is_read", true).
		Set("read_at", at.UnixMilli()).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": string(model.StatusRead)}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// MarkConversationRead transitions every unread message from partner
// to actor and returns the number of rows mutated. The operation is
// idempotent, so partial progress on failure is re-runnable.
func (s *Store) MarkConversationRead(ctx context.Context, partner, actor string, at time.Time) (int64, error) {
	query, args, err := s.sb.Update("messages").
		Set("status", string(model.StatusRead)).
		Set("is_read", true).
		Set("read_at", at.UnixMilli()).
		Where(sq.Eq{"from_user_id": partner, "to_user_id": actor}).
		Where(sq.NotEq{"status": string(model.StatusRead)}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EditMessage replaces the text and stamps edited_at. original is
// written only when setOriginal is true (first edit).
func (s *Store) EditMessage(ctx context.Context, id, text, original string, setOriginal bool, at time.Time) error {
	b := s.sb.Update("messages").
		Set("text", text).
		Set("edited_at", at.UnixMilli()).
		Where(sq.Eq{"id": id})
	if setOriginal {
		b = b.Set("original_text", original)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// RecordDeletion adds actor to the message's deleted_for set
// (idempotent) and promotes the message to a tombstone once both
// parties have deleted it. Returns the resulting deleted_for set.
func (s *Store) RecordDeletion(ctx context.Context, messageID, userID string) ([]string, bool, error) {
	query, args, err := s.sb.Insert("message_deletions").
		Columns("message_id", "user_id").
		Values(messageID, userID).
		Suffix("ON CONFLICT (message_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, false, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, false, err
	}

	deletedFor, err := s.deletionsFor(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	tombstoned := len(deletedFor) >= 2
	if tombstoned {
		query, args, err := s.sb.Update("messages").
			Set("is_deleted", true).
			Where(sq.Eq{"id": messageID}).ToSql()
		if err != nil {
			return nil, false, err
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, false, err
		}
	}
	return deletedFor, tombstoned, nil
}

// DeleteConversationFor soft-deletes every message between actor and
// partner that actor has not already deleted. Returns the number of
// newly deleted messages.
func (s *Store) DeleteConversationFor(ctx context.Context, actor, partner string) (int64, error) {
	query := s.db.Rebind(`
		INSERT INTO message_deletions (message_id, user_id)
		SELECT m.id, ? FROM messages m
		WHERE ((m.from_user_id = ? AND m.to_user_id = ?) OR (m.from_user_id = ? AND m.to_user_id = ?))
		  AND NOT EXISTS (
		    SELECT 1 FROM message_deletions d
		    WHERE d.message_id = m.id AND d.user_id = ?
		  )`)
	res, err := s.db.ExecContext(ctx, query, actor, actor, partner, partner, actor, actor)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	// Promote pair messages deleted by both sides to tombstones.
	promote := s.db.Rebind(`
		UPDATE messages SET is_deleted = TRUE
		WHERE ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))
		  AND is_deleted = FALSE
		  AND (SELECT COUNT(1) FROM message_deletions d WHERE d.message_id = messages.id) >= 2`)
	if _, err := s.db.ExecContext(ctx, promote, actor, partner, partner, actor); err != nil {
		return 0, err
	}
	return count, nil
}

// UnreadCount counts every unread message addressed to the user.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	query, args, err := s.sb.Select("COUNT(1)").From("messages").
		Where(sq.Eq{"to_user_id": userID, "is_read": false}).ToSql()
	if err != nil {
		return 0, err
	}
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}
