package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/smartplate/smartplate-api/internal/model"
)

// MessageRepo reads and writes the 'messages' table.
type MessageRepo struct{ DB *sql.DB }

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{DB: db} }

// Insert stores m and fills in its id.
func (r *MessageRepo) Insert(ctx context.Context, m *model.Message) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO messages (sender_id, recipient_id, body, created_at) VALUES (?,?,?,?)",
		m.SenderID, m.RecipientID, m.Body, m.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert message")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "message id")
	}
	m.ID = uint64(id)
	return nil
}

// Conversation returns the newest page of messages between a and b, created
// strictly before `before` when given, in ascending order.
func (r *MessageRepo) Conversation(ctx context.Context, a, b string, before *time.Time, limit int) ([]model.Message, error) {
	q := "SELECT id, sender_id, recipient_id, body, created_at, read_at FROM messages " +
		"WHERE ((sender_id=? AND recipient_id=?) OR (sender_id=? AND recipient_id=?))"
	args := []any{a, b, b, a}
	if before != nil {
		q += " AND created_at < ?"
		args = append(args, before.UTC())
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query conversation")
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		var (
			m      model.Message
			readAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.CreatedAt, &readAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		m.ReadAt = timePtr(readAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate conversation")
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkRead stamps every unread message from sender to recipient.
func (r *MessageRepo) MarkRead(ctx context.Context, recipientID, senderID string, at time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE messages SET read_at=? WHERE recipient_id=? AND sender_id=? AND read_at IS NULL",
		at.UTC(), recipientID, senderID)
	if err != nil {
		return 0, errors.Wrap(err, "mark read")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "mark read rows")
}

const pairFilter = "((m.sender_id=u.id AND m.recipient_id=?) OR (m.sender_id=? AND m.recipient_id=u.id))"

// AdminThreads lists every user that exchanged at least one message with
// adminID, most recent conversation first.
func (r *MessageRepo) AdminThreads(ctx context.Context, adminID string, limit int) ([]model.Thread, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT u.id, u.name, u.email, "+
			"(SELECT m.body FROM messages m WHERE "+pairFilter+" ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_body, "+
			"(SELECT m.created_at FROM messages m WHERE "+pairFilter+" ORDER BY m.created_at DESC LIMIT 1) AS last_created_at, "+
			"(SELECT COUNT(*) FROM messages m WHERE m.sender_id=u.id AND m.recipient_id=? AND m.read_at IS NULL) AS unread_count "+
			"FROM accounts u WHERE u.role='user' AND EXISTS (SELECT 1 FROM messages m WHERE "+pairFilter+") "+
			"ORDER BY last_created_at IS NULL, last_created_at DESC LIMIT ?",
		adminID, adminID, adminID, adminID, adminID, adminID, adminID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query admin threads")
	}
	defer rows.Close()

	out := []model.Thread{}
	for rows.Next() {
		var (
			t       model.Thread
			email   string
			body    sql.NullString
			created sql.NullTime
		)
		if err := rows.Scan(&t.OtherID, &t.Name, &email, &body, &created, &t.UnreadCount); err != nil {
			return nil, errors.Wrap(err, "scan thread")
		}
		t.Email = &email
		t.LastBody = stringPtr(body)
		t.LastCreatedAt = timePtr(created)
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate threads")
}

// UserThread summarizes the conversation of userID with adminID.  It exists
// even when no message has been exchanged yet.
func (r *MessageRepo) UserThread(ctx context.Context, userID, adminID string) (model.Thread, error) {
	t := model.Thread{OtherID: adminID, Name: "Admin"}
	var (
		body    sql.NullString
		created sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+
			"(SELECT body FROM messages WHERE (sender_id=? AND recipient_id=?) OR (sender_id=? AND recipient_id=?) ORDER BY created_at DESC, id DESC LIMIT 1), "+
			"(SELECT created_at FROM messages WHERE (sender_id=? AND recipient_id=?) OR (sender_id=? AND recipient_id=?) ORDER BY created_at DESC LIMIT 1), "+
			"(SELECT COUNT(*) FROM messages WHERE sender_id=? AND recipient_id=? AND read_at IS NULL)",
		adminID, userID, userID, adminID,
		adminID, userID, userID, adminID,
		adminID, userID).Scan(&body, &created, &t.UnreadCount)
	if err != nil {
		return model.Thread{}, errors.Wrap(err, "query user thread")
	}
	t.LastBody = stringPtr(body)
	t.LastCreatedAt = timePtr(created)
	return t, nil
}
