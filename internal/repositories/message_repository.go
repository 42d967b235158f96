package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"dm-relay/internal/models"
)

// MessageRepository is the durable, ordered log of direct messages. It owns
// the message lifecycle, including the monotone seen flag.
type MessageRepository interface {
	CreateMessage(ctx context.Context, senderID, receiverID, content string) (models.Message, error)
	History(ctx context.Context, userA, userB string) ([]models.Message, error)
	LastMessage(ctx context.Context, userA, userB string) (*models.Message, error)
	CountUnseen(ctx context.Context, fromID, toID string) (int, error)
	MarkSeen(ctx context.Context, fromID, toID string) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and returns the persisted row, including the
// assigned id and timestamp.
func (r *MessageRepo) CreateMessage(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, receiver_id, content) VALUES ($1, $2, $3) RETURNING id, sender_id, receiver_id, content, seen, created_at`, senderID, receiverID, content).
		Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Seen, &msg.CreatedAt)
	return msg, err
}

// History returns every message exchanged between the two users, oldest first.
// The serial id breaks ties within one timestamp so insertion order holds.
func (r *MessageRepo) History(ctx context.Context, userA, userB string) ([]models.Message, error) {
	query := `SELECT id, sender_id, receiver_id, content, seen, created_at
        FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, userA, userB)
	return msgs, err
}

// LastMessage returns the newest message of the pair, or nil when the pair
// never exchanged messages.
func (r *MessageRepo) LastMessage(ctx context.Context, userA, userB string) (*models.Message, error) {
	query := `SELECT id, sender_id, receiver_id, content, seen, created_at
        FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at DESC, id DESC
        LIMIT 1`
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, query, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CountUnseen counts messages from fromID to toID that toID has not seen yet.
func (r *MessageRepo) CountUnseen(ctx context.Context, fromID, toID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE sender_id=$1 AND receiver_id=$2 AND seen = FALSE`, fromID, toID)
	return count, err
}

// MarkSeen flips every unseen message from fromID to toID in a single update,
// so a concurrent CountUnseen never observes a half-applied batch. Returns the
// number of rows changed; a repeat call returns 0.
func (r *MessageRepo) MarkSeen(ctx context.Context, fromID, toID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE WHERE sender_id=$1 AND receiver_id=$2 AND seen = FALSE`, fromID, toID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
