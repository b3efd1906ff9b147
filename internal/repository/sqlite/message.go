package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
	"github.com/rs/xid"
)

var _ repository.MessageRepository = (*DB)(nil)

func (db *DB) CreateMessage(ctx context.Context, msg *model.Message) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, god_id, message, response, scheduled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.UserID,
		msg.GodID,
		msg.Message,
		msg.Response,
		msg.Scheduled,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting message for god %s: %w", msg.GodID, err)
	}
	return nil
}

// ListConversation returns the exchanges between one user and one god,
// oldest first. Exchanges with an empty response are skipped — they are
// half-written rows from a generation that failed mid-request.
func (db *DB) ListConversation(ctx context.Context, userID, godID string) ([]model.Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, god_id, message, response, scheduled, created_at
		 FROM messages
		 WHERE user_id = ? AND god_id = ? AND response != ''
		 ORDER BY created_at ASC`,
		userID, godID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing conversation: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.GodID, &m.Message, &m.Response,
			&m.Scheduled, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
