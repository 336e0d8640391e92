package store

import (
	"context"

	"example.com/pixsoul/internal/models"
)

// --- Notification operations ---

func (s *Store) AddNotification(ctx context.Context, n models.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, actor_id, memory_id, kind)
		VALUES ($1, $2, $3, $4)`,
		n.UserID, n.ActorID, n.MemoryID, n.Kind,
	)
	if err != nil {
		logg.Error("store", "Failed to insert notification", err)
		return err
	}
	return nil
}

// Notifications returns the recipient's notifications, newest first, each
// annotated with the acting user's username.
func (s *Store) Notifications(ctx context.Context, userID int) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := s.db.SelectContext(ctx, &notifications, `
		SELECT n.id, n.user_id, n.actor_id, u.username AS actor,
		       n.memory_id, n.kind, n.read, n.created_at
		FROM notifications n
		JOIN users u ON n.actor_id = u.id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC, n.id DESC`,
		userID,
	)
	if err != nil {
		logg.Error("store", "Failed to fetch notifications", err)
		return nil, err
	}
	return notifications, nil
}

func (s *Store) MarkNotificationsRead(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`,
		userID,
	)
	if err != nil {
		logg.Error("store", "Failed to mark notifications read", err)
		return err
	}
	return nil
}
