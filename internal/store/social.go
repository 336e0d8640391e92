package store

import (
	"context"
	"errors"

	"example.com/pixsoul/internal/models"
	"github.com/lib/pq"
)

// --- Follow operations ---

// ToggleFollow removes the follow edge if it exists, otherwise inserts it.
// The returned bool is the resulting "following" state. The whole toggle runs
// in one transaction; the unique (follower_id, following_id) constraint is
// the guard against concurrent duplicate inserts.
func (s *Store) ToggleFollow(ctx context.Context, followerID, targetID int) (bool, error) {
	if followerID == targetID {
		return false, models.ErrSelfFollow
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`,
		followerID, targetID,
	)
	if err != nil {
		logg.Error("store", "Failed to delete follow edge", err)
		return false, err
	}

	if rows, _ := res.RowsAffected(); rows > 0 {
		if err := tx.Commit(); err != nil {
			return false, err
		}
		logg.Info("store", "Follow edge removed (user IDs anonymized)")
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)`,
		followerID, targetID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			// A concurrent toggle inserted the edge first; the state is "following".
			return true, nil
		}
		logg.Error("store", "Failed to insert follow edge", err)
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	logg.Info("store", "Follow edge created (user IDs anonymized)")
	return true, nil
}

// ListUsersWithStatus returns every other user annotated with whether the
// viewer follows them and whether they follow the viewer back.
func (s *Store) ListUsersWithStatus(ctx context.Context, viewerID int) ([]models.UserWithStatus, error) {
	users := []models.UserWithStatus{}
	err := s.db.SelectContext(ctx, &users, `
		SELECT
			u.id, u.username, u.profile_image,
			EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = u.id) AS is_following,
			EXISTS(SELECT 1 FROM follows WHERE follower_id = u.id AND following_id = $1) AS follows_back
		FROM users u
		WHERE u.id != $1
		ORDER BY u.username`,
		viewerID,
	)
	if err != nil {
		logg.Error("store", "Failed to list users with follow status", err)
		return nil, err
	}
	return users, nil
}

// ListFriends returns users where the follow relationship is mutual.
func (s *Store) ListFriends(ctx context.Context, viewerID int) ([]models.Friend, error) {
	friends := []models.Friend{}
	err := s.db.SelectContext(ctx, &friends, `
		SELECT u.id, u.username, u.profile_image
		FROM users u
		JOIN follows f1 ON f1.following_id = u.id AND f1.follower_id = $1
		JOIN follows f2 ON f2.follower_id = u.id AND f2.following_id = $1
		ORDER BY u.username`,
		viewerID,
	)
	if err != nil {
		logg.Error("store", "Failed to list friends", err)
		return nil, err
	}
	return friends, nil
}

// MutualFriendIDs returns the ids of the user's mutual-follow circle.
// Used by the notification worker for fan-out.
func (s *Store) MutualFriendIDs(ctx context.Context, userID int) ([]int, error) {
	ids := []int{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT f1.following_id
		FROM follows f1
		JOIN follows f2
			ON f2.follower_id = f1.following_id AND f2.following_id = f1.follower_id
		WHERE f1.follower_id = $1`,
		userID,
	)
	if err != nil {
		logg.Error("store", "Failed to query mutual friends", err)
		return nil, err
	}
	return ids, nil
}
