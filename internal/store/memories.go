package store

import (
	"context"
	"database/sql"
	"errors"

	"example.com/pixsoul/internal/models"
	"github.com/jmoiron/sqlx"
)

// --- Memory operations ---

func (s *Store) AddMemory(ctx context.Context, m models.Memory) (int, error) {
	var id int
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO memories (user_id, caption, emotion, image_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		m.UserID, m.Caption, m.Emotion, m.ImagePath,
	).Scan(&id)
	if err != nil {
		logg.Error("store", "Failed to add memory", err)
		return 0, err
	}

	logg.Info("store", "Memory added (caption anonymized)")
	return id, nil
}

// MyMemories returns all posts owned by userID, newest first.
func (s *Store) MyMemories(ctx context.Context, userID int) ([]models.Memory, error) {
	memories := []models.Memory{}
	err := s.db.SelectContext(ctx, &memories, `
		SELECT id, user_id, caption, emotion, image_path, created_at
		FROM memories
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		logg.Error("store", "Failed to fetch own memories", err)
		return nil, err
	}
	return memories, nil
}

// Feed returns the posts visible to the viewer: their own plus those of the
// mutual-follow circle, newest first. Each post carries the like count, the
// comment count and the viewer's liked flag; the ordered comment lists are
// fetched in a second query scoped to the returned posts and grouped here.
func (s *Store) Feed(ctx context.Context, viewerID int) ([]models.FeedMemory, error) {
	feed := []models.FeedMemory{}
	err := s.db.SelectContext(ctx, &feed, `
		SELECT
			m.id, m.user_id, m.caption, m.emotion, m.image_path, m.created_at,
			u.username, u.profile_image,
			(SELECT COUNT(*) FROM likes WHERE post_id = m.id) AS likes,
			(SELECT COUNT(*) FROM comments WHERE post_id = m.id) AS comment_count,
			EXISTS(SELECT 1 FROM likes WHERE post_id = m.id AND user_id = $1) AS liked
		FROM memories m
		JOIN users u ON m.user_id = u.id
		WHERE
			m.user_id = $1
			OR m.user_id IN (
				SELECT f1.following_id
				FROM follows f1
				JOIN follows f2
					ON f1.following_id = f2.follower_id
				WHERE f1.follower_id = $1 AND f2.following_id = $1
			)
		ORDER BY m.created_at DESC, m.id DESC`,
		viewerID,
	)
	if err != nil {
		logg.Error("store", "Failed to fetch feed", err)
		return nil, err
	}
	if len(feed) == 0 {
		return feed, nil
	}

	postIDs := make([]int, 0, len(feed))
	for _, m := range feed {
		postIDs = append(postIDs, m.ID)
	}

	query, args, err := sqlx.In(`
		SELECT c.post_id, u.username AS commenter, c.text
		FROM comments c
		JOIN users u ON c.user_id = u.id
		WHERE c.post_id IN (?)
		ORDER BY c.id`,
		postIDs,
	)
	if err != nil {
		return nil, err
	}

	comments := []models.CommentView{}
	if err := s.db.SelectContext(ctx, &comments, s.db.Rebind(query), args...); err != nil {
		logg.Error("store", "Failed to fetch feed comments", err)
		return nil, err
	}

	byPost := make(map[int][]models.CommentView, len(feed))
	for _, c := range comments {
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}
	for i := range feed {
		feed[i].Comments = byPost[feed[i].ID]
		if feed[i].Comments == nil {
			feed[i].Comments = []models.CommentView{}
		}
	}

	return feed, nil
}

// DeleteMemory removes the post only when ownerID matches; it returns the
// stored image path so the caller can clean up the blob. A non-owner or
// missing post yields models.ErrNotFound.
func (s *Store) DeleteMemory(ctx context.Context, id, ownerID int) (string, error) {
	var imagePath string
	err := s.db.QueryRowxContext(ctx, `
		DELETE FROM memories
		WHERE id = $1 AND user_id = $2
		RETURNING image_path`,
		id, ownerID,
	).Scan(&imagePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.ErrNotFound
		}
		logg.Error("store", "Failed to delete memory", err)
		return "", err
	}

	logg.Info("store", "Memory deleted (IDs anonymized)")
	return imagePath, nil
}

// --- Like operations ---

// ToggleLike inserts the like if absent, deletes it otherwise, and returns
// the new total plus the viewer's resulting liked state. The toggle and the
// recount run in one transaction; the primary key on (post_id, user_id) is
// the guard against concurrent duplicate likes.
func (s *Store) ToggleLike(ctx context.Context, postID, userID int) (int, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO likes (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING`,
		postID, userID,
	)
	if err != nil {
		logg.Error("store", "Failed to insert like", err)
		return 0, false, err
	}

	inserted, _ := res.RowsAffected()
	liked := inserted > 0
	if !liked {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM likes WHERE post_id = $1 AND user_id = $2`,
			postID, userID,
		); err != nil {
			logg.Error("store", "Failed to delete like", err)
			return 0, false, err
		}
	}

	var count int
	if err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID,
	); err != nil {
		logg.Error("store", "Failed to count likes", err)
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return count, liked, nil
}

// --- Comment operations ---

// AddComment appends a comment and returns the commenter's username with the
// text for client echo.
func (s *Store) AddComment(ctx context.Context, postID, userID int, text string) (models.CommentView, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (post_id, user_id, text) VALUES ($1, $2, $3)`,
		postID, userID, text,
	)
	if err != nil {
		logg.Error("store", "Failed to insert comment", err)
		return models.CommentView{}, err
	}

	var username string
	if err := s.db.GetContext(ctx, &username,
		`SELECT username FROM users WHERE id = $1`, userID,
	); err != nil {
		logg.Error("store", "Failed to fetch commenter username", err)
		return models.CommentView{}, err
	}

	return models.CommentView{PostID: postID, User: username, Text: text}, nil
}
