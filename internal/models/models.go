package models

import "time"

type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ProfileImage string    `db:"profile_image" json:"profile_image"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Profile is the subset of User returned to the client on /api/user.
type Profile struct {
	Username     string `db:"username" json:"username"`
	Email        string `db:"email" json:"email"`
	ProfileImage string `db:"profile_image" json:"profile_image"`
}

// UserWithStatus annotates another user with the viewer's relationship to them.
type UserWithStatus struct {
	ID           int    `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	ProfileImage string `db:"profile_image" json:"profile_image"`
	IsFollowing  bool   `db:"is_following" json:"is_following"`
	FollowsBack  bool   `db:"follows_back" json:"follows_back"`
}

// Friend is a user with whom a mutual follow holds.
type Friend struct {
	ID           int    `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	ProfileImage string `db:"profile_image" json:"profile_image"`
}

// Memory is an uploaded post: an image with a caption and an emotion tag.
type Memory struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Caption   string    `db:"caption" json:"caption"`
	Emotion   string    `db:"emotion" json:"emotion"`
	ImagePath string    `db:"image_path" json:"image_path"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FeedMemory is a Memory annotated for a particular viewer: aggregate counts,
// the viewer's liked flag and the full ordered comment list.
type FeedMemory struct {
	Memory
	Username     string        `db:"username" json:"username"`
	ProfileImage string        `db:"profile_image" json:"profile_image"`
	Likes        int           `db:"likes" json:"likes"`
	CommentCount int           `db:"comment_count" json:"comment_count"`
	Liked        bool          `db:"liked" json:"liked"`
	Comments     []CommentView `json:"comments"`
}

type Comment struct {
	ID        int       `db:"id" json:"id"`
	PostID    int       `db:"post_id" json:"post_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CommentView is a comment as rendered in the feed: commenter username + text.
type CommentView struct {
	PostID int    `db:"post_id" json:"-"`
	User   string `db:"commenter" json:"user"`
	Text   string `db:"text" json:"text"`
}

type Notification struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	ActorID   int       `db:"actor_id" json:"actor_id"`
	Actor     string    `db:"actor" json:"actor"`
	MemoryID  int       `db:"memory_id" json:"memory_id"`
	Kind      string    `db:"kind" json:"kind"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const NotificationMemoryUploaded = "memory_uploaded"

// UploadEvent is the broker payload published after a memory upload and
// consumed by the notification worker.
type UploadEvent struct {
	MemoryID int       `json:"memory_id"`
	UserID   int       `json:"user_id"`
	Emotion  string    `json:"emotion"`
	Created  time.Time `json:"created"`
}
