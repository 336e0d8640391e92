package store

import (
	"context"
	"fmt"
	"path/filepath"

	config "example.com/pixsoul/internal/init"
	"example.com/pixsoul/internal/logger"
	"example.com/pixsoul/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var logg = logger.New()

// maxOpenConns bounds concurrent database operations.
const maxOpenConns = 10

// --- Interface ---

type StoreInterface interface {
	// Users
	CreateUser(ctx context.Context, username, email, passwordHash, profileImage string) (int, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id int) (models.User, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error

	// Relationships
	ToggleFollow(ctx context.Context, followerID, targetID int) (bool, error)
	ListUsersWithStatus(ctx context.Context, viewerID int) ([]models.UserWithStatus, error)
	ListFriends(ctx context.Context, viewerID int) ([]models.Friend, error)
	MutualFriendIDs(ctx context.Context, userID int) ([]int, error)

	// Memories
	AddMemory(ctx context.Context, m models.Memory) (int, error)
	MyMemories(ctx context.Context, userID int) ([]models.Memory, error)
	Feed(ctx context.Context, viewerID int) ([]models.FeedMemory, error)
	DeleteMemory(ctx context.Context, id, ownerID int) (string, error)
	ToggleLike(ctx context.Context, postID, userID int) (int, bool, error)
	AddComment(ctx context.Context, postID, userID int, text string) (models.CommentView, error)

	// Notifications
	AddNotification(ctx context.Context, n models.Notification) error
	Notifications(ctx context.Context, userID int) ([]models.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID int) error

	Close()
}

// --- Store Implementation ---

type Store struct {
	db *sqlx.DB
}

// New connects to PostgreSQL, runs pending migrations and returns the store.
func New() (StoreInterface, error) {
	cfg := config.Get()

	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	logg.Info("store", "Connected to PostgreSQL (DSN anonymized)")
	return &Store{db: db}, nil
}

// --- Migration runner ---

func runMigrations(cfg *config.Config) error {
	migrationsPath := filepath.Join("./migrations/postgres")
	sourceURL := fmt.Sprintf("file://%s", migrationsPath)

	m, err := migrate.New(sourceURL, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

// Close gracefully closes the database pool.
func (s *Store) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logg.Error("store", "Error closing database pool", err)
			return
		}
		logg.Info("store", "Database pool closed")
	}
}
