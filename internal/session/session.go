// Package session holds server-side session state and pending password-reset
// codes. Sessions are opaque uuid tokens handed to the client in a cookie and
// resolved here; the backing store applies the fixed expiries (1h sessions,
// 5m reset codes).
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"example.com/pixsoul/internal/logger"
	"example.com/pixsoul/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var logg = logger.New()

// CookieName is the cookie carrying the opaque session token.
const CookieName = "session_token"

type Manager interface {
	Create(ctx context.Context, userID int) (string, error)
	Get(ctx context.Context, token string) (int, error)
	Destroy(ctx context.Context, token string) error

	SetResetCode(ctx context.Context, email, code string) error
	GetResetCode(ctx context.Context, email string) (string, error)
	ClearResetCode(ctx context.Context, email string) error

	Close() error
}

// RedisManager keeps sessions and reset codes in Redis with TTLs.
type RedisManager struct {
	client     *redis.Client
	sessionTTL time.Duration
	otpTTL     time.Duration
}

func NewRedis(addr, password string, db int, sessionTTL, otpTTL time.Duration) *RedisManager {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisManager{
		client:     client,
		sessionTTL: sessionTTL,
		otpTTL:     otpTTL,
	}
}

// Ping verifies the Redis connection at startup.
func (m *RedisManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func sessionKey(token string) string { return "session:" + token }
func resetKey(email string) string   { return "pwreset:" + email }

// Create issues a fresh opaque token bound to the user id for the fixed
// session TTL.
func (m *RedisManager) Create(ctx context.Context, userID int) (string, error) {
	token := uuid.NewString()
	err := m.client.Set(ctx, sessionKey(token), userID, m.sessionTTL).Err()
	if err != nil {
		logg.Error("session", "Failed to store session", err)
		return "", err
	}
	return token, nil
}

// Get resolves a token to the bound user id. Unknown or expired tokens
// yield models.ErrNotFound.
func (m *RedisManager) Get(ctx context.Context, token string) (int, error) {
	val, err := m.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, models.ErrNotFound
		}
		logg.Error("session", "Failed to resolve session", err)
		return 0, err
	}
	userID, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt session value: %w", err)
	}
	return userID, nil
}

func (m *RedisManager) Destroy(ctx context.Context, token string) error {
	return m.client.Del(ctx, sessionKey(token)).Err()
}

// SetResetCode stores a single pending code per email for the OTP TTL,
// replacing any previous one.
func (m *RedisManager) SetResetCode(ctx context.Context, email, code string) error {
	err := m.client.Set(ctx, resetKey(email), code, m.otpTTL).Err()
	if err != nil {
		logg.Error("session", "Failed to store reset code", err)
	}
	return err
}

func (m *RedisManager) GetResetCode(ctx context.Context, email string) (string, error) {
	code, err := m.client.Get(ctx, resetKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", models.ErrNotFound
		}
		logg.Error("session", "Failed to fetch reset code", err)
		return "", err
	}
	return code, nil
}

func (m *RedisManager) ClearResetCode(ctx context.Context, email string) error {
	return m.client.Del(ctx, resetKey(email)).Err()
}

func (m *RedisManager) Close() error {
	return m.client.Close()
}
