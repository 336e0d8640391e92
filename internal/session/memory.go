package session

import (
	"context"
	"errors"
	"time"

	"example.com/pixsoul/internal/models"
	"github.com/google/uuid"
)

type entry struct {
	userID    int
	expiresAt time.Time
}

type resetEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryManager simulates the Redis manager for testing, honoring the same
// TTL semantics. Now can be overridden to step time in expiry tests.
type MemoryManager struct {
	sessions   map[string]entry
	resetCodes map[string]resetEntry
	sessionTTL time.Duration
	otpTTL     time.Duration
	Now        func() time.Time
}

func NewMemory(sessionTTL, otpTTL time.Duration) *MemoryManager {
	return &MemoryManager{
		sessions:   make(map[string]entry),
		resetCodes: make(map[string]resetEntry),
		sessionTTL: sessionTTL,
		otpTTL:     otpTTL,
		Now:        time.Now,
	}
}

func (m *MemoryManager) Create(_ context.Context, userID int) (string, error) {
	token := uuid.NewString()
	m.sessions[token] = entry{userID: userID, expiresAt: m.Now().Add(m.sessionTTL)}
	return token, nil
}

func (m *MemoryManager) Get(_ context.Context, token string) (int, error) {
	e, ok := m.sessions[token]
	if !ok || m.Now().After(e.expiresAt) {
		delete(m.sessions, token)
		return 0, models.ErrNotFound
	}
	return e.userID, nil
}

func (m *MemoryManager) Destroy(_ context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func (m *MemoryManager) SetResetCode(_ context.Context, email, code string) error {
	m.resetCodes[email] = resetEntry{code: code, expiresAt: m.Now().Add(m.otpTTL)}
	return nil
}

func (m *MemoryManager) GetResetCode(_ context.Context, email string) (string, error) {
	e, ok := m.resetCodes[email]
	if !ok || m.Now().After(e.expiresAt) {
		delete(m.resetCodes, email)
		return "", models.ErrNotFound
	}
	return e.code, nil
}

func (m *MemoryManager) ClearResetCode(_ context.Context, email string) error {
	delete(m.resetCodes, email)
	return nil
}

func (m *MemoryManager) Close() error { return nil }

// ---------------------------------------------
// ManagerFail always returns errors for negative tests
type ManagerFail struct{}

var errManagerFail = errors.New("mock session manager failed")

func (ManagerFail) Create(context.Context, int) (string, error) {
	return "", errManagerFail
}

func (ManagerFail) Get(context.Context, string) (int, error) {
	return 0, errManagerFail
}

func (ManagerFail) Destroy(context.Context, string) error {
	return errManagerFail
}

func (ManagerFail) SetResetCode(context.Context, string, string) error {
	return errManagerFail
}

func (ManagerFail) GetResetCode(context.Context, string) (string, error) {
	return "", errManagerFail
}

func (ManagerFail) ClearResetCode(context.Context, string) error {
	return errManagerFail
}

func (ManagerFail) Close() error { return nil }
