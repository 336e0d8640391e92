package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/pixsoul/internal/models"
)

type followKey struct{ follower, following int }
type likeKey struct{ post, user int }

// MockStore simulates the PostgreSQL store in memory for testing. A single
// mutex guards all maps so the worker's concurrent fan-out stays race-free.
type MockStore struct {
	mu            sync.Mutex
	Users         map[int]models.User
	Follows       map[followKey]bool
	Memories      map[int]models.Memory
	Likes         map[likeKey]bool
	Comments      []models.Comment
	Notifs        []models.Notification
	nextUserID    int
	nextMemoryID  int
	nextCommentID int
	nextNotifID   int
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:    make(map[int]models.User),
		Follows:  make(map[followKey]bool),
		Memories: make(map[int]models.Memory),
		Likes:    make(map[likeKey]bool),
	}
}

func (m *MockStore) Close() {}

// --- Users ---

func (m *MockStore) CreateUser(_ context.Context, username, email, passwordHash, profileImage string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if u.Username == username || u.Email == email {
			return 0, models.ErrConflict
		}
	}
	m.nextUserID++
	m.Users[m.nextUserID] = models.User{
		ID:           m.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		ProfileImage: profileImage,
		CreatedAt:    time.Now(),
	}
	return m.nextUserID, nil
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, models.ErrNotFound
}

func (m *MockStore) GetUserByID(_ context.Context, id int) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (m *MockStore) UpdatePassword(_ context.Context, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.Users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			m.Users[id] = u
			return nil
		}
	}
	return models.ErrNotFound
}

// --- Relationships ---

func (m *MockStore) ToggleFollow(_ context.Context, followerID, targetID int) (bool, error) {
	if followerID == targetID {
		return false, models.ErrSelfFollow
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := followKey{followerID, targetID}
	if m.Follows[key] {
		delete(m.Follows, key)
		return false, nil
	}
	m.Follows[key] = true
	return true, nil
}

func (m *MockStore) ListUsersWithStatus(_ context.Context, viewerID int) ([]models.UserWithStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := []models.UserWithStatus{}
	for id, u := range m.Users {
		if id == viewerID {
			continue
		}
		users = append(users, models.UserWithStatus{
			ID:           id,
			Username:     u.Username,
			ProfileImage: u.ProfileImage,
			IsFollowing:  m.Follows[followKey{viewerID, id}],
			FollowsBack:  m.Follows[followKey{id, viewerID}],
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// mutual reports a follow edge in both directions. Callers hold the mutex.
func (m *MockStore) mutual(a, b int) bool {
	return m.Follows[followKey{a, b}] && m.Follows[followKey{b, a}]
}

func (m *MockStore) ListFriends(_ context.Context, viewerID int) ([]models.Friend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	friends := []models.Friend{}
	for id, u := range m.Users {
		if id != viewerID && m.mutual(viewerID, id) {
			friends = append(friends, models.Friend{ID: id, Username: u.Username, ProfileImage: u.ProfileImage})
		}
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].Username < friends[j].Username })
	return friends, nil
}

func (m *MockStore) MutualFriendIDs(_ context.Context, userID int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := []int{}
	for id := range m.Users {
		if id != userID && m.mutual(userID, id) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// --- Memories ---

func (m *MockStore) AddMemory(_ context.Context, mem models.Memory) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMemoryID++
	mem.ID = m.nextMemoryID
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	m.Memories[mem.ID] = mem
	return mem.ID, nil
}

func (m *MockStore) MyMemories(_ context.Context, userID int) ([]models.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	memories := []models.Memory{}
	for _, mem := range m.Memories {
		if mem.UserID == userID {
			memories = append(memories, mem)
		}
	}
	sortMemoriesDesc(memories)
	return memories, nil
}

func (m *MockStore) Feed(_ context.Context, viewerID int) ([]models.FeedMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	visible := []models.Memory{}
	for _, mem := range m.Memories {
		if mem.UserID == viewerID || m.mutual(viewerID, mem.UserID) {
			visible = append(visible, mem)
		}
	}
	sortMemoriesDesc(visible)

	feed := make([]models.FeedMemory, 0, len(visible))
	for _, mem := range visible {
		owner := m.Users[mem.UserID]
		item := models.FeedMemory{
			Memory:       mem,
			Username:     owner.Username,
			ProfileImage: owner.ProfileImage,
			Liked:        m.Likes[likeKey{mem.ID, viewerID}],
			Comments:     []models.CommentView{},
		}
		for key := range m.Likes {
			if key.post == mem.ID {
				item.Likes++
			}
		}
		for _, c := range m.Comments {
			if c.PostID == mem.ID {
				item.Comments = append(item.Comments, models.CommentView{
					PostID: c.PostID,
					User:   m.Users[c.UserID].Username,
					Text:   c.Text,
				})
			}
		}
		item.CommentCount = len(item.Comments)
		feed = append(feed, item)
	}
	return feed, nil
}

func (m *MockStore) DeleteMemory(_ context.Context, id, ownerID int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.Memories[id]
	if !ok || mem.UserID != ownerID {
		return "", models.ErrNotFound
	}
	delete(m.Memories, id)
	return mem.ImagePath, nil
}

func (m *MockStore) ToggleLike(_ context.Context, postID, userID int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := likeKey{postID, userID}
	liked := !m.Likes[key]
	if liked {
		m.Likes[key] = true
	} else {
		delete(m.Likes, key)
	}

	count := 0
	for k := range m.Likes {
		if k.post == postID {
			count++
		}
	}
	return count, liked, nil
}

func (m *MockStore) AddComment(_ context.Context, postID, userID int, text string) (models.CommentView, error) {
	if strings.TrimSpace(text) == "" {
		return models.CommentView{}, models.ErrEmptyComment
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextCommentID++
	m.Comments = append(m.Comments, models.Comment{
		ID:        m.nextCommentID,
		PostID:    postID,
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
	})
	return models.CommentView{PostID: postID, User: m.Users[userID].Username, Text: text}, nil
}

// --- Notifications ---

func (m *MockStore) AddNotification(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextNotifID++
	n.ID = m.nextNotifID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.Actor = m.Users[n.ActorID].Username
	m.Notifs = append(m.Notifs, n)
	return nil
}

func (m *MockStore) Notifications(_ context.Context, userID int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	notifications := []models.Notification{}
	for i := len(m.Notifs) - 1; i >= 0; i-- {
		if m.Notifs[i].UserID == userID {
			notifications = append(notifications, m.Notifs[i])
		}
	}
	return notifications, nil
}

func (m *MockStore) MarkNotificationsRead(_ context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Notifs {
		if m.Notifs[i].UserID == userID {
			m.Notifs[i].Read = true
		}
	}
	return nil
}

func sortMemoriesDesc(memories []models.Memory) {
	sort.Slice(memories, func(i, j int) bool {
		if memories[i].CreatedAt.Equal(memories[j].CreatedAt) {
			return memories[i].ID > memories[j].ID
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(context.Context, string, string, string, string) (int, error) {
	return 0, errors.New("mock store create user failed")
}

func (m *MockStoreFail) GetUserByEmail(context.Context, string) (models.User, error) {
	return models.User{}, errors.New("mock store get user by email failed")
}

func (m *MockStoreFail) GetUserByID(context.Context, int) (models.User, error) {
	return models.User{}, errors.New("mock store get user by id failed")
}

func (m *MockStoreFail) UpdatePassword(context.Context, string, string) error {
	return errors.New("mock store update password failed")
}

func (m *MockStoreFail) ToggleFollow(context.Context, int, int) (bool, error) {
	return false, errors.New("mock store toggle follow failed")
}

func (m *MockStoreFail) ListUsersWithStatus(context.Context, int) ([]models.UserWithStatus, error) {
	return nil, errors.New("mock store list users failed")
}

func (m *MockStoreFail) ListFriends(context.Context, int) ([]models.Friend, error) {
	return nil, errors.New("mock store list friends failed")
}

func (m *MockStoreFail) MutualFriendIDs(context.Context, int) ([]int, error) {
	return nil, errors.New("mock store mutual friends failed")
}

func (m *MockStoreFail) AddMemory(context.Context, models.Memory) (int, error) {
	return 0, errors.New("mock store add memory failed")
}

func (m *MockStoreFail) MyMemories(context.Context, int) ([]models.Memory, error) {
	return nil, errors.New("mock store my memories failed")
}

func (m *MockStoreFail) Feed(context.Context, int) ([]models.FeedMemory, error) {
	return nil, errors.New("mock store feed failed")
}

func (m *MockStoreFail) DeleteMemory(context.Context, int, int) (string, error) {
	return "", errors.New("mock store delete memory failed")
}

func (m *MockStoreFail) ToggleLike(context.Context, int, int) (int, bool, error) {
	return 0, false, errors.New("mock store toggle like failed")
}

func (m *MockStoreFail) AddComment(context.Context, int, int, string) (models.CommentView, error) {
	return models.CommentView{}, errors.New("mock store add comment failed")
}

func (m *MockStoreFail) AddNotification(context.Context, models.Notification) error {
	return errors.New("mock store add notification failed")
}

func (m *MockStoreFail) Notifications(context.Context, int) ([]models.Notification, error) {
	return nil, errors.New("mock store notifications failed")
}

func (m *MockStoreFail) MarkNotificationsRead(context.Context, int) error {
	return errors.New("mock store mark notifications read failed")
}
