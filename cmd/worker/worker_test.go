package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	appkafka "example.com/pixsoul/internal/broker"
	"example.com/pixsoul/internal/models"
	"example.com/pixsoul/internal/store"
	"github.com/segmentio/kafka-go"
)

// runWorkerOnce processes a single Kafka message for testing.
func runWorkerOnce(ctx context.Context, st store.StoreInterface, kafkaReader appkafka.KafkaReader) error {
	msg, err := kafkaReader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if len(msg.Value) == 0 {
		return nil
	}

	var evt models.UploadEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return err
	}

	friendIDs, err := st.MutualFriendIDs(ctx, evt.UserID)
	if err != nil {
		return err
	}

	for _, uid := range friendIDs {
		n := models.Notification{
			UserID:   uid,
			ActorID:  evt.UserID,
			MemoryID: evt.MemoryID,
			Kind:     models.NotificationMemoryUploaded,
		}
		if err := st.AddNotification(ctx, n); err != nil {
			return err
		}
	}

	return nil
}

// seedUsers creates n users and returns their ids in creation order.
func seedUsers(t *testing.T, mockStore *store.MockStore, names ...string) []int {
	t.Helper()
	ctx := context.Background()
	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, err := mockStore.CreateUser(ctx, name, name+"@example.com", "hash", "default.png")
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func follow(t *testing.T, mockStore *store.MockStore, from, to int) {
	t.Helper()
	if _, err := mockStore.ToggleFollow(context.Background(), from, to); err != nil {
		t.Fatalf("ToggleFollow failed: %v", err)
	}
}

// ---------- Positive test ----------

func TestWorker_FanOutToMutualFriends(t *testing.T) {
	mockStore := store.NewMock()

	ids := seedUsers(t, mockStore, "uploader", "friend", "onlooker")
	uploaderID, friendID, onlookerID := ids[0], ids[1], ids[2]

	// uploader and friend follow each other; onlooker only follows uploader
	follow(t, mockStore, uploaderID, friendID)
	follow(t, mockStore, friendID, uploaderID)
	follow(t, mockStore, onlookerID, uploaderID)

	evt := models.UploadEvent{
		MemoryID: 100,
		UserID:   uploaderID,
		Emotion:  "happy",
		Created:  time.Now(),
	}
	data, _ := json.Marshal(evt)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: data}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, mockStore, mockKafka); err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	// the mutual friend got notified
	notifications, _ := mockStore.Notifications(ctx, friendID)
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification for mutual friend, got %d", len(notifications))
	}
	n := notifications[0]
	if n.ActorID != uploaderID || n.MemoryID != 100 || n.Kind != models.NotificationMemoryUploaded {
		t.Fatalf("unexpected notification: %+v", n)
	}

	// the one-way follower got nothing
	notifications, _ = mockStore.Notifications(ctx, onlookerID)
	if len(notifications) != 0 {
		t.Fatalf("expected no notifications for one-way follower, got %d", len(notifications))
	}
}

// ---------- Negative tests ----------

// Simulate Kafka read error
func TestWorker_KafkaReadError(t *testing.T) {
	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafkaFail{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err == nil {
		t.Fatalf("expected error from Kafka read")
	}
}

// Simulate invalid event JSON
func TestWorker_InvalidEventJSON(t *testing.T) {
	mockStore := store.NewMock()

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{
			{Value: []byte("{invalid-json}")},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: nil}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err != nil {
		t.Fatalf("expected no error for empty Kafka message, got: %v", err)
	}
}

// Simulate store failure when resolving the uploader's friends
func TestWorker_StoreMutualFriendsFail(t *testing.T) {
	mockStore := &store.MockStoreFail{}

	evt := models.UploadEvent{
		MemoryID: 200,
		UserID:   1,
		Created:  time.Now(),
	}
	data, _ := json.Marshal(evt)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: data}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err == nil {
		t.Fatalf("expected error from store MutualFriendIDs, got nil")
	}
}

// End-to-end through Worker.Run with a real goroutine pool
func TestWorker_RunProcessesEvent(t *testing.T) {
	mockStore := store.NewMock()

	ids := seedUsers(t, mockStore, "uploader", "friend")
	follow(t, mockStore, ids[0], ids[1])
	follow(t, mockStore, ids[1], ids[0])

	evt := models.UploadEvent{MemoryID: 1, UserID: ids[0], Created: time.Now()}
	data, _ := json.Marshal(evt)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: data}},
	}

	w := New(mockStore, mockKafka, 2, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Poll until the notification lands, then stop the worker
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		notifications, _ := mockStore.Notifications(context.Background(), ids[1])
		if len(notifications) == 1 {
			cancel()
			<-done
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
	t.Fatalf("expected notification for mutual friend")
}
