package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"example.com/pixsoul/internal/models"
	"example.com/pixsoul/internal/store"
	"github.com/segmentio/kafka-go"
)

// TestWorker_GracefulShutdown ensures that the worker:
// 1. Processes upload events from Kafka.
// 2. Writes notifications for the uploader's mutual friends.
// 3. Shuts down gracefully when the context is canceled.
func TestWorker_GracefulShutdown(t *testing.T) {
	mockStore := store.NewMock()

	ids := seedUsers(t, mockStore, "uploader", "friend")
	uploaderID, friendID := ids[0], ids[1]

	follow(t, mockStore, uploaderID, friendID)
	follow(t, mockStore, friendID, uploaderID)

	evt := models.UploadEvent{
		MemoryID: 100,
		UserID:   uploaderID,
		Emotion:  "happy",
		Created:  time.Now(),
	}
	data, _ := json.Marshal(evt)

	// Mock Kafka reader with a single message
	mockKafka := &MockKafkaReader{
		Messages: []kafka.Message{{Value: data}},
	}

	// Context with timeout to simulate graceful shutdown signal
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})

	// Initialize worker with mock store and Kafka reader
	worker := &Worker{
		store:  mockStore,
		reader: mockKafka,
	}

	// Run the worker in a separate goroutine
	go func() {
		worker.Run(ctx) // Worker processes messages until ctx.Done()
		close(done)
	}()

	// Wait for worker to finish or timeout
	select {
	case <-done:
		// Verify that the mutual friend got notified
		notifications, _ := mockStore.Notifications(context.Background(), friendID)
		if len(notifications) != 1 || notifications[0].MemoryID != 100 {
			t.Fatalf("notifications not written correctly: %+v", notifications)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("worker did not shutdown gracefully in time")
	}

	if err := worker.Close(); err != nil {
		t.Fatalf("worker Close() error: %v", err)
	}

	if !mockKafka.Closed {
		t.Fatal("expected Kafka reader to be closed")
	}
}

// MockKafkaReader simulates a Kafka reader for testing purposes
type MockKafkaReader struct {
	Messages   []kafka.Message // Queue of messages to return
	ShouldFail bool            // If true, ReadMessage will fail
	Closed     bool            // Tracks whether Close() has been called
}

// ReadMessage returns the next message in the queue or simulates a failure/context cancel
func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if m.ShouldFail {
		return kafka.Message{}, ctx.Err()
	}
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	if len(m.Messages) == 0 {
		time.Sleep(5 * time.Millisecond) // simulate idle wait
		return kafka.Message{}, nil
	}

	msg := m.Messages[0]
	m.Messages = m.Messages[1:]
	return msg, nil
}

// Close marks the mock Kafka reader as closed
func (m *MockKafkaReader) Close() error {
	m.Closed = true
	return nil
}
