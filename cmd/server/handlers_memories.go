package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	appkafka "example.com/pixsoul/internal/broker"
	"example.com/pixsoul/internal/middleware"
	"example.com/pixsoul/internal/models"
	"example.com/pixsoul/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
)

// myMemoriesHandler returns the viewer's own posts, newest first.
func (s *Server) myMemoriesHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	memories, err := s.store.MyMemories(c.Request.Context(), userID)
	if err != nil {
		logg.Error("http/memories", "Failed to fetch own memories", err)
		fail(c, http.StatusInternalServerError, "Error fetching memories")
		return
	}

	c.JSON(http.StatusOK, memories)
}

// feedHandler returns the viewer's feed: own posts plus those of the
// mutual-follow circle, annotated with counts, liked flags and comments.
func (s *Server) feedHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	feed, err := s.store.Feed(c.Request.Context(), userID)
	if err != nil {
		logg.Error("http/memories", "Failed to fetch feed", err)
		fail(c, http.StatusInternalServerError, "Error fetching memories")
		return
	}

	c.JSON(http.StatusOK, feed)
}

// deleteMemoryHandler removes a post the viewer owns; the stored image blob
// is cleaned up best-effort afterwards. A post the viewer does not own is
// indistinguishable from a missing one.
func (s *Server) deleteMemoryHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	memoryID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid memory id")
		return
	}

	imagePath, err := s.store.DeleteMemory(c.Request.Context(), memoryID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "Memory not found")
			return
		}
		logg.Error("http/memories", "Failed to delete memory", err)
		fail(c, http.StatusInternalServerError, "Error deleting memory")
		return
	}

	if err := s.uploads.Remove(c.Request.Context(), imagePath); err != nil {
		logg.Error("http/memories", "Failed to remove memory image", err)
	}

	c.Status(http.StatusOK)
}

// toggleLikeHandler flips the viewer's like on :id and returns the new total
// with the resulting liked state.
func (s *Server) toggleLikeHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid memory id")
		return
	}

	likes, liked, err := s.store.ToggleLike(c.Request.Context(), postID, userID)
	if err != nil {
		logg.Error("http/like", "Failed to toggle like", err)
		fail(c, http.StatusInternalServerError, "Failed to like/unlike post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"likes": likes, "liked": liked})
}

// addCommentHandler appends a comment to :id and echoes it back with the
// commenter's username.
func (s *Server) addCommentHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid memory id")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, "Comment cannot be empty.")
		return
	}

	comment, err := s.store.AddComment(c.Request.Context(), postID, userID, req.Text)
	if err != nil {
		logg.Error("http/comment", "Failed to add comment", err)
		fail(c, http.StatusInternalServerError, "Database error.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": comment.User, "text": comment.Text})
}

// uploadMemoryHandler stores a new post from a multipart form: a required
// image plus caption and emotion fields. On success, an upload event goes to
// the broker for notification fan-out; publish failures are logged but never
// fail the upload.
func (s *Server) uploadMemoryHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "Image required")
		return
	}
	caption := c.PostForm("caption")
	emotion := c.PostForm("emotion")

	src, err := file.Open()
	if err != nil {
		logg.Error("http/upload", "Failed to open uploaded image", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}
	defer src.Close()

	imagePath, err := s.uploads.Save(
		c.Request.Context(),
		upload.ObjectName(file.Filename),
		src, file.Size, file.Header.Get("Content-Type"),
	)
	if err != nil {
		logg.Error("http/upload", "Failed to store uploaded image", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	memoryID, err := s.store.AddMemory(c.Request.Context(), models.Memory{
		UserID:    userID,
		Caption:   caption,
		Emotion:   emotion,
		ImagePath: imagePath,
	})
	if err != nil {
		logg.Error("http/upload", "Failed to save memory", err)
		fail(c, http.StatusInternalServerError, "Database error")
		return
	}

	s.publishUploadEvent(models.UploadEvent{
		MemoryID: memoryID,
		UserID:   userID,
		Emotion:  emotion,
		Created:  time.Now(),
	})

	logg.Info("http/upload", "Memory uploaded (caption anonymized)")
	c.Redirect(http.StatusFound, "/gallery.html")
}

func (s *Server) publishUploadEvent(evt models.UploadEvent) {
	if s.kafkaWriter == nil {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		logg.Error("http/upload", "Failed to marshal upload event", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(appkafka.UploadEventKey),
		Value: data,
	}
	if err := s.kafkaWriter.WriteMessages(msg); err != nil {
		logg.Error("http/upload", "Failed to publish upload event", err)
	}
}
