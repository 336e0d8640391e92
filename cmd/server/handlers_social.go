package server

import (
	"errors"
	"net/http"
	"strconv"

	"example.com/pixsoul/internal/middleware"
	"example.com/pixsoul/internal/models"

	"github.com/gin-gonic/gin"
)

// currentUserHandler returns the logged-in user's profile.
func (s *Server) currentUserHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := s.store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		logg.Error("http/user", "Failed to fetch user", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": models.Profile{
			Username:     user.Username,
			Email:        user.Email,
			ProfileImage: user.ProfileImage,
		},
	})
}

// listUsersHandler returns all other users with is_following / follows_back
// flags relative to the viewer.
func (s *Server) listUsersHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	users, err := s.store.ListUsersWithStatus(c.Request.Context(), userID)
	if err != nil {
		logg.Error("http/users", "Failed to list users", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// toggleFollowHandler flips the viewer's follow edge to :id and returns the
// resulting state.
func (s *Server) toggleFollowHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	targetID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid user id")
		return
	}

	following, err := s.store.ToggleFollow(c.Request.Context(), userID, targetID)
	if err != nil {
		if errors.Is(err, models.ErrSelfFollow) {
			fail(c, http.StatusBadRequest, "cannot follow yourself")
			return
		}
		logg.Error("http/follow", "Failed to toggle follow", err)
		fail(c, http.StatusInternalServerError, "Error updating follow status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"following": following})
}

// friendsHandler returns the viewer's mutual-follow circle.
func (s *Server) friendsHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	friends, err := s.store.ListFriends(c.Request.Context(), userID)
	if err != nil {
		logg.Error("http/friends", "Failed to list friends", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	c.JSON(http.StatusOK, friends)
}

func (s *Server) notificationsHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	notifications, err := s.store.Notifications(c.Request.Context(), userID)
	if err != nil {
		logg.Error("http/notifications", "Failed to fetch notifications", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	c.JSON(http.StatusOK, notifications)
}

func (s *Server) markNotificationsReadHandler(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := s.store.MarkNotificationsRead(c.Request.Context(), userID); err != nil {
		logg.Error("http/notifications", "Failed to mark notifications read", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
