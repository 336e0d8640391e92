package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"example.com/pixsoul/internal/models"
	"example.com/pixsoul/internal/session"
	"example.com/pixsoul/internal/upload"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const neutralResetMessage = "If the email exists, an OTP has been sent."

// signupHandler registers a new account from a multipart form:
// username, email, password and an optional profileImage file.
// All validation happens before any write.
func (s *Server) signupHandler(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")

	if !models.ValidUsername(username) {
		fail(c, http.StatusBadRequest, "Username must start with a letter")
		return
	}
	if !models.ValidEmail(email) {
		fail(c, http.StatusBadRequest, "Invalid email")
		return
	}
	if !models.ValidPassword(password) {
		fail(c, http.StatusBadRequest, "Password must contain letters, numbers, and special chars")
		return
	}

	profileImage := "default.png"
	if file, err := c.FormFile("profileImage"); err == nil {
		src, err := file.Open()
		if err != nil {
			logg.Error("http/signup", "Failed to open profile image", err)
			fail(c, http.StatusInternalServerError, "Server error")
			return
		}
		defer src.Close()

		publicPath, err := s.uploads.Save(
			c.Request.Context(),
			upload.ObjectName(file.Filename),
			src, file.Size, file.Header.Get("Content-Type"),
		)
		if err != nil {
			logg.Error("http/signup", "Failed to store profile image", err)
			fail(c, http.StatusInternalServerError, "Server error")
			return
		}
		profileImage = publicPath
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logg.Error("http/signup", "Failed to hash password", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	if _, err := s.store.CreateUser(c.Request.Context(), username, email, string(hash), profileImage); err != nil {
		if errors.Is(err, models.ErrConflict) {
			fail(c, http.StatusBadRequest, "Email or username already exists")
			return
		}
		logg.Error("http/signup", "Failed to create user", err)
		fail(c, http.StatusInternalServerError, "Database error")
		return
	}

	logg.Info("http/signup", "User signed up (username anonymized)")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Signup successful"})
}

// loginHandler authenticates email+password and establishes a session. The
// failure message never distinguishes a missing account from a wrong password.
func (s *Server) loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		logg.Error("http/login", "Failed to query user", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		logg.Error("http/login", "Failed to create session", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	c.SetCookie(session.CookieName, token, int(s.sessionTTL.Seconds()), "/", "", false, true)
	logg.Info("http/login", fmt.Sprintf("Login succeeded for user_id=%d", user.ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": "/home.html"})
}

// logoutHandler invalidates the session and expires the cookie.
func (s *Server) logoutHandler(c *gin.Context) {
	if token, err := c.Cookie(session.CookieName); err == nil && token != "" {
		if err := s.sessions.Destroy(c.Request.Context(), token); err != nil {
			logg.Error("http/logout", "Failed to destroy session", err)
		}
	}
	c.SetCookie(session.CookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/index.html")
}

// forgotPasswordHandler issues a reset code. The response is identical
// whether or not the email belongs to an account, so callers cannot probe
// for registered addresses. Only a mail transport failure surfaces as 500.
func (s *Server) forgotPasswordHandler(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if !models.ValidEmail(req.Email) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": neutralResetMessage})
		return
	}

	if _, err := s.store.GetUserByEmail(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": neutralResetMessage})
			return
		}
		logg.Error("http/forgot-password", "Failed to query user", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	code, err := generateOTP()
	if err != nil {
		logg.Error("http/forgot-password", "Failed to generate OTP", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	if err := s.sessions.SetResetCode(c.Request.Context(), req.Email, code); err != nil {
		logg.Error("http/forgot-password", "Failed to store reset code", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	body := fmt.Sprintf("Your OTP is %s. It expires in 5 minutes.", code)
	if err := s.mailer.Send(c.Request.Context(), req.Email, "PixSoul Password Reset OTP", body); err != nil {
		logg.Error("http/forgot-password", "Failed to send OTP mail", err)
		fail(c, http.StatusInternalServerError, "Error sending OTP")
		return
	}

	logg.Info("http/forgot-password", "Reset code issued (email anonymized)")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": neutralResetMessage})
}

// resetPasswordHandler consumes a pending code and sets the new password.
func (s *Server) resetPasswordHandler(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	code, err := s.sessions.GetResetCode(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusBadRequest, "Invalid or expired OTP")
			return
		}
		logg.Error("http/reset-password", "Failed to fetch reset code", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}
	if code != req.OTP {
		fail(c, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}

	if !models.ValidPassword(req.NewPassword) {
		fail(c, http.StatusBadRequest, "Password must contain letters, numbers, and special chars")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logg.Error("http/reset-password", "Failed to hash password", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	if err := s.store.UpdatePassword(c.Request.Context(), req.Email, string(hash)); err != nil {
		logg.Error("http/reset-password", "Failed to update password", err)
		fail(c, http.StatusInternalServerError, "Server error")
		return
	}

	// Single-use: the code is gone after a successful reset.
	if err := s.sessions.ClearResetCode(c.Request.Context(), req.Email); err != nil {
		logg.Error("http/reset-password", "Failed to clear reset code", err)
	}

	logg.Info("http/reset-password", "Password reset completed (email anonymized)")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password reset successfully"})
}

// generateOTP returns a 6-digit numeric code from crypto/rand.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
