package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appkafka "example.com/pixsoul/internal/broker"
	"example.com/pixsoul/internal/mailer"
	"example.com/pixsoul/internal/models"
	"example.com/pixsoul/internal/session"
	"example.com/pixsoul/internal/store"
	"example.com/pixsoul/internal/upload"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

//
// --- Setup test server ---
//

type testDeps struct {
	store    *store.MockStore
	sessions *session.MemoryManager
	mailer   *mailer.MockMailer
	uploads  *upload.MockStore
	kafka    *appkafka.MockKafka
}

func setupTestServer(t *testing.T) (*testDeps, *httptest.Server) {
	t.Helper()

	deps := &testDeps{
		store:    store.NewMock(),
		sessions: session.NewMemory(time.Hour, 5*time.Minute),
		mailer:   &mailer.MockMailer{},
		uploads:  upload.NewMockStore(),
		kafka:    &appkafka.MockKafka{},
	}
	s := &Server{
		store:       deps.store,
		sessions:    deps.sessions,
		mailer:      deps.mailer,
		uploads:     deps.uploads,
		kafkaWriter: deps.kafka,
		sessionTTL:  time.Hour,
	}
	return deps, httptest.NewServer(s.Router())
}

// client that does not follow redirects, so 302 responses stay visible
var noRedirect = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

//
// --- Helpers ---
//

// helper: sign up a user through the multipart form endpoint
func signupHelper(t *testing.T, ts *httptest.Server, username, email, password string) {
	t.Helper()

	resp := postSignupForm(t, ts, username, email, password)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("signup failed: %d: %s", resp.StatusCode, string(b))
	}
}

func postSignupForm(t *testing.T, ts *httptest.Server, username, email, password string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("username", username)
	_ = w.WriteField("email", email)
	_ = w.WriteField("password", password)
	if err := w.Close(); err != nil {
		t.Fatalf("multipart close failed: %v", err)
	}

	resp, err := http.Post(ts.URL+"/signup", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("signup request failed: %v", err)
	}
	return resp
}

// helper: log in and return the session cookie
func loginHelper(t *testing.T, ts *httptest.Server, email, password string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(ts.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("login failed: %d: %s", resp.StatusCode, string(b))
	}

	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("expected session cookie in login response")
	return nil
}

// helper: signup + login in one step
func registerHelper(t *testing.T, ts *httptest.Server, username string) *http.Cookie {
	t.Helper()
	email := username + "@example.com"
	signupHelper(t, ts, username, email, "Passw0rd!")
	return loginHelper(t, ts, email, "Passw0rd!")
}

// helper: authenticated JSON request
func authedRequest(t *testing.T, ts *httptest.Server, method, path string, body any, cookie *http.Cookie) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := noRedirect.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
}

//
// --- Signup / login ---
//

func TestSignupValidation(t *testing.T) {
	deps, ts := setupTestServer(t)
	defer ts.Close()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"username starts with digit", "1almaz", "a@example.com", "Passw0rd!"},
		{"malformed email", "almaz", "not-an-email", "Passw0rd!"},
		{"password too short", "almaz", "a@example.com", "Ab1!"},
		{"password without digit", "almaz", "a@example.com", "Password!"},
		{"password without special char", "almaz", "a@example.com", "Password1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postSignupForm(t, ts, tc.username, tc.email, tc.password)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}

	// nothing was written
	if len(deps.store.Users) != 0 {
		t.Fatalf("expected no users after rejected signups, got %d", len(deps.store.Users))
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	signupHelper(t, ts, "almaz", "almaz@example.com", "Passw0rd!")

	resp := postSignupForm(t, ts, "other", "almaz@example.com", "Passw0rd!")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate email, got %d", resp.StatusCode)
	}

	var res map[string]any
	decodeJSON(t, resp, &res)
	if res["message"] != "Email or username already exists" {
		t.Fatalf("unexpected message: %v", res["message"])
	}
}

// the error body must not reveal whether the account exists
func TestLoginInvalidCredentialsIndistinguishable(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	signupHelper(t, ts, "almaz", "almaz@example.com", "Passw0rd!")

	badPassword := loginAttempt(t, ts, "almaz@example.com", "WrongPass1!")
	unknownEmail := loginAttempt(t, ts, "nobody@example.com", "Passw0rd!")

	if badPassword.status != http.StatusUnauthorized || unknownEmail.status != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", badPassword.status, unknownEmail.status)
	}
	if badPassword.body != unknownEmail.body {
		t.Fatalf("login failure bodies differ: %q vs %q", badPassword.body, unknownEmail.body)
	}
}

type loginResult struct {
	status int
	body   string
}

func loginAttempt(t *testing.T, ts *httptest.Server, email, password string) loginResult {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(ts.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return loginResult{status: resp.StatusCode, body: string(b)}
}

func TestSessionLifecycle(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	cookie := registerHelper(t, ts, "almaz")

	// cookie grants access
	resp := authedRequest(t, ts, http.MethodGet, "/api/user", nil, cookie)
	var res struct {
		Success bool           `json:"success"`
		User    models.Profile `json:"user"`
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /api/user, got %d", resp.StatusCode)
	}
	decodeJSON(t, resp, &res)
	if res.User.Username != "almaz" || res.User.Email != "almaz@example.com" {
		t.Fatalf("unexpected profile: %+v", res.User)
	}

	// no cookie: API answers 401 JSON
	resp = authedRequest(t, ts, http.MethodGet, "/api/user", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", resp.StatusCode)
	}

	// logout destroys the session server-side
	resp = authedRequest(t, ts, http.MethodGet, "/logout", nil, cookie)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 from logout, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, ts, http.MethodGet, "/api/user", nil, cookie)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	deps, ts := setupTestServer(t)
	defer ts.Close()

	cookie := registerHelper(t, ts, "almaz")

	deps.sessions.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	resp := authedRequest(t, ts, http.MethodGet, "/api/user", nil, cookie)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired session, got %d", resp.StatusCode)
	}
}

//
// --- Password reset ---
//

func TestForgotPasswordNeutralResponse(t *testing.T) {
	deps, ts := setupTestServer(t)
	defer ts.Close()

	signupHelper(t, ts, "almaz", "almaz@example.com", "Passw0rd!")

	known := forgotAttempt(t, ts, "almaz@example.com")
	unknown := forgotAttempt(t, ts, "nobody@example.com")

	if known.status != http.StatusOK || unknown.status != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", known.status, unknown.status)
	}
	if known.body != unknown.body {
		t.Fatalf("forgot-password bodies differ: %q vs %q", known.body, unknown.body)
	}

	// only the registered address actually received mail
	if len(deps.mailer.Sent) != 1 || deps.mailer.Sent[0].To != "almaz@example.com" {
		t.Fatalf("unexpected sent mail: %+v", deps.mailer.Sent)
	}
}

func forgotAttempt(t *testing.T, ts *httptest.Server, email string) loginResult {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email})
	resp, err := http.Post(ts.URL+"/forgot-password", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("forgot-password request failed: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return loginResult{status: resp.StatusCode, body: string(b)}
}

// extract the 6-digit code from the mail body "Your OTP is 123456. ..."
func otpFromMail(t *testing.T, m mailer.SentMail) string {
	t.Helper()
	rest := strings.TrimPrefix(m.Body, "Your OTP is ")
	if len(rest) < 6 || rest == m.Body {
		t.Fatalf("cannot extract OTP from mail body: %q", m.Body)
	}
	return rest[:6]
}

func TestResetPasswordFlow(t *testing.T) {
	deps, ts := setupTestServer(t)
	defer ts.Close()

	signupHelper(t, ts, "almaz", "almaz@example.com", "Passw0rd!")
	forgotAttempt(t, ts, "almaz@example.com")
	otp := otpFromMail(t, deps.mailer.Sent[0])

	// wrong code first
	resp := resetAttempt(t, ts, "almaz@example.com", "000000", "NewPassw0rd!")
	if resp.status != http.StatusBadRequest {
		t.Fatalf("expected 400 on wrong OTP, got %d", resp.status)
	}

	// correct code
	resp = resetAttempt(t, ts, "almaz@example.com", otp, "NewPassw0rd!")
	if resp.status != http.StatusOK {
		t.Fatalf("expected 200 on reset, got %d: %s", resp.status, resp.body)
	}

	// the code is single-use
	resp = resetAttempt(t, ts, "almaz@example.com", otp, "AnotherPass1!")
	if resp.status != http.StatusBadRequest {
		t.Fatalf("expected 400 on reused OTP, got %d", resp.status)
	}

	// the old password no longer works, the new one does
	if r := loginAttempt(t, ts, "almaz@example.com", "Passw0rd!"); r.status != http.StatusUnauthorized {
		t.Fatalf("expected old password rejected, got %d", r.status)
	}
	loginHelper(t, ts, "almaz@example.com", "NewPassw0rd!")
}

func TestResetPasswordExpiredOTP(t *testing.T) {
	deps, ts := setupTestServer(t)
	defer ts.Close()

	signupHelper(t, ts, "almaz", "almaz@example.com", "Passw0rd!")
	forgotAttempt(t, ts, "almaz@example.com")
	otp := otpFromMail(t, deps.mailer.Sent[0])

	deps.sessions.Now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	resp := resetAttempt(t, ts, "almaz@example.com", otp, "NewPassw0rd!")
	if resp.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for expired OTP, got %d", resp.status)
	}
}

func TestResetPasswordWeakNewPassword(t *testing.T) {
	deps, ts := setupTestServer(t)
	defer ts.Close()

	signupHelper(t, ts, "almaz", "almaz@example.com", "Passw0rd!")
	forgotAttempt(t, ts, "almaz@example.com")
	otp := otpFromMail(t, deps.mailer.Sent[0])

	resp := resetAttempt(t, ts, "almaz@example.com", otp, "weak")
	if resp.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", resp.status)
	}
}

func resetAttempt(t *testing.T, ts *httptest.Server, email, otp, newPassword string) loginResult {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"email":       email,
		"otp":         otp,
		"newPassword": newPassword,
	})
	resp, err := http.Post(ts.URL+"/reset-password", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("reset-password request failed: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return loginResult{status: resp.StatusCode, body: string(b)}
}

func TestForgotPasswordMailerError(t *testing.T) {
	deps, ts := setupTestServer(t)
	defer ts.Close()

	signupHelper(t, ts, "almaz", "almaz@example.com", "Passw0rd!")
	deps.mailer.ShouldFail = true

	resp := forgotAttempt(t, ts, "almaz@example.com")
	if resp.status != http.StatusInternalServerError {
		t.Fatalf("expected 500 on mailer failure, got %d", resp.status)
	}
}

//
// --- Follow / friends ---
//

func TestFollowToggleAndFriends(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	almaz := registerHelper(t, ts, "almaz")
	nur := registerHelper(t, ts, "nur")

	// almaz follows nur (user ids are assigned in signup order)
	var res struct {
		Following bool `json:"following"`
	}
	resp := authedRequest(t, ts, http.MethodPost, "/api/follow/2", nil, almaz)
	decodeJSON(t, resp, &res)
	if !res.Following {
		t.Fatalf("expected following=true after first toggle")
	}

	// one-way follow is not friendship yet
	var friends []models.Friend
	resp = authedRequest(t, ts, http.MethodGet, "/api/friends", nil, almaz)
	decodeJSON(t, resp, &friends)
	if len(friends) != 0 {
		t.Fatalf("expected no friends for one-way follow, got %+v", friends)
	}

	// nur follows back: both sides now see each other as friends
	resp = authedRequest(t, ts, http.MethodPost, "/api/follow/1", nil, nur)
	resp.Body.Close()

	resp = authedRequest(t, ts, http.MethodGet, "/api/friends", nil, almaz)
	decodeJSON(t, resp, &friends)
	if len(friends) != 1 || friends[0].Username != "nur" {
		t.Fatalf("expected nur as friend, got %+v", friends)
	}

	// toggling again removes the edge and the friendship
	resp = authedRequest(t, ts, http.MethodPost, "/api/follow/2", nil, almaz)
	decodeJSON(t, resp, &res)
	if res.Following {
		t.Fatalf("expected following=false after second toggle")
	}
	resp = authedRequest(t, ts, http.MethodGet, "/api/friends", nil, nur)
	decodeJSON(t, resp, &friends)
	if len(friends) != 0 {
		t.Fatalf("expected empty friends after unfollow, got %+v", friends)
	}
}

func TestSelfFollowRejected(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	almaz := registerHelper(t, ts, "almaz")

	resp := authedRequest(t, ts, http.MethodPost, "/api/follow/1", nil, almaz)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for self-follow, got %d", resp.StatusCode)
	}
}

func TestListUsersWithStatus(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	almaz := registerHelper(t, ts, "almaz")
	registerHelper(t, ts, "nur")

	resp := authedRequest(t, ts, http.MethodPost, "/api/follow/2", nil, almaz)
	resp.Body.Close()

	var res struct {
		Success bool                    `json:"success"`
		Users   []models.UserWithStatus `json:"users"`
	}
	resp = authedRequest(t, ts, http.MethodGet, "/api/users/all", nil, almaz)
	decodeJSON(t, resp, &res)

	if len(res.Users) != 1 {
		t.Fatalf("expected 1 other user, got %d", len(res.Users))
	}
	u := res.Users[0]
	if u.Username != "nur" || !u.IsFollowing || u.FollowsBack {
		t.Fatalf("unexpected status flags: %+v", u)
	}
}
