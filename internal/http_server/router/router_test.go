package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"campus_echo/internal/auth"
	"campus_echo/internal/campus"
	"campus_echo/internal/clients/stt"
	"campus_echo/internal/http_server/middleware/ratelimit"
	"campus_echo/internal/lib/jwt"
	"campus_echo/internal/lib/validation"
	"campus_echo/internal/models"
	"campus_echo/internal/storage/memory"
	"campus_echo/internal/voice"
)

const password = "Campus!Echo2026&Go"

type mailbox struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (m *mailbox) SendMessage(_ context.Context, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mailbox) token(t *testing.T, email string) string {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].Email != email {
			continue
		}
		u, err := url.Parse(m.msgs[i].Link)
		if err != nil {
			t.Fatal(err)
		}
		return u.Query().Get("token")
	}

	t.Fatalf("no mail for %s", email)
	return ""
}

type transcriberMock struct {
	transcribe func(ctx context.Context, audio stt.Audio) (string, error)
}

func (m *transcriberMock) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	return m.transcribe(ctx, audio)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	srv  *httptest.Server
	mail *mailbox
}

func newTestServer(t *testing.T, limit int, opts ...func(*Deps)) *testServer {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.New()
	mail := &mailbox{}
	codec := jwt.NewCodec("router-test-secret", "campus-echo", 15*time.Minute)

	authService := auth.New(log, repo, repo, repo, codec, mail, auth.Options{
		FrontendURL:     "http://localhost:5173",
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
		RefreshTTL:      7 * 24 * time.Hour,
	})

	deps := Deps{
		Log:      log,
		Validate: validation.New(),
		Auth:     authService,
		Tokens:   codec,
		Voice:    voice.New(log, repo, nil, time.Second),
		Transcriber: &transcriberMock{transcribe: func(context.Context, stt.Audio) (string, error) {
			return "", stt.ErrNotConfigured
		}},
		Campus:         campus.New(log, repo),
		Limiter:        ratelimit.New(log, nil, limit, time.Minute),
		AllowedOrigins: []string{"http://localhost:5173"},
		RefreshTTL:     7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv := httptest.NewServer(New(deps))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, mail: mail}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, envelope) {
	t.Helper()

	return s.send(t, http.DefaultClient, method, path, token, body, nil)
}

func (s *testServer) send(
	t *testing.T,
	client *http.Client,
	method, path, token string,
	body any,
	header http.Header,
) (*http.Response, envelope) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var env envelope
	_ = json.NewDecoder(res.Body).Decode(&env)

	return res, env
}

// signIn registers, verifies and logs in an account and returns its access token.
func (s *testServer) signIn(t *testing.T, role models.Role, email, id string) string {
	t.Helper()

	body := map[string]string{
		"fullName":        "Test " + id,
		"email":           email,
		"department":      "CSE",
		"phone":           "+919876543210",
		"password":        password,
		"confirmPassword": password,
	}

	path := "/api/auth/register/student"
	if role == models.RoleFaculty {
		path = "/api/auth/register/faculty"
		body["employeeId"] = id
		body["designation"] = "Professor"
	} else {
		body["rollNumber"] = id
		body["year"] = "2"
	}

	res, env := s.do(t, http.MethodPost, path, "", body)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d %s", res.StatusCode, env.Message)
	}

	res, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("login before verification: %d %s", res.StatusCode, env.Message)
	}

	token := url.QueryEscape(s.mail.token(t, email))
	res, env = s.do(t, http.MethodGet, "/api/auth/verify-email?token="+token, "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d %s", res.StatusCode, env.Message)
	}

	res, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", res.StatusCode, env.Message)
	}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AccessToken == "" {
		t.Fatalf("no access token in %s", env.Data)
	}

	cookie := false
	for _, c := range res.Cookies() {
		if c.Name == "refreshToken" && c.HttpOnly && c.Value != "" {
			cookie = true
		}
	}
	if !cookie {
		t.Fatal("refresh cookie not set")
	}

	return data.AccessToken
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 100)

	res, env := s.do(t, http.MethodGet, "/api/health", "", nil)
	if res.StatusCode != http.StatusOK || !env.Success || env.Message != "Campus Echo API is running" {
		t.Fatalf("unexpected health %d %+v", res.StatusCode, env)
	}
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, 100)

	studentToken := s.signIn(t, models.RoleStudent, "student@college.edu", "2024CS001")
	facultyToken := s.signIn(t, models.RoleFaculty, "prof@college.edu", "EMP001")

	res, env := s.do(t, http.MethodGet, "/api/faculty/dashboard", "", nil)
	if res.StatusCode != http.StatusUnauthorized || env.Message != "No token provided" {
		t.Fatalf("anonymous: %d %s", res.StatusCode, env.Message)
	}

	res, env = s.do(t, http.MethodGet, "/api/faculty/dashboard", "garbage", nil)
	if res.StatusCode != http.StatusUnauthorized || env.Message != "Invalid or expired token" {
		t.Fatalf("bad token: %d %s", res.StatusCode, env.Message)
	}

	res, env = s.do(t, http.MethodGet, "/api/faculty/students", studentToken, nil)
	if res.StatusCode != http.StatusForbidden || env.Message != "Access denied. Faculty role required." {
		t.Fatalf("student on faculty route: %d %s", res.StatusCode, env.Message)
	}

	res, env = s.do(t, http.MethodGet, "/api/student/dashboard", facultyToken, nil)
	if res.StatusCode != http.StatusForbidden || env.Message != "Access denied. Student role required." {
		t.Fatalf("faculty on student route: %d %s", res.StatusCode, env.Message)
	}

	res, _ = s.do(t, http.MethodGet, "/api/student/events", studentToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("student events: %d", res.StatusCode)
	}

	res, env = s.do(t, http.MethodGet, "/api/faculty/students", facultyToken, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), "2024CS001") {
		t.Fatalf("directory: %d %s", res.StatusCode, env.Data)
	}
}

func TestNoticesFlow(t *testing.T) {
	s := newTestServer(t, 100)

	prof := s.signIn(t, models.RoleFaculty, "prof@college.edu", "EMP001")
	other := s.signIn(t, models.RoleFaculty, "other@college.edu", "EMP002")
	student := s.signIn(t, models.RoleStudent, "student@college.edu", "2024CS001")

	res, env := s.do(t, http.MethodPost, "/api/faculty/notices", prof, map[string]string{
		"title": "Exam Schedule Released",
		"body":  "Mid-terms start on March 10",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, env.Message)
	}

	var n models.Notice
	if err := json.Unmarshal(env.Data, &n); err != nil || n.ID == 0 {
		t.Fatalf("bad notice %s", env.Data)
	}
	path := "/api/faculty/notices/" + jsonNumber(n.ID)

	res, _ = s.do(t, http.MethodPut, path, other, map[string]string{"title": "x", "body": "y"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign update: %d", res.StatusCode)
	}

	res, env = s.do(t, http.MethodGet, "/api/student/notices", student, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), "Exam Schedule Released") {
		t.Fatalf("student notices: %d %s", res.StatusCode, env.Data)
	}

	res, _ = s.do(t, http.MethodDelete, path, prof, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete: %d", res.StatusCode)
	}

	res, _ = s.do(t, http.MethodDelete, "/api/faculty/notices/abc", prof, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id: %d", res.StatusCode)
	}
}

func TestAttendanceValidation(t *testing.T) {
	s := newTestServer(t, 100)
	prof := s.signIn(t, models.RoleFaculty, "prof@college.edu", "EMP001")

	res, _ := s.do(t, http.MethodPost, "/api/faculty/attendance", prof, map[string]any{
		"courseCode": "CS201",
		"date":       "2026-02-10",
		"records":    []map[string]any{{"studentId": 1, "status": "SLEEPING"}},
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid status accepted: %d", res.StatusCode)
	}

	res, env := s.do(t, http.MethodPost, "/api/faculty/attendance", prof, map[string]any{
		"courseCode": "CS201",
		"date":       "2026-02-10",
		"records":    []map[string]any{{"studentId": 1, "status": "PRESENT"}},
	})
	if res.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), "markedBy") {
		t.Fatalf("attendance: %d %s", res.StatusCode, env.Data)
	}
}

func TestVoiceRoutes(t *testing.T) {
	s := newTestServer(t, 100)
	student := s.signIn(t, models.RoleStudent, "student@college.edu", "2024CS001")

	res, env := s.do(t, http.MethodPost, "/api/voice/query", student, map[string]string{"query": "When is my next exam?"})
	if res.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), "queryId") {
		t.Fatalf("query: %d %s", res.StatusCode, env.Data)
	}

	res, env = s.do(t, http.MethodGet, "/api/voice/history", student, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), "When is my next exam?") {
		t.Fatalf("history: %d %s", res.StatusCode, env.Data)
	}

	res, _ = s.do(t, http.MethodGet, "/api/voice/history", "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous history: %d", res.StatusCode)
	}
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	s := newTestServer(t, 100)
	s.signIn(t, models.RoleStudent, "student@college.edu", "2024CS001")

	_, known := s.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "student@college.edu"})
	_, unknown := s.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "ghost@college.edu"})

	if known.Message != unknown.Message || !known.Success || !unknown.Success {
		t.Fatalf("responses differ: %+v vs %+v", known, unknown)
	}
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	creds := map[string]string{"email": "nobody@college.edu", "password": password}

	for i := 0; i < 2; i++ {
		res, _ := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: %d", i, res.StatusCode)
		}
	}

	res, env := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	if res.StatusCode != http.StatusTooManyRequests || env.Message != "Too many requests, please try again later" {
		t.Fatalf("expected 429, got %d %s", res.StatusCode, env.Message)
	}

	// other scopes keep their own budget
	res, _ = s.do(t, http.MethodGet, "/api/health", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health limited: %d", res.StatusCode)
	}
}

func TestAuthRateLimitIgnoresForwardedHeaders(t *testing.T) {
	s := newTestServer(t, 2)
	creds := map[string]string{"email": "nobody@college.edu", "password": password}

	var codes []int
	for i := 0; i < 4; i++ {
		header := http.Header{}
		header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i+1))
		header.Set("True-Client-IP", fmt.Sprintf("10.0.2.%d", i+1))

		res, _ := s.send(t, http.DefaultClient, http.MethodPost, "/api/auth/login", "", creds, header)
		codes = append(codes, res.StatusCode)
	}

	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("rotating forwarded headers changed the bucket: got %v, want %v", codes, want)
		}
	}
}

func TestAuthRateLimitBehindTrustedProxy(t *testing.T) {
	s := newTestServer(t, 1, func(d *Deps) { d.TrustProxy = true })
	creds := map[string]string{"email": "nobody@college.edu", "password": password}

	login := func(ip string) int {
		header := http.Header{}
		header.Set("X-Forwarded-For", ip)
		res, _ := s.send(t, http.DefaultClient, http.MethodPost, "/api/auth/login", "", creds, header)
		return res.StatusCode
	}

	if code := login("203.0.113.1"); code != http.StatusUnauthorized {
		t.Fatalf("first client: %d", code)
	}
	if code := login("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Fatalf("first client over limit: %d", code)
	}
	if code := login("203.0.113.2"); code != http.StatusUnauthorized {
		t.Fatalf("second client shares a bucket: %d", code)
	}
}

// refreshCookieCleared reports whether the response expires the refresh cookie.
func refreshCookieCleared(res *http.Response) bool {
	for _, c := range res.Cookies() {
		if c.Name == "refreshToken" && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, 100)
	const email = "student@college.edu"

	access := s.signIn(t, models.RoleStudent, email, "2024CS001")

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	browser := &http.Client{Jar: jar}
	plain := http.DefaultClient

	login := func(client *http.Client, pass string) (string, string) {
		t.Helper()

		res, env := s.send(t, client, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": pass}, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("login: %d %s", res.StatusCode, env.Message)
		}

		var data struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil || data.RefreshToken == "" {
			t.Fatalf("no refresh token in %s", env.Data)
		}
		return data.AccessToken, data.RefreshToken
	}

	refresh := func(client *http.Client, body any) (int, string) {
		t.Helper()

		res, env := s.send(t, client, http.MethodPost, "/api/auth/refresh", "", body, nil)
		return res.StatusCode, env.Message
	}

	_, cookieToken := login(browser, password)

	if code, msg := refresh(browser, nil); code != http.StatusOK {
		t.Fatalf("refresh via cookie: %d %s", code, msg)
	}
	if code, msg := refresh(browser, nil); code != http.StatusOK {
		t.Fatalf("refresh token rotated on use: %d %s", code, msg)
	}
	if code, msg := refresh(plain, map[string]string{"refreshToken": cookieToken}); code != http.StatusOK {
		t.Fatalf("refresh via body: %d %s", code, msg)
	}
	if code, msg := refresh(plain, nil); code != http.StatusUnauthorized || msg != "No refresh token provided" {
		t.Fatalf("refresh without token: %d %s", code, msg)
	}
	if code, msg := refresh(plain, map[string]string{"refreshToken": "forged"}); code != http.StatusUnauthorized || msg != "Invalid or expired refresh token" {
		t.Fatalf("forged refresh: %d %s", code, msg)
	}

	res, env := s.do(t, http.MethodGet, "/api/auth/me", access, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), email) {
		t.Fatalf("me: %d %s", res.StatusCode, env.Data)
	}

	// a body token names the session to end even when another one sits in the cookie
	_, otherDevice := login(plain, password)
	res, _ = s.send(t, browser, http.MethodPost, "/api/auth/logout", access, map[string]string{"refreshToken": otherDevice}, nil)
	if res.StatusCode != http.StatusOK || refreshCookieCleared(res) {
		t.Fatalf("logout of other device: %d cleared=%v", res.StatusCode, refreshCookieCleared(res))
	}
	if code, _ := refresh(plain, map[string]string{"refreshToken": otherDevice}); code != http.StatusUnauthorized {
		t.Fatalf("ended session still refreshes: %d", code)
	}
	if code, msg := refresh(browser, nil); code != http.StatusOK {
		t.Fatalf("cookie session ended by other-device logout: %d %s", code, msg)
	}

	res, _ = s.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": email})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("forgot: %d", res.StatusCode)
	}

	const newPassword = "Fresh$Campus2027&Go"
	res, env = s.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"token":           s.mail.token(t, email),
		"newPassword":     newPassword,
		"confirmPassword": newPassword,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reset: %d %s", res.StatusCode, env.Message)
	}

	if code, msg := refresh(browser, nil); code != http.StatusUnauthorized || msg != "Invalid or expired refresh token" {
		t.Fatalf("refresh after reset: %d %s", code, msg)
	}

	_, _ = login(browser, newPassword)

	for i := 0; i < 2; i++ {
		res, env = s.send(t, browser, http.MethodPost, "/api/auth/logout", access, nil, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("logout %d: %d %s", i, res.StatusCode, env.Message)
		}
		if i == 0 && !refreshCookieCleared(res) {
			t.Fatal("logout did not clear the refresh cookie")
		}
	}

	if code, msg := refresh(browser, nil); code != http.StatusUnauthorized || msg != "No refresh token provided" {
		t.Fatalf("refresh after logout: %d %s", code, msg)
	}
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
