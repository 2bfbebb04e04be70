package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kthomas256/veriauth/internal/api"
	iauth "github.com/kthomas256/veriauth/internal/auth"
	sharedtestutil "github.com/kthomas256/veriauth/internal/database/testutil"
	"github.com/kthomas256/veriauth/internal/services"
	"github.com/kthomas256/veriauth/pkg/mail"
	"github.com/kthomas256/veriauth/pkg/response"
)

// RecordingMailer captures outbound messages instead of delivering them.
type RecordingMailer struct {
	Messages []mail.Message
	Err      error
}

// Send implements mail.Mailer.
func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

// LastMessage returns the most recently captured message.
func (m *RecordingMailer) LastMessage(t *testing.T) mail.Message {
	t.Helper()
	require.NotEmpty(t, m.Messages)
	return m.Messages[len(m.Messages)-1]
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Mailer *RecordingMailer
	Clock  *time.Time
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t)

	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &current
	now := func() time.Time { return *clock }

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "test-suite-super-secret-key-32-bytes!!",
		Issuer: "test-suite",
		Clock:  now,
	})
	require.NoError(t, err)

	mailer := &RecordingMailer{}

	verificationSvc, err := services.NewVerificationService(db, mailer,
		services.WithVerificationBaseURL("https://auth.example.com"),
		services.WithVerificationClock(now),
	)
	require.NoError(t, err)

	accountSvc, err := services.NewAccountService(db, jwtSvc)
	require.NoError(t, err)

	resetSvc, err := services.NewPasswordResetService(db, mailer, jwtSvc,
		services.WithResetClock(now),
	)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Deps{
		JWT:          jwtSvc,
		Verification: verificationSvc,
		Accounts:     accountSvc,
		Resets:       resetSvc,
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Mailer: mailer,
		Clock:  clock,
	}
}

// Advance moves the injected clock forward.
func (e *Env) Advance(d time.Duration) {
	*e.Clock = e.Clock.Add(d)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Register creates an account through the API and returns the decoded user payload.
func (e *Env) Register(username, email, password string) UserPayload {
	e.T.Helper()

	payload := map[string]string{
		"display_name": username,
		"username":     username,
		"email":        email,
		"password":     password,
	}

	w := e.Request(http.MethodPost, "/api/auth/register", payload, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result RegisterResult
	DecodeInto(e.T, resp.Data, &result)
	require.Equal(e.T, username, result.User.Username)

	return result.User
}

// VerifyByOTP completes email verification using the code captured by the mailer.
func (e *Env) VerifyByOTP(email string) {
	e.T.Helper()

	credential := e.latestCredential()
	payload := map[string]string{"email": email, "otp": credential.Otp}

	w := e.Request(http.MethodPost, "/api/auth/verify-email-otp", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
}

// Login authenticates and returns the issued session token.
func (e *Env) Login(username, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{"username": username, "password": password}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	require.Equal(e.T, username, result.User.Username)

	return result
}

func (e *Env) latestCredential() credentialRow {
	e.T.Helper()

	var row credentialRow
	require.NoError(e.T, e.DB.Table("email_tokens").Order("created_at DESC").Take(&row).Error)
	return row
}

type credentialRow struct {
	UserID string
	Token  string
	Otp    string
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsVerified  bool   `json:"is_verified"`
}

// RegisterResult bundles the JSON response from POST /api/auth/register.
type RegisterResult struct {
	Message string      `json:"message"`
	User    UserPayload `json:"user"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserPayload `json:"user"`
}
