package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/channel"
	"callbridge/internal/config"
	"callbridge/internal/credentials"
	"callbridge/internal/directory"
	"callbridge/internal/endpoints"
	"callbridge/internal/notify"
	"callbridge/internal/routing"
	"callbridge/pkg/logger"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	invites []notify.Invite
	err     error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ string, inv notify.Invite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invites = append(d.invites, inv)
	return d.err
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, credentials.Request) (string, error) {
	return "", errors.New("token service down")
}

type testServer struct {
	engine     *gin.Engine
	sessions   *auth.Manager
	dispatcher *recordingDispatcher
	router     *routing.CallRouter
}

func newTestServer(t *testing.T, requireSession bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	quiet := logger.Discard()

	dir := directory.New(directory.NewMemoryStore(), nil)
	dir.Log = quiet
	eps := endpoints.NewRegistry(endpoints.NewMemoryStore())
	eps.Log = quiet

	issuer, err := credentials.NewJWTIssuer("app", "cert")
	require.NoError(t, err)
	disp := &recordingDispatcher{}
	router := routing.NewCallRouter(dir, eps, channel.NewNamer(), issuer, disp)
	router.Log = quiet

	sessions, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", SessionTTL: time.Hour})
	require.NoError(t, err)

	h := Handlers{Directory: dir, Endpoints: eps, Router: router, Sessions: sessions, AuditLog: audit.NewMemoryRepo(0)}

	r := gin.New()
	r.Use(logger.Middleware(quiet))
	Mount(r, h, auth.RequireSession(sessions, requireSession))
	r.GET("/internal/audit", h.ListAudit)

	return &testServer{engine: r, sessions: sessions, dispatcher: disp, router: router}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *testServer) login(t *testing.T, username string) map[string]any {
	t.Helper()
	w, out := s.do(t, http.MethodPost, "/login", gin.H{"username": username}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return out
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, false)

	first := s.login(t, "alice")
	assert.Equal(t, "user_alice", first["user_id"])
	assert.True(t, directory.ValidNumber(first["phone_number"].(string)))
	assert.NotEmpty(t, first["token"])

	again := s.login(t, "alice")
	assert.Equal(t, first["phone_number"], again["phone_number"])

	bob := s.login(t, "bob")
	assert.NotEqual(t, first["phone_number"], bob["phone_number"])
}

func TestLogin_InvalidBody(t *testing.T) {
	s := newTestServer(t, false)

	w, out := s.do(t, http.MethodPost, "/login", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_argument", out["code"])

	w, _ = s.do(t, http.MethodPost, "/login", gin.H{"username": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	w, out := s.do(t, http.MethodPost, "/register_fcm", gin.H{"user_id": "user_bob", "fcm_token": "tok"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FCM registered successfully", out["message"])

	w, _ = s.do(t, http.MethodPost, "/v1/endpoints", gin.H{"user_id": "user_bob"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerCall_Agent(t *testing.T) {
	s := newTestServer(t, false)

	w, out := s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_alice", "target_number": "100"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "agent", out["target_type"])
	assert.Regexp(t, `^agent_[0-9a-f]{12}$`, out["channel_name"])
	assert.Equal(t, float64(0), out["uid"])
	assert.NotEmpty(t, out["token"])
	assert.Empty(t, s.dispatcher.invites)
}

func TestTriggerCall_User(t *testing.T) {
	s := newTestServer(t, false)
	s.login(t, "alice")
	bob := s.login(t, "bob")
	w, _ := s.do(t, http.MethodPost, "/register_fcm", gin.H{"user_id": "user_bob", "fcm_token": "bob-device"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, out := s.do(t, http.MethodPost, "/v1/calls", gin.H{"caller_id": "user_alice", "target_number": bob["phone_number"]}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "user", out["target_type"])
	assert.Regexp(t, `^call_[0-9a-f]{12}$`, out["channel_name"])

	require.Len(t, s.dispatcher.invites, 1)
	assert.Equal(t, out["channel_name"], s.dispatcher.invites[0].Channel)
	assert.Equal(t, out["token"], s.dispatcher.invites[0].Credential)
	assert.Equal(t, "user_alice", s.dispatcher.invites[0].CallerID)
}

func TestTriggerCall_DispatchFailureStillOK(t *testing.T) {
	s := newTestServer(t, false)
	bob := s.login(t, "bob")
	s.do(t, http.MethodPost, "/register_fcm", gin.H{"user_id": "user_bob", "fcm_token": "bob-device"}, nil)
	s.dispatcher.err = errors.New("unregistered")

	w, _ := s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_alice", "target_number": bob["phone_number"]}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTriggerCall_Errors(t *testing.T) {
	s := newTestServer(t, false)
	bob := s.login(t, "bob")

	w, out := s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_alice", "target_number": "0000"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "number_not_found", out["code"])
	assert.Equal(t, "Number not found", out["error"])

	w, out = s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_alice", "target_number": bob["phone_number"]}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "target_offline", out["code"])
	assert.Equal(t, "Target user is offline (No FCM)", out["error"])

	w, _ = s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_alice"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerCall_IssuerDown(t *testing.T) {
	s := newTestServer(t, false)
	s.router.Issuer = failingIssuer{}

	w, out := s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_alice", "target_number": "100"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "collaborator_unavailable", out["code"])
}

func TestIssueChannelCredential(t *testing.T) {
	s := newTestServer(t, false)

	w, out := s.do(t, http.MethodGet, "/get_agora_token?channel_name=call_0123456789ab&uid=7", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, out["token"])

	w, _ = s.do(t, http.MethodGet, "/v1/credentials?channel_name=call_0123456789ab", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/get_agora_token?uid=7", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/get_agora_token?channel_name=c&uid=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionEnforcement(t *testing.T) {
	s := newTestServer(t, true)
	alice := s.login(t, "alice")
	bearer := map[string]string{"Authorization": "Bearer " + alice["token"].(string)}

	w, _ := s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_alice", "target_number": "100"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_mallory", "target_number": "100"}, bearer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/trigger_call", gin.H{"caller_id": "user_alice", "target_number": "100"}, bearer)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/register_fcm", gin.H{"user_id": "user_alice", "fcm_token": "tok"}, bearer)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrentLogins(t *testing.T) {
	s := newTestServer(t, false)

	const n = 50
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(gin.H{"username": "u" + strconv.Itoa(i)})
			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)
			var out loginResponse
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			numbers[i] = out.PhoneNumber
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, num := range numbers {
		require.NotEmpty(t, num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}
