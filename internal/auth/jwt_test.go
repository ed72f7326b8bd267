package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"callbridge/internal/config"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:   "secret",
		JWTIssuer:   "issuer",
		JWTAudience: "aud",
		SessionTTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerifySession(t *testing.T) {
	m := newManager(t)

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Issue(now, "user_alice", "4321")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user_alice" || claims.Subject != "user_alice" || claims.PhoneNumber != "4321" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	tok, _ := m.Issue(now, "user_alice", "4321")

	if _, err := m.Verify(tok, now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyRejectsOtherIssuer(t *testing.T) {
	a := newManager(t)
	b, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "someone-else"})

	now := time.Now()
	tok, _ := b.Issue(now, "user_alice", "4321")
	if _, err := a.Verify(tok, now); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)
	tok, _ := m.Issue(time.Now(), "user_alice", "4321")

	newRouter := func(enforce bool) *gin.Engine {
		r := gin.New()
		r.GET("/x", RequireSession(m, enforce), func(c *gin.Context) {
			if !SameUser(c, "user_alice") {
				c.Status(http.StatusForbidden)
				return
			}
			c.Status(http.StatusOK)
		})
		return r
	}

	cases := []struct {
		name    string
		enforce bool
		header  string
		want    int
	}{
		{"off passes through", false, "", http.StatusOK},
		{"missing header", true, "", http.StatusUnauthorized},
		{"garbage token", true, "Bearer nope", http.StatusUnauthorized},
		{"valid token", true, "Bearer " + tok, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			newRouter(tc.enforce).ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestSessionContext(t *testing.T) {
	if _, ok := SessionFrom(context.Background()); ok {
		t.Fatalf("expected no session on a bare context")
	}
	ctx := WithSession(context.Background(), Claims{UserID: "user_bob", PhoneNumber: "1234"})
	c, ok := SessionFrom(ctx)
	if !ok || c.UserID != "user_bob" {
		t.Fatalf("unexpected session: %+v ok=%v", c, ok)
	}
}
