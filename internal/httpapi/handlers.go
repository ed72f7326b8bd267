package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/directory"
	"callbridge/internal/endpoints"
	"callbridge/internal/routing"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Directory *directory.Directory
	Endpoints *endpoints.Registry
	Router    *routing.CallRouter
	Sessions  *auth.Manager

	// AuditLog is exposed read-only outside production. Optional.
	AuditLog *audit.MemoryRepo
}

// --- Login ---

type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

type loginResponse struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	Token       string `json:"token"`
}

// Login returns the user's phone number, allocating one on first login.
// There is no password: the username is the identity.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_argument", "username required")
		return
	}

	userID := directory.UserIDFor(req.Username)
	number, err := h.Directory.AssignOrGet(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	tok, err := h.Sessions.Issue(time.Now(), userID, number)
	if err != nil {
		logger.FromGin(c).Error("session issue failed", "user_id", userID, "err", err)
		abort(c, http.StatusInternalServerError, "internal", "token issuance failed")
		return
	}

	c.JSON(http.StatusOK, loginResponse{UserID: userID, PhoneNumber: number, Token: tok})
}

// --- Endpoints ---

type registerEndpointRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	FCMToken string `json:"fcm_token" binding:"required"`
}

func (h Handlers) RegisterEndpoint(c *gin.Context) {
	var req registerEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_argument", "user_id and fcm_token required")
		return
	}
	if !auth.SameUser(c, req.UserID) {
		abort(c, http.StatusForbidden, "forbidden", "user_id does not match session")
		return
	}

	if err := h.Endpoints.Register(c.Request.Context(), req.UserID, req.FCMToken); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "FCM registered successfully"})
}

// --- Calls ---

type triggerCallRequest struct {
	CallerID     string `json:"caller_id" binding:"required"`
	TargetNumber string `json:"target_number" binding:"required"`
}

func (h Handlers) TriggerCall(c *gin.Context) {
	var req triggerCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_argument", "caller_id and target_number required")
		return
	}
	if !auth.SameUser(c, req.CallerID) {
		abort(c, http.StatusForbidden, "forbidden", "caller_id does not match session")
		return
	}

	ctx := routing.WithOrigin(c.Request.Context(), routing.Origin{
		ClientIP:  c.ClientIP(),
		RequestID: c.Writer.Header().Get(logger.HeaderRequestID),
	})
	inv, err := h.Router.TriggerCall(ctx, req.CallerID, req.TargetNumber)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h Handlers) IssueChannelCredential(c *gin.Context) {
	ch := c.Query("channel_name")
	if ch == "" {
		abort(c, http.StatusBadRequest, "invalid_argument", "channel_name required")
		return
	}
	var uid uint64
	if raw := c.Query("uid"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			abort(c, http.StatusBadRequest, "invalid_argument", "uid must be a 32-bit unsigned integer")
			return
		}
		uid = n
	}

	tok, err := h.Router.IssueChannelCredential(c.Request.Context(), ch, uint32(uid))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

// --- Audit ---

func (h Handlers) ListAudit(c *gin.Context) {
	if h.AuditLog == nil {
		abort(c, http.StatusNotFound, "not_found", "audit log not enabled")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": h.AuditLog.Events()})
}

func (h Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidArgument),
		errors.Is(err, endpoints.ErrInvalidArgument),
		errors.Is(err, routing.ErrInvalidArgument):
		abort(c, http.StatusBadRequest, "invalid_argument", "invalid argument")
	case errors.Is(err, routing.ErrNumberNotFound):
		abort(c, http.StatusNotFound, "number_not_found", "Number not found")
	case errors.Is(err, routing.ErrTargetOffline):
		abort(c, http.StatusNotFound, "target_offline", "Target user is offline (No FCM)")
	case errors.Is(err, directory.ErrExhaustedRange):
		abort(c, http.StatusInsufficientStorage, "exhausted_range", "no phone numbers available")
	case errors.Is(err, routing.ErrCollaboratorUnavailable):
		logger.FromGin(c).Warn("collaborator unavailable", "err", err)
		abort(c, http.StatusServiceUnavailable, "collaborator_unavailable", "service temporarily unavailable")
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
