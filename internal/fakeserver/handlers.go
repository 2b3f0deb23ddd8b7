package fakeserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/goSession/apiclient"
)

const msgTerminatedByAdmin = "Terminated by admin"

// ForcedLogoutPush is the frame sent when a session is terminated.
type ForcedLogoutPush struct {
	Action          string `json:"action"`
	TargetSessionID string `json:"targetSessionId,omitempty"`
	Message         string `json:"message,omitempty"`
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": msg})
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (s *Server) handleAuth(c *gin.Context) {
	var req apiclient.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		fail(c, http.StatusBadRequest, "username and password are required")
		return
	}

	ctx := c.Request.Context()
	name := strings.ToLower(req.Username)
	ip := c.ClientIP()
	if err := s.limit.check(ctx, name, ip); err != nil {
		if errors.Is(err, errThrottled) {
			fail(c, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
			return
		}
		s.log.Error(err, "login throttle")
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}

	s.mu.RLock()
	u, ok := s.users[name]
	s.mu.RUnlock()
	match := false
	if ok {
		var err error
		match, err = verifyPassword(req.Password, u.hash)
		if err != nil {
			match = false
		}
	}
	if !match {
		if err := s.limit.fail(ctx, name, ip); err != nil {
			s.log.Error(err, "login throttle")
		}
		fail(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err := s.limit.reset(ctx, name, ip); err != nil {
		s.log.Error(err, "login throttle")
	}

	sid, err := s.newSessionID(u.User)
	if err != nil {
		s.log.Error(err, "mint session id")
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	entry := activeSession{ID: sid, Username: u.Username, Role: u.Role, Email: u.Email}

	if s.single {
		claimed, err := s.reg.claim(ctx, entry)
		if err != nil {
			s.log.Error(err, "claim session")
			fail(c, http.StatusInternalServerError, "internal error")
			return
		}
		if !claimed {
			fail(c, http.StatusForbidden, "User already logged in on another device")
			return
		}
	} else {
		prev, err := s.reg.replace(ctx, entry)
		if err != nil {
			s.log.Error(err, "replace session")
			fail(c, http.StatusInternalServerError, "internal error")
			return
		}
		if prev != "" {
			s.hub.broadcast(ForcedLogoutPush{Action: apiclient.ActionForceLogout, TargetSessionID: prev, Message: "Logged in from another device"})
		}
	}

	s.log.Info("login", "username", u.Username, "role", u.Role)
	c.JSON(http.StatusOK, apiclient.AuthResponse{
		Status:    apiclient.StatusSuccess,
		SessionID: sid,
		Role:      u.Role,
		Username:  u.Username,
		Email:     u.Email,
	})
}

func (s *Server) newSessionID(u User) (string, error) {
	if s.mintID != nil {
		return s.mintID(), nil
	}
	return s.tokens.issue(u.Username, u.Role, s.now())
}

// sessionFromRequest resolves the bearer (or body) session id to its
// registry entry.
func (s *Server) sessionFromRequest(c *gin.Context, bodySID string) (activeSession, bool) {
	sid := bearer(c)
	if sid == "" {
		sid = bodySID
	}
	if sid == "" {
		fail(c, http.StatusUnauthorized, "missing session")
		return activeSession{}, false
	}
	if s.mintID == nil {
		if _, err := s.tokens.parse(sid); err != nil {
			fail(c, http.StatusUnauthorized, "invalid session")
			return activeSession{}, false
		}
	}
	entry, err := s.reg.lookup(c.Request.Context(), sid)
	if errors.Is(err, errSessionNotFound) {
		fail(c, http.StatusUnauthorized, "session expired")
		return activeSession{}, false
	}
	if err != nil {
		s.log.Error(err, "lookup session")
		fail(c, http.StatusInternalServerError, "internal error")
		return activeSession{}, false
	}
	return entry, true
}

func (s *Server) handleLogout(c *gin.Context) {
	var req apiclient.LogoutRequest
	_ = c.ShouldBindJSON(&req)

	entry, ok := s.sessionFromRequest(c, req.SessionID)
	if !ok {
		return
	}
	if _, err := s.reg.revoke(c.Request.Context(), entry.ID); err != nil && !errors.Is(err, errSessionNotFound) {
		s.log.Error(err, "revoke session")
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	s.log.Info("logout", "username", entry.Username, "path", c.Request.URL.Path)
	c.JSON(http.StatusOK, apiclient.StatusResponse{Status: apiclient.StatusSuccess, Message: "Logged out"})
}

func (s *Server) handleValidate(c *gin.Context) {
	var req apiclient.ValidateRequest
	_ = c.ShouldBindJSON(&req)

	entry, ok := s.sessionFromRequest(c, req.SessionID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, apiclient.ValidateResponse{
		Status: apiclient.StatusSuccess,
		Role:   entry.Role,
		User: apiclient.ValidatedUser{
			Username: entry.Username,
			Email:    entry.Email,
			Role:     entry.Role,
		},
	})
}

func (s *Server) handleForceLogout(c *gin.Context) {
	var req apiclient.ForceLogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		fail(c, http.StatusBadRequest, "username is required")
		return
	}
	admin, ok := s.sessionFromRequest(c, "")
	if !ok {
		return
	}
	if admin.Role != "admin" && admin.Role != "reseller" {
		fail(c, http.StatusForbidden, "not allowed")
		return
	}

	ctx := c.Request.Context()
	target := req.SessionID
	if target == "" {
		active, err := s.reg.active(ctx, req.Username)
		if err != nil {
			s.log.Error(err, "lookup active session")
			fail(c, http.StatusInternalServerError, "internal error")
			return
		}
		target = active
	}
	if target == "" {
		fail(c, http.StatusNotFound, "user has no active session")
		return
	}
	if _, err := s.reg.revoke(ctx, target); err != nil {
		if errors.Is(err, errSessionNotFound) {
			fail(c, http.StatusNotFound, "session not found")
			return
		}
		s.log.Error(err, "revoke session")
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}

	sent := s.hub.broadcast(ForcedLogoutPush{
		Action:          apiclient.ActionForceLogout,
		TargetSessionID: target,
		Message:         msgTerminatedByAdmin,
	})
	s.log.Info("force logout", "admin", admin.Username, "username", req.Username, "notified", sent)
	c.JSON(http.StatusOK, apiclient.StatusResponse{Status: apiclient.StatusSuccess, Message: "Session terminated"})
}
