package apiclient

import (
	"context"
	"time"
)

// Remote API paths.
const (
	PathAuth            = "/auth"
	PathLogout          = "/logout"
	PathSignout         = "/auth/signout"
	PathValidateSession = "/validate-session"
	PathForceLogout     = "/admin/force-logout"
)

// StatusSuccess is the value of the status field on successful responses.
const StatusSuccess = "success"

// ActionForceLogout marks admin force-logout requests and pushes.
const ActionForceLogout = "force_logout"

type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Message   string `json:"message,omitempty"`
}

type LogoutRequest struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ValidateRequest struct {
	SessionID string `json:"sessionId"`
}

type ValidatedUser struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

type ValidateResponse struct {
	Status  string        `json:"status"`
	Role    string        `json:"role"`
	User    ValidatedUser `json:"user"`
	Message string        `json:"message,omitempty"`
}

// EffectiveRole prefers the top-level role and falls back to the user record.
func (r ValidateResponse) EffectiveRole() string {
	if r.Role != "" {
		return r.Role
	}
	return r.User.Role
}

type ForceLogoutRequest struct {
	Username  string `json:"username"`
	SessionID string `json:"sessionId,omitempty"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
}

// Timestamp formats t the way every request body carries it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Authenticate posts credentials to /auth.
func (c *Client) Authenticate(ctx context.Context, req AuthRequest) (AuthResponse, error) {
	var out AuthResponse
	err := c.Request(ctx, PathAuth, RequestOptions{Body: req}, &out)
	return out, err
}

// Logout posts a logout body to path (PathLogout or PathSignout) with the
// session id as bearer credential.
func (c *Client) Logout(ctx context.Context, path string, req LogoutRequest) (StatusResponse, error) {
	var out StatusResponse
	err := c.Request(ctx, path, RequestOptions{Body: req, BearerToken: req.SessionID}, &out)
	return out, err
}

// ValidateSession asks the server which identity and role sessionID maps to.
func (c *Client) ValidateSession(ctx context.Context, sessionID string) (ValidateResponse, error) {
	var out ValidateResponse
	err := c.Request(ctx, PathValidateSession, RequestOptions{
		Body:        ValidateRequest{SessionID: sessionID},
		BearerToken: sessionID,
	}, &out)
	return out, err
}

// ForceLogout asks the server to terminate another user's session.
// adminSessionID authenticates the caller.
func (c *Client) ForceLogout(ctx context.Context, adminSessionID string, req ForceLogoutRequest) (StatusResponse, error) {
	if req.Action == "" {
		req.Action = ActionForceLogout
	}
	var out StatusResponse
	err := c.Request(ctx, PathForceLogout, RequestOptions{Body: req, BearerToken: adminSessionID}, &out)
	return out, err
}
