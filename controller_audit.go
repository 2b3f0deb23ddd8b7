package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/realtime"
	"github.com/MrEthical07/goSession/session"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginConflict        = "login_conflict"
	auditEventLogout               = "logout"
	auditEventForcedLogoutApplied  = "forced_logout_applied"
	auditEventForcedLogoutIgnored  = "forced_logout_ignored"
	auditEventAdminForceLogout     = "admin_force_logout"
	auditEventRoleMismatch         = "role_mismatch"
	auditEventSessionInvalidated   = "session_invalidated"
	auditEventRealtimeReconnecting = "realtime_reconnecting"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrAlreadyLoggedIn    AuditErrorCode = "already_logged_in"
	auditErrNetwork            AuditErrorCode = "network_unavailable"
	auditErrLoginFailed        AuditErrorCode = "login_failed"
	auditErrNotAcknowledged    AuditErrorCode = "logout_not_acknowledged"
	auditErrNoSession          AuditErrorCode = "no_session"
	auditErrNotPermitted       AuditErrorCode = "not_permitted"
	auditErrRejected           AuditErrorCode = "rejected"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrCanceled           AuditErrorCode = "canceled"
	auditErrMalformed          AuditErrorCode = "malformed_payload"
	auditErrRequestFailed      AuditErrorCode = "request_failed"
	auditErrInternal           AuditErrorCode = "internal_error"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
)

func (c *Controller) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	sess session.Session,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: c.now().UTC(),
		EventType: eventType,
		SessionID: realtime.Redact(sess.ID),
		Username:  sess.Username,
		Role:      sess.Role,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAlreadyLoggedIn):
		return auditErrAlreadyLoggedIn
	case errors.Is(err, ErrCannotConnect),
		errors.Is(err, apiclient.ErrNetworkUnavailable):
		return auditErrNetwork
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginFailed):
		return auditErrLoginFailed
	case errors.Is(err, ErrLogoutNotAcknowledged):
		return auditErrNotAcknowledged
	case errors.Is(err, ErrNoSession):
		return auditErrNoSession
	case errors.Is(err, ErrNotPermitted):
		return auditErrNotPermitted
	case errors.Is(err, ErrForceLogoutRejected):
		return auditErrRejected
	case errors.Is(err, session.ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.Is(err, apiclient.ErrMalformedPayload):
		return auditErrMalformed
	}

	var failed *apiclient.RequestFailed
	if errors.As(err, &failed) {
		return auditErrRequestFailed
	}
	return auditErrInternal
}
