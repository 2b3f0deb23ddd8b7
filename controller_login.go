package goSession

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

const (
	msgAlreadyLoggedIn = "This account is already logged in on another device."
	msgCannotConnect   = "Cannot connect to server. Please check your connection and try again."
	msgLoginFailed     = "Login failed. Please try again."
)

// Login authenticates, replaces the stored session, opens the realtime
// channel and, after Login.RedirectDelay, navigates to the role's page.
//
// On failure the stored session is unchanged and a notice is shown. The
// returned error is ErrAlreadyLoggedIn, ErrCannotConnect, ErrLoginFailed or
// the context's error.
func (c *Controller) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		c.notify(ctx, NoticeError, ErrInvalidCredentials.Error())
		return nil, ErrInvalidCredentials
	}

	res, err := flows.RunLogin(ctx, username, creds.Password, c.deps.Login)
	if err != nil {
		c.loginFailed(ctx, username, res, err)
		return nil, err
	}

	c.metricInc(MetricLoginSuccess)
	c.emitAudit(ctx, auditEventLoginSuccess, true, res.Session, nil, nil)
	c.log.Info("logged in", "username", res.Session.Username, "role", res.Session.Role)

	page := PageForRole(res.Session.Role)
	if d := c.config.Login.RedirectDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return &LoginResult{Session: res.Session, Page: page}, ctx.Err()
		}
	}
	c.navigate(ctx, page)
	return &LoginResult{Session: res.Session, Page: page}, nil
}

func (c *Controller) loginFailed(ctx context.Context, username string, res flows.LoginResult, err error) {
	attempted := res.Session
	attempted.Username = username

	switch {
	case errors.Is(err, ErrAlreadyLoggedIn):
		c.metricInc(MetricLoginConflict)
		c.emitAudit(ctx, auditEventLoginConflict, false, attempted, err, nil)
		c.notify(ctx, NoticeWarning, msgAlreadyLoggedIn)
	case errors.Is(err, ErrCannotConnect):
		c.metricInc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLoginFailure, false, attempted, err, nil)
		c.notify(ctx, NoticeError, msgCannotConnect)
	case errors.Is(err, ErrLoginFailed):
		c.metricInc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLoginFailure, false, attempted, err, nil)
		msg := res.Message
		if msg == "" {
			msg = msgLoginFailed
		}
		c.notify(ctx, NoticeError, msg)
	default:
		// canceled, or the store failed after the server accepted the login
		c.metricInc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLoginFailure, false, attempted, err, nil)
		c.log.Error(err, "login aborted", "username", username)
	}
}
