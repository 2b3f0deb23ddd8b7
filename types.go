package goSession

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/goSession/session"
)

// Known roles.
const (
	RoleAdmin    = "admin"
	RoleReseller = "reseller"
	RoleUser     = "user"
)

// Page identifies a navigation target.
type Page string

const (
	PageLogin    Page = "login"
	PageAdmin    Page = "admin"
	PageReseller Page = "reseller"
	PageUser     Page = "user"
)

// PageForRole maps a role to its landing page. Unknown roles land on PageUser.
func PageForRole(role string) Page {
	switch role {
	case RoleAdmin:
		return PageAdmin
	case RoleReseller:
		return PageReseller
	default:
		return PageUser
	}
}

// Credentials are submitted to Login.
type Credentials struct {
	Username string
	Password string
}

type LoginResult struct {
	Session session.Session
	Page    Page
}

type BootstrapResult struct {
	// Session is zero when the caller ends up logged out.
	Session session.Session
	Page    Page
	// Redirected reports whether Navigate was called.
	Redirected bool
	// RoleCorrected reports that the server's role replaced the stored one.
	RoleCorrected bool
	// Validated is false when the server could not be reached.
	Validated bool
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Navigator performs redirects.
type Navigator interface {
	Navigate(ctx context.Context, page Page)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, page Page)

func (f NavigatorFunc) Navigate(ctx context.Context, page Page) { f(ctx, page) }

// Notifier shows notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Views reports which data views are on screen and reloads them on request.
type Views interface {
	SessionsVisible() bool
	ServicesVisible() bool
	RefreshSessions(ctx context.Context) error
	RefreshServices(ctx context.Context) error
}

type logNavigator struct{ log logr.Logger }

func (n logNavigator) Navigate(_ context.Context, page Page) {
	n.log.Info("navigate", "page", string(page))
}

type logNotifier struct{ log logr.Logger }

func (n logNotifier) Notify(_ context.Context, notice Notice) {
	n.log.Info("notice", "level", string(notice.Level), "message", notice.Message)
}

type noViews struct{}

func (noViews) SessionsVisible() bool                 { return false }
func (noViews) ServicesVisible() bool                 { return false }
func (noViews) RefreshSessions(context.Context) error { return nil }
func (noViews) RefreshServices(context.Context) error { return nil }
