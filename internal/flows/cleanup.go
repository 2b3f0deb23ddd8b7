package flows

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/goSession/session"
)

// CleanupDeps captures the local teardown shared by logout, forced logout
// and invalidated sessions.
type CleanupDeps struct {
	Store        session.Store
	ClearCookies func()
	Navigate     func(ctx context.Context)
	Logger       logr.Logger
}

// RunCleanup clears the store and cookies, then navigates to the login page.
// Store failures are logged and do not stop the remaining steps.
func RunCleanup(ctx context.Context, deps CleanupDeps) {
	if deps.Store != nil {
		if err := deps.Store.Clear(ctx); err != nil {
			deps.Logger.Error(err, "clear session store during cleanup")
		}
	}
	if deps.ClearCookies != nil {
		deps.ClearCookies()
	}
	if deps.Navigate != nil {
		deps.Navigate(ctx)
	}
}
