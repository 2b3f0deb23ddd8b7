package goSession

import "errors"

var (
	// ErrAlreadyLoggedIn is returned by Login when the account holds a live
	// session elsewhere (HTTP 403).
	ErrAlreadyLoggedIn = errors.New("account already logged in elsewhere")
	// ErrCannotConnect is returned by Login when the server is unreachable.
	ErrCannotConnect = errors.New("cannot connect to server")
	// ErrLoginFailed covers every other rejected login.
	ErrLoginFailed = errors.New("login failed")
	// ErrLogoutNotAcknowledged is returned by Logout when the server did not
	// confirm the logout. Local state is cleared regardless.
	ErrLogoutNotAcknowledged = errors.New("logout not acknowledged by server")
	// ErrNoSession is returned by operations that need a stored session.
	ErrNoSession = errors.New("no active session")
	// ErrNotPermitted is returned by ForceLogoutUser for roles other than
	// admin and reseller.
	ErrNotPermitted = errors.New("role not permitted to force logout")
	// ErrForceLogoutRejected is returned when the server refuses a force logout.
	ErrForceLogoutRejected = errors.New("force logout rejected by server")
	// ErrInvalidCredentials is returned by Login for an empty username or password.
	ErrInvalidCredentials = errors.New("username and password are required")
)
