package session

import "errors"

// Persisted key names. All four are written and removed together.
const (
	KeySessionID = "session_id"
	KeyRole      = "user_role"
	KeyEmail     = "user_email"
	KeyUsername  = "username"
)

// ErrStoreUnavailable wraps backend failures (Redis, SQLite).
var ErrStoreUnavailable = errors.New("session store unavailable")

// Session is the unit of identity for a logged-in principal. The zero value
// means logged out.
type Session struct {
	ID       string
	Role     string
	Username string
	Email    string
}

// Empty reports whether no session identifier is held.
func (s Session) Empty() bool {
	return s.ID == ""
}

func (s Session) fields() map[string]string {
	return map[string]string{
		KeySessionID: s.ID,
		KeyRole:      s.Role,
		KeyEmail:     s.Email,
		KeyUsername:  s.Username,
	}
}

func fromFields(m map[string]string) Session {
	if len(m) == 0 {
		return Session{}
	}
	return Session{
		ID:       m[KeySessionID],
		Role:     m[KeyRole],
		Email:    m[KeyEmail],
		Username: m[KeyUsername],
	}
}
