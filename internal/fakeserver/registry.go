package fakeserver

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errSessionNotFound = errors.New("session not found")

type activeSession struct {
	ID       string
	Username string
	Role     string
	Email    string
}

// registry records which session each account holds.
//
//	<prefix>:user:<username>  -> session id
//	<prefix>:sid:<session id> -> hash{username, role, email}
type registry struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func (r *registry) userKey(username string) string { return r.prefix + ":user:" + username }
func (r *registry) sidKey(sid string) string       { return r.prefix + ":sid:" + sid }

// claim stores s unless the account already holds a live session. It
// reports false when the account is taken.
func (r *registry) claim(ctx context.Context, s activeSession) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.userKey(s.Username), s.ID, r.ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.sidKey(s.ID), map[string]any{
			"username": s.Username,
			"role":     s.Role,
			"email":    s.Email,
		})
		p.Expire(ctx, r.sidKey(s.ID), r.ttl)
		return nil
	})
	return err == nil, err
}

// replace stores s and returns the session it displaced, if any.
func (r *registry) replace(ctx context.Context, s activeSession) (string, error) {
	prev, err := r.rdb.Get(ctx, r.userKey(s.Username)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if prev != "" {
			p.Del(ctx, r.sidKey(prev))
		}
		p.Set(ctx, r.userKey(s.Username), s.ID, r.ttl)
		p.HSet(ctx, r.sidKey(s.ID), map[string]any{
			"username": s.Username,
			"role":     s.Role,
			"email":    s.Email,
		})
		p.Expire(ctx, r.sidKey(s.ID), r.ttl)
		return nil
	})
	return prev, err
}

func (r *registry) lookup(ctx context.Context, sid string) (activeSession, error) {
	m, err := r.rdb.HGetAll(ctx, r.sidKey(sid)).Result()
	if err != nil {
		return activeSession{}, err
	}
	if len(m) == 0 {
		return activeSession{}, errSessionNotFound
	}
	return activeSession{ID: sid, Username: m["username"], Role: m["role"], Email: m["email"]}, nil
}

func (r *registry) active(ctx context.Context, username string) (string, error) {
	sid, err := r.rdb.Get(ctx, r.userKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return sid, err
}

// revoke deletes sid and, if it is still the account's live session, the
// account's pointer to it.
func (r *registry) revoke(ctx context.Context, sid string) (activeSession, error) {
	s, err := r.lookup(ctx, sid)
	if err != nil {
		return activeSession{}, err
	}
	current, err := r.active(ctx, s.Username)
	if err != nil {
		return activeSession{}, err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.sidKey(sid))
		if current == sid {
			p.Del(ctx, r.userKey(s.Username))
		}
		return nil
	})
	return s, err
}

func (r *registry) setRole(ctx context.Context, sid, role string) error {
	return r.rdb.HSet(ctx, r.sidKey(sid), "role", role).Err()
}
