package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"redis": func(t *testing.T) Store {
			t.Helper()
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis start: %v", err)
			}
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() {
				_ = rdb.Close()
				mr.Close()
			})
			return NewRedisStore(rdb, "test")
		},
		"sqlite": func(t *testing.T) Store {
			t.Helper()
			s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "session.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStoreSetGetClear(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			got, err := s.Get(ctx)
			if err != nil {
				t.Fatalf("get on empty store: %v", err)
			}
			if !got.Empty() {
				t.Fatalf("expected empty session, got %+v", got)
			}

			want := Session{ID: "A", Role: "admin", Username: "x", Email: "x@example.com"}
			if err := s.Set(ctx, want); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err = s.Get(ctx)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got != want {
				t.Fatalf("expected %+v, got %+v", want, got)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			got, err = s.Get(ctx)
			if err != nil {
				t.Fatalf("get after clear: %v", err)
			}
			if got != (Session{}) {
				t.Fatalf("expected zero session after clear, got %+v", got)
			}
		})
	}
}

func TestStoreSetDropsPriorTransientKeys(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			if err := s.Set(ctx, Session{ID: "A", Role: "user"}); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.SetTransient(ctx, "sessions_tab", "active"); err != nil {
				t.Fatalf("set transient: %v", err)
			}
			v, ok, err := s.Transient(ctx, "sessions_tab")
			if err != nil || !ok || v != "active" {
				t.Fatalf("expected transient value, got %q ok=%v err=%v", v, ok, err)
			}

			if err := s.Set(ctx, Session{ID: "B", Role: "user"}); err != nil {
				t.Fatalf("second set: %v", err)
			}
			if _, ok, err := s.Transient(ctx, "sessions_tab"); err != nil || ok {
				t.Fatalf("expected transient key dropped by Set, ok=%v err=%v", ok, err)
			}

			if err := s.SetTransient(ctx, "k", "v"); err != nil {
				t.Fatalf("set transient: %v", err)
			}
			if err := s.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if _, ok, err := s.Transient(ctx, "k"); err != nil || ok {
				t.Fatalf("expected transient key dropped by Clear, ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestStoreConcurrentReadersNeverSeePartialWrite(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			a := Session{ID: "A", Role: "admin", Username: "alice", Email: "a@example.com"}
			b := Session{ID: "B", Role: "user", Username: "bob", Email: "b@example.com"}
			if err := s.Set(ctx, a); err != nil {
				t.Fatalf("seed: %v", err)
			}

			const rounds = 50
			var wg sync.WaitGroup
			errs := make(chan string, rounds*2)

			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					next := a
					if i%2 == 0 {
						next = b
					}
					if err := s.Set(ctx, next); err != nil {
						errs <- "set: " + err.Error()
						return
					}
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					got, err := s.Get(ctx)
					if err != nil {
						errs <- "get: " + err.Error()
						return
					}
					if got != a && got != b {
						errs <- "observed mixed session"
						return
					}
				}
			}()
			wg.Wait()
			close(errs)

			for msg := range errs {
				t.Fatal(msg)
			}
		})
	}
}

func TestRedisStoreKeysUsePrefix(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStore(rdb, "")
	if err := s.Set(context.Background(), Session{ID: "sid-1", Role: "user", Username: "alice"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mr.HGet("gs:session", KeySessionID); got != "sid-1" {
		t.Fatalf("expected session id under default prefix, got %q", got)
	}
	if got := mr.HGet("gs:session", KeyUsername); got != "alice" {
		t.Fatalf("expected username under default prefix, got %q", got)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	s := NewRedisStore(rdb, "gs")
	mr.Close()

	if _, err := s.Get(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
