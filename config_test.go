package goSession

import (
	"testing"
	"time"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/realtime"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Realtime.ReconnectDelay != 5*time.Second {
		t.Fatalf("expected 5s reconnect delay, got %v", cfg.Realtime.ReconnectDelay)
	}
	if cfg.Logout.MaxAttempts != 3 || cfg.Logout.RetryDelay != time.Second || !cfg.Logout.FallbackOnNotFound {
		t.Fatalf("unexpected logout defaults %+v", cfg.Logout)
	}
	if cfg.BaseURL() != apiclient.DefaultFallbackBaseURL {
		t.Fatalf("unexpected base URL %q", cfg.BaseURL())
	}
}

func TestConfigBaseURLPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.RuntimeBaseURL = "https://runtime.example.com/"
	if got := cfg.BaseURL(); got != "https://runtime.example.com" {
		t.Fatalf("runtime URL not used: %q", got)
	}
	cfg.API.PlatformBaseURL = "http://platform.local:8080"
	if got := cfg.BaseURL(); got != "http://platform.local:8080" {
		t.Fatalf("platform override not used: %q", got)
	}
	ws, err := cfg.RealtimeURL()
	if err != nil || ws != "ws://platform.local:8080/ws" {
		t.Fatalf("unexpected realtime URL %q err=%v", ws, err)
	}
	cfg.Realtime.URL = "wss://push.example.com/socket"
	if ws, _ := cfg.RealtimeURL(); ws != "wss://push.example.com/socket" {
		t.Fatalf("explicit realtime URL ignored: %q", ws)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"relative base":     func(c *Config) { c.API.FallbackBaseURL = "/api" },
		"zero timeout":      func(c *Config) { c.API.Timeout = 0 },
		"zero reconnect":    func(c *Config) { c.Realtime.ReconnectDelay = 0 },
		"negative max":      func(c *Config) { c.Realtime.MaxReconnectDelay = -time.Second },
		"unknown style":     func(c *Config) { c.Realtime.RegisterStyle = realtime.RegisterStyle(9) },
		"negative redirect": func(c *Config) { c.Login.RedirectDelay = -time.Millisecond },
		"no attempts":       func(c *Config) { c.Logout.MaxAttempts = 0 },
		"audit buffer":      func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New()
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestPageForRole(t *testing.T) {
	for role, want := range map[string]Page{
		RoleAdmin:    PageAdmin,
		RoleReseller: PageReseller,
		RoleUser:     PageUser,
		"":           PageUser,
		"auditor":    PageUser,
	} {
		if got := PageForRole(role); got != want {
			t.Fatalf("PageForRole(%q) = %s, want %s", role, got, want)
		}
	}
}

func TestAuditErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrAlreadyLoggedIn, auditErrAlreadyLoggedIn},
		{apiclient.ErrNetworkUnavailable, auditErrNetwork},
		{&apiclient.RequestFailed{Status: 500}, auditErrRequestFailed},
		{ErrNotPermitted, auditErrNotPermitted},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
