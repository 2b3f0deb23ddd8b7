package apiclient

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Jar is an http.CookieJar that can be emptied in one call.
type Jar struct {
	mu    sync.RWMutex
	inner *cookiejar.Jar
}

// NewJar returns an empty jar using the public suffix list.
func NewJar() *Jar {
	j := &Jar{}
	j.inner = newInnerJar()
	return j
}

func newInnerJar() *cookiejar.Jar {
	// cookiejar.New always returns a nil error
	inner, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return inner
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	inner := j.inner
	j.mu.RUnlock()
	inner.SetCookies(u, cookies)
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	inner := j.inner
	j.mu.RUnlock()
	return inner.Cookies(u)
}

// Reset drops every cookie.
func (j *Jar) Reset() {
	j.mu.Lock()
	j.inner = newInnerJar()
	j.mu.Unlock()
}
