package identity

import (
	"net/http"
	"sync"
)

// CookieJar reads and writes the cookies of the current navigation
type CookieJar interface {
	Cookie(name string) (string, bool)
	SetCookie(cookie *http.Cookie)
}

// MemoryJar is an in-process CookieJar. It records every write so callers can
// inspect what would have been sent to the browser.
type MemoryJar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
	written []*http.Cookie
}

// NewMemoryJar creates a jar seeded with name/value pairs
func NewMemoryJar(values map[string]string) *MemoryJar {
	j := &MemoryJar{cookies: make(map[string]*http.Cookie, len(values))}
	for name, value := range values {
		j.cookies[name] = &http.Cookie{Name: name, Value: value}
	}
	return j
}

func (j *MemoryJar) Cookie(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok {
		return "", false
	}
	return c.Value, true
}

func (j *MemoryJar) SetCookie(cookie *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cookies == nil {
		j.cookies = make(map[string]*http.Cookie)
	}
	copied := *cookie
	j.cookies[cookie.Name] = &copied
	j.written = append(j.written, &copied)
}

// Written returns the cookies set through the jar, in order
func (j *MemoryJar) Written() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*http.Cookie(nil), j.written...)
}

// RequestJar reads cookies from an incoming request and writes them to the
// response. Cookies written during the request are visible to later reads.
type RequestJar struct {
	r *http.Request
	w http.ResponseWriter

	mu  sync.Mutex
	set map[string]string
}

// NewRequestJar creates a jar over one request/response pair
func NewRequestJar(w http.ResponseWriter, r *http.Request) *RequestJar {
	return &RequestJar{r: r, w: w, set: make(map[string]string)}
}

func (j *RequestJar) Cookie(name string) (string, bool) {
	j.mu.Lock()
	value, ok := j.set[name]
	j.mu.Unlock()
	if ok {
		return value, true
	}
	if j.r == nil {
		return "", false
	}
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (j *RequestJar) SetCookie(cookie *http.Cookie) {
	j.mu.Lock()
	j.set[cookie.Name] = cookie.Value
	j.mu.Unlock()
	if j.w != nil {
		http.SetCookie(j.w, cookie)
	}
}
