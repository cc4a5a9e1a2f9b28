// Package session keeps the session credential in a single HTTP cookie.
package session

import (
	"net/http"
	"time"
)

// CookieName is the name of the cookie holding the session credential
const CookieName = "session"

// Jar reads and writes the session cookie of one request/response pair
type Jar interface {
	// Issue sets the cookie, replacing any previous value, for ttl
	Issue(credential string, ttl time.Duration)
	// Read returns the credential sent by the client or issued earlier in this request
	Read() (string, bool)
	// Clear deletes the cookie on the client
	Clear()
}

var _ Jar = (*CookieJar)(nil)

type CookieJar struct {
	w       http.ResponseWriter
	r       *http.Request
	secure  bool
	pending *string // value written during this request; "" after Clear
}

// NewCookieJar binds a jar to one request. secure adds the Secure attribute and should only be
// set in production-equivalent environments.
func NewCookieJar(w http.ResponseWriter, r *http.Request, secure bool) *CookieJar {
	return &CookieJar{w: w, r: r, secure: secure}
}

func (j *CookieJar) Issue(credential string, ttl time.Duration) {
	http.SetCookie(j.w, j.cookie(credential, int(ttl/time.Second)))
	j.pending = &credential
}

func (j *CookieJar) Read() (string, bool) {
	if j.pending != nil {
		return *j.pending, *j.pending != ""
	}
	if j.r == nil {
		return "", false
	}
	cookie, err := j.r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (j *CookieJar) Clear() {
	http.SetCookie(j.w, j.cookie("", -1))
	cleared := ""
	j.pending = &cleared
}

func (j *CookieJar) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// MemoryJar is a Jar without HTTP, for callers that are not serving a request
type MemoryJar struct {
	Value  string
	MaxAge time.Duration
	Issued int // number of Issue calls
}

var _ Jar = (*MemoryJar)(nil)

func (j *MemoryJar) Issue(credential string, ttl time.Duration) {
	j.Value = credential
	j.MaxAge = ttl
	j.Issued++
}

func (j *MemoryJar) Read() (string, bool) {
	return j.Value, j.Value != ""
}

func (j *MemoryJar) Clear() {
	j.Value = ""
	j.MaxAge = 0
}
