package portalapp

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const sessionCookieName = "configportal_session"

// Session is the authenticated state carried in the browser cookie.
// The bearer token lives only here; the server keeps nothing.
type Session struct {
	Token    string
	Username string
	Host     string
	IssuedAt time.Time
}

type SessionManager struct {
	store *sessions.CookieStore
	ttl   time.Duration
}

// NewSessionManager builds the cookie store. With no configured key a
// random one is generated, which invalidates sessions on restart; fine
// for an internal tool, set SESSION_KEY to survive restarts.
func NewSessionManager(key string, ttl time.Duration) *SessionManager {
	secret := []byte(key)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl / time.Second),
	}
	return &SessionManager{store: store, ttl: ttl}
}

// Current returns the live session, or false when there is none or the
// TTL has lapsed. An expired session reads exactly like no session.
func (m *SessionManager) Current(r *http.Request) (*Session, bool) {
	sess, err := m.store.Get(r, sessionCookieName)
	if err != nil || sess.IsNew {
		return nil, false
	}
	token, _ := sess.Values["token"].(string)
	if token == "" {
		return nil, false
	}
	issuedUnix, _ := sess.Values["issued_at"].(int64)
	issued := time.Unix(issuedUnix, 0)
	if time.Since(issued) > m.ttl {
		return nil, false
	}
	username, _ := sess.Values["username"].(string)
	host, _ := sess.Values["host"].(string)
	return &Session{Token: token, Username: username, Host: host, IssuedAt: issued}, true
}

func (m *SessionManager) Establish(w http.ResponseWriter, r *http.Request, token, username, host string) error {
	sess, _ := m.store.Get(r, sessionCookieName)
	sess.Values["token"] = token
	sess.Values["username"] = username
	sess.Values["host"] = host
	sess.Values["issued_at"] = time.Now().Unix()
	return sess.Save(r, w)
}

func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, sessionCookieName)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// UploadSeen reports whether this exact file content was already
// processed for the module in this session.
func (m *SessionManager) UploadSeen(r *http.Request, slug, hash string) bool {
	sess, err := m.store.Get(r, sessionCookieName)
	if err != nil {
		return false
	}
	previous, _ := sess.Values["upload_hash_"+slug].(string)
	return previous == hash
}

func (m *SessionManager) MarkUpload(w http.ResponseWriter, r *http.Request, slug, hash string) error {
	sess, _ := m.store.Get(r, sessionCookieName)
	sess.Values["upload_hash_"+slug] = hash
	return sess.Save(r, w)
}
