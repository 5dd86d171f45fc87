package portalapp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSessionKey = "0123456789abcdef0123456789abcdef"

func requestWithSession(t *testing.T, m *SessionManager, token, username, host string) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	seed := httptest.NewRequest(http.MethodPost, "/login", nil)
	if err := m.Establish(rec, seed, token, username, host); err != nil {
		t.Fatalf("Establish: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/modules/paycodes", nil)
	for _, cookie := range rec.Result().Cookies() {
		r.AddCookie(cookie)
	}
	return r
}

func TestSessionRoundTrip(t *testing.T) {
	m := NewSessionManager(testSessionKey, time.Hour)
	r := requestWithSession(t, m, "tok-1", "ops", "https://wf.example.com")

	sess, ok := m.Current(r)
	if !ok {
		t.Fatalf("expected live session")
	}
	if sess.Token != "tok-1" || sess.Username != "ops" || sess.Host != "https://wf.example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestSessionExpiryReadsAsNoSession(t *testing.T) {
	issuer := NewSessionManager(testSessionKey, time.Hour)
	r := requestWithSession(t, issuer, "tok-1", "ops", "https://wf.example.com")

	strict := NewSessionManager(testSessionKey, time.Nanosecond)
	time.Sleep(time.Millisecond)
	if _, ok := strict.Current(r); ok {
		t.Fatalf("lapsed TTL must read as no session")
	}
}

func TestNoCookieMeansNoSession(t *testing.T) {
	m := NewSessionManager(testSessionKey, time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/modules/paycodes", nil)
	if _, ok := m.Current(r); ok {
		t.Fatalf("request without cookie must have no session")
	}
}

func TestUploadHashGuard(t *testing.T) {
	m := NewSessionManager(testSessionKey, time.Hour)
	r := requestWithSession(t, m, "tok-1", "ops", "https://wf.example.com")

	if m.UploadSeen(r, "paycodes", "hash-a") {
		t.Fatalf("fresh session should not have seen any upload")
	}

	rec := httptest.NewRecorder()
	if err := m.MarkUpload(rec, r, "paycodes", "hash-a"); err != nil {
		t.Fatalf("MarkUpload: %v", err)
	}
	marked := httptest.NewRequest(http.MethodPost, "/modules/paycodes/upload", nil)
	for _, cookie := range rec.Result().Cookies() {
		marked.AddCookie(cookie)
	}

	if !m.UploadSeen(marked, "paycodes", "hash-a") {
		t.Fatalf("identical content should be flagged")
	}
	if m.UploadSeen(marked, "paycodes", "hash-b") {
		t.Fatalf("different content should pass")
	}
	if m.UploadSeen(marked, "shift_templates", "hash-a") {
		t.Fatalf("the guard is per module")
	}
}

func TestClearSession(t *testing.T) {
	m := NewSessionManager(testSessionKey, time.Hour)
	r := requestWithSession(t, m, "tok-1", "ops", "https://wf.example.com")

	rec := httptest.NewRecorder()
	if err := m.Clear(rec, r); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 || cookies[0].MaxAge != -1 {
		t.Fatalf("clearing must expire the cookie: %+v", cookies)
	}
}
