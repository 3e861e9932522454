package oauth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/config"
	"github.com/evcraddock/johap/internal/db"
	"github.com/evcraddock/johap/internal/union"
)

type flowFixture struct {
	mux      *http.ServeMux
	sessions *auth.SessionStore
	users    *auth.AuthUserStore
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeResp(w, `{"access_token":"at-1"}`)
		case "/me":
			writeResp(w, `{"resultcode":"00","response":{"id":"naver-1","email":"m@naver.com","name":"홍길동"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(provider.Close)

	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})

	unions := union.NewRepository(d)
	if _, err := unions.Create("hangang", "한강조합"); err != nil {
		t.Fatalf("create union: %v", err)
	}

	providers := Providers(config.Config{Naver: config.ProviderConfig{ClientID: "id", ClientSecret: "secret"}})
	providers["naver"].SetTestURLs(provider.URL)

	f := &flowFixture{
		sessions: auth.NewSessionStore(d, false),
		users:    auth.NewAuthUserStore(d, ""),
	}
	h := NewHandler(providers, NewStateSigner("test-secret"), unions, f.users, f.sessions, "http://localhost:8080")

	f.mux = http.NewServeMux()
	f.mux.HandleFunc("GET /auth/{provider}/start", h.Start)
	f.mux.HandleFunc("GET /auth/{provider}/callback", h.Callback)
	return f
}

func (f *flowFixture) serve(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

// start runs the start step and returns the state and nonce cookie.
func (f *flowFixture) start(t *testing.T, query string) (string, *http.Cookie) {
	t.Helper()
	w := f.serve(httptest.NewRequest("GET", "/auth/naver/start?"+query, nil))
	if w.Code != http.StatusFound {
		t.Fatalf("start status = %d, want %d (%s)", w.Code, http.StatusFound, w.Body.String())
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Query().Get("redirect_uri") != "http://localhost:8080/auth/naver/callback" {
		t.Errorf("redirect_uri = %q", loc.Query().Get("redirect_uri"))
	}

	for _, c := range w.Result().Cookies() {
		if c.Name == nonceCookieName {
			return loc.Query().Get("state"), c
		}
	}
	t.Fatal("expected nonce cookie")
	return "", nil
}

func TestLoginFlow(t *testing.T) {
	f := newFlowFixture(t)
	state, nonce := f.start(t, "slug=hangang&next=/hangang/notices")

	r := httptest.NewRequest("GET", "/auth/naver/callback?code=c&state="+url.QueryEscape(state), nil)
	r.AddCookie(nonce)
	w := f.serve(r)

	if w.Code != http.StatusFound {
		t.Fatalf("callback status = %d, want %d (%s)", w.Code, http.StatusFound, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != "/hangang/notices" {
		t.Errorf("location = %q, want /hangang/notices", got)
	}

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "johap_session" {
			session = c
		}
	}
	if session == nil {
		t.Fatal("expected session cookie")
	}

	check := httptest.NewRequest("GET", "/", nil)
	check.AddCookie(session)
	authUserID, err := f.sessions.Validate(check)
	if err != nil {
		t.Fatalf("validate session: %v", err)
	}
	u, err := f.users.Get(authUserID)
	if err != nil {
		t.Fatalf("get auth user: %v", err)
	}
	if u.Email != "m@naver.com" || u.DisplayName != "홍길동" {
		t.Errorf("auth user = %+v", u)
	}
}

func TestLoginFlowUnsafeNextFallsBack(t *testing.T) {
	f := newFlowFixture(t)
	state, nonce := f.start(t, "slug=hangang&next="+url.QueryEscape("//evil.example.com"))

	r := httptest.NewRequest("GET", "/auth/naver/callback?code=c&state="+url.QueryEscape(state), nil)
	r.AddCookie(nonce)
	w := f.serve(r)

	if got := w.Header().Get("Location"); got != "/hangang" {
		t.Errorf("location = %q, want /hangang", got)
	}
}

func TestStartErrors(t *testing.T) {
	f := newFlowFixture(t)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown provider", "/auth/google/start?slug=hangang", http.StatusNotFound},
		{"missing slug", "/auth/naver/start", http.StatusBadRequest},
		{"unknown union", "/auth/naver/start?slug=nowhere", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.serve(httptest.NewRequest("GET", tt.target, nil)); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCallbackRejectsBadState(t *testing.T) {
	f := newFlowFixture(t)
	state, nonce := f.start(t, "slug=hangang")

	tests := []struct {
		name   string
		query  string
		cookie *http.Cookie
	}{
		{"missing nonce cookie", "code=c&state=" + url.QueryEscape(state), nil},
		{"wrong nonce", "code=c&state=" + url.QueryEscape(state), &http.Cookie{Name: nonceCookieName, Value: "other"}},
		{"forged state", "code=c&state=forged", nonce},
		{"missing code", "state=" + url.QueryEscape(state), nonce},
		{"provider error", "error=access_denied", nonce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/auth/naver/callback?"+tt.query, nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}
			if w := f.serve(r); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want bool
	}{
		{"/hangang", true},
		{"/", true},
		{"/hangang/notices?id=1", true},
		{"", false},
		{"hangang", false},
		{"//evil.example.com", false},
		{"/\\evil.example.com", false},
		{"https://evil.example.com", false},
		{"/a\r\nSet-Cookie: x", false},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			if got := SafeNext(tt.next); got != tt.want {
				t.Errorf("SafeNext(%q) = %v, want %v", tt.next, got, tt.want)
			}
		})
	}
}
