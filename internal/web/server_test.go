package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authPortal/internal/download"
	"authPortal/internal/session"
	"authPortal/internal/testutil"
	"authPortal/models"
	"authPortal/repository"
)

const pdfBody = "%PDF-1.4 cheat sheet"

var testKey = []byte("web-test-key-web-test-key-web-te")

type testApp struct {
	t        *testing.T
	srv      *httptest.Server
	users    repository.UserRepositoryI
	sessions *session.Manager
	fileDir  string
}

type appOption func(*Deps)

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	name := "web_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	d := testutil.OpenInMemoryDB(t, name)
	users := repository.NewUserRepository(d)

	mgr, err := session.NewManager(users, session.NewMemoryStore(100, time.Hour), testKey, time.Hour)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cheat_sheet.pdf"), []byte(pdfBody), 0o644))
	src, err := download.NewLocalSource(dir, "cheat_sheet.pdf")
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	deps := Deps{
		Users:    users,
		Hasher:   testutil.NewHasher(),
		Sessions: mgr,
		Files:    src,
		DB:       d,
		Log:      testutil.DiscardLogger(),
	}
	for _, o := range opts {
		o(&deps)
	}
	s, err := NewServer(deps)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return &testApp{t: t, srv: ts, users: deps.Users, sessions: mgr, fileDir: dir}
}

// newClient returns a browser-like client with its own cookie jar that does
// not follow redirects, so tests can assert on them.
func (a *testApp) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type result struct {
	code     int
	location string
	body     string
	header   http.Header
}

func (a *testApp) do(c *http.Client, req *http.Request) result {
	a.t.Helper()
	resp, err := c.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return result{code: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body), header: resp.Header}
}

func (a *testApp) get(c *http.Client, path string) result {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.srv.URL+path, nil)
	require.NoError(a.t, err)
	return a.do(c, req)
}

func (a *testApp) post(c *http.Client, path string, form url.Values) result {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(c, req)
}

func (a *testApp) register(c *http.Client, email, password, name string) result {
	return a.post(c, "/register", url.Values{"email": {email}, "password": {password}, "name": {name}})
}

func (a *testApp) login(c *http.Client, email, password string) result {
	return a.post(c, "/login", url.Values{"email": {email}, "password": {password}})
}

func (a *testApp) sessionToken(c *http.Client) string {
	u, err := url.Parse(a.srv.URL)
	require.NoError(a.t, err)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == defaultCookieName {
			return ck.Value
		}
	}
	return ""
}

const loginRequired = "/login?notice=login-required"

func TestScenario_RegisterLoginLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	// Register -> straight into the secrets page.
	res := app.register(c, "alice@example.com", "pw123", "Alice")
	require.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, "/secrets", res.location)

	res = app.get(c, "/secrets")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "Welcome, Alice")

	// Registering the same email again -> login with a notice.
	res = app.register(c, "alice@example.com", "other", "Impostor")
	require.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, "/login?notice=already-registered", res.location)
	res = app.get(c, res.location)
	assert.Contains(t, res.body, "already signed up with that email, log in instead!")

	// Wrong password.
	res = app.login(c, "alice@example.com", "wrong")
	require.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, "/login?notice=wrong-password", res.location)
	res = app.get(c, res.location)
	assert.Contains(t, res.body, "Password incorrect, please try again.")

	// Correct password.
	res = app.login(c, "alice@example.com", "pw123")
	require.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, "/secrets", res.location)
	token := app.sessionToken(c)
	require.NotEmpty(t, token)

	// Logout -> home, and the secrets page is gone.
	res = app.get(c, "/logout")
	require.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, "/", res.location)
	assert.Empty(t, app.sessionToken(c))

	res = app.get(c, "/secrets")
	assert.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, loginRequired, res.location)

	// Replaying the previously valid token is refused as well.
	req, err := http.NewRequest(http.MethodGet, app.srv.URL+"/secrets", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: token})
	res = app.do(app.newClient(), req)
	assert.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, loginRequired, res.location)
	assert.NotContains(t, res.body, "Alice")
}

func TestRegister_DuplicateCreatesNoRowAndKeepsPriorSession(t *testing.T) {
	app := newTestApp(t)
	owner := app.newClient()
	other := app.newClient()

	require.Equal(t, "/secrets", app.register(owner, "bob@example.com", "pw", "Bob").location)

	res := app.register(other, "bob@example.com", "pw2", "Mallory")
	assert.Equal(t, "/login?notice=already-registered", res.location)
	assert.Empty(t, app.sessionToken(other))

	u, err := app.users.GetByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bob", u.Name)

	res = app.get(owner, "/secrets")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "Welcome, Bob")
}

func TestRegister_StoresHashNotPlaintext(t *testing.T) {
	app := newTestApp(t)
	app.register(app.newClient(), "carol@example.com", "plain-secret", "Carol")

	u, err := app.users.GetByEmail(context.Background(), "carol@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.NotContains(t, u.PasswordHash, "plain-secret")
	assert.True(t, strings.HasPrefix(u.PasswordHash, "pbkdf2:sha256:"))
}

func TestRegister_MissingFieldsBecomeEmptyStrings(t *testing.T) {
	app := newTestApp(t)

	res := app.post(app.newClient(), "/register", url.Values{})
	require.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, "/secrets", res.location)

	u, err := app.users.GetByEmail(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "", u.Name)

	res = app.post(app.newClient(), "/register", url.Values{})
	assert.Equal(t, "/login?notice=already-registered", res.location)
}

func TestLogin_UnknownEmail(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	res := app.login(c, "nobody@example.com", "pw")
	require.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, "/login?notice=unknown-email", res.location)
	assert.Empty(t, app.sessionToken(c))

	res = app.get(c, res.location)
	assert.Contains(t, res.body, "That email does not exist, please try again.")
}

func TestLogin_WrongPasswordNeverStartsSession(t *testing.T) {
	app := newTestApp(t)
	app.register(app.newClient(), "dave@example.com", "right", "Dave")

	c := app.newClient()
	for _, pw := range []string{"wrong", "", "Right", "right "} {
		res := app.login(c, "dave@example.com", pw)
		assert.Equal(t, "/login?notice=wrong-password", res.location, "password %q", pw)
		assert.Empty(t, app.sessionToken(c))
	}
	res := app.get(c, "/secrets")
	assert.Equal(t, loginRequired, res.location)
}

func TestLogin_ReplacesExistingSession(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	app.register(c, "erin@example.com", "pw", "Erin")
	first := app.sessionToken(c)
	require.NotEmpty(t, first)

	require.Equal(t, "/secrets", app.login(c, "erin@example.com", "pw").location)
	second := app.sessionToken(c)
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	u, err := app.sessions.Resolve(context.Background(), first)
	require.NoError(t, err)
	assert.Nil(t, u, "old session must be revoked")
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/secrets", "/download", "/logout"} {
		res := app.get(app.newClient(), path)
		assert.Equal(t, http.StatusFound, res.code, path)
		assert.Equal(t, loginRequired, res.location, path)
		assert.NotContains(t, res.body, pdfBody, path)
	}

	// A forged cookie is no better than none.
	req, err := http.NewRequest(http.MethodGet, app.srv.URL+"/download", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: "forged.token.value"})
	res := app.do(app.newClient(), req)
	assert.Equal(t, loginRequired, res.location)

	res = app.get(app.newClient(), loginRequired)
	assert.Contains(t, res.body, "Please log in to access this page.")
}

func TestStaleSessionCookieIsCleared(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()
	app.register(c, "kate@example.com", "pw", "Kate")
	token := app.sessionToken(c)
	require.NotEmpty(t, token)

	// Revoked elsewhere (another tab logged out, or the session expired).
	require.NoError(t, app.sessions.Logout(context.Background(), token))

	res := app.get(c, "/logout")
	assert.Equal(t, loginRequired, res.location)
	assert.Empty(t, app.sessionToken(c))

	// Logging in while still holding a dead cookie yields a working session.
	c2 := app.newClient()
	app.login(c2, "kate@example.com", "pw")
	live := app.sessionToken(c2)
	require.NoError(t, app.sessions.Logout(context.Background(), live))
	res = app.login(c2, "kate@example.com", "pw")
	assert.Equal(t, "/secrets", res.location)
	res = app.get(c2, "/secrets")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "Kate")
}

func TestDownload(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()
	app.register(c, "frank@example.com", "pw", "Frank")

	// Query parameters cannot pick another file.
	res := app.get(c, "/download?filename=../../etc/passwd")
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, pdfBody, res.body)
	assert.Equal(t, "application/pdf", res.header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename=cheat_sheet.pdf`, res.header.Get("Content-Disposition"))
}

func TestDownload_MissingFile(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()
	app.register(c, "gina@example.com", "pw", "Gina")

	require.NoError(t, os.Remove(filepath.Join(app.fileDir, "cheat_sheet.pdf")))
	res := app.get(c, "/download")
	assert.Equal(t, http.StatusNotFound, res.code)
}

func TestHome_ShowsLoginState(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	res := app.get(c, "/")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, `href="/register"`)
	assert.NotContains(t, res.body, `href="/logout"`)

	app.register(c, "hank@example.com", "pw", "Hank")
	res = app.get(c, "/")
	assert.Contains(t, res.body, `href="/logout"`)
	assert.NotContains(t, res.body, `href="/register"`)

	for _, path := range []string{"/login", "/register"} {
		res = app.get(c, path)
		assert.Equal(t, http.StatusOK, res.code, path)
		assert.Contains(t, res.body, `href="/logout"`, path)
	}
}

func TestNotices_OnlyKnownCodesRender(t *testing.T) {
	app := newTestApp(t)
	res := app.get(app.newClient(), "/login?notice=%3Cscript%3Ealert(1)%3C%2Fscript%3E")
	require.Equal(t, http.StatusOK, res.code)
	assert.NotContains(t, res.body, "<script>")
	assert.NotContains(t, res.body, `class="flash"`)
}

func TestSecrets_EscapesDisplayName(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()
	app.register(c, "ivy@example.com", "pw", "<b>Ivy</b>")

	res := app.get(c, "/secrets")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "&lt;b&gt;Ivy&lt;/b&gt;")
	assert.Equal(t, "no-store", res.header.Get("Cache-Control"))
}

func TestSessionCookieAttributes(t *testing.T) {
	app := newTestApp(t, func(d *Deps) { d.CookieSecure = true })
	res := app.register(app.newClient(), "jay@example.com", "pw", "Jay")

	resp := &http.Response{Header: res.header}
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	ck := cookies[0]
	assert.Equal(t, defaultCookieName, ck.Name)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, int(time.Hour.Seconds()), ck.MaxAge)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	res := app.get(app.newClient(), "/healthz")
	assert.Equal(t, http.StatusOK, res.code)
	assert.JSONEq(t, `{"status":"ok"}`, res.body)

	down := newTestApp(t, func(d *Deps) { d.DB = failingPinger{} })
	res = down.get(down.newClient(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, res.code)
	assert.JSONEq(t, `{"status":"unavailable"}`, res.body)
}

func TestCORS(t *testing.T) {
	app := newTestApp(t, func(d *Deps) { d.AllowedOrigins = []string{"http://portal.test"} })

	req, err := http.NewRequest(http.MethodOptions, app.srv.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://portal.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := app.do(app.newClient(), req)
	assert.Equal(t, "http://portal.test", res.header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", res.header.Get("Access-Control-Allow-Credentials"))

	req, err = http.NewRequest(http.MethodOptions, app.srv.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res = app.do(app.newClient(), req)
	assert.Empty(t, res.header.Get("Access-Control-Allow-Origin"))
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("db down") }

// scriptedUsers lets a test control each repository answer.
type scriptedUsers struct {
	getByEmail func(email string) (*models.User, error)
	create     func(email string) (*models.User, error)
}

func (s scriptedUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.getByEmail(email)
}

func (s scriptedUsers) Create(_ context.Context, email, _, _ string) (*models.User, error) {
	return s.create(email)
}

func (s scriptedUsers) GetByID(context.Context, int64) (*models.User, error) { return nil, nil }

func TestRegister_RaceLosesToUniqueIndex(t *testing.T) {
	// The pre-check sees no user, but the insert hits the unique index.
	users := scriptedUsers{
		getByEmail: func(string) (*models.User, error) { return nil, nil },
		create:     func(string) (*models.User, error) { return nil, repository.ErrDuplicateEmail },
	}
	app := newTestApp(t, func(d *Deps) { d.Users = users })
	c := app.newClient()

	res := app.register(c, "race@example.com", "pw", "Racer")
	assert.Equal(t, http.StatusFound, res.code)
	assert.Equal(t, "/login?notice=already-registered", res.location)
	assert.Empty(t, app.sessionToken(c))
}

func TestStorageFailuresAreGeneric500(t *testing.T) {
	boom := errors.New("database is locked: secret detail")
	users := scriptedUsers{
		getByEmail: func(string) (*models.User, error) { return nil, boom },
		create:     func(string) (*models.User, error) { return nil, boom },
	}
	app := newTestApp(t, func(d *Deps) { d.Users = users })

	for _, res := range []result{
		app.login(app.newClient(), "x@example.com", "pw"),
		app.register(app.newClient(), "x@example.com", "pw", "X"),
	} {
		assert.Equal(t, http.StatusInternalServerError, res.code)
		assert.NotContains(t, res.body, "secret detail")
	}
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	require.Error(t, err)
}
