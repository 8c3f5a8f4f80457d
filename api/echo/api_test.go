package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	echolib "github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/onenote/domain"
	apperrors "go.pilab.hu/onenote/errors"
	"go.pilab.hu/onenote/internal/notesapi"
	"go.pilab.hu/onenote/internal/storage"
	"go.pilab.hu/onenote/log"
	"go.pilab.hu/onenote/services"
	"go.pilab.hu/onenote/session"
)

// fakeProvider is a scriptable identity provider for handler tests.
type fakeProvider struct {
	listener  func(*domain.Principal)
	current   *domain.Principal
	signInErr error
	updateErr error
}

func (f *fakeProvider) CreateAccount(_ context.Context, email, _ string) (*domain.Principal, error) {
	p := &domain.Principal{UserID: "new-user", Email: email, IDToken: "tok"}
	f.current = p
	return p, nil
}

func (f *fakeProvider) SignIn(_ context.Context, email, _ string) (*domain.Principal, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	p := &domain.Principal{UserID: "uid-1", Email: email, DisplayName: "Jane", IDToken: "tok"}
	f.current = p
	if f.listener != nil {
		f.listener(p)
	}
	return p, nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.current = nil
	if f.listener != nil {
		f.listener(nil)
	}
	return nil
}

func (f *fakeProvider) UpdateDisplayName(_ context.Context, _ *domain.Principal, name string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.current != nil {
		f.current.DisplayName = name
	}
	return nil
}

func (f *fakeProvider) CurrentPrincipal() *domain.Principal { return f.current }

func (f *fakeProvider) AuthStateChanges(listener func(*domain.Principal)) func() {
	f.listener = listener
	return func() {}
}

func (f *fakeProvider) Start(context.Context) {}

type testApp struct {
	e        *echolib.Echo
	provider *fakeProvider
	store    *session.Store
	repo     *storage.MemoryNoteRepository
}

func newTestApp(t *testing.T, notesHandler http.HandlerFunc) *testApp {
	t.Helper()

	if notesHandler == nil {
		notesHandler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"pdf_path":"/static/notes/out.pdf"}`))
		}
	}
	backend := httptest.NewServer(notesHandler)
	t.Cleanup(backend.Close)

	logger := log.NewZerologAdapter(zerolog.Disabled, false)
	provider := &fakeProvider{}
	repo := storage.NewMemoryNoteRepository()
	store := session.NewStore(provider, repo, logger)
	store.Subscribe(context.Background())

	flow := services.NewAuthFlow(provider, store, logger)
	api := NewWebAPI(store, flow, provider, repo, notesapi.NewClient(backend.URL), logger)

	e := echolib.New()
	api.RegisterRoutes(e)

	return &testApp{e: e, provider: provider, store: store, repo: repo}
}

func (a *testApp) get(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echolib.HeaderContentType, echolib.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) signIn(t *testing.T) {
	t.Helper()
	rec := a.postForm("/login", url.Values{
		"email":    {"jane@example.com"},
		"password": {"secret1"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestDashboardRedirectsWhenSignedOut(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil) // resolved, signed out

	rec := app.get("/dashboard")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get(echolib.HeaderLocation))
}

func TestDashboardShowsLoadingWhileResolving(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.get("/dashboard")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Loading")
}

func TestLoginRedirectsToPendingDestination(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)

	rec := app.postForm("/login", url.Values{
		"email":    {"jane@example.com"},
		"password": {"secret1"},
		"next":     {"/dashboard"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get(echolib.HeaderLocation))

	// The round-trip finishes on the originally requested page.
	dash := app.get("/dashboard")
	assert.Equal(t, http.StatusOK, dash.Code)
	assert.Contains(t, dash.Body.String(), "Jane")
}

func TestLoginDefaultsToDashboard(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)

	rec := app.postForm("/login", url.Values{
		"email":    {"jane@example.com"},
		"password": {"secret1"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get(echolib.HeaderLocation))
}

func TestLoginRejectsForeignNextDestination(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)

	rec := app.postForm("/login", url.Values{
		"email":    {"jane@example.com"},
		"password": {"secret1"},
		"next":     {"https://evil.example.com/phish"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get(echolib.HeaderLocation))
}

func TestLoginFailureRendersMessageAndKeepsFields(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)
	app.provider.signInErr = apperrors.NewAuthError(apperrors.CodeInvalidPassword, "INVALID_PASSWORD")

	rec := app.postForm("/login", url.Values{
		"email":    {"jane@example.com"},
		"password": {"wrongpw"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect password. Please try again.")
	assert.Contains(t, rec.Body.String(), `value="jane@example.com"`, "the form must stay populated")
}

func TestSignupPageAndSubmit(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)

	page := app.get("/signup")
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `name="name"`)

	rec := app.postForm("/signup", url.Values{
		"email":    {"a@b.com"},
		"password": {"secret1"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	sess := app.store.Current()
	require.NotNil(t, sess)
	assert.Equal(t, "a", sess.DisplayName)
}

func TestGenerateNotesSuccess(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)
	app.signIn(t)

	rec := app.postForm("/dashboard/notes", url.Values{
		"topic":      {"Quantum Physics"},
		"preference": {"short"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PDF generated successfully")
	assert.Contains(t, rec.Body.String(), "/static/notes/out.pdf")

	assert.Equal(t, 1, app.store.Current().NoteCount)

	records, err := app.repo.ListByUser(context.Background(), "uid-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Quantum Physics", records[0].Topic)
}

func TestGenerateNotesFailure(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
	})
	app.provider.listener(nil)
	app.signIn(t)

	rec := app.postForm("/dashboard/notes", url.Values{
		"topic":      {"History"},
		"preference": {"long"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to generate notes: model unavailable")
	assert.Equal(t, 0, app.store.Current().NoteCount, "a failed generation must not count")
}

func TestUpdateProfile(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)
	app.signIn(t)

	rec := app.postForm("/dashboard/profile", url.Values{"name": {"Janet"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Janet", app.store.Current().DisplayName)
}

func TestUpdateProfileFailureKeepsName(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)
	app.signIn(t)
	app.provider.updateErr = apperrors.NewAuthError("INTERNAL", "profile backend down")

	rec := app.postForm("/dashboard/profile", url.Values{"name": {"Janet"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to update name")
	assert.Equal(t, "Jane", app.store.Current().DisplayName)
}

func TestLogout(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)
	app.signIn(t)
	require.NotNil(t, app.store.Current())

	rec := app.postForm("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Nil(t, app.store.Current())

	dash := app.get("/dashboard")
	assert.Equal(t, http.StatusFound, dash.Code)
}

func TestLandingPage(t *testing.T) {
	app := newTestApp(t, nil)
	app.provider.listener(nil)

	rec := app.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign Up")
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
