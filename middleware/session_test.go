package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/onenote/domain"
	"go.pilab.hu/onenote/internal/storage"
	"go.pilab.hu/onenote/log"
	"go.pilab.hu/onenote/session"
)

// guardProvider is the minimal provider needed to drive store state.
type guardProvider struct {
	listener func(*domain.Principal)
}

func (g *guardProvider) CreateAccount(context.Context, string, string) (*domain.Principal, error) {
	return nil, nil
}

func (g *guardProvider) SignIn(context.Context, string, string) (*domain.Principal, error) {
	return nil, nil
}

func (g *guardProvider) SignOut(context.Context) error { return nil }

func (g *guardProvider) UpdateDisplayName(context.Context, *domain.Principal, string) error {
	return nil
}

func (g *guardProvider) CurrentPrincipal() *domain.Principal { return nil }

func (g *guardProvider) AuthStateChanges(listener func(*domain.Principal)) func() {
	g.listener = listener
	return func() {}
}

func (g *guardProvider) Start(context.Context) {}

func guardedRequest(t *testing.T, store *session.Store, target string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	handler := RequireSession(store)(func(c echo.Context) error {
		sess := SessionFrom(c)
		require.NotNil(t, sess, "guarded handler must see the session")
		return c.String(http.StatusOK, "protected content for "+sess.UserID)
	})

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(target)

	require.NoError(t, handler(c))
	return rec
}

func newGuardStore(t *testing.T) (*session.Store, *guardProvider) {
	t.Helper()
	provider := &guardProvider{}
	store := session.NewStore(provider, storage.NewMemoryNoteRepository(),
		log.NewZerologAdapter(zerolog.Disabled, false))
	store.Subscribe(context.Background())
	return store, provider
}

func TestGuardResolvingServesLoadingPage(t *testing.T) {
	store, _ := newGuardStore(t)

	rec := guardedRequest(t, store, "/dashboard")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderLocation), "no redirect while resolving")
	assert.Contains(t, rec.Body.String(), "Loading")
}

func TestGuardUnauthenticatedRedirectsWithNext(t *testing.T) {
	store, provider := newGuardStore(t)
	provider.listener(nil)

	rec := guardedRequest(t, store, "/dashboard")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get(echo.HeaderLocation))
}

func TestGuardInvalidSessionRedirectsWithoutNext(t *testing.T) {
	store, _ := newGuardStore(t)
	store.SetSession(&domain.Session{Email: "jane@example.com"}) // no user ID

	rec := guardedRequest(t, store, "/dashboard")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation),
		"a forced logout must not record a pending destination")
}

func TestGuardAuthenticatedRendersChildren(t *testing.T) {
	store, provider := newGuardStore(t)
	provider.listener(&domain.Principal{UserID: "uid-1", Email: "jane@example.com"})

	rec := guardedRequest(t, store, "/dashboard")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "protected content for uid-1")
}

func TestGuardPreservesQueryInNext(t *testing.T) {
	store, provider := newGuardStore(t)
	provider.listener(nil)

	rec := guardedRequest(t, store, "/dashboard?section=profile")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next="+"%2Fdashboard%3Fsection%3Dprofile",
		rec.Header().Get(echo.HeaderLocation))
}
