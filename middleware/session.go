package middleware

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/onenote/domain"
	"go.pilab.hu/onenote/session"
)

// sessionContextKey is the echo context key the guard stores the session
// under.
const sessionContextKey = "onenote.session"

// loadingPage is served while the provider's initial state is still being
// resolved. Redirecting here would bounce a signed-in user to the login
// page before the persisted session has been restored.
const loadingPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta http-equiv="refresh" content="1">
  <title>Loading…</title>
</head>
<body>
  <p style="text-align:center;margin-top:20vh;font-family:sans-serif">Loading…</p>
</body>
</html>`

// RequireSession gates protected routes on the session store. Four
// outcomes:
//
//   - state still resolving: serve a neutral loading page, no redirect
//   - signed out: redirect to the login page, carrying the requested
//     path as the `next` parameter
//   - session present but missing its user ID: forced logout, redirect
//     to login without a `next` parameter
//   - valid session: store it on the context and continue
func RequireSession(store *session.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, resolving := store.Snapshot()

			if resolving {
				return c.HTML(http.StatusOK, loadingPage)
			}

			if sess == nil {
				target := "/login?next=" + url.QueryEscape(c.Request().URL.RequestURI())
				return c.Redirect(http.StatusFound, target)
			}

			if !sess.Valid() {
				return c.Redirect(http.StatusFound, "/login")
			}

			c.Set(sessionContextKey, sess)
			return next(c)
		}
	}
}

// SessionFrom returns the session the guard attached to the context, or
// nil on unguarded routes.
func SessionFrom(c echo.Context) *domain.Session {
	sess, _ := c.Get(sessionContextKey).(*domain.Session)
	return sess
}
