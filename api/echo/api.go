//nolint:varnamelen
package echo

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/onenote/domain"
	"go.pilab.hu/onenote/internal/idp"
	"go.pilab.hu/onenote/internal/notesapi"
	"go.pilab.hu/onenote/log"
	"go.pilab.hu/onenote/middleware"
	"go.pilab.hu/onenote/services"
	"go.pilab.hu/onenote/session"
)

// defaultAuthenticatedRoute is where a successful sign-in lands when no
// pending destination was recorded.
const defaultAuthenticatedRoute = "/dashboard"

// WebAPI holds the handler dependencies.
type WebAPI struct {
	store    *session.Store
	flow     *services.AuthFlow
	provider idp.Provider
	notes    domain.NoteRepository
	notesGen *notesapi.Client
	logger   log.Logger
}

// NewWebAPI initializes the web API.
func NewWebAPI(
	store *session.Store,
	flow *services.AuthFlow,
	provider idp.Provider,
	notes domain.NoteRepository,
	notesGen *notesapi.Client,
	logger log.Logger,
) *WebAPI {
	return &WebAPI{
		store:    store,
		flow:     flow,
		provider: provider,
		notes:    notes,
		notesGen: notesGen,
		logger:   logger,
	}
}

// RegisterRoutes registers all routes. The dashboard group sits behind
// the session guard.
func (a *WebAPI) RegisterRoutes(e *echo.Echo) {
	e.Renderer = newRenderer()

	e.GET("/", a.LandingHandler)
	e.GET("/login", a.AuthPageHandler(services.ModeLogin))
	e.GET("/signup", a.AuthPageHandler(services.ModeSignup))
	e.POST("/login", a.AuthSubmitHandler(services.ModeLogin))
	e.POST("/signup", a.AuthSubmitHandler(services.ModeSignup))
	e.POST("/logout", a.LogoutHandler)
	e.GET("/healthz", a.HealthHandler)

	dash := e.Group("/dashboard", middleware.RequireSession(a.store))
	dash.GET("", a.DashboardHandler)
	dash.POST("/notes", a.GenerateNotesHandler)
	dash.POST("/profile", a.UpdateProfileHandler)
}

// LandingHandler serves the public landing page.
func (a *WebAPI) LandingHandler(c echo.Context) error {
	sess, _ := a.store.Snapshot()
	return c.Render(http.StatusOK, "landing.html", map[string]interface{}{
		"Session": sess,
	})
}

// AuthPageHandler serves the login or signup form. A `next` parameter set
// by the route guard is carried through the form so the destination
// survives the round-trip.
func (a *WebAPI) AuthPageHandler(mode services.Mode) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "auth.html", map[string]interface{}{
			"Mode":  string(mode),
			"Next":  safeNext(c.QueryParam("next")),
			"Email": "",
			"Name":  "",
		})
	}
}

// AuthSubmitHandler processes an auth form submission. On success it
// redirects (303, so the form drops out of history) to the pending
// destination or the dashboard; on failure it re-renders the form with
// the mapped message and the fields preserved.
func (a *WebAPI) AuthSubmitHandler(mode services.Mode) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := services.SubmitRequest{
			Mode:     mode,
			Name:     strings.TrimSpace(c.FormValue("name")),
			Email:    strings.TrimSpace(c.FormValue("email")),
			Password: c.FormValue("password"),
		}
		next := safeNext(c.FormValue("next"))

		_, err := a.flow.Submit(c.Request().Context(), req)
		if err != nil {
			return c.Render(http.StatusOK, "auth.html", map[string]interface{}{
				"Mode":  string(mode),
				"Next":  next,
				"Error": services.ErrorMessage(err),
				"Email": req.Email,
				"Name":  req.Name,
			})
		}

		// The pending destination is consumed exactly once, here.
		target := next
		if target == "" {
			target = defaultAuthenticatedRoute
		}
		return c.Redirect(http.StatusSeeOther, target)
	}
}

// LogoutHandler signs the user out at the provider; the store hears about
// it through its subscription.
func (a *WebAPI) LogoutHandler(c echo.Context) error {
	if err := a.provider.SignOut(c.Request().Context()); err != nil {
		a.logger.Error(c.Request().Context(), "sign-out failed", err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// DashboardHandler serves the protected dashboard with the note form,
// recent archive entries, and the profile section.
func (a *WebAPI) DashboardHandler(c echo.Context) error {
	sess := middleware.SessionFrom(c)
	return a.renderDashboard(c, sess, "", "", "", notesapi.PreferenceShort)
}

// GenerateNotesHandler performs the remote note-generation call. Success
// archives the record and bumps the counter; any failure is rendered as a
// status message, with no retry.
func (a *WebAPI) GenerateNotesHandler(c echo.Context) error {
	sess := middleware.SessionFrom(c)
	ctx := c.Request().Context()

	topic := strings.TrimSpace(c.FormValue("topic"))
	pref := notesapi.PreferenceShort
	if c.FormValue("preference") == string(notesapi.PreferenceLong) {
		pref = notesapi.PreferenceLong
	}

	pdfPath, err := a.notesGen.Generate(ctx, topic, pref)
	if err != nil {
		a.logger.Warn(ctx, "note generation failed",
			map[string]interface{}{"topic": topic, "error": err.Error()})
		return a.renderDashboard(c, sess, "Failed to generate notes: "+err.Error(), "", topic, pref)
	}

	record := &domain.NoteRecord{
		UserID:     sess.UserID,
		Topic:      topic,
		Preference: string(pref),
		PDFPath:    pdfPath,
	}
	if err := a.notes.Save(ctx, record); err != nil {
		a.logger.Error(ctx, "failed to archive note record", err,
			map[string]interface{}{"user_id": sess.UserID})
	}
	a.store.IncrementNoteCount()

	return a.renderDashboard(c, a.store.Current(),
		"PDF generated successfully! Click the link below to download.", pdfPath, topic, pref)
}

// UpdateProfileHandler applies a display-name edit. A provider failure
// leaves the stored name untouched and is shown on the dashboard.
func (a *WebAPI) UpdateProfileHandler(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return c.Redirect(http.StatusSeeOther, defaultAuthenticatedRoute)
	}

	if err := a.store.UpdateDisplayName(c.Request().Context(), name); err != nil {
		a.logger.Error(c.Request().Context(), "display-name update failed", err)
		sess := middleware.SessionFrom(c)
		return a.renderDashboard(c, sess, "Failed to update name. Please try again.", "", "", notesapi.PreferenceShort)
	}

	return c.Redirect(http.StatusSeeOther, defaultAuthenticatedRoute)
}

// HealthHandler reports liveness.
func (a *WebAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *WebAPI) renderDashboard(c echo.Context, sess *domain.Session, status, pdfPath, topic string, pref notesapi.Preference) error {
	recent, err := a.notes.ListByUser(c.Request().Context(), sess.UserID, 10)
	if err != nil {
		a.logger.Error(c.Request().Context(), "failed to list note archive", err,
			map[string]interface{}{"user_id": sess.UserID})
	}

	return c.Render(http.StatusOK, "dashboard.html", map[string]interface{}{
		"Session":    sess,
		"Notes":      recent,
		"Status":     status,
		"PDFPath":    pdfPath,
		"Topic":      topic,
		"Preference": string(pref),
	})
}

// safeNext restricts the pending destination to local absolute paths so
// the login redirect cannot be abused as an open redirect.
func safeNext(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return ""
	}
	return u.RequestURI()
}
