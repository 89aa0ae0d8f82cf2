package touradmin

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/views"
)

const (
	sessionName = "admin_session"
	tokenKey    = "token"

	// Echo context keys set by the gate.
	ctxSession = "auth.session"
	ctxGate    = "auth.gate"
)

func (a *App) setupMiddleware() error {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	if err := a.setupMetrics(); err != nil {
		return err
	}

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public/") || path == livePath || path == "/metrics"
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'; form-action 'self'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:  middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup: "header:X-CSRF-Token,form:_csrf",
		CookieName:  "_csrf",
		CookiePath:  "/",
		CookieSameSite: func() http.SameSite {
			return http.SameSiteLaxMode
		}(),
		CookieSecure: a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/") || path == "/metrics"
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public") ||
				strings.HasPrefix(path, "/api/") ||
				path == "/metrics"
		},
	}))

	e.Use(cacheControlMiddleware)
	return nil
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		default:
			// Every other page shows booking data or a session.
			c.Response().Header().Set("Cache-Control", "no-store")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(a.Config.SessionTTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// gate resolves the request's session before the handler runs and routes
// it: signed-out users are sent to the login page, signed-in users away from
// it. A session that does not resolve within GateTimeout renders the loading
// page, which reloads itself.
func (a *App) gate(route auth.Route) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			g := auth.WatchSession(a.Provider, sessionToken(c))
			defer g.Close()

			ctx, cancel := context.WithTimeout(c.Request().Context(), a.Config.GateTimeout)
			_, err := g.Wait(ctx)
			cancel()
			if err != nil {
				return Render(c, views.Loading(a.page(c, nil), 1))
			}

			decision, target := g.Decide(route)
			if decision == auth.DecisionRedirect {
				if route == auth.RouteShell {
					_ = clearSessionToken(c)
				}
				return c.Redirect(http.StatusSeeOther, target)
			}
			if s := g.Session(); s != nil {
				c.Set(ctxSession, s)
			}
			c.Set(ctxGate, g)
			return next(c)
		}
	}
}

// CurrentSession returns the session the gate resolved for this request, or
// nil.
func CurrentSession(c echo.Context) *auth.Session {
	s, _ := c.Get(ctxSession).(*auth.Session)
	return s
}

func currentGate(c echo.Context) *auth.Gate {
	g, _ := c.Get(ctxGate).(*auth.Gate)
	return g
}

func sessionToken(c echo.Context) string {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return ""
	}
	token, _ := sess.Values[tokenKey].(string)
	return token
}

func setSessionToken(c echo.Context, token string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[tokenKey] = token
	return sess.Save(c.Request(), c.Response())
}

func clearSessionToken(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	delete(sess.Values, tokenKey)
	return sess.Save(c.Request(), c.Response())
}

// addToast queues a toast for the next rendered page.
func addToast(c echo.Context, kind, text string) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return
	}
	sess.AddFlash(text, kind)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		c.Logger().Errorf("save toast: %v", err)
	}
}

// takeToasts pops every queued toast, successes first.
func takeToasts(c echo.Context) []views.Toast {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return nil
	}
	var toasts []views.Toast
	for _, kind := range []string{views.ToastSuccess, views.ToastError} {
		for _, f := range sess.Flashes(kind) {
			if text, ok := f.(string); ok {
				toasts = append(toasts, views.Toast{Kind: kind, Text: text})
			}
		}
	}
	if len(toasts) > 0 {
		_ = sess.Save(c.Request(), c.Response())
	}
	return toasts
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

// page builds the shared layout data. Toasts passed in are shown after the
// queued ones.
func (a *App) page(c echo.Context, toasts []views.Toast) views.Page {
	p := views.Page{
		SiteName: a.Config.Name,
		CSRF:     CsrfToken(c),
		Toasts:   append(takeToasts(c), toasts...),
	}
	if s := CurrentSession(c); s != nil {
		p.Email = s.Email
	}
	return p
}
