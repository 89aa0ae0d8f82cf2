package touradmin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/metrics"
	"github.com/eringen/touradmin/views"
)

const (
	msgLoggedOut    = "Logged out successfully"
	msgTooManyLogin = "Too many login attempts. Try again later."
)

func errorToast(text string) []views.Toast {
	return []views.Toast{{Kind: views.ToastError, Text: text}}
}

// authMessage is the text shown for a provider error. Provider errors carry
// their own message; anything else gets the generic one.
func authMessage(err error) string {
	var ae *auth.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	if errors.Is(err, auth.ErrSubmitInProgress) {
		return "A password change is already in progress."
	}
	var ve auth.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return "Something went wrong. Please try again."
}

func (a *App) handleLogin(c echo.Context) error {
	return Render(c, views.Login(a.page(c, nil), views.LoginData{}))
}

func (a *App) handleLoginPost(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	data := views.LoginData{Email: email}

	if !a.loginLimiter.Allow(c.RealIP(), "email:"+auth.NormalizeEmail(email)) {
		metrics.LoginAttempts.WithLabelValues(metrics.StatusLimited).Inc()
		return RenderStatus(c, http.StatusTooManyRequests, views.Login(a.page(c, errorToast(msgTooManyLogin)), data))
	}

	s, err := a.Provider.SignIn(c.Request().Context(), email, password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.StatusFailure).Inc()
		if errors.Is(err, &auth.Error{Code: auth.CodeInternal}) {
			c.Logger().Errorf("sign in: %v", errors.Unwrap(err))
		}
		return Render(c, views.Login(a.page(c, errorToast(authMessage(err))), data))
	}
	metrics.LoginAttempts.WithLabelValues(metrics.StatusSuccess).Inc()

	if err := setSessionToken(c, s.Token); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, auth.HomePath)
}

func (a *App) handleLogout(c echo.Context) error {
	if err := a.Provider.SignOut(c.Request().Context(), CurrentSession(c)); err != nil {
		c.Logger().Errorf("sign out: %v", err)
		addToast(c, views.ToastError, authMessage(err))
		return c.Redirect(http.StatusSeeOther, auth.HomePath)
	}
	if err := clearSessionToken(c); err != nil {
		return err
	}
	addToast(c, views.ToastSuccess, msgLoggedOut)
	return c.Redirect(http.StatusSeeOther, auth.LoginPath)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
