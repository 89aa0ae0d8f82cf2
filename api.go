package touradmin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/booking"
	"github.com/eringen/touradmin/metrics"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type statsResponse struct {
	booking.Stats
	Colors []booking.ChartColor `json:"colors"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *App) setupAPI() {
	api := a.Echo.Group("/api/v1")
	bearer := a.bearerAuth()

	api.POST("/session/", a.apiLogin)
	api.DELETE("/session/", a.apiLogout, bearer)
	api.GET("/bookings/", a.apiBookings, bearer)
	api.DELETE("/bookings/:id/", a.apiDeleteBooking, bearer)
	api.GET("/stats/", a.apiStats, bearer)
	api.PUT("/password/", a.apiPassword, bearer)
}

// bearerAuth resolves "Authorization: Bearer <token>" to a live session.
func (a *App) bearerAuth() echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		Validator: func(token string, c echo.Context) (bool, error) {
			s, err := a.Provider.Resolve(c.Request().Context(), strings.TrimSpace(token))
			if err != nil {
				return false, nil
			}
			c.Set(ctxSession, s)
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrSessionExpired.Message)
		},
	})
}

func (a *App) apiLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if !a.loginLimiter.Allow(c.RealIP(), "email:"+auth.NormalizeEmail(req.Email)) {
		metrics.LoginAttempts.WithLabelValues(metrics.StatusLimited).Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, msgTooManyLogin)
	}
	s, err := a.Provider.SignIn(c.Request().Context(), req.Email, req.Password)
	metrics.LoginAttempts.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		if errors.Is(err, &auth.Error{Code: auth.CodeInternal}) {
			c.Logger().Errorf("sign in: %v", errors.Unwrap(err))
			return echo.NewHTTPError(http.StatusInternalServerError, authMessage(err))
		}
		return echo.NewHTTPError(http.StatusUnauthorized, authMessage(err))
	}
	return c.JSON(http.StatusCreated, s)
}

func (a *App) apiLogout(c echo.Context) error {
	if err := a.Provider.SignOut(c.Request().Context(), CurrentSession(c)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, authMessage(err))
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msgLoggedOut})
}

func (a *App) apiBookings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), a.Config.ListTimeout)
	defer cancel()
	bookings, err := a.Lists.Search(ctx, c.QueryParam("q"))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "bookings are still loading")
		}
		return err
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}
	return c.JSON(http.StatusOK, bookings)
}

func (a *App) apiDeleteBooking(c echo.Context) error {
	id := c.Param("id")
	err := booking.Delete(c.Request().Context(), a.DB, id, c.QueryParam("confirm") == "true")
	switch {
	case errors.Is(err, booking.ErrNotConfirmed):
		return echo.NewHTTPError(http.StatusBadRequest, "add confirm=true to delete a booking")
	case err != nil:
		metrics.BookingDeletes.WithLabelValues(metrics.StatusFailure).Inc()
		c.Logger().Errorf("delete booking %s: %v", id, err)
		if errors.Is(err, booking.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, booking.MsgDeleteFailed)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, booking.MsgDeleteFailed)
	}
	metrics.BookingDeletes.WithLabelValues(metrics.StatusSuccess).Inc()
	a.Lists.Invalidate()
	return c.JSON(http.StatusOK, messageResponse{Message: booking.MsgDeleted})
}

func (a *App) apiStats(c echo.Context) error {
	stats := a.fetchStats(c.Request().Context())
	return c.JSON(http.StatusOK, statsResponse{
		Stats:  stats,
		Colors: booking.ChartColors(len(stats.TourStats)),
	})
}

func (a *App) apiPassword(c echo.Context) error {
	var form auth.PasswordForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	err := a.Changer.Submit(c.Request().Context(), CurrentSession(c), &form)
	metrics.PasswordChanges.WithLabelValues(passwordStatus(err)).Inc()

	var ve auth.ValidationError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, messageResponse{Message: msgPasswordUpdated})
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ve.Error())
	case errors.Is(err, auth.ErrSubmitInProgress):
		return echo.NewHTTPError(http.StatusConflict, authMessage(err))
	case errors.Is(err, auth.ErrTimeout):
		return echo.NewHTTPError(http.StatusGatewayTimeout, authMessage(err))
	case errors.Is(err, &auth.Error{Code: auth.CodeInternal}):
		c.Logger().Errorf("change password: %v", errors.Unwrap(err))
		return echo.NewHTTPError(http.StatusInternalServerError, authMessage(err))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, authMessage(err))
	}
}
