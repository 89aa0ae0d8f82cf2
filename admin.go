package touradmin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/booking"
	"github.com/eringen/touradmin/metrics"
	"github.com/eringen/touradmin/views"
)

const msgPasswordUpdated = "Password updated successfully"

func liveURL(term string) string {
	if term == "" {
		return livePath
	}
	return livePath + "?q=" + url.QueryEscape(term)
}

func (a *App) handleBookings(c echo.Context) error {
	term := c.QueryParam("q")
	ctx := c.Request().Context()

	l, err := booking.Open(ctx, a.DB, c.Logger())
	if err != nil {
		return err
	}
	defer l.Close()

	rows := views.Rows{CSRF: CsrfToken(c)}
	wctx, cancel := context.WithTimeout(ctx, a.Config.ListTimeout)
	defer cancel()
	if _, err := l.Wait(wctx); err != nil {
		// The live stream fills the table in once the first snapshot lands.
		if !errors.Is(err, context.DeadlineExceeded) {
			c.Logger().Errorf("load bookings: %v", err)
		}
	} else {
		rows.Loaded = true
		rows.Bookings = l.Search(term)
	}

	return Render(c, views.Bookings(a.page(c, nil), views.BookingsData{
		Term:    term,
		LiveURL: liveURL(term),
		Rows:    rows,
	}))
}

func (a *App) handleConfirmDelete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), a.Config.ListTimeout)
	defer cancel()
	b, err := a.Lists.Get(ctx, c.Param("id"))
	if errors.Is(err, booking.ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, views.NotFound())
	}
	if err != nil {
		return err
	}
	return Render(c, views.ConfirmDelete(a.page(c, nil), b))
}

func (a *App) handleDelete(c echo.Context) error {
	id := c.Param("id")
	if c.FormValue("confirm") != "true" {
		return c.Redirect(http.StatusSeeOther, "/bookings/"+url.PathEscape(id)+"/delete/")
	}

	err := booking.Delete(c.Request().Context(), a.DB, id, true)
	metrics.BookingDeletes.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		c.Logger().Errorf("delete booking %s: %v", id, err)
		addToast(c, views.ToastError, booking.MsgDeleteFailed)
	} else {
		a.Lists.Invalidate()
		addToast(c, views.ToastSuccess, booking.MsgDeleted)
	}
	return c.Redirect(http.StatusSeeOther, auth.HomePath)
}

func (a *App) fetchStats(ctx context.Context) booking.Stats {
	start := time.Now()
	stats := a.Aggregator.Fetch(ctx)
	metrics.StatsFetchDuration.Observe(time.Since(start).Seconds())
	return stats
}

func (a *App) handleDashboard(c echo.Context) error {
	return Render(c, views.Dashboard(a.page(c, nil), a.fetchStats(c.Request().Context())))
}

func (a *App) handleSettings(c echo.Context) error {
	return Render(c, views.Settings(a.page(c, nil)))
}

func (a *App) handlePassword(c echo.Context) error {
	s := CurrentSession(c)
	return Render(c, views.Password(a.page(c, nil), views.PasswordData{
		Submitting: s != nil && a.Changer.Submitting(s.ID),
	}))
}

func (a *App) handlePasswordPost(c echo.Context) error {
	var form auth.PasswordForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	s := CurrentSession(c)

	err := a.Changer.Submit(c.Request().Context(), s, &form)
	metrics.PasswordChanges.WithLabelValues(passwordStatus(err)).Inc()
	if err != nil {
		if errors.Is(err, &auth.Error{Code: auth.CodeInternal}) {
			c.Logger().Errorf("change password: %v", errors.Unwrap(err))
		}
		return Render(c, views.Password(a.page(c, errorToast(authMessage(err))), views.PasswordData{
			Form:       form,
			Submitting: a.Changer.Submitting(s.ID),
		}))
	}

	ok := []views.Toast{{Kind: views.ToastSuccess, Text: msgPasswordUpdated}}
	return Render(c, views.Password(a.page(c, ok), views.PasswordData{Form: form}))
}

func passwordStatus(err error) string {
	var ve auth.ValidationError
	if errors.As(err, &ve) {
		return metrics.StatusInvalid
	}
	return metrics.Status(err)
}
