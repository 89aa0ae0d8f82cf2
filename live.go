package touradmin

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/touradmin/booking"
	"github.com/eringen/touradmin/metrics"
	"github.com/eringen/touradmin/views"
)

const (
	livePath      = "/bookings/live/"
	liveKeepAlive = 25 * time.Second
)

// handleLive streams the bookings table body as server-sent events. Each
// snapshot is sent as a "rows" event holding the rendered fragment. The
// stream sends "end" and stops when the session goes away or the
// subscription ends, and stops quietly when the client disconnects.
func (a *App) handleLive(c echo.Context) error {
	g := currentGate(c)
	if g == nil {
		return echo.ErrUnauthorized
	}
	term := c.QueryParam("q")
	ctx := c.Request().Context()

	l, err := booking.Open(ctx, a.DB, c.Logger())
	if err != nil {
		return err
	}
	defer l.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	metrics.LiveStreams.Inc()
	defer metrics.LiveStreams.Dec()

	keepAlive := time.NewTicker(liveKeepAlive)
	defer keepAlive.Stop()

	csrf := CsrfToken(c)
	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.Changed():
			if g.Session() == nil {
				_ = writeEvent(w, "end", "")
				return nil
			}
		case <-l.Changed():
			buf.Reset()
			rows := views.Rows{Loaded: true, Bookings: l.Search(term), CSRF: csrf}
			if err := views.BookingRows(rows).Render(ctx, &buf); err != nil {
				c.Logger().Errorf("render live rows: %v", err)
				return nil
			}
			if err := writeEvent(w, "rows", buf.String()); err != nil {
				return nil
			}
		case <-l.Done():
			_ = writeEvent(w, "end", "")
			return nil
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

// writeEvent writes one server-sent event. Multi-line data is split into
// one data field per line.
func writeEvent(w *echo.Response, event, data string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event)
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	w.Flush()
	return nil
}
