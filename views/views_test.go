package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/booking"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

var shell = Page{SiteName: "Tours", CSRF: "tok", Email: "admin@example.com"}

func TestLoginHasNoSidebar(t *testing.T) {
	html := render(t, Login(shell, LoginData{Email: "a@b.c"}))
	assert.Contains(t, html, `action="/login/"`)
	assert.Contains(t, html, `value="a@b.c"`)
	assert.NotContains(t, html, "Sign out")
}

func TestShellLayout(t *testing.T) {
	p := shell
	p.Toasts = []Toast{{Kind: ToastSuccess, Text: "Logged out successfully"}}
	html := render(t, Settings(p))
	assert.Contains(t, html, "admin@example.com")
	assert.Contains(t, html, `href="/dashboard/"`)
	assert.Contains(t, html, "Change Password")
	assert.Contains(t, html, "toast-success")
}

func TestLoadingRefreshes(t *testing.T) {
	html := render(t, Loading(Page{SiteName: "Tours"}, 1))
	assert.Contains(t, html, "Loading...")
	assert.Contains(t, html, `http-equiv="refresh"`)
}

func TestBookingRows(t *testing.T) {
	html := render(t, BookingRows(Rows{Loaded: false}))
	assert.Contains(t, html, "Loading...")

	html = render(t, BookingRows(Rows{Loaded: true}))
	assert.Contains(t, html, "No bookings found")

	html = render(t, BookingRows(Rows{Loaded: true, CSRF: "tok", Bookings: []booking.Booking{
		{ID: "a/b", FullName: "<script>x</script>", TourTitle: "Desert Safari", NumberOfPersons: 2},
	}}))
	assert.Contains(t, html, "/bookings/a%2Fb/delete/")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>x")
	assert.Contains(t, html, `value="tok"`)
}

func TestBookingsPage(t *testing.T) {
	html := render(t, Bookings(shell, BookingsData{Term: "safari", LiveURL: "/bookings/live/?q=safari", Rows: Rows{Loaded: true}}))
	for _, col := range []string{"Name", "Tour", "Date", "Persons", "Contact", "Actions"} {
		assert.Contains(t, html, "<th>"+col+"</th>")
	}
	assert.Contains(t, html, `value="safari"`)
}

func TestDashboardEmptyState(t *testing.T) {
	html := render(t, Dashboard(shell, booking.Stats{TourStats: []booking.TourStat{}}))
	assert.Contains(t, html, "No booking data available")
	assert.NotContains(t, html, "<svg")
}

func TestDashboardChart(t *testing.T) {
	html := render(t, Dashboard(shell, booking.Stats{
		TotalBookings: 3,
		TourStats:     []booking.TourStat{{Tour: "A", Count: 2}, {Tour: "B", Count: 1}},
	}))
	assert.Contains(t, html, "<svg")
	assert.Contains(t, html, "hsla(0, 70%, 50%, 0.7)")
	assert.NotContains(t, html, "ZgotmplZ")
}

func TestPasswordButtonLabel(t *testing.T) {
	html := render(t, Password(shell, PasswordData{Form: auth.PasswordForm{Current: "x"}}))
	assert.Contains(t, html, "Update Password")
	assert.Contains(t, html, "Back to Settings")

	html = render(t, Password(shell, PasswordData{Submitting: true}))
	assert.Contains(t, html, "Updating...")
	assert.Contains(t, html, "disabled")
}

func TestConfirmDelete(t *testing.T) {
	html := render(t, ConfirmDelete(shell, booking.Booking{ID: "b1", FullName: "Bob"}))
	assert.Contains(t, html, `name="confirm" value="true"`)
	assert.Contains(t, html, "Bob")
}

func TestErrorPages(t *testing.T) {
	assert.Contains(t, render(t, NotFound()), "Page not found")
	assert.Contains(t, render(t, ServerError()), "Something went wrong")
}

func TestPieSlices(t *testing.T) {
	assert.Nil(t, PieSlices(nil))

	one := PieSlices([]booking.TourStat{{Tour: "Only", Count: 4}})
	require.Len(t, one, 1)
	assert.True(t, one[0].Full)
	assert.Equal(t, "100.0", one[0].Percent)

	two := PieSlices([]booking.TourStat{{Tour: "A", Count: 3}, {Tour: "B", Count: 1}})
	require.Len(t, two, 2)
	assert.Equal(t, "75.0", two[0].Percent)
	assert.True(t, strings.HasPrefix(two[0].Path, "M100.00 100.00 L100.00 10.00 A90.00 90.00 0 1 1 "))
	assert.Contains(t, two[1].Path, " 0 0 1 ")
	assert.NotEqual(t, two[0].Fill, two[1].Fill)
}

func TestLocalDate(t *testing.T) {
	assert.Equal(t, "-", LocalDate(time.Time{}))
	d := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.Local)
	assert.Equal(t, "5/1/2026", LocalDate(d))
}
