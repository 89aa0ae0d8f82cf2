package views

import (
	"html/template"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/booking"
)

// Page carries the layout data every admin page shares.
type Page struct {
	SiteName string
	Title    string
	CSRF     string
	Email    string // signed-in user; empty renders the page without the sidebar
	Active   string // "bookings", "dashboard" or "settings"
	Toasts   []Toast
	Refresh  int // seconds; non-zero adds a meta refresh
}

// Toast kinds.
const (
	ToastSuccess = "success"
	ToastError   = "error"
)

// Toast is a one-shot notification shown at the top of the page.
type Toast struct {
	Kind string
	Text string
}

// LoginData fills the sign-in form.
type LoginData struct {
	Email string
}

// Rows is the body of the bookings table.
type Rows struct {
	Loaded   bool
	Bookings []booking.Booking
	CSRF     string
}

// BookingsData is the bookings table page.
type BookingsData struct {
	Term    string
	LiveURL string
	Rows    Rows
}

// DashboardData is the statistics page.
type DashboardData struct {
	Stats  booking.Stats
	Slices []PieSlice
}

// PieSlice is one tour in the dashboard chart.
type PieSlice struct {
	Tour    string
	Count   int
	Percent string
	Path    string // SVG path; empty when Full
	Full    bool   // the only tour, drawn as a whole circle
	Fill    string
	Stroke  string
	Swatch  template.CSS
}

// PasswordData is the change password form.
type PasswordData struct {
	Form       auth.PasswordForm
	Submitting bool
}

type view struct {
	Page Page
	Data any
}
