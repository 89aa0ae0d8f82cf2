// Package views renders the admin pages. Pages are html/template files
// embedded in the binary and exposed as templ components.
package views

import (
	"embed"
	"html/template"

	"github.com/a-h/templ"

	"github.com/eringen/touradmin/booking"
)

//go:embed templates/*.html
var files embed.FS

var (
	pages      = map[string]*template.Template{}
	errorPages *template.Template
)

func init() {
	base := template.Must(template.New("base.html").Funcs(funcs).ParseFS(files, "templates/base.html"))
	for _, name := range []string{"login", "loading", "bookings", "confirm_delete", "dashboard", "settings", "password"} {
		t := template.Must(base.Clone())
		template.Must(t.ParseFS(files, "templates/"+name+".html"))
		pages[name] = t.Lookup("layout")
	}
	errorPages = template.Must(template.New("errors").Funcs(funcs).ParseFS(files, "templates/errors.html"))
}

func page(name string, p Page, data any) templ.Component {
	return templ.FromGoHTML(pages[name], view{Page: p, Data: data})
}

// Login is the sign-in page.
func Login(p Page, data LoginData) templ.Component {
	p.Email = ""
	if p.Title == "" {
		p.Title = "Sign in"
	}
	return page("login", p, data)
}

// Loading is shown while the session is still being resolved. It reloads
// itself every refresh seconds.
func Loading(p Page, refresh int) templ.Component {
	p.Refresh = refresh
	return page("loading", p, nil)
}

// Bookings is the bookings table page.
func Bookings(p Page, data BookingsData) templ.Component {
	p.Active = "bookings"
	if p.Title == "" {
		p.Title = "Bookings"
	}
	return page("bookings", p, data)
}

// BookingRows renders only the table body, for live updates.
func BookingRows(rows Rows) templ.Component {
	return templ.FromGoHTML(pages["bookings"].Lookup("booking_rows"), rows)
}

// ConfirmDelete asks before a booking is deleted.
func ConfirmDelete(p Page, b booking.Booking) templ.Component {
	p.Active = "bookings"
	p.Title = "Delete booking"
	return page("confirm_delete", p, b)
}

// Dashboard is the statistics page.
func Dashboard(p Page, stats booking.Stats) templ.Component {
	p.Active = "dashboard"
	if p.Title == "" {
		p.Title = "Dashboard"
	}
	return page("dashboard", p, DashboardData{Stats: stats, Slices: PieSlices(stats.TourStats)})
}

// Settings lists the account settings.
func Settings(p Page) templ.Component {
	p.Active = "settings"
	if p.Title == "" {
		p.Title = "Settings"
	}
	return page("settings", p, nil)
}

// Password is the change password form.
func Password(p Page, data PasswordData) templ.Component {
	p.Active = "settings"
	p.Title = "Change Password"
	return page("password", p, data)
}

// NotFound is the 404 page.
func NotFound() templ.Component {
	return templ.FromGoHTML(errorPages.Lookup("not_found"), nil)
}

// ServerError is the 500 page.
func ServerError() templ.Component {
	return templ.FromGoHTML(errorPages.Lookup("server_error"), nil)
}
