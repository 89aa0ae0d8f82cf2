package booking

import "strings"

// Filter returns the bookings whose name, tour title or WhatsApp number
// contains term, case-insensitively. Order is preserved. An empty term returns
// list unchanged.
func Filter(list []Booking, term string) []Booking {
	if term == "" {
		return list
	}
	needle := strings.ToLower(term)
	filtered := make([]Booking, 0, len(list))
	for _, b := range list {
		if Matches(b, needle) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// Matches reports whether b matches an already lower-cased search term.
// Missing fields are empty strings and simply never match a non-empty term.
func Matches(b Booking, needle string) bool {
	return strings.Contains(strings.ToLower(b.FullName), needle) ||
		strings.Contains(strings.ToLower(b.TourTitle), needle) ||
		strings.Contains(strings.ToLower(b.WhatsApp), needle)
}
