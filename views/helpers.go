package views

import (
	"html/template"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/eringen/touradmin/booking"
)

var funcs = template.FuncMap{
	"localDate":  LocalDate,
	"pathEscape": url.PathEscape,
}

// LocalDate formats a booking date in the server's local zone. A missing date
// renders as "-".
func LocalDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("1/2/2006")
}

const (
	pieCX = 100.0
	pieCY = 100.0
	pieR  = 90.0
)

// PieSlices lays out the tour histogram as SVG pie slices, starting at twelve
// o'clock and going clockwise, with one evenly spaced hue per tour.
func PieSlices(stats []booking.TourStat) []PieSlice {
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	if total == 0 {
		return nil
	}
	colors := booking.ChartColors(len(stats))
	slices := make([]PieSlice, 0, len(stats))
	angle := -math.Pi / 2
	for i, s := range stats {
		frac := float64(s.Count) / float64(total)
		sl := PieSlice{
			Tour:    s.Tour,
			Count:   s.Count,
			Percent: strconv.FormatFloat(frac*100, 'f', 1, 64),
			Fill:    colors[i].Fill,
			Stroke:  colors[i].Stroke,
			Swatch:  template.CSS("background: " + colors[i].Fill + "; border-color: " + colors[i].Stroke),
		}
		if s.Count == total {
			sl.Full = true
		} else {
			end := angle + frac*2*math.Pi
			sl.Path = arc(angle, end)
			angle = end
		}
		slices = append(slices, sl)
	}
	return slices
}

func arc(from, to float64) string {
	large := "0"
	if to-from > math.Pi {
		large = "1"
	}
	return "M" + num(pieCX) + " " + num(pieCY) +
		" L" + num(pieCX+pieR*math.Cos(from)) + " " + num(pieCY+pieR*math.Sin(from)) +
		" A" + num(pieR) + " " + num(pieR) + " 0 " + large + " 1 " +
		num(pieCX+pieR*math.Cos(to)) + " " + num(pieCY+pieR*math.Sin(to)) + " Z"
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
