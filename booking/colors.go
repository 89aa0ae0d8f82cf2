package booking

import (
	"fmt"
	"math"
	"strconv"
)

// ChartColor is the fill/stroke pair for one chart slice.
type ChartColor struct {
	Hue    float64 `json:"hue"`
	Fill   string  `json:"fill"`
	Stroke string  `json:"stroke"`
}

// ChartColors spreads n hues evenly around the color wheel. Each slice gets a
// translucent fill and an opaque stroke of the same hue.
func ChartColors(n int) []ChartColor {
	if n <= 0 {
		return nil
	}
	colors := make([]ChartColor, n)
	step := 360 / float64(n)
	for i := range colors {
		hue := math.Mod(float64(i)*step, 360)
		h := strconv.FormatFloat(hue, 'f', -1, 64)
		colors[i] = ChartColor{
			Hue:    hue,
			Fill:   fmt.Sprintf("hsla(%s, 70%%, 50%%, 0.7)", h),
			Stroke: fmt.Sprintf("hsla(%s, 70%%, 50%%, 1)", h),
		}
	}
	return colors
}
