package chart

import (
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

// Bars is the alert-level distribution bar chart.
type Bars struct {
	Title string `json:"title"`
	Bars  []Bar  `json:"bars"`
}

// Bar is the number of municipalities at one alert level.
type Bar struct {
	Level int    `json:"level"`
	Label string `json:"label"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// AlertBars labels and colors an alert distribution. It returns nil for an
// empty distribution.
func AlertBars(dist []domain.AlertCount) *Bars {
	if len(dist) == 0 {
		return nil
	}
	b := &Bars{
		Title: "Municipalities by alert level",
		Bars:  make([]Bar, 0, len(dist)),
	}
	for _, c := range dist {
		b.Bars = append(b.Bars, Bar{
			Level: int(c.Level),
			Label: c.Level.Name(),
			Color: c.Level.Color(),
			Count: c.Count,
		})
	}
	return b
}
