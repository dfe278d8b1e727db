package domain

// AlertLevel is the InfoDengue ordinal risk category. Raw values outside
// 1..4 are normalized to AlertUnknown.
type AlertLevel int

const (
	AlertUnknown AlertLevel = 0
	AlertGreen   AlertLevel = 1
	AlertYellow  AlertLevel = 2
	AlertOrange  AlertLevel = 3
	AlertRed     AlertLevel = 4
)

// AlertLevels lists the known levels in ascending order.
var AlertLevels = []AlertLevel{AlertGreen, AlertYellow, AlertOrange, AlertRed}

type alertInfo struct {
	name  string
	color string
}

var alertTable = map[AlertLevel]alertInfo{
	AlertGreen:  {name: "Green", color: "#2ecc71"},
	AlertYellow: {name: "Yellow", color: "#f39c12"},
	AlertOrange: {name: "Orange", color: "#e67e22"},
	AlertRed:    {name: "Red", color: "#e74c3c"},
}

var unknownAlert = alertInfo{name: "Unknown", color: "#95a5a6"}

// NormalizeAlertLevel maps any integer onto the known levels or AlertUnknown.
func NormalizeAlertLevel(v int) AlertLevel {
	l := AlertLevel(v)
	if _, ok := alertTable[l]; ok {
		return l
	}
	return AlertUnknown
}

// Name returns the display name of the level.
func (l AlertLevel) Name() string {
	if info, ok := alertTable[l]; ok {
		return info.name
	}
	return unknownAlert.name
}

// Color returns the display color of the level as a hex string.
func (l AlertLevel) Color() string {
	if info, ok := alertTable[l]; ok {
		return info.color
	}
	return unknownAlert.color
}

// Known reports whether l is one of the four defined levels.
func (l AlertLevel) Known() bool {
	_, ok := alertTable[l]
	return ok
}
