package types

import (
	"errors"
	"fmt"
)

// DateLayout is the on-disk and on-the-wire date format. Values in this layout sort
// lexically in chronological order, so the store compares them as plain strings.
const DateLayout = "2006-01-02"

// ErrNoData is returned when the measurement table has no rows to anchor a window on.
var ErrNoData = errors.New("no measurements")

type Station struct {
	Station   string   `json:"station"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Elevation *float64 `json:"elevation"`
}

type Measurement struct {
	Station       string   `json:"station"`
	Date          string   `json:"date"`
	Precipitation *float64 `json:"prcp"`
	Tobs          *float64 `json:"tobs"`
}

type PrecipitationReading struct {
	Date          string
	Precipitation *float64
}

type TemperatureObservation struct {
	Date string
	Tobs *float64
}

// DateWindow is an inclusive [Start, End] range of dates in DateLayout.
type DateWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type PrecipitationReport struct {
	Window   DateWindow
	Readings []PrecipitationReading
}

// ByDate shapes the report as date -> precipitation. When a date repeats, the
// reading that comes last wins.
func (r PrecipitationReport) ByDate() map[string]*float64 {
	out := make(map[string]*float64, len(r.Readings))
	for _, rd := range r.Readings {
		out[rd.Date] = rd.Precipitation
	}
	return out
}

type TemperatureReport struct {
	StationID    string
	Window       DateWindow
	Observations []TemperatureObservation
}

// Flat returns the observations as [date, tobs, date, tobs, ...].
func (r TemperatureReport) Flat() []any {
	out := make([]any, 0, 2*len(r.Observations))
	for _, o := range r.Observations {
		out = append(out, o.Date, o.Tobs)
	}
	return out
}

// TemperatureStats holds the aggregates of tobs over a window. All three are nil
// when no measurement matched.
type TemperatureStats struct {
	Window DateWindow
	Min    *float64
	Avg    *float64
	Max    *float64
}

// Triple returns [min, avg, max].
func (s TemperatureStats) Triple() []*float64 {
	return []*float64{s.Min, s.Avg, s.Max}
}

type InvalidDateError struct {
	Param string
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid %s date %q (expected YYYY-MM-DD)", e.Param, e.Value)
}
