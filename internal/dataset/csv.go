package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"surfsup-server/internal/modules/climate/types"
)

// RowError points at the CSV line that could not be parsed.
type RowError struct {
	File string
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.File, e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ReadStations parses a stations CSV with a header row naming at least the
// station column. name, latitude, longitude and elevation are optional.
func ReadStations(r io.Reader) ([]types.Station, error) {
	const file = "stations"

	rd, cols, err := openCSV(r, file, "station")
	if err != nil {
		return nil, err
	}

	var out []types.Station
	for {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, readError(file, err)
		}
		line, _ := rd.FieldPos(0)

		st := types.Station{
			Station: cols.value(rec, "station"),
			Name:    cols.value(rec, "name"),
		}
		if st.Station == "" {
			return nil, &RowError{File: file, Line: line, Err: errors.New("empty station")}
		}
		for _, f := range []struct {
			col string
			dst **float64
		}{
			{"latitude", &st.Latitude},
			{"longitude", &st.Longitude},
			{"elevation", &st.Elevation},
		} {
			v, err := parseOptionalFloat(cols.value(rec, f.col))
			if err != nil {
				return nil, &RowError{File: file, Line: line, Err: fmt.Errorf("%s: %w", f.col, err)}
			}
			*f.dst = v
		}
		out = append(out, st)
	}
}

// ReadMeasurements parses a measurements CSV with station and date columns and
// optional prcp and tobs columns. Empty numeric cells load as NULL.
func ReadMeasurements(r io.Reader) ([]types.Measurement, error) {
	const file = "measurements"

	rd, cols, err := openCSV(r, file, "station", "date")
	if err != nil {
		return nil, err
	}

	var out []types.Measurement
	for {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, readError(file, err)
		}
		line, _ := rd.FieldPos(0)

		m := types.Measurement{
			Station: cols.value(rec, "station"),
			Date:    cols.value(rec, "date"),
		}
		if m.Station == "" {
			return nil, &RowError{File: file, Line: line, Err: errors.New("empty station")}
		}
		if _, err := time.Parse(types.DateLayout, m.Date); err != nil {
			return nil, &RowError{File: file, Line: line, Err: fmt.Errorf("date %q: want YYYY-MM-DD", m.Date)}
		}
		if m.Precipitation, err = parseOptionalFloat(cols.value(rec, "prcp")); err != nil {
			return nil, &RowError{File: file, Line: line, Err: fmt.Errorf("prcp: %w", err)}
		}
		if m.Tobs, err = parseOptionalFloat(cols.value(rec, "tobs")); err != nil {
			return nil, &RowError{File: file, Line: line, Err: fmt.Errorf("tobs: %w", err)}
		}
		out = append(out, m)
	}
}

// columns maps a lowercased header name to its field index.
type columns map[string]int

func (c columns) value(rec []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func openCSV(r io.Reader, file string, required ...string) (*csv.Reader, columns, error) {
	rd := csv.NewReader(r)
	rd.FieldsPerRecord = -1

	header, err := rd.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%s: missing header row", file)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: read header: %w", file, err)
	}

	cols := make(columns, len(header))
	for i, h := range header {
		// A UTF-8 BOM survives into the first header cell.
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("%s: header has no %q column", file, name)
		}
	}
	return rd, cols, nil
}

func readError(file string, err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &RowError{File: file, Line: perr.Line, Err: perr.Err}
	}
	return fmt.Errorf("%s: %w", file, err)
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &f, nil
}
