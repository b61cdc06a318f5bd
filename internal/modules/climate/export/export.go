// Package export renders climate reports as xlsx workbooks.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"surfsup-server/internal/modules/climate/types"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	infoSheet = "Info"
)

func Precipitation(r types.PrecipitationReport) ([]byte, error) {
	return build("Precipitation", []string{"Date", "Precipitation (in)"}, r.Window, nil, func(f *excelize.File, sheet string) error {
		for i, rd := range r.Readings {
			row := i + 2
			if err := f.SetCellValue(sheet, cell(1, row), rd.Date); err != nil {
				return err
			}
			if err := setFloat(f, sheet, cell(2, row), rd.Precipitation); err != nil {
				return err
			}
		}
		return nil
	})
}

func Temperatures(r types.TemperatureReport) ([]byte, error) {
	info := [][2]string{{"Station", r.StationID}}
	return build("Temperatures", []string{"Date", "Temperature (°F)"}, r.Window, info, func(f *excelize.File, sheet string) error {
		for i, o := range r.Observations {
			row := i + 2
			if err := f.SetCellValue(sheet, cell(1, row), o.Date); err != nil {
				return err
			}
			if err := setFloat(f, sheet, cell(2, row), o.Tobs); err != nil {
				return err
			}
		}
		if len(r.Observations) > 1 {
			return addTemperatureChart(f, sheet, len(r.Observations))
		}
		return nil
	})
}

func Stats(s types.TemperatureStats) ([]byte, error) {
	return build("Statistics", []string{"Min (°F)", "Avg (°F)", "Max (°F)"}, s.Window, nil, func(f *excelize.File, sheet string) error {
		for i, v := range s.Triple() {
			if err := setFloat(f, sheet, cell(i+1, 2), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func Stations(stations []types.Station) ([]byte, error) {
	headers := []string{"Station", "Name", "Latitude", "Longitude", "Elevation"}
	return build("Stations", headers, types.DateWindow{}, nil, func(f *excelize.File, sheet string) error {
		for i, s := range stations {
			row := i + 2
			if err := f.SetCellValue(sheet, cell(1, row), s.Station); err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell(2, row), s.Name); err != nil {
				return err
			}
			for col, v := range []*float64{s.Latitude, s.Longitude, s.Elevation} {
				if err := setFloat(f, sheet, cell(col+3, row), v); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// build creates a workbook with one data sheet and an Info sheet describing the window.
func build(sheet string, headers []string, window types.DateWindow, info [][2]string, fill func(*excelize.File, string) error) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}

	for i, h := range headers {
		if err := f.SetCellValue(sheet, cell(i+1, 1), h); err != nil {
			return nil, err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, 20); err != nil {
			return nil, err
		}
	}

	if err := fill(f, sheet); err != nil {
		return nil, fmt.Errorf("fill %s: %w", sheet, err)
	}

	if err := writeInfoSheet(f, window, info); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInfoSheet(f *excelize.File, window types.DateWindow, extra [][2]string) error {
	if _, err := f.NewSheet(infoSheet); err != nil {
		return fmt.Errorf("new sheet %s: %w", infoSheet, err)
	}
	rows := [][2]string{
		{"Window start", window.Start},
		{"Window end", window.End},
	}
	rows = append(rows, extra...)
	rows = append(rows, [2]string{"Generated at", time.Now().UTC().Format(time.RFC3339)})

	for i, kv := range rows {
		if err := f.SetCellValue(infoSheet, cell(1, i+1), kv[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(infoSheet, cell(2, i+1), kv[1]); err != nil {
			return err
		}
	}
	return f.SetColWidth(infoSheet, "A", "B", 24)
}

func addTemperatureChart(f *excelize.File, sheet string, n int) error {
	last := n + 1
	return f.AddChart(sheet, "D2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$B$1", sheet),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, last),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheet, last),
			},
		},
		Title: []excelize.RichTextRun{{Text: "Temperature observations"}},
		Dimension: excelize.ChartDimension{
			Width:  720,
			Height: 360,
		},
	})
}

// setFloat leaves the cell empty for missing values.
func setFloat(f *excelize.File, sheet, axis string, v *float64) error {
	if v == nil {
		return nil
	}
	return f.SetCellValue(sheet, axis, *v)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
