package controller

import (
	"bytes"
	"log/slog"
	"net/http"

	"surfsup-server/internal/modules/climate/export"
	"surfsup-server/internal/modules/climate/views"
	"surfsup-server/internal/utils"
)

var indexRoutes = []views.Route{
	{Path: "/api/v1.0/precipitation", Description: "precipitation for the last year of data"},
	{Path: "/api/v1.0/stations", Description: "station identifiers"},
	{Path: "/api/v1.0/tobs", Description: "last year of temperatures at the most active station"},
	{Path: "/api/v1.0/<start>", Description: "min, avg and max temperature from start to the latest date"},
	{Path: "/api/v1.0/<start>/<end>", Description: "min, avg and max temperature from start to end"},
}

func (c *climateControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := views.RenderIndex(&buf, &views.IndexData{Routes: indexRoutes}); err != nil {
		slog.Error("index template render failed", "request_id", utils.RequestID(r.Context()), "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("index: write response failed", "error", err)
	}
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := c.service.Precipitation(r.Context())
	if err != nil {
		writeServiceError(w, r, "precipitation", err)
		return
	}

	if format == formatXLSX {
		writeWorkbook(w, r, "precipitation.xlsx", func() ([]byte, error) { return export.Precipitation(report) })
		return
	}
	utils.WriteJSON(w, http.StatusOK, report.ByDate())
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if format == formatXLSX {
		stations, err := c.service.StationDetails(r.Context())
		if err != nil {
			writeServiceError(w, r, "stations", err)
			return
		}
		writeWorkbook(w, r, "stations.xlsx", func() ([]byte, error) { return export.Stations(stations) })
		return
	}

	ids, err := c.service.Stations(r.Context())
	if err != nil {
		writeServiceError(w, r, "stations", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ids)
}

func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := c.service.MostActiveTemperatures(r.Context())
	if err != nil {
		writeServiceError(w, r, "temperature observations", err)
		return
	}

	if format == formatXLSX {
		writeWorkbook(w, r, "tobs.xlsx", func() ([]byte, error) { return export.Temperatures(report) })
		return
	}
	utils.WriteJSON(w, http.StatusOK, report.Flat())
}

func (c *climateControllerImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := r.PathValue("start")
	end := r.PathValue("end")

	stats, err := c.service.TemperatureStats(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, r, "temperature statistics", err)
		return
	}

	if format == formatXLSX {
		writeWorkbook(w, r, "temperature-stats.xlsx", func() ([]byte, error) { return export.Stats(stats) })
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats.Triple())
}

func writeWorkbook(w http.ResponseWriter, r *http.Request, filename string, build func() ([]byte, error)) {
	data, err := build()
	if err != nil {
		slog.Error("xlsx export failed", "request_id", utils.RequestID(r.Context()), "file", filename, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to build spreadsheet")
		return
	}
	utils.WriteAttachment(w, export.ContentType, filename, data)
}
