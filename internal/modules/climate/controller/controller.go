package controller

import (
	"context"
	"net/http"

	"surfsup-server/internal/modules/climate/types"
)

// ClimateService is what the handlers need from the service layer.
type ClimateService interface {
	Precipitation(ctx context.Context) (types.PrecipitationReport, error)
	Stations(ctx context.Context) ([]string, error)
	StationDetails(ctx context.Context) ([]types.Station, error)
	MostActiveTemperatures(ctx context.Context) (types.TemperatureReport, error)
	TemperatureStats(ctx context.Context, start, end string) (types.TemperatureStats, error)
}

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type climateControllerImpl struct {
	service ClimateService
}

func NewClimateController(service ClimateService) ClimateController {
	return &climateControllerImpl{service: service}
}

func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleIndex)
	mux.HandleFunc("GET /api/v1.0/precipitation", c.handlePrecipitation)
	mux.HandleFunc("GET /api/v1.0/stations", c.handleStations)
	mux.HandleFunc("GET /api/v1.0/tobs", c.handleTobs)
	mux.HandleFunc("GET /api/v1.0/{start}", c.handleStats)
	mux.HandleFunc("GET /api/v1.0/{start}/{end}", c.handleStats)
}
