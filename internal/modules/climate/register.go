package climate

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"surfsup-server/internal/cache"
	"surfsup-server/internal/modules/climate/controller"
	"surfsup-server/internal/modules/climate/repository"
	"surfsup-server/internal/modules/climate/service"
)

// Deps are the shared resources the climate feature is built from.
type Deps struct {
	DB           *sql.DB
	Driver       string
	QueryTimeout time.Duration
	Cache        cache.Cache
	CacheTTL     time.Duration
	// Refresh may be nil when refresh notifications are off.
	Refresh RefreshSubscriber
	Logger  *slog.Logger
}

// RegisterFeature mounts the climate routes on mux and returns the service so callers
// can reach it (e.g. to invalidate its cache).
func RegisterFeature(mux *http.ServeMux, deps Deps) *service.Service {
	climateRepository := repository.NewRepository(deps.DB, deps.Driver, deps.QueryTimeout)
	climateService := service.NewService(climateRepository, deps.Cache, deps.CacheTTL, deps.Logger)
	climateController := controller.NewClimateController(climateService)
	climateController.RegisterRoutes(mux)

	if deps.Refresh != nil {
		registerMQTTHandler(deps.Refresh, climateService, deps.Logger)
	}
	return climateService
}
