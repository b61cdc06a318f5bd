package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"surfsup-server/internal/db"
	"surfsup-server/internal/modules/climate/types"
	"surfsup-server/internal/utils"
)

const (
	formatJSON = "json"
	formatXLSX = "xlsx"
)

func parseFormat(r *http.Request) (string, error) {
	switch f := r.URL.Query().Get("format"); f {
	case "", formatJSON:
		return formatJSON, nil
	case formatXLSX:
		return formatXLSX, nil
	default:
		return "", fmt.Errorf("invalid 'format' %q (allowed: json, xlsx)", f)
	}
}

// writeServiceError maps a service failure to a status: bad dates are the caller's
// fault, an unreachable store is 503, anything else is 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, what string, err error) {
	var dateErr *types.InvalidDateError
	if errors.As(err, &dateErr) {
		utils.WriteError(w, http.StatusBadRequest, dateErr.Error())
		return
	}

	reqID := utils.RequestID(r.Context())
	if db.IsUnavailable(err) {
		slog.Warn("climate store unavailable", "request_id", reqID, "what", what, "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "climate store unavailable")
		return
	}

	slog.Error("climate query failed", "request_id", reqID, "what", what, "error", err)
	utils.WriteError(w, http.StatusInternalServerError, "failed to load "+what)
}
