package httpapi

import (
	"net/http"
)

func NewMux(deps HealthDeps) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, deps)
	return mux
}
