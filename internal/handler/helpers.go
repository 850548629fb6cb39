package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"tenantchat/internal/config"
	"tenantchat/internal/httputil"
)

// PathParam extracts a UUID path value, writing a 400 if it is missing or malformed
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	if _, err := uuid.Parse(value); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a UUID", label))
		return "", false
	}
	return value, true
}

// pageParams reads limit/offset; the service clamps them
func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, err := httputil.QueryInt(r, "limit", config.DefaultPageSize)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	offset, err = httputil.QueryInt(r, "offset", 0)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return limit, offset, true
}
