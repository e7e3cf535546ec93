package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Poyyy414/ByteTech/internal/apperr"
)

type errorResponse struct {
	Error  apperr.Kind `json:"error"`
	Detail string      `json:"detail"`
	Fields []string    `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to its HTTP status. Only the detail of a classified
// error reaches the client; wrapped causes are logged.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	resp := errorResponse{Error: kind, Detail: "internal error"}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp.Detail = appErr.Detail
		resp.Fields = appErr.Fields
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("kind", string(kind)).Msg("request rejected")
	}

	writeJSON(w, status, resp)
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name, field string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(field)
	}
	return id, nil
}
