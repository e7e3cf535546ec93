package api

import (
	"net/http"

	"github.com/Poyyy414/ByteTech/internal/logging"
)

func weeklyForecastHandler(forecaster Forecaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.GetLoggerFromContext(r.Context())

		barangayID, err := pathID(r, "barangayID", "barangay_id")
		if err != nil {
			writeError(w, log, err)
			return
		}

		weekly, err := forecaster.Weekly(r.Context(), barangayID)
		if err != nil {
			writeError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, weekly)
	}
}
