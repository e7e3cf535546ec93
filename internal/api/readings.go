package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/Poyyy414/ByteTech/internal/apperr"
	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/logging"
)

type ingestResponse struct {
	DataID       int64             `json:"data_id"`
	Reading      *database.Reading `json:"reading"`
	Alerts       []*database.Alert `json:"alerts"`
	AlertsFailed bool              `json:"alerts_failed"`
	Warning      string            `json:"warning,omitempty"`
}

func ingestHandler(ingestor Ingestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.GetLoggerFromContext(ctx)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, log, apperr.Validationf("unable to read body: %v", err))
			return
		}

		result, err := ingestor.Ingest(ctx, body)
		if err != nil {
			writeError(w, log, err)
			return
		}

		resp := ingestResponse{
			DataID:  result.Reading.ID,
			Reading: result.Reading,
			Alerts:  result.Alerts,
		}
		if resp.Alerts == nil {
			resp.Alerts = []*database.Alert{}
		}
		if result.AlertErr != nil {
			resp.AlertsFailed = true
			resp.Warning = "reading stored but alert generation failed"
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func latestReadingHandler(readings ReadingQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.GetLoggerFromContext(r.Context())

		sensorID, err := pathID(r, "sensorID", "sensor_id")
		if err != nil {
			writeError(w, log, err)
			return
		}

		reading, err := readings.LatestReading(r.Context(), sensorID)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, log, apperr.NotFound("no readings for sensor %d", sensorID))
			return
		}
		if err != nil {
			writeError(w, log, apperr.Store("failed to load latest reading", err))
			return
		}

		writeJSON(w, http.StatusOK, reading)
	}
}

func readingsHandler(readings ReadingQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.GetLoggerFromContext(r.Context())

		sensorID, err := pathID(r, "sensorID", "sensor_id")
		if err != nil {
			writeError(w, log, err)
			return
		}

		list, err := readings.ReadingsBySensor(r.Context(), sensorID)
		if err != nil {
			writeError(w, log, apperr.Store("failed to load readings", err))
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func alertsHandler(readings ReadingQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.GetLoggerFromContext(r.Context())

		sensorID, err := pathID(r, "sensorID", "sensor_id")
		if err != nil {
			writeError(w, log, err)
			return
		}

		alerts, err := readings.AlertsBySensor(r.Context(), sensorID)
		if err != nil {
			writeError(w, log, apperr.Store("failed to load alerts", err))
			return
		}

		writeJSON(w, http.StatusOK, alerts)
	}
}
