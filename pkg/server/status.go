package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/balkonsolar/balkonsolar/pkg/log"
	"github.com/balkonsolar/balkonsolar/pkg/storage"
	"github.com/balkonsolar/balkonsolar/pkg/types"
)

// StatusRes is the response type for GET /api/status.
type StatusRes struct {
	Battery      types.BatteryStatus   `json:"battery"`
	LastDispatch *types.DispatchRecord `json:"lastDispatch,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	last, err := s.storage.GetLatestDispatchRecord(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get latest dispatch record", slog.Any("error", err))
		writeJSONError(w, "failed to get latest dispatch", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, StatusRes{
		Battery:      s.runner.Status(),
		LastDispatch: last,
	})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	schedule, err := s.storage.GetLatestSchedule(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, "no schedule yet", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get latest schedule", slog.Any("error", err))
		writeJSONError(w, "failed to get schedule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, schedule)
}

func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	schedule, err := s.runner.RunSchedule(ctx)
	if err != nil {
		if errors.Is(err, errPaused) {
			writeJSONError(w, "paused", http.StatusConflict)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to run schedule", slog.Any("error", err))
		writeJSONError(w, "failed to run schedule", http.StatusInternalServerError)
		return
	}

	writeJSON(w, schedule)
}

func (s *Server) handleUpdateBattery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var update BatteryUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode battery update", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if update.empty() {
		writeJSONError(w, "nothing to update", http.StatusBadRequest)
		return
	}
	if update.ChargeKWH != nil && *update.ChargeKWH < 0 {
		writeJSONError(w, "chargeKWH cannot be negative", http.StatusBadRequest)
		return
	}

	status, err := s.runner.UpdateBattery(ctx, update)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to update battery", slog.Any("error", err))
		writeJSONError(w, "failed to update battery", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "battery updated", slog.String("email", getAdminEmail(r)))
	writeJSON(w, status)
}
