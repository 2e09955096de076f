package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/manor-backend/internal/engine"
	"github.com/DoyleJ11/manor-backend/internal/session"
)

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, status, errorBody{Detail: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Detail: err.Error()})
}

var clientErrors = []error{
	errBadRequest,
	engine.ErrSessionFull,
	engine.ErrAlreadyStarted,
	engine.ErrNotEnoughPlayers,
	engine.ErrWrongPhase,
	engine.ErrNotYourTurn,
	engine.ErrRoomLocked,
	engine.ErrUnknownRoom,
	engine.ErrPlayerEliminated,
	engine.ErrAlreadyCommitted,
	engine.ErrConspiracyRole,
	engine.ErrInvalidRole,
	engine.ErrPowerNotOffered,
	engine.ErrInvalidTargets,
	engine.ErrUnsupportedCommand,
	engine.ErrDuplicatePlayer,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, engine.ErrPlayerNotFound),
		errors.Is(err, session.ErrClosed):
		return http.StatusNotFound
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", errBadRequest)
	}
	return nil
}
