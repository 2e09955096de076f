package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/manor-backend/internal/engine"
	"github.com/DoyleJ11/manor-backend/internal/hub"
	"github.com/DoyleJ11/manor-backend/internal/session"
	"github.com/DoyleJ11/manor-backend/internal/store"
)

type CreateGameRequest struct {
	HostName       string `json:"host_name"`
	HostAvatar     string `json:"host_avatar"`
	Role           string `json:"role"`
	ConspiracyMode bool   `json:"conspiracy_mode"`
}

type CreateGameResponse struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	JoinLink  string `json:"join_link"`
}

type JoinGameRequest struct {
	PlayerName   string `json:"player_name"`
	PlayerAvatar string `json:"player_avatar"`
	Role         string `json:"role"`
}

type JoinGameResponse struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
}

type statusResponse struct {
	Status  string `json:"status"`
	NewRole string `json:"new_role,omitempty"`
}

// MatchLister reads the finished-match archive.
type MatchLister interface {
	RecentMatches(ctx context.Context, limit int) ([]store.MatchRecord, error)
}

func joinLink(code string) string { return "/join/" + code }

func lookup(h *hub.Hub, r *http.Request) (*session.Session, error) {
	return h.Get(r.Context(), chi.URLParam(r, "sessionID"))
}

func requireName(name, field string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	return name, nil
}

func CreateGame(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGameRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		name, err := requireName(req.HostName, "host_name")
		if err != nil {
			writeError(w, err)
			return
		}

		hostID := uuid.NewString()
		s, err := h.Create(r.Context(), hub.CreateSession{
			HostID:     hostID,
			HostName:   name,
			HostAvatar: req.HostAvatar,
			HostRole:   engine.Role(req.Role),
			Conspiracy: req.ConspiracyMode,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateGameResponse{
			SessionID: s.ID,
			PlayerID:  hostID,
			JoinLink:  joinLink(s.ID),
		})
	}
}

func JoinGame(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := lookup(h, r)
		if err != nil {
			writeError(w, err)
			return
		}
		var req JoinGameRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		name, err := requireName(req.PlayerName, "player_name")
		if err != nil {
			writeError(w, err)
			return
		}

		playerID := uuid.NewString()
		err = s.Run(r.Context(), playerID, engine.Join{
			PlayerID: playerID,
			Name:     name,
			Avatar:   req.PlayerAvatar,
			Role:     engine.Role(req.Role),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, JoinGameResponse{SessionID: s.ID, PlayerID: playerID})
	}
}

func UpdatePlayer(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := lookup(h, r)
		if err != nil {
			writeError(w, err)
			return
		}
		var req JoinGameRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		name, err := requireName(req.PlayerName, "player_name")
		if err != nil {
			writeError(w, err)
			return
		}

		playerID := r.URL.Query().Get("player_id")
		err = s.Run(r.Context(), playerID, engine.UpdatePlayer{
			PlayerID: playerID,
			Name:     name,
			Avatar:   req.PlayerAvatar,
			Role:     engine.Role(req.Role),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{Status: "updated"})
	}
}

func ChangeRole(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := lookup(h, r)
		if err != nil {
			writeError(w, err)
			return
		}

		q := r.URL.Query()
		playerID, newRole := q.Get("player_id"), q.Get("new_role")
		if err := s.Run(r.Context(), playerID, engine.ChangeRole{PlayerID: playerID, Role: engine.Role(newRole)}); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{Status: "success", NewRole: newRole})
	}
}

func StartGame(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := lookup(h, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.Run(r.Context(), r.URL.Query().Get("player_id"), engine.StartGame{}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "started"})
	}
}

func ResetGame(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := lookup(h, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.Run(r.Context(), r.URL.Query().Get("player_id"), engine.ResetGame{}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "reset"})
	}
}

// GameState returns the snapshot as seen by player_id. Without a player id
// the caller gets the public view; an unknown one is a lookup error.
func GameState(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := lookup(h, r)
		if err != nil {
			writeError(w, err)
			return
		}

		playerID := r.URL.Query().Get("player_id")
		if playerID != "" {
			ok, err := s.HasPlayer(r.Context(), playerID)
			if err != nil {
				writeError(w, err)
				return
			}
			if !ok {
				writeError(w, engine.ErrPlayerNotFound)
				return
			}
		}
		view, err := s.View(r.Context(), playerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func Powers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engine.PowerCatalogView())
}

// JoinQR renders the absolute join link of a session as a PNG.
func JoinQR(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := lookup(h, r)
		if err != nil {
			writeError(w, err)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		url := fmt.Sprintf("%s://%s%s", scheme, r.Host, joinLink(s.ID))

		png, err := qrcode.Encode(url, qrcode.Medium, 320)
		if err != nil {
			writeError(w, fmt.Errorf("encode qr code: %w", err))
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write(png); err != nil {
			zap.L().Warn("failed to write qr code", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
}

// ListMatches serves the most recent finished matches, newest first.
func ListMatches(m MatchLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw))
				return
			}
			limit = n
		}

		matches, err := m.RecentMatches(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
