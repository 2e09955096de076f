package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/manor-backend/internal/engine"
	"github.com/DoyleJ11/manor-backend/internal/hub"
	"github.com/DoyleJ11/manor-backend/pkg/types"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second
	pingInterval = 30 * time.Second
)

var ErrUnknownMessage = errors.New("unknown message type")

// OriginPatterns turns CORS origins ("https://app.example.com", "*") into
// the host patterns the upgrader matches cross-origin requests against.
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		if o = strings.TrimSuffix(o, "/"); o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}

// Handler upgrades /ws/{sessionID}/{playerID} and bridges the socket to the
// session actor. Unknown sessions and players are refused before upgrading.
// Cross-origin upgrades must match one of allowedOrigins.
func Handler(h *hub.Hub, allowedOrigins []string) http.HandlerFunc {
	acceptOpts := &websocket.AcceptOptions{OriginPatterns: OriginPatterns(allowedOrigins)}

	return func(w http.ResponseWriter, r *http.Request) {
		playerID := chi.URLParam(r, "playerID")

		s, err := h.Get(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		ok, err := s.HasPlayer(r.Context(), playerID)
		if err != nil || !ok {
			http.Error(w, "player not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, acceptOpts)
		if err != nil {
			zap.L().Debug("websocket upgrade refused",
				zap.String("origin", r.Header.Get("Origin")),
				zap.Error(err),
			)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := zap.L().With(zap.String("session_id", s.ID), zap.String("player_id", playerID))

		out := make(chan types.ServerMessage, outboxSize)
		if err := s.Connect(r.Context(), playerID, out); err != nil {
			return
		}
		defer s.Disconnect(playerID, out)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			ping := time.NewTicker(pingInterval)
			defer ping.Stop()
			for {
				select {
				case msg, ok := <-out:
					if !ok {
						// replaced or dropped by the session
						conn.Close(websocket.StatusPolicyViolation, "connection replaced")
						return
					}
					if err := write(ctx, conn, msg); err != nil {
						log.Debug("write failed", zap.Error(err))
						return
					}
				case <-ping.C:
					pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						log.Debug("ping failed", zap.Error(err))
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return
			}

			cm, err := types.DecodeClientMessage(data)
			if err != nil {
				reject(ctx, conn, err)
				continue
			}
			cmd, err := toEngineCommand(playerID, cm)
			if err != nil {
				reject(ctx, conn, err)
				continue
			}
			if err := s.Submit(ctx, playerID, cmd); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := types.Encode(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// reject answers a malformed intent directly; it never reaches the session.
func reject(ctx context.Context, conn *websocket.Conn, err error) {
	_ = write(ctx, conn, types.Error{Message: err.Error()})
}

func toEngineCommand(playerID string, m types.ClientMessage) (engine.Command, error) {
	switch m.Type {
	case types.ClientSelectRoom:
		return engine.SelectRoom{PlayerID: playerID, Room: m.Room}, nil
	case types.ClientUseMedikit:
		return engine.UseMedikit{PlayerID: playerID, TargetID: m.TargetPlayerID}, nil
	case types.ClientSelectPower:
		return engine.SelectPower{PlayerID: playerID, Power: engine.PowerKey(m.Power)}, nil
	case types.ClientPowerAction:
		var rooms []string
		if m.ActionData != nil {
			rooms = m.ActionData.Rooms
		}
		return engine.PowerAction{PlayerID: playerID, Rooms: rooms}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
}
