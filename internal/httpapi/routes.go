package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/manor-backend/internal/hub"
	"github.com/DoyleJ11/manor-backend/internal/ws"
)

type RouteOptions struct {
	APIPrefix   string
	CORSOrigins []string
	// Matches serves GET /matches when the archive is enabled.
	Matches MatchLister
}

func SetupRoutes(h *hub.Hub, opts RouteOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	api := func(r chi.Router) {
		r.Get("/healthz", Healthz)
		r.Get("/powers", Powers)

		r.Post("/game/create", CreateGame(h))
		r.Route("/game/{sessionID}", func(r chi.Router) {
			r.Post("/join", JoinGame(h))
			r.Post("/update_player", UpdatePlayer(h))
			r.Post("/change_role", ChangeRole(h))
			r.Post("/start", StartGame(h))
			r.Post("/reset", ResetGame(h))
			r.Get("/state", GameState(h))
			r.Get("/qr", JoinQR(h))
		})

		if opts.Matches != nil {
			r.Get("/matches", ListMatches(opts.Matches))
		}

		r.Get("/ws/{sessionID}/{playerID}", ws.Handler(h, opts.CORSOrigins))
	}

	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	if prefix == "/" {
		api(r)
	} else {
		r.Route(prefix, api)
	}
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
