package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/fairway/internal/api/apierr"
	"github.com/mcoot/fairway/internal/api/handler"
	"github.com/mcoot/fairway/internal/api/middleware"
	"github.com/mcoot/fairway/internal/api/response"
	"github.com/mcoot/fairway/internal/api/sse"
	"github.com/mcoot/fairway/internal/services/completion"
	"github.com/mcoot/fairway/internal/services/invite"
	"github.com/mcoot/fairway/internal/services/match"
	"github.com/mcoot/fairway/internal/services/points"
	"github.com/mcoot/fairway/internal/services/scoring"
	"github.com/mcoot/fairway/internal/services/user"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	Verifier        middleware.Verifier
	MatchController *match.Controller
	ScoringService  *scoring.Service
	InviteService   *invite.Service
	Reconciler      *completion.Reconciler
	PointsService   *points.Service
	UserService     *user.Service
	// HubManager serves match event streams; nil disables them
	HubManager *sse.HubManager
	// HealthCheck reports backend reachability; nil always reports ok
	HealthCheck func(ctx context.Context) error
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	matchHandler := handler.NewMatchHandler(cfg.MatchController, cfg.InviteService, cfg.Reconciler, cfg.HubManager)
	scoreHandler := handler.NewScoreHandler(cfg.ScoringService)
	userHandler := handler.NewUserHandler(cfg.UserService, cfg.PointsService)

	authMiddleware := middleware.Auth(cfg.Verifier)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	// Health check (no auth)
	api.HandleFunc("/health", healthHandler(cfg.HealthCheck)).Methods(http.MethodGet)

	// Match routes
	matches := api.PathPrefix("/matches").Subrouter()
	matches.Use(authMiddleware)
	matches.HandleFunc("", matchHandler.Create).Methods(http.MethodPost)
	matches.HandleFunc("/join", matchHandler.JoinByInvite).Methods(http.MethodPost)
	matches.HandleFunc("/{id}", matchHandler.Get).Methods(http.MethodGet)
	matches.HandleFunc("/{id}", matchHandler.Edit).Methods(http.MethodPatch)
	matches.HandleFunc("/{id}/start", matchHandler.Start).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/end", matchHandler.End).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/cancel", matchHandler.Cancel).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/join", matchHandler.Join).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/invite", matchHandler.Invite).Methods(http.MethodGet)
	matches.HandleFunc("/{id}/result", matchHandler.Result).Methods(http.MethodGet)
	matches.HandleFunc("/{id}/events", matchHandler.Events).Methods(http.MethodGet)

	// Score routes
	matches.HandleFunc("/{id}/scores/{hole:[0-9]+}", scoreHandler.Submit).Methods(http.MethodPut)
	matches.HandleFunc("/{id}/leaderboard", scoreHandler.Leaderboard).Methods(http.MethodGet)

	// Caller routes
	me := api.PathPrefix("/me").Subrouter()
	me.Use(authMiddleware)
	me.HandleFunc("", userHandler.Me).Methods(http.MethodGet)
	me.HandleFunc("", userHandler.Register).Methods(http.MethodPut)
	me.HandleFunc("/matches", matchHandler.Current).Methods(http.MethodGet)

	// User routes
	users := api.PathPrefix("/users").Subrouter()
	users.Use(authMiddleware)
	users.HandleFunc("/{id}/matches", matchHandler.History).Methods(http.MethodGet)
	users.HandleFunc("/{id}/points", userHandler.Points).Methods(http.MethodGet)
	users.HandleFunc("/{id}/points/history", userHandler.PointsHistory).Methods(http.MethodGet)

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				response.JSON(w, apierr.Status(err), healthResponse{Status: "unavailable", Error: err.Error()})
				return
			}
		}
		response.JSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
