package handler

import (
	"net/http"

	"github.com/mcoot/fairway/internal/api/middleware"
	"github.com/mcoot/fairway/internal/api/request"
	"github.com/mcoot/fairway/internal/api/response"
	"github.com/mcoot/fairway/internal/services/points"
	"github.com/mcoot/fairway/internal/services/user"
)

// UserHandler handles profile and points endpoints
type UserHandler struct {
	users  *user.Service
	points *points.Service
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *user.Service, points *points.Service) *UserHandler {
	return &UserHandler{users: users, points: points}
}

// Register handles PUT /api/v1/me. The token's email is used when the body
// omits one.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	var req request.RegisterRequest
	if err := decodeJSON(r, &req, true); err != nil {
		WriteError(w, err)
		return
	}
	email := req.Email
	if email == "" {
		email = principal.Email
	}

	u, err := h.users.Register(r.Context(), principal.UserID, user.Profile{
		Email:     email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Handicap:  req.Handicap,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(u))
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	u, err := h.users.Get(r.Context(), principal.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(u))
}

// Points handles GET /api/v1/users/{id}/points
func (h *UserHandler) Points(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	balance, err := h.points.GetUserPoints(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Points{UserID: string(id), Points: balance})
}

// PointsHistory handles GET /api/v1/users/{id}/points/history
func (h *UserHandler) PointsHistory(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	entries, err := h.points.History(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PointsHistoryFromModel(id, entries))
}
