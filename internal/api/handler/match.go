package handler

import (
	"net/http"

	"github.com/mcoot/fairway/internal/api/middleware"
	"github.com/mcoot/fairway/internal/api/request"
	"github.com/mcoot/fairway/internal/api/response"
	"github.com/mcoot/fairway/internal/api/sse"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/completion"
	"github.com/mcoot/fairway/internal/services/invite"
	"github.com/mcoot/fairway/internal/services/match"
)

// MatchHandler handles match lifecycle and membership endpoints
type MatchHandler struct {
	matches    *match.Controller
	invites    *invite.Service
	reconciler *completion.Reconciler
	hubs       *sse.HubManager
}

// NewMatchHandler creates a new match handler. hubs may be nil, which
// disables the event stream.
func NewMatchHandler(matches *match.Controller, invites *invite.Service, reconciler *completion.Reconciler, hubs *sse.HubManager) *MatchHandler {
	return &MatchHandler{
		matches:    matches,
		invites:    invites,
		reconciler: reconciler,
		hubs:       hubs,
	}
}

// Create handles POST /api/v1/matches
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	var req request.CreateMatchRequest
	if err := decodeJSON(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	m, err := h.matches.CreateMatch(r.Context(), match.CreateParams{
		HostID:        principal.UserID,
		HostEmail:     principal.Email,
		Title:         req.Title,
		Description:   req.Description,
		NumberOfHoles: req.NumberOfHoles,
		Location:      req.Location,
		LocationName:  req.LocationName,
		Address:       req.Address.ToModel(),
		ScheduledFor:  req.ScheduledFor,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.MatchFromModel(m))
}

// Get handles GET /api/v1/matches/{id}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.matches.GetMatch(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchFromModel(m))
}

// Edit handles PATCH /api/v1/matches/{id}
func (h *MatchHandler) Edit(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	var req request.EditMatchRequest
	if err := decodeJSON(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	m, err := h.matches.EditMatch(r.Context(), matchID(r), principal.UserID, match.EditParams{
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		LocationName: req.LocationName,
		Address:      req.Address.ToModel(),
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchFromModel(m))
}

// Start handles POST /api/v1/matches/{id}/start
func (h *MatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	m, err := h.matches.StartMatch(r.Context(), matchID(r), principal.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchFromModel(m))
}

// End handles POST /api/v1/matches/{id}/end. The body reports whether the
// match produced a result or which scores were missing.
func (h *MatchHandler) End(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	res, err := h.matches.EndMatch(r.Context(), matchID(r), principal.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.EndMatchResponseFromModel(res.Match, res.Reconciliation))
}

// Cancel handles POST /api/v1/matches/{id}/cancel
func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	m, err := h.matches.CancelMatch(r.Context(), matchID(r), principal.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchFromModel(m))
}

// Join handles POST /api/v1/matches/{id}/join. Joining twice is a no-op.
func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.join(w, r, matchID(r))
}

// JoinByInvite handles POST /api/v1/matches/join with an invite link or token
func (h *MatchHandler) JoinByInvite(w http.ResponseWriter, r *http.Request) {
	var req request.JoinRequest
	if err := decodeJSON(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}
	id, err := invite.ResolveInvite(req.Invite)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.join(w, r, id)
}

func (h *MatchHandler) join(w http.ResponseWriter, r *http.Request, id model.MatchID) {
	principal := middleware.MustGetPrincipal(r.Context())

	m, err := h.invites.JoinWithInvite(r.Context(), id, principal.UserID, principal.Email)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchFromModel(m))
}

// Invite handles GET /api/v1/matches/{id}/invite
func (h *MatchHandler) Invite(w http.ResponseWriter, r *http.Request) {
	m, err := h.matches.GetMatch(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Invite{
		MatchID: string(m.ID),
		Link:    h.invites.InviteLink(m.ID),
	})
}

// Result handles GET /api/v1/matches/{id}/result
func (h *MatchHandler) Result(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.ResultForMatch(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchResultFromModel(result))
}

// Current handles GET /api/v1/me/matches
func (h *MatchHandler) Current(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	matches, err := h.matches.CurrentMatches(r.Context(), principal.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchesFromModel(matches))
}

// History handles GET /api/v1/users/{id}/matches. Other users only see the
// matches they shared with the caller.
func (h *MatchHandler) History(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	matches, err := h.matches.MatchHistory(r.Context(), userID(r), principal.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchesFromModel(matches))
}

// Events handles GET /api/v1/matches/{id}/events (SSE). Only participants
// may watch a match.
func (h *MatchHandler) Events(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if h.hubs == nil {
		WriteError(w, NewInvalidRequestError("event streaming is disabled"))
		return
	}

	m, err := h.matches.GetMatch(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	if !m.IsParticipant(principal.UserID) {
		WriteError(w, model.ErrNotParticipant)
		return
	}

	h.hubs.Serve(w, r, m.ID, principal.UserID)
}
