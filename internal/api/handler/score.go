package handler

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/fairway/internal/api/middleware"
	"github.com/mcoot/fairway/internal/api/request"
	"github.com/mcoot/fairway/internal/api/response"
	"github.com/mcoot/fairway/internal/services/scoring"
)

// ScoreHandler handles scorecard endpoints
type ScoreHandler struct {
	scoring *scoring.Service
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(scoring *scoring.Service) *ScoreHandler {
	return &ScoreHandler{scoring: scoring}
}

// Submit handles PUT /api/v1/matches/{id}/scores/{hole}. Callers only
// ever write their own cell.
func (h *ScoreHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	hole, err := holeNumber(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.SubmitScoreRequest
	if err := decodeJSON(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}
	if req.Strokes == nil {
		WriteError(w, NewInvalidRequestError("strokes is required"))
		return
	}

	if err := h.scoring.SubmitScore(r.Context(), matchID(r), hole, principal.UserID, *req.Strokes); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// Leaderboard handles GET /api/v1/matches/{id}/leaderboard
func (h *ScoreHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	id := matchID(r)

	var (
		rows     []scoring.ParticipantTotal
		progress *scoring.Progress
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		rows, err = h.scoring.Leaderboard(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = h.scoring.Progress(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LeaderboardFromModel(id, rows, progress))
}
