package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/fairway/internal/api/apierr"
	"github.com/mcoot/fairway/internal/model"
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// decodeJSON reads a request body into v. An empty body leaves v unchanged
// when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return nil
	}
	return NewInvalidRequestError("invalid request body")
}

func matchID(r *http.Request) model.MatchID {
	return model.MatchID(mux.Vars(r)["id"])
}

func userID(r *http.Request) model.UserID {
	return model.UserID(mux.Vars(r)["id"])
}

// holeNumber parses the {hole} path variable
func holeNumber(r *http.Request) (int, error) {
	hole, err := strconv.Atoi(mux.Vars(r)["hole"])
	if err != nil {
		return 0, NewInvalidRequestError("hole must be a number")
	}
	return hole, nil
}
