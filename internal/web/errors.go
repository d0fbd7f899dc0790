package web

// errors.go renders failures as JSON. The technical error is logged with
// the request id; the client gets the operator message from core.MapError.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/logging"
)

// ErrorResponse is the JSON body of an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var runInProgressMessage = core.ErrorMessage{
	Message: "A run is already in progress",
	Action:  "Wait for it to finish, see /runs/active",
	Code:    "RUN409",
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)
	if errors.Is(err, core.ErrRunInProgress) {
		msg = runInProgressMessage
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
