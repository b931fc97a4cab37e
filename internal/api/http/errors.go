package http

import (
	"errors"
	"net/http"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/session"
	"github.com/coachgrid/tabledit/internal/table"
	"github.com/coachgrid/tabledit/pkg/types"
)

// writeError maps err to a status code and writes it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error(), RequestID: GetRequestID(r.Context())}
	var te *tderrors.TableError
	if errors.As(err, &te) {
		resp.Code = te.Code
		resp.Details = te.Details
	}
	writeJSON(w, statusFor(err), resp)
}

// writeBadRequest reports a malformed request.
func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:     msg,
		Code:      "BAD_REQUEST",
		RequestID: GetRequestID(r.Context()),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnknownRow), errors.Is(err, types.ErrUnknownColumn),
		errors.Is(err, types.ErrColumnNotEditable), errors.Is(err, table.ErrNoActiveCell):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSnapshotsDisabled):
		return http.StatusNotImplemented
	}

	switch tderrors.GetCode(err) {
	case tderrors.CodeSessionNotFound, tderrors.CodeTableNotFound, tderrors.CodeObjectNotFound:
		return http.StatusNotFound
	case tderrors.CodeInvalidRows:
		return http.StatusUnprocessableEntity
	case tderrors.CodeNothingToSave, tderrors.CodeMissingSchema:
		return http.StatusConflict
	case tderrors.CodeSessionLimit:
		return http.StatusTooManyRequests
	}

	switch {
	case tderrors.IsParseError(err):
		return http.StatusBadRequest
	case tderrors.IsRetryable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
