package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with the request id and returned to the client as
// a JSON ErrorResponse carrying the user message from core.MapError. The
// status code comes from statusFor unless the handler already knows better.
//
// Exports are the exception: once bytes of an export have been sent the
// status line is gone, so abortStream logs the failure and drops the
// connection instead. A client sees a truncated body, never a clean one.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/formbridge/internal/core"
	"github.com/JonMunkholm/formbridge/internal/logging"
	"github.com/JonMunkholm/formbridge/internal/odata"
	"github.com/JonMunkholm/formbridge/internal/xform"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errUnknownTable is returned for an OData entity set other than Records.
var errUnknownTable = errors.New("unknown table")

// statusFor picks the HTTP status for an error returned before any
// response bytes were written.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, core.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrEmptyBody),
		errors.Is(err, xform.ErrMalformedDefinition),
		errors.Is(err, xform.ErrMalformedSubmission),
		errors.Is(err, odata.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFormNotFound),
		errors.Is(err, core.ErrSubmissionNotFound),
		errors.Is(err, errUnknownTable),
		errors.Is(err, odata.ErrVersion):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, odata.ErrNotAcceptable):
		return http.StatusNotAcceptable
	case errors.Is(err, odata.ErrUnsupportedOption):
		return http.StatusNotImplemented
	case errors.Is(err, core.ErrTooManyExports):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// exportStatus is statusFor for export failures. A stored submission that
// no longer parses is a server fault, not a bad request.
func exportStatus(err error) int {
	var subErr *xform.SubmissionError
	if errors.As(err, &subErr) {
		return http.StatusInternalServerError
	}
	return statusFor(err)
}

// respondError logs the technical error and writes the user-facing JSON
// error. It is also the failure callback of the OData preamble.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	log := logger.Warn
	if statusCode >= http.StatusInternalServerError {
		log = logger.Error
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	respondErrorJSON(w, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Del("Content-Disposition")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// abortStream ends a response whose body has already started. Panicking
// with http.ErrAbortHandler makes net/http reset the connection without
// logging a stack trace, so the client cannot mistake the partial body for
// a complete export.
func abortStream(r *http.Request, err error, res core.ExportResult) {
	logging.FromContext(r.Context()).Error("export failed after streaming began",
		"path", r.URL.Path,
		"rows", res.Rows,
		"bytes", res.Bytes,
		"error", err.Error(),
		"code", core.MapError(err).Code,
	)
	panic(http.ErrAbortHandler)
}
