package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Error is a user-facing HTTP error with a status code and message.
// Return one from a handler to control exactly what the client sees.
// Any other error type is logged and results in a generic 500.
type Error struct {
	Code    int
	Message string
}

func (e Error) Error() string { return e.Message }

// ClientErr constructs a user-facing Error.
func ClientErr(code int, msg string) error {
	return Error{Code: code, Message: msg}
}

// handlerFunc is the signature every route uses. Handlers write their own
// success response and return an error for anything else.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts a handlerFunc into a standard http.HandlerFunc.
// It is the single place that turns errors into responses.
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		var apiErr Error
		if errors.As(err, &apiErr) {
			http.Error(w, apiErr.Message, apiErr.Code)
			return
		}
		s.log.ErrorContext(r.Context(), "request failed",
			"err", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
